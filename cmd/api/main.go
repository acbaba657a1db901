package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"github.com/lead-otp-gateway/internal/application/lead"
	"github.com/lead-otp-gateway/internal/application/otp"
	"github.com/lead-otp-gateway/internal/application/webhook"
	"github.com/lead-otp-gateway/internal/config"
	"github.com/lead-otp-gateway/internal/infrastructure/devlog"
	"github.com/lead-otp-gateway/internal/infrastructure/dynamo"
	"github.com/lead-otp-gateway/internal/infrastructure/interakt"
	"github.com/lead-otp-gateway/internal/infrastructure/memory"
	redisinfra "github.com/lead-otp-gateway/internal/infrastructure/redis"
	"github.com/lead-otp-gateway/internal/infrastructure/smtp"
	"github.com/lead-otp-gateway/internal/infrastructure/sns"
	transporthttp "github.com/lead-otp-gateway/internal/transport/http"
	"github.com/redis/go-redis/v9"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(newLogger(cfg.LogLevel))
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	if err := run(cfg); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// backends holds the lazily created shared clients.
type backends struct {
	cfg    *config.Config
	redis  *redis.Client
	dynamo *dynamodb.Client
}

func (b *backends) redisClient(ctx context.Context) (*redis.Client, error) {
	if b.redis == nil {
		c, err := redisinfra.NewClient(ctx, b.cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		b.redis = c
	}
	return b.redis, nil
}

func (b *backends) dynamoClient(ctx context.Context) (*dynamodb.Client, error) {
	if b.dynamo == nil {
		c, err := dynamo.NewClient(ctx, b.cfg)
		if err != nil {
			return nil, err
		}
		// Bootstrap DynamoDB tables (creates them if they don't exist).
		dynamo.Bootstrap(ctx, c, b.cfg.DynamoTables)
		b.dynamo = c
	}
	return b.dynamo, nil
}

func (b *backends) close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := &backends{cfg: cfg}
	defer b.close()

	ledger, err := buildLedger(ctx, b)
	if err != nil {
		return fmt.Errorf("otp ledger: %w", err)
	}
	verified, err := buildVerified(ctx, b)
	if err != nil {
		return fmt.Errorf("verified store: %w", err)
	}
	sender, err := buildSender(ctx, cfg)
	if err != nil {
		return fmt.Errorf("delivery provider: %w", err)
	}

	otpSvc := otp.NewService(ledger, verified, sender, otp.Config{
		OTPTemplate:     cfg.OTPTemplate,
		UnlockTemplate:  cfg.UnlockTemplate,
		TemplateLang:    cfg.TemplateLanguage,
		DeliveryTimeout: cfg.DeliveryTimeout,
		ChatNumber:      cfg.WhatsAppChatNumber,
		RedirectBaseURL: cfg.RedirectBaseURL,
		RedirectText:    cfg.RedirectText,
	})
	webhookSvc := webhook.NewService(verified, sender, webhook.Config{
		Template: cfg.AutoReplyTemplate,
		Language: cfg.TemplateLanguage,
		Cooldown: cfg.AutoReplyCooldown,
		Timeout:  cfg.DeliveryTimeout,
	})
	deps := &transporthttp.Deps{OTP: otpSvc, Inbound: webhookSvc}

	var leadSvc *lead.Service
	if cfg.PersistLeads {
		client, err := b.dynamoClient(ctx)
		if err != nil {
			return fmt.Errorf("lead store: %w", err)
		}
		var mailer lead.Mailer
		if cfg.LeadAlertEmail != "" {
			mailer = smtp.NewMailer(cfg)
		}
		leadSvc = lead.NewService(dynamo.NewLeadRepo(client, cfg.DynamoTables.Leads), verified, mailer, cfg.LeadAlertEmail)
		deps.Leads = leadSvc
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(ctx, cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv,
			"ledger", cfg.LedgerBackend, "verified", cfg.VerifiedBackend, "delivery", cfg.DeliveryProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	otpSvc.Wait()
	if leadSvc != nil {
		leadSvc.Wait()
	}
	slog.Info("server stopped")
	return nil
}

func buildLedger(ctx context.Context, b *backends) (otp.Ledger, error) {
	switch b.cfg.LedgerBackend {
	case "memory":
		l := memory.NewLedger(b.cfg.OTPTTL)
		if b.cfg.OTPSweepInterval > 0 {
			go l.RunSweeper(ctx, b.cfg.OTPSweepInterval)
		}
		return l, nil
	case "redis":
		c, err := b.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return redisinfra.NewLedger(c, b.cfg.OTPTTL), nil
	default:
		return nil, fmt.Errorf("unknown LEDGER_BACKEND %q", b.cfg.LedgerBackend)
	}
}

func buildVerified(ctx context.Context, b *backends) (otp.VerifiedStore, error) {
	switch b.cfg.VerifiedBackend {
	case "memory":
		return memory.NewVerifiedStore(), nil
	case "redis":
		c, err := b.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return redisinfra.NewVerifiedStore(c), nil
	case "dynamo":
		c, err := b.dynamoClient(ctx)
		if err != nil {
			return nil, err
		}
		return dynamo.NewVerifiedRepo(c, b.cfg.DynamoTables.Verified), nil
	default:
		return nil, fmt.Errorf("unknown VERIFIED_BACKEND %q", b.cfg.VerifiedBackend)
	}
}

func buildSender(ctx context.Context, cfg *config.Config) (otp.Sender, error) {
	switch strings.ToLower(cfg.DeliveryProvider) {
	case "interakt":
		if cfg.InteraktAPIKey == "" {
			return nil, errors.New("INTERAKT_API_KEY is required")
		}
		return interakt.NewClient(cfg.InteraktAPIKey, cfg.InteraktBaseURL, uint64(max(cfg.DeliveryRetries, 0))), nil
	case "sns":
		return sns.NewSender(ctx, cfg, smsTexts(cfg))
	case "log":
		return devlog.NewSender(slog.Default()), nil
	default:
		return nil, fmt.Errorf("unknown DELIVERY_PROVIDER %q", cfg.DeliveryProvider)
	}
}

// smsTexts maps the configured template names to the SMS bodies used by the SNS provider.
func smsTexts(cfg *config.Config) map[string]string {
	texts := map[string]string{
		cfg.OTPTemplate: "{{1}} is your verification code. It expires in " + cfg.OTPTTL.String() + ".",
	}
	if cfg.UnlockTemplate != "" {
		texts[cfg.UnlockTemplate] = "Your number is verified. You can now chat with us on WhatsApp."
	}
	if cfg.AutoReplyTemplate != "" {
		texts[cfg.AutoReplyTemplate] = "Thanks for your message. Please verify your number on our website to continue."
	}
	return texts
}
