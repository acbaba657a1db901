package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lead-otp-gateway/internal/domain"
	"github.com/lead-otp-gateway/internal/pkg/phone"
)

// Ledger is the expiring, single-use store of live codes.
// Implementations must make Consume atomic per key.
type Ledger interface {
	Issue(ctx context.Context, key domain.PhoneKey) (*domain.OTPRecord, error)
	Peek(ctx context.Context, key domain.PhoneKey) (*domain.OTPRecord, error)
	Consume(ctx context.Context, key domain.PhoneKey, code string) (domain.ConsumeResult, error)
}

// VerifiedStore records phones that completed verification.
type VerifiedStore interface {
	MarkVerified(ctx context.Context, key domain.PhoneKey) error
	IsVerified(ctx context.Context, key domain.PhoneKey) (bool, error)
}

// Sender delivers a templated message to a phone.
type Sender interface {
	SendTemplate(ctx context.Context, to domain.PhoneKey, tmpl domain.Template) error
}

// Config holds the flow settings.
type Config struct {
	OTPTemplate     string
	UnlockTemplate  string // empty disables the unlock notice
	TemplateLang    string
	DeliveryTimeout time.Duration
	ChatNumber      string
	RedirectBaseURL string
	RedirectText    string
}

// Confirmation is the result of a successful ConfirmCode.
type Confirmation struct {
	Phone       domain.PhoneKey
	Verified    bool
	RedirectURL string
}

// Service runs the issuance and confirmation flows.
type Service struct {
	ledger   Ledger
	verified VerifiedStore
	sender   Sender
	cfg      Config
	bg       sync.WaitGroup
}

func NewService(ledger Ledger, verified VerifiedStore, sender Sender, cfg Config) *Service {
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 10 * time.Second
	}
	if cfg.TemplateLang == "" {
		cfg.TemplateLang = "en"
	}
	return &Service{ledger: ledger, verified: verified, sender: sender, cfg: cfg}
}

// RequestCode issues a fresh code for raw and delivers it.
// When delivery fails the record stays live; a retry overwrites it.
func (s *Service) RequestCode(ctx context.Context, raw string) error {
	key, ok := phone.Normalize(raw)
	if !ok || !phone.IsMobile(key) {
		return domain.ErrInvalidPhone
	}

	rec, err := s.ledger.Issue(ctx, key)
	if err != nil {
		return fmt.Errorf("issue otp: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.DeliveryTimeout)
	defer cancel()
	tmpl := domain.Template{
		Name:         s.cfg.OTPTemplate,
		Language:     s.cfg.TemplateLang,
		BodyValues:   []string{rec.Code},
		ButtonValues: [][]string{{rec.Code}},
	}
	if err := s.sender.SendTemplate(sendCtx, key, tmpl); err != nil {
		slog.ErrorContext(ctx, "failed to deliver otp", "phone", key, "err", err)
		return fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
	}
	return nil
}

// ConfirmCode consumes code for raw. On success the phone is marked verified and
// the unlock notice is sent in the background; its failure never fails the confirmation.
func (s *Service) ConfirmCode(ctx context.Context, raw, code string, profile domain.Profile) (*Confirmation, error) {
	key, ok := phone.Normalize(raw)
	if !ok {
		return nil, fmt.Errorf("otp: %w", domain.ErrNotFound)
	}

	res, err := s.ledger.Consume(ctx, key, strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("consume otp: %w", err)
	}
	switch res {
	case domain.ConsumeNotFound:
		return nil, fmt.Errorf("otp: %w", domain.ErrNotFound)
	case domain.ConsumeMismatch:
		return nil, domain.ErrMismatch
	}

	if err := s.verified.MarkVerified(ctx, key); err != nil {
		return nil, fmt.Errorf("mark verified: %w", err)
	}
	s.notifyUnlocked(ctx, key)

	return &Confirmation{
		Phone:       key,
		Verified:    true,
		RedirectURL: s.redirectURL(key, profile),
	}, nil
}

// IsVerified reports whether raw completed verification.
func (s *Service) IsVerified(ctx context.Context, raw string) (bool, error) {
	key, ok := phone.Normalize(raw)
	if !ok {
		return false, domain.ErrInvalidPhone
	}
	return s.verified.IsVerified(ctx, key)
}

// Wait blocks until background notices have finished.
func (s *Service) Wait() { s.bg.Wait() }

func (s *Service) notifyUnlocked(ctx context.Context, key domain.PhoneKey) {
	if s.cfg.UnlockTemplate == "" {
		return
	}
	tmpl := domain.Template{Name: s.cfg.UnlockTemplate, Language: s.cfg.TemplateLang}
	bgCtx := context.WithoutCancel(ctx)
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		sendCtx, cancel := context.WithTimeout(bgCtx, s.cfg.DeliveryTimeout)
		defer cancel()
		err := s.sender.SendTemplate(sendCtx, key, tmpl)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.WarnContext(bgCtx, "failed to send unlock notice", "phone", key, "template", tmpl.Name, "err", err)
		}
	}()
}

func (s *Service) redirectURL(key domain.PhoneKey, p domain.Profile) string {
	base := strings.TrimRight(s.cfg.RedirectBaseURL, "/")
	if s.cfg.ChatNumber != "" {
		base += "/" + url.PathEscape(s.cfg.ChatNumber)
	}
	if s.cfg.RedirectText == "" {
		return base
	}
	text := strings.NewReplacer(
		"{name}", p.Name,
		"{email}", p.Email,
		"{city}", p.City,
		"{phone}", string(key),
	).Replace(s.cfg.RedirectText)
	// wa.me expects %20 rather than + for spaces
	return base + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}
