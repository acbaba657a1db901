package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lead-otp-gateway/internal/domain"
	"github.com/lead-otp-gateway/internal/pkg/phone"
)

// VerifiedChecker reports whether a phone completed OTP verification.
type VerifiedChecker interface {
	IsVerified(ctx context.Context, key domain.PhoneKey) (bool, error)
}

// Sender delivers a templated message to a phone.
type Sender interface {
	SendTemplate(ctx context.Context, to domain.PhoneKey, tmpl domain.Template) error
}

// Config holds the auto-reply policy. An empty Template disables replies.
type Config struct {
	Template string
	Language string
	Cooldown time.Duration
	Timeout  time.Duration
}

// Service applies the auto-reply policy to inbound messages: senders who have not
// verified get the auto-reply template, at most once per cooldown.
type Service struct {
	verified VerifiedChecker
	sender   Sender
	cfg      Config
	nowF     func() time.Time

	mu      sync.Mutex
	replied map[domain.PhoneKey]time.Time
}

func NewService(verified VerifiedChecker, sender Sender, cfg Config) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	return &Service{
		verified: verified,
		sender:   sender,
		cfg:      cfg,
		nowF:     time.Now,
		replied:  make(map[domain.PhoneKey]time.Time),
	}
}

// HandleInbound reports whether an auto-reply was sent for msg.
func (s *Service) HandleInbound(ctx context.Context, msg domain.InboundMessage) (bool, error) {
	if s.cfg.Template == "" {
		return false, nil
	}
	key, ok := phone.Normalize(strings.TrimPrefix(msg.CountryCode, "+") + msg.Phone)
	if !ok {
		return false, fmt.Errorf("sender phone: %w", domain.ErrBadRequest)
	}
	verified, err := s.verified.IsVerified(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check verified: %w", err)
	}
	if verified || !s.claim(key) {
		return false, nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	if err := s.sender.SendTemplate(sendCtx, key, domain.Template{Name: s.cfg.Template, Language: s.cfg.Language}); err != nil {
		s.release(key)
		slog.WarnContext(ctx, "failed to send auto-reply", "phone", key, "err", err)
		return false, fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
	}
	return true, nil
}

// claim reserves the reply slot for key unless one was used within the cooldown.
// Stale entries are pruned on the way.
func (s *Service) claim(key domain.PhoneKey) bool {
	now := s.nowF()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, at := range s.replied {
		if now.Sub(at) >= s.cfg.Cooldown {
			delete(s.replied, k)
		}
	}
	if _, ok := s.replied[key]; ok {
		return false
	}
	s.replied[key] = now
	return true
}

func (s *Service) release(key domain.PhoneKey) {
	s.mu.Lock()
	delete(s.replied, key)
	s.mu.Unlock()
}

// VerifySignature checks a hex HMAC-SHA256 of body. An empty secret accepts everything.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	got := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(signature)), "sha256=")
	return hmac.Equal([]byte(want), []byte(got))
}
