package lead

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lead-otp-gateway/internal/domain"
	"github.com/lead-otp-gateway/internal/pkg/id"
	"github.com/lead-otp-gateway/internal/pkg/phone"
	"github.com/lead-otp-gateway/internal/pkg/validate"
)

// Repository persists leads. Create returns domain.ErrConflict for a phone that already has a lead.
type Repository interface {
	Create(ctx context.Context, l *domain.Lead) error
}

// VerifiedChecker reports whether a phone completed OTP verification.
type VerifiedChecker interface {
	IsVerified(ctx context.Context, key domain.PhoneKey) (bool, error)
}

// Mailer sends the ops alert for new leads.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Service saves verified leads.
type Service struct {
	repo       Repository
	verified   VerifiedChecker
	mailer     Mailer
	alertTo    string
	timeout    time.Duration
	nowF       func() time.Time
	background sync.WaitGroup
}

// NewService returns a lead service. An empty alertTo or nil mailer disables alerts.
func NewService(repo Repository, verified VerifiedChecker, mailer Mailer, alertTo string) *Service {
	return &Service{
		repo:     repo,
		verified: verified,
		mailer:   mailer,
		alertTo:  alertTo,
		timeout:  10 * time.Second,
		nowF:     time.Now,
	}
}

// Save persists a lead for a verified phone.
func (s *Service) Save(ctx context.Context, raw string, p domain.Profile) (*domain.Lead, error) {
	key, ok := phone.Normalize(raw)
	if !ok || !phone.IsMobile(key) {
		return nil, domain.ErrInvalidPhone
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}
	verified, err := s.verified.IsVerified(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("check verified: %w", err)
	}
	if !verified {
		return nil, fmt.Errorf("phone not verified: %w", domain.ErrForbidden)
	}

	now := s.nowF().UTC()
	l := &domain.Lead{
		LeadID:     id.NewAt(now),
		Phone:      key,
		Name:       p.Name,
		Email:      p.Email,
		City:       p.City,
		VerifiedAt: now,
		CreatedAt:  now,
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	s.alert(ctx, l)
	return l, nil
}

// Wait blocks until pending alert emails have finished.
func (s *Service) Wait() { s.background.Wait() }

func (s *Service) alert(ctx context.Context, l *domain.Lead) {
	if s.mailer == nil || s.alertTo == "" {
		return
	}
	bgCtx := context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		sendCtx, cancel := context.WithTimeout(bgCtx, s.timeout)
		defer cancel()
		body := fmt.Sprintf("Name: %s\nPhone: %s\nEmail: %s\nCity: %s\nLead ID: %s\n", l.Name, l.Phone, l.Email, l.City, l.LeadID)
		if err := s.mailer.SendEmail(sendCtx, s.alertTo, "New verified lead: "+l.Name, body); err != nil {
			slog.WarnContext(bgCtx, "failed to send lead alert", "lead_id", l.LeadID, "err", err)
		}
	}()
}
