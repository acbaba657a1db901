// Package devlog is a delivery provider for local development: it logs messages instead of sending them.
package devlog

import (
	"context"
	"log/slog"

	"github.com/lead-otp-gateway/internal/domain"
)

type Sender struct{ logger *slog.Logger }

func NewSender(logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{logger: logger}
}

func (s *Sender) SendTemplate(ctx context.Context, to domain.PhoneKey, tmpl domain.Template) error {
	s.logger.InfoContext(ctx, "dev delivery", "to", to, "template", tmpl.Name, "body_values", tmpl.BodyValues)
	return nil
}
