package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lead-otp-gateway/internal/application/webhook"
	"github.com/lead-otp-gateway/internal/domain"
)

const maxWebhookBody = 1 << 20

// InboundHandler decides on auto-replies for inbound messages.
type InboundHandler interface {
	HandleInbound(ctx context.Context, msg domain.InboundMessage) (bool, error)
}

// WebhookHandler receives Interakt webhook events.
type WebhookHandler struct {
	svc    InboundHandler
	secret string
}

func NewWebhookHandler(svc InboundHandler, secret string) *WebhookHandler {
	return &WebhookHandler{svc: svc, secret: secret}
}

type interaktEvent struct {
	Type string `json:"type"`
	Data struct {
		Customer struct {
			PhoneNumber string `json:"phone_number"`
			CountryCode string `json:"country_code"`
		} `json:"customer"`
		Message struct {
			Message       string    `json:"message"`
			ReceivedAtUTC string `json:"received_at_utc"`
		} `json:"message"`
	} `json:"data"`
}

func (h *WebhookHandler) Interakt(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !webhook.VerifySignature(h.secret, body, r.Header.Get("Interakt-Signature")) {
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}
	var ev interaktEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if ev.Type != "message_received" {
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "ignored"})
		return
	}

	replied, err := h.svc.HandleInbound(r.Context(), domain.InboundMessage{
		Phone:       ev.Data.Customer.PhoneNumber,
		CountryCode: ev.Data.Customer.CountryCode,
		Text:        ev.Data.Message.Message,
		ReceivedAt:  receivedAt(ev.Data.Message.ReceivedAtUTC),
	})
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, "invalid sender")
		return
	case err != nil:
		// acknowledged anyway so the provider does not redeliver
		slog.WarnContext(r.Context(), "inbound webhook handling failed", "err", err)
	}
	msg := "received"
	if replied {
		msg = "auto-reply sent"
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: msg})
}

// receivedAt parses the provider timestamp, which omits the zone, and falls back to now.
func receivedAt(v string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
