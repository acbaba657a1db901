package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lead-otp-gateway/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockInbound struct{ mock.Mock }

func (m *mockInbound) HandleInbound(ctx context.Context, msg domain.InboundMessage) (bool, error) {
	args := m.Called(ctx, msg)
	return args.Bool(0), args.Error(1)
}

const inboundBody = `{"type":"message_received","data":{"customer":{"phone_number":"9876543210","country_code":"+91"},"message":{"message":"hi"}}}`

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestInteraktWebhook_RejectsBadSignature(t *testing.T) {
	svc := &mockInbound{}
	h := NewWebhookHandler(svc, "s3cret")
	r := post("/api/webhooks/interakt", inboundBody)
	r.Header.Set("Interakt-Signature", "sha256=deadbeef")
	rr := httptest.NewRecorder()
	h.Interakt(rr, r)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	svc.AssertNotCalled(t, "HandleInbound", mock.Anything, mock.Anything)
}

func TestInteraktWebhook_SignedMessage(t *testing.T) {
	svc := &mockInbound{}
	svc.On("HandleInbound", mock.Anything, mock.MatchedBy(func(m domain.InboundMessage) bool {
		return m.Phone == "9876543210" && m.CountryCode == "+91" && m.Text == "hi"
	})).Return(true, nil)
	h := NewWebhookHandler(svc, "s3cret")
	r := post("/api/webhooks/interakt", inboundBody)
	r.Header.Set("Interakt-Signature", sign("s3cret", inboundBody))
	rr := httptest.NewRecorder()
	h.Interakt(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"auto-reply sent"}`, rr.Body.String())
	svc.AssertExpectations(t)
}

func TestInteraktWebhook_IgnoresOtherEvents(t *testing.T) {
	svc := &mockInbound{}
	h := NewWebhookHandler(svc, "")
	rr := httptest.NewRecorder()
	h.Interakt(rr, post("/api/webhooks/interakt", `{"type":"message_api_delivered"}`))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"ignored"}`, rr.Body.String())
	svc.AssertNotCalled(t, "HandleInbound", mock.Anything, mock.Anything)
}

func TestInteraktWebhook_InvalidJSON(t *testing.T) {
	h := NewWebhookHandler(&mockInbound{}, "")
	rr := httptest.NewRecorder()
	h.Interakt(rr, post("/api/webhooks/interakt", "nope"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestInteraktWebhook_BadSender(t *testing.T) {
	svc := &mockInbound{}
	svc.On("HandleInbound", mock.Anything, mock.Anything).Return(false, fmt.Errorf("sender phone: %w", domain.ErrBadRequest))
	h := NewWebhookHandler(svc, "")
	rr := httptest.NewRecorder()
	h.Interakt(rr, post("/api/webhooks/interakt", inboundBody))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestInteraktWebhook_DeliveryFailureStillAcknowledged(t *testing.T) {
	svc := &mockInbound{}
	svc.On("HandleInbound", mock.Anything, mock.Anything).Return(false, fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, errors.New("503")))
	h := NewWebhookHandler(svc, "")
	rr := httptest.NewRecorder()
	h.Interakt(rr, post("/api/webhooks/interakt", inboundBody))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"received"}`, rr.Body.String())
}

func TestReceivedAt(t *testing.T) {
	assert.Equal(t, 2024, receivedAt("2024-03-01T10:20:30.123456").Year())
	assert.Equal(t, 2024, receivedAt("2024-03-01T10:20:30Z").Year())
	assert.WithinDuration(t, time.Now(), receivedAt(""), time.Minute)
}
