package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lead-otp-gateway/internal/application/otp"
	"github.com/lead-otp-gateway/internal/domain"
)

// OTPService is the issuance and confirmation surface the handler needs.
type OTPService interface {
	RequestCode(ctx context.Context, raw string) error
	ConfirmCode(ctx context.Context, raw, code string, profile domain.Profile) (*otp.Confirmation, error)
}

// LeadSaver persists a lead after confirmation.
type LeadSaver interface {
	Save(ctx context.Context, raw string, p domain.Profile) (*domain.Lead, error)
}

// OTPHandler handles send-otp and verify-otp. A nil leads skips lead persistence.
type OTPHandler struct {
	svc   OTPService
	leads LeadSaver
}

func NewOTPHandler(svc OTPService, leads LeadSaver) *OTPHandler {
	return &OTPHandler{svc: svc, leads: leads}
}

type sendOTPRequest struct {
	Phone string `json:"phone"`
	domain.Profile
}

type verifyOTPRequest struct {
	Phone string `json:"phone"`
	OTP   code   `json:"otp"`
	domain.Profile
}

// code accepts the OTP as a JSON string or a JSON number. Numbers are kept in their
// literal form and compared as strings.
type code string

func (c *code) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = code(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = code(n.String())
	return nil
}

func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, SendOTPEnvelope{Message: "invalid request body"})
		return
	}
	err := h.svc.RequestCode(r.Context(), req.Phone)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, SendOTPEnvelope{Success: true, Message: "OTP sent successfully"})
	case errors.Is(err, domain.ErrInvalidPhone):
		writeJSON(w, http.StatusBadRequest, SendOTPEnvelope{Message: "Invalid phone number"})
	case errors.Is(err, domain.ErrDeliveryFailed):
		writeJSON(w, http.StatusBadGateway, SendOTPEnvelope{Message: "Failed to send OTP"})
	default:
		slog.ErrorContext(r.Context(), "send otp failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, SendOTPEnvelope{Message: "Failed to send OTP"})
	}
}

func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, VerifyOTPEnvelope{Message: "invalid request body"})
		return
	}
	conf, err := h.svc.ConfirmCode(r.Context(), req.Phone, string(req.OTP), req.Profile)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusOK, VerifyOTPEnvelope{Message: "OTP not found or expired"})
		return
	case errors.Is(err, domain.ErrMismatch):
		writeJSON(w, http.StatusOK, VerifyOTPEnvelope{Message: "Wrong OTP"})
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "verify otp failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, VerifyOTPEnvelope{Message: "verification failed"})
		return
	}

	resp := VerifyOTPEnvelope{Verified: true, RedirectURL: conf.RedirectURL}
	if h.leads != nil {
		resp.LeadID, resp.LeadStatus = h.saveLead(r, req)
	}
	writeJSON(w, http.StatusOK, resp)
}

// saveLead never fails the verification; the outcome is reported in lead_status.
func (h *OTPHandler) saveLead(r *http.Request, req verifyOTPRequest) (id, status string) {
	l, err := h.leads.Save(r.Context(), req.Phone, req.Profile)
	switch {
	case err == nil:
		return l.LeadID, "created"
	case errors.Is(err, domain.ErrConflict):
		return "", "duplicate"
	case errors.Is(err, domain.ErrBadRequest):
		return "", "invalid_profile"
	default:
		slog.ErrorContext(r.Context(), "save lead after verification failed", "err", err)
		return "", "failed"
	}
}
