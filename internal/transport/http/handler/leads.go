package handler

import (
	"encoding/json"
	"net/http"

	"github.com/lead-otp-gateway/internal/domain"
)

// LeadHandler handles direct lead submission for already verified phones.
type LeadHandler struct {
	svc LeadSaver
}

func NewLeadHandler(svc LeadSaver) *LeadHandler { return &LeadHandler{svc: svc} }

type createLeadRequest struct {
	Phone string `json:"phone"`
	domain.Profile
}

func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	l, err := h.svc.Save(r.Context(), req.Phone, req.Profile)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, LeadEnvelope{Lead: l})
}
