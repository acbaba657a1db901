package http

import "github.com/lead-otp-gateway/internal/transport/http/handler"

// Deps holds the application services the router exposes.
type Deps struct {
	OTP     handler.OTPService
	Leads   handler.LeadSaver // nil disables lead persistence and POST /api/leads
	Inbound handler.InboundHandler
}
