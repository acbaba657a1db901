package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/lead-otp-gateway/internal/config"
	"github.com/lead-otp-gateway/internal/transport/http/handler"
	appmiddleware "github.com/lead-otp-gateway/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. ctx bounds the rate limiter's
// background cleanup.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	otpRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	healthH := handler.NewHealthHandler()
	otpH := handler.NewOTPHandler(deps.OTP, deps.Leads)

	r.Get("/health-check/{action}", healthH.Ping)

	r.Route("/api", func(r chi.Router) {
		r.With(otpRL.Limit).Post("/send-otp", otpH.Send)
		r.With(otpRL.Limit).Post("/verify-otp", otpH.Verify)

		if deps.Leads != nil {
			r.Post("/leads", handler.NewLeadHandler(deps.Leads).Create)
		}
		if deps.Inbound != nil {
			r.Post("/webhooks/interakt", handler.NewWebhookHandler(deps.Inbound, cfg.WebhookSecret).Interakt)
		}
	})

	return r
}
