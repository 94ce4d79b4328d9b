package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/pharmacy-order-relay/internal/channels/whatsapp"
	"github.com/wolfman30/pharmacy-order-relay/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/pharmacy-order-relay/internal/http/middleware"
	"github.com/wolfman30/pharmacy-order-relay/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	WhatsApp        *whatsapp.WebhookHandler
	Health          *handlers.HealthHandler
	AdminOrders     *handlers.AdminOrdersHandler
	AdminAuthSecret string
	MetricsHandler  http.Handler

	// WebhookLimiter throttles POSTs to the webhook; nil disables limiting.
	WebhookLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		if cfg.Health != nil {
			public.Get("/health", cfg.Health.Live)
			public.Get("/ready", cfg.Health.Ready)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.WhatsApp != nil {
			public.Route("/webhooks/whatsapp", func(wh chi.Router) {
				wh.Get("/", cfg.WhatsApp.HandleVerification)
				wh.Group(func(inbound chi.Router) {
					if cfg.WebhookLimiter != nil {
						inbound.Use(httpmiddleware.RateLimit(cfg.WebhookLimiter))
					}
					inbound.Post("/", cfg.WhatsApp.HandleInbound)
				})
			})
		}
	})

	// Admin routes (HS256 JWT with the orders:read scope)
	if cfg.AdminAuthSecret != "" && cfg.AdminOrders != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret, httpmiddleware.AdminScope))
			admin.Use(middleware.NoCache)
			admin.Get("/orders/{orderID}", cfg.AdminOrders.GetOrder)
			admin.Get("/threads/{threadKey}", cfg.AdminOrders.GetThread)
		})
	}

	return r
}
