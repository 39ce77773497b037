package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/creatorpay/internal"
	"github.com/frahmantamala/creatorpay/internal/application"
	"github.com/frahmantamala/creatorpay/internal/auth"
	"github.com/frahmantamala/creatorpay/internal/connect"
	"github.com/frahmantamala/creatorpay/internal/notification"
	"github.com/frahmantamala/creatorpay/internal/payment"
	"github.com/frahmantamala/creatorpay/internal/transport"
	"github.com/frahmantamala/creatorpay/internal/transport/middleware"
	"github.com/frahmantamala/creatorpay/internal/transport/swagger"
)

// Handlers groups everything mounted under /api/v1. A nil handler leaves its routes unmounted.
type Handlers struct {
	Health       *HealthHandler
	Auth         *auth.Handler
	Application  *application.Handler
	Payment      *payment.Handler
	Webhook      *payment.WebhookHandler
	Connect      *connect.Handler
	Notification *notification.Handler
	Docs         *swagger.Document
}

type Options struct {
	AllowedOrigins []string
	RateLimiter    *middleware.RateLimiter
	Logger         *slog.Logger
}

func RegisterAllRoutes(router chi.Router, h Handlers, opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Apply global middleware
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	if opts.RateLimiter != nil {
		router.Use(opts.RateLimiter.Middleware)
	}

	if h.Docs != nil {
		router.Get("/openapi.yml", h.Docs.ServeHTTP)
		router.Handle("/swagger/*", swagger.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.healthCheckHandler)
			r.Get("/ping", h.Health.pingHandler)
		}

		// Authenticated by the processor signature, not a bearer token.
		if h.Webhook != nil {
			r.Post("/payments/webhook", h.Webhook.HandleWebhook)
		}

		if h.Auth == nil {
			return
		}

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			pr.Get("/auth/me", h.Auth.Me)

			if h.Application != nil {
				pr.Route("/applications", func(ar chi.Router) {
					ar.Get("/", h.Application.List)
					ar.Get("/{id}", h.Application.Get)
					ar.With(h.Auth.RequireRoles(internal.RoleInfluencer)).Post("/", h.Application.Submit)
					ar.With(h.Auth.RequireRoles(internal.RoleBrand)).Post("/invite", h.Application.Invite)
					ar.With(h.Auth.RequireRoles(internal.RoleBrand, internal.RoleInfluencer)).Put("/{id}/status", h.Application.UpdateStatus)
					ar.With(h.Auth.RequireRoles(internal.RoleBrand, internal.RoleInfluencer)).Delete("/{id}", h.Application.Withdraw)
				})
			}

			pr.Route("/payments", func(pmr chi.Router) {
				if h.Payment != nil {
					pmr.With(h.Auth.RequireRoles(internal.RoleBrand)).Post("/create-payment-intent", h.Payment.CreatePaymentIntent)
					pmr.With(h.Auth.RequireRoles(internal.RoleInfluencer)).Post("/request-payout", h.Payment.RequestPayout)
					pmr.With(h.Auth.RequireRoles(internal.RoleBrand)).Post("/refund", h.Payment.Refund)
					pmr.Get("/transactions", h.Payment.ListTransactions)
					pmr.With(h.Auth.RequireRoles(internal.RoleInfluencer)).Get("/earnings", h.Payment.Earnings)
				}

				if h.Connect != nil {
					pmr.Group(func(cr chi.Router) {
						cr.Use(h.Auth.RequireRoles(internal.RoleInfluencer))
						cr.Post("/connect/onboard", h.Connect.Onboard)
						cr.Get("/connect/status", h.Connect.Status)
					})
				}
			})

			if h.Notification != nil {
				pr.Get("/notifications", h.Notification.List)
				pr.Patch("/notifications/{id}/read", h.Notification.MarkRead)
			}
		})
	})

	base := transport.NewBaseHandler(logger)
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		base.WriteError(w, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		base.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}
