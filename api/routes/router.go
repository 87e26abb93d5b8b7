package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tmarchetti/brickfolio-backend/api/controllers"
	webhookcontrollers "github.com/tmarchetti/brickfolio-backend/api/controllers/webhooks"
	"github.com/tmarchetti/brickfolio-backend/api/middleware"
	"github.com/tmarchetti/brickfolio-backend/internal/account"
	"github.com/tmarchetti/brickfolio-backend/internal/auth"
	checkoutsvc "github.com/tmarchetti/brickfolio-backend/internal/checkout"
	stripewebhook "github.com/tmarchetti/brickfolio-backend/internal/webhooks/stripe"
	"github.com/tmarchetti/brickfolio-backend/pkg/config"
	"github.com/tmarchetti/brickfolio-backend/pkg/db"
	"github.com/tmarchetti/brickfolio-backend/pkg/logger"
	"github.com/tmarchetti/brickfolio-backend/pkg/redis"
)

// RouterParams bundles everything the HTTP surface needs.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    *redis.Client
	Auth     auth.Service
	Checkout *checkoutsvc.Service
	Account  *account.Service

	WebhookService  *stripewebhook.Service
	WebhookVerifier *stripewebhook.Verifier
	WebhookGuard    *stripewebhook.IdempotencyGuard
}

func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.DB, p.Redis, p.Logger))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.WebhookService, p.WebhookVerifier, p.WebhookGuard, p.Logger))
	})

	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Post("/session", controllers.StartCheckout(p.Checkout, p.Logger))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", controllers.Login(p.Auth, p.Logger))
	})

	r.Route("/api/v1/account", func(r chi.Router) {
		r.Use(middleware.Auth(p.Config.JWT, p.Logger))
		r.Get("/subscription", controllers.AccountSubscription(p.Account, p.Logger))
		r.Post("/delete", controllers.AccountDelete(p.Account, p.Logger))
	})

	return r
}
