package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tmarchetti/brickfolio-backend/api/routes"
	"github.com/tmarchetti/brickfolio-backend/internal/account"
	"github.com/tmarchetti/brickfolio-backend/internal/auth"
	"github.com/tmarchetti/brickfolio-backend/internal/checkout"
	"github.com/tmarchetti/brickfolio-backend/internal/correlate"
	"github.com/tmarchetti/brickfolio-backend/internal/identity"
	"github.com/tmarchetti/brickfolio-backend/internal/ledger"
	stripewebhook "github.com/tmarchetti/brickfolio-backend/internal/webhooks/stripe"
	"github.com/tmarchetti/brickfolio-backend/pkg/config"
	"github.com/tmarchetti/brickfolio-backend/pkg/db"
	"github.com/tmarchetti/brickfolio-backend/pkg/logger"
	"github.com/tmarchetti/brickfolio-backend/pkg/metrics"
	"github.com/tmarchetti/brickfolio-backend/pkg/migrate"
	"github.com/tmarchetti/brickfolio-backend/pkg/redis"
	pkgstripe "github.com/tmarchetti/brickfolio-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe client", err)
		os.Exit(1)
	}

	userRepo := identity.NewRepository(dbClient.DB())
	ledgerRepo := ledger.NewRepository(dbClient.DB())

	correlator, err := correlate.New(correlate.Params{
		StripeClient: correlate.NewStripeClient(stripeClient),
		Window:       cfg.Provisioning.CorrelationWindow,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create correlator", err)
		os.Exit(1)
	}

	provisioner, err := identity.NewProvisioner(identity.ProvisionerParams{
		UserRepo:       userRepo,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create provisioner", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledgerRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Correlator:  correlator,
		Provisioner: provisioner,
		Ledger:      ledgerService,
		Stripe:      stripewebhook.NewStripeClient(stripeClient),
		Metrics:     metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookVerifier, err := stripewebhook.NewVerifier(stripeClient.SigningSecret(), cfg.Provisioning.SignatureTolerance)
	if err != nil {
		logg.Error(context.Background(), "failed to create signature verifier", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Provisioning.EventGuardTTL, "stripe")
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency guard", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		StripeClient: checkout.NewStripeClient(stripeClient),
		StripeConfig: cfg.Stripe,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:         userRepo,
		SubscriptionRepo: ledgerRepo,
		JWTConfig:        cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	accountService, err := account.NewService(account.ServiceParams{
		UserRepo:     userRepo,
		LedgerRepo:   ledgerRepo,
		StripeClient: account.NewStripeClient(stripeClient),
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create account service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:          cfg,
			Logger:          logg,
			DB:              dbClient,
			Redis:           redisClient,
			Auth:            authService,
			Checkout:        checkoutService,
			Account:         accountService,
			WebhookService:  webhookService,
			WebhookVerifier: webhookVerifier,
			WebhookGuard:    webhookGuard,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
