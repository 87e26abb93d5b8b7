package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/tmarchetti/brickfolio-backend/pkg/config"
	"github.com/tmarchetti/brickfolio-backend/pkg/db"
	"github.com/tmarchetti/brickfolio-backend/pkg/logger"
	"github.com/tmarchetti/brickfolio-backend/pkg/migrate"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "failed to extract sql database", err)
		os.Exit(1)
	}

	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "running goose migrations")

	if err := migrate.Up(ctx, sqlDB); err != nil {
		logg.Error(ctx, "migrations failed", err)
		os.Exit(1)
	}

	logg.Info(ctx, "migrations completed")
}
