package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dossier-crm/teamauth"
	"github.com/dossier-crm/teamauth/internal/config"
	"github.com/dossier-crm/teamauth/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const serviceName = "dossier-auth"

// app holds the process-wide dependencies shared by every command.
type app struct {
	cfg    config.Config
	logger zerolog.Logger
	db     *gorm.DB
	redis  *redis.Client
}

func loadApp(ctx context.Context, envFile string) (*app, error) {
	cfg, err := config.Load(ctx, envFile)
	if err != nil {
		return nil, err
	}
	logger := telemetry.NewLogger(serviceName, cfg.LogLevel, cfg.Production())

	db, err := teamauth.OpenPostgres(ctx, cfg.DatabaseURL, teamauth.DefaultPoolOptions())
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, db: db}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.redis.Ping(pingCtx).Err(); err != nil {
			a.close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
	} else {
		logger.Warn().Msg("REDIS_URL not set, login and reset throttles are disabled")
	}

	return a, nil
}

func (a *app) engineConfig() teamauth.Config {
	cfg := teamauth.DefaultConfig()
	cfg.JWT.AccessSecret = []byte(a.cfg.JWTSecret)
	cfg.JWT.RefreshSecret = []byte(a.cfg.JWTRefreshSecret)
	cfg.JWT.AccessTTL = a.cfg.AccessTokenTTL
	cfg.JWT.RefreshTTL = a.cfg.RefreshTokenTTL
	cfg.Password.Cost = a.cfg.BcryptCost
	cfg.Security.ProductionMode = a.cfg.Production()
	cfg.Metrics.EnableLatencyHistograms = true
	if a.cfg.StrictValidation {
		cfg.ValidationMode = teamauth.ModeStrict
	}
	return cfg
}

func (a *app) buildEngine(tp trace.TracerProvider, notifier teamauth.Notifier) (*teamauth.Engine, error) {
	b := teamauth.New().
		WithConfig(a.engineConfig()).
		WithDatabase(a.db).
		WithLogger(a.logger).
		WithNotifier(notifier)
	if tp != nil {
		b.WithTracerProvider(tp)
	}
	if a.redis != nil {
		b.WithRedis(a.redis)
	}
	return b.Build()
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if err := teamauth.CloseDatabase(a.db); err != nil {
		a.logger.Warn().Err(err).Msg("close database")
	}
}
