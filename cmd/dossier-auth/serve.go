package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dossier-crm/teamauth"
	"github.com/dossier-crm/teamauth/internal/httpapi"
	"github.com/dossier-crm/teamauth/internal/telemetry"
	otelexport "github.com/dossier-crm/teamauth/metrics/export/otel"
	promexport "github.com/dossier-crm/teamauth/metrics/export/prometheus"
	"github.com/dossier-crm/teamauth/notify"
	"github.com/spf13/cobra"
)

func newServeCommand(envFile *string) *cobra.Command {
	var (
		migrate       bool
		purgeInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the auth HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), *envFile, migrate, purgeInterval)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply schema migrations before serving")
	cmd.Flags().DurationVar(&purgeInterval, "purge-interval", time.Hour, "How often expired sessions are purged; 0 disables")
	return cmd
}

func serve(ctx context.Context, envFile string, migrate bool, purgeInterval time.Duration) error {
	a, err := loadApp(ctx, envFile)
	if err != nil {
		return err
	}
	defer a.close()

	if migrate {
		if err := teamauth.Migrate(ctx, a.db); err != nil {
			return err
		}
	}

	tp, shutdownTracing, err := telemetry.InitTracing(ctx, serviceName, a.cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			a.logger.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	var notifier teamauth.Notifier = notify.NewLog(a.logger, !a.cfg.Production())
	if a.cfg.NATSURL != "" {
		pub, err := notify.Connect(a.cfg.NATSURL, a.cfg.NATSSubject)
		if err != nil {
			return err
		}
		defer pub.Close()
		if err := pub.EnsureStream(ctx, 7*24*time.Hour); err != nil {
			return err
		}
		notifier = pub
	}

	engine, err := a.buildEngine(tp, notifier)
	if err != nil {
		return err
	}
	defer engine.Close()

	report := engine.SecurityReport()
	a.logger.Info().
		Bool("production", report.ProductionMode).
		Bool("strict_validation", report.StrictMode).
		Bool("rate_limiting", report.RateLimitingActive).
		Bool("audit", report.AuditActive).
		Int("bcrypt_cost", report.Bcrypt.Cost).
		Dur("access_ttl", report.AccessTTL).
		Dur("refresh_ttl", report.RefreshTTL).
		Msg("security posture")

	if a.cfg.OTLPEndpoint != "" {
		mp, shutdownMetrics, err := telemetry.InitMetrics(ctx, serviceName, a.cfg.OTLPEndpoint, time.Minute)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownMetrics(shutdownCtx); err != nil {
				a.logger.Warn().Err(err).Msg("meter shutdown")
			}
		}()
		meterExporter, err := otelexport.NewExporter(mp.Meter(serviceName), engine)
		if err != nil {
			return err
		}
		defer meterExporter.Close()
	}

	server := httpapi.NewServer(engine, httpapi.Options{
		Production:     a.cfg.Production(),
		AllowedOrigins: a.cfg.AllowedOrigins,
		AuthRateLimit:  a.cfg.AuthRateLimit,
		ServiceName:    serviceName,
		Metrics:        promexport.Handler(engine),
	}, a.logger)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if purgeInterval > 0 {
		go purgeLoop(ctx, engine, purgeInterval, a)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", srv.Addr).Bool("production", a.cfg.Production()).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func purgeLoop(ctx context.Context, engine *teamauth.Engine, every time.Duration, a *app) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := engine.PurgeExpiredSessions(ctx); err != nil {
				a.logger.Warn().Err(err).Msg("purge expired sessions")
			}
		}
	}
}
