// Command server runs the plate backend HTTP API.
//
// Startup order:
//  1. Load .env (best effort) and the environment configuration.
//  2. Configure global logging (level, optional pretty console output).
//  3. Open SQLite, run migrations, and set up OpenTelemetry.
//  4. Register routes and serve until SIGINT/SIGTERM, then drain gracefully.
//
// A background loop sweeps expired idempotency records on a configurable
// interval so the table does not grow without bound between deployments.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/plateful/plate-backend/docs"
	"github.com/plateful/plate-backend/internal/config"
	httpapi "github.com/plateful/plate-backend/internal/http"
	"github.com/plateful/plate-backend/internal/observability"
	"github.com/plateful/plate-backend/internal/repo"
	"github.com/plateful/plate-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Optional .env for local development; missing files are fine.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	// Deployment platforms may stamp the version via env instead of ldflags.
	if v := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version); v != "" {
		version = v
	}

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty || sysutil.IsTruthy(os.Getenv("DEV")) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	gin.SetMode(cfg.GinMode)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("set up tracing")
	}

	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, cfg)

	// Periodic cleanup of expired idempotency records.
	if cfg.IdemSweepEvery > 0 {
		idemSvc := httpapi.NewIdempotencyService(db, cfg)
		go func() {
			ticker := time.NewTicker(cfg.IdemSweepEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, err := idemSvc.SweepExpired(ctx); err != nil {
						log.Warn().Err(err).Msg("idempotency sweep failed")
					}
				}
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(drainCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	if err := shutdownOTel(drainCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
	log.Info().Msg("server stopped")
}
