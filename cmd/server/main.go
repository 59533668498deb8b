// Command server runs the ordering backend: the inbound WhatsApp webhook,
// the restaurant dashboard API, and operational endpoints (health, metrics,
// optional Swagger UI).
//
// Startup order:
//  1. Environment (.env is best effort), config load, logger setup
//  2. OpenTelemetry tracing (no-op unless enabled)
//  3. SQLite open, migration, optional demo seed
//  4. Session store sweep and delivery purge housekeeping
//  5. HTTP server with graceful shutdown on SIGINT/SIGTERM
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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/swaadx/go-order-backend/docs"
	"github.com/swaadx/go-order-backend/internal/config"
	httpapi "github.com/swaadx/go-order-backend/internal/http"
	"github.com/swaadx/go-order-backend/internal/observability"
	"github.com/swaadx/go-order-backend/internal/repo"
	"github.com/swaadx/go-order-backend/internal/session"
	"github.com/swaadx/go-order-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

// deliveryPurgeInterval controls how often expired webhook delivery records
// are removed. Dedupe correctness does not depend on this; it only bounds
// table growth.
const deliveryPurgeInterval = time.Hour

// @title          Order Backend API
// @version        1.0
// @description    Conversational WhatsApp food ordering backend with a restaurant dashboard API.
// @BasePath       /api/v1
func main() {
	// .env is a dev convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing (no-op when disabled).
	otelShutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// Storage.
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	if cfg.SeedDemo {
		if err := repo.SeedDemo(db); err != nil {
			log.Fatal().Err(err).Msg("demo seed failed")
		}
	}

	// Session store with background expiry sweep.
	sessions := session.New(cfg.SessionTTL, cfg.SessionSweepInterval)
	sessions.Start()
	defer sessions.Close()

	// Housekeeping: purge expired webhook delivery records.
	go purgeDeliveries(ctx, db)

	// HTTP transport.
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, sessions, cfg)
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
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

	shCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("server stopped")
}

// purgeDeliveries periodically removes expired webhook delivery records
// until ctx is cancelled.
func purgeDeliveries(ctx context.Context, db *gorm.DB) {
	t := time.NewTicker(deliveryPurgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredDeliveries(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("delivery purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("purged", n).Msg("expired deliveries removed")
			}
		}
	}
}
