// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, webhook dedupe, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/swaadx/go-order-backend/internal/config"
	"github.com/swaadx/go-order-backend/internal/dialogue"
	"github.com/swaadx/go-order-backend/internal/domain"
	"github.com/swaadx/go-order-backend/internal/http/handlers"
	"github.com/swaadx/go-order-backend/internal/http/middleware"
	"github.com/swaadx/go-order-backend/internal/repo"
	"github.com/swaadx/go-order-backend/internal/services"
	"github.com/swaadx/go-order-backend/internal/session"
)

// restaurantShim adapts the repository free functions to the
// dialogue.RestaurantResolver interface. It translates repo.ErrNotFound into
// dialogue.ErrNotFound so the dialogue package stays decoupled from gorm.
type restaurantShim struct{ db *gorm.DB }

// ResolveRestaurant proxies repo.ResolveRestaurant.
func (s restaurantShim) ResolveRestaurant(ctx context.Context, whatsappNumber string) (*domain.Restaurant, error) {
	r, err := repo.ResolveRestaurant(ctx, s.db, whatsappNumber)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, dialogue.ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

// menuShim adapts the repository free functions to dialogue.MenuResolver,
// with the same error translation as restaurantShim.
type menuShim struct{ db *gorm.DB }

// ListActiveMenu proxies repo.ListActiveMenu.
func (s menuShim) ListActiveMenu(ctx context.Context, restaurantID string) ([]domain.MenuItem, error) {
	return repo.ListActiveMenu(ctx, s.db, restaurantID)
}

// LookupMenuItem proxies repo.LookupMenuItem.
func (s menuShim) LookupMenuItem(ctx context.Context, restaurantID string, itemNo int) (*domain.MenuItem, error) {
	item, err := repo.LookupMenuItem(ctx, s.db, restaurantID, itemNo)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, dialogue.ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), webhook dedupe and
// rate limiting, CORS and security headers, health and metrics endpoints, and
// then mounts the webhook and the versioned dashboard API.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Webhook dedupe (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per sender/restaurant/IP, bypass on replay)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, sessions *session.Store, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction (webhook forms carry phone numbers,
	// dashboard requests carry tokens)
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			middleware.HeaderDashboardToken,
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (64 KiB; inbound messages are small forms)
	r.Use(limitBody(64 << 10))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Webhook dedupe (before rate limiting so replays bypass the bucket)
	r.Use(middleware.WebhookDedupe(
		middleware.DedupeOptions{},
		func(ctx context.Context, messageSid string, now time.Time) (string, bool, error) {
			rec, err := repo.GetWebhookDelivery(ctx, db, messageSid, now)
			if err != nil || rec == nil {
				return "", false, nil
			}
			return rec.Reply, true, nil
		},
	))

	// 8) Token-bucket rate limiter per sender/restaurant/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyBySenderOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.HeaderDashboardToken},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.HeaderDashboardToken},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Compress dashboard JSON; TwiML replies are too small to matter but gzip
	// negotiation is harmless for them.
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health and a small landing banner
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": cfg.OTEL.ServiceName, "status": "ok"})
	})

	// Dependency injection: engine and services ← repo/db/store
	orderSvc := &services.OrderService{
		DB:             db,
		TaxRate:        decimal.NewFromFloat(cfg.TaxRate),
		StorageTimeout: cfg.StorageTimeout,
	}
	engine := &dialogue.Engine{
		Sessions:       sessions,
		Restaurants:    restaurantShim{db: db},
		Menus:          menuShim{db: db},
		Orders:         orderSvc,
		TaxRate:        decimal.NewFromFloat(cfg.TaxRate),
		StorageTimeout: cfg.StorageTimeout,
	}
	boardSvc := &services.DashboardService{DB: db}

	// Inbound messaging webhook
	wh := handlers.NewWebhook(engine,
		func(ctx context.Context, messageSid, restaurantID, phone, reply string) error {
			_, err := repo.CreateWebhookDelivery(ctx, db, messageSid, restaurantID, phone, reply, cfg.DedupeTTL)
			if err != nil && !errors.Is(err, repo.ErrDuplicate) {
				return err
			}
			return nil
		},
	)
	r.POST("/whatsapp", wh.Receive)

	// Restaurant dashboard API
	dh := handlers.NewDashboard(boardSvc)
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	// Order listings carry customer addresses; keep them out of caches.
	noStore := func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Cache-Control", "no-store")
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "0")
		c.Next()
	}
	dash := api.Group("/dashboard", noStore, middleware.DashboardAuth(
		func(ctx context.Context, token string) (string, bool, error) {
			rest, err := repo.AuthenticateDashboardToken(ctx, db, token)
			if err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return "", false, nil
				}
				return "", false, err
			}
			return rest.ID, true, nil
		},
	))
	{
		dash.GET("/orders", dh.ListOrders)
		dash.PATCH("/orders/:id/status", dh.UpdateOrderStatus)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
