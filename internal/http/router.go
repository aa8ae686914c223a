// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, compression,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/plateful/plate-backend/internal/config"
	"github.com/plateful/plate-backend/internal/domain"
	"github.com/plateful/plate-backend/internal/http/handlers"
	"github.com/plateful/plate-backend/internal/http/middleware"
	"github.com/plateful/plate-backend/internal/repo"
	"github.com/plateful/plate-backend/internal/services"
)

// plateRepoShim adapts the repository free functions to the services.PlateRepo
// interface expected by the PlateService. This keeps services decoupled from
// the concrete repo package while reusing existing functions.
type plateRepoShim struct{}

// UpsertSavedItem proxies repo.UpsertSavedItem.
func (plateRepoShim) UpsertSavedItem(ctx context.Context, db *gorm.DB, userID string, t domain.ItemType, itemID string, metadata []byte) (*domain.SavedItem, error) {
	return repo.UpsertSavedItem(ctx, db, userID, t, itemID, metadata)
}

// GetSavedItemByKey proxies repo.GetSavedItemByKey.
func (plateRepoShim) GetSavedItemByKey(ctx context.Context, db *gorm.DB, userID string, t domain.ItemType, itemID string) (*domain.SavedItem, error) {
	return repo.GetSavedItemByKey(ctx, db, userID, t, itemID)
}

// ListSavedItemsByType proxies repo.ListSavedItemsByType.
func (plateRepoShim) ListSavedItemsByType(ctx context.Context, db *gorm.DB, userID string, t domain.ItemType) ([]domain.SavedItem, error) {
	return repo.ListSavedItemsByType(ctx, db, userID, t)
}

// CountSavedItems proxies repo.CountSavedItems (pagination support).
func (plateRepoShim) CountSavedItems(ctx context.Context, db *gorm.DB, userID string, t domain.ItemType) (int64, error) {
	return repo.CountSavedItems(ctx, db, userID, t)
}

// ListSavedItemsPage proxies repo.ListSavedItemsPage (pagination support).
func (plateRepoShim) ListSavedItemsPage(ctx context.Context, db *gorm.DB, userID string, t domain.ItemType, offset, limit int) ([]domain.SavedItem, error) {
	return repo.ListSavedItemsPage(ctx, db, userID, t, offset, limit)
}

// DeleteSavedItem proxies repo.DeleteSavedItem.
func (plateRepoShim) DeleteSavedItem(ctx context.Context, db *gorm.DB, id, userID string) error {
	return repo.DeleteSavedItem(ctx, db, id, userID)
}

// idemRepoShim adapts the repository free functions to the
// services.IdempotencyRepo interface.
type idemRepoShim struct{}

// GetIdempotencyRecord proxies repo.GetIdempotencyRecord.
func (idemRepoShim) GetIdempotencyRecord(ctx context.Context, db *gorm.DB, tenantID, userID, key string, now time.Time) (*domain.IdempotencyRecord, error) {
	return repo.GetIdempotencyRecord(ctx, db, tenantID, userID, key, now)
}

// CreateIdempotencyRecord proxies repo.CreateIdempotencyRecord.
func (idemRepoShim) CreateIdempotencyRecord(ctx context.Context, db *gorm.DB, tenantID, userID, key, result string, ttl time.Duration) (*domain.IdempotencyRecord, error) {
	return repo.CreateIdempotencyRecord(ctx, db, tenantID, userID, key, result, ttl)
}

// DeleteIdempotencyRecord proxies repo.DeleteIdempotencyRecord.
func (idemRepoShim) DeleteIdempotencyRecord(ctx context.Context, db *gorm.DB, tenantID, userID, key string) error {
	return repo.DeleteIdempotencyRecord(ctx, db, tenantID, userID, key)
}

// SweepExpiredIdempotency proxies repo.SweepExpiredIdempotency.
func (idemRepoShim) SweepExpiredIdempotency(ctx context.Context, db *gorm.DB, tenantID string, now time.Time) (int64, error) {
	return repo.SweepExpiredIdempotency(ctx, db, tenantID, now)
}

// NewIdempotencyService builds the idempotency service used both by the
// router and by the background sweep loop in main.
func NewIdempotencyService(db *gorm.DB, cfg config.Config) *services.IdempotencyService {
	return &services.IdempotencyService{
		DB:         db,
		Repo:       idemRepoShim{},
		TenantID:   cfg.TenantID,
		DefaultTTL: cfg.IdempotencyTTL,
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured logs with header masking
//  4. Recovery: capture panics after logger
//  5. Body size limiter and gzip compression
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per user/IP, bypass on replay)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with masking of credential-bearing headers
	r.Use(middleware.Logger(middleware.LogOptions{
		MaskHeaders: []string{
			"X-API-Key",
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB) and response compression
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotencyRecord(ctx, db, cfg.TenantID, userID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
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
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Idempotency-Replayed", "ETag", "Content-Length"},
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
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Idempotency-Replayed", "ETag", "Content-Length"},
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

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db
	plateSvc := services.NewPlateService(db, plateRepoShim{})
	idemSvc := NewIdempotencyService(db, cfg)
	h := handlers.New(plateSvc, idemSvc)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Plate
		api.POST("/plate/items", h.SaveItem)
		api.POST("/plate/items/check", h.CheckItem)
		api.POST("/plate/items/confirm", h.ConfirmSaveItem)
		api.GET("/plate/items", h.ListItems)
		api.DELETE("/plate/items/:id", h.DeleteItem)
		api.GET("/plate/search", h.SearchItems)

		// Maintenance
		api.POST("/maintenance/idempotency/sweep", h.SweepIdempotency)
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
