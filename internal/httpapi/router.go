// Package httpapi wires the ops HTTP transport (Gin) to the relay's read
// paths, middleware, and route handlers. It centralizes cross-cutting
// concerns such as tracing, correlation IDs, logging, panic recovery,
// metrics, CORS, security headers, compression, and rate limiting.
//
// The ops API is strictly read-only: operators inspect threads, responders,
// and blocks here, while every write flows through the dispatcher.
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

	"github.com/councilbot/go-relay-backend/internal/config"
	"github.com/councilbot/go-relay-backend/internal/domain"
	"github.com/councilbot/go-relay-backend/internal/httpapi/handlers"
	"github.com/councilbot/go-relay-backend/internal/httpapi/middleware"
	"github.com/councilbot/go-relay-backend/internal/repo"
	"github.com/councilbot/go-relay-backend/internal/services"
)

// responderSvcShim adapts the repository free functions to the
// handlers.ResponderService interface. This keeps handlers decoupled from
// the concrete repo package while reusing existing functions.
type responderSvcShim struct {
	db *gorm.DB
}

// List proxies repo.ListResponders.
func (s responderSvcShim) List(ctx context.Context) ([]domain.Responder, error) {
	return repo.ListResponders(ctx, s.db)
}

// Blocks verifies the responder exists, then proxies repo.ListBlocks.
func (s responderSvcShim) Blocks(ctx context.Context, responderID string) ([]domain.Block, error) {
	if _, err := repo.GetResponder(ctx, s.db, responderID); err != nil {
		return nil, err
	}
	return repo.ListBlocks(ctx, s.db, responderID)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting,
// CORS and security headers, health and metrics endpoints, and then mounts
// the versioned ops API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per IP)
//  8. CORS and Security headers
//  9. gzip compression
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured access logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (64 KiB; the ops API only reads)
	r.Use(limitBody(64 << 10))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per IP
	rl := middleware.NewRateLimiter(cfg.HTTPRateRPS, cfg.HTTPRateBurst, middleware.KeyByIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
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

	// 9) Compress listing responses
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (disabled by default)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db
	threadSvc := &services.ThreadService{DB: db, MaxMessageRunes: cfg.MaxMsgRunes}
	h := handlers.New(threadSvc, responderSvcShim{db: db})

	// Ops API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/threads", h.ListThreads)
		api.GET("/threads/:id/messages", h.ListThreadMessages)
		api.GET("/responders", h.ListResponders)
		api.GET("/responders/:id/blocks", h.ListResponderBlocks)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader.
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
