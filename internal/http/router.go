// Package httpapi wires the Gin engine: middleware ordering, health and
// metrics endpoints, and the versioned ledger API.
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
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/izikdepth/MemeBot/internal/config"
	"github.com/izikdepth/MemeBot/internal/domain"
	"github.com/izikdepth/MemeBot/internal/http/handlers"
	"github.com/izikdepth/MemeBot/internal/http/middleware"
	"github.com/izikdepth/MemeBot/internal/repo"
)

// Deps are the collaborators RegisterRoutes needs. DB backs the health check
// and the idempotency lookup.
type Deps struct {
	DB       *gorm.DB
	Services handlers.Services
}

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. Logger
//  4. Recovery
//  5. Body size limit
//  6. Metrics
//  7. gzip
//  8. CORS (only with an origin allowlist) and security headers
//
// Everything under the API base path except /admin requires the service
// token, so user ids in headers and bodies come from the gateway. Rate
// limiting is applied per route group so /activity can consult the
// idempotency store first and let known replays through.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))
	r.Use(middleware.Metrics())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	if len(cfg.CORS.AllowedOrigins) > 0 {
		r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))
	}
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{NoStore: true}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", health(deps.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := handlers.New(deps.Services)
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())

	api := groupWithPrefix(r, cfg.APIBasePath)
	svc := api.Group("", middleware.ServiceToken(cfg.ServiceToken))

	// Activity: idempotency lookup runs before the limiter.
	svc.POST("/activity",
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{Source: domain.SourceChat}, processedLookup(deps.DB)),
		rl.Handler(),
		h.RecordActivity,
	)

	limited := svc.Group("", rl.Handler())
	{
		limited.POST("/claims", h.SubmitClaim)

		limited.POST("/games/connect4", h.StartConnect4)
		limited.POST("/games/connect4/:id/moves", h.MoveConnect4)
		limited.POST("/games/tictactoe", h.StartTicTacToe)
		limited.POST("/games/tictactoe/:id/moves", h.MoveTicTacToe)
		limited.POST("/games/:id/forfeit", h.ForfeitGame)
		limited.GET("/games/:id", h.GetGame)

		limited.GET("/users/:id", h.GetUser)
		limited.GET("/leaderboard", h.Leaderboard)
		limited.GET("/daily/:date", h.DailySummary)
	}

	admin := api.Group("/admin", middleware.AdminToken(cfg.AdminToken))
	{
		admin.POST("/refresh", h.RunRefresh)
		admin.POST("/remind", h.RunReminder)
	}
}

// processedLookup reports whether an event key is already in the ledger.
func processedLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, source, key string, now time.Time) (bool, error) {
		if db == nil {
			return false, nil
		}
		_, err := repo.GetProcessedEvent(ctx, db, source, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}
}

// health pings the database with a short deadline.
func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				handlers.Fail(c, http.StatusServiceUnavailable, "unavailable", "database unreachable")
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// corsMiddleware allows only the configured origins. Without an allowlist
// no CORS headers are sent and browsers keep the same-origin policy.
func corsMiddleware(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept",
			middleware.UserIDHeader, middleware.ServiceTokenHeader, middleware.AdminTokenHeader,
			middleware.HeaderIdempotencyKey,
		},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})
}

// limitBody caps request bodies; oversized reads fail downstream.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix treats "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
