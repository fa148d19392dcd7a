package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/chemviz/equipment-api/internal/auth"
	"github.com/chemviz/equipment-api/internal/config"
	"github.com/chemviz/equipment-api/internal/database"
	"github.com/chemviz/equipment-api/internal/http/handler"
	"github.com/chemviz/equipment-api/internal/http/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/chemviz/equipment-api/docs" // Import swagger docs
)

type Router struct {
	cfg            *config.Config
	logger         *zap.Logger
	db             *gorm.DB
	redis          redis.UniversalClient
	authMiddleware *auth.Middleware
	rateLimiter    *middleware.RateLimiter
	indexHandler   *handler.IndexHandler
	authHandler    *handler.AuthHandler
	datasetHandler *handler.DatasetHandler
}

// NewRouter wires the handlers into routes. redisClient is nil unless sessions live in redis.
func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	redisClient redis.UniversalClient,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	indexHandler *handler.IndexHandler,
	authHandler *handler.AuthHandler,
	datasetHandler *handler.DatasetHandler,
) *Router {
	return &Router{
		cfg:            cfg,
		logger:         logger,
		db:             db,
		redis:          redisClient,
		authMiddleware: authMiddleware,
		rateLimiter:    rateLimiter,
		indexHandler:   indexHandler,
		authHandler:    authHandler,
		datasetHandler: datasetHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)
	if timeout := rt.cfg.Server.RequestTimeoutDuration(); timeout > 0 {
		r.Use(chimw.Timeout(timeout))
	}

	// Health check (basic liveness probe)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Database health check with pool stats
	r.Get("/health/db", func(w http.ResponseWriter, r *http.Request) {
		stats, err := database.HealthCheckWithStats(rt.db)
		if err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			writeHealth(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status":  "unhealthy",
				"error":   err.Error(),
				"service": "database",
			})
			return
		}

		writeHealth(w, http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"service": "database",
			"stats": map[string]interface{}{
				"max_open_connections": stats.MaxOpenConnections,
				"open_connections":     stats.OpenConnections,
				"in_use":               stats.InUse,
				"idle":                 stats.Idle,
				"wait_count":           stats.WaitCount,
				"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
				"max_idle_closed":      stats.MaxIdleClosed,
				"max_lifetime_closed":  stats.MaxLifetimeClosed,
			},
		})
	})

	// Combined readiness check (checks all dependencies)
	r.Get("/health/ready", rt.ready)

	// Swagger documentation
	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	r.Get("/", rt.indexHandler.Index)

	r.Route("/api", func(r chi.Router) {
		r.Get("/", rt.indexHandler.Index)

		// Public routes
		r.Post("/auth/register", rt.authHandler.Register)
		r.Post("/auth/login", rt.authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.Authenticate)
			r.Use(middleware.CaptureUser)
			r.Use(rt.rateLimiter.LimitByUser)

			r.Post("/auth/logout", rt.authHandler.Logout)
			r.Get("/auth/user", rt.authHandler.User)

			r.Post("/upload", rt.datasetHandler.Upload)

			r.Route("/datasets", func(r chi.Router) {
				r.Get("/", rt.datasetHandler.List)
				r.Get("/{id}", rt.datasetHandler.Get)
				r.Delete("/{id}", rt.datasetHandler.Delete)
				r.Get("/{id}/summary", rt.datasetHandler.Summary)
				r.Get("/{id}/report/pdf", rt.datasetHandler.ReportPDF)
			})
		})
	})

	return r
}

func (rt *Router) ready(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]interface{})
	allHealthy := true

	if err := database.HealthCheck(rt.db); err != nil {
		rt.logger.Error("Database health check failed", zap.Error(err))
		checks["database"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
		allHealthy = false
	} else {
		checks["database"] = map[string]interface{}{"status": "healthy"}
	}

	if rt.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := rt.redis.Ping(ctx).Err()
		cancel()
		if err != nil {
			rt.logger.Error("Redis health check failed", zap.Error(err))
			checks["redis"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
			allHealthy = false
		} else {
			checks["redis"] = map[string]interface{}{"status": "healthy"}
		}
	}

	status, label := http.StatusOK, "healthy"
	if !allHealthy {
		status, label = http.StatusServiceUnavailable, "unhealthy"
	}
	writeHealth(w, status, map[string]interface{}{
		"status": label,
		"checks": checks,
	})
}

func writeHealth(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
