package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chemviz/equipment-api/docs"
	"github.com/chemviz/equipment-api/internal/auth"
	"github.com/chemviz/equipment-api/internal/config"
	"github.com/chemviz/equipment-api/internal/database"
	"github.com/chemviz/equipment-api/internal/http/handler"
	"github.com/chemviz/equipment-api/internal/http/middleware"
	"github.com/chemviz/equipment-api/internal/http/router"
	"github.com/chemviz/equipment-api/internal/jobs"
	"github.com/chemviz/equipment-api/internal/logger"
	"github.com/chemviz/equipment-api/internal/repository"
	"github.com/chemviz/equipment-api/internal/service"
	"github.com/chemviz/equipment-api/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// @title Chemical Equipment Parameter API
// @version 1.0
// @description Upload equipment parameter CSVs, browse the last five datasets and export PDF reports

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bearer token issued by /auth/login ("Bearer <token>" or "Token <token>")

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	if host := os.Getenv("SWAGGER_HOST"); host != "" {
		docs.SwaggerInfo.Host = host
	} else {
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	}

	// In staging/production secrets may come from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Warn("Error closing database", zap.Error(err))
		}
	}()

	// Raw uploads are archived only when enabled
	var archive storage.Storage
	if cfg.Datasets.ArchiveUploads {
		archive, err = storage.NewStorage(&cfg.Storage, log)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		log.Info("Upload archive initialized", zap.String("mode", cfg.Storage.Mode))
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	datasetRepo := repository.NewDatasetRepository(db)

	// Sessions live in the database unless redis is configured
	var (
		sessions    auth.SessionStore
		redisClient redis.UniversalClient
	)
	switch cfg.Auth.SessionStore {
	case "redis":
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Auth.RedisAddr,
			Password: cfg.Auth.RedisPassword,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer func() { _ = redisClient.Close() }()
		sessions = auth.NewRedisSessionStore(redisClient)
	default:
		sessions = auth.NewDBSessionStore(repository.NewSessionRepository(db))
	}
	log.Info("Session store initialized", zap.String("store", cfg.Auth.SessionStore))

	tokens, err := auth.NewTokenManager(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL())
	if err != nil {
		return fmt.Errorf("failed to initialize token manager: %w", err)
	}

	// Services
	authService := service.NewAuthService(userRepo, sessions, tokens, log)
	datasetService := service.NewDatasetService(datasetRepo, archive, &cfg.Datasets, log)

	// Middleware
	authMiddleware := auth.NewMiddleware(tokens, sessions, userRepo, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	// Handlers
	indexHandler := handler.NewIndexHandler(cfg.App.Name, docs.SwaggerInfo.Version)
	authHandler := handler.NewAuthHandler(authService, log, cfg.App.Debug)
	datasetHandler := handler.NewDatasetHandler(datasetService, log, cfg.App.Debug)

	rt := router.NewRouter(
		cfg,
		log,
		db,
		redisClient,
		authMiddleware,
		rateLimiter,
		indexHandler,
		authHandler,
		datasetHandler,
	)

	// Background maintenance
	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(log)
		if cfg.Jobs.RetentionSweepEnabled {
			if err := jobs.RegisterRetentionSweepJob(scheduler, datasetService, log, cfg.Jobs.RetentionSweepCron, true); err != nil {
				log.Error("Failed to register retention sweep job", zap.Error(err))
			}
		}
		if err := jobs.RegisterSessionPurgeJob(scheduler, authService, log, cfg.Jobs.SessionPurgeCron); err != nil {
			log.Error("Failed to register session purge job", zap.Error(err))
		}
		scheduler.Start()
	} else {
		log.Info("Background jobs disabled")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		if scheduler != nil {
			<-scheduler.Stop().Done()
			log.Info("Scheduler stopped")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
