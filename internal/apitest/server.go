// Package apitest assembles the full HTTP stack over an in-memory database for end-to-end tests.
package apitest

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chemviz/equipment-api/internal/auth"
	"github.com/chemviz/equipment-api/internal/config"
	"github.com/chemviz/equipment-api/internal/http/handler"
	"github.com/chemviz/equipment-api/internal/http/middleware"
	"github.com/chemviz/equipment-api/internal/http/router"
	"github.com/chemviz/equipment-api/internal/repository"
	"github.com/chemviz/equipment-api/internal/service"
	"github.com/chemviz/equipment-api/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Env is a running API with direct access to its database
type Env struct {
	Server *httptest.Server
	DB     *gorm.DB
	Config *config.Config
}

// Config returns settings suitable for tests: sqlite, no rate limiting, no jobs
func Config() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "Equipment Parameter API", Environment: "development"},
		Database: config.DatabaseConfig{Driver: "sqlite"},
		Auth: config.AuthConfig{
			TokenSecret:   "apitest-secret",
			TokenTTLHours: 1,
			SessionStore:  "database",
		},
		Datasets: config.DatasetsConfig{
			RetentionCap:      5,
			MaxRows:           10000,
			MaxUploadSizeMB:   10,
			AllowedExtensions: []string{".csv"},
			ReportMaxRows:     50,
		},
		CORS: config.CORSConfig{
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		},
		Security: config.SecurityConfig{
			ContentTypeNosniff: true,
			FrameOptions:       "DENY",
		},
		RateLimit: config.RateLimitConfig{Enabled: false},
	}
}

// Handler builds the routed handler over db
func Handler(t *testing.T, cfg *config.Config, db *gorm.DB) http.Handler {
	t.Helper()
	logger := zap.NewNop()

	tokens, err := auth.NewTokenManager(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL())
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(db)
	sessions := auth.NewDBSessionStore(repository.NewSessionRepository(db))

	authService := service.NewAuthService(userRepo, sessions, tokens, logger)
	datasetService := service.NewDatasetService(repository.NewDatasetRepository(db), nil, &cfg.Datasets, logger)

	rt := router.NewRouter(
		cfg,
		logger,
		db,
		nil,
		auth.NewMiddleware(tokens, sessions, userRepo, logger),
		middleware.NewRateLimiter(&cfg.RateLimit, logger),
		handler.NewIndexHandler(cfg.App.Name, "test"),
		handler.NewAuthHandler(authService, logger, cfg.App.Debug),
		handler.NewDatasetHandler(datasetService, logger, cfg.App.Debug),
	)
	return rt.Setup()
}

// NewEnv starts a test server with the default test configuration
func NewEnv(t *testing.T) *Env {
	t.Helper()
	cfg := Config()
	db := testutil.SetupTestDB(t)
	srv := httptest.NewServer(Handler(t, cfg, db))
	t.Cleanup(srv.Close)
	return &Env{Server: srv, DB: db, Config: cfg}
}
