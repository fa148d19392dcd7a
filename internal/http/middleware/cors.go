package middleware

import (
	"net/http"

	"github.com/chemviz/equipment-api/internal/config"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// downloadHeaders must be readable by browser clients saving a report
var downloadHeaders = []string{"Content-Disposition", "Content-Length", "Content-Type"}

// CORS returns a CORS middleware configured from the application config
func CORS(cfg *config.CORSConfig, environment string, logger *zap.Logger) func(http.Handler) http.Handler {
	options := cors.Options{
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   mergeHeaders(cfg.ExposedHeaders, downloadHeaders),
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}

	allowAny := func(r *http.Request, origin string) bool {
		return origin != ""
	}
	devMode := environment == "development" || environment == "local" || environment == ""

	switch {
	case contains(cfg.AllowedOrigins, "*"):
		if !devMode {
			logger.Warn("CORS configured with wildcard origin in non-development environment",
				zap.String("environment", environment))
		}
		options.AllowOriginFunc = allowAny
	case len(cfg.AllowedOrigins) > 0:
		options.AllowedOrigins = cfg.AllowedOrigins
		logger.Info("CORS configured with explicit origins",
			zap.Strings("origins", cfg.AllowedOrigins))
	case devMode:
		options.AllowOriginFunc = allowAny
		logger.Info("CORS configured to allow all origins in development mode")
	default:
		// An empty AllowedOrigins means "*" to go-chi/cors, so deny explicitly
		options.AllowOriginFunc = func(r *http.Request, origin string) bool {
			return false
		}
		logger.Warn("CORS configured with no allowed origins - all cross-origin requests will be denied",
			zap.String("environment", environment))
	}

	return cors.Handler(options)
}

func mergeHeaders(configured, required []string) []string {
	merged := append([]string{}, configured...)
	for _, h := range required {
		if !contains(merged, h) {
			merged = append(merged, h)
		}
	}
	return merged
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
