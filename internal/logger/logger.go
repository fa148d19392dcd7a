package logger

import (
	"fmt"

	"github.com/chemviz/equipment-api/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a new structured logger
func NewLogger(cfg *config.LoggingConfig, appCfg *config.AppConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" || appCfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	zapCfg.InitialFields = map[string]interface{}{
		"app":         appCfg.Name,
		"environment": appCfg.Environment,
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return logger, nil
}

// WithDataset adds dataset context to logger
func WithDataset(logger *zap.Logger, userID, datasetID uint) *zap.Logger {
	return logger.With(
		zap.Uint("user_id", userID),
		zap.Uint("dataset_id", datasetID),
	)
}

// WithUser adds user context to logger
func WithUser(logger *zap.Logger, userID uint, username string) *zap.Logger {
	return logger.With(
		zap.Uint("user_id", userID),
		zap.String("username", username),
	)
}
