package main

import (
	"log/slog"

	"github.com/fithub/fithub-api/internal/config"
	"github.com/fithub/fithub-api/internal/platform/logger"
)

// setupAppLogger installs the application logger as the slog default.
func setupAppLogger(cfg *config.Config) *slog.Logger {
	return logger.Setup(logger.Options{
		Level:  cfg.Server.LogLevel,
		Format: cfg.Server.LogFormat,
	})
}
