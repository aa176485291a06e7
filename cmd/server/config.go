package main

import (
	"fmt"
	"log/slog"

	"github.com/fithub/fithub-api/internal/config"
)

// loadAppConfig loads configuration from path, the working directory and
// FITHUB_ environment variables.
func loadAppConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)
	slog.Debug("Backing services configured",
		"storage_bucket", cfg.Storage.Bucket,
		"redis_addr", cfg.Redis.Addr,
		"kafka_brokers", len(cfg.Kafka.Brokers))
	return cfg, nil
}
