package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/fithub/fithub-api/internal/platform/postgres"
)

// migrationTableName is the goose version table.
const migrationTableName = "schema_migrations"

// migrationCommands are the goose commands accepted by -migrate.
var migrationCommands = map[string]func(ctx context.Context, db *sql.DB, dir string) error{
	"up":    func(ctx context.Context, db *sql.DB, dir string) error { return goose.UpContext(ctx, db, dir) },
	"down":  func(ctx context.Context, db *sql.DB, dir string) error { return goose.DownContext(ctx, db, dir) },
	"redo":  func(ctx context.Context, db *sql.DB, dir string) error { return goose.RedoContext(ctx, db, dir) },
	"reset": func(ctx context.Context, db *sql.DB, dir string) error { return goose.ResetContext(ctx, db, dir) },
	"status": func(ctx context.Context, db *sql.DB, dir string) error {
		return goose.StatusContext(ctx, db, dir)
	},
	"version": func(ctx context.Context, db *sql.DB, dir string) error {
		return goose.VersionContext(ctx, db, dir)
	},
}

// slogGooseLogger forwards goose output to slog. Fatalf logs at ERROR and
// leaves exiting to main.
type slogGooseLogger struct {
	logger *slog.Logger
}

func (l slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// runMigrations executes one goose command against the embedded SQL
// migrations.
func runMigrations(ctx context.Context, db *sql.DB, command string, logger *slog.Logger) error {
	fn, ok := migrationCommands[command]
	if !ok {
		return fmt.Errorf("unknown migration command %q", command)
	}

	log := logger.With(slog.String("component", "migrations"), slog.String("command", command))
	goose.SetLogger(slogGooseLogger{logger: log})
	goose.SetBaseFS(postgres.Migrations)
	goose.SetTableName(migrationTableName)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	log.Info("Executing migrations")
	if err := fn(ctx, db, postgres.MigrationsDir); err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}
	log.Info("Migrations finished")
	return nil
}
