// Package main runs the shelfd server: the background task queue, the
// nightly maintenance scheduler and the HTTP API in front of them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/phrazzld/shelfd/internal/config"
	"github.com/phrazzld/shelfd/internal/platform/logger"
	"github.com/phrazzld/shelfd/internal/platform/telemetry"
)

func main() {
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the configuration, if present")
	migrateCmd := flag.String("migrate", "", "run database migrations (up|down) and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *envFile, *migrateCmd); err != nil {
		log.Fatalf("shelfd: %v", err)
	}
}

func run(ctx context.Context, envFile, migrateCmd string) error {
	if err := loadEnvFile(envFile); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Error("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	appLogger, err := setupAppLogger(cfg)
	if err != nil {
		return err
	}
	appLogger.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("app_mode", cfg.Server.AppMode),
		slog.Bool("telemetry", cfg.Telemetry.Enabled))

	db, err := setupAppDatabase(ctx, cfg.Database.URL, appLogger)
	if err != nil {
		return err
	}

	if migrateCmd != "" {
		defer db.Close()
		return handleMigrations(ctx, db, migrateCmd, appLogger)
	}

	if err := handleMigrations(ctx, db, "up", appLogger); err != nil {
		_ = db.Close()
		return err
	}

	app, err := newApplication(cfg, appLogger, db)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}

// loadEnvFile exports the variables of a dotenv file into the process
// environment. A missing file is not an error. Variables already set win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setupAppLogger installs the default logger. With telemetry enabled, records
// are also bridged to the OpenTelemetry log pipeline.
func setupAppLogger(cfg *config.Config) (*slog.Logger, error) {
	var extra []slog.Handler
	if cfg.Telemetry.Enabled {
		extra = append(extra, telemetry.LogHandler())
	}

	l, err := logger.SetupWithWriter(cfg.Server, os.Stderr, extra...)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return l, nil
}
