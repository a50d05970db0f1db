package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/phrazzld/shelfd/internal/platform/postgres"
)

const pingTimeout = 5 * time.Second

// openDatabase opens and configures a connection pool without checking it.
func openDatabase(url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// setupAppDatabase opens the library database and verifies it answers.
func setupAppDatabase(ctx context.Context, url string, logger *slog.Logger) (*sql.DB, error) {
	db, err := openDatabase(url)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")
	return db, nil
}

// reopenFunc returns the function the library store uses to replace its
// connection pool when the reconnect task runs.
func reopenFunc(url string) postgres.OpenFunc {
	return func(ctx context.Context) (*sql.DB, error) {
		return openDatabase(url)
	}
}

// handleMigrations runs the goose migrations in the given direction.
func handleMigrations(ctx context.Context, db *sql.DB, direction string, logger *slog.Logger) error {
	switch direction {
	case "up":
		if err := postgres.Migrate(ctx, db, logger); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
	case "down":
		if err := postgres.MigrateDown(ctx, db, logger); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
	default:
		return fmt.Errorf("unknown migration command %q, want up or down", direction)
	}
	return nil
}
