package testdb

import (
	"context"
	"database/sql"
	"net/url"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/phrazzld/shelfd/internal/platform/logger"
	"github.com/phrazzld/shelfd/internal/platform/postgres"
	"github.com/stretchr/testify/require"
)

// TestTimeout defines a default timeout for test database operations.
const TestTimeout = 10 * time.Second

// Environment variables checked for a test database, in order.
var urlEnvVars = []string{"DATABASE_URL", "SHELF_TEST_DB_URL", "SHELF_DATABASE_URL"}

// GetTestDatabaseURL returns the first configured test database URL.
func GetTestDatabaseURL() string {
	for _, name := range urlEnvVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// IsIntegrationTestEnvironment reports whether a test database is configured.
func IsIntegrationTestEnvironment() bool {
	return GetTestDatabaseURL() != ""
}

// GetTestDB opens the test database, applies migrations and empties the
// library tables. The test is skipped when no database is configured.
func GetTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		t.Skip("no test database configured")
	}

	db, err := sql.Open("pgx", dbURL)
	require.NoError(t, err, "failed to open database %s", MaskDatabaseURL(dbURL))
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	require.NoError(t, db.PingContext(ctx), "database not reachable at %s", MaskDatabaseURL(dbURL))

	log, _ := logger.NewBufferLogger()
	require.NoError(t, postgres.Migrate(ctx, db, log), "failed to run migrations")

	Reset(t, db)
	return db
}

// Reset empties every library table and restarts the id sequences.
func Reset(t *testing.T, db *sql.DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	_, err := db.ExecContext(ctx, `
		TRUNCATE thumbnails, metadata_dirtied, book_formats, books, series
		RESTART IDENTITY CASCADE
	`)
	require.NoError(t, err, "failed to reset library tables")
}

// MaskDatabaseURL replaces the password in dbURL for log output.
func MaskDatabaseURL(dbURL string) string {
	parsed, err := url.Parse(dbURL)
	if err != nil {
		return "invalid-url"
	}
	if parsed.User != nil {
		parsed.User = url.UserPassword(parsed.User.Username(), "****")
	}
	return parsed.String()
}
