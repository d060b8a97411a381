// Integration tests for the store package run against PostgreSQL and skip
// when it is unreachable.
package store

import (
	"database/sql"
	"os"
	"testing"

	"classifieds/internal/database"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB connects with the POSTGRES_* variables (docker-compose defaults),
// applies migrations and closes the pool when the test ends.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := "postgres://" + envOr("POSTGRES_USER", "classifieds") + ":" +
		envOr("POSTGRES_PASSWORD", "changeme") + "@" +
		envOr("POSTGRES_HOST", "localhost") + ":" + envOr("POSTGRES_PORT", "5432") + "/" +
		envOr("POSTGRES_DB", "classifieds") + "?sslmode=disable&connect_timeout=2"

	db, err := database.Connect(dsn)
	if err != nil {
		t.Skipf("skipping integration test: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// cleanNodes deletes test rows from table. ids are listed parents first, so
// they are removed in reverse to satisfy ON DELETE RESTRICT.
func cleanNodes(t *testing.T, db *sql.DB, table string, ids ...int64) {
	t.Helper()
	for i := len(ids) - 1; i >= 0; i-- {
		db.Exec("DELETE FROM "+table+" WHERE id = $1", ids[i])
	}
}
