// Package docstoretest provides a migrated in-memory SQLite document store for tests.
package docstoretest

import (
	"context"
	"testing"

	"github.com/steamcity/iot-platform/internal/docstore"
	"github.com/steamcity/iot-platform/internal/infrastructure/database"
	_ "github.com/steamcity/iot-platform/migrations" // registers the schema
)

// NewSQLite opens a private in-memory database, applies every migration and
// returns a store on it. The database is closed when the test ends.
func NewSQLite(t testing.TB) *docstore.SQLiteStore {
	t.Helper()

	db := OpenDB(t)
	return docstore.NewSQLiteStore(db.DB)
}

// OpenDB opens and migrates a private in-memory database.
func OpenDB(t testing.TB) *database.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}
