package testutil

import (
	"testing"

	"github.com/abhibansal60/led-catalog/internal/catalog"
	"github.com/abhibansal60/led-catalog/internal/store"
	"github.com/abhibansal60/led-catalog/internal/store/migrations"
)

// NewTestStore creates a new in-memory SQLite store with the catalog
// schema applied. The store is automatically closed when the test
// completes.
func NewTestStore(t *testing.T) catalog.Store {
	t.Helper()

	sqlDB, err := store.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	if err := migrations.MigrateUp(sqlDB); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	st := store.NewSQLiteStoreFromDB(sqlDB)

	t.Cleanup(func() {
		st.Close()
	})

	return st
}
