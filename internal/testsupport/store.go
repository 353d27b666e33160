package testsupport

import (
	"context"
	"testing"

	"dupetag/internal/catalog/sqlitecat"
	"dupetag/internal/config"
)

// MustOpenCatalog opens the SQLite catalog configured in cfg and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *sqlitecat.Store {
	t.Helper()

	store, err := sqlitecat.Open(cfg.Catalog.SQLitePath)
	if err != nil {
		t.Fatalf("sqlitecat.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// AddScene inserts a scene into store and returns its id.
func AddScene(t testing.TB, store *sqlitecat.Store, input sqlitecat.SceneInput) string {
	t.Helper()

	id, err := store.AddScene(context.Background(), input)
	if err != nil {
		t.Fatalf("store.AddScene: %v", err)
	}
	return id
}
