package workflow

import (
	"fmt"
	"log/slog"
	"time"

	"dupetag/internal/catalog"
	"dupetag/internal/catalog/sqlitecat"
	"dupetag/internal/catalog/stash"
	"dupetag/internal/config"
)

// OpenCatalog connects to the configured catalog backend. The returned close
// function releases backend resources and is never nil.
func OpenCatalog(cfg *config.Config, logger *slog.Logger) (catalog.Service, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Catalog.Backend {
	case config.BackendStash:
		client, err := stash.New(cfg.Catalog.URL, cfg.Catalog.APIKey,
			stash.WithTimeout(time.Duration(cfg.Catalog.TimeoutSeconds)*time.Second),
			stash.WithLogger(logger),
		)
		if err != nil {
			return nil, noop, err
		}
		return client, noop, nil
	case config.BackendSQLite:
		store, err := sqlitecat.Open(cfg.Catalog.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	default:
		return nil, noop, fmt.Errorf("catalog.backend: unsupported value %q", cfg.Catalog.Backend)
	}
}
