package testsupport

import (
	"path/filepath"
	"testing"

	"dupetag/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults to the SQLite backend so no server is contacted.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Catalog.Backend = config.BackendSQLite
	cfgVal.Catalog.SQLitePath = filepath.Join(base, "state", "catalog.db")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithPriority overrides the comparator order.
func WithPriority(names ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Duplicates.Priority = append([]string(nil), names...)
	}
}

// WithIgnorePaths sets the ignored directory prefixes.
func WithIgnorePaths(paths ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Duplicates.IgnorePaths = append([]string(nil), paths...)
	}
}

// WithUnknownTag overrides the unknown tag name; empty disables it.
func WithUnknownTag(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Duplicates.UnknownTag = name
	}
}

// WithTitleTemplate overrides the title template.
func WithTitleTemplate(tmpl string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Duplicates.TitleTemplate = tmpl
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
