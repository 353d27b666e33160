package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"dupetag/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("DUPETAG_API_KEY", "env-key")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "dupetag")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Catalog.SQLitePath != filepath.Join(wantState, "catalog.db") {
		t.Fatalf("unexpected sqlite path: %q", cfg.Catalog.SQLitePath)
	}
	if cfg.Catalog.APIKey != "env-key" {
		t.Fatalf("expected API key from env, got %q", cfg.Catalog.APIKey)
	}
	if cfg.Catalog.Backend != config.BackendStash {
		t.Fatalf("unexpected backend: %q", cfg.Catalog.Backend)
	}
	if got := strings.Join(cfg.Duplicates.Priority, ","); got != "resolution,bitrate,codec,size,age" {
		t.Fatalf("unexpected priority: %s", got)
	}
	if rank, ok := cfg.Duplicates.CodecPriority["HEVC"]; !ok || rank != 1 {
		t.Fatalf("expected HEVC rank 1, got %d (%v)", rank, ok)
	}
	if cfg.Duplicates.TitleTemplate != config.DefaultTitleTemplate {
		t.Fatalf("unexpected title template: %q", cfg.Duplicates.TitleTemplate)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	if info, err := os.Stat(cfg.Paths.StateDir); err != nil || !info.IsDir() {
		t.Fatalf("expected state dir to exist: %v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "dupetag.toml")

	type payload struct {
		Catalog struct {
			Backend    string `toml:"backend"`
			SQLitePath string `toml:"sqlite_path"`
		} `toml:"catalog"`
		Duplicates struct {
			IgnorePaths []string `toml:"ignore_paths"`
			Priority    []string `toml:"priority"`
			UnknownTag  string   `toml:"unknown_tag"`
		} `toml:"duplicates"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Catalog.Backend = "SQLite"
	custom.Catalog.SQLitePath = filepath.Join(tempDir, "cat.db")
	custom.Duplicates.IgnorePaths = []string{"/media/keep/", " ", "/media/raw"}
	custom.Duplicates.Priority = []string{" Size ", "codec"}
	custom.Duplicates.UnknownTag = ""
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Catalog.Backend != config.BackendSQLite {
		t.Fatalf("expected sqlite backend, got %q", cfg.Catalog.Backend)
	}
	if got := strings.Join(cfg.Duplicates.IgnorePaths, ","); got != "/media/keep,/media/raw" {
		t.Fatalf("unexpected ignore paths: %s", got)
	}
	if got := strings.Join(cfg.Duplicates.Priority, ","); got != "size,codec" {
		t.Fatalf("unexpected priority: %s", got)
	}
	if cfg.Duplicates.UnknownTag != "" {
		t.Fatalf("expected unknown tag disabled, got %q", cfg.Duplicates.UnknownTag)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json format, got %q", cfg.Logging.Format)
	}
}

func TestEnvOverridesCatalogURLAndLogLevel(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DUPETAG_CATALOG_URL", "https://stash.example.com/graphql")
	t.Setenv("DUPETAG_LOG_LEVEL", "DEBUG")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Catalog.URL != "https://stash.example.com/graphql" {
		t.Fatalf("unexpected url: %q", cfg.Catalog.URL)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected level: %q", cfg.Logging.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown backend", func(c *config.Config) { c.Catalog.Backend = "mysql" }, "catalog.backend"},
		{"relative url", func(c *config.Config) { c.Catalog.URL = "localhost" }, "catalog.url"},
		{"empty keep tag", func(c *config.Config) { c.Duplicates.KeepTag = "" }, "duplicates.keep_tag"},
		{"shared tag", func(c *config.Config) { c.Duplicates.RemoveTag = c.Duplicates.KeepTag }, "different tag names"},
		{"bracket prefix", func(c *config.Config) { c.Duplicates.TitlePrefix = "[X]" }, "title_prefix"},
		{"empty priority", func(c *config.Config) { c.Duplicates.Priority = nil }, "duplicates.priority"},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(target)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Duplicates.CodecPriority["AV1"] != 0 || cfg.Duplicates.CodecPriority["VC1"] != 6 {
		t.Fatalf("unexpected codec table: %v", cfg.Duplicates.CodecPriority)
	}
}

func TestEncodeMasksAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.Catalog.APIKey = "secret"
	out, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.Contains(out, "secret") {
		t.Fatalf("expected API key to be masked: %s", out)
	}
}
