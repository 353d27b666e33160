package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

// envOverrides lists the environment variables that fill configuration values
// left empty by the file.
type envOverrides struct {
	CatalogURL string `env:"DUPETAG_CATALOG_URL"`
	APIKey     string `env:"DUPETAG_API_KEY"`
	LogLevel   string `env:"DUPETAG_LOG_LEVEL"`
}

func (c *Config) applyEnv() error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	if value := strings.TrimSpace(overrides.CatalogURL); value != "" {
		c.Catalog.URL = value
	}
	if strings.TrimSpace(c.Catalog.APIKey) == "" {
		c.Catalog.APIKey = strings.TrimSpace(overrides.APIKey)
	}
	if value := strings.TrimSpace(overrides.LogLevel); value != "" {
		c.Logging.Level = value
	}
	return nil
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCatalog(); err != nil {
		return err
	}
	if err := c.normalizeDuplicates(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	var err error
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCatalog() error {
	c.Catalog.Backend = strings.ToLower(strings.TrimSpace(c.Catalog.Backend))
	if c.Catalog.Backend == "" {
		c.Catalog.Backend = defaultBackend
	}
	c.Catalog.URL = strings.TrimSpace(c.Catalog.URL)
	c.Catalog.APIKey = strings.TrimSpace(c.Catalog.APIKey)
	if strings.TrimSpace(c.Catalog.SQLitePath) == "" {
		c.Catalog.SQLitePath = filepath.Join(c.Paths.StateDir, defaultSQLiteFile)
	}
	var err error
	if c.Catalog.SQLitePath, err = expandPath(c.Catalog.SQLitePath); err != nil {
		return fmt.Errorf("catalog.sqlite_path: %w", err)
	}
	if c.Catalog.TimeoutSeconds == 0 {
		c.Catalog.TimeoutSeconds = defaultTimeoutSeconds
	}
	return nil
}

func (c *Config) normalizeDuplicates() error {
	d := &c.Duplicates
	d.IgnoreTag = strings.TrimSpace(d.IgnoreTag)
	d.KeepTag = strings.TrimSpace(d.KeepTag)
	d.RemoveTag = strings.TrimSpace(d.RemoveTag)
	d.UnknownTag = strings.TrimSpace(d.UnknownTag)
	d.TitlePrefix = strings.TrimSpace(d.TitlePrefix)
	if d.TitlePrefix == "" {
		d.TitlePrefix = defaultTitlePrefix
	}
	if strings.TrimSpace(d.TitleTemplate) == "" {
		d.TitleTemplate = defaultTitleTemplate
	}

	ignorePaths := make([]string, 0, len(d.IgnorePaths))
	for _, p := range d.IgnorePaths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		// Catalog paths may live on another host, so only tilde expansion is
		// applied; relative paths are kept as written.
		expanded := strings.TrimSpace(p)
		if strings.HasPrefix(expanded, "~") {
			var err error
			if expanded, err = expandPath(expanded); err != nil {
				return fmt.Errorf("duplicates.ignore_paths: %w", err)
			}
		}
		ignorePaths = append(ignorePaths, filepath.Clean(expanded))
	}
	d.IgnorePaths = ignorePaths

	priority := make([]string, 0, len(d.Priority))
	for _, name := range d.Priority {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			priority = append(priority, name)
		}
	}
	d.Priority = priority

	codecs := make(map[string]int, len(d.CodecPriority))
	for name, rank := range d.CodecPriority {
		name = strings.ToUpper(strings.TrimSpace(name))
		if name != "" {
			codecs[name] = rank
		}
	}
	d.CodecPriority = codecs
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
