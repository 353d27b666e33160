package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateDuplicates(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCatalog() error {
	switch c.Catalog.Backend {
	case BackendStash:
		if c.Catalog.URL == "" {
			return errors.New("catalog.url must be set when catalog.backend is stash")
		}
		parsed, err := url.Parse(c.Catalog.URL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("catalog.url %q is not an absolute URL", c.Catalog.URL)
		}
	case BackendSQLite:
		if strings.TrimSpace(c.Catalog.SQLitePath) == "" {
			return errors.New("catalog.sqlite_path must be set when catalog.backend is sqlite")
		}
	default:
		return fmt.Errorf("catalog.backend: unsupported value %q (want stash or sqlite)", c.Catalog.Backend)
	}
	if c.Catalog.TimeoutSeconds < 0 {
		return errors.New("catalog.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateDuplicates() error {
	d := c.Duplicates
	if err := ensureNonEmptyMap(map[string]string{
		"duplicates.ignore_tag": d.IgnoreTag,
		"duplicates.keep_tag":   d.KeepTag,
		"duplicates.remove_tag": d.RemoveTag,
	}); err != nil {
		return err
	}
	seen := map[string]string{}
	for key, name := range map[string]string{
		"duplicates.ignore_tag":  d.IgnoreTag,
		"duplicates.keep_tag":    d.KeepTag,
		"duplicates.remove_tag":  d.RemoveTag,
		"duplicates.unknown_tag": d.UnknownTag,
	} {
		if name == "" {
			continue
		}
		if other, ok := seen[name]; ok {
			return fmt.Errorf("%s and %s must use different tag names (both %q)", firstKey(key, other), secondKey(key, other), name)
		}
		seen[name] = key
	}
	if strings.ContainsAny(d.TitlePrefix, "[]") {
		return errors.New("duplicates.title_prefix must not contain brackets")
	}
	if len(d.Priority) == 0 {
		return errors.New("duplicates.priority must list at least one comparator")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensureNonEmptyMap(values map[string]string) error {
	for key, value := range values {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}
	return nil
}

func firstKey(a, b string) string {
	if a < b {
		return a
	}
	return b
}

func secondKey(a, b string) string {
	if a < b {
		return b
	}
	return a
}
