// Package config loads, normalizes, and validates dupetag configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DUPETAG_API_KEY. The Config type centralizes every knob the CLI and the
// duplicate workflow need: how to reach the catalog, which tags and paths are
// ignored, the comparator priority and codec ranking, and log output.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical tag names, and clear validation errors.
package config
