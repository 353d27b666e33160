// Package main hosts the dupetag CLI entrypoint and command graph.
//
// The Cobra command tree loads configuration, opens the configured catalog
// backend and hands the work to the workflow runner: tagging duplicate groups
// (or planning them with --dry-run), cleaning and removing annotations,
// splitting multi-file scenes, and looking scenes up by file path.
//
// Keep this package lean: behavior belongs in the internal packages and the
// commands here only parse arguments and render results.
package main
