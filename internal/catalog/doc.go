// Package catalog defines the contract dupetag uses to talk to the media
// catalog that owns scenes, files, fingerprints and tags.
//
// The Service interface is deliberately shaped after the operations the
// duplicate workflow needs rather than any particular API. Raw entries are
// decoded loosely (numbers may arrive as JSON numbers or strings) so that
// validation happens in one place, the scene package, instead of in every
// backend. Concrete backends live in subpackages: stash talks GraphQL to a
// running Stash server, sqlitecat keeps a local SQLite catalog.
package catalog
