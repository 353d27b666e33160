// Package workflow runs one batch over the catalog.
//
// The Runner wires the comparator chain, group resolver, annotation writer and
// split coalescer to a catalog backend. Mutating runs (tag, clean, remove,
// split) hold a file lock in the state directory so two invocations cannot
// interleave their writes. Every run gets a UUID run id that is attached to
// each log line through the context.
//
// Groups are processed sequentially. A catalog failure aborts only the group
// being annotated: it is logged, counted in the Summary, and the batch moves on
// to the next group. Cancellation is honored between groups.
package workflow
