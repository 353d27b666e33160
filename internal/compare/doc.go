// Package compare implements the ordered comparator chain that decides which
// of two duplicate scenes is worth keeping.
//
// Rules are statically registered by name and selected and ordered by
// configuration at startup. Evaluating a pair walks the rules in order and
// stops at the first one with an opinion; a rule that fails or panics is
// logged and skipped so a single bad comparison never aborts a group.
package compare
