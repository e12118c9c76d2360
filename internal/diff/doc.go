// Package diff parses unified-diff text into a structured, line-addressable
// model and serializes it back.
//
// Parsing is best-effort: malformed lines are skipped, and a diff with no
// @@ hunk header parses to an empty line sequence. Callers must treat an
// empty result as "no structured diff available".
//
// The package also folds long unchanged runs into collapsible groups for
// display, and generates fresh unified-diff text between two versions of a
// file's content.
package diff
