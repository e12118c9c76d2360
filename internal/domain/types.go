package domain

// LineKind classifies a single line in a parsed unified diff.
type LineKind int

const (
	// LineContext is an unchanged line present in both versions.
	LineContext LineKind = iota
	// LineAddition is a line present only in the new version.
	LineAddition
	// LineDeletion is a line present only in the old version.
	LineDeletion
	// LineHunk is an @@ hunk header line.
	LineHunk
)

// String returns a short human-readable name for the kind.
func (k LineKind) String() string {
	switch k {
	case LineContext:
		return "context"
	case LineAddition:
		return "add"
	case LineDeletion:
		return "delete"
	case LineHunk:
		return "hunk"
	default:
		return "unknown"
	}
}

// DiffLine is a single line of a parsed unified diff.
//
// Additions carry only a new-side line number, deletions only an old-side
// number, context lines both. Hunk header lines carry neither.
type DiffLine struct {
	Kind    LineKind
	Content string // line content without the +/-/space prefix
	OldLine *int   // line number in the old file, nil when absent
	NewLine *int   // line number in the new file, nil when absent
}

// ParsedDiff is the structured form of a unified diff for one file.
// A ParsedDiff is never mutated in place; when content changes a fresh
// ParsedDiff replaces the old one.
type ParsedDiff struct {
	Lines       []DiffLine
	OldFileName string
	NewFileName string
	OldStart    int // old-side start of the first hunk
	NewStart    int // new-side start of the first hunk
}

// IsEmpty reports whether parsing found no hunks. Callers must treat an
// empty diff as "no structured diff available" and fall back to the
// suggestion's natural-language rationale.
func (d ParsedDiff) IsEmpty() bool {
	return len(d.Lines) == 0
}

// CollapsedGroup is a run of consecutive context lines folded away for
// display. It never participates in patch application.
type CollapsedGroup struct {
	Count int
	Lines []DiffLine // all context
}

// DisplayFragment is one element of a grouped diff: either a single line
// or a collapsed run of context lines. Exactly one field is set.
type DisplayFragment struct {
	Line  *DiffLine
	Group *CollapsedGroup
}

// IntPtr returns a pointer to the given int value.
// Exported for use in tests across packages.
func IntPtr(n int) *int {
	return &n
}
