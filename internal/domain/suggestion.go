package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Severity categorizes a suggestion's importance. The value is supplied by
// the upstream review generator and treated as opaque; it is never
// re-derived from the rationale text.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
	SeverityInfo   Severity = "INFO"
)

// IsValid returns true if the severity is a recognized value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	default:
		return false
	}
}

// SuggestionState is the lifecycle state of a suggestion.
type SuggestionState string

const (
	// SuggestionPending indicates no decision has been made yet.
	SuggestionPending SuggestionState = "pending"
	// SuggestionApproved indicates the change was applied. Terminal.
	SuggestionApproved SuggestionState = "approved"
	// SuggestionRejected indicates the change was declined. Terminal.
	SuggestionRejected SuggestionState = "rejected"
)

// IsTerminal returns true once no further transition is allowed.
func (s SuggestionState) IsTerminal() bool {
	return s == SuggestionApproved || s == SuggestionRejected
}

// SuggestionKey identifies a suggestion across re-renders. Suggestions may
// be reconstructed at any time, so identity is this stable key rather than
// object identity.
type SuggestionKey struct {
	File      string
	StartLine int
	Index     int // position within the file's suggestion list
}

// String renders the key in file:line:index form for messages and logs.
func (k SuggestionKey) String() string {
	return fmt.Sprintf("%s:%d:%d", k.File, k.StartLine, k.Index)
}

// ID returns a deterministic identifier for the key, suitable for
// persistence and deduplication.
func (k SuggestionKey) ID() string {
	payload := fmt.Sprintf("%s|%d|%d", k.File, k.StartLine, k.Index)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:16])
}

// Suggestion is a single proposed change against one file.
type Suggestion struct {
	Key              SuggestionKey
	Comment          string   // natural-language rationale
	Severity         Severity
	HighlightedLines []int       // ordered, 1-indexed lines the suggestion targets
	Diff             *ParsedDiff // optional structured diff, nil when unavailable
	State            SuggestionState
}

// LineRange returns the inclusive [start, end] line range the suggestion
// targets. Falls back to the key's starting line when no lines are
// highlighted.
func (s Suggestion) LineRange() (start, end int) {
	if len(s.HighlightedLines) == 0 {
		return s.Key.StartLine, s.Key.StartLine
	}
	start, end = s.HighlightedLines[0], s.HighlightedLines[0]
	for _, n := range s.HighlightedLines[1:] {
		if n < start {
			start = n
		}
		if n > end {
			end = n
		}
	}
	return start, end
}

// ApprovedChange records one applied suggestion for a file, in approval
// order.
type ApprovedChange struct {
	Key              SuggestionKey
	LineStart        int    // applied range in the content it was applied to
	LineEnd          int
	Diff             string // unified diff of the applied change
	OriginalContent  string // file content the change was applied against
	ResultingContent string // file content after the change
	Rationale        string
	Severity         Severity
}

// Overlaps reports whether the inclusive range [start, end] intersects the
// change's applied range.
func (c ApprovedChange) Overlaps(start, end int) bool {
	return start <= c.LineEnd && end >= c.LineStart
}
