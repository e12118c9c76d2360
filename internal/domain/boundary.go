package domain

// ReviewResult is the inbound boundary shape from the review generation
// collaborator. The engine treats it as the initial population of a review
// session and validates only diff syntax, never prompt/response semantics.
type ReviewResult struct {
	Files []FileResult `json:"files"`
}

// FileResult carries the suggestions proposed for one file.
type FileResult struct {
	File        string            `json:"file"`
	Content     string            `json:"content,omitempty"` // base content when the generator supplies it
	Suggestions []SuggestionInput `json:"suggestions"`
}

// SuggestionInput is one proposed change as received from the generator.
type SuggestionInput struct {
	Comment          string   `json:"comment"`
	Severity         Severity `json:"severity"`
	HighlightedLines []int    `json:"highlightedLines"`
	Diff             string   `json:"diff,omitempty"` // unified diff text, may be empty
}

// ChangeSet is the outbound boundary shape handed to the publishing
// collaborator after a successful finalize.
type ChangeSet struct {
	BranchName string   `json:"branchName"`
	Changes    []Change `json:"changes"`
}

// Change is one approved, applied suggestion within a ChangeSet.
type Change struct {
	File            string   `json:"file"`
	OriginalContent string   `json:"originalContent"`
	ModifiedContent string   `json:"modifiedContent"`
	Diff            string   `json:"diff"`
	Rationale       string   `json:"rationale"`
	LineStart       int      `json:"lineStart,omitempty"`
	LineEnd         int      `json:"lineEnd,omitempty"`
	Severity        Severity `json:"severity,omitempty"`
}
