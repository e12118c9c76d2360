package apply

import (
	"context"
	"fmt"
	"strings"

	"github.com/reviewpatch/engine/internal/diff"
	"github.com/reviewpatch/engine/internal/domain"
)

// Request is the payload sent to the patch collaborator.
type Request struct {
	FilePath        string `json:"filePath"`
	CurrentContent  string `json:"currentContent"`
	SuggestionText  string `json:"suggestionText"`
	LineStart       int    `json:"lineStart"`
	LineEnd         int    `json:"lineEnd"`
	PrecomputedDiff string `json:"precomputedDiff,omitempty"`
}

// Response is the patch collaborator's answer. The applier is oblivious to
// how it was produced, only to its shape.
type Response struct {
	ModifiedContent string `json:"modifiedContent"`
	Diff            string `json:"diff"`
}

// Patcher is the outbound port to the text-transformation collaborator.
type Patcher interface {
	Apply(ctx context.Context, req Request) (Response, error)
}

// Result is a successful application of one suggestion.
type Result struct {
	NewContent string
	DiffText   string           // fresh diff of base content against new content
	NewDiff    domain.ParsedDiff
	LineStart  int // range the suggestion targeted, for overlap bookkeeping
	LineEnd    int
}

// Applier applies a single suggestion against a base content snapshot.
//
// It is pure given its inputs: it reads no shared state, so the caller is
// responsible for passing the file's current cumulative content.
type Applier struct {
	patcher      Patcher
	contextLines int
}

// New constructs an Applier delegating text transformation to patcher.
func New(patcher Patcher) *Applier {
	return &Applier{patcher: patcher, contextLines: diff.DefaultContextLines}
}

// WithContextLines overrides the context width of generated diffs.
func (a *Applier) WithContextLines(n int) *Applier {
	if n >= 0 {
		a.contextLines = n
	}
	return a
}

// Apply applies one suggestion to baseContent.
//
// Before delegating to the patch collaborator it performs two local checks:
// the suggestion's target range must not overlap any already-approved change
// for the file (ConflictError), and the suggestion's recorded diff must
// still match baseContent (StaleBaseError). On success the returned diff is
// recomputed from baseContent and the new content, never reused from the
// suggestion, since line numbers shift after each prior approval.
func (a *Applier) Apply(ctx context.Context, filePath, baseContent string, sug domain.Suggestion, approved []domain.ApprovedChange) (Result, error) {
	start, end := sug.LineRange()

	for i := range approved {
		if approved[i].Overlaps(start, end) {
			return Result{}, &domain.ConflictError{
				Key:           sug.Key,
				Start:         start,
				End:           end,
				ConflictsWith: approved[i].Key,
				TheirStart:    approved[i].LineStart,
				TheirEnd:      approved[i].LineEnd,
			}
		}
	}

	var precomputed string
	if sug.Diff != nil && !sug.Diff.IsEmpty() {
		if err := checkStale(baseContent, sug); err != nil {
			return Result{}, err
		}
		precomputed = diff.Reconstruct(sug.Diff.OldFileName, sug.Diff.NewFileName, sug.Diff.Lines)
	}

	resp, err := a.patcher.Apply(ctx, Request{
		FilePath:        filePath,
		CurrentContent:  baseContent,
		SuggestionText:  sug.Comment,
		LineStart:       start,
		LineEnd:         end,
		PrecomputedDiff: precomputed,
	})
	if err != nil {
		return Result{}, fmt.Errorf("apply suggestion %s: %w", sug.Key, err)
	}

	diffText := diff.Unified(filePath, baseContent, resp.ModifiedContent, a.contextLines)
	return Result{
		NewContent: resp.ModifiedContent,
		DiffText:   diffText,
		NewDiff:    diff.Parse(diffText),
		LineStart:  start,
		LineEnd:    end,
	}, nil
}

// checkStale verifies that every context and deletion line of the
// suggestion's diff still matches baseContent at its recorded old-side line
// number.
func checkStale(baseContent string, sug domain.Suggestion) error {
	baseLines := strings.Split(baseContent, "\n")

	for _, line := range sug.Diff.Lines {
		if line.OldLine == nil {
			continue
		}
		if line.Kind != domain.LineContext && line.Kind != domain.LineDeletion {
			continue
		}
		idx := *line.OldLine - 1
		if idx < 0 || idx >= len(baseLines) {
			return &domain.StaleBaseError{Key: sug.Key, Line: *line.OldLine, Expected: line.Content}
		}
		if baseLines[idx] != line.Content {
			return &domain.StaleBaseError{
				Key:      sug.Key,
				Line:     *line.OldLine,
				Expected: line.Content,
				Actual:   baseLines[idx],
			}
		}
	}
	return nil
}
