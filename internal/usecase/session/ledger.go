package session

import (
	"fmt"
	"sync"

	"github.com/reviewpatch/engine/internal/domain"
)

// FileReviewState is the per-file ledger: the ordered suggestion list, each
// suggestion's state, and the cumulative content snapshot after every
// approval.
//
// currentContent is mutated only by approvals and only moves forward; it is
// never rolled back within a session.
type FileReviewState struct {
	path            string
	originalContent string

	// applyMu serializes approvals for this file. It is held across the
	// patch collaborator call so a pending approval blocks further
	// approvals on the same file only.
	applyMu sync.Mutex

	// mu guards the fields below.
	mu             sync.RWMutex
	currentContent string
	suggestions    []*domain.Suggestion
	approved       []domain.ApprovedChange
}

func newFileReviewState(path, content string, suggestions []*domain.Suggestion) *FileReviewState {
	return &FileReviewState{
		path:            path,
		originalContent: content,
		currentContent:  content,
		suggestions:     suggestions,
	}
}

// Path returns the file path this ledger tracks.
func (f *FileReviewState) Path() string { return f.path }

// OriginalContent returns the file content the session started from.
func (f *FileReviewState) OriginalContent() string { return f.originalContent }

// CurrentContent returns the cumulative content after all approvals so far.
func (f *FileReviewState) CurrentContent() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.currentContent
}

// Suggestions returns a snapshot of the file's suggestions in order.
func (f *FileReviewState) Suggestions() []domain.Suggestion {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]domain.Suggestion, len(f.suggestions))
	for i, s := range f.suggestions {
		out[i] = *s
	}
	return out
}

// ApprovedChanges returns a snapshot of the applied changes in approval
// order.
func (f *FileReviewState) ApprovedChanges() []domain.ApprovedChange {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]domain.ApprovedChange, len(f.approved))
	copy(out, f.approved)
	return out
}

// counts returns (approved+rejected, total) for progress computation.
func (f *FileReviewState) counts() (resolved, total int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, s := range f.suggestions {
		if s.State.IsTerminal() {
			resolved++
		}
	}
	return resolved, len(f.suggestions)
}

// findLocked returns the suggestion matching key. Callers hold f.mu.
func (f *FileReviewState) findLocked(key domain.SuggestionKey) (*domain.Suggestion, error) {
	for _, s := range f.suggestions {
		if s.Key == key {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", key, domain.ErrUnknownSuggestion)
}

// reject transitions a pending suggestion to rejected. It has no side
// effect beyond the state transition.
func (f *FileReviewState) reject(key domain.SuggestionKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	sug, err := f.findLocked(key)
	if err != nil {
		return err
	}
	if sug.State.IsTerminal() {
		return fmt.Errorf("%s is %s: %w", key, sug.State, domain.ErrSuggestionResolved)
	}
	sug.State = domain.SuggestionRejected
	return nil
}

// replaceDiff swaps in a freshly parsed diff for a pending suggestion. The
// pointer swap is atomic under the lock, so readers never observe a
// partially updated diff.
func (f *FileReviewState) replaceDiff(key domain.SuggestionKey, parsed *domain.ParsedDiff) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	sug, err := f.findLocked(key)
	if err != nil {
		return err
	}
	if sug.State.IsTerminal() {
		return fmt.Errorf("%s is %s: %w", key, sug.State, domain.ErrSuggestionResolved)
	}
	sug.Diff = parsed
	return nil
}

// snapshotForApply captures everything an approval needs under a read lock:
// the suggestion, the current content, and the approved ranges.
func (f *FileReviewState) snapshotForApply(key domain.SuggestionKey) (domain.Suggestion, string, []domain.ApprovedChange, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	sug, err := f.findLocked(key)
	if err != nil {
		return domain.Suggestion{}, "", nil, err
	}
	if sug.State.IsTerminal() {
		return domain.Suggestion{}, "", nil, fmt.Errorf("%s is %s: %w", key, sug.State, domain.ErrSuggestionResolved)
	}

	approved := make([]domain.ApprovedChange, len(f.approved))
	copy(approved, f.approved)
	return *sug, f.currentContent, approved, nil
}

// commitApproval records a successful application: the change is appended,
// the cumulative content advances, and the suggestion becomes approved.
// This is the only writer of currentContent.
//
// The suggestion must still be pending: a reject can land while the
// collaborator call is in flight, and a terminal state never transitions
// again, so a late apply result for a resolved suggestion is discarded.
func (f *FileReviewState) commitApproval(key domain.SuggestionKey, change domain.ApprovedChange, newContent string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	sug, err := f.findLocked(key)
	if err != nil {
		return err
	}
	if sug.State != domain.SuggestionPending {
		return fmt.Errorf("%s is %s: %w", key, sug.State, domain.ErrSuggestionResolved)
	}
	f.approved = append(f.approved, change)
	f.currentContent = newContent
	sug.State = domain.SuggestionApproved
	return nil
}
