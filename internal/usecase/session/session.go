package session

import (
	"context"
	"fmt"

	"github.com/reviewpatch/engine/internal/diff"
	"github.com/reviewpatch/engine/internal/domain"
	"github.com/reviewpatch/engine/internal/usecase/apply"
)

// Applier is the inbound port to the patch application use case.
type Applier interface {
	Apply(ctx context.Context, filePath, baseContent string, sug domain.Suggestion, approved []domain.ApprovedChange) (apply.Result, error)
}

// ContentProvider supplies base file content for files whose review result
// did not carry it.
type ContentProvider interface {
	FileContent(ctx context.Context, path string) (string, error)
}

// Logger is the optional structured logging port.
type Logger interface {
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
}

// Session owns the per-file review ledgers for one review, computes
// aggregate progress, and finalizes into a branch-scoped change set once
// every suggestion is resolved.
type Session struct {
	applier Applier
	logger  Logger
	order   []string
	files   map[string]*FileReviewState
}

// Option customizes session construction.
type Option func(*Session)

// WithLogger attaches a structured logger.
func WithLogger(logger Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// New populates a session from an inbound review result. Files whose result
// carries no content are read through provider when one is given; a nil
// provider leaves them empty. Suggestion diffs are parsed once here; a diff
// that parses to nothing is stored as nil so callers fall back to the
// rationale text.
func New(ctx context.Context, result domain.ReviewResult, applier Applier, provider ContentProvider, opts ...Option) (*Session, error) {
	s := &Session{
		applier: applier,
		files:   make(map[string]*FileReviewState, len(result.Files)),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, file := range result.Files {
		if _, exists := s.files[file.File]; exists {
			return nil, fmt.Errorf("duplicate file %q in review result", file.File)
		}

		content := file.Content
		if content == "" && provider != nil {
			fetched, err := provider.FileContent(ctx, file.File)
			if err != nil {
				return nil, fmt.Errorf("fetch content for %s: %w", file.File, err)
			}
			content = fetched
		}

		suggestions := make([]*domain.Suggestion, 0, len(file.Suggestions))
		for i, in := range file.Suggestions {
			parsed := diff.Parse(in.Diff)
			var structured *domain.ParsedDiff
			if !parsed.IsEmpty() {
				structured = &parsed
			}

			suggestions = append(suggestions, &domain.Suggestion{
				Key: domain.SuggestionKey{
					File:      file.File,
					StartLine: startLineFor(in, structured),
					Index:     i,
				},
				Comment:          in.Comment,
				Severity:         in.Severity,
				HighlightedLines: in.HighlightedLines,
				Diff:             structured,
				State:            domain.SuggestionPending,
			})
		}

		s.order = append(s.order, file.File)
		s.files[file.File] = newFileReviewState(file.File, content, suggestions)
	}

	return s, nil
}

// startLineFor derives the stable starting line of a suggestion key: the
// lowest highlighted line, else the diff's old-side start, else zero.
func startLineFor(in domain.SuggestionInput, parsed *domain.ParsedDiff) int {
	if len(in.HighlightedLines) > 0 {
		start := in.HighlightedLines[0]
		for _, n := range in.HighlightedLines[1:] {
			if n < start {
				start = n
			}
		}
		return start
	}
	if parsed != nil {
		return parsed.OldStart
	}
	return 0
}

// Files returns the tracked file paths in review order.
func (s *Session) Files() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// File returns the ledger for one path.
func (s *Session) File(path string) (*FileReviewState, error) {
	fs, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, domain.ErrUnknownFile)
	}
	return fs, nil
}

// Suggestion returns a snapshot of the suggestion identified by key.
func (s *Session) Suggestion(key domain.SuggestionKey) (domain.Suggestion, error) {
	fs, err := s.File(key.File)
	if err != nil {
		return domain.Suggestion{}, err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	sug, err := fs.findLocked(key)
	if err != nil {
		return domain.Suggestion{}, err
	}
	return *sug, nil
}

// Approve applies the identified suggestion against the file's current
// cumulative content and, on success, advances that content atomically.
//
// Stale or conflicting suggestions are left pending and the error is
// surfaced for the caller to decide retry versus abandon. A cancelled or
// failed collaborator call likewise leaves every field untouched.
func (s *Session) Approve(ctx context.Context, key domain.SuggestionKey) error {
	fs, err := s.File(key.File)
	if err != nil {
		return err
	}

	fs.applyMu.Lock()
	defer fs.applyMu.Unlock()

	sug, base, approved, err := fs.snapshotForApply(key)
	if err != nil {
		return err
	}

	result, err := s.applier.Apply(ctx, fs.path, base, sug, approved)
	if err != nil {
		s.logWarning(ctx, "suggestion apply failed", map[string]interface{}{
			"suggestion": key.String(),
			"error":      err.Error(),
		})
		return err
	}

	change := domain.ApprovedChange{
		Key:              key,
		LineStart:        result.LineStart,
		LineEnd:          result.LineEnd,
		Diff:             result.DiffText,
		OriginalContent:  base,
		ResultingContent: result.NewContent,
		Rationale:        sug.Comment,
		Severity:         sug.Severity,
	}
	if err := fs.commitApproval(key, change, result.NewContent); err != nil {
		return err
	}

	s.logInfo(ctx, "suggestion approved", map[string]interface{}{
		"suggestion": key.String(),
		"lineStart":  result.LineStart,
		"lineEnd":    result.LineEnd,
	})
	return nil
}

// Reject marks the identified suggestion rejected. It is unconditional and
// has no side effect beyond the state transition.
func (s *Session) Reject(key domain.SuggestionKey) error {
	fs, err := s.File(key.File)
	if err != nil {
		return err
	}
	return fs.reject(key)
}

// RefreshSuggestionDiff replaces a pending suggestion's structured diff
// with a freshly parsed one, the recovery path after a StaleBaseError. Text
// that parses to nothing clears the structured diff so callers fall back to
// the rationale.
func (s *Session) RefreshSuggestionDiff(key domain.SuggestionKey, diffText string) error {
	fs, err := s.File(key.File)
	if err != nil {
		return err
	}

	parsed := diff.Parse(diffText)
	var structured *domain.ParsedDiff
	if !parsed.IsEmpty() {
		structured = &parsed
	}
	return fs.replaceDiff(key, structured)
}

// Progress reports (approved + rejected) / total across all files. A
// session with no suggestions reports 1.
func (s *Session) Progress() float64 {
	resolved, total := 0, 0
	for _, fs := range s.files {
		r, n := fs.counts()
		resolved += r
		total += n
	}
	if total == 0 {
		return 1
	}
	return float64(resolved) / float64(total)
}

// Finalize validates that every suggestion is resolved and at least one is
// approved, then returns the branch-scoped change set for the publishing
// collaborator. Changes appear in review order by file and approval order
// within each file.
func (s *Session) Finalize(branchName string) (domain.ChangeSet, error) {
	var changes []domain.Change

	for _, path := range s.order {
		fs := s.files[path]
		for _, sug := range fs.Suggestions() {
			if !sug.State.IsTerminal() {
				return domain.ChangeSet{}, fmt.Errorf("suggestion %s still pending: %w", sug.Key, domain.ErrNotReady)
			}
		}
		for _, change := range fs.ApprovedChanges() {
			changes = append(changes, domain.Change{
				File:            path,
				OriginalContent: change.OriginalContent,
				ModifiedContent: change.ResultingContent,
				Diff:            change.Diff,
				Rationale:       change.Rationale,
				LineStart:       change.LineStart,
				LineEnd:         change.LineEnd,
				Severity:        change.Severity,
			})
		}
	}

	if len(changes) == 0 {
		return domain.ChangeSet{}, domain.ErrNothingToPublish
	}

	return domain.ChangeSet{BranchName: branchName, Changes: changes}, nil
}

func (s *Session) logInfo(ctx context.Context, msg string, fields map[string]interface{}) {
	if s.logger != nil {
		s.logger.LogInfo(ctx, msg, fields)
	}
}

func (s *Session) logWarning(ctx context.Context, msg string, fields map[string]interface{}) {
	if s.logger != nil {
		s.logger.LogWarning(ctx, msg, fields)
	}
}
