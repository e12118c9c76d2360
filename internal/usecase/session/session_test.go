package session_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewpatch/engine/internal/diff"
	"github.com/reviewpatch/engine/internal/domain"
	"github.com/reviewpatch/engine/internal/usecase/apply"
	"github.com/reviewpatch/engine/internal/usecase/session"
)

// diffPatcher is a patch collaborator that really applies the precomputed
// diff to the current content, so cumulative behavior is exercised
// end to end.
type diffPatcher struct {
	mu      sync.Mutex
	calls   int
	err     error
	block   chan struct{} // when set, Apply waits for ctx or close
	started chan struct{} // when set, Apply signals entry before blocking
}

func (p *diffPatcher) Apply(ctx context.Context, req apply.Request) (apply.Response, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.started != nil {
		p.started <- struct{}{}
	}
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return apply.Response{}, ctx.Err()
		}
	}
	if p.err != nil {
		return apply.Response{}, p.err
	}

	parsed := diff.Parse(req.PrecomputedDiff)
	if parsed.IsEmpty() {
		return apply.Response{}, errors.New("no structured diff supplied")
	}
	modified := applyParsedDiff(req.CurrentContent, parsed)
	return apply.Response{ModifiedContent: modified, Diff: req.PrecomputedDiff}, nil
}

// applyParsedDiff replays a parsed diff onto base content (test helper).
func applyParsedDiff(base string, pd domain.ParsedDiff) string {
	trailingNewline := strings.HasSuffix(base, "\n")
	baseLines := strings.Split(base, "\n")
	if trailingNewline {
		baseLines = baseLines[:len(baseLines)-1]
	}

	var out []string
	cursor := 1
	for _, line := range pd.Lines {
		switch line.Kind {
		case domain.LineContext, domain.LineDeletion:
			for cursor < *line.OldLine && cursor <= len(baseLines) {
				out = append(out, baseLines[cursor-1])
				cursor++
			}
			if line.Kind == domain.LineContext {
				out = append(out, line.Content)
			}
			cursor++
		case domain.LineAddition:
			out = append(out, line.Content)
		}
	}
	for cursor <= len(baseLines) {
		out = append(out, baseLines[cursor-1])
		cursor++
	}

	result := strings.Join(out, "\n")
	if trailingNewline {
		result += "\n"
	}
	return result
}

func newSession(t *testing.T, patcher apply.Patcher, files ...domain.FileResult) *session.Session {
	t.Helper()
	s, err := session.New(context.Background(), domain.ReviewResult{Files: files}, apply.New(patcher), nil)
	require.NoError(t, err)
	return s
}

func keyFor(t *testing.T, s *session.Session, path string, index int) domain.SuggestionKey {
	t.Helper()
	fs, err := s.File(path)
	require.NoError(t, err)
	suggestions := fs.Suggestions()
	require.Greater(t, len(suggestions), index)
	return suggestions[index].Key
}

func TestApprove_SingleSuggestion(t *testing.T) {
	s := newSession(t, &diffPatcher{}, domain.FileResult{
		File:    "f.txt",
		Content: "a\nb\nc\n",
		Suggestions: []domain.SuggestionInput{{
			Comment:          "capitalize b",
			Severity:         domain.SeverityLow,
			HighlightedLines: []int{2},
			Diff:             "@@ -2,1 +2,1 @@\n-b\n+B\n",
		}},
	})

	key := keyFor(t, s, "f.txt", 0)
	require.NoError(t, s.Approve(context.Background(), key))

	fs, err := s.File("f.txt")
	require.NoError(t, err)
	assert.Equal(t, "a\nB\nc\n", fs.CurrentContent())
	assert.Equal(t, "a\nb\nc\n", fs.OriginalContent())

	sug, err := s.Suggestion(key)
	require.NoError(t, err)
	assert.Equal(t, domain.SuggestionApproved, sug.State)

	changes := fs.ApprovedChanges()
	require.Len(t, changes, 1)
	assert.Equal(t, "a\nb\nc\n", changes[0].OriginalContent)
	assert.Equal(t, "a\nB\nc\n", changes[0].ResultingContent)
	assert.Contains(t, changes[0].Diff, "-b")
	assert.Contains(t, changes[0].Diff, "+B")
}

func TestApprove_CumulativeApplication(t *testing.T) {
	s := newSession(t, &diffPatcher{}, domain.FileResult{
		File:    "f.txt",
		Content: "a\nb\nc\nd\ne\n",
		Suggestions: []domain.SuggestionInput{
			{
				Comment:          "capitalize b",
				HighlightedLines: []int{2},
				Diff:             "@@ -2,1 +2,1 @@\n-b\n+B\n",
			},
			{
				Comment:          "capitalize d",
				HighlightedLines: []int{4},
				Diff:             "@@ -4,1 +4,1 @@\n-d\n+D\n",
			},
		},
	})

	require.NoError(t, s.Approve(context.Background(), keyFor(t, s, "f.txt", 0)))
	require.NoError(t, s.Approve(context.Background(), keyFor(t, s, "f.txt", 1)))

	fs, err := s.File("f.txt")
	require.NoError(t, err)
	// Equivalent to applying both changes as one combined patch.
	assert.Equal(t, "a\nB\nc\nD\ne\n", fs.CurrentContent())

	// The second change was applied against the first change's output.
	changes := fs.ApprovedChanges()
	require.Len(t, changes, 2)
	assert.Equal(t, "a\nB\nc\nd\ne\n", changes[1].OriginalContent)
}

func TestApprove_ConflictLeavesStateIntact(t *testing.T) {
	s := newSession(t, &diffPatcher{}, domain.FileResult{
		File:    "f.txt",
		Content: "a\nb\nc\nd\n",
		Suggestions: []domain.SuggestionInput{
			{
				Comment:          "rewrite b and c",
				HighlightedLines: []int{2, 3},
				Diff:             "@@ -2,2 +2,2 @@\n-b\n-c\n+B\n+C\n",
			},
			{
				Comment:          "rewrite c differently",
				HighlightedLines: []int{3},
				Diff:             "@@ -3,1 +3,1 @@\n-c\n+CCC\n",
			},
		},
	})

	first := keyFor(t, s, "f.txt", 0)
	second := keyFor(t, s, "f.txt", 1)

	require.NoError(t, s.Approve(context.Background(), first))

	fs, err := s.File("f.txt")
	require.NoError(t, err)
	afterFirst := fs.CurrentContent()

	err = s.Approve(context.Background(), second)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, second, conflict.Key)
	assert.Equal(t, first, conflict.ConflictsWith)

	// Content equals the state after only the first approval and the
	// second suggestion is still pending.
	assert.Equal(t, afterFirst, fs.CurrentContent())
	sug, err := s.Suggestion(second)
	require.NoError(t, err)
	assert.Equal(t, domain.SuggestionPending, sug.State)
}

func TestApprove_StaleAfterLineShift(t *testing.T) {
	s := newSession(t, &diffPatcher{}, domain.FileResult{
		File:    "f.txt",
		Content: "a\nb\nc\nd\n",
		Suggestions: []domain.SuggestionInput{
			{
				Comment:          "drop b",
				HighlightedLines: []int{2},
				Diff:             "@@ -2,1 +1,0 @@\n-b\n",
			},
			{
				// Computed against the original numbering; after the
				// deletion above, old line 4 no longer holds "d".
				Comment:          "capitalize d",
				HighlightedLines: []int{4},
				Diff:             "@@ -4,1 +4,1 @@\n-d\n+D\n",
			},
		},
	})

	require.NoError(t, s.Approve(context.Background(), keyFor(t, s, "f.txt", 0)))

	fs, err := s.File("f.txt")
	require.NoError(t, err)
	require.Equal(t, "a\nc\nd\n", fs.CurrentContent())

	stale := keyFor(t, s, "f.txt", 1)
	err = s.Approve(context.Background(), stale)
	require.ErrorIs(t, err, &domain.StaleBaseError{})

	// Nothing mutated, suggestion still pending.
	assert.Equal(t, "a\nc\nd\n", fs.CurrentContent())
	sug, err := s.Suggestion(stale)
	require.NoError(t, err)
	assert.Equal(t, domain.SuggestionPending, sug.State)

	// Recovery: refresh the diff against the current content, then approve.
	require.NoError(t, s.RefreshSuggestionDiff(stale, "@@ -3,1 +3,1 @@\n-d\n+D\n"))
	require.NoError(t, s.Approve(context.Background(), stale))
	assert.Equal(t, "a\nc\nD\n", fs.CurrentContent())
}

func TestReject_TerminalAndUnconditional(t *testing.T) {
	s := newSession(t, &diffPatcher{}, domain.FileResult{
		File:    "f.txt",
		Content: "a\nb\n",
		Suggestions: []domain.SuggestionInput{{
			Comment:          "capitalize b",
			HighlightedLines: []int{2},
			Diff:             "@@ -2,1 +2,1 @@\n-b\n+B\n",
		}},
	})

	key := keyFor(t, s, "f.txt", 0)
	require.NoError(t, s.Reject(key))

	sug, err := s.Suggestion(key)
	require.NoError(t, err)
	assert.Equal(t, domain.SuggestionRejected, sug.State)

	// Rejection has no side effects on content.
	fs, err := s.File("f.txt")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", fs.CurrentContent())

	// No transition leaves a terminal state.
	require.ErrorIs(t, s.Reject(key), domain.ErrSuggestionResolved)
	require.ErrorIs(t, s.Approve(context.Background(), key), domain.ErrSuggestionResolved)
}

func TestApprove_UnknownFileAndSuggestion(t *testing.T) {
	s := newSession(t, &diffPatcher{}, domain.FileResult{
		File:    "f.txt",
		Content: "a\n",
		Suggestions: []domain.SuggestionInput{{
			Comment:          "noop",
			HighlightedLines: []int{1},
			Diff:             "@@ -1,1 +1,1 @@\n-a\n+A\n",
		}},
	})

	err := s.Approve(context.Background(), domain.SuggestionKey{File: "missing.txt", StartLine: 1})
	require.ErrorIs(t, err, domain.ErrUnknownFile)

	err = s.Approve(context.Background(), domain.SuggestionKey{File: "f.txt", StartLine: 99, Index: 7})
	require.ErrorIs(t, err, domain.ErrUnknownSuggestion)
}

func TestApprove_CollaboratorFailureRestoresPending(t *testing.T) {
	patcher := &diffPatcher{err: errors.New("boom")}
	s := newSession(t, patcher, domain.FileResult{
		File:    "f.txt",
		Content: "a\nb\n",
		Suggestions: []domain.SuggestionInput{{
			Comment:          "capitalize b",
			HighlightedLines: []int{2},
			Diff:             "@@ -2,1 +2,1 @@\n-b\n+B\n",
		}},
	})

	key := keyFor(t, s, "f.txt", 0)
	require.Error(t, s.Approve(context.Background(), key))

	sug, err := s.Suggestion(key)
	require.NoError(t, err)
	assert.Equal(t, domain.SuggestionPending, sug.State)

	fs, err := s.File("f.txt")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", fs.CurrentContent())
	assert.Empty(t, fs.ApprovedChanges())
}

func TestApprove_CancellationRestoresPending(t *testing.T) {
	patcher := &diffPatcher{block: make(chan struct{})}
	s := newSession(t, patcher, domain.FileResult{
		File:    "f.txt",
		Content: "a\nb\n",
		Suggestions: []domain.SuggestionInput{{
			Comment:          "capitalize b",
			HighlightedLines: []int{2},
			Diff:             "@@ -2,1 +2,1 @@\n-b\n+B\n",
		}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	key := keyFor(t, s, "f.txt", 0)

	done := make(chan error, 1)
	go func() { done <- s.Approve(ctx, key) }()
	cancel()

	err := <-done
	require.ErrorIs(t, err, context.Canceled)

	sug, err := s.Suggestion(key)
	require.NoError(t, err)
	assert.Equal(t, domain.SuggestionPending, sug.State)
}

func TestApprove_RejectDuringApplyDiscardsResult(t *testing.T) {
	patcher := &diffPatcher{
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	s := newSession(t, patcher, domain.FileResult{
		File:    "f.txt",
		Content: "a\nb\n",
		Suggestions: []domain.SuggestionInput{{
			Comment:          "capitalize b",
			HighlightedLines: []int{2},
			Diff:             "@@ -2,1 +2,1 @@\n-b\n+B\n",
		}},
	})

	key := keyFor(t, s, "f.txt", 0)

	done := make(chan error, 1)
	go func() { done <- s.Approve(context.Background(), key) }()

	// Wait until the approval is inside the collaborator call, then reject
	// the same suggestion and let the call finish.
	<-patcher.started
	require.NoError(t, s.Reject(key))
	close(patcher.block)

	err := <-done
	require.ErrorIs(t, err, domain.ErrSuggestionResolved)

	// The rejection is terminal and the late apply result is discarded.
	sug, err := s.Suggestion(key)
	require.NoError(t, err)
	assert.Equal(t, domain.SuggestionRejected, sug.State)

	fs, err := s.File("f.txt")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", fs.CurrentContent())
	assert.Empty(t, fs.ApprovedChanges())
}

func TestApprove_DifferentFilesConcurrently(t *testing.T) {
	files := []domain.FileResult{
		{
			File:    "one.txt",
			Content: "a\nb\n",
			Suggestions: []domain.SuggestionInput{{
				Comment:          "capitalize b",
				HighlightedLines: []int{2},
				Diff:             "@@ -2,1 +2,1 @@\n-b\n+B\n",
			}},
		},
		{
			File:    "two.txt",
			Content: "x\ny\n",
			Suggestions: []domain.SuggestionInput{{
				Comment:          "capitalize y",
				HighlightedLines: []int{2},
				Diff:             "@@ -2,1 +2,1 @@\n-y\n+Y\n",
			}},
		},
	}
	s := newSession(t, &diffPatcher{}, files...)

	keys := []domain.SuggestionKey{
		keyFor(t, s, "one.txt", 0),
		keyFor(t, s, "two.txt", 0),
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, key := range keys {
		wg.Add(1)
		go func(i int, key domain.SuggestionKey) {
			defer wg.Done()
			errs[i] = s.Approve(context.Background(), key)
		}(i, key)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	one, err := s.File("one.txt")
	require.NoError(t, err)
	two, err := s.File("two.txt")
	require.NoError(t, err)
	assert.Equal(t, "a\nB\n", one.CurrentContent())
	assert.Equal(t, "x\nY\n", two.CurrentContent())
}

func TestProgress(t *testing.T) {
	s := newSession(t, &diffPatcher{}, domain.FileResult{
		File:    "f.txt",
		Content: "a\nb\nc\n",
		Suggestions: []domain.SuggestionInput{
			{Comment: "one", HighlightedLines: []int{1}, Diff: "@@ -1,1 +1,1 @@\n-a\n+A\n"},
			{Comment: "two", HighlightedLines: []int{3}, Diff: "@@ -3,1 +3,1 @@\n-c\n+C\n"},
		},
	})

	assert.Equal(t, 0.0, s.Progress())

	require.NoError(t, s.Approve(context.Background(), keyFor(t, s, "f.txt", 0)))
	assert.Equal(t, 0.5, s.Progress())

	require.NoError(t, s.Reject(keyFor(t, s, "f.txt", 1)))
	assert.Equal(t, 1.0, s.Progress())
}

func TestFinalize_Lifecycle(t *testing.T) {
	s := newSession(t, &diffPatcher{}, domain.FileResult{
		File:    "f.txt",
		Content: "a\nb\n",
		Suggestions: []domain.SuggestionInput{{
			Comment:          "capitalize b",
			HighlightedLines: []int{2},
			Diff:             "@@ -2,1 +2,1 @@\n-b\n+B\n",
		}},
	})
	key := keyFor(t, s, "f.txt", 0)

	// Pending suggestion: not ready.
	_, err := s.Finalize("review/fixes")
	require.ErrorIs(t, err, domain.ErrNotReady)

	// All resolved but nothing approved: nothing to publish.
	require.NoError(t, s.Reject(key))
	_, err = s.Finalize("review/fixes")
	require.ErrorIs(t, err, domain.ErrNothingToPublish)
}

func TestFinalize_ReturnsOrderedChanges(t *testing.T) {
	s := newSession(t, &diffPatcher{},
		domain.FileResult{
			File:    "one.txt",
			Content: "a\nb\n",
			Suggestions: []domain.SuggestionInput{{
				Comment:          "capitalize b",
				HighlightedLines: []int{2},
				Diff:             "@@ -2,1 +2,1 @@\n-b\n+B\n",
			}},
		},
		domain.FileResult{
			File:    "two.txt",
			Content: "x\ny\n",
			Suggestions: []domain.SuggestionInput{{
				Comment:          "drop y",
				HighlightedLines: []int{2},
				Diff:             "@@ -2,1 +1,0 @@\n-y\n",
			}},
		},
	)

	require.NoError(t, s.Approve(context.Background(), keyFor(t, s, "two.txt", 0)))
	require.NoError(t, s.Approve(context.Background(), keyFor(t, s, "one.txt", 0)))

	set, err := s.Finalize("review/fixes")
	require.NoError(t, err)

	assert.Equal(t, "review/fixes", set.BranchName)
	require.Len(t, set.Changes, 2)
	// Review order by file, not approval order.
	assert.Equal(t, "one.txt", set.Changes[0].File)
	assert.Equal(t, "two.txt", set.Changes[1].File)
	assert.Equal(t, "a\nb\n", set.Changes[0].OriginalContent)
	assert.Equal(t, "a\nB\n", set.Changes[0].ModifiedContent)
	assert.Equal(t, "capitalize b", set.Changes[0].Rationale)
	assert.NotEmpty(t, set.Changes[0].Diff)
}

func TestNew_DuplicateFileRejected(t *testing.T) {
	_, err := session.New(context.Background(), domain.ReviewResult{Files: []domain.FileResult{
		{File: "f.txt"},
		{File: "f.txt"},
	}}, apply.New(&diffPatcher{}), nil)
	require.Error(t, err)
}
