package apply_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewpatch/engine/internal/diff"
	"github.com/reviewpatch/engine/internal/domain"
	"github.com/reviewpatch/engine/internal/usecase/apply"
)

// stubPatcher returns a canned response and records the request it saw.
type stubPatcher struct {
	resp   apply.Response
	err    error
	called bool
	lastReq apply.Request
}

func (s *stubPatcher) Apply(ctx context.Context, req apply.Request) (apply.Response, error) {
	s.called = true
	s.lastReq = req
	return s.resp, s.err
}

func suggestionWithDiff(t *testing.T, file, diffText string, lines ...int) domain.Suggestion {
	t.Helper()
	parsed := diff.Parse(diffText)
	require.False(t, parsed.IsEmpty(), "test diff should parse")
	start := parsed.OldStart
	if len(lines) > 0 {
		start = lines[0]
	}
	return domain.Suggestion{
		Key:              domain.SuggestionKey{File: file, StartLine: start, Index: 0},
		Comment:          "replace b with B",
		Severity:         domain.SeverityMedium,
		HighlightedLines: lines,
		Diff:             &parsed,
		State:            domain.SuggestionPending,
	}
}

func TestApply_Success(t *testing.T) {
	base := "a\nb\nc\n"
	sug := suggestionWithDiff(t, "f.txt", "@@ -2,1 +2,1 @@\n-b\n+B\n", 2)
	patcher := &stubPatcher{resp: apply.Response{ModifiedContent: "a\nB\nc\n"}}

	result, err := apply.New(patcher).Apply(context.Background(), "f.txt", base, sug, nil)
	require.NoError(t, err)

	assert.Equal(t, "a\nB\nc\n", result.NewContent)
	assert.Equal(t, 2, result.LineStart)
	assert.Equal(t, 2, result.LineEnd)

	// The returned diff is recomputed against the base, not reused.
	require.False(t, result.NewDiff.IsEmpty())
	var sawDeletion, sawAddition bool
	for _, line := range result.NewDiff.Lines {
		switch line.Kind {
		case domain.LineDeletion:
			sawDeletion = true
			assert.Equal(t, "b", line.Content)
		case domain.LineAddition:
			sawAddition = true
			assert.Equal(t, "B", line.Content)
		}
	}
	assert.True(t, sawDeletion)
	assert.True(t, sawAddition)

	// The collaborator saw the current content and the reconstructed diff.
	assert.True(t, patcher.called)
	assert.Equal(t, base, patcher.lastReq.CurrentContent)
	assert.Contains(t, patcher.lastReq.PrecomputedDiff, "-b\n+B\n")
}

func TestApply_ConflictWithApprovedChange(t *testing.T) {
	sug := suggestionWithDiff(t, "f.txt", "@@ -2,1 +2,1 @@\n-b\n+B\n", 2)
	approved := []domain.ApprovedChange{{
		Key:       domain.SuggestionKey{File: "f.txt", StartLine: 1, Index: 0},
		LineStart: 1,
		LineEnd:   3,
	}}
	patcher := &stubPatcher{}

	_, err := apply.New(patcher).Apply(context.Background(), "f.txt", "a\nb\nc\n", sug, approved)

	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, sug.Key, conflict.Key)
	assert.Equal(t, 1, conflict.TheirStart)
	assert.Equal(t, 3, conflict.TheirEnd)
	assert.False(t, patcher.called, "collaborator must not be called on conflict")
}

func TestApply_NonOverlappingApprovedChangeAllowed(t *testing.T) {
	sug := suggestionWithDiff(t, "f.txt", "@@ -2,1 +2,1 @@\n-b\n+B\n", 2)
	approved := []domain.ApprovedChange{{LineStart: 10, LineEnd: 12}}
	patcher := &stubPatcher{resp: apply.Response{ModifiedContent: "a\nB\nc\n"}}

	_, err := apply.New(patcher).Apply(context.Background(), "f.txt", "a\nb\nc\n", sug, approved)
	require.NoError(t, err)
}

func TestApply_StaleBase(t *testing.T) {
	// Diff was computed against "a\nb\nc\n" but the base has drifted.
	sug := suggestionWithDiff(t, "f.txt", "@@ -2,1 +2,1 @@\n-b\n+B\n", 2)
	patcher := &stubPatcher{}

	_, err := apply.New(patcher).Apply(context.Background(), "f.txt", "a\nZZZ\nc\n", sug, nil)

	var stale *domain.StaleBaseError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, 2, stale.Line)
	assert.Equal(t, "b", stale.Expected)
	assert.Equal(t, "ZZZ", stale.Actual)
	assert.False(t, patcher.called, "collaborator must not be called on stale base")
}

func TestApply_StaleWhenLineOutOfRange(t *testing.T) {
	sug := suggestionWithDiff(t, "f.txt", "@@ -10,1 +10,1 @@\n-b\n+B\n", 10)
	patcher := &stubPatcher{}

	_, err := apply.New(patcher).Apply(context.Background(), "f.txt", "a\nb\n", sug, nil)

	var stale *domain.StaleBaseError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, 10, stale.Line)
}

func TestApply_ContextLineMismatchIsStale(t *testing.T) {
	sug := suggestionWithDiff(t, "f.txt", "@@ -1,3 +1,3 @@\n a\n-b\n+B\n c\n", 2)
	patcher := &stubPatcher{}

	// Context line 3 ("c") no longer matches.
	_, err := apply.New(patcher).Apply(context.Background(), "f.txt", "a\nb\nX\n", sug, nil)

	require.ErrorIs(t, err, &domain.StaleBaseError{})
}

func TestApply_NoStructuredDiffSkipsStalenessCheck(t *testing.T) {
	sug := domain.Suggestion{
		Key:              domain.SuggestionKey{File: "f.txt", StartLine: 2, Index: 0},
		Comment:          "replace b with B",
		HighlightedLines: []int{2},
		State:            domain.SuggestionPending,
	}
	patcher := &stubPatcher{resp: apply.Response{ModifiedContent: "a\nB\nc\n"}}

	result, err := apply.New(patcher).Apply(context.Background(), "f.txt", "a\nb\nc\n", sug, nil)
	require.NoError(t, err)
	assert.Equal(t, "a\nB\nc\n", result.NewContent)
	assert.Empty(t, patcher.lastReq.PrecomputedDiff)
}

func TestApply_CollaboratorErrorPropagates(t *testing.T) {
	sug := suggestionWithDiff(t, "f.txt", "@@ -2,1 +2,1 @@\n-b\n+B\n", 2)
	wantErr := errors.New("patch service unavailable")
	patcher := &stubPatcher{err: wantErr}

	_, err := apply.New(patcher).Apply(context.Background(), "f.txt", "a\nb\nc\n", sug, nil)
	require.ErrorIs(t, err, wantErr)
}
