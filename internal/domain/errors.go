package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFile indicates a suggestion key referenced a file the
	// session does not track.
	ErrUnknownFile = errors.New("unknown file")

	// ErrNotReady indicates finalize was called while at least one
	// suggestion is still pending.
	ErrNotReady = errors.New("review has unresolved suggestions")

	// ErrNothingToPublish indicates finalize was called with every
	// suggestion resolved but none approved.
	ErrNothingToPublish = errors.New("no approved changes to publish")

	// ErrUnknownSuggestion indicates a key that matches no suggestion in
	// the file it references.
	ErrUnknownSuggestion = errors.New("unknown suggestion")

	// ErrSuggestionResolved indicates an approve or reject on a suggestion
	// already in a terminal state.
	ErrSuggestionResolved = errors.New("suggestion already resolved")
)

// StaleBaseError indicates a suggestion's diff was computed against content
// that no longer matches the file's current content. The caller must
// re-request a diff before the suggestion can be approved.
type StaleBaseError struct {
	Key      SuggestionKey
	Line     int    // old-side line number that failed to match
	Expected string // line content recorded in the diff
	Actual   string // line content found in the base, empty when out of range
}

func (e *StaleBaseError) Error() string {
	return fmt.Sprintf("suggestion %s is stale: line %d no longer matches", e.Key, e.Line)
}

// Is reports equality by error class so callers can use
// errors.Is(err, &StaleBaseError{}).
func (e *StaleBaseError) Is(target error) bool {
	_, ok := target.(*StaleBaseError)
	return ok
}

// ConflictError indicates a suggestion's target range overlaps a change
// already approved in the same session. Resolving the conflict is the
// caller's decision.
type ConflictError struct {
	Key           SuggestionKey
	Start, End    int
	ConflictsWith SuggestionKey
	TheirStart    int
	TheirEnd      int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("suggestion %s lines %d-%d overlap approved change %s lines %d-%d",
		e.Key, e.Start, e.End, e.ConflictsWith, e.TheirStart, e.TheirEnd)
}

// Is reports equality by error class.
func (e *ConflictError) Is(target error) bool {
	_, ok := target.(*ConflictError)
	return ok
}
