// Package validate performs syntax-level hygiene checks on inbound review
// results before they populate a session. It checks diff syntax and size
// limits only, never prompt or response semantics.
package validate

import (
	"fmt"
	"strings"

	sgdiff "github.com/sourcegraph/go-diff/diff"

	"github.com/reviewpatch/engine/internal/domain"
)

// Limits bounds the inbound review result.
type Limits struct {
	MaxFileBytes          int // per-file content size cap
	MaxSuggestionsPerFile int
}

// DefaultLimits returns the standard ingestion limits.
func DefaultLimits() Limits {
	return Limits{
		MaxFileBytes:          200 * 1024,
		MaxSuggestionsPerFile: 50,
	}
}

// Problem describes one rejected element of a review result. Index is -1
// for file-level problems.
type Problem struct {
	File   string
	Index  int
	Reason string
}

func (p Problem) String() string {
	if p.Index < 0 {
		return fmt.Sprintf("%s: %s", p.File, p.Reason)
	}
	return fmt.Sprintf("%s[%d]: %s", p.File, p.Index, p.Reason)
}

// ReviewResult checks every file and suggestion against the limits and
// returns the problems found. An empty slice means the result is clean.
// Suggestions without a diff are fine; they fall back to the rationale.
func ReviewResult(result domain.ReviewResult, limits Limits) []Problem {
	var problems []Problem

	for _, file := range result.Files {
		if file.File == "" {
			problems = append(problems, Problem{File: "(empty)", Index: -1, Reason: "missing file path"})
			continue
		}
		if limits.MaxFileBytes > 0 && len(file.Content) > limits.MaxFileBytes {
			problems = append(problems, Problem{
				File:   file.File,
				Index:  -1,
				Reason: fmt.Sprintf("content is %d bytes, max allowed is %d", len(file.Content), limits.MaxFileBytes),
			})
			continue
		}
		if limits.MaxSuggestionsPerFile > 0 && len(file.Suggestions) > limits.MaxSuggestionsPerFile {
			problems = append(problems, Problem{
				File:   file.File,
				Index:  -1,
				Reason: fmt.Sprintf("%d suggestions, max allowed is %d", len(file.Suggestions), limits.MaxSuggestionsPerFile),
			})
			continue
		}

		for i, sug := range file.Suggestions {
			if sug.Severity != "" && !sug.Severity.IsValid() {
				problems = append(problems, Problem{
					File:   file.File,
					Index:  i,
					Reason: fmt.Sprintf("unrecognized severity %q", sug.Severity),
				})
			}
			if err := checkDiffSyntax(sug.Diff); err != nil {
				problems = append(problems, Problem{
					File:   file.File,
					Index:  i,
					Reason: fmt.Sprintf("malformed diff: %v", err),
				})
			}
		}
	}

	return problems
}

// checkDiffSyntax parses diffText with a strict unified-diff grammar.
// Suggestion diffs often arrive without file headers, so bare hunks are
// accepted too.
func checkDiffSyntax(diffText string) error {
	trimmed := strings.TrimSpace(diffText)
	if trimmed == "" {
		return nil
	}
	// The strict parser wants a trailing newline.
	if !strings.HasSuffix(diffText, "\n") {
		diffText += "\n"
	}

	if strings.HasPrefix(trimmed, "---") || strings.HasPrefix(trimmed, "diff --git") {
		_, err := sgdiff.ParseFileDiff([]byte(diffText))
		return err
	}
	_, err := sgdiff.ParseHunks([]byte(diffText))
	return err
}
