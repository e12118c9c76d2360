// Package local implements the patch collaborator in-process: it extracts
// the replacement code from the suggestion's rationale text and splices it
// into the current content by line range. Useful for offline operation and
// as the default collaborator in tests.
package local

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/reviewpatch/engine/internal/usecase/apply"
)

// ErrNoCodeBlock indicates the suggestion text carried no fenced code block
// to apply.
var ErrNoCodeBlock = errors.New("no code block found in suggestion")

var (
	codeBlockRe  = regexp.MustCompile("(?s)```(\\w*)\n(.*?)\n```")
	fixSectionRe = regexp.MustCompile(`(?is)Fix:\s*\n`)
	lineNumberRe = regexp.MustCompile(`^\s*\d+:\s?`)
)

// Patcher applies suggestions without any external service.
type Patcher struct{}

// New constructs a local Patcher.
func New() *Patcher {
	return &Patcher{}
}

// Apply extracts the fix code from the suggestion text and replaces the
// requested line range of the current content with it.
//
// Extraction prefers the first code block after a "Fix:" marker; without
// one it falls back to the last code block in the text, since suggestions
// commonly quote the original code first and the fix last.
func (p *Patcher) Apply(ctx context.Context, req apply.Request) (apply.Response, error) {
	if err := ctx.Err(); err != nil {
		return apply.Response{}, err
	}

	code, ok := extractFixCode(req.SuggestionText)
	if !ok {
		return apply.Response{}, ErrNoCodeBlock
	}

	modified := replaceLines(req.CurrentContent, req.LineStart, req.LineEnd, code)
	return apply.Response{ModifiedContent: modified, Diff: req.PrecomputedDiff}, nil
}

// codeBlock is one fenced block with its declared language.
type codeBlock struct {
	language string
	code     string
}

// extractCodeBlocks returns all fenced code blocks in order.
func extractCodeBlocks(text string) []codeBlock {
	matches := codeBlockRe.FindAllStringSubmatch(text, -1)
	blocks := make([]codeBlock, 0, len(matches))
	for _, m := range matches {
		lang := m[1]
		if lang == "" {
			lang = "text"
		}
		blocks = append(blocks, codeBlock{language: lang, code: strings.TrimSpace(m[2])})
	}
	return blocks
}

// extractFixCode picks the code block to apply from the suggestion text.
func extractFixCode(text string) (string, bool) {
	if loc := fixSectionRe.FindStringIndex(text); loc != nil {
		if blocks := extractCodeBlocks(text[loc[1]:]); len(blocks) > 0 {
			return stripLineNumbers(blocks[0].code), true
		}
	}

	blocks := extractCodeBlocks(text)
	if len(blocks) == 0 {
		return "", false
	}
	return stripLineNumbers(blocks[len(blocks)-1].code), true
}

// stripLineNumbers removes leading "NN: " prefixes that generators
// sometimes echo from numbered listings.
func stripLineNumbers(code string) string {
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		lines[i] = lineNumberRe.ReplaceAllString(line, "")
	}
	return strings.Join(lines, "\n")
}

// replaceLines replaces the inclusive 1-indexed range [start, end] of
// content with the replacement text.
func replaceLines(content string, start, end int, replacement string) string {
	trailingNewline := strings.HasSuffix(content, "\n")
	lines := strings.Split(content, "\n")
	if trailingNewline {
		lines = lines[:len(lines)-1]
	}

	startIdx := start - 1
	if startIdx < 0 {
		startIdx = 0
	}
	if startIdx > len(lines) {
		startIdx = len(lines)
	}
	endIdx := end
	if endIdx < start {
		endIdx = start
	}
	if endIdx > len(lines) {
		endIdx = len(lines)
	}

	replacementLines := strings.Split(replacement, "\n")

	out := make([]string, 0, len(lines)+len(replacementLines))
	out = append(out, lines[:startIdx]...)
	out = append(out, replacementLines...)
	out = append(out, lines[endIdx:]...)

	result := strings.Join(out, "\n")
	if trailingNewline {
		result += "\n"
	}
	return result
}
