// Package redaction scrubs secrets from change-set artifacts before they
// are written to disk or recorded in history.
package redaction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/reviewpatch/engine/internal/domain"
)

// Engine performs regex-based secret detection and redaction.
type Engine struct {
	patterns []*regexp.Regexp
}

// NewEngine creates a redaction engine with the default secret patterns.
func NewEngine() *Engine {
	return &Engine{patterns: defaultPatterns()}
}

// Redact replaces every detected secret in input with a stable placeholder.
// The same secret always maps to the same placeholder, so diffs that touch
// a secret on both sides stay coherent after redaction.
func (e *Engine) Redact(input string) string {
	placeholders := make(map[string]string)

	for _, pattern := range e.patterns {
		for _, match := range pattern.FindAllString(input, -1) {
			if _, seen := placeholders[match]; seen {
				continue
			}
			placeholders[match] = placeholder(match)
		}
	}

	result := input
	for secret, repl := range placeholders {
		result = strings.ReplaceAll(result, secret, repl)
	}
	return result
}

// RedactChangeSet returns a copy of cs with every text field scrubbed:
// diffs, both content snapshots, and rationales.
func (e *Engine) RedactChangeSet(cs domain.ChangeSet) domain.ChangeSet {
	out := domain.ChangeSet{
		BranchName: cs.BranchName,
		Changes:    make([]domain.Change, len(cs.Changes)),
	}
	for i, change := range cs.Changes {
		change.Diff = e.Redact(change.Diff)
		change.OriginalContent = e.Redact(change.OriginalContent)
		change.ModifiedContent = e.Redact(change.ModifiedContent)
		change.Rationale = e.Redact(change.Rationale)
		out.Changes[i] = change
	}
	return out
}

// IsRedacted reports whether content contains redaction placeholders.
func (e *Engine) IsRedacted(content string) bool {
	return strings.Contains(content, "<REDACTED:")
}

// placeholder derives a stable marker from the secret's hash so repeated
// occurrences redact identically without retaining the secret.
func placeholder(secret string) string {
	hash := sha256.Sum256([]byte(secret))
	return fmt.Sprintf("<REDACTED:%s>", hex.EncodeToString(hash[:])[:8])
}

func defaultPatterns() []*regexp.Regexp {
	patterns := []string{
		// OpenAI API keys (flexible length for testing and real keys)
		`sk-[a-zA-Z0-9]{20,}`,
		// Anthropic API keys
		`sk-ant-[a-zA-Z0-9\-]{20,}`,
		// AWS Access Key ID
		`AKIA[0-9A-Z]{16}`,
		// AWS Secret Access Key (generalized high-entropy pattern)
		`aws.{0,20}?['\"][0-9a-zA-Z/+]{40}['\"]`,
		// GitHub tokens
		`gh[posr]_[a-zA-Z0-9]{20,}`,
		// Google API keys
		`AIza[0-9A-Za-z\-_]{35}`,
		// JWT tokens (basic pattern)
		`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`,
		// Private keys (PEM format)
		`-----BEGIN\s+(?:RSA|EC|OPENSSH|DSA|ENCRYPTED)\s+PRIVATE\s+KEY-----[\s\S]*?-----END\s+(?:RSA|EC|OPENSSH|DSA|ENCRYPTED)\s+PRIVATE\s+KEY-----`,
		// Slack tokens
		`xox[baprs]-[a-zA-Z0-9\-]{10,}`,
		// Generic bearer tokens (after "Bearer " keyword)
		`Bearer\s+[a-zA-Z0-9_\-\.]+`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		compiled = append(compiled, regexp.MustCompile(pattern))
	}
	return compiled
}
