// Package markdown renders finalized change sets into Markdown reports.
package markdown

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/reviewpatch/engine/internal/domain"
)

type clock func() string

// Writer renders change sets into Markdown files.
type Writer struct {
	now clock
}

// NewWriter constructs a Markdown writer with a timestamp supplier.
func NewWriter(now clock) *Writer {
	return &Writer{now: now}
}

// Write persists a Markdown artifact to disk.
func (w *Writer) Write(ctx context.Context, artifact domain.ChangeSetArtifact) (string, error) {
	if err := os.MkdirAll(artifact.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	filename := fmt.Sprintf("%s_%s_%s.md",
		sanitise(artifact.Repository),
		sanitise(artifact.ChangeSet.BranchName),
		w.now(),
	)
	path := filepath.Join(artifact.OutputDir, filename)

	content := buildContent(artifact)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write markdown: %w", err)
	}

	return path, nil
}

func buildContent(artifact domain.ChangeSetArtifact) string {
	var builder strings.Builder
	caser := cases.Title(language.English)
	builder.WriteString("# Approved Changes\n\n")
	builder.WriteString(fmt.Sprintf("- Repository: %s\n", artifact.Repository))
	builder.WriteString(fmt.Sprintf("- Branch: %s\n", artifact.ChangeSet.BranchName))
	builder.WriteString(fmt.Sprintf("- Changes: %d\n\n", len(artifact.ChangeSet.Changes)))

	if len(artifact.ChangeSet.Changes) == 0 {
		builder.WriteString("No changes approved.\n")
		return builder.String()
	}

	builder.WriteString("## Changes\n\n")
	for _, change := range artifact.ChangeSet.Changes {
		title := change.Rationale
		if title == "" {
			title = "Change"
		}
		if change.Severity != "" {
			builder.WriteString(fmt.Sprintf("### %s (%s)\n", title, caser.String(strings.ToLower(string(change.Severity)))))
		} else {
			builder.WriteString(fmt.Sprintf("### %s\n", title))
		}
		if change.LineStart > 0 {
			builder.WriteString(fmt.Sprintf("- File: %s:%d-%d\n", change.File, change.LineStart, change.LineEnd))
		} else {
			builder.WriteString(fmt.Sprintf("- File: %s\n", change.File))
		}
		builder.WriteString("\n```diff\n")
		builder.WriteString(change.Diff)
		if !strings.HasSuffix(change.Diff, "\n") {
			builder.WriteString("\n")
		}
		builder.WriteString("```\n\n")
	}

	return builder.String()
}

func sanitise(value string) string {
	if value == "" {
		return "unknown"
	}
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, string(filepath.Separator), "-")
	value = strings.ReplaceAll(value, " ", "-")
	return value
}
