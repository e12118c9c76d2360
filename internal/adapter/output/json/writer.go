// Package json writes finalized change sets to disk as JSON.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/reviewpatch/engine/internal/domain"
)

// Writer persists change sets as indented JSON files.
type Writer struct {
	now func() string
}

// NewWriter creates a new JSON writer.
func NewWriter(now func() string) *Writer {
	return &Writer{now: now}
}

// Write persists a change set to disk as a JSON file.
func (w *Writer) Write(ctx context.Context, artifact domain.ChangeSetArtifact) (string, error) {
	outputDir := filepath.Join(artifact.OutputDir, fmt.Sprintf("%s_%s", artifact.Repository, w.now()))
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	filePath := filepath.Join(outputDir, "changes.json")

	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create json file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(artifact.ChangeSet); err != nil {
		return "", fmt.Errorf("failed to encode change set to json: %w", err)
	}

	return filePath, nil
}
