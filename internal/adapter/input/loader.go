// Package input loads review results produced by the generation
// collaborator from JSON files or streams.
package input

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/reviewpatch/engine/internal/domain"
)

// Load reads a review result from the given path. "-" reads stdin.
func Load(path string) (domain.ReviewResult, error) {
	if path == "-" {
		return Read(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return domain.ReviewResult{}, fmt.Errorf("open review result: %w", err)
	}
	defer file.Close()

	result, err := Read(file)
	if err != nil {
		return domain.ReviewResult{}, fmt.Errorf("load %s: %w", path, err)
	}
	return result, nil
}

// Read decodes a review result from a reader.
func Read(r io.Reader) (domain.ReviewResult, error) {
	var result domain.ReviewResult
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&result); err != nil {
		return domain.ReviewResult{}, fmt.Errorf("decode review result: %w", err)
	}
	return result, nil
}
