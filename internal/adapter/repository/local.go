// Package repository provides content providers for review sessions:
// a worktree-backed provider that reads files from disk and a git-backed
// provider that reads them at a pinned ref.
package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WorktreeProvider serves file content from a directory on disk.
// All paths are resolved relative to the root directory and path
// traversal attempts are blocked.
type WorktreeProvider struct {
	root string
}

// NewWorktreeProvider creates a provider rooted at the given directory.
func NewWorktreeProvider(root string) *WorktreeProvider {
	return &WorktreeProvider{root: root}
}

// FileContent reads the contents of a file at the given path.
func (p *WorktreeProvider) FileContent(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	resolved, err := p.resolvePath(path)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", path, err)
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// FileExists checks if a regular file exists at the given path.
func (p *WorktreeProvider) FileExists(path string) bool {
	resolved, err := p.resolvePath(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// WriteFile writes content to a file at the given path, creating
// parent directories as needed.
func (p *WorktreeProvider) WriteFile(path, content string) error {
	resolved, err := p.resolvePath(path)
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// resolvePath resolves a path and validates it's within the root.
// It follows symlinks so a link cannot escape the root directory.
func (p *WorktreeProvider) resolvePath(path string) (string, error) {
	var resolved string

	if filepath.IsAbs(path) {
		resolved = path
	} else {
		resolved = filepath.Join(p.root, path)
	}
	resolved = filepath.Clean(resolved)

	realRoot, err := filepath.EvalSymlinks(p.root)
	if err != nil {
		realRoot = filepath.Clean(p.root)
	}

	realPath, err := filepath.EvalSymlinks(resolved)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("resolving symlinks: %w", err)
		}
		// File doesn't exist yet - validate the cleaned path instead.
		rel, relErr := filepath.Rel(realRoot, resolved)
		if relErr != nil || strings.HasPrefix(rel, "..") {
			return "", fmt.Errorf("path traversal detected")
		}
		return resolved, nil
	}

	rel, err := filepath.Rel(realRoot, realPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path traversal detected")
	}
	return realPath, nil
}
