package repository

import (
	"context"
	"errors"
	"fmt"

	goGit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitProvider serves file content from a git repository at a fixed ref.
// With an empty ref it reads from HEAD. It implements the session
// ContentProvider port for reviews pinned to a committed state.
type GitProvider struct {
	repoDir string
	ref     string
}

// NewGitProvider constructs a provider for the repository containing repoDir.
// ref may be a branch name, tag, or commit hash; empty means HEAD.
func NewGitProvider(repoDir, ref string) *GitProvider {
	return &GitProvider{repoDir: repoDir, ref: ref}
}

// FileContent returns the content of path at the provider's ref.
func (p *GitProvider) FileContent(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	repo, err := goGit.PlainOpenWithOptions(p.repoDir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}

	commit, err := p.resolveCommit(repo)
	if err != nil {
		return "", err
	}

	file, err := commit.File(path)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return "", fmt.Errorf("file %s not found at %s", path, p.refName())
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	content, err := file.Contents()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return content, nil
}

// CurrentBranch returns the name of the checked-out branch.
func (p *GitProvider) CurrentBranch(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	repo, err := goGit.PlainOpenWithOptions(p.repoDir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	name := head.Name()
	if name.IsBranch() {
		return name.Short(), nil
	}
	return "", fmt.Errorf("detached HEAD")
}

func (p *GitProvider) refName() string {
	if p.ref == "" {
		return "HEAD"
	}
	return p.ref
}

func (p *GitProvider) resolveCommit(repo *goGit.Repository) (*object.Commit, error) {
	if p.ref == "" {
		head, err := repo.Head()
		if err != nil {
			return nil, fmt.Errorf("resolve HEAD: %w", err)
		}
		return repo.CommitObject(head.Hash())
	}

	candidates := []string{
		p.ref,
		fmt.Sprintf("refs/heads/%s", p.ref),
		fmt.Sprintf("refs/remotes/origin/%s", p.ref),
	}

	var lastErr error
	for _, candidate := range candidates {
		hash, err := repo.ResolveRevision(plumbing.Revision(candidate))
		if err != nil {
			lastErr = err
			continue
		}
		return repo.CommitObject(*hash)
	}
	return nil, fmt.Errorf("resolve ref %s: %w", p.ref, lastErr)
}
