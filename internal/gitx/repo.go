package gitx

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrNotInRepo indicates the directory is not inside a git working tree.
var ErrNotInRepo = errors.New("not in a git repository")

// GitRepo locates the workspace a watch loop runs in.
type GitRepo interface {
	// Discover finds the working tree root containing cwd.
	Discover(cwd string) (root string, err error)

	// RelPath computes the path of absPath relative to root.
	RelPath(root, absPath string) (string, error)

	// Branch returns the checked out branch name, or the short commit hash
	// on a detached HEAD. An unborn branch yields an empty string.
	Branch(root string) (string, error)
}

// RealGitRepo implements GitRepo with go-git.
type RealGitRepo struct{}

// NewRealGitRepo creates a new RealGitRepo.
func NewRealGitRepo() *RealGitRepo {
	return &RealGitRepo{}
}

// Discover opens the repository containing cwd, searching parent
// directories, and returns its working tree root.
func (g *RealGitRepo) Discover(cwd string) (string, error) {
	absPath, err := filepath.Abs(cwd)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	repo, err := git.PlainOpenWithOptions(absPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return "", fmt.Errorf("%s: %w", absPath, ErrNotInRepo)
		}
		return "", fmt.Errorf("failed to open repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		// Bare repositories have no working tree to watch.
		return "", fmt.Errorf("%s: %w: %v", absPath, ErrNotInRepo, err)
	}
	return wt.Filesystem.Root(), nil
}

// RelPath computes the relative path from root to absPath.
func (g *RealGitRepo) RelPath(root, absPath string) (string, error) {
	return relPath(root, absPath)
}

// Branch reads HEAD of the repository at root.
func (g *RealGitRepo) Branch(root string) (string, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return "", fmt.Errorf("failed to open repository: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return head.Hash().String()[:7], nil
}

// WorkspaceRoot returns the repository root containing cwd, or the absolute
// cwd when it is not inside a repository.
func WorkspaceRoot(repo GitRepo, cwd string) (string, error) {
	root, err := repo.Discover(cwd)
	if err == nil {
		return root, nil
	}
	if !errors.Is(err, ErrNotInRepo) {
		return "", err
	}
	abs, absErr := filepath.Abs(cwd)
	if absErr != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", absErr)
	}
	return abs, nil
}

func relPath(root, absPath string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute root: %w", err)
	}

	absTarget, err := filepath.Abs(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute target: %w", err)
	}

	rel, err := filepath.Rel(absRoot, absTarget)
	if err != nil {
		return "", fmt.Errorf("failed to compute relative path: %w", err)
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path is outside workspace")
	}
	return rel, nil
}

// FakeGitRepo implements GitRepo for testing.
type FakeGitRepo struct {
	root   string
	branch string
	err    error
}

// NewFakeGitRepo creates a FakeGitRepo rooted at root. An empty root makes
// Discover report ErrNotInRepo.
func NewFakeGitRepo(root, branch string) *FakeGitRepo {
	return &FakeGitRepo{root: root, branch: branch}
}

// SetError makes every method fail with err.
func (g *FakeGitRepo) SetError(err error) {
	g.err = err
}

// Discover returns the fake root.
func (g *FakeGitRepo) Discover(cwd string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	if g.root == "" {
		return "", fmt.Errorf("%s: %w", cwd, ErrNotInRepo)
	}
	return g.root, nil
}

// RelPath computes the relative path without touching the filesystem.
func (g *FakeGitRepo) RelPath(root, absPath string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return relPath(root, absPath)
}

// Branch returns the fake branch.
func (g *FakeGitRepo) Branch(root string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.branch, nil
}
