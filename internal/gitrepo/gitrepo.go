// SPDX-License-Identifier: MPL-2.0

// Package gitrepo wraps the go-git operations the provisioner needs:
// repository creation, history probing, staging, and the initial commit.
package gitrepo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Committer identity for the synthetic initial commit. The original history
// starts from a commit not attributable to any human author.
const (
	committerName  = "groundwork"
	committerEmail = "groundwork@localhost"
)

// Repo is a git repository rooted at a workspace directory.
type Repo struct {
	path string
	repo *git.Repository
}

// MetadataDir returns the path of the version-control metadata directory for
// a workspace. Its existence is the repo-init completion marker.
func MetadataDir(workspace string) string {
	return filepath.Join(workspace, git.GitDirName)
}

// IsInitialized reports whether the workspace already has a git metadata
// directory.
func IsInitialized(workspace string) bool {
	info, err := os.Stat(MetadataDir(workspace))
	return err == nil && info.IsDir()
}

// Ensure opens the repository at workspace, initializing it first when no
// metadata directory exists.
func Ensure(workspace string) (*Repo, error) {
	if IsInitialized(workspace) {
		return Open(workspace)
	}

	repo, err := git.PlainInit(workspace, false)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize repository at %s: %w", workspace, err)
	}
	return &Repo{path: workspace, repo: repo}, nil
}

// Open opens an existing repository at workspace.
func Open(workspace string) (*Repo, error) {
	repo, err := git.PlainOpen(workspace)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %s: %w", workspace, err)
	}
	return &Repo{path: workspace, repo: repo}, nil
}

// Path returns the workspace root the repository was opened at.
func (r *Repo) Path() string { return r.path }

// HasCommits reports whether any commit is reachable from HEAD.
func (r *Repo) HasCommits() (bool, error) {
	_, err := r.repo.Head()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to resolve HEAD: %w", err)
}

// Stage adds a single path (relative to the workspace root) to the index.
func (r *Repo) Stage(rel string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open worktree: %w", err)
	}
	if _, err := wt.Add(rel); err != nil {
		return fmt.Errorf("failed to stage %s: %w", rel, err)
	}
	return nil
}

// CommitAll stages every change under the workspace and creates a commit with
// the given message. Returns the new commit hash.
func (r *Repo) CommitAll(message string) (string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to open worktree: %w", err)
	}

	if _, err := wt.Add("."); err != nil {
		return "", fmt.Errorf("failed to stage workspace contents: %w", err)
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  committerName,
			Email: committerEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return hash.String(), nil
}

// CommitCount returns the number of commits reachable from HEAD. Zero when
// the repository has no history yet.
func (r *Repo) CommitCount() (int, error) {
	head, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	iter, err := r.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return 0, fmt.Errorf("failed to walk history: %w", err)
	}
	defer iter.Close()

	count := 0
	err = iter.ForEach(func(*object.Commit) error {
		count++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk history: %w", err)
	}
	return count, nil
}
