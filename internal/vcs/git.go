// Package vcs turns a freshly generated project into a git repository.
package vcs

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// DefaultMessage is the message of the initial commit.
const DefaultMessage = "Initial commit"

// ErrAlreadyRepository is returned when dir is already a git repository.
var ErrAlreadyRepository = errors.New("already a git repository")

// Signature identifies the author of the initial commit.
type Signature struct {
	Name  string
	Email string
}

func (s Signature) withDefaults() Signature {
	if s.Name == "" {
		s.Name = "starter"
	}
	if s.Email == "" {
		s.Email = "starter@localhost"
	}
	return s
}

// Init creates a repository in dir, stages every file and records an initial
// commit. It returns the commit hash.
func Init(dir string, author Signature, message string) (string, error) {
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryAlreadyExists) {
			return "", fmt.Errorf("%w: %s", ErrAlreadyRepository, dir)
		}
		return "", fmt.Errorf("git init %s failed: %w", dir, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to open worktree: %w", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", fmt.Errorf("failed to stage files: %w", err)
	}

	if message == "" {
		message = DefaultMessage
	}
	author = author.withDefaults()
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author.Name,
			Email: author.Email,
			When:  time.Now(),
		},
		AllowEmptyCommits: true,
	})
	if err != nil {
		return "", fmt.Errorf("initial commit failed: %w", err)
	}
	return hash.String(), nil
}
