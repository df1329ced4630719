package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// GitOps handles git operations for the data repo holding the database file.
type GitOps struct {
	repo     *git.Repository
	worktree *git.Worktree
	token    string
}

// OpenRepo opens a git repository at the given path.
func OpenRepo(path, token string) (*GitOps, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("opening repo: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}

	return &GitOps{repo: repo, worktree: wt, token: token}, nil
}

// Dirty reports whether path (relative to the repo root) differs from HEAD.
func (g *GitOps) Dirty(path string) (bool, error) {
	status, err := g.worktree.Status()
	if err != nil {
		return false, fmt.Errorf("reading status: %w", err)
	}
	fs := status.File(path)
	return fs.Worktree != git.Unmodified || fs.Staging != git.Unmodified, nil
}

// CreateBranch creates and checks out a new branch at HEAD. The worktree
// content is kept.
func (g *GitOps) CreateBranch(name string) error {
	headRef, err := g.repo.Head()
	if err != nil {
		return fmt.Errorf("getting HEAD: %w", err)
	}

	branchRef := plumbing.NewBranchReferenceName(name)
	ref := plumbing.NewHashReference(branchRef, headRef.Hash())

	if err := g.repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("creating branch ref: %w", err)
	}

	return g.worktree.Checkout(&git.CheckoutOptions{
		Branch: branchRef,
		Keep:   true,
	})
}

// Add stages one path.
func (g *GitOps) Add(path string) error {
	_, err := g.worktree.Add(path)
	return err
}

// Commit creates a commit with the given message and returns its hash.
func (g *GitOps) Commit(message string, when time.Time) (string, error) {
	hash, err := g.worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "modelprice",
			Email: "modelprice@everstack.dev",
			When:  when,
		},
	})
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

// Push pushes branch to origin.
func (g *GitOps) Push(ctx context.Context, branch string) error {
	ref := plumbing.NewBranchReferenceName(branch)
	err := g.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(fmt.Sprintf("+%s:%s", ref, ref))},
		Auth: &githttp.BasicAuth{
			Username: "x-access-token",
			Password: g.token,
		},
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return err
}
