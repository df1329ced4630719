package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"

	"github.com/everstacklabs/modelprice/internal/diff"
)

// Publisher ships a refreshed database somewhere reviewable.
type Publisher interface {
	Publish(ctx context.Context, changesets []*diff.ChangeSet) (*PublishResult, error)
}

// PublishResult describes what a publish produced.
type PublishResult struct {
	Branch   string `json:"branch"`
	Commit   string `json:"commit"`
	PRNumber int    `json:"pr_number,omitempty"`
	PRURL    string `json:"pr_url,omitempty"`
	Draft    bool   `json:"draft,omitempty"`
}

// PullRequestCreator opens pull requests.
type PullRequestCreator interface {
	Create(ctx context.Context, owner, repo string, pr *github.NewPullRequest) (*github.PullRequest, *github.Response, error)
}

// GitPublisherConfig configures a GitPublisher.
type GitPublisherConfig struct {
	RepoPath   string
	DBPath     string
	Token      string
	Owner      string
	Repo       string
	BaseBranch string
}

// GitPublisher commits the database file on a fresh branch. With a token
// it also pushes the branch and opens a pull request.
type GitPublisher struct {
	cfg GitPublisherConfig
	prs PullRequestCreator
	now func() time.Time
}

// NewGitPublisher returns a publisher for cfg. The GitHub client is only
// built when a token is configured.
func NewGitPublisher(ctx context.Context, cfg GitPublisherConfig) *GitPublisher {
	p := &GitPublisher{cfg: cfg, now: time.Now}
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		p.prs = github.NewClient(oauth2.NewClient(ctx, ts)).PullRequests
	}
	return p
}

// Publish returns a nil result when the database file has no changes.
func (p *GitPublisher) Publish(ctx context.Context, changesets []*diff.ChangeSet) (*PublishResult, error) {
	rel, err := p.relativeDBPath()
	if err != nil {
		return nil, err
	}

	gitOps, err := OpenRepo(p.cfg.RepoPath, p.cfg.Token)
	if err != nil {
		return nil, err
	}

	dirty, err := gitOps.Dirty(rel)
	if err != nil {
		return nil, err
	}
	if !dirty {
		slog.Info("database unchanged, nothing to publish", "path", rel)
		return nil, nil
	}

	now := p.now()
	branch := "modelprice/refresh-" + now.UTC().Format("20060102-150405")
	title := commitTitle(changesets)

	// Staged first: checkout refuses unstaged edits to tracked files.
	if err := gitOps.Add(rel); err != nil {
		return nil, fmt.Errorf("staging changes: %w", err)
	}
	if err := gitOps.CreateBranch(branch); err != nil {
		return nil, fmt.Errorf("creating branch: %w", err)
	}
	hash, err := gitOps.Commit(title, now)
	if err != nil {
		return nil, fmt.Errorf("committing: %w", err)
	}
	res := &PublishResult{Branch: branch, Commit: hash, Draft: assessRisk(changesets)}

	if p.prs == nil {
		slog.Info("committed refresh locally", "branch", branch, "commit", hash)
		return res, nil
	}

	if err := gitOps.Push(ctx, branch); err != nil {
		return nil, fmt.Errorf("pushing: %w", err)
	}

	body := diff.RenderMarkdown(changesets)
	base := p.cfg.BaseBranch
	pr, _, err := p.prs.Create(ctx, p.cfg.Owner, p.cfg.Repo, &github.NewPullRequest{
		Title: &title,
		Body:  &body,
		Head:  &branch,
		Base:  &base,
		Draft: &res.Draft,
	})
	if err != nil {
		return nil, fmt.Errorf("creating PR: %w", err)
	}
	res.PRNumber = pr.GetNumber()
	res.PRURL = pr.GetHTMLURL()

	slog.Info("PR created",
		"number", res.PRNumber,
		"draft", res.Draft,
		"url", res.PRURL)

	return res, nil
}

func (p *GitPublisher) relativeDBPath() (string, error) {
	repo, err := filepath.Abs(p.cfg.RepoPath)
	if err != nil {
		return "", fmt.Errorf("resolving repo path: %w", err)
	}
	db, err := filepath.Abs(p.cfg.DBPath)
	if err != nil {
		return "", fmt.Errorf("resolving database path: %w", err)
	}
	rel, err := filepath.Rel(repo, db)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("database %s is outside repo %s", p.cfg.DBPath, p.cfg.RepoPath)
	}
	return filepath.ToSlash(rel), nil
}

func commitTitle(changesets []*diff.ChangeSet) string {
	var sources []string
	for _, cs := range changesets {
		if cs.HasChanges() {
			sources = append(sources, cs.Source)
		}
	}
	if len(sources) == 0 {
		return "chore(pricing): refresh model metadata"
	}
	return fmt.Sprintf("chore(pricing): update %s models", strings.Join(sources, ", "))
}

// assessRisk reports whether the refresh should be opened as a draft:
// many changed or removed records, or a large price swing.
func assessRisk(changesets []*diff.ChangeSet) bool {
	for _, cs := range changesets {
		// Changed records > 25 → draft PR
		if cs.TotalChanged() > 25 {
			return true
		}
		// Removals > 3 → draft PR
		if len(cs.Removed) > 3 {
			return true
		}
		for _, u := range cs.Updated {
			for _, c := range u.Changes {
				if c.Field != "pricing.input" && c.Field != "pricing.output" {
					continue
				}
				oldVal, okOld := c.OldValue.(float64)
				newVal, okNew := c.NewValue.(float64)
				if okOld && okNew && oldVal > 0 {
					delta := (newVal - oldVal) / oldVal
					if delta > 0.35 || delta < -0.35 {
						return true
					}
				}
			}
		}
	}
	return false
}
