package forge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Review states reported by GitHub.
const (
	reviewApproved         = "APPROVED"
	reviewChangesRequested = "CHANGES_REQUESTED"
	reviewDismissed        = "DISMISSED"
)

// GitHub implements [Provider] for GitHub repositories.
type GitHub struct {
	client *github.Client
	owner  string
	repo   string
	logger *zap.Logger
}

// NewGitHub creates a GitHub provider.
// token is a personal access token or GitHub App token.
func NewGitHub(token, owner, repo string) (*GitHub, error) {
	if token == "" {
		return nil, errors.New("GitHub token is required")
	}
	if owner == "" || repo == "" {
		return nil, errors.New("owner and repo are required")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)

	return &GitHub{
		client: github.NewClient(tc),
		owner:  owner,
		repo:   repo,
		logger: zap.NewNop(),
	}, nil
}

// SetLogger configures the logger used for non-fatal API failures.
func (p *GitHub) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p.logger = logger
}

// OpenChangeSet creates a pull request.
func (p *GitHub) OpenChangeSet(ctx context.Context, req ChangeSetRequest) (*ChangeSet, error) {
	if req.Title == "" || req.Head == "" {
		return nil, errors.New("title and head branch are required")
	}
	base := req.Base
	if base == "" {
		base = "main"
	}

	newPR := &github.NewPullRequest{
		Title: github.String(req.Title),
		Body:  github.String(req.Body),
		Base:  github.String(base),
		Head:  github.String(req.Head),
		Draft: github.Bool(req.Draft),
	}

	pr, resp, err := p.client.PullRequests.Create(ctx, p.owner, p.repo, newPR)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity {
			if strings.Contains(err.Error(), "A pull request already exists") {
				return nil, ErrExists
			}
			if strings.Contains(err.Error(), "No commits between") {
				return nil, ErrNoChanges
			}
		}
		return nil, fmt.Errorf("open change-set: %w", err)
	}

	if len(req.Labels) > 0 {
		if _, _, err := p.client.Issues.AddLabelsToIssue(ctx, p.owner, p.repo, pr.GetNumber(), req.Labels); err != nil {
			// Log but don't fail, the change-set was created
			p.logger.Warn("failed to add labels to change-set",
				zap.Error(err), zap.Int("number", pr.GetNumber()), zap.Strings("labels", req.Labels))
		}
	}

	return &ChangeSet{
		Number: pr.GetNumber(),
		URL:    pr.GetHTMLURL(),
		Title:  pr.GetTitle(),
		Draft:  pr.GetDraft(),
	}, nil
}

// IsApproved reports whether the pull request is merged, or whether its
// reviewers' latest decisions include an approval and no requested changes.
func (p *GitHub) IsApproved(ctx context.Context, number int) (bool, error) {
	pr, resp, err := p.client.PullRequests.Get(ctx, p.owner, p.repo, number)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("get change-set: %w", err)
	}
	if pr.GetMerged() {
		return true, nil
	}

	latest := make(map[string]string)
	var order []string
	opts := &github.ListOptions{PerPage: 100}
	for {
		reviews, resp, err := p.client.PullRequests.ListReviews(ctx, p.owner, p.repo, number, opts)
		if err != nil {
			return false, fmt.Errorf("list reviews: %w", err)
		}
		for _, r := range reviews {
			state := r.GetState()
			if state != reviewApproved && state != reviewChangesRequested && state != reviewDismissed {
				continue
			}
			login := r.GetUser().GetLogin()
			if _, seen := latest[login]; !seen {
				order = append(order, login)
			}
			latest[login] = state
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	approved := false
	for _, login := range order {
		switch latest[login] {
		case reviewChangesRequested:
			return false, nil
		case reviewApproved:
			approved = true
		}
	}
	return approved, nil
}
