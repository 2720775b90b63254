package forge

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/xanzy/go-gitlab"
)

// GitLab implements [Provider] for GitLab projects. Change-sets are merge
// requests.
type GitLab struct {
	client    *gitlab.Client
	projectID string // Can be numeric ID or "namespace/project"
}

// NewGitLab creates a GitLab provider.
// token is a personal access token.
// baseURL is the GitLab instance URL (empty for gitlab.com).
// projectID can be numeric ID or "namespace/project" path.
func NewGitLab(token, baseURL, projectID string) (*GitLab, error) {
	if token == "" {
		return nil, errors.New("GitLab token is required")
	}
	if projectID == "" || projectID == "/" {
		return nil, errors.New("project ID is required")
	}

	var opts []gitlab.ClientOptionFunc
	if baseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(baseURL))
	}
	client, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GitLab client: %w", err)
	}

	return &GitLab{client: client, projectID: projectID}, nil
}

// OpenChangeSet creates a merge request.
func (p *GitLab) OpenChangeSet(ctx context.Context, req ChangeSetRequest) (*ChangeSet, error) {
	if req.Title == "" || req.Head == "" {
		return nil, errors.New("title and head branch are required")
	}
	base := req.Base
	if base == "" {
		base = "main"
	}

	title := req.Title
	if req.Draft {
		title = "Draft: " + title
	}

	opts := &gitlab.CreateMergeRequestOptions{
		Title:        gitlab.Ptr(title),
		Description:  gitlab.Ptr(req.Body),
		SourceBranch: gitlab.Ptr(req.Head),
		TargetBranch: gitlab.Ptr(base),
	}
	if len(req.Labels) > 0 {
		opts.Labels = gitlab.Ptr(gitlab.LabelOptions(req.Labels))
	}

	mr, resp, err := p.client.MergeRequests.CreateMergeRequest(p.projectID, opts, gitlab.WithContext(ctx))
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil, ErrExists
		}
		return nil, fmt.Errorf("create MR: %w", err)
	}

	return &ChangeSet{
		Number: mr.IID,
		URL:    mr.WebURL,
		Title:  mr.Title,
		Draft:  req.Draft,
	}, nil
}

// IsApproved reports whether the merge request was merged, or has at least
// one approval and satisfies the project's approval rules.
func (p *GitLab) IsApproved(ctx context.Context, number int) (bool, error) {
	mr, resp, err := p.client.MergeRequests.GetMergeRequest(p.projectID, number, nil, gitlab.WithContext(ctx))
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("get MR: %w", err)
	}
	switch mr.State {
	case "merged":
		return true, nil
	case "closed":
		return false, nil
	}

	approvals, _, err := p.client.MergeRequestApprovals.GetConfiguration(p.projectID, number, gitlab.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("get MR approvals: %w", err)
	}
	return approvals.Approved && len(approvals.ApprovedBy) > 0, nil
}
