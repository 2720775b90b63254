// Package forge opens reviewable change-sets on a pull-request host and
// reports whether reviewers approved them.
//
// The [Provider] interface is deliberately small: the workflow only needs to
// publish one change-set per stage and later learn whether it was approved.
// [GitHub] implements it with go-github, [GitLab] with go-gitlab;
// [MockProvider] is for tests.
package forge

import (
	"context"
	"errors"
	"fmt"

	"seniorflow/internal/config"
)

// Forge errors.
var (
	// ErrNoProvider indicates no forge is configured.
	ErrNoProvider = errors.New("no forge provider configured")

	// ErrUnknownProvider indicates an unsupported forge.provider value.
	ErrUnknownProvider = errors.New("unknown forge provider")

	// ErrExists indicates a change-set already exists for the branch.
	ErrExists = errors.New("change-set already exists for this branch")

	// ErrNotFound indicates the change-set does not exist.
	ErrNotFound = errors.New("change-set not found")

	// ErrNoChanges indicates there are no changes between branches.
	ErrNoChanges = errors.New("no changes between branches")
)

// Provider is the interface for publishing change-sets.
type Provider interface {
	// OpenChangeSet opens a change-set for review.
	OpenChangeSet(ctx context.Context, req ChangeSetRequest) (*ChangeSet, error)

	// IsApproved reports whether the change-set was approved or merged.
	IsApproved(ctx context.Context, number int) (bool, error)
}

// ChangeSetRequest configures change-set creation.
type ChangeSetRequest struct {
	Title  string   // Title (required)
	Body   string   // Description (markdown)
	Head   string   // Source branch (required)
	Base   string   // Target branch (default: "main")
	Labels []string // Labels to apply
	Draft  bool     // Open as draft
}

// ChangeSet is a created change-set.
type ChangeSet struct {
	Number int    // Change-set number
	URL    string // Web URL
	Title  string
	Draft  bool
}

// New creates the [Provider] selected by cfg.Provider.
//
// Returns [ErrNoProvider] when no provider is configured and
// [ErrUnknownProvider] for unsupported values.
func New(cfg config.ForgeConfig) (Provider, error) {
	switch cfg.Provider {
	case "":
		return nil, ErrNoProvider
	case "github":
		return NewGitHub(cfg.Token, cfg.Owner, cfg.Repo)
	case "gitlab":
		return NewGitLab(cfg.Token, cfg.BaseURL, cfg.Owner+"/"+cfg.Repo)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
