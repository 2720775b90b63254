package forge

import (
	"context"
	"strconv"
)

// MockProvider is a mock implementation of [Provider] for testing.
type MockProvider struct {
	OpenChangeSetFunc func(ctx context.Context, req ChangeSetRequest) (*ChangeSet, error)
	IsApprovedFunc    func(ctx context.Context, number int) (bool, error)

	// Requests records every OpenChangeSet call in order.
	Requests []ChangeSetRequest
}

// OpenChangeSet implements Provider.
func (m *MockProvider) OpenChangeSet(ctx context.Context, req ChangeSetRequest) (*ChangeSet, error) {
	m.Requests = append(m.Requests, req)
	if m.OpenChangeSetFunc != nil {
		return m.OpenChangeSetFunc(ctx, req)
	}
	n := len(m.Requests)
	return &ChangeSet{Number: n, URL: "https://example.com/pr/" + strconv.Itoa(n), Title: req.Title, Draft: req.Draft}, nil
}

// IsApproved implements Provider.
func (m *MockProvider) IsApproved(ctx context.Context, number int) (bool, error) {
	if m.IsApprovedFunc != nil {
		return m.IsApprovedFunc(ctx, number)
	}
	return false, nil
}
