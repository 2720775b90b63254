package forge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestGitHub creates a GitHub provider pointing to a test server.
func newTestGitHub(t *testing.T, handler http.Handler) *GitHub {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := github.NewClient(nil)
	client.BaseURL, _ = client.BaseURL.Parse(server.URL + "/")

	return &GitHub{client: client, owner: "acme", repo: "widgets", logger: zap.NewNop()}
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNewGitHub(t *testing.T) {
	p, err := NewGitHub("token", "acme", "widgets")
	require.NoError(t, err)
	assert.Equal(t, "acme", p.owner)
	assert.Equal(t, "widgets", p.repo)

	_, err = NewGitHub("", "acme", "widgets")
	assert.Error(t, err)

	_, err = NewGitHub("token", "", "widgets")
	assert.Error(t, err)

	_, err = NewGitHub("token", "acme", "")
	assert.Error(t, err)
}

func TestGitHub_OpenChangeSet(t *testing.T) {
	var got map[string]any
	var labels []string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		writeJSON(t, w, http.StatusCreated, map[string]any{
			"number":   7,
			"html_url": "https://github.com/acme/widgets/pull/7",
			"title":    got["title"],
			"draft":    true,
		})
	})
	mux.HandleFunc("POST /repos/acme/widgets/issues/7/labels", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&labels))
		writeJSON(t, w, http.StatusOK, []any{})
	})

	p := newTestGitHub(t, mux)
	cs, err := p.OpenChangeSet(context.Background(), ChangeSetRequest{
		Title:  "[rate-limiting] Step 1/4: Test Stubs",
		Body:   "checklist",
		Head:   "rate-limiting",
		Labels: []string{"seniorflow"},
		Draft:  true,
	})

	require.NoError(t, err)
	assert.Equal(t, 7, cs.Number)
	assert.Equal(t, "https://github.com/acme/widgets/pull/7", cs.URL)
	assert.True(t, cs.Draft)
	assert.Equal(t, "main", got["base"], "base defaults to main")
	assert.Equal(t, "rate-limiting", got["head"])
	assert.Equal(t, []string{"seniorflow"}, labels)
}

func TestGitHub_OpenChangeSet_LabelFailureIsNotFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusCreated, map[string]any{"number": 3})
	})
	mux.HandleFunc("POST /repos/acme/widgets/issues/3/labels", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusForbidden, map[string]any{"message": "forbidden"})
	})

	p := newTestGitHub(t, mux)
	cs, err := p.OpenChangeSet(context.Background(), ChangeSetRequest{Title: "t", Head: "h", Labels: []string{"x"}})

	require.NoError(t, err)
	assert.Equal(t, 3, cs.Number)
}

func TestGitHub_OpenChangeSet_Errors(t *testing.T) {
	tests := []struct {
		name    string
		message string
		status  int
		wantErr error
	}{
		{"already exists", "A pull request already exists for acme:rate-limiting.", http.StatusUnprocessableEntity, ErrExists},
		{"no commits", "No commits between main and rate-limiting", http.StatusUnprocessableEntity, ErrNoChanges},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, tt.status, map[string]any{"message": tt.message})
			})

			p := newTestGitHub(t, mux)
			_, err := p.OpenChangeSet(context.Background(), ChangeSetRequest{Title: "t", Head: "rate-limiting"})
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	p := newTestGitHub(t, http.NewServeMux())
	_, err := p.OpenChangeSet(context.Background(), ChangeSetRequest{Title: "t"})
	assert.Error(t, err, "head is required")
}

func TestGitHub_IsApproved(t *testing.T) {
	review := func(login, state string) map[string]any {
		return map[string]any{"user": map[string]any{"login": login}, "state": state}
	}

	tests := []struct {
		name    string
		merged  bool
		reviews []map[string]any
		want    bool
	}{
		{"merged", true, nil, true},
		{"no reviews", false, nil, false},
		{"only comments", false, []map[string]any{review("ana", "COMMENTED")}, false},
		{"approved", false, []map[string]any{review("ana", "APPROVED"), review("bo", "COMMENTED")}, true},
		{"approval after changes requested", false, []map[string]any{review("ana", "CHANGES_REQUESTED"), review("ana", "APPROVED")}, true},
		{"outstanding change request", false, []map[string]any{review("ana", "APPROVED"), review("bo", "CHANGES_REQUESTED")}, false},
		{"approval dismissed", false, []map[string]any{review("ana", "APPROVED"), review("ana", "DISMISSED")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /repos/acme/widgets/pulls/7", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, http.StatusOK, map[string]any{"number": 7, "merged": tt.merged})
			})
			mux.HandleFunc("GET /repos/acme/widgets/pulls/7/reviews", func(w http.ResponseWriter, r *http.Request) {
				reviews := tt.reviews
				if reviews == nil {
					reviews = []map[string]any{}
				}
				writeJSON(t, w, http.StatusOK, reviews)
			})

			got, err := newTestGitHub(t, mux).IsApproved(context.Background(), 7)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGitHub_IsApproved_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/widgets/pulls/9", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]any{"message": "Not Found"})
	})

	_, err := newTestGitHub(t, mux).IsApproved(context.Background(), 9)
	assert.True(t, errors.Is(err, ErrNotFound))
}
