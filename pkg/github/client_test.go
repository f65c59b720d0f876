package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePullRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/repos/acme/backend/pulls", r.URL.Path)
		assert.Equal(t, "Bearer ghp_test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))

		var opts PRCreateOptions
		require.NoError(t, json.NewDecoder(r.Body).Decode(&opts))
		assert.Equal(t, "ai/eng-42", opts.Head)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"number":17,"title":"ENG-42: Fix login","state":"open","html_url":"https://github.com/acme/backend/pull/17"}`))
	}))
	defer srv.Close()

	client := NewClient("ghp_test").WithBaseURL(srv.URL)
	pr, err := client.CreatePullRequest(context.Background(), "acme", "backend", PRCreateOptions{
		Title: "ENG-42: Fix login",
		Head:  "ai/eng-42",
		Base:  "main",
	})
	require.NoError(t, err)
	assert.Equal(t, 17, pr.Number)
	assert.Equal(t, "https://github.com/acme/backend/pull/17", pr.HTMLURL)
}

func TestRemoteErrorSurfacesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Validation Failed"}`))
	}))
	defer srv.Close()

	client := NewClient("ghp_test").WithBaseURL(srv.URL)
	_, err := client.CreatePullRequest(context.Background(), "acme", "backend", PRCreateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "Validation Failed")
}

func TestGetDefaultBranchSHA(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/acme/backend":
			_, _ = w.Write([]byte(`{"default_branch":"main"}`))
		case "/repos/acme/backend/git/ref/heads/main":
			_, _ = w.Write([]byte(`{"object":{"sha":"abc123"}}`))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewClient("ghp_test").WithBaseURL(srv.URL)
	sha, err := client.GetDefaultBranchSHA(context.Background(), "acme", "backend")
	require.NoError(t, err)
	assert.Equal(t, "abc123", sha)
}

func TestListOpenPRs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "open", r.URL.Query().Get("state"))
		_, _ = w.Write([]byte(`[{"number":1},{"number":2}]`))
	}))
	defer srv.Close()

	client := NewClient("ghp_test").WithBaseURL(srv.URL)
	prs, err := client.ListOpenPRs(context.Background(), "acme", "backend")
	require.NoError(t, err)
	assert.Len(t, prs, 2)
}
