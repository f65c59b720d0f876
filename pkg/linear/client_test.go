package linear

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// graphQLStub answers each GraphQL operation from a canned data document.
func graphQLStub(t *testing.T, responses map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NotEmpty(t, r.Header.Get("Authorization"))

		var req struct {
			Query string `json:"query"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		for fragment, data := range responses {
			if strings.Contains(req.Query, fragment) {
				_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
				return
			}
		}
		t.Errorf("unexpected query: %s", req.Query)
	}))
}

func TestCreateIssue(t *testing.T) {
	srv := graphQLStub(t, map[string]any{
		"issueCreate": map[string]any{
			"issueCreate": map[string]any{
				"success": true,
				"issue": map[string]any{
					"id":         "issue-uuid",
					"identifier": "ENG-42",
					"title":      "Fix login",
					"url":        "https://linear.app/acme/issue/ENG-42",
					"priority":   2,
					"state":      map[string]any{"name": "Todo"},
				},
			},
		},
	})
	defer srv.Close()

	client := NewClient("lin_api_test").WithEndpoint(srv.URL)
	issue, err := client.CreateIssue(context.Background(), CreateIssueInput{
		TeamID:   "team-1",
		Title:    "Fix login",
		Priority: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "ENG-42", issue.Identifier)
	assert.Equal(t, "Todo", issue.StateName)
}

func TestCreateIssueReportedFailure(t *testing.T) {
	srv := graphQLStub(t, map[string]any{
		"issueCreate": map[string]any{
			"issueCreate": map[string]any{"success": false},
		},
	})
	defer srv.Close()

	client := NewClient("lin_api_test").WithEndpoint(srv.URL)
	_, err := client.CreateIssue(context.Background(), CreateIssueInput{TeamID: "t", Title: "x"})
	require.Error(t, err)
}

func TestGetTeamID(t *testing.T) {
	srv := graphQLStub(t, map[string]any{
		"teams": map[string]any{
			"teams": map[string]any{
				"nodes": []map[string]any{
					{"id": "team-eng", "key": "ENG"},
					{"id": "team-ops", "key": "OPS"},
				},
			},
		},
	})
	defer srv.Close()

	client := NewClient("lin_api_test").WithEndpoint(srv.URL)

	id, err := client.GetTeamID(context.Background(), "OPS")
	require.NoError(t, err)
	assert.Equal(t, "team-ops", id)

	_, err = client.GetTeamID(context.Background(), "NOPE")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGetAssignedIssuesParsesLabels(t *testing.T) {
	srv := graphQLStub(t, map[string]any{
		"issues(filter": map[string]any{
			"issues": map[string]any{
				"nodes": []map[string]any{
					{
						"id":         "i-1",
						"identifier": "ENG-7",
						"title":      "Add cache",
						"labels": map[string]any{
							"nodes": []map[string]any{{"name": "repo:backend"}},
						},
					},
				},
			},
		},
	})
	defer srv.Close()

	client := NewClient("lin_api_test").WithEndpoint(srv.URL)
	issues, err := client.GetAssignedIssues(context.Background(), "user-1", "Todo")
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, []string{"repo:backend"}, issues[0].Labels)
}

func TestGraphQLErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"rate limited"}]}`))
	}))
	defer srv.Close()

	client := NewClient("lin_api_test").WithEndpoint(srv.URL)
	_, err := client.GetTeamID(context.Background(), "ENG")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}
