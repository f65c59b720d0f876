// Package github provides a typed client for the GitHub REST API.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"agentco/pkg/logx"
)

// APIBase is the production GitHub REST endpoint.
const APIBase = "https://api.github.com"

const requestTimeout = 30 * time.Second

// PullRequest is the subset of PR fields the agents consume.
type PullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
	Head    struct {
		Ref string `json:"ref"`
	} `json:"head"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
}

// PRCreateOptions carries the fields for pull request creation.
type PRCreateOptions struct {
	Title string `json:"title"`
	Head  string `json:"head"`
	Base  string `json:"base"`
	Body  string `json:"body,omitempty"`
}

// GitHubClient defines the interface for GitHub operations. It enables
// testing agents with mock implementations.
type GitHubClient interface {
	CreatePullRequest(ctx context.Context, owner, repo string, opts PRCreateOptions) (*PullRequest, error)
	GetPRStatus(ctx context.Context, owner, repo string, number int) (*PullRequest, error)
	ListOpenPRs(ctx context.Context, owner, repo string) ([]PullRequest, error)
	GetDefaultBranchSHA(ctx context.Context, owner, repo string) (string, error)
	CreateBranch(ctx context.Context, owner, repo, branch, fromSHA string) error
}

// Client implements GitHubClient against the REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logx.Logger
}

var _ GitHubClient = (*Client)(nil)

// NewClient creates a GitHub client authenticated with a token.
func NewClient(token string) *Client {
	return &Client{
		baseURL:    APIBase,
		token:      token,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logx.NewLogger("github"),
	}
}

// WithBaseURL overrides the API base URL. Used by tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// do executes one REST call and decodes the JSON response into out. Non-2xx
// responses map to a single remote-error shape.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("github: failed to encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("github: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	c.logger.Debug("%s %s", method, path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("github: failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("github: %s %s returned %d: %s", method, path, resp.StatusCode, truncate(respBody, 500))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("github: failed to decode response: %w", err)
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}

// CreatePullRequest opens a pull request from head into base.
func (c *Client) CreatePullRequest(ctx context.Context, owner, repo string, opts PRCreateOptions) (*PullRequest, error) {
	var pr PullRequest
	path := fmt.Sprintf("/repos/%s/%s/pulls", owner, repo)
	if err := c.do(ctx, http.MethodPost, path, opts, &pr); err != nil {
		return nil, err
	}
	c.logger.Info("opened PR #%d: %s", pr.Number, pr.HTMLURL)
	return &pr, nil
}

// GetPRStatus fetches the current state of a pull request.
func (c *Client) GetPRStatus(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	var pr PullRequest
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number)
	if err := c.do(ctx, http.MethodGet, path, nil, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// ListOpenPRs lists open pull requests for a repository.
func (c *Client) ListOpenPRs(ctx context.Context, owner, repo string) ([]PullRequest, error) {
	var prs []PullRequest
	query := url.Values{"state": {"open"}, "per_page": {"30"}}
	path := fmt.Sprintf("/repos/%s/%s/pulls?%s", owner, repo, query.Encode())
	if err := c.do(ctx, http.MethodGet, path, nil, &prs); err != nil {
		return nil, err
	}
	return prs, nil
}

// GetDefaultBranchSHA resolves the repository's default branch to its head
// commit SHA.
func (c *Client) GetDefaultBranchSHA(ctx context.Context, owner, repo string) (string, error) {
	var repoInfo struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s", owner, repo), nil, &repoInfo); err != nil {
		return "", err
	}

	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	path := fmt.Sprintf("/repos/%s/%s/git/ref/heads/%s", owner, repo, repoInfo.DefaultBranch)
	if err := c.do(ctx, http.MethodGet, path, nil, &ref); err != nil {
		return "", err
	}
	return ref.Object.SHA, nil
}

// CreateBranch creates a branch pointing at fromSHA.
func (c *Client) CreateBranch(ctx context.Context, owner, repo, branch, fromSHA string) error {
	payload := map[string]string{
		"ref": "refs/heads/" + branch,
		"sha": fromSHA,
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/%s/git/refs", owner, repo), payload, nil)
}
