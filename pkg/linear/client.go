// Package linear provides a typed client for the Linear GraphQL API.
package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"agentco/pkg/logx"
)

// GraphQLEndpoint is the production Linear API endpoint.
const GraphQLEndpoint = "https://api.linear.app/graphql"

const requestTimeout = 30 * time.Second

// ErrNotFound is returned when a lookup (team key, issue) matches nothing.
var ErrNotFound = errors.New("linear: not found")

// Issue is the subset of Linear issue fields the agents consume.
type Issue struct {
	ID          string   `json:"id"`
	Identifier  string   `json:"identifier"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Priority    int      `json:"priority"`
	StateName   string   `json:"-"`
	Labels      []string `json:"-"`
}

// WorkflowState is one state in a team's workflow.
type WorkflowState struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Position float64 `json:"position"`
}

// CreateIssueInput carries the fields for issue creation. ParentID and
// LabelIDs are optional.
type CreateIssueInput struct {
	TeamID      string
	Title       string
	Description string
	Priority    int
	LabelIDs    []string
	ParentID    string
}

// Client talks to the Linear GraphQL API.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *logx.Logger
}

// NewClient creates a Linear client authenticated with an API key.
func NewClient(apiKey string) *Client {
	return &Client{
		endpoint:   GraphQLEndpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logx.NewLogger("linear"),
	}
}

// WithEndpoint overrides the API endpoint. Used by tests.
func (c *Client) WithEndpoint(endpoint string) *Client {
	c.endpoint = endpoint
	return c
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// query executes one GraphQL request and decodes the data field into out.
// API-level errors and non-2xx responses map to a single remote-error shape.
func (c *Client) query(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("linear: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("linear: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("linear: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("linear: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("linear: API returned %d: %s", resp.StatusCode, truncate(respBody, 500))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("linear: failed to decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("linear: GraphQL error: %s", envelope.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("linear: failed to decode data: %w", err)
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

const createIssueMutation = `
mutation CreateIssue($input: IssueCreateInput!) {
    issueCreate(input: $input) {
        success
        issue { id identifier title description url priority state { name } }
    }
}`

// CreateIssue creates an issue (or sub-issue when ParentID is set) and
// returns the created issue.
func (c *Client) CreateIssue(ctx context.Context, input CreateIssueInput) (*Issue, error) {
	fields := map[string]any{
		"teamId":      input.TeamID,
		"title":       input.Title,
		"description": input.Description,
		"priority":    input.Priority,
	}
	if len(input.LabelIDs) > 0 {
		fields["labelIds"] = input.LabelIDs
	}
	if input.ParentID != "" {
		fields["parentId"] = input.ParentID
	}

	var result struct {
		IssueCreate struct {
			Success bool      `json:"success"`
			Issue   issueNode `json:"issue"`
		} `json:"issueCreate"`
	}
	if err := c.query(ctx, createIssueMutation, map[string]any{"input": fields}, &result); err != nil {
		return nil, err
	}
	if !result.IssueCreate.Success {
		return nil, fmt.Errorf("linear: issue creation reported failure")
	}
	issue := result.IssueCreate.Issue.toIssue()
	c.logger.Debug("created issue %s (%s)", issue.Identifier, issue.ID)
	return issue, nil
}

const updateIssueStateMutation = `
mutation UpdateIssue($id: String!, $input: IssueUpdateInput!) {
    issueUpdate(id: $id, input: $input) {
        success
        issue { id identifier title description url priority state { name } }
    }
}`

// UpdateIssueState moves an issue to a different workflow state.
func (c *Client) UpdateIssueState(ctx context.Context, issueID, stateID string) (*Issue, error) {
	var result struct {
		IssueUpdate struct {
			Success bool      `json:"success"`
			Issue   issueNode `json:"issue"`
		} `json:"issueUpdate"`
	}
	variables := map[string]any{"id": issueID, "input": map[string]any{"stateId": stateID}}
	if err := c.query(ctx, updateIssueStateMutation, variables, &result); err != nil {
		return nil, err
	}
	return result.IssueUpdate.Issue.toIssue(), nil
}

const teamsQuery = `
query Teams {
    teams { nodes { id key name } }
}`

// GetTeamID resolves a team key (e.g. "ENG") to its ID. Returns ErrNotFound
// when no team carries the key.
func (c *Client) GetTeamID(ctx context.Context, teamKey string) (string, error) {
	var result struct {
		Teams struct {
			Nodes []struct {
				ID  string `json:"id"`
				Key string `json:"key"`
			} `json:"nodes"`
		} `json:"teams"`
	}
	if err := c.query(ctx, teamsQuery, nil, &result); err != nil {
		return "", err
	}
	for _, team := range result.Teams.Nodes {
		if team.Key == teamKey {
			return team.ID, nil
		}
	}
	return "", fmt.Errorf("team with key %q: %w", teamKey, ErrNotFound)
}

const assignedIssuesQuery = `
query AssignedIssues($assigneeId: ID!, $stateName: String!) {
    issues(filter: {
        assignee: { id: { eq: $assigneeId } }
        state: { name: { eq: $stateName } }
    }) {
        nodes { id identifier title description url priority labels { nodes { name } } }
    }
}`

// GetAssignedIssues lists issues assigned to assigneeID in the named
// workflow state.
func (c *Client) GetAssignedIssues(ctx context.Context, assigneeID, stateName string) ([]Issue, error) {
	var result struct {
		Issues struct {
			Nodes []issueNode `json:"nodes"`
		} `json:"issues"`
	}
	variables := map[string]any{"assigneeId": assigneeID, "stateName": stateName}
	if err := c.query(ctx, assignedIssuesQuery, variables, &result); err != nil {
		return nil, err
	}
	issues := make([]Issue, 0, len(result.Issues.Nodes))
	for i := range result.Issues.Nodes {
		issues = append(issues, *result.Issues.Nodes[i].toIssue())
	}
	return issues, nil
}

const workflowStatesQuery = `
query WorkflowStates($teamId: ID!) {
    workflowStates(filter: { team: { id: { eq: $teamId } } }) {
        nodes { id name type position }
    }
}`

// GetWorkflowStates lists the workflow states of a team.
func (c *Client) GetWorkflowStates(ctx context.Context, teamID string) ([]WorkflowState, error) {
	var result struct {
		WorkflowStates struct {
			Nodes []WorkflowState `json:"nodes"`
		} `json:"workflowStates"`
	}
	if err := c.query(ctx, workflowStatesQuery, map[string]any{"teamId": teamID}, &result); err != nil {
		return nil, err
	}
	return result.WorkflowStates.Nodes, nil
}

// issueNode mirrors the GraphQL issue shape with nested state and labels.
type issueNode struct {
	ID          string `json:"id"`
	Identifier  string `json:"identifier"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Priority    int    `json:"priority"`
	State       struct {
		Name string `json:"name"`
	} `json:"state"`
	Labels struct {
		Nodes []struct {
			Name string `json:"name"`
		} `json:"nodes"`
	} `json:"labels"`
}

func (n *issueNode) toIssue() *Issue {
	labels := make([]string, 0, len(n.Labels.Nodes))
	for _, label := range n.Labels.Nodes {
		labels = append(labels, label.Name)
	}
	return &Issue{
		ID:          n.ID,
		Identifier:  n.Identifier,
		Title:       n.Title,
		Description: n.Description,
		URL:         n.URL,
		Priority:    n.Priority,
		StateName:   n.State.Name,
		Labels:      labels,
	}
}
