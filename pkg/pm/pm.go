// Package pm implements the product manager agent: it converts submitted
// ideas and user feedback into structured Linear epics and tickets.
package pm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"agentco/pkg/config"
	"agentco/pkg/linear"
	"agentco/pkg/llm"
	"agentco/pkg/logx"
	"agentco/pkg/proto"
	"agentco/pkg/tools"
)

// Default settings, overridable via the agent's config block.
const (
	DefaultTeamKey          = "ENG"
	DefaultPriority         = 3
	DefaultFeedbackPriority = 4
)

// promptTokenBudget bounds the drafted breakdown prompt. Oversized idea
// descriptions are truncated, not rejected.
const promptTokenBudget = 2000

// breakdownTask is one sub-ticket in an idea's breakdown.
type breakdownTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
}

// Agent is the product manager.
type Agent struct {
	name            string
	tools           *tools.Bundle
	teamKey         string
	defaultPriority int
	tokens          *llm.TokenCounter
	logger          *logx.Logger

	mu             sync.Mutex
	teamID         string
	workflowStates map[string]string // state name -> state ID
}

// New creates a product manager agent.
func New(name string, bundle *tools.Bundle, settings config.RuntimeSettings) *Agent {
	logger := logx.NewLogger(name)

	// A nil counter falls back to a character-based estimate.
	tokens, err := llm.NewTokenCounter()
	if err != nil {
		logger.Warn("token counter unavailable: %v", err)
	}

	return &Agent{
		name:            name,
		tools:           bundle,
		teamKey:         config.StringSetting(settings.Settings, "linear_team_key", DefaultTeamKey),
		defaultPriority: config.IntSetting(settings.Settings, "default_priority", DefaultPriority),
		tokens:          tokens,
		logger:          logger,
	}
}

func (a *Agent) Name() string {
	return a.name
}

// Poll ensures team metadata is cached. Workflow states are fetched once and
// reused; a failed fetch is retried on the next cycle.
func (a *Agent) Poll(ctx context.Context) error {
	a.mu.Lock()
	cached := a.teamID != ""
	a.mu.Unlock()

	if cached || !a.tools.HasLinear() {
		return nil
	}
	return a.cacheTeamMetadata(ctx)
}

func (a *Agent) HandleEvent(ctx context.Context, event *proto.Event) error {
	switch event.Kind {
	case proto.KindIdeaSubmitted:
		return a.processIdea(ctx, event)
	case proto.KindFeedbackReceived:
		return a.triageFeedback(ctx, event)
	default:
		a.logger.Debug("ignoring event kind=%s", event.Kind)
		return nil
	}
}

func (a *Agent) cacheTeamMetadata(ctx context.Context) error {
	teamID, err := a.tools.Linear.GetTeamID(ctx, a.teamKey)
	if err != nil {
		return fmt.Errorf("failed to resolve team %s: %w", a.teamKey, err)
	}
	states, err := a.tools.Linear.GetWorkflowStates(ctx, teamID)
	if err != nil {
		return fmt.Errorf("failed to fetch workflow states: %w", err)
	}

	byName := make(map[string]string, len(states))
	for _, state := range states {
		byName[state.Name] = state.ID
	}

	a.mu.Lock()
	a.teamID = teamID
	a.workflowStates = byName
	a.mu.Unlock()

	a.logger.Info("cached team %s (%s) with %d states", a.teamKey, teamID, len(byName))
	return nil
}

// processIdea creates an epic for the idea, sub-tickets for its breakdown,
// and posts a Slack notification when a channel is named.
func (a *Agent) processIdea(ctx context.Context, event *proto.Event) error {
	teamID, err := a.requireTeam(ctx)
	if err != nil {
		return err
	}

	title, ok := event.GetString("title")
	if !ok || title == "" {
		return fmt.Errorf("idea has no title")
	}
	description, _ := event.GetString("description")

	epic, err := a.tools.Linear.CreateIssue(ctx, linear.CreateIssueInput{
		TeamID:      teamID,
		Title:       "[Epic] " + title,
		Description: "## Overview\n\n" + description,
		Priority:    a.defaultPriority,
	})
	if err != nil {
		return fmt.Errorf("failed to create epic: %w", err)
	}
	a.logger.Info("created epic %s: %s", epic.Identifier, epic.URL)

	breakdown := a.extractBreakdown(event)
	if len(breakdown) == 0 && a.tools.HasLLM() {
		breakdown = a.draftBreakdown(ctx, title, description)
	}

	for _, task := range breakdown {
		priority := task.Priority
		if priority <= 0 {
			priority = a.defaultPriority
		}
		sub, err := a.tools.Linear.CreateIssue(ctx, linear.CreateIssueInput{
			TeamID:      teamID,
			Title:       task.Title,
			Description: task.Description,
			Priority:    priority,
			ParentID:    epic.ID,
		})
		if err != nil {
			return fmt.Errorf("failed to create sub-ticket %q: %w", task.Title, err)
		}
		a.logger.Info("created sub-ticket %s", sub.Identifier)
	}

	if channel, _ := event.GetString("slack_channel"); channel != "" && a.tools.HasSlack() {
		text := fmt.Sprintf("New epic created: *%s* - %s\n%s", epic.Identifier, title, epic.URL)
		if _, err := a.tools.Slack.PostMessage(ctx, channel, text); err != nil {
			a.logger.Warn("failed to notify %s: %v", channel, err)
		}
	}
	return nil
}

// triageFeedback files raw feedback as a ticket for later prioritization.
func (a *Agent) triageFeedback(ctx context.Context, event *proto.Event) error {
	teamID, err := a.requireTeam(ctx)
	if err != nil {
		return err
	}

	summary, _ := event.GetString("summary")
	if summary == "" {
		summary = "User feedback"
	}
	body, _ := event.GetString("body")

	priority := DefaultFeedbackPriority
	if raw, exists := event.Payload["priority"]; exists {
		switch v := raw.(type) {
		case int:
			priority = v
		case float64:
			priority = int(v)
		}
	}

	issue, err := a.tools.Linear.CreateIssue(ctx, linear.CreateIssueInput{
		TeamID:      teamID,
		Title:       "[Feedback] " + summary,
		Description: body,
		Priority:    priority,
	})
	if err != nil {
		return fmt.Errorf("failed to file feedback: %w", err)
	}
	a.logger.Info("triaged feedback as %s", issue.Identifier)
	return nil
}

// requireTeam returns the cached team ID, fetching metadata on demand when
// an event arrives before the first successful poll.
func (a *Agent) requireTeam(ctx context.Context) (string, error) {
	if !a.tools.HasLinear() {
		return "", fmt.Errorf("linear capability unavailable")
	}

	a.mu.Lock()
	teamID := a.teamID
	a.mu.Unlock()
	if teamID != "" {
		return teamID, nil
	}

	if err := a.cacheTeamMetadata(ctx); err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.teamID, nil
}

// extractBreakdown reads an explicit breakdown list from the idea payload.
func (a *Agent) extractBreakdown(event *proto.Event) []breakdownTask {
	raw, exists := event.Payload["breakdown"]
	if !exists {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}

	var out []breakdownTask
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		task := breakdownTask{}
		task.Title, _ = m["title"].(string)
		task.Description, _ = m["description"].(string)
		switch v := m["priority"].(type) {
		case int:
			task.Priority = v
		case float64:
			task.Priority = int(v)
		}
		if task.Title != "" {
			out = append(out, task)
		}
	}
	return out
}

const breakdownSystemPrompt = `You are a product manager breaking a feature idea into engineering tickets.
Respond with a JSON array only. Each element has "title", "description", and "priority" (1-4).
Produce between 2 and 6 tickets.`

// draftBreakdown asks the LLM to propose sub-tickets when the idea arrived
// without an explicit breakdown. Failures are logged and produce no tickets;
// the epic stands alone.
func (a *Agent) draftBreakdown(ctx context.Context, title, description string) []breakdownTask {
	prompt := a.tokens.TruncateToTokenLimit(
		fmt.Sprintf("Idea: %s\n\n%s", title, description), promptTokenBudget)

	resp, err := a.tools.LLM.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: breakdownSystemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		a.logger.Warn("breakdown drafting failed: %v", err)
		return nil
	}

	content := strings.TrimSpace(resp.Content)
	// Models sometimes wrap JSON in a code fence.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var tasks []breakdownTask
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &tasks); err != nil {
		a.logger.Warn("could not parse drafted breakdown: %v", err)
		return nil
	}
	a.logger.Info("drafted %d sub-tickets via %s", len(tasks), a.tools.LLM.ModelName())
	return tasks
}
