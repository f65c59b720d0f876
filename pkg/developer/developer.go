// Package developer implements the developer agent: it picks up assigned
// Linear tickets, implements them via the claude CLI, and opens pull
// requests.
package developer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"agentco/pkg/config"
	"agentco/pkg/github"
	"agentco/pkg/llm"
	"agentco/pkg/logx"
	"agentco/pkg/proto"
	"agentco/pkg/tools"
)

// Default settings, overridable via the agent's config block.
const (
	DefaultBranchPrefix  = "ai/"
	DefaultMaxConcurrent = 2
	DefaultRepo          = "agentco"
	DefaultBaseBranch    = "main"
	todoStateName        = "Todo"
)

// Agent is the developer.
type Agent struct {
	name          string
	tools         *tools.Bundle
	githubOrg     string
	branchPrefix  string
	autoPR        bool
	maxConcurrent int
	assigneeID    string
	slackChannel  string
	logger        *logx.Logger

	push func(event *proto.Event)

	mu            sync.Mutex
	activeTickets map[string]struct{}
}

// New creates a developer agent.
func New(name string, bundle *tools.Bundle, settings config.RuntimeSettings) *Agent {
	return &Agent{
		name:          name,
		tools:         bundle,
		githubOrg:     config.StringSetting(settings.Settings, "github_org", ""),
		branchPrefix:  config.StringSetting(settings.Settings, "branch_prefix", DefaultBranchPrefix),
		autoPR:        config.BoolSetting(settings.Settings, "auto_pr", true),
		maxConcurrent: config.IntSetting(settings.Settings, "max_concurrent_tickets", DefaultMaxConcurrent),
		assigneeID:    config.StringSetting(settings.Settings, "assignee_id", ""),
		slackChannel:  config.StringSetting(settings.Settings, "slack_channel", "engineering"),
		logger:        logx.NewLogger(name),
		activeTickets: make(map[string]struct{}),
	}
}

func (a *Agent) Name() string {
	return a.name
}

// BindPusher wires the runtime's queue so Poll can hand discovered tickets to
// the event loop.
func (a *Agent) BindPusher(push func(event *proto.Event)) {
	a.push = push
}

// Poll checks Linear for tickets in Todo assigned to this agent and turns
// each unclaimed one into a ticket_assigned event.
func (a *Agent) Poll(ctx context.Context) error {
	if !a.tools.HasLinear() || a.assigneeID == "" || a.push == nil {
		return nil
	}

	a.mu.Lock()
	active := len(a.activeTickets)
	a.mu.Unlock()
	if active >= a.maxConcurrent {
		return nil
	}

	issues, err := a.tools.Linear.GetAssignedIssues(ctx, a.assigneeID, todoStateName)
	if err != nil {
		return fmt.Errorf("failed to list assigned issues: %w", err)
	}

	for i := range issues {
		issue := &issues[i]
		a.mu.Lock()
		_, claimed := a.activeTickets[issue.ID]
		a.mu.Unlock()
		if claimed {
			continue
		}
		a.push(proto.NewEvent(proto.KindTicketAssigned, proto.SourcePoll, map[string]any{
			"id":          issue.ID,
			"identifier":  issue.Identifier,
			"title":       issue.Title,
			"description": issue.Description,
			"labels":      issue.Labels,
		}))
	}
	return nil
}

func (a *Agent) HandleEvent(ctx context.Context, event *proto.Event) error {
	switch event.Kind {
	case proto.KindTicketAssigned:
		return a.workOnTicket(ctx, event)
	case proto.KindPRReviewRequested:
		prNumber := event.Payload["pr_number"]
		a.logger.Info("review feedback received for PR #%v - re-running implementation", prNumber)
		return nil
	default:
		a.logger.Debug("ignoring event kind=%s", event.Kind)
		return nil
	}
}

// workOnTicket runs one implementation cycle: claim the ticket, drive the
// claude CLI on a work branch, then open a PR. The claim is released on every
// exit path so a retried event can run again.
func (a *Agent) workOnTicket(ctx context.Context, event *proto.Event) error {
	ticketID, _ := event.GetString("id")
	identifier, _ := event.GetString("identifier")
	title, _ := event.GetString("title")
	if ticketID == "" || identifier == "" {
		return fmt.Errorf("ticket event missing id or identifier")
	}

	a.mu.Lock()
	if _, claimed := a.activeTickets[ticketID]; claimed {
		a.mu.Unlock()
		return nil
	}
	a.activeTickets[ticketID] = struct{}{}
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.activeTickets, ticketID)
		a.mu.Unlock()
	}()

	a.logger.Info("starting work on %s: %s", identifier, title)

	branch := a.branchPrefix + strings.ToLower(identifier)
	repo := a.inferRepo(event)

	if err := a.runClaude(ctx, repo, branch, event); err != nil {
		return err
	}

	if !a.autoPR || !a.tools.HasGitHub() {
		return nil
	}

	description, _ := event.GetString("description")
	pr, err := a.tools.GitHub.CreatePullRequest(ctx, a.githubOrg, repo, github.PRCreateOptions{
		Title: fmt.Sprintf("%s: %s", identifier, title),
		Head:  branch,
		Base:  DefaultBaseBranch,
		Body:  a.prBody(ctx, identifier, title, description),
	})
	if err != nil {
		return fmt.Errorf("failed to open PR for %s: %w", identifier, err)
	}
	a.logger.Info("opened PR #%d for %s", pr.Number, identifier)

	if a.tools.HasSlack() {
		text := fmt.Sprintf("PR opened for *%s*: %s", identifier, pr.HTMLURL)
		if _, err := a.tools.Slack.PostMessage(ctx, a.slackChannel, text); err != nil {
			a.logger.Warn("failed to notify %s: %v", a.slackChannel, err)
		}
	}
	return nil
}

// runClaude invokes the claude CLI to implement the ticket on the work
// branch.
func (a *Agent) runClaude(ctx context.Context, repo, branch string, event *proto.Event) error {
	identifier, _ := event.GetString("identifier")
	title, _ := event.GetString("title")
	description, _ := event.GetString("description")
	if description == "" {
		description = "No description"
	}

	prompt := fmt.Sprintf(
		"Implement the following ticket.\n\nTitle: %s\nDescription: %s\n\n"+
			"Work on branch '%s' in repo '%s/%s'. "+
			"Commit your changes with a message referencing %s.",
		title, description, branch, a.githubOrg, repo, identifier,
	)

	cmd := exec.CommandContext(ctx, "claude", "--yes", "--print", prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("claude exited abnormally for %s: %w: %s", identifier, err, truncate(stderr.String(), 500))
	}
	a.logger.Info("claude output for %s:\n%s", identifier, truncate(stdout.String(), 1000))
	return nil
}

const prBodySystemPrompt = `You are a software engineer writing a pull request description for a reviewer.
Summarize what the change does and why, in markdown, under 200 words. Do not invent details beyond the ticket.`

// prBody drafts the PR description via the LLM capability when it is
// available, falling back to the static template.
func (a *Agent) prBody(ctx context.Context, identifier, title, description string) string {
	if !a.tools.HasLLM() {
		return formatPRBody(identifier, title, description)
	}

	resp, err := a.tools.LLM.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: prBodySystemPrompt},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Ticket %s: %s\n\n%s", identifier, title, description)},
		},
	})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		a.logger.Warn("PR body drafting failed, using template: %v", err)
		return formatPRBody(identifier, title, description)
	}
	return strings.TrimSpace(resp.Content)
}

// inferRepo derives the target repository from a "repo:" label, falling back
// to the default repo.
func (a *Agent) inferRepo(event *proto.Event) string {
	raw, exists := event.Payload["labels"]
	if !exists {
		return DefaultRepo
	}

	var names []string
	switch labels := raw.(type) {
	case []string:
		names = labels
	case []any:
		for _, l := range labels {
			if s, ok := l.(string); ok {
				names = append(names, s)
			}
		}
	}
	for _, name := range names {
		if strings.HasPrefix(name, "repo:") {
			return strings.TrimPrefix(name, "repo:")
		}
	}
	return DefaultRepo
}

func formatPRBody(identifier, title, description string) string {
	return fmt.Sprintf("## %s: %s\n\n%s\n\n---\n*Automatically generated by the developer agent*",
		identifier, title, description)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
