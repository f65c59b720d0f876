// Package proto defines the event message type passed between the ingress
// gateway, the orchestrator, and agent runtimes.
package proto

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Well-known event kinds. Agents ignore kinds they don't handle, so this list
// is not exhaustive; provider-derived kinds are built at the ingress boundary.
const (
	KindIdeaSubmitted      = "idea_submitted"
	KindFeedbackReceived   = "feedback_received"
	KindTicketAssigned     = "ticket_assigned"
	KindPRReviewRequested  = "pr_review_requested"
	KindLinearIssueCreated = "linear_issue_created"
	KindLinearIssueUpdated = "linear_issue_updated"
	KindLinearIssueRemoved = "linear_issue_removed"
)

// Event sources. Agents also appear as sources when they push events to
// themselves or route internal events.
const (
	SourcePoll   = "poll"
	SourceLinear = "linear"
	SourceGitHub = "github"
	SourceSlack  = "slack"
)

// Event is an immutable typed message flowing through the agent system.
// Events carry no identity beyond structural equality; the ID exists only to
// correlate log and event-log records, and duplicates are legal.
type Event struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Source    string         `json:"source"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewEvent creates an event with a fresh correlation ID.
func NewEvent(kind, source string, payload map[string]any) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Kind:      kind,
		Source:    source,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

func (e *Event) String() string {
	return fmt.Sprintf("Event{kind=%s, source=%s}", e.Kind, e.Source)
}

// GetString extracts a string payload value.
func (e *Event) GetString(key string) (string, bool) {
	value, exists := e.Payload[key]
	if !exists {
		return "", false
	}
	str, ok := value.(string)
	return str, ok
}

// GetMap extracts a nested object payload value.
func (e *Event) GetMap(key string) (map[string]any, bool) {
	value, exists := e.Payload[key]
	if !exists {
		return nil, false
	}
	m, ok := value.(map[string]any)
	return m, ok
}

// ToJSON serializes the event for the event log.
func (e *Event) ToJSON() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}

// FromJSON deserializes an event log record.
func FromJSON(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return &event, nil
}
