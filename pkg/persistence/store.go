// Package persistence provides SQLite-based storage for abandoned events and
// webhook delivery history.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"agentco/pkg/logx"
	"agentco/pkg/proto"
)

// CurrentSchemaVersion defines the current schema version for migration support.
const CurrentSchemaVersion = 1

// AbandonedEvent is an event whose retry budget was exhausted.
type AbandonedEvent struct {
	ID        int64     `json:"id"`
	Agent     string    `json:"agent"`
	EventID   string    `json:"event_id"`
	Kind      string    `json:"kind"`
	Source    string    `json:"source"`
	Payload   string    `json:"payload"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error"`
	CreatedAt time.Time `json:"created_at"`
}

// WebhookDelivery records one accepted inbound webhook.
type WebhookDelivery struct {
	ID        int64     `json:"id"`
	Provider  string    `json:"provider"`
	EventID   string    `json:"event_id"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Store wraps the database connection for runtime records.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

// InitializeDatabase opens the SQLite database at dbPath, creating the schema
// if needed. Idempotent and safe to call on an existing database.
func InitializeDatabase(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000",
		dbPath,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initializeSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	logger := logx.NewLogger("persistence")
	logger.Info("database initialized: %s", dbPath)

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// RecordAbandonedEvent persists an event that exhausted its retry budget.
func (s *Store) RecordAbandonedEvent(ctx context.Context, agent string, event *proto.Event, attempts int, lastErr error) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		payload = []byte("{}")
	}

	errText := ""
	if lastErr != nil {
		errText = lastErr.Error()
	}

	query := `
		INSERT INTO abandoned_events (agent, event_id, kind, source, payload, attempts, last_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		agent, event.ID, event.Kind, event.Source,
		string(payload), attempts, errText, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record abandoned event: %w", err)
	}
	return nil
}

// ListAbandonedEvents returns the most recent abandoned events, newest first.
func (s *Store) ListAbandonedEvents(ctx context.Context, limit int) ([]*AbandonedEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, agent, event_id, kind, source, payload, attempts, last_error, created_at
		FROM abandoned_events
		ORDER BY created_at DESC
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query abandoned events: %w", err)
	}
	defer rows.Close()

	var events []*AbandonedEvent
	for rows.Next() {
		var e AbandonedEvent
		if err := rows.Scan(&e.ID, &e.Agent, &e.EventID, &e.Kind, &e.Source,
			&e.Payload, &e.Attempts, &e.LastError, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan abandoned event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read abandoned events: %w", err)
	}
	return events, nil
}

// RecordWebhookDelivery persists one accepted inbound webhook.
func (s *Store) RecordWebhookDelivery(ctx context.Context, provider string, event *proto.Event) error {
	query := `
		INSERT INTO webhook_deliveries (provider, event_id, kind, created_at)
		VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, provider, event.ID, event.Kind, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record webhook delivery: %w", err)
	}
	return nil
}

// ListWebhookDeliveries returns the most recent webhook deliveries, newest first.
func (s *Store) ListWebhookDeliveries(ctx context.Context, limit int) ([]*WebhookDelivery, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, provider, event_id, kind, created_at
		FROM webhook_deliveries
		ORDER BY created_at DESC
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*WebhookDelivery
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.Provider, &d.EventID, &d.Kind, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook delivery: %w", err)
		}
		deliveries = append(deliveries, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read webhook deliveries: %w", err)
	}
	return deliveries, nil
}
