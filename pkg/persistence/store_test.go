package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentco/pkg/proto"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := InitializeDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestInitializeDatabaseIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := InitializeDatabase(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening an existing database must succeed without migration.
	store, err = InitializeDatabase(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestRecordAndListAbandonedEvents(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	first := proto.NewEvent("idea_submitted", proto.SourceSlack, map[string]any{"title": "Dark mode"})
	second := proto.NewEvent("ticket_assigned", proto.SourcePoll, nil)

	require.NoError(t, store.RecordAbandonedEvent(ctx, "pm", first, 3, errors.New("linear down")))
	require.NoError(t, store.RecordAbandonedEvent(ctx, "dev", second, 2, nil))

	events, err := store.ListAbandonedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	byAgent := map[string]*AbandonedEvent{}
	for _, e := range events {
		byAgent[e.Agent] = e
	}

	require.Contains(t, byAgent, "pm")
	assert.Equal(t, first.ID, byAgent["pm"].EventID)
	assert.Equal(t, "idea_submitted", byAgent["pm"].Kind)
	assert.Equal(t, 3, byAgent["pm"].Attempts)
	assert.Equal(t, "linear down", byAgent["pm"].LastError)
	assert.Contains(t, byAgent["pm"].Payload, "Dark mode")

	assert.Equal(t, "", byAgent["dev"].LastError)
}

func TestListAbandonedEventsLimit(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		event := proto.NewEvent("flood", proto.SourcePoll, nil)
		require.NoError(t, store.RecordAbandonedEvent(ctx, "dev", event, 1, nil))
	}

	events, err := store.ListAbandonedEvents(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestRecordAndListWebhookDeliveries(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	event := proto.NewEvent("github_pull_request_opened", proto.SourceGitHub, nil)
	require.NoError(t, store.RecordWebhookDelivery(ctx, "github", event))

	deliveries, err := store.ListWebhookDeliveries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, "github", deliveries[0].Provider)
	assert.Equal(t, event.ID, deliveries[0].EventID)
	assert.Equal(t, "github_pull_request_opened", deliveries[0].Kind)
}
