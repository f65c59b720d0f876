package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventAssignsIdentity(t *testing.T) {
	event := NewEvent(KindIdeaSubmitted, SourceSlack, map[string]any{"title": "Search"})

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, KindIdeaSubmitted, event.Kind)
	assert.Equal(t, SourceSlack, event.Source)
	assert.False(t, event.Timestamp.IsZero())

	other := NewEvent(KindIdeaSubmitted, SourceSlack, nil)
	assert.NotEqual(t, event.ID, other.ID)
}

func TestPayloadAccessors(t *testing.T) {
	event := NewEvent("test", SourcePoll, map[string]any{
		"title":  "Search",
		"count":  3,
		"nested": map[string]any{"key": "value"},
	})

	title, ok := event.GetString("title")
	assert.True(t, ok)
	assert.Equal(t, "Search", title)

	_, ok = event.GetString("count")
	assert.False(t, ok, "non-string value")
	_, ok = event.GetString("missing")
	assert.False(t, ok)

	nested, ok := event.GetMap("nested")
	assert.True(t, ok)
	assert.Equal(t, "value", nested["key"])
}

func TestEventJSONRoundTrip(t *testing.T) {
	event := NewEvent(KindTicketAssigned, SourcePoll, map[string]any{"identifier": "ENG-7"})

	data, err := event.ToJSON()
	require.NoError(t, err)

	decoded, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, event.Kind, decoded.Kind)

	identifier, _ := decoded.GetString("identifier")
	assert.Equal(t, "ENG-7", identifier)
}

func TestEventString(t *testing.T) {
	event := NewEvent("idea_submitted", SourceSlack, nil)
	assert.Equal(t, "Event{kind=idea_submitted, source=slack}", event.String())
}
