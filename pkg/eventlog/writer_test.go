package eventlog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentco/pkg/proto"
)

func TestWriteAndReadRecords(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewWriter(dir)
	require.NoError(t, err)
	defer writer.Close()

	event := proto.NewEvent("idea_submitted", proto.SourceSlack, map[string]any{"title": "Dark mode"})
	require.NoError(t, writer.WriteRecord(NewRecord("pm", event, OutcomeRouted, 0, nil)))
	require.NoError(t, writer.WriteRecord(NewRecord("pm", event, OutcomeAbandoned, 3, errors.New("team lookup failed"))))

	records, err := ReadRecords(writer.CurrentLogFile())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, OutcomeRouted, records[0].Outcome)
	assert.Equal(t, event.ID, records[0].EventID)
	assert.Equal(t, "idea_submitted", records[0].Kind)

	assert.Equal(t, OutcomeAbandoned, records[1].Outcome)
	assert.Equal(t, 3, records[1].Attempts)
	assert.Equal(t, "team lookup failed", records[1].Error)
}

func TestListLogFiles(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewWriter(dir)
	require.NoError(t, err)

	event := proto.NewEvent("ping", proto.SourcePoll, nil)
	require.NoError(t, writer.WriteRecord(NewRecord("dev", event, OutcomeHandled, 1, nil)))
	require.NoError(t, writer.Close())

	files, err := ListLogFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestWriteAfterCloseReopens(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewWriter(dir)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	// rotateIfNeeded reopens the file on the next write.
	event := proto.NewEvent("ping", proto.SourcePoll, nil)
	require.NoError(t, writer.WriteRecord(NewRecord("dev", event, OutcomeHandled, 1, nil)))
	require.NoError(t, writer.Close())
}
