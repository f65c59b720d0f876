package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		assert.Equal(t, "Bearer xoxb-test", r.Header.Get("Authorization"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "engineering", payload["channel"])
		assert.NotContains(t, payload, "thread_ts")

		_, _ = w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1700000000.000100"}`))
	}))
	defer srv.Close()

	client := NewClient("xoxb-test").WithBaseURL(srv.URL)
	receipt, err := client.PostMessage(context.Background(), "engineering", "hello")
	require.NoError(t, err)
	assert.Equal(t, "C123", receipt.Channel)
	assert.Equal(t, "1700000000.000100", receipt.Timestamp)
}

func TestPostMessageThreaded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "1699.0001", payload["thread_ts"])
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1700.0002"}`))
	}))
	defer srv.Close()

	client := NewClient("xoxb-test").WithBaseURL(srv.URL)
	_, err := client.PostMessage(context.Background(), "engineering", "reply", "1699.0001")
	require.NoError(t, err)
}

func TestAPIErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	client := NewClient("xoxb-test").WithBaseURL(srv.URL)
	_, err := client.PostMessage(context.Background(), "nope", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}

func TestGetChannelHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/conversations.history", r.URL.Path)
		_, _ = w.Write([]byte(`{"ok":true,"messages":[{"type":"message","user":"U1","text":"hi","ts":"1.0"}]}`))
	}))
	defer srv.Close()

	client := NewClient("xoxb-test").WithBaseURL(srv.URL)
	messages, err := client.GetChannelHistory(context.Background(), "C123", 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "hi", messages[0].Text)
}
