// Package slack provides a typed client for the Slack Web API.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"agentco/pkg/logx"
)

// APIBase is the production Slack Web API endpoint.
const APIBase = "https://slack.com/api"

const requestTimeout = 15 * time.Second

// Message is one message from a channel's history.
type Message struct {
	Type      string `json:"type"`
	User      string `json:"user"`
	Text      string `json:"text"`
	Timestamp string `json:"ts"`
}

// Receipt identifies a posted message.
type Receipt struct {
	Channel   string `json:"channel"`
	Timestamp string `json:"ts"`
}

// Client talks to the Slack Web API with a bot token.
type Client struct {
	baseURL    string
	botToken   string
	httpClient *http.Client
	logger     *logx.Logger
}

// NewClient creates a Slack client authenticated with a bot token.
func NewClient(botToken string) *Client {
	return &Client{
		baseURL:    APIBase,
		botToken:   botToken,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logx.NewLogger("slack"),
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

// call executes one Web API method. Slack reports failures in-band via the
// "ok" field, so both transport and API errors map to the same error shape.
func (c *Client) call(ctx context.Context, method string, payload map[string]any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("slack: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.botToken)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("slack: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack: %s returned %d", method, resp.StatusCode)
	}

	var envelope struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("slack: failed to decode response: %w", err)
	}
	if !envelope.OK {
		if envelope.Error == "" {
			envelope.Error = "unknown"
		}
		return fmt.Errorf("slack: API error (%s): %s", method, envelope.Error)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("slack: failed to decode response body: %w", err)
		}
	}
	return nil
}

// PostMessage posts a text message to a channel, optionally threaded.
func (c *Client) PostMessage(ctx context.Context, channel, text string, threadTS ...string) (*Receipt, error) {
	payload := map[string]any{"channel": channel, "text": text}
	if len(threadTS) > 0 && threadTS[0] != "" {
		payload["thread_ts"] = threadTS[0]
	}

	var receipt Receipt
	if err := c.call(ctx, "chat.postMessage", payload, &receipt); err != nil {
		return nil, err
	}
	c.logger.Debug("posted message to %s", channel)
	return &receipt, nil
}

// PostBlocks posts a Block Kit message with fallback text.
func (c *Client) PostBlocks(ctx context.Context, channel string, blocks []map[string]any, text string) (*Receipt, error) {
	payload := map[string]any{"channel": channel, "blocks": blocks, "text": text}

	var receipt Receipt
	if err := c.call(ctx, "chat.postMessage", payload, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// AddReaction adds an emoji reaction to a message.
func (c *Client) AddReaction(ctx context.Context, channel, timestamp, emoji string) error {
	payload := map[string]any{"channel": channel, "timestamp": timestamp, "name": emoji}
	return c.call(ctx, "reactions.add", payload, nil)
}

// GetChannelHistory fetches the most recent messages from a channel.
func (c *Client) GetChannelHistory(ctx context.Context, channel string, limit int) ([]Message, error) {
	payload := map[string]any{"channel": channel, "limit": limit}

	var result struct {
		Messages []Message `json:"messages"`
	}
	if err := c.call(ctx, "conversations.history", payload, &result); err != nil {
		return nil, err
	}
	return result.Messages, nil
}
