package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

// DefaultOllamaHost is used when no host is configured.
const DefaultOllamaHost = "http://localhost:11434"

// DefaultOllamaModel is used when the config doesn't name a model.
const DefaultOllamaModel = "llama3.2"

// ollamaClient wraps the Ollama API client for local models.
type ollamaClient struct {
	client *api.Client
	model  string
}

// NewOllamaClient creates a client for a local Ollama server.
func NewOllamaClient(host, model string) (Client, error) {
	if host == "" {
		host = DefaultOllamaHost
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	parsed, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid host %q: %w", host, err)
	}
	return &ollamaClient{
		client: api.NewClient(parsed, http.DefaultClient),
		model:  model,
	}, nil
}

func (c *ollamaClient) ModelName() string {
	return c.model
}

func (c *ollamaClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	messages := make([]api.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	stream := false
	chatReq := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": req.Temperature,
			"num_predict": maxTokens,
		},
	}

	var response api.ChatResponse
	err := c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("ollama: completion failed: %w", err)
	}

	return CompletionResponse{
		Content:    response.Message.Content,
		StopReason: response.DoneReason,
	}, nil
}
