package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when the config doesn't name a model.
const DefaultGeminiModel = "gemini-2.0-flash"

// geminiClient wraps the Google GenAI SDK. Client creation requires a
// context, so it is deferred to the first Complete call.
type geminiClient struct {
	client *genai.Client
	apiKey string
	model  string
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(apiKey, model string) Client {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &geminiClient{apiKey: apiKey, model: model}
}

func (c *geminiClient) ModelName() string {
	return c.model
}

func (c *geminiClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if c.client == nil {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  c.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return CompletionResponse{}, fmt.Errorf("gemini: failed to create client: %w", err)
		}
		c.client = client
	}

	systemPrompt, conversation := splitSystem(req.Messages)
	contents := make([]*genai.Content, 0, len(conversation))
	for _, msg := range conversation {
		role := genai.RoleUser
		if msg.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	temperature := req.Temperature
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(maxTokens), //nolint:gosec // MaxTokens validated by callers
	}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("gemini: completion failed: %w", err)
	}
	if result == nil || len(result.Candidates) == 0 {
		return CompletionResponse{}, fmt.Errorf("gemini: empty response")
	}

	stopReason := ""
	if result.Candidates[0].FinishReason != "" {
		stopReason = string(result.Candidates[0].FinishReason)
	}
	return CompletionResponse{
		Content:    result.Text(),
		StopReason: stopReason,
	}, nil
}
