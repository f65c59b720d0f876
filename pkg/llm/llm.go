// Package llm provides a provider-agnostic client interface for text
// completion, with implementations for Anthropic, OpenAI, Gemini, and Ollama.
// The LLM is an optional capability: agents that use it must tolerate its
// absence.
package llm

import "context"

// Role identifies who authored a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Default reply budget when the config doesn't set one.
const DefaultMaxTokens = 2048

// Message is one turn in a completion request.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest asks a provider for one completion.
type CompletionRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float32
}

// CompletionResponse is a provider's completion.
type CompletionResponse struct {
	Content    string
	StopReason string
}

// Client is the provider-agnostic completion interface.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	ModelName() string
}

// splitSystem extracts system messages into a single system prompt and
// returns the remaining conversation. Anthropic and Gemini take the system
// prompt as a separate parameter.
func splitSystem(messages []Message) (systemPrompt string, rest []Message) {
	rest = make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if systemPrompt != "" {
				systemPrompt += "\n\n"
			}
			systemPrompt += msg.Content
			continue
		}
		rest = append(rest, msg)
	}
	return systemPrompt, rest
}
