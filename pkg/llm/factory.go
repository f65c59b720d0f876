package llm

import (
	"fmt"

	"agentco/pkg/config"
)

// NewClient constructs the configured provider's client. Returns (nil, nil)
// when no provider is configured or its credential is absent: the LLM is an
// optional capability, not a startup requirement.
func NewClient(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "anthropic":
		apiKey := config.GetSecret(config.EnvAnthropicAPIKey)
		if apiKey == "" {
			return nil, nil
		}
		return NewAnthropicClient(apiKey, cfg.Model), nil
	case "openai":
		apiKey := config.GetSecret(config.EnvOpenAIAPIKey)
		if apiKey == "" {
			return nil, nil
		}
		return NewOpenAIClient(apiKey, cfg.Model), nil
	case "gemini":
		apiKey := config.GetSecret(config.EnvGeminiAPIKey)
		if apiKey == "" {
			return nil, nil
		}
		return NewGeminiClient(apiKey, cfg.Model), nil
	case "ollama":
		host := cfg.Host
		if host == "" {
			host = config.GetSecret(config.EnvOllamaHost)
		}
		return NewOllamaClient(host, cfg.Model)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
