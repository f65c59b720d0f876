// Package config provides configuration loading, validation, and management
// for the agent orchestrator. It handles the YAML agents file, environment
// variable credentials, and the optional encrypted secrets file.
package config

import (
	"os"
	"time"
)

// Agent type constants. These are the keys the factory registry resolves.
const (
	AgentTypeProductManager = "product_manager"
	AgentTypeDeveloper      = "developer"
)

// Default agent runtime settings, applied when neither the defaults layer nor
// the per-agent layer sets a value.
const (
	DefaultPollIntervalSeconds = 30
	DefaultMaxRetries          = 3
	DefaultRetryBackoffSeconds = 5
)

// Environment variable names for credentials and bootstrap settings.
const (
	EnvLinearAPIKey    = "LINEAR_API_KEY"
	EnvGitHubToken     = "GITHUB_TOKEN"
	EnvSlackBotToken   = "SLACK_BOT_TOKEN"
	EnvWebhookSecret   = "WEBHOOK_SECRET"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvOllamaHost      = "OLLAMA_HOST"
	EnvPort            = "PORT"
)

// ServerConfig holds the ingress gateway's network settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LLMConfig selects the optional LLM capability provider.
type LLMConfig struct {
	Provider  string `yaml:"provider"` // "anthropic", "openai", "gemini", "ollama", or "" to disable
	Model     string `yaml:"model"`
	Host      string `yaml:"host"`       // Ollama server URL
	MaxTokens int    `yaml:"max_tokens"` // Reply budget per completion
}

// AgentDefaults is the defaults layer merged under every agent's settings.
type AgentDefaults struct {
	PollIntervalSeconds int     `yaml:"poll_interval_seconds"`
	MaxRetries          int     `yaml:"max_retries"`
	RetryBackoffSeconds float64 `yaml:"retry_backoff_seconds"`
}

// AgentConfig configures a single agent instance.
type AgentConfig struct {
	Type                string         `yaml:"type"`
	Enabled             *bool          `yaml:"enabled"` // nil means enabled
	PollIntervalSeconds int            `yaml:"poll_interval_seconds"`
	MaxRetries          int            `yaml:"max_retries"`
	RetryBackoffSeconds float64        `yaml:"retry_backoff_seconds"`
	Settings            map[string]any `yaml:"config"` // Agent-specific settings
}

// IsEnabled reports whether the agent should be instantiated.
func (a *AgentConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// Config is the root configuration for a run.
type Config struct {
	Server   ServerConfig           `yaml:"server"`
	StateDir string                 `yaml:"state_dir"` // Event log + sqlite location
	LLM      LLMConfig              `yaml:"llm"`
	Defaults AgentDefaults          `yaml:"defaults"`
	Agents   map[string]AgentConfig `yaml:"agents"`
}

// RuntimeSettings is the effective per-agent runtime configuration after the
// defaults layer and per-agent overrides are merged.
type RuntimeSettings struct {
	PollInterval time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Settings     map[string]any
}

// RuntimeSettingsFor merges the defaults layer with one agent's overrides.
// Per-agent values win; zero values fall through to defaults, then to the
// package constants.
func (c *Config) RuntimeSettingsFor(name string) RuntimeSettings {
	agent := c.Agents[name]

	pollSeconds := agent.PollIntervalSeconds
	if pollSeconds <= 0 {
		pollSeconds = c.Defaults.PollIntervalSeconds
	}
	if pollSeconds <= 0 {
		pollSeconds = DefaultPollIntervalSeconds
	}

	maxRetries := agent.MaxRetries
	if maxRetries <= 0 {
		maxRetries = c.Defaults.MaxRetries
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	backoffSeconds := agent.RetryBackoffSeconds
	if backoffSeconds <= 0 {
		backoffSeconds = c.Defaults.RetryBackoffSeconds
	}
	if backoffSeconds <= 0 {
		backoffSeconds = DefaultRetryBackoffSeconds
	}

	return RuntimeSettings{
		PollInterval: time.Duration(pollSeconds) * time.Second,
		MaxRetries:   maxRetries,
		RetryBackoff: time.Duration(backoffSeconds * float64(time.Second)),
		Settings:     agent.Settings,
	}
}

// StringSetting extracts a string from an agent's settings map.
func StringSetting(settings map[string]any, key, fallback string) string {
	if value, ok := settings[key].(string); ok && value != "" {
		return value
	}
	return fallback
}

// IntSetting extracts an integer from an agent's settings map. YAML decodes
// integers as int; float64 is accepted for hand-edited files.
func IntSetting(settings map[string]any, key string, fallback int) int {
	switch value := settings[key].(type) {
	case int:
		return value
	case float64:
		return int(value)
	default:
		return fallback
	}
}

// BoolSetting extracts a boolean from an agent's settings map.
func BoolSetting(settings map[string]any, key string, fallback bool) bool {
	if value, ok := settings[key].(bool); ok {
		return value
	}
	return fallback
}

// GetSecret resolves a credential by name: the decrypted secrets file wins,
// then the environment. Empty string means the credential is absent, which
// callers treat as the capability being disabled.
func GetSecret(name string) string {
	if value := lookupDecryptedSecret(name); value != "" {
		return value
	}
	return os.Getenv(name)
}
