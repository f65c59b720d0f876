package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentco/pkg/config"
)

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]Message{
		{Role: RoleSystem, Content: "Be terse."},
		{Role: RoleUser, Content: "Hello"},
		{Role: RoleSystem, Content: "Answer in JSON."},
		{Role: RoleAssistant, Content: "Hi"},
	})

	assert.Equal(t, "Be terse.\n\nAnswer in JSON.", system)
	require.Len(t, rest, 2)
	assert.Equal(t, RoleUser, rest[0].Role)
	assert.Equal(t, RoleAssistant, rest[1].Role)
}

func TestSplitSystemNoSystemMessages(t *testing.T) {
	system, rest := splitSystem([]Message{{Role: RoleUser, Content: "Hello"}})
	assert.Empty(t, system)
	assert.Len(t, rest, 1)
}

func TestNewClientNoProvider(t *testing.T) {
	client, err := NewClient(config.LLMConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewClientUnknownProvider(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: "watson"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestNewClientMissingCredential(t *testing.T) {
	config.SetSecretsForTest(nil)
	t.Setenv(config.EnvAnthropicAPIKey, "")

	client, err := NewClient(config.LLMConfig{Provider: "anthropic"})
	require.NoError(t, err)
	assert.Nil(t, client, "absent credential means the capability is absent")
}

func TestNewClientWithCredential(t *testing.T) {
	config.SetSecretsForTest(map[string]string{config.EnvAnthropicAPIKey: "sk-test"})
	t.Cleanup(func() { config.SetSecretsForTest(nil) })

	client, err := NewClient(config.LLMConfig{Provider: "anthropic", Model: "claude-test"})
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, "claude-test", client.ModelName())
}

func TestNewOllamaClientDefaults(t *testing.T) {
	client, err := NewOllamaClient("", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultOllamaModel, client.ModelName())
}

func TestNewOllamaClientBadHost(t *testing.T) {
	_, err := NewOllamaClient("://not-a-url", "")
	require.Error(t, err)
}
