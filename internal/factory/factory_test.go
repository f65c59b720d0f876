package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentco/pkg/config"
	"agentco/pkg/tools"
)

func TestNewAgentKnownTypes(t *testing.T) {
	bundle := &tools.Bundle{}

	pm, err := NewAgent(config.AgentTypeProductManager, "pm-1", bundle, config.RuntimeSettings{})
	require.NoError(t, err)
	assert.Equal(t, "pm-1", pm.Name())

	dev, err := NewAgent(config.AgentTypeDeveloper, "dev-1", bundle, config.RuntimeSettings{})
	require.NoError(t, err)
	assert.Equal(t, "dev-1", dev.Name())
}

func TestNewAgentUnknownType(t *testing.T) {
	_, err := NewAgent("intern", "i-1", &tools.Bundle{}, config.RuntimeSettings{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown agent type: intern")
	assert.Contains(t, err.Error(), config.AgentTypeDeveloper, "error lists the known types")
}

func TestKnownTypesSorted(t *testing.T) {
	assert.Equal(t, []string{config.AgentTypeDeveloper, config.AgentTypeProductManager}, KnownTypes())
}
