// Package factory provides agent creation from configured type names. The
// registry is a static mapping resolved at startup; no reflection or dynamic
// loading is involved.
package factory

import (
	"fmt"
	"sort"

	"agentco/pkg/agent"
	"agentco/pkg/config"
	"agentco/pkg/developer"
	"agentco/pkg/pm"
	"agentco/pkg/tools"
)

// Constructor builds one agent instance from its name, the shared capability
// bundle, and its merged runtime settings.
type Constructor func(name string, bundle *tools.Bundle, settings config.RuntimeSettings) agent.Agent

// registry maps configured agent-type names to constructors.
//
//nolint:gochecknoglobals // Static registry, built once, never mutated.
var registry = map[string]Constructor{
	config.AgentTypeProductManager: func(name string, bundle *tools.Bundle, settings config.RuntimeSettings) agent.Agent {
		return pm.New(name, bundle, settings)
	},
	config.AgentTypeDeveloper: func(name string, bundle *tools.Bundle, settings config.RuntimeSettings) agent.Agent {
		return developer.New(name, bundle, settings)
	},
}

// NewAgent creates an agent of the named type.
func NewAgent(agentType, name string, bundle *tools.Bundle, settings config.RuntimeSettings) (agent.Agent, error) {
	construct, ok := registry[agentType]
	if !ok {
		return nil, fmt.Errorf("unknown agent type: %s (known: %v)", agentType, KnownTypes())
	}
	return construct(name, bundle, settings), nil
}

// KnownTypes returns the registered agent-type names, sorted.
func KnownTypes() []string {
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
