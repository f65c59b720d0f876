// Package orch provides the orchestrator: it instantiates the configured
// agents, broadcasts events to every agent's queue, and supervises all agent
// loops as one failure domain.
package orch

import (
	"context"
	"fmt"
	"sort"

	"agentco/internal/factory"
	"agentco/pkg/agent"
	"agentco/pkg/config"
	"agentco/pkg/logx"
	"agentco/pkg/proto"
	"agentco/pkg/tools"
	"agentco/pkg/webhook"
)

// entry pairs a runtime with its configured type for status reporting.
type entry struct {
	runtime   *agent.Runtime
	agentType string
}

// Orchestrator owns the agent registry. The registry is built once at
// startup and never mutated, so routing reads it without synchronization.
type Orchestrator struct {
	entries  map[string]*entry
	names    []string // sorted, for deterministic iteration
	onRouted func(agentName string, event *proto.Event)
	logger   *logx.Logger
}

// New instantiates every enabled agent from the configuration. onRouted may
// be nil; it is invoked once per agent per routed event.
func New(cfg *config.Config, bundle *tools.Bundle, sink agent.Sink, onRouted func(string, *proto.Event)) (*Orchestrator, error) {
	entries := make(map[string]*entry)
	for name, agentCfg := range cfg.Agents {
		if !agentCfg.IsEnabled() {
			continue
		}
		settings := cfg.RuntimeSettingsFor(name)
		a, err := factory.NewAgent(agentCfg.Type, name, bundle, settings)
		if err != nil {
			return nil, fmt.Errorf("failed to create agent %s: %w", name, err)
		}

		runtime := agent.NewRuntime(a, settings, sink)
		if pusher, ok := a.(agent.SelfPusher); ok {
			pusher.BindPusher(runtime.PushEvent)
		}
		entries[name] = &entry{runtime: runtime, agentType: agentCfg.Type}
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no agents enabled")
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	logger := logx.NewLogger("orchestrator")
	logger.Info("registered %d agent(s): %v", len(names), names)
	return &Orchestrator{entries: entries, names: names, onRouted: onRouted, logger: logger}, nil
}

// Route broadcasts one event to every registered agent's queue. Push never
// blocks, so routing cost is bounded by the registry size.
func (o *Orchestrator) Route(event *proto.Event) {
	o.logger.Debug("routing %s to %d agent(s)", event, len(o.names))
	for _, name := range o.names {
		o.entries[name].runtime.PushEvent(event)
		if o.onRouted != nil {
			o.onRouted(name, event)
		}
	}
}

// AgentInfos reports each agent's runtime state for the status API.
func (o *Orchestrator) AgentInfos() []webhook.AgentInfo {
	infos := make([]webhook.AgentInfo, 0, len(o.names))
	for _, name := range o.names {
		e := o.entries[name]
		infos = append(infos, webhook.AgentInfo{
			Name:       name,
			Type:       e.agentType,
			Status:     e.runtime.Status().String(),
			QueueDepth: e.runtime.QueueDepth(),
		})
	}
	return infos
}

// Member is an additional supervised task run alongside the agent loops,
// such as the ingress gateway. A member must return when its context is
// cancelled; a non-nil return is a group fault.
type Member func(ctx context.Context) error

// Run starts every agent runtime plus the given members and supervises them
// as one group: the first fault from any of them tears the whole group down
// and is returned to the caller. Cancellation of ctx is a clean shutdown:
// every agent is stopped, in-flight handler work finishes, and Run returns
// nil.
func (o *Orchestrator) Run(ctx context.Context, members ...Member) error {
	groupCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	total := len(o.names) + len(members)
	results := make(chan error, total)
	for _, name := range o.names {
		rt := o.entries[name].runtime
		go func() { results <- rt.Start(groupCtx) }()
	}
	for _, member := range members {
		m := member
		go func() { results <- m(groupCtx) }()
	}

	// Shutdown waiter: a cancelled parent context requests a clean stop of
	// every agent. Members watch groupCtx themselves.
	go func() {
		<-groupCtx.Done()
		o.stopAll()
	}()

	var firstErr error
	for i := 0; i < total; i++ {
		if err := <-results; err != nil && firstErr == nil {
			firstErr = err
			o.logger.Error("group member fault, tearing down group: %v", err)
			o.stopAll()
			cancel()
		}
	}

	if firstErr != nil {
		return fmt.Errorf("agent group failed: %w", firstErr)
	}
	o.logger.Info("all agents stopped")
	return nil
}

func (o *Orchestrator) stopAll() {
	for _, name := range o.names {
		o.entries[name].runtime.Stop()
	}
}
