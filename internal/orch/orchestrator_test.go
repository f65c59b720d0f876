package orch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentco/pkg/agent"
	"agentco/pkg/config"
	"agentco/pkg/logx"
	"agentco/pkg/proto"
	"agentco/pkg/tools"
)

// countingSink tallies handled events per agent.
type countingSink struct {
	agent.NopSink
	mu      sync.Mutex
	handled map[string]int
}

func newCountingSink() *countingSink {
	return &countingSink{handled: make(map[string]int)}
}

func (s *countingSink) RecordHandled(agentName string, _ *proto.Event, _ int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handled[agentName]++
}

func (s *countingSink) handledBy(agentName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handled[agentName]
}

func testConfig() *config.Config {
	disabled := false
	return &config.Config{
		Defaults: config.AgentDefaults{
			PollIntervalSeconds: 1,
			MaxRetries:          2,
			RetryBackoffSeconds: 0.001,
		},
		Agents: map[string]config.AgentConfig{
			"dev-1": {Type: config.AgentTypeDeveloper},
			"dev-2": {Type: config.AgentTypeDeveloper},
			"dev-3": {Type: config.AgentTypeDeveloper, Enabled: &disabled},
		},
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestRouteBroadcastsToEveryEnabledAgent(t *testing.T) {
	sink := newCountingSink()

	var routedMu sync.Mutex
	routed := make(map[string]int)
	onRouted := func(agentName string, _ *proto.Event) {
		routedMu.Lock()
		defer routedMu.Unlock()
		routed[agentName]++
	}

	o, err := New(testConfig(), &tools.Bundle{}, sink, onRouted)
	require.NoError(t, err)

	// Disabled agents are not instantiated.
	infos := o.AgentInfos()
	require.Len(t, infos, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	// The developer agent ignores unknown kinds, so each delivery is handled
	// on the first attempt.
	o.Route(proto.NewEvent("slack_ping", proto.SourceSlack, nil))

	waitFor(t, func() bool {
		return sink.handledBy("dev-1") == 1 && sink.handledBy("dev-2") == 1
	}, "both agents to handle the event")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not shut down")
	}

	routedMu.Lock()
	defer routedMu.Unlock()
	assert.Equal(t, map[string]int{"dev-1": 1, "dev-2": 1}, routed)
	assert.Equal(t, 1, sink.handledBy("dev-1"), "exactly once per agent")
	assert.Equal(t, 1, sink.handledBy("dev-2"), "exactly once per agent")
}

func TestNewRejectsUnknownAgentType(t *testing.T) {
	cfg := &config.Config{
		Agents: map[string]config.AgentConfig{
			"mystery": {Type: "quantum_accountant"},
		},
	}
	_, err := New(cfg, &tools.Bundle{}, agent.NopSink{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown agent type")
}

func TestNewRejectsEmptyRegistry(t *testing.T) {
	disabled := false
	cfg := &config.Config{
		Agents: map[string]config.AgentConfig{
			"dev": {Type: config.AgentTypeDeveloper, Enabled: &disabled},
		},
	}
	_, err := New(cfg, &tools.Bundle{}, agent.NopSink{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no agents enabled")
}

// faultyAgent panics in its poll loop to simulate a loop fault.
type faultyAgent struct{ name string }

func (f *faultyAgent) Name() string { return f.name }
func (f *faultyAgent) Poll(context.Context) error {
	panic("loop fault")
}
func (f *faultyAgent) HandleEvent(context.Context, *proto.Event) error { return nil }

// healthyAgent does nothing.
type healthyAgent struct{ name string }

func (h *healthyAgent) Name() string                                    { return h.name }
func (h *healthyAgent) Poll(context.Context) error                      { return nil }
func (h *healthyAgent) HandleEvent(context.Context, *proto.Event) error { return nil }

func TestLoopFaultTearsDownWholeGroup(t *testing.T) {
	settings := config.RuntimeSettings{
		PollInterval: 10 * time.Millisecond,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}
	faulty := agent.NewRuntime(&faultyAgent{name: "faulty"}, settings, agent.NopSink{})
	healthy := agent.NewRuntime(&healthyAgent{name: "healthy"}, settings, agent.NopSink{})

	o := &Orchestrator{
		entries: map[string]*entry{
			"faulty":  {runtime: faulty, agentType: "test"},
			"healthy": {runtime: healthy, agentType: "test"},
		},
		names:  []string{"faulty", "healthy"},
		logger: logx.NewLogger("orchestrator"),
	}

	err := o.Run(context.Background())
	require.Error(t, err, "one loop fault must fail the whole group")
	assert.Contains(t, err.Error(), "panic")
	assert.Equal(t, agent.StatusErrored, faulty.Status())
	assert.Equal(t, agent.StatusStopping, healthy.Status())
}

func TestMemberFaultTearsDownWholeGroup(t *testing.T) {
	settings := config.RuntimeSettings{
		PollInterval: 10 * time.Millisecond,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}
	healthy := agent.NewRuntime(&healthyAgent{name: "healthy"}, settings, agent.NopSink{})

	o := &Orchestrator{
		entries: map[string]*entry{
			"healthy": {runtime: healthy, agentType: "test"},
		},
		names:  []string{"healthy"},
		logger: logx.NewLogger("orchestrator"),
	}

	server := func(ctx context.Context) error {
		return fmt.Errorf("listen tcp: bind: address already in use")
	}

	err := o.Run(context.Background(), server)
	require.Error(t, err, "a member fault must fail the whole group")
	assert.Contains(t, err.Error(), "address already in use")
	assert.Equal(t, agent.StatusStopping, healthy.Status())
}

func TestMemberStoppedOnCleanShutdown(t *testing.T) {
	settings := config.RuntimeSettings{
		PollInterval: 10 * time.Millisecond,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}
	healthy := agent.NewRuntime(&healthyAgent{name: "healthy"}, settings, agent.NopSink{})

	o := &Orchestrator{
		entries: map[string]*entry{
			"healthy": {runtime: healthy, agentType: "test"},
		},
		names:  []string{"healthy"},
		logger: logx.NewLogger("orchestrator"),
	}

	memberStopped := make(chan struct{})
	server := func(ctx context.Context) error {
		<-ctx.Done()
		close(memberStopped)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx, server) }()

	waitFor(t, func() bool { return healthy.Status() == agent.StatusRunning }, "agent to start")
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err, "cancellation is a clean shutdown")
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not shut down")
	}
	select {
	case <-memberStopped:
	default:
		t.Fatal("member was not stopped with the group")
	}
}
