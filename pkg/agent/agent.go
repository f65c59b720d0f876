// Package agent provides the per-agent execution runtime: a poll loop and an
// event loop running concurrently over a private event queue, with bounded
// retry dispatch of each event to the agent's handler.
package agent

import (
	"context"

	"agentco/pkg/proto"
)

// Agent is the extension point implemented by each concrete agent. The
// runtime depends only on this interface.
type Agent interface {
	// Name returns the agent's unique name within a run.
	Name() string

	// Poll performs one round of external-state inspection, typically
	// discovering new work and turning it into pushed events. A returned
	// error skips the cycle; it never stops the poll loop.
	Poll(ctx context.Context) error

	// HandleEvent reacts to exactly one event. A returned error marks the
	// attempt failed and triggers the runtime's retry policy.
	HandleEvent(ctx context.Context, event *proto.Event) error
}

// SelfPusher is implemented by agents whose poll cycle pushes events into
// their own queue. The orchestrator binds the runtime's push function after
// the runtime is created.
type SelfPusher interface {
	BindPusher(push func(event *proto.Event))
}

// Status is the lifecycle state of an agent runtime.
type Status int32

const (
	StatusIdle Status = iota
	StatusRunning
	StatusStopping
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Sink observes dispatch and poll outcomes. The kernel installs a sink that
// fans out to the event log, the sqlite store, and Prometheus; tests install
// their own.
type Sink interface {
	RecordAttempt(agent string, event *proto.Event, attempt int, err error)
	RecordHandled(agent string, event *proto.Event, attempts int)
	RecordAbandoned(agent string, event *proto.Event, attempts int, lastErr error)
	RecordPollCycle(agent string, err error)
	ObserveQueueDepth(agent string, depth int)
}

// NopSink discards all observations.
type NopSink struct{}

func (NopSink) RecordAttempt(string, *proto.Event, int, error)    {}
func (NopSink) RecordHandled(string, *proto.Event, int)           {}
func (NopSink) RecordAbandoned(string, *proto.Event, int, error)  {}
func (NopSink) RecordPollCycle(string, error)                     {}
func (NopSink) ObserveQueueDepth(string, int)                     {}
