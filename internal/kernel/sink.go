package kernel

import (
	"context"
	"time"

	"agentco/pkg/eventlog"
	"agentco/pkg/logx"
	"agentco/pkg/proto"
)

// runtimeSink fans dispatch observations out to the event log, the sqlite
// store, and Prometheus. Sink calls happen on agent loop goroutines, so each
// backend does its own locking.
type runtimeSink struct {
	kernel *Kernel
}

func (s *runtimeSink) RecordAttempt(agent string, event *proto.Event, _ int, err error) {
	s.kernel.Metrics.IncDispatchAttempt(agent, event.Kind, err == nil)
}

func (s *runtimeSink) RecordHandled(agent string, event *proto.Event, attempts int) {
	s.kernel.Metrics.ObserveDispatchDuration(agent, event.Kind, time.Since(event.Timestamp))
	s.writeLog(eventlog.NewRecord(agent, event, eventlog.OutcomeHandled, attempts, nil))
}

func (s *runtimeSink) RecordAbandoned(agent string, event *proto.Event, attempts int, lastErr error) {
	s.kernel.Metrics.IncEventAbandoned(agent, event.Kind)
	s.kernel.Metrics.ObserveDispatchDuration(agent, event.Kind, time.Since(event.Timestamp))
	s.writeLog(eventlog.NewRecord(agent, event, eventlog.OutcomeAbandoned, attempts, lastErr))

	if err := s.kernel.Store.RecordAbandonedEvent(context.Background(), agent, event, attempts, lastErr); err != nil {
		logx.NewLogger("kernel").Warn("failed to persist abandoned event %s: %v", event.ID, err)
	}
}

func (s *runtimeSink) RecordPollCycle(agent string, err error) {
	s.kernel.Metrics.IncPollCycle(agent, err == nil)
}

func (s *runtimeSink) ObserveQueueDepth(agent string, depth int) {
	s.kernel.Metrics.SetQueueDepth(agent, depth)
}

// RecordRouted is called by the orchestrator when an event is delivered to
// an agent's queue. Not part of the agent.Sink interface; the orchestrator
// takes it as a separate callback.
func (s *runtimeSink) RecordRouted(agent string, event *proto.Event) {
	s.kernel.Metrics.IncEventRouted(agent, event.Kind, event.Source)
	s.writeLog(eventlog.NewRecord(agent, event, eventlog.OutcomeRouted, 0, nil))
}

func (s *runtimeSink) writeLog(record *eventlog.Record) {
	if err := s.kernel.EventLog.WriteRecord(record); err != nil {
		logx.NewLogger("kernel").Warn("failed to write event log record: %v", err)
	}
}
