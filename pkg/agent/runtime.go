package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"agentco/pkg/config"
	"agentco/pkg/logx"
	"agentco/pkg/proto"
)

// queueWaitTimeout bounds how long the event loop blocks on an empty queue,
// so a Stop is observed within this window even when no events arrive.
const queueWaitTimeout = time.Second

// Runtime executes one agent: its poll loop and event loop run concurrently
// as two tasks sharing a single fate. If either loop exits with a fault, the
// sibling is cancelled, the runtime is marked errored, and the fault
// propagates to the caller's supervision group.
type Runtime struct {
	agent    Agent
	settings config.RuntimeSettings
	queue    *eventQueue
	sink     Sink
	logger   *logx.Logger

	mu     sync.Mutex
	status Status
}

// NewRuntime wraps an agent with its merged runtime settings. A nil sink
// disables outcome recording.
func NewRuntime(a Agent, settings config.RuntimeSettings, sink Sink) *Runtime {
	if sink == nil {
		sink = NopSink{}
	}
	return &Runtime{
		agent:    a,
		settings: settings,
		queue:    newEventQueue(),
		sink:     sink,
		logger:   logx.NewLogger(a.Name()),
		status:   StatusIdle,
	}
}

// Name returns the wrapped agent's name.
func (r *Runtime) Name() string {
	return r.agent.Name()
}

// Status returns the runtime's current lifecycle state.
func (r *Runtime) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// transition applies a status change if it is legal. Transitions are
// monotonic: once Stopping or Errored, the runtime never runs again within
// this process.
func (r *Runtime) transition(to Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch to {
	case StatusRunning:
		if r.status != StatusIdle {
			return false
		}
	case StatusStopping:
		if r.status != StatusIdle && r.status != StatusRunning {
			return false
		}
	case StatusErrored:
		if r.status == StatusErrored {
			return false
		}
	case StatusIdle:
		return false
	}
	r.status = to
	return true
}

// PushEvent enqueues an event for this agent. It never blocks and never
// fails, regardless of agent status; events pushed before Start are processed
// once the runtime starts.
func (r *Runtime) PushEvent(event *proto.Event) {
	depth := r.queue.push(event)
	r.sink.ObserveQueueDepth(r.agent.Name(), depth)
	r.logger.Debug("queued %s (depth %d)", event, depth)
}

// QueueDepth returns the number of events waiting in the inbound queue.
func (r *Runtime) QueueDepth() int {
	return r.queue.depth()
}

// Start transitions the runtime to Running and runs the poll loop and event
// loop until Stop is called, ctx is cancelled, or a loop faults. A loop fault
// marks the runtime Errored, terminates the sibling loop, and is returned to
// the caller.
func (r *Runtime) Start(ctx context.Context) error {
	if !r.transition(StatusRunning) {
		return fmt.Errorf("agent %s: already started (status %s)", r.agent.Name(), r.Status())
	}
	r.logger.Info("agent started (poll interval %s, max retries %d)",
		r.settings.PollInterval, r.settings.MaxRetries)

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan error, 2)
	go func() { results <- r.pollLoop(loopCtx) }()
	go func() { results <- r.eventLoop(loopCtx) }()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-results; err != nil && firstErr == nil {
			firstErr = err
			r.transition(StatusErrored)
			cancel()
		}
	}

	if firstErr != nil {
		r.logger.Error("agent crashed: %v", firstErr)
		return fmt.Errorf("agent %s: %w", r.agent.Name(), firstErr)
	}
	r.logger.Info("agent stopped")
	return nil
}

// Stop requests a clean shutdown. Loops observe the status change at their
// next iteration boundary; in-flight handler work is allowed to finish.
func (r *Runtime) Stop() {
	if r.transition(StatusStopping) {
		r.logger.Info("agent stopping")
	}
}

// pollLoop invokes Poll on the configured interval while the runtime is
// Running. Poll faults are logged and skipped; anything escaping this
// boundary (a panic in Poll) is converted to a loop fault.
func (r *Runtime) pollLoop(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("poll loop panic: %v", p)
		}
	}()

	for {
		if r.Status() != StatusRunning {
			return nil
		}

		if pollErr := r.agent.Poll(ctx); pollErr != nil {
			r.logger.Warn("poll error: %v", pollErr)
			r.sink.RecordPollCycle(r.agent.Name(), pollErr)
		} else {
			r.sink.RecordPollCycle(r.agent.Name(), nil)
		}

		select {
		case <-time.After(r.settings.PollInterval):
		case <-ctx.Done():
			return nil
		}
	}
}

// eventLoop dequeues events while the runtime is Running and resolves each
// through the bounded-retry dispatcher. Dispatch is strictly sequential: one
// event is fully handled or abandoned before the next is dequeued.
func (r *Runtime) eventLoop(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("event loop panic: %v", p)
		}
	}()

	for {
		if r.Status() != StatusRunning || ctx.Err() != nil {
			return nil
		}

		event, depth := r.queue.popWait(ctx, queueWaitTimeout)
		if event == nil {
			continue
		}
		r.sink.ObserveQueueDepth(r.agent.Name(), depth)
		r.dispatch(ctx, event)
	}
}

// dispatch runs one event through HandleEvent with up to MaxRetries attempts
// and linear backoff (backoff * attempt number) between failures. After
// exhausting the budget the event is logged and recorded as abandoned, never
// retried further, and never escalated.
func (r *Runtime) dispatch(ctx context.Context, event *proto.Event) {
	name := r.agent.Name()
	maxAttempts := r.settings.MaxRetries

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		handleErr := r.agent.HandleEvent(ctx, event)
		r.sink.RecordAttempt(name, event, attempt, handleErr)

		if handleErr == nil {
			r.sink.RecordHandled(name, event, attempt)
			return
		}
		lastErr = handleErr
		r.logger.Warn("failed handling %s (attempt %d/%d): %v", event, attempt, maxAttempts, handleErr)

		if attempt < maxAttempts {
			backoff := time.Duration(attempt) * r.settings.RetryBackoff
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				// Shutdown mid-backoff: the remaining budget is forfeited.
				r.logger.Error("abandoning %s during shutdown after %d attempt(s): %v", event, attempt, lastErr)
				r.sink.RecordAbandoned(name, event, attempt, lastErr)
				return
			}
		}
	}

	r.logger.Error("gave up on %s after %d attempts: %v", event, maxAttempts, lastErr)
	r.sink.RecordAbandoned(name, event, maxAttempts, lastErr)
}
