package agent

import (
	"context"
	"sync"
	"time"

	"agentco/pkg/proto"
)

// eventQueue is the agent's private inbound queue: unbounded, FIFO,
// multi-producer/single-consumer. Push never blocks; the consumer waits with
// a timeout so status changes are observed promptly even when idle.
type eventQueue struct {
	mu    sync.Mutex
	items []*proto.Event
	wake  chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{wake: make(chan struct{}, 1)}
}

// push enqueues an event and returns the new queue depth.
func (q *eventQueue) push(event *proto.Event) int {
	q.mu.Lock()
	q.items = append(q.items, event)
	depth := len(q.items)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return depth
}

// pop dequeues the oldest event, or nil if the queue is empty. The second
// return is the remaining depth.
func (q *eventQueue) pop() (*proto.Event, int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, 0
	}
	event := q.items[0]
	q.items = q.items[1:]
	return event, len(q.items)
}

func (q *eventQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// popWait dequeues the oldest event, waiting up to timeout for one to arrive.
// Returns nil on timeout or context cancellation; callers loop, re-checking
// status between waits.
func (q *eventQueue) popWait(ctx context.Context, timeout time.Duration) (*proto.Event, int) {
	if event, depth := q.pop(); event != nil {
		return event, depth
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-q.wake:
		return q.pop()
	case <-timer.C:
		return nil, q.depth()
	case <-ctx.Done():
		return nil, q.depth()
	}
}
