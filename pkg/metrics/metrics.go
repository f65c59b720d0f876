// Package metrics provides Prometheus-based metrics for event routing,
// dispatch, and the ingress gateway.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the runtime's Prometheus collectors.
type Recorder struct {
	eventsRouted     *prometheus.CounterVec
	dispatchAttempts *prometheus.CounterVec
	eventsAbandoned  *prometheus.CounterVec
	pollCycles       *prometheus.CounterVec
	webhookRequests  *prometheus.CounterVec
	queueDepth       *prometheus.GaugeVec
	dispatchDuration *prometheus.HistogramVec
}

// NewRecorder creates and registers the runtime's collectors on the default
// registry. Call once per process.
func NewRecorder() *Recorder {
	return &Recorder{
		eventsRouted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentco_events_routed_total",
				Help: "Total events delivered to agent queues",
			},
			[]string{"agent", "kind", "source"},
		),
		dispatchAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentco_dispatch_attempts_total",
				Help: "Total handler invocations by outcome",
			},
			[]string{"agent", "kind", "status"},
		),
		eventsAbandoned: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentco_events_abandoned_total",
				Help: "Total events dropped after exhausting the retry budget",
			},
			[]string{"agent", "kind"},
		),
		pollCycles: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentco_poll_cycles_total",
				Help: "Total poll cycles by status",
			},
			[]string{"agent", "status"},
		),
		webhookRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentco_webhook_requests_total",
				Help: "Total inbound webhook requests by provider and status",
			},
			[]string{"provider", "status"},
		),
		queueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agentco_queue_depth",
				Help: "Current per-agent event queue depth",
			},
			[]string{"agent"},
		),
		dispatchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentco_dispatch_duration_seconds",
				Help:    "Time from event creation to terminal outcome",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent", "kind"},
		),
	}
}

// IncEventRouted counts one event delivered to an agent's queue.
func (r *Recorder) IncEventRouted(agent, kind, source string) {
	r.eventsRouted.WithLabelValues(agent, kind, source).Inc()
}

// IncDispatchAttempt counts one handler invocation.
func (r *Recorder) IncDispatchAttempt(agent, kind string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	r.dispatchAttempts.WithLabelValues(agent, kind, status).Inc()
}

// IncEventAbandoned counts one event dropped after retry exhaustion.
func (r *Recorder) IncEventAbandoned(agent, kind string) {
	r.eventsAbandoned.WithLabelValues(agent, kind).Inc()
}

// IncPollCycle counts one poll cycle.
func (r *Recorder) IncPollCycle(agent string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	r.pollCycles.WithLabelValues(agent, status).Inc()
}

// IncWebhookRequest counts one inbound webhook request.
func (r *Recorder) IncWebhookRequest(provider, status string) {
	r.webhookRequests.WithLabelValues(provider, status).Inc()
}

// SetQueueDepth records an agent's current queue depth.
func (r *Recorder) SetQueueDepth(agent string, depth int) {
	r.queueDepth.WithLabelValues(agent).Set(float64(depth))
}

// ObserveDispatchDuration records how long an event took to reach a terminal
// outcome.
func (r *Recorder) ObserveDispatchDuration(agent, kind string, duration time.Duration) {
	r.dispatchDuration.WithLabelValues(agent, kind).Observe(duration.Seconds())
}
