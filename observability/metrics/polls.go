package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type PollMetrics struct {
	transitions     *prometheus.CounterVec
	votes           *prometheus.CounterVec
	closures        *prometheus.CounterVec
	closureFailures *prometheus.CounterVec
	height          prometheus.Gauge
	events          *prometheus.CounterVec
	rpcRequests     *prometheus.CounterVec
	rpcLatency      *prometheus.HistogramVec
	rpcThrottled    prometheus.Counter
}

var (
	pollsOnce     sync.Once
	pollsRegistry *PollMetrics
)

// Polls returns the lazily registered metrics bundle of the poll node.
func Polls() *PollMetrics {
	pollsOnce.Do(func() {
		pollsRegistry = &PollMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "polls",
				Name:      "status_transitions_total",
				Help:      "Poll lifecycle transitions by resulting status.",
			}, []string{"status"}),
			votes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "polls",
				Name:      "votes_total",
				Help:      "Accepted votes by currency kind.",
			}, []string{"currency"}),
			closures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "polls",
				Subsystem: "scheduler",
				Name:      "dispatched_total",
				Help:      "Scheduled closures dispatched by module.",
			}, []string{"module"}),
			closureFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "polls",
				Subsystem: "scheduler",
				Name:      "failures_total",
				Help:      "Scheduled closures whose handler returned an error.",
			}, []string{"module"}),
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "polls",
				Name:      "block_height",
				Help:      "Current block height of the node.",
			}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "polls",
				Name:      "events_total",
				Help:      "Committed events by type.",
			}, []string{"type"}),
			rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "polls",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "JSON-RPC requests by method and outcome.",
			}, []string{"method", "outcome"}),
			rpcLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "polls",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution of JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			rpcThrottled: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "polls",
				Subsystem: "rpc",
				Name:      "throttled_total",
				Help:      "JSON-RPC requests rejected by the rate limiter.",
			}),
		}
		prometheus.MustRegister(
			pollsRegistry.transitions,
			pollsRegistry.votes,
			pollsRegistry.closures,
			pollsRegistry.closureFailures,
			pollsRegistry.height,
			pollsRegistry.events,
			pollsRegistry.rpcRequests,
			pollsRegistry.rpcLatency,
			pollsRegistry.rpcThrottled,
		)
	})
	return pollsRegistry
}

func label(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}

// ObserveEvent counts a committed event and derives lifecycle counters from it.
func (m *PollMetrics) ObserveEvent(eventType string, attrs map[string]string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(label(eventType)).Inc()
	switch eventType {
	case "polls.created":
		m.transitions.WithLabelValues("ongoing").Inc()
	case "polls.finished":
		m.transitions.WithLabelValues("finished").Inc()
	case "polls.cancelled":
		m.transitions.WithLabelValues("cancelled").Inc()
	case "polls.voted":
		kind := attrs["currency"]
		if strings.HasPrefix(kind, "asset:") {
			kind = "asset"
		}
		m.votes.WithLabelValues(label(kind)).Inc()
	}
}

func (m *PollMetrics) ObserveClosure(module string, err error) {
	if m == nil {
		return
	}
	m.closures.WithLabelValues(label(module)).Inc()
	if err != nil {
		m.closureFailures.WithLabelValues(label(module)).Inc()
	}
}

func (m *PollMetrics) SetHeight(height uint64) {
	if m == nil {
		return
	}
	m.height.Set(float64(height))
}

func (m *PollMetrics) ObserveRPC(method string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.rpcRequests.WithLabelValues(label(method), outcome).Inc()
	m.rpcLatency.WithLabelValues(label(method)).Observe(duration.Seconds())
}

func (m *PollMetrics) RecordThrottle() {
	if m == nil {
		return
	}
	m.rpcThrottled.Inc()
}
