package graph

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects scheduler metrics for production monitoring.
//
// Metrics exposed (all namespaced with "flowchart_"):
//
//  1. queue_depth (gauge): nodes waiting in the ready queue of the current turn.
//  2. outstanding_actions (gauge): scheduled actions awaiting completion.
//  3. turn_latency_ms (histogram): duration of one engine call.
//     Labels: operation (activate, complete, cancel_node, cancel).
//  4. node_completions_total (counter): nodes reaching a terminal state.
//     Labels: kind, outcome (completed, canceled, skipped, faulted).
//  5. cancellations_total (counter): node cancellations newly issued.
//     Labels: reason (join_first, request, instance).
//  6. joins_total (counter): Merge nodes that let execution continue.
//     Labels: policy (all, first).
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := graph.NewPrometheusMetrics(registry)
//	engine, _ := graph.NewEngine(def, host, graph.WithMetrics(metrics))
//
// Thread-safe: collectors are safe for concurrent use and the enabled flag is
// guarded by a mutex.
type PrometheusMetrics struct {
	queueDepth  prometheus.Gauge
	outstanding prometheus.Gauge

	turnLatency *prometheus.HistogramVec

	completions   *prometheus.CounterVec
	cancellations *prometheus.CounterVec
	joins         *prometheus.CounterVec

	registry prometheus.Registerer

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics creates and registers all scheduler metrics with the
// provided registry. A nil registry means prometheus.DefaultRegisterer.
//
// Registering twice against the same registry panics, as with any promauto
// collector; use one PrometheusMetrics per registry and share it between
// engines.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	pm := &PrometheusMetrics{
		registry: registry,
		enabled:  true,
	}

	pm.queueDepth = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "flowchart",
		Name:      "queue_depth",
		Help:      "Number of nodes waiting in the ready queue of the current turn",
	})

	pm.outstanding = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "flowchart",
		Name:      "outstanding_actions",
		Help:      "Number of scheduled actions awaiting completion after the last turn",
	})

	pm.turnLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "flowchart",
		Name:      "turn_latency_ms",
		Help:      "Duration of a single engine call in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000},
	}, []string{"operation"})

	pm.completions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowchart",
		Name:      "node_completions_total",
		Help:      "Nodes that reached a terminal state",
	}, []string{"kind", "outcome"})

	pm.cancellations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowchart",
		Name:      "cancellations_total",
		Help:      "Node cancellations newly issued",
	}, []string{"reason"})

	pm.joins = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowchart",
		Name:      "joins_total",
		Help:      "Merge nodes that joined their branches and continued",
	}, []string{"policy"})

	return pm
}

func (pm *PrometheusMetrics) isEnabled() bool {
	if pm == nil {
		return false
	}
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

// UpdateQueueDepth sets the ready queue gauge.
func (pm *PrometheusMetrics) UpdateQueueDepth(depth int) {
	if !pm.isEnabled() {
		return
	}
	pm.queueDepth.Set(float64(depth))
}

// UpdateOutstanding sets the outstanding actions gauge.
func (pm *PrometheusMetrics) UpdateOutstanding(count int) {
	if !pm.isEnabled() {
		return
	}
	pm.outstanding.Set(float64(count))
}

// RecordTurnLatency observes the duration of one engine call.
func (pm *PrometheusMetrics) RecordTurnLatency(operation string, latency time.Duration) {
	if !pm.isEnabled() {
		return
	}
	pm.turnLatency.WithLabelValues(operation).Observe(float64(latency.Microseconds()) / 1000)
}

// IncrementCompletions counts a node reaching a terminal state.
func (pm *PrometheusMetrics) IncrementCompletions(kind NodeKind, outcome string) {
	if !pm.isEnabled() {
		return
	}
	pm.completions.WithLabelValues(kind.String(), outcome).Inc()
}

// IncrementCancellations counts a newly issued node cancellation.
func (pm *PrometheusMetrics) IncrementCancellations(reason string) {
	if !pm.isEnabled() {
		return
	}
	pm.cancellations.WithLabelValues(reason).Inc()
}

// IncrementJoins counts a Merge that continued past its join.
func (pm *PrometheusMetrics) IncrementJoins(policy JoinPolicy) {
	if !pm.isEnabled() {
		return
	}
	pm.joins.WithLabelValues(policy.String()).Inc()
}

// Disable temporarily disables metric recording (useful for testing).
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable re-enables metric recording after Disable().
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}

// Reset clears the gauges. Counters and histograms are cumulative and keep
// their values.
func (pm *PrometheusMetrics) Reset() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.queueDepth.Set(0)
	pm.outstanding.Set(0)
}
