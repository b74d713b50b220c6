package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// SightingsMetrics tracks persistence operations and the pending queue.
type SightingsMetrics struct {
	operations   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	fallbacks    *prometheus.CounterVec
	pendingQueue prometheus.Gauge
	reconciled   *prometheus.CounterVec
	collectorSet
}

// NewSightingsMetrics creates and registers sightings metrics.
func NewSightingsMetrics(registry prometheus.Registerer) (*SightingsMetrics, error) {
	m := &SightingsMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "findr_sightings_operations_total",
			Help: "Sighting store operations by type and status",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "findr_sightings_operation_duration_seconds",
			Help:    "Latency of sighting store operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "findr_sightings_local_fallbacks_total",
			Help: "Creates that fell back to a local pending record",
		}, []string{"reason"}),
		pendingQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "findr_sightings_pending",
			Help: "Number of sightings waiting for reconciliation",
		}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "findr_sightings_reconciled_total",
			Help: "Pending sightings processed by the reconciler",
		}, []string{"status"}),
	}
	m.collectorSet = collectorSet{m.operations, m.duration, m.fallbacks, m.pendingQueue, m.reconciled}

	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register sightings metrics: %w", err)
	}
	return m, nil
}

// RecordOperation counts an operation and observes its duration.
func (m *SightingsMetrics) RecordOperation(operation, status string, seconds float64) {
	m.operations.WithLabelValues(operation, status).Inc()
	m.duration.WithLabelValues(operation).Observe(seconds)
}

// RecordFallback counts a local fallback.
func (m *SightingsMetrics) RecordFallback(reason string) {
	m.fallbacks.WithLabelValues(reason).Inc()
}

// SetPending sets the pending queue depth.
func (m *SightingsMetrics) SetPending(n int64) {
	m.pendingQueue.Set(float64(n))
}

// RecordReconciled counts one reconciled record.
func (m *SightingsMetrics) RecordReconciled(status string) {
	m.reconciled.WithLabelValues(status).Inc()
}
