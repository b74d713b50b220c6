package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// IdentityMetrics tracks account operations and the remote mirror.
type IdentityMetrics struct {
	operations *prometheus.CounterVec
	mirror     *prometheus.CounterVec
	cacheHits  prometheus.Counter
	collectorSet
}

// NewIdentityMetrics creates and registers identity metrics.
func NewIdentityMetrics(registry prometheus.Registerer) (*IdentityMetrics, error) {
	m := &IdentityMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "findr_identity_operations_total",
			Help: "Identity operations by type and status",
		}, []string{"operation", "status"}),
		mirror: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "findr_identity_mirror_total",
			Help: "Remote users mirror attempts by resulting sync status",
		}, []string{"sync_status"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "findr_identity_user_cache_hits_total",
			Help: "User lookups served from cache",
		}),
	}
	m.collectorSet = collectorSet{m.operations, m.mirror, m.cacheHits}

	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register identity metrics: %w", err)
	}
	return m, nil
}

// RecordOperation counts an identity operation.
func (m *IdentityMetrics) RecordOperation(operation, status string) {
	m.operations.WithLabelValues(operation, status).Inc()
}

// RecordMirror counts a mirror attempt outcome.
func (m *IdentityMetrics) RecordMirror(syncStatus string) {
	m.mirror.WithLabelValues(syncStatus).Inc()
}

// IncrementCacheHits counts a user cache hit.
func (m *IdentityMetrics) IncrementCacheHits() {
	m.cacheHits.Inc()
}
