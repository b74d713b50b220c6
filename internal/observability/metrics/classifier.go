package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ClassifierMetrics contains Prometheus metrics for image classification.
type ClassifierMetrics struct {
	requests  *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  prometheus.Histogram
	parseTier *prometheus.CounterVec
	cacheHits prometheus.Counter
	imageSize prometheus.Histogram
	collectorSet
}

// NewClassifierMetrics creates and registers classifier metrics.
func NewClassifierMetrics(registry prometheus.Registerer) (*ClassifierMetrics, error) {
	m := &ClassifierMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "findr_classifier_requests_total",
			Help: "Total number of classification requests by outcome",
		}, []string{"status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "findr_classifier_failures_total",
			Help: "Total number of failed classifications by reason",
		}, []string{"reason"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "findr_classifier_duration_seconds",
			Help:    "End to end classification latency",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}),
		parseTier: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "findr_classifier_parse_tier_total",
			Help: "Replies parsed by each tier",
		}, []string{"tier"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "findr_classifier_cache_hits_total",
			Help: "Classifications served from the result cache",
		}),
		imageSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "findr_classifier_image_size_bytes",
			Help:    "Size of submitted images",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10),
		}),
	}
	m.collectorSet = collectorSet{m.requests, m.failures, m.duration, m.parseTier, m.cacheHits, m.imageSize}

	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register classifier metrics: %w", err)
	}
	return m, nil
}

// RecordRequest counts a finished classification.
func (m *ClassifierMetrics) RecordRequest(status string, seconds float64) {
	m.requests.WithLabelValues(status).Inc()
	m.duration.Observe(seconds)
}

// RecordFailure counts a hard failure by reason.
func (m *ClassifierMetrics) RecordFailure(reason string) {
	m.failures.WithLabelValues(reason).Inc()
}

// RecordParseTier counts which parser produced a result.
func (m *ClassifierMetrics) RecordParseTier(tier string) {
	m.parseTier.WithLabelValues(tier).Inc()
}

// IncrementCacheHits counts a cache hit.
func (m *ClassifierMetrics) IncrementCacheHits() {
	m.cacheHits.Inc()
}

// ObserveImageSize records the size of a submitted image.
func (m *ClassifierMetrics) ObserveImageSize(sizeBytes int) {
	m.imageSize.Observe(float64(sizeBytes))
}
