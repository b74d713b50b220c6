package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTT error stages.
const (
	StageConnect        = "connect"
	StagePublish        = "publish"
	StageConnectionLost = "connection_lost"
)

// MQTTMetrics tracks the sighting event publisher.
type MQTTMetrics struct {
	ConnectionStatus prometheus.Gauge
	lastConnect      prometheus.Gauge
	published        *prometheus.CounterVec
	errors           *prometheus.CounterVec
	reconnects       prometheus.Counter
	payloadSize      prometheus.Histogram
	publishLatency   prometheus.Histogram
	collectorSet
}

// NewMQTTMetrics registers the publisher metrics on registry.
func NewMQTTMetrics(registry prometheus.Registerer) (*MQTTMetrics, error) {
	m := &MQTTMetrics{
		ConnectionStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "findr_mqtt_connected",
			Help: "1 while the sighting event publisher is connected to the broker",
		}),
		lastConnect: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "findr_mqtt_last_connect_timestamp_seconds",
			Help: "Unix time of the last successful broker connection",
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "findr_mqtt_events_published_total",
			Help: "Sighting events delivered to the broker",
		}, []string{"topic"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "findr_mqtt_errors_total",
			Help: "Publisher errors by stage",
		}, []string{"stage"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "findr_mqtt_reconnects_total",
			Help: "Automatic reconnect attempts",
		}),
		payloadSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "findr_mqtt_event_size_bytes",
			Help:    "Encoded sighting event size",
			Buckets: prometheus.ExponentialBuckets(128, 2, 8),
		}),
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "findr_mqtt_publish_duration_seconds",
			Help:    "Time until the broker acknowledged a publish",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
	m.collectorSet = collectorSet{
		m.ConnectionStatus, m.lastConnect, m.published, m.errors,
		m.reconnects, m.payloadSize, m.publishLatency,
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("register mqtt metrics: %w", err)
	}
	return m, nil
}

// SetConnected flips the connection gauge and stamps successful connects.
func (m *MQTTMetrics) SetConnected(connected bool) {
	if !connected {
		m.ConnectionStatus.Set(0)
		return
	}
	m.ConnectionStatus.Set(1)
	m.lastConnect.SetToCurrentTime()
}

// ObservePublish records one acknowledged event.
func (m *MQTTMetrics) ObservePublish(topic string, size int, elapsed time.Duration) {
	m.published.WithLabelValues(topic).Inc()
	m.payloadSize.Observe(float64(size))
	m.publishLatency.Observe(elapsed.Seconds())
}

func (m *MQTTMetrics) RecordError(stage string) {
	m.errors.WithLabelValues(stage).Inc()
}

func (m *MQTTMetrics) RecordReconnect() {
	m.reconnects.Inc()
}
