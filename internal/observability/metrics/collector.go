package metrics

import "github.com/prometheus/client_golang/prometheus"

// collectorSet implements prometheus.Collector over a fixed list of collectors.
type collectorSet []prometheus.Collector

// Describe implements the prometheus.Collector interface.
func (s collectorSet) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range s {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (s collectorSet) Collect(ch chan<- prometheus.Metric) {
	for _, c := range s {
		c.Collect(ch)
	}
}
