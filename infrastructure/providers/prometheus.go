package providers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements MetricsCollector on top of the default
// Prometheus registry.
type PrometheusMetrics struct {
	latency  *prometheus.HistogramVec
	counters *prometheus.CounterVec
}

// NewPrometheusMetrics registers the experiment metrics in the global
// Prometheus registry and returns the collector. Call at most once per
// process.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "geoprobe_provider_query_duration_seconds",
				Help:    "Latency of provider query calls.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "provider", "model", "status"},
		),
		counters: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geoprobe_provider_events_total",
				Help: "Counts of provider requests and extracted sources.",
			},
			[]string{"metric", "provider", "model", "status"},
		),
	}
}

// RecordLatency implements MetricsCollector.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.latency.WithLabelValues(
		operation, labels["provider"], labels["model"], labels["status"],
	).Observe(duration.Seconds())
}

// RecordCounter implements MetricsCollector.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	pm.counters.WithLabelValues(
		metric, labels["provider"], labels["model"], labels["status"],
	).Add(value)
}
