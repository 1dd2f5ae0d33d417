package providers

import (
	"context"
	"time"

	"github.com/Cubanisto31/geoprobe/internal/domain"
)

// MetricsCollector receives operational metrics from the metrics
// middleware. Implementations integrate with observability backends such as
// Prometheus.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric by value.
	RecordCounter(metric string, value float64, labels map[string]string)
}

type metricsProvider struct {
	next      CoreProvider
	collector MetricsCollector
}

// MetricsMiddleware creates middleware that records per-call latency,
// request counts, and extracted-source counts for each provider call.
func MetricsMiddleware(collector MetricsCollector) Middleware {
	return func(next CoreProvider) CoreProvider {
		return &metricsProvider{next: next, collector: collector}
	}
}

// DoQuery executes the wrapped call while collecting metrics.
func (m *metricsProvider) DoQuery(ctx context.Context, text, sessionID string) (*domain.CanonicalResult, error) {
	start := time.Now()
	result, err := m.next.DoQuery(ctx, text, sessionID)

	labels := map[string]string{
		"provider": m.next.Name(),
		"model":    m.next.Model(),
		"status":   "success",
	}
	switch {
	case err != nil && ctx.Err() == context.DeadlineExceeded:
		labels["status"] = "timeout"
	case err != nil:
		labels["status"] = "error"
	}

	if m.collector != nil {
		m.collector.RecordLatency("provider_query", time.Since(start), labels)
		m.collector.RecordCounter("provider_requests_total", 1, labels)
		if err == nil {
			m.collector.RecordCounter("provider_sources_extracted_total", float64(len(result.Sources)), labels)
		}
	}

	return result, err
}

func (m *metricsProvider) Name() string  { return m.next.Name() }
func (m *metricsProvider) Model() string { return m.next.Model() }
