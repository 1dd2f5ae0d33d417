package providers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cubanisto31/geoprobe/internal/domain"
)

// recordingCollector captures metrics calls for assertions.
type recordingCollector struct {
	mu        sync.Mutex
	latencies []string
	counters  map[string]float64
	statuses  []string
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{counters: map[string]float64{}}
}

func (c *recordingCollector) RecordLatency(operation string, _ time.Duration, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latencies = append(c.latencies, operation)
	c.statuses = append(c.statuses, labels["status"])
}

func (c *recordingCollector) RecordCounter(metric string, value float64, _ map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[metric] += value
}

func TestMetricsMiddleware_RecordsSuccess(t *testing.T) {
	// Given a provider returning two sources
	stub := &stubProvider{Result: &domain.CanonicalResult{
		ResponseRaw: "ok",
		Sources:     []domain.Source{{URL: "https://a"}, {URL: "https://b"}},
	}}
	collector := newRecordingCollector()
	wrapped := MetricsMiddleware(collector)(stub)

	// When querying
	_, err := wrapped.DoQuery(context.Background(), "q", "s")

	// Then latency, request count, and source count are recorded as success
	require.NoError(t, err)
	assert.Equal(t, []string{"provider_query"}, collector.latencies)
	assert.Equal(t, []string{"success"}, collector.statuses)
	assert.Equal(t, 1.0, collector.counters["provider_requests_total"])
	assert.Equal(t, 2.0, collector.counters["provider_sources_extracted_total"])
}

func TestMetricsMiddleware_RecordsError(t *testing.T) {
	// Given a failing provider
	stub := &stubProvider{FailUntilAttempt: 1}
	collector := newRecordingCollector()
	wrapped := MetricsMiddleware(collector)(stub)

	// When querying
	_, err := wrapped.DoQuery(context.Background(), "q", "s")

	// Then the failure is counted with error status and no source count
	require.Error(t, err)
	assert.Equal(t, []string{"error"}, collector.statuses)
	assert.Equal(t, 1.0, collector.counters["provider_requests_total"])
	assert.Zero(t, collector.counters["provider_sources_extracted_total"])
}

func TestRateLimitMiddleware_PacesRequests(t *testing.T) {
	// Given a 10 req/s limit with burst 1
	stub := &stubProvider{}
	wrapped := RateLimitMiddleware(10, 1)(stub)

	// When issuing three requests back to back
	start := time.Now()
	for range 3 {
		_, err := wrapped.DoQuery(context.Background(), "q", "s")
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	// Then the second and third requests waited for tokens
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond, "requests should be paced")
	assert.Equal(t, 3, stub.CallCount())
}

func TestRateLimitMiddleware_HonorsCancellation(t *testing.T) {
	// Given an exhausted limiter and a canceled context
	stub := &stubProvider{}
	wrapped := RateLimitMiddleware(0.001, 1)(stub)
	_, err := wrapped.DoQuery(context.Background(), "q", "s")
	require.NoError(t, err, "burst token should admit the first request")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// When waiting for the next token
	_, err = wrapped.DoQuery(ctx, "q", "s")

	// Then the wait aborts instead of blocking
	require.Error(t, err)
	assert.Equal(t, 1, stub.CallCount(), "canceled request should not reach the provider")
}

func TestTracingMiddleware_PassesThrough(t *testing.T) {
	// Given a traced provider (no tracer provider installed, spans are no-ops)
	stub := &stubProvider{}
	wrapped := TracingMiddleware("test")(stub)

	// When querying
	result, err := wrapped.DoQuery(context.Background(), "q", "s")

	// Then the call reaches the provider and the result is untouched
	require.NoError(t, err)
	assert.Equal(t, "stub response to q", result.ResponseRaw)
	assert.Equal(t, "stub", wrapped.Name())
	assert.Equal(t, "stub-model", wrapped.Model())
}
