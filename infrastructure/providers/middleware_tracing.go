package providers

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Cubanisto31/geoprobe/internal/domain"
)

type tracedProvider struct {
	next   CoreProvider
	tracer trace.Tracer
}

// TracingMiddleware creates middleware that wraps each provider call in an
// OpenTelemetry span carrying provider, model, and query-size attributes.
func TracingMiddleware(serviceName string) Middleware {
	tracer := otel.Tracer(serviceName)
	return func(next CoreProvider) CoreProvider {
		return &tracedProvider{next: next, tracer: tracer}
	}
}

// DoQuery executes the wrapped call inside a span.
func (t *tracedProvider) DoQuery(ctx context.Context, text, sessionID string) (*domain.CanonicalResult, error) {
	ctx, span := t.tracer.Start(ctx, "provider.query",
		trace.WithAttributes(
			attribute.String("provider.name", t.next.Name()),
			attribute.String("provider.model", t.next.Model()),
			attribute.Int("query.length", len(text)),
		),
	)
	defer span.End()

	result, err := t.next.DoQuery(ctx, text, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	span.SetAttributes(
		attribute.Int("response.length", len(result.ResponseRaw)),
		attribute.Int("response.sources", len(result.Sources)),
	)
	return result, nil
}

func (t *tracedProvider) Name() string  { return t.next.Name() }
func (t *tracedProvider) Model() string { return t.next.Model() }
