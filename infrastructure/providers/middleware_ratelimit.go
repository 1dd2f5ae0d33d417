package providers

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/Cubanisto31/geoprobe/internal/domain"
)

type rateLimitedProvider struct {
	next    CoreProvider
	limiter *rate.Limiter
}

// RateLimitMiddleware creates middleware that paces requests with a token
// bucket. The limit is requests per second; burst allows short spikes above
// the sustained rate. Used when a model configures requests_per_second.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)
	return func(next CoreProvider) CoreProvider {
		return &rateLimitedProvider{next: next, limiter: limiter}
	}
}

// DoQuery blocks until a token is available, then forwards the call.
func (r *rateLimitedProvider) DoQuery(ctx context.Context, text, sessionID string) (*domain.CanonicalResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.DoQuery(ctx, text, sessionID)
}

func (r *rateLimitedProvider) Name() string  { return r.next.Name() }
func (r *rateLimitedProvider) Model() string { return r.next.Model() }
