package providers

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Default retry configuration. MaxRetries counts additional attempts beyond
// the first call.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 1 * time.Second
	DefaultMaxDelay   = 60 * time.Second
	DefaultMultiplier = 2.0
)

// RetryConfig controls the exponential backoff applied around provider
// calls. The zero value disables retries; use DefaultRetryConfig for the
// standard policy.
type RetryConfig struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// BaseDelay is the unscaled delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the unscaled exponential delay.
	MaxDelay time.Duration
	// Multiplier is the exponential growth factor per attempt.
	Multiplier float64
	// Jitter randomizes each delay between 50% and 150% of its unscaled
	// value to avoid synchronized retries against the same provider.
	Jitter bool

	// rand overrides the jitter source; tests inject a deterministic value.
	rand func() float64
}

// DefaultRetryConfig returns the standard policy: three retries, one second
// base delay doubling up to a minute, jitter on.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
		Multiplier: DefaultMultiplier,
		Jitter:     true,
	}
}

// Delay returns the sleep duration before the retry following the given
// zero-based attempt.
func (c RetryConfig) Delay(attempt int) time.Duration {
	base := float64(c.BaseDelay) * math.Pow(c.Multiplier, float64(attempt))
	if max := float64(c.MaxDelay); base > max {
		base = max
	}
	if c.Jitter {
		r := rand.Float64
		if c.rand != nil {
			r = c.rand
		}
		base *= 0.5 + r()
	}
	return time.Duration(base)
}

// retry invokes fn until it succeeds, the failure is terminal, or attempts
// are exhausted. The last error is returned unchanged so callers can
// inspect its original type and message. Terminal failures return
// immediately without sleeping.
func retry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ClassifyFailure(err) == OutcomeTerminal || attempt == cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return zero, lastErr
		case <-time.After(cfg.Delay(attempt)):
		}
	}

	return zero, lastErr
}
