package providers

import (
	"context"
	"sync"

	"github.com/Cubanisto31/geoprobe/internal/domain"
)

// stubProvider is a configurable CoreProvider for tests.
type stubProvider struct {
	mu    sync.Mutex
	calls int

	// FailUntilAttempt makes the first N calls return Err.
	FailUntilAttempt int
	// Err is the error returned by failing calls. Defaults to a retryable
	// server error when unset.
	Err error
	// Result is returned on success. Defaults to a minimal canonical result.
	Result *domain.CanonicalResult
}

func (s *stubProvider) DoQuery(ctx context.Context, text, sessionID string) (*domain.CanonicalResult, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()

	if n <= s.FailUntilAttempt {
		if s.Err != nil {
			return nil, s.Err
		}
		return nil, NewProviderError("stub", ErrorTypeServerError, 500, "stub failure", nil)
	}
	if s.Result != nil {
		return s.Result, nil
	}
	return &domain.CanonicalResult{
		ResponseRaw: "stub response to " + text,
		Sources:     []domain.Source{},
		Metadata:    domain.Metadata{"session_id": sessionID},
	}, nil
}

func (s *stubProvider) Name() string  { return "stub" }
func (s *stubProvider) Model() string { return "stub-model" }

func (s *stubProvider) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
