package store

import (
	"context"
	"sync"
	"time"

	"github.com/Cubanisto31/geoprobe/internal/domain"
)

// MemoryStore keeps results in a slice. It backs runner tests and supports
// injected Save failures.
type MemoryStore struct {
	mu      sync.Mutex
	results []domain.ExperimentResult

	// SaveErr, when non-nil, is returned by every Save without recording.
	SaveErr error
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Save records a copy of the result with the current time as its timestamp.
func (s *MemoryStore) Save(_ context.Context, result *domain.ExperimentResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	r := *result
	r.Timestamp = time.Now()
	s.results = append(s.results, r)
	return nil
}

// Results returns a copy of everything saved so far, in save order.
func (s *MemoryStore) Results() []domain.ExperimentResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ExperimentResult, len(s.results))
	copy(out, s.results)
	return out
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
