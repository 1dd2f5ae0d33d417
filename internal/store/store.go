// Package store persists experiment results. The production store writes to
// SQLite; an in-memory implementation backs tests.
package store

import (
	"context"

	"github.com/Cubanisto31/geoprobe/internal/domain"
)

// ResultStore is the persistence contract of the runner. Save writes one
// complete record; a failed Save loses only that record, the runner logs the
// failure and continues.
type ResultStore interface {
	Save(ctx context.Context, result *domain.ExperimentResult) error
	Close() error
}
