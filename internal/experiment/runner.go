package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Cubanisto31/geoprobe/internal/domain"
	"github.com/Cubanisto31/geoprobe/internal/store"
)

// QueryClient is the slice of the provider client the runner needs. The
// contract matters here: Query always returns a canonical result, handled
// failures arrive as error-sentinel results.
type QueryClient interface {
	Query(ctx context.Context, text, sessionID string) *domain.CanonicalResult
	Name() string
	ModelType() domain.ModelType
}

// ClientFactory builds the client for one enabled model. A factory error
// excludes the model from the run; it does not abort the experiment.
type ClientFactory func(cfg domain.ModelConfig) (QueryClient, error)

// Runner drives the iteration × query × model matrix and persists exactly
// one record per completed operation.
type Runner struct {
	cfg     *Config
	store   store.ResultStore
	factory ClientFactory
	logger  *slog.Logger

	// shuffle reorders query indices in place. Replaceable in tests.
	shuffle func([]int)
	// sleep waits for the configured inter-step delay, honoring ctx.
	sleep func(ctx context.Context, d time.Duration)
}

// NewRunner wires a runner over a validated configuration.
func NewRunner(cfg *Config, st store.ResultStore, factory ClientFactory, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:     cfg,
		store:   st,
		factory: factory,
		logger:  logger,
		shuffle: func(idx []int) {
			rand.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		},
		sleep: sleepCtx,
	}
}

// Summary reports what one Run produced. Faulted counts operations that
// ended in a confined provider panic; their error rows are still persisted
// but they do not count as completed.
type Summary struct {
	// ExperimentID is the configured experiment name every row is tagged with.
	ExperimentID string
	SessionID    string
	Completed    int
	Faulted      int
	Persisted    int
	Expected     int
}

// Run executes the full experiment. It returns early only on context
// cancellation; per-operation failures are recorded as error results and
// per-record persistence failures are logged and skipped.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	// Rows are grouped downstream by the configured experiment name.
	experimentID := r.cfg.ExperimentName
	sessionID := uuid.NewString()

	clients := r.buildClients()
	if len(clients) == 0 {
		return nil, fmt.Errorf("no usable model clients, experiment aborted")
	}

	summary := &Summary{
		ExperimentID: experimentID,
		SessionID:    sessionID,
		Expected:     r.cfg.IterationsPerQuery * len(r.cfg.Queries) * len(clients),
	}

	r.logger.Info("experiment starting",
		"experiment", r.cfg.ExperimentName,
		"session_id", sessionID,
		"iterations", r.cfg.IterationsPerQuery,
		"queries", len(r.cfg.Queries),
		"models", len(clients),
		"expected_results", summary.Expected,
		"use_different_sessions", r.cfg.UseDifferentSessions != nil && *r.cfg.UseDifferentSessions,
	)

	delay := time.Duration(r.cfg.DelaySeconds()) * time.Second

	for iteration := 1; iteration <= r.cfg.IterationsPerQuery; iteration++ {
		order := r.queryOrder()
		for _, qi := range order {
			if ctx.Err() != nil {
				r.logger.Info("experiment interrupted",
					"iteration", iteration, "completed", summary.Completed)
				return summary, ctx.Err()
			}
			query := r.cfg.Queries[qi]

			results := r.queryAllModels(ctx, clients, query, sessionID)
			for i, res := range results {
				record := r.buildRecord(experimentID, sessionID, query, iteration, clients[i], res)
				if flagged, _ := res.Metadata["panicked"].(bool); flagged {
					summary.Faulted++
				} else {
					summary.Completed++
				}
				if err := r.store.Save(ctx, record); err != nil {
					r.logger.Error("persisting result failed",
						"query", query.ID, "model", clients[i].Name(), "error", err)
					continue
				}
				summary.Persisted++
			}

			if delay > 0 {
				r.sleep(ctx, delay)
			}
		}
		r.logger.Info("iteration complete",
			"iteration", iteration, "of", r.cfg.IterationsPerQuery,
			"completed", summary.Completed)
	}

	r.logger.Info("experiment finished",
		"completed", summary.Completed,
		"faulted", summary.Faulted,
		"persisted", summary.Persisted,
		"expected", summary.Expected,
	)
	return summary, nil
}

// buildClients constructs one client per enabled model, excluding models
// whose client cannot be built.
func (r *Runner) buildClients() []QueryClient {
	clients := make([]QueryClient, 0, len(r.cfg.Models))
	for _, m := range r.cfg.Models {
		if !m.IsEnabled() {
			r.logger.Info("model disabled, skipping", "model", m.Name)
			continue
		}
		client, err := r.factory(m)
		if err != nil {
			r.logger.Error("model client unavailable, excluding from run",
				"model", m.Name, "error", err)
			continue
		}
		clients = append(clients, client)
	}
	return clients
}

// queryOrder returns the query indices for one iteration, shuffled when the
// configuration asks for it.
func (r *Runner) queryOrder() []int {
	order := make([]int, len(r.cfg.Queries))
	for i := range order {
		order[i] = i
	}
	if r.cfg.Randomize() {
		r.shuffle(order)
	}
	return order
}

// queryAllModels runs one query against every client and returns the results
// in client order. Sequential by default; parallel_models fans the calls out
// concurrently while preserving result order for persistence.
func (r *Runner) queryAllModels(ctx context.Context, clients []QueryClient, query domain.Query, sessionID string) []*domain.CanonicalResult {
	results := make([]*domain.CanonicalResult, len(clients))

	if !r.cfg.ParallelModels {
		for i, client := range clients {
			results[i] = r.queryOne(ctx, client, query, sessionID)
		}
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, client := range clients {
		g.Go(func() error {
			results[i] = r.queryOne(gctx, client, query, sessionID)
			return nil
		})
	}
	g.Wait() // workers never return errors, failures land in the results
	return results
}

// queryOne performs a single timed operation. A panic inside a provider is
// confined to this operation and becomes an error result.
func (r *Runner) queryOne(ctx context.Context, client QueryClient, query domain.Query, sessionID string) (result *domain.CanonicalResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("provider panicked",
				"model", client.Name(), "query", query.ID, "panic", rec)
			result = domain.ErrorResult(fmt.Sprintf("panic: %v", rec),
				domain.Metadata{"session_id": sessionID, "panicked": true})
		}
	}()

	start := time.Now()
	result = client.Query(ctx, query.Text, sessionID)
	elapsed := time.Since(start)

	if result.Metadata == nil {
		result.Metadata = domain.Metadata{}
	}
	result.Metadata["response_time_ms"] = elapsed.Milliseconds()

	if result.IsError() {
		r.logger.Warn("query returned error result",
			"model", client.Name(), "query", query.ID,
			"elapsed_ms", elapsed.Milliseconds())
	} else {
		r.logger.Debug("query complete",
			"model", client.Name(), "query", query.ID,
			"sources", len(result.Sources),
			"elapsed_ms", elapsed.Milliseconds())
	}
	return result
}

// buildRecord assembles the persisted row for one completed operation.
func (r *Runner) buildRecord(experimentID, sessionID string, query domain.Query, iteration int, client QueryClient, res *domain.CanonicalResult) *domain.ExperimentResult {
	responseTime, _ := res.Metadata["response_time_ms"].(int64)
	return &domain.ExperimentResult{
		ID:             uuid.NewString(),
		ExperimentID:   experimentID,
		SessionID:      sessionID,
		QueryID:        query.ID,
		QueryText:      query.Text,
		QueryCategory:  query.Category,
		Iteration:      iteration,
		ModelName:      client.Name(),
		ModelType:      string(client.ModelType()),
		ResponseRaw:    res.ResponseRaw,
		Sources:        res.Sources,
		ChainOfThought: res.ChainOfThought,
		ResponseTimeMs: responseTime,
		ExtraMetadata:  query.Metadata.Merged(res.Metadata),
	}
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
