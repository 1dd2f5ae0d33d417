package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cubanisto31/geoprobe/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "results", "test.db"))
	require.NoError(t, err, "store should open and create parent directories")
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleResult(experimentID, queryID, modelName string, iteration int) *domain.ExperimentResult {
	return &domain.ExperimentResult{
		ID:            experimentID + "-" + queryID + "-" + modelName + "-1",
		ExperimentID:  experimentID,
		SessionID:     "sess-1",
		QueryID:       queryID,
		QueryText:     "what is geo",
		QueryCategory: "definition",
		Iteration:     iteration,
		ModelName:     modelName,
		ModelType:     "llm",
		ResponseRaw:   "Generative engine optimization is...",
		Sources: []domain.Source{
			{Type: domain.SourceMarkdownLink, URL: "https://example.com", Text: "Example", Position: 0, Method: "markdown_pattern"},
		},
		ChainOfThought: "step one",
		ResponseTimeMs: 1234,
		ExtraMetadata:  domain.Metadata{"origin": "inline"},
	}
}

func TestSQLiteStore_SaveAndLoadRoundTrip(t *testing.T) {
	// Given a fresh store and one record
	st := newTestStore(t)
	ctx := context.Background()
	in := sampleResult("exp-1", "q1", "GPT-4o", 1)

	// When saving and loading
	require.NoError(t, st.Save(ctx, in))
	results, err := st.Results(ctx, "exp-1")

	// Then the record round-trips including JSON columns
	require.NoError(t, err)
	require.Len(t, results, 1)
	out := results[0]
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.QueryID, out.QueryID)
	assert.Equal(t, in.QueryText, out.QueryText)
	assert.Equal(t, in.ModelName, out.ModelName)
	assert.Equal(t, in.ResponseRaw, out.ResponseRaw)
	assert.Equal(t, in.ChainOfThought, out.ChainOfThought)
	assert.Equal(t, in.ResponseTimeMs, out.ResponseTimeMs)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, in.Sources[0], out.Sources[0])
	assert.Equal(t, "inline", out.ExtraMetadata["origin"])
	assert.WithinDuration(t, time.Now(), out.Timestamp, time.Minute,
		"timestamp should be assigned by the store")
}

func TestSQLiteStore_ErrorResultRow(t *testing.T) {
	// Given an error-sentinel record
	st := newTestStore(t)
	ctx := context.Background()
	in := sampleResult("exp-1", "q1", "DOWN", 1)
	in.ResponseRaw = domain.ErrorMarker + "upstream down"
	in.Sources = []domain.Source{}
	in.ChainOfThought = ""

	// When saving and loading
	require.NoError(t, st.Save(ctx, in))
	results, err := st.Results(ctx, "exp-1")

	// Then the sentinel persists like any other record
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.ErrorMarker+"upstream down", results[0].ResponseRaw)
	assert.Empty(t, results[0].Sources)
}

func TestSQLiteStore_DuplicateIDRejected(t *testing.T) {
	// Given a saved record
	st := newTestStore(t)
	ctx := context.Background()
	in := sampleResult("exp-1", "q1", "GPT-4o", 1)
	require.NoError(t, st.Save(ctx, in))

	// When saving the same id again
	err := st.Save(ctx, in)

	// Then the primary key rejects the duplicate
	require.Error(t, err)
}

func TestSQLiteStore_CountByModel(t *testing.T) {
	// Given records across two models and a foreign experiment
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.Save(ctx, sampleResult("exp-1", "q1", "A", 1)))
	require.NoError(t, st.Save(ctx, sampleResult("exp-1", "q2", "A", 1)))
	require.NoError(t, st.Save(ctx, sampleResult("exp-1", "q1", "B", 1)))
	require.NoError(t, st.Save(ctx, sampleResult("exp-2", "q1", "A", 1)))

	// When counting one experiment
	counts, err := st.CountByModel(ctx, "exp-1")

	// Then counts are scoped to the experiment
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 2, "B": 1}, counts)
}

func TestSQLiteStore_InsertionOrderPreserved(t *testing.T) {
	// Given three records saved in sequence
	st := newTestStore(t)
	ctx := context.Background()
	for i, q := range []string{"q1", "q2", "q3"} {
		require.NoError(t, st.Save(ctx, sampleResult("exp-1", q, "A", i+1)))
	}

	// When loading
	results, err := st.Results(ctx, "exp-1")

	// Then records come back in save order
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{results[0].Iteration, results[1].Iteration, results[2].Iteration})
}

func TestMemoryStore_SaveAndInjectedFailure(t *testing.T) {
	// Given an in-memory store
	mem := NewMemoryStore()
	ctx := context.Background()

	// When saving normally
	require.NoError(t, mem.Save(ctx, sampleResult("exp-1", "q1", "A", 1)))
	assert.Len(t, mem.Results(), 1)

	// And when a failure is injected
	mem.SaveErr = assert.AnError
	err := mem.Save(ctx, sampleResult("exp-1", "q2", "A", 1))

	// Then the save fails without recording
	require.Error(t, err)
	assert.Len(t, mem.Results(), 1)
}
