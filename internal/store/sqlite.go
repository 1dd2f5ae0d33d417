package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Cubanisto31/geoprobe/internal/domain"
)

// resultsSchema is applied on open. Sources and metadata are stored as JSON
// text; the timestamp defaults to the insert time so records carry the
// store-assigned write moment.
const resultsSchema = `
CREATE TABLE IF NOT EXISTS results (
    id                TEXT PRIMARY KEY,
    experiment_id     TEXT NOT NULL,
    session_id        TEXT NOT NULL,
    query_id          TEXT NOT NULL,
    query_text        TEXT NOT NULL,
    query_category    TEXT NOT NULL,
    iteration         INTEGER NOT NULL,
    model_name        TEXT NOT NULL,
    model_type        TEXT NOT NULL,
    response_raw      TEXT NOT NULL,
    sources_extracted TEXT NOT NULL,
    chain_of_thought  TEXT,
    response_time_ms  INTEGER NOT NULL,
    timestamp         DATETIME DEFAULT CURRENT_TIMESTAMP,
    extra_metadata    TEXT
);
CREATE INDEX IF NOT EXISTS idx_results_experiment ON results (experiment_id);
CREATE INDEX IF NOT EXISTS idx_results_model_query ON results (model_name, query_id);
`

// SQLiteStore persists results to a SQLite database file. Each Save runs in
// its own transaction so a crash loses at most the in-flight record.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and applies
// the schema. Parent directories are created as well.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// The driver is file-backed; a single connection avoids write contention.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(resultsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save inserts one result row. The result's Timestamp is ignored; the
// database assigns the write time.
func (s *SQLiteStore) Save(ctx context.Context, result *domain.ExperimentResult) error {
	sources, err := json.Marshal(result.Sources)
	if err != nil {
		return fmt.Errorf("encoding sources: %w", err)
	}
	metadata, err := json.Marshal(result.ExtraMetadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO results (
			id, experiment_id, session_id, query_id, query_text,
			query_category, iteration, model_name, model_type, response_raw,
			sources_extracted, chain_of_thought, response_time_ms, extra_metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.ExperimentID, result.SessionID, result.QueryID,
		result.QueryText, result.QueryCategory, result.Iteration,
		result.ModelName, result.ModelType, result.ResponseRaw,
		string(sources), result.ChainOfThought, result.ResponseTimeMs,
		string(metadata),
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("inserting result: %w", err)
	}
	return tx.Commit()
}

// CountByModel returns the number of persisted rows per model name for one
// experiment. Used for run summaries and tests.
func (s *SQLiteStore) CountByModel(ctx context.Context, experimentID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT model_name, COUNT(*) FROM results WHERE experiment_id = ? GROUP BY model_name`,
		experimentID)
	if err != nil {
		return nil, fmt.Errorf("counting results: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scanning count row: %w", err)
		}
		counts[name] = n
	}
	return counts, rows.Err()
}

// Results loads all rows of one experiment in insertion order. Intended for
// small test databases and post-run inspection, not streaming.
func (s *SQLiteStore) Results(ctx context.Context, experimentID string) ([]domain.ExperimentResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, experiment_id, session_id, query_id, query_text,
		       query_category, iteration, model_name, model_type, response_raw,
		       sources_extracted, chain_of_thought, response_time_ms,
		       timestamp, extra_metadata
		FROM results WHERE experiment_id = ? ORDER BY rowid`,
		experimentID)
	if err != nil {
		return nil, fmt.Errorf("loading results: %w", err)
	}
	defer rows.Close()

	var results []domain.ExperimentResult
	for rows.Next() {
		var r domain.ExperimentResult
		var sources, metadata string
		var ts time.Time
		if err := rows.Scan(
			&r.ID, &r.ExperimentID, &r.SessionID, &r.QueryID, &r.QueryText,
			&r.QueryCategory, &r.Iteration, &r.ModelName, &r.ModelType,
			&r.ResponseRaw, &sources, &r.ChainOfThought, &r.ResponseTimeMs,
			&ts, &metadata,
		); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		r.Timestamp = ts
		if err := json.Unmarshal([]byte(sources), &r.Sources); err != nil {
			return nil, fmt.Errorf("decoding sources for %s: %w", r.ID, err)
		}
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &r.ExtraMetadata); err != nil {
				return nil, fmt.Errorf("decoding metadata for %s: %w", r.ID, err)
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
