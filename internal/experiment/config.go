// Package experiment contains the experiment configuration and the runner
// that drives the iteration × query × model matrix.
package experiment

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Cubanisto31/geoprobe/internal/domain"
)

// Defaults applied to omitted configuration fields.
const (
	DefaultDurationDays       = 14
	DefaultIterationsPerQuery = 30
	DefaultDelaySeconds       = 5
	DefaultDatabasePath       = "experiment_results/experiment_data.db"
)

// Config is the resolved experiment configuration. It is loaded once and
// treated as read-only for the duration of the run.
type Config struct {
	// ExperimentName tags every persisted result.
	ExperimentName string `yaml:"experiment_name" validate:"required"`
	// DurationDays is informational metadata about the study design.
	DurationDays int `yaml:"duration_days" validate:"min=1"`
	// IterationsPerQuery is the number of full passes over the query set.
	IterationsPerQuery int `yaml:"iterations_per_query" validate:"min=1"`
	// DelayBetweenIterationsSeconds is slept after each query's per-model
	// pass before moving to the next query. Defaults to 5 when omitted; an
	// explicit 0 disables the delay.
	DelayBetweenIterationsSeconds *int `yaml:"delay_between_iterations_seconds" validate:"omitempty,min=0"`
	// RandomizeQueryOrder shuffles queries within each iteration. Defaults
	// to true when omitted.
	RandomizeQueryOrder *bool `yaml:"randomize_query_order"`
	// UseDifferentSessions is parsed for config compatibility and echoed
	// into run metadata; the engine always uses one session per run.
	UseDifferentSessions *bool `yaml:"use_different_sessions"`
	// ParallelModels fans the per-query model calls out concurrently.
	// Persisted ordering and delay semantics are unchanged.
	ParallelModels bool `yaml:"parallel_models"`
	// DatabasePath locates the SQLite result store.
	DatabasePath string `yaml:"database_path"`
	// QueryFile optionally loads queries from a CSV or XLSX file instead of
	// the inline list.
	QueryFile string `yaml:"query_file"`

	Models  []domain.ModelConfig `yaml:"models" validate:"required,min=1,dive"`
	Queries []domain.Query       `yaml:"queries" validate:"dive"`
}

// Randomize reports whether query order is shuffled per iteration.
func (c *Config) Randomize() bool {
	return c.RandomizeQueryOrder == nil || *c.RandomizeQueryOrder
}

// DelaySeconds returns the inter-step delay, applying the default when the
// field was omitted.
func (c *Config) DelaySeconds() int {
	if c.DelayBetweenIterationsSeconds == nil {
		return DefaultDelaySeconds
	}
	return *c.DelayBetweenIterationsSeconds
}

// Load reads, defaults, and validates a YAML configuration file, resolving
// the external query file when one is configured. Any failure here is fatal
// to the run; no provider call happens before the configuration is sound.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from raw YAML bytes. Split from Load so tests can
// feed documents directly.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()

	if cfg.QueryFile != "" {
		queries, err := LoadQueryFile(cfg.QueryFile)
		if err != nil {
			return nil, fmt.Errorf("loading query file: %w", err)
		}
		cfg.Queries = queries
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if len(cfg.Queries) == 0 {
		return nil, fmt.Errorf("no queries configured: provide queries inline or via query_file")
	}
	if err := checkUniqueness(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DurationDays == 0 {
		c.DurationDays = DefaultDurationDays
	}
	if c.IterationsPerQuery == 0 {
		c.IterationsPerQuery = DefaultIterationsPerQuery
	}
	if c.DatabasePath == "" {
		c.DatabasePath = DefaultDatabasePath
	}
}

// checkUniqueness rejects duplicate model names and query ids; both are
// used as keys in persisted results.
func checkUniqueness(cfg *Config) error {
	names := make(map[string]bool, len(cfg.Models))
	for _, m := range cfg.Models {
		if names[m.Name] {
			return fmt.Errorf("duplicate model name %q", m.Name)
		}
		names[m.Name] = true
	}
	ids := make(map[string]bool, len(cfg.Queries))
	for _, q := range cfg.Queries {
		if ids[q.ID] {
			return fmt.Errorf("duplicate query id %q", q.ID)
		}
		ids[q.ID] = true
	}
	return nil
}
