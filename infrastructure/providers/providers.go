// Package providers implements the provider clients of the experiment
// engine behind a single capability contract: submit a query, get back a
// canonical result with extracted sources.
//
// Architecture mirrors a middleware-chain design: each provider implements
// the minimal CoreProvider interface, cross-cutting concerns (rate
// limiting, metrics, tracing) wrap it as middleware, and Client applies the
// retry policy and converts any surviving failure into an error-sentinel
// result. A factory registry maps the client identifier declared in
// configuration to a constructor; the provider set is closed at build time.
//
// A client whose credential is missing still constructs successfully and
// yields only error-sentinel results, so one unconfigured provider never
// blocks the rest of the run.
package providers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/Cubanisto31/geoprobe/internal/domain"
)

// CoreProvider is the minimal interface a provider implementation must
// satisfy. DoQuery performs one network call and returns a fully populated
// canonical result or a classifiable error; it holds no per-call state, the
// session id is only echoed into result metadata.
type CoreProvider interface {
	DoQuery(ctx context.Context, text, sessionID string) (*domain.CanonicalResult, error)

	// Name returns the provider identifier used in errors and metrics.
	Name() string

	// Model returns the provider-side model id in use.
	Model() string
}

// Middleware wraps a CoreProvider to add cross-cutting behavior. Middleware
// composes; the first entry in a chain becomes the outermost wrapper.
type Middleware func(CoreProvider) CoreProvider

// Credentials holds the secrets resolved from the environment for one model.
type Credentials struct {
	APIKey         string
	SearchEngineID string
}

// Factory builds a CoreProvider from a model configuration and resolved
// credentials. Factories are only called with a non-empty API key.
type Factory func(cfg domain.ModelConfig, creds Credentials) (CoreProvider, error)

var factories = map[string]Factory{}

// Register adds a provider factory under a client identifier. Called from
// provider init functions; later registrations replace earlier ones.
func Register(clientID string, factory Factory) {
	factories[clientID] = factory
}

// RegisteredClients returns the sorted identifiers of all registered
// provider factories.
func RegisteredClients() []string {
	ids := make([]string, 0, len(factories))
	for id := range factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Options configures client construction beyond the model configuration.
type Options struct {
	// Retry overrides the default retry policy.
	Retry *RetryConfig
	// Middleware is applied around the provider core in order.
	Middleware []Middleware
	// Logger receives construction warnings. Defaults to slog.Default.
	Logger *slog.Logger
	// Timeout bounds each individual attempt. Zero means no per-attempt bound.
	Timeout time.Duration
}

// Client binds one provider core to the retry policy and the error-sentinel
// contract. Query never surfaces a provider failure as a Go error: handled
// failures become sentinel results the runner can persist.
type Client struct {
	name      string
	modelType domain.ModelType
	core      CoreProvider
	retry     RetryConfig
	timeout   time.Duration
	degraded  string // non-empty when the client can only produce sentinels
}

// NewClient constructs the client for one configured model. An unknown
// client identifier or a failing provider constructor returns an error (the
// runner excludes the model); a missing credential degrades the client
// instead, with a single warning.
func NewClient(cfg domain.ModelConfig, opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	factory, ok := factories[cfg.Client]
	if !ok {
		return nil, fmt.Errorf("unknown client %q for model %q", cfg.Client, cfg.Name)
	}

	retryCfg := DefaultRetryConfig()
	if opts.Retry != nil {
		retryCfg = *opts.Retry
	}

	client := &Client{
		name:      cfg.Name,
		modelType: cfg.Type,
		retry:     retryCfg,
		timeout:   opts.Timeout,
	}

	creds := Credentials{APIKey: os.Getenv(cfg.APIKeyEnvVar)}
	if cfg.SearchEngineIDEnvVar != "" {
		creds.SearchEngineID = os.Getenv(cfg.SearchEngineIDEnvVar)
	}

	switch {
	case creds.APIKey == "":
		client.degraded = fmt.Sprintf("%s not set for model %q", cfg.APIKeyEnvVar, cfg.Name)
		logger.Warn("api key missing, client will return error results",
			"model", cfg.Name, "env_var", cfg.APIKeyEnvVar)
	case cfg.SearchEngineIDEnvVar != "" && creds.SearchEngineID == "":
		client.degraded = fmt.Sprintf("%s not set for model %q", cfg.SearchEngineIDEnvVar, cfg.Name)
		logger.Warn("search engine id missing, client will return error results",
			"model", cfg.Name, "env_var", cfg.SearchEngineIDEnvVar)
	default:
		core, err := factory(cfg, creds)
		if err != nil {
			return nil, fmt.Errorf("constructing %q client for model %q: %w", cfg.Client, cfg.Name, err)
		}
		// Apply middleware in reverse so the first entry is outermost.
		for i := len(opts.Middleware) - 1; i >= 0; i-- {
			core = opts.Middleware[i](core)
		}
		client.core = core
	}

	return client, nil
}

// Name returns the configured model name the client is bound to.
func (c *Client) Name() string { return c.name }

// ModelType returns the configured logical type of the model.
func (c *Client) ModelType() domain.ModelType { return c.modelType }

// Query submits the text to the provider under the retry policy and always
// returns a canonical result. Terminal failures and exhausted retries
// surface as error-sentinel results, never as errors.
func (c *Client) Query(ctx context.Context, text, sessionID string) *domain.CanonicalResult {
	if c.degraded != "" {
		return domain.ErrorResult(c.degraded, domain.Metadata{"session_id": sessionID})
	}

	result, err := retry(ctx, c.retry, func(ctx context.Context) (*domain.CanonicalResult, error) {
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		return c.core.DoQuery(ctx, text, sessionID)
	})
	if err != nil {
		return domain.ErrorResult(err.Error(), domain.Metadata{
			"session_id": sessionID,
			"provider":   c.core.Name(),
			"model":      c.core.Model(),
		})
	}
	return result
}
