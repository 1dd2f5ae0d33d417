package domain

// ModelType distinguishes chat-completion style providers from
// search-engine style providers.
type ModelType string

const (
	// ModelTypeLLM marks a chat-completion provider.
	ModelTypeLLM ModelType = "llm"
	// ModelTypeSearchEngine marks a ranked-result search provider.
	ModelTypeSearchEngine ModelType = "search_engine"
)

// ModelParameters is the provider parameter bag. Every field maps to a
// field of the outbound provider request without renaming; providers ignore
// parameters they do not support.
type ModelParameters struct {
	// ModelName selects the provider-side model id. Empty selects the
	// provider default.
	ModelName string `yaml:"model_name"`
	// Temperature controls sampling randomness. Nil uses the provider default.
	Temperature *float64 `yaml:"temperature" validate:"omitempty,gte=0,lte=2"`
	// MaxTokens caps the generated response length.
	MaxTokens int `yaml:"max_tokens" validate:"omitempty,min=1"`
	// NumResults is the ranked-result count requested from search providers.
	NumResults int `yaml:"num_results" validate:"omitempty,min=1,max=10"`
	// EnableSearch turns on the server-side web-search tool for providers
	// that gate it behind a flag (Anthropic web search, Gemini grounding).
	EnableSearch bool `yaml:"enable_search"`
	// SearchRecencyFilter restricts web results by age (Perplexity).
	SearchRecencyFilter string `yaml:"search_recency_filter"`
	// SearchDomainFilter restricts web results to the listed domains (Perplexity).
	SearchDomainFilter []string `yaml:"search_domain_filter"`
	// Academic switches Perplexity search into academic mode.
	Academic bool `yaml:"academic"`
	// RequestsPerSecond enables client-side request pacing when > 0.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"omitempty,gt=0"`
}

// ModelConfig describes one provider endpoint for the run. Loaded once from
// configuration and immutable afterwards.
type ModelConfig struct {
	// Name is the unique label results are tagged with (e.g. "GPT-4o").
	Name string `yaml:"name" validate:"required"`
	// Type is either "llm" or "search_engine".
	Type ModelType `yaml:"type" validate:"required,oneof=llm search_engine"`
	// Client selects the registered client implementation (e.g. "openai",
	// "perplexity", "google_search").
	Client string `yaml:"client" validate:"required"`
	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled"`
	// APIKeyEnvVar names the environment variable holding the credential.
	APIKeyEnvVar string `yaml:"api_key_env_var" validate:"required"`
	// SearchEngineIDEnvVar names the variable holding the search engine id
	// for Custom Search style providers.
	SearchEngineIDEnvVar string `yaml:"search_engine_id_env_var"`
	// Parameters carries the provider parameter bag.
	Parameters ModelParameters `yaml:"parameters"`
}

// IsEnabled reports whether the model participates in the run. An omitted
// enabled flag counts as enabled.
func (m *ModelConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}
