// Package domain defines the core value types of the experiment engine:
// queries, extracted sources, canonical provider results, and the persisted
// experiment record. Types in this package are plain values with no
// infrastructure dependencies so that providers, the runner, and stores can
// share them freely.
package domain

import (
	"strings"
	"time"
)

// ErrorMarker prefixes the raw response of a result that represents a
// handled provider failure. The runner persists such results instead of
// dropping the attempt, so degraded providers still produce one row per
// operation.
const ErrorMarker = "ERROR: "

// SourceType discriminates how a Source was obtained from a response.
type SourceType string

const (
	// SourceMarkdownLink is a `[label](url)` link found in the response text.
	SourceMarkdownLink SourceType = "markdown_link"
	// SourceRawURL is a bare URL found in the response text.
	SourceRawURL SourceType = "raw_url"
	// SourceNumberedCitation is a `[n]` marker with no matching native citation.
	SourceNumberedCitation SourceType = "numbered_citation"
	// SourceNumberedCitationMapped is a `[n]` marker resolved against the
	// provider's native citation list.
	SourceNumberedCitationMapped SourceType = "numbered_citation_mapped"
	// SourceExplicitMention is a textual attribution such as "Source: ..."
	// or "According to ...".
	SourceExplicitMention SourceType = "explicit_mention"
	// SourceNativeCitation is a structured citation returned by the provider API.
	SourceNativeCitation SourceType = "native_citation"
	// SourceGroundingChunk is a web-grounding chunk from a grounded chat API.
	SourceGroundingChunk SourceType = "grounding_chunk"
	// SourceSearchResult is one ranked item of a search-engine response.
	SourceSearchResult SourceType = "search_result"
)

// Source is a single citation or reference extracted from a provider
// response. Only the fields relevant to its Type are populated; Position is
// the order of appearance in the emitted list and Method records the
// extraction layer that produced it.
type Source struct {
	Type           SourceType `json:"type"`
	URL            string     `json:"url,omitempty"`
	Title          string     `json:"title,omitempty"`
	Snippet        string     `json:"snippet,omitempty"`
	Text           string     `json:"text,omitempty"`
	CitationNumber int        `json:"citation_number,omitempty"`
	Position       int        `json:"position"`
	Method         string     `json:"extraction_method"`
	Score          float64    `json:"score,omitempty"`
	PublishedDate  string     `json:"published_date,omitempty"`
}

// Metadata is an open key-value bag for query- and provider-specific
// details (token usage, echoed session ids, provider flags). Entries are
// deployment-specific, so no closed schema is imposed.
type Metadata map[string]any

// Merged returns a new map containing m overlaid with extra. Neither input
// is mutated; keys in extra win.
func (m Metadata) Merged(extra Metadata) Metadata {
	out := make(Metadata, len(m)+len(extra))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// CanonicalResult is the uniform shape every provider client returns from a
// query. It is always fully populated; a handled failure is represented by
// an error-sentinel ResponseRaw rather than a partial result.
type CanonicalResult struct {
	ResponseRaw    string   `json:"response_raw"`
	Sources        []Source `json:"sources_extracted"`
	ChainOfThought string   `json:"chain_of_thought"`
	Metadata       Metadata `json:"metadata"`
}

// IsError reports whether the result represents a handled failure.
func (r *CanonicalResult) IsError() bool {
	return strings.HasPrefix(r.ResponseRaw, ErrorMarker)
}

// ErrorResult builds an error-sentinel CanonicalResult for a handled
// failure. The message is mirrored into the metadata under "error".
func ErrorResult(message string, meta Metadata) *CanonicalResult {
	if meta == nil {
		meta = Metadata{}
	}
	meta["error"] = message
	return &CanonicalResult{
		ResponseRaw:    ErrorMarker + message,
		Sources:        []Source{},
		ChainOfThought: "",
		Metadata:       meta,
	}
}

// Query is one immutable question posed to every model. Queries are created
// at configuration load time and shared read-only across iterations.
type Query struct {
	ID       string   `yaml:"id" json:"id" validate:"required"`
	Text     string   `yaml:"text" json:"text" validate:"required"`
	Category string   `yaml:"category" json:"category" validate:"required"`
	Metadata Metadata `yaml:"metadata" json:"metadata"`
}

// ExperimentResult is the atomic unit of persistence: one completed query
// attempt against one model in one iteration. Records are immutable once
// written; Timestamp is assigned by the store.
type ExperimentResult struct {
	ID             string    `json:"id"`
	ExperimentID   string    `json:"experiment_id"`
	SessionID      string    `json:"session_id"`
	QueryID        string    `json:"query_id"`
	QueryText      string    `json:"query_text"`
	QueryCategory  string    `json:"query_category"`
	Iteration      int       `json:"iteration"`
	ModelName      string    `json:"model_name"`
	ModelType      string    `json:"model_type"`
	ResponseRaw    string    `json:"response_raw"`
	Sources        []Source  `json:"sources_extracted"`
	ChainOfThought string    `json:"chain_of_thought"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	Timestamp      time.Time `json:"timestamp"`
	ExtraMetadata  Metadata  `json:"extra_metadata"`
}
