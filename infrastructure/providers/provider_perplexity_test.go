package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cubanisto31/geoprobe/internal/domain"
)

// newTestPerplexity builds a provider pointed at a local test server.
func newTestPerplexity(serverURL string, params domain.ModelParameters) *perplexityProvider {
	return &perplexityProvider{
		httpClient:      &http.Client{Timeout: 5 * time.Second},
		baseURL:         serverURL,
		apiKey:          "test-key",
		params:          params,
		model:           PerplexityDefaultModel,
		errorClassifier: &ErrorClassifier{Provider: "perplexity"},
	}
}

func TestPerplexityProvider_Success(t *testing.T) {
	// Given a server returning content, search results, and usage
	var captured perplexityRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"content": "Answer citing [1]."}}],
			"citations": ["https://cited.example.com"],
			"search_results": [
				{"url": "https://cited.example.com", "title": "Cited Page", "snippet": "snip", "date": "2025-06-01"}
			],
			"usage": {"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30,
				"cost": {"total_cost": 0.004}}
		}`))
	}))
	defer server.Close()

	provider := newTestPerplexity(server.URL, domain.ModelParameters{Academic: true})

	// When querying
	result, err := provider.DoQuery(context.Background(), "what is geo", "sess-1")

	// Then the request carried the search options
	require.NoError(t, err)
	assert.True(t, captured.ReturnCitations)
	require.NotNil(t, captured.WebSearchOptions)
	assert.Equal(t, "high", captured.WebSearchOptions.SearchContextSize)
	assert.Equal(t, "academic", captured.WebSearchOptions.SearchMode)

	// And the result layers native citations under the text extractor
	assert.Equal(t, "Answer citing [1].", result.ResponseRaw)
	require.NotEmpty(t, result.Sources)
	assert.Equal(t, domain.SourceNativeCitation, result.Sources[0].Type)
	assert.Equal(t, "https://cited.example.com", result.Sources[0].URL)
	assert.Equal(t, "Cited Page", result.Sources[0].Title)
	assert.Equal(t, "2025-06-01", result.Sources[0].PublishedDate)

	// And the [1] marker maps back to the native citation
	var mapped bool
	for _, s := range result.Sources {
		if s.Type == domain.SourceNumberedCitationMapped && s.CitationNumber == 1 {
			mapped = true
		}
	}
	assert.True(t, mapped, "numbered marker should map to the native citation")

	usage, ok := result.Metadata["usage"].(domain.Metadata)
	require.True(t, ok)
	assert.Equal(t, 30, usage["total_tokens"])
}

func TestPerplexityProvider_CitationsFallback(t *testing.T) {
	// Given a response with bare citations and no search_results
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"choices": [{"message": {"content": "Answer."}}],
			"citations": ["https://a.example.com", "https://b.example.com"]
		}`))
	}))
	defer server.Close()

	provider := newTestPerplexity(server.URL, domain.ModelParameters{})

	// When querying
	result, err := provider.DoQuery(context.Background(), "q", "s")

	// Then the bare URLs become native citations
	require.NoError(t, err)
	require.Len(t, result.Sources, 2)
	assert.Equal(t, "perplexity_api_citations", result.Sources[0].Method)
}

func TestPerplexityProvider_RateLimitClassified(t *testing.T) {
	// Given a server returning 429
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider := newTestPerplexity(server.URL, domain.ModelParameters{})

	// When querying
	_, err := provider.DoQuery(context.Background(), "q", "s")

	// Then the failure is a retryable rate-limit ProviderError
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrorTypeRateLimit, perr.Type)
	assert.True(t, perr.IsRetryable())
}

func TestPerplexityProvider_AuthFailureTerminal(t *testing.T) {
	// Given a server rejecting the credential
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	provider := newTestPerplexity(server.URL, domain.ModelParameters{})

	// When querying
	_, err := provider.DoQuery(context.Background(), "q", "s")

	// Then the failure is terminal
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrorTypeAuthentication, perr.Type)
	assert.False(t, perr.IsRetryable())
}

func TestPerplexityProvider_EmptyChoices(t *testing.T) {
	// Given a well-formed response with no choices
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	provider := newTestPerplexity(server.URL, domain.ModelParameters{})

	// When querying
	_, err := provider.DoQuery(context.Background(), "q", "s")

	// Then the provider reports the malformed response
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no response choices")
}
