package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Cubanisto31/geoprobe/internal/domain"
)

// googleSearchDefaultResults is the ranked-result count requested when the
// configuration leaves num_results unset. The API caps a page at 10.
const googleSearchDefaultResults = 10

func init() {
	Register("google_search", newGoogleSearchProvider)
}

// googleSearchProvider implements CoreProvider for the Google Custom Search
// JSON API. The response is already source-shaped: each ranked item becomes
// a search_result Source carrying its 1-based rank, so no text-pattern
// extraction runs.
type googleSearchProvider struct {
	service         *customsearch.Service
	engineID        string
	numResults      int64
	errorClassifier *ErrorClassifier
}

func newGoogleSearchProvider(cfg domain.ModelConfig, creds Credentials) (CoreProvider, error) {
	service, err := customsearch.NewService(context.Background(), option.WithAPIKey(creds.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating custom search service: %w", err)
	}

	numResults := int64(cfg.Parameters.NumResults)
	if numResults <= 0 {
		numResults = googleSearchDefaultResults
	}

	return &googleSearchProvider{
		service:         service,
		engineID:        creds.SearchEngineID,
		numResults:      numResults,
		errorClassifier: &ErrorClassifier{Provider: "google_search"},
	}, nil
}

func (p *googleSearchProvider) Name() string  { return "google_search" }
func (p *googleSearchProvider) Model() string { return "customsearch" }

// DoQuery runs one search and normalizes the ranked items. The raw response
// JSON stands in for answer text so persisted rows stay self-describing.
func (p *googleSearchProvider) DoQuery(ctx context.Context, text, sessionID string) (*domain.CanonicalResult, error) {
	resp, err := p.service.Cse.List().
		Q(text).
		Cx(p.engineID).
		Num(p.numResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, p.handleError(err)
	}

	sources := make([]domain.Source, 0, len(resp.Items))
	for i, item := range resp.Items {
		sources = append(sources, domain.Source{
			Type:     domain.SourceSearchResult,
			Position: i + 1,
			URL:      item.Link,
			Title:    item.Title,
			Snippet:  item.Snippet,
			Method:   "google_search_api",
		})
	}

	raw, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		raw = []byte("{}")
	}

	meta := domain.Metadata{
		"provider":   p.Name(),
		"session_id": sessionID,
	}
	if resp.SearchInformation != nil {
		meta["search_time"] = resp.SearchInformation.SearchTime
		meta["total_results"] = resp.SearchInformation.TotalResults
	}

	return &domain.CanonicalResult{
		ResponseRaw:    string(raw),
		Sources:        sources,
		ChainOfThought: "",
		Metadata:       meta,
	}, nil
}

func (p *googleSearchProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return p.errorClassifier.ClassifyHTTPError(apiErr.Code, apiErr.Message, err)
	}
	return NewProviderError(p.Name(), ErrorTypeNetwork, 0, "request failed", err)
}
