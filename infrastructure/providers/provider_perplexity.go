package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/Cubanisto31/geoprobe/internal/domain"
	"github.com/Cubanisto31/geoprobe/internal/extract"
)

const (
	// PerplexityDefaultModel is used when the parameter bag names no model.
	PerplexityDefaultModel = "sonar-pro"
	// PerplexityBaseURL is the chat completions endpoint.
	PerplexityBaseURL = "https://api.perplexity.ai"

	perplexityRequestTimeout = 60 * time.Second
)

func init() {
	Register("perplexity", newPerplexityProvider)
	// Alias kept for configurations written against the extended client name.
	Register("perplexity_search", newPerplexityProvider)
}

// perplexityProvider implements CoreProvider against the Perplexity wire
// protocol. The response is OpenAI-shaped JSON plus Perplexity extensions
// (citations, search_results, usage cost block) that the OpenAI SDK structs
// cannot carry, so this provider speaks the protocol directly.
type perplexityProvider struct {
	httpClient      *http.Client
	baseURL         string
	apiKey          string
	params          domain.ModelParameters
	model           string
	errorClassifier *ErrorClassifier
}

func newPerplexityProvider(cfg domain.ModelConfig, creds Credentials) (CoreProvider, error) {
	model := cfg.Parameters.ModelName
	if model == "" {
		model = PerplexityDefaultModel
	}
	return &perplexityProvider{
		httpClient:      &http.Client{Timeout: perplexityRequestTimeout},
		baseURL:         PerplexityBaseURL,
		apiKey:          creds.APIKey,
		params:          cfg.Parameters,
		model:           model,
		errorClassifier: &ErrorClassifier{Provider: "perplexity"},
	}, nil
}

func (p *perplexityProvider) Name() string  { return "perplexity" }
func (p *perplexityProvider) Model() string { return p.model }

// perplexityRequest is the outbound chat completions payload.
type perplexityRequest struct {
	Model               string                  `json:"model"`
	Messages            []perplexityMessage     `json:"messages"`
	Temperature         *float64                `json:"temperature,omitempty"`
	MaxTokens           int                     `json:"max_tokens,omitempty"`
	ReturnCitations     bool                    `json:"return_citations"`
	SearchDomainFilter  []string                `json:"search_domain_filter,omitempty"`
	SearchRecencyFilter string                  `json:"search_recency_filter,omitempty"`
	WebSearchOptions    *perplexitySearchOption `json:"web_search_options,omitempty"`
}

type perplexityMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type perplexitySearchOption struct {
	SearchContextSize string `json:"search_context_size,omitempty"`
	SearchMode        string `json:"search_mode,omitempty"`
}

// perplexityResponse covers the OpenAI-compatible core plus Perplexity's
// citation extensions.
type perplexityResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations     []string `json:"citations"`
	SearchResults []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
	} `json:"search_results"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
		Cost             struct {
			InputTokensCost  float64 `json:"input_tokens_cost"`
			OutputTokensCost float64 `json:"output_tokens_cost"`
			RequestCost      float64 `json:"request_cost"`
			TotalCost        float64 `json:"total_cost"`
		} `json:"cost"`
	} `json:"usage"`
}

// DoQuery sends one chat completion request and normalizes the response,
// layering the text extractor over the native citation list.
func (p *perplexityProvider) DoQuery(ctx context.Context, text, sessionID string) (*domain.CanonicalResult, error) {
	reqBody := perplexityRequest{
		Model:               p.model,
		Messages:            []perplexityMessage{{Role: "user", Content: text}},
		Temperature:         p.params.Temperature,
		MaxTokens:           p.params.MaxTokens,
		ReturnCitations:     true,
		SearchDomainFilter:  p.params.SearchDomainFilter,
		SearchRecencyFilter: p.params.SearchRecencyFilter,
		WebSearchOptions:    &perplexitySearchOption{SearchContextSize: "high"},
	}
	if p.params.Academic {
		reqBody.WebSearchOptions.SearchMode = "academic"
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, NewProviderError(p.Name(), ErrorTypeBadRequest, 0, "encoding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, NewProviderError(p.Name(), ErrorTypeBadRequest, 0, "building request", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, p.errorClassifier.ClassifyContextError(ctx.Err())
		}
		return nil, NewProviderError(p.Name(), ErrorTypeNetwork, 0, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewProviderError(p.Name(), ErrorTypeNetwork, 0, "reading response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, p.errorClassifier.ClassifyHTTPError(resp.StatusCode, string(body), nil)
	}

	var parsed perplexityResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, NewProviderError(p.Name(), ErrorTypeUnknown, 0, "decoding response", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, NewProviderError(p.Name(), ErrorTypeUnknown, 0, "no response choices returned", nil)
	}

	content := parsed.Choices[0].Message.Content
	native := p.nativeSources(&parsed)

	return &domain.CanonicalResult{
		ResponseRaw:    content,
		Sources:        extract.Sources(content, native),
		ChainOfThought: extract.ChainOfThought(content),
		Metadata: domain.Metadata{
			"provider":   p.Name(),
			"model":      p.model,
			"session_id": sessionID,
			"citations":  parsed.Citations,
			"usage": domain.Metadata{
				"prompt_tokens":     parsed.Usage.PromptTokens,
				"completion_tokens": parsed.Usage.CompletionTokens,
				"total_tokens":      parsed.Usage.TotalTokens,
				"total_cost":        parsed.Usage.Cost.TotalCost,
			},
		},
	}, nil
}

// nativeSources prefers the structured search_results list and falls back
// to the bare citation URLs, skipping URLs already covered by a result.
func (p *perplexityProvider) nativeSources(resp *perplexityResponse) []domain.Source {
	var native []domain.Source
	seen := make(map[string]bool)

	for _, item := range resp.SearchResults {
		if item.URL == "" {
			continue
		}
		seen[item.URL] = true
		native = append(native, domain.Source{
			Type:          domain.SourceNativeCitation,
			URL:           item.URL,
			Title:         item.Title,
			Snippet:       item.Snippet,
			PublishedDate: item.Date,
			Method:        "perplexity_search_results",
		})
	}
	for _, url := range resp.Citations {
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		native = append(native, domain.Source{
			Type:   domain.SourceNativeCitation,
			URL:    url,
			Method: "perplexity_api_citations",
		})
	}
	return native
}
