package providers

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/Cubanisto31/geoprobe/internal/domain"
	"github.com/Cubanisto31/geoprobe/internal/extract"
)

// GoogleDefaultModel is used when the parameter bag names no model.
const GoogleDefaultModel = "gemini-2.0-flash"

func init() {
	Register("google", func(cfg domain.ModelConfig, creds Credentials) (CoreProvider, error) {
		return newGoogleProvider(cfg, creds, false)
	})
	Register("google_search_grounding", func(cfg domain.ModelConfig, creds Credentials) (CoreProvider, error) {
		return newGoogleProvider(cfg, creds, true)
	})
}

// googleProvider implements CoreProvider for the Gemini API. The grounded
// variant enables the GoogleSearch tool and converts grounding chunks into
// native citations; the plain variant returns an intentionally empty source
// list since the model has no retrieval capability.
type googleProvider struct {
	client          *genai.Client
	params          domain.ModelParameters
	model           string
	grounded        bool
	errorClassifier *ErrorClassifier
}

func newGoogleProvider(cfg domain.ModelConfig, creds Credentials, grounded bool) (CoreProvider, error) {
	model := cfg.Parameters.ModelName
	if model == "" {
		model = GoogleDefaultModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  creds.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &googleProvider{
		client:          client,
		params:          cfg.Parameters,
		model:           model,
		grounded:        grounded,
		errorClassifier: &ErrorClassifier{Provider: "google"},
	}, nil
}

func (p *googleProvider) Name() string {
	if p.grounded {
		return "google_search_grounding"
	}
	return "google"
}

func (p *googleProvider) Model() string { return p.model }

// DoQuery sends one generateContent request and normalizes the response.
func (p *googleProvider) DoQuery(ctx context.Context, text, sessionID string) (*domain.CanonicalResult, error) {
	config := &genai.GenerateContentConfig{}
	if p.params.Temperature != nil {
		config.Temperature = genai.Ptr(float32(ClampFloat64(*p.params.Temperature, MinTemperature, MaxTemperature)))
	}
	if p.params.MaxTokens > 0 {
		config.MaxOutputTokens = int32(p.params.MaxTokens)
	}
	if p.grounded {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return nil, p.handleError(err)
	}

	content := resp.Text()
	meta := domain.Metadata{
		"provider":          p.Name(),
		"model":             p.model,
		"session_id":        sessionID,
		"grounding_enabled": p.grounded,
	}
	if resp.UsageMetadata != nil {
		meta["usage"] = domain.Metadata{
			"prompt_tokens":     resp.UsageMetadata.PromptTokenCount,
			"candidates_tokens": resp.UsageMetadata.CandidatesTokenCount,
			"total_tokens":      resp.UsageMetadata.TotalTokenCount,
		}
	}

	sources := []domain.Source{}
	if p.grounded {
		native := p.groundingSources(resp, meta)
		sources = extract.Sources(content, native)
	}

	return &domain.CanonicalResult{
		ResponseRaw:    content,
		Sources:        sources,
		ChainOfThought: extract.ChainOfThought(content),
		Metadata:       meta,
	}, nil
}

// groundingSources collects the web grounding chunks of the first candidate
// and records the search queries the model issued into the call metadata.
func (p *googleProvider) groundingSources(resp *genai.GenerateContentResponse, meta domain.Metadata) []domain.Source {
	var native []domain.Source
	for _, candidate := range resp.Candidates {
		gm := candidate.GroundingMetadata
		if gm == nil {
			continue
		}
		for _, chunk := range gm.GroundingChunks {
			if chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			native = append(native, domain.Source{
				Type:   domain.SourceGroundingChunk,
				URL:    chunk.Web.URI,
				Title:  chunk.Web.Title,
				Method: "google_search_grounding",
			})
		}
		if len(gm.WebSearchQueries) > 0 {
			meta["web_search_queries"] = gm.WebSearchQueries
		}
	}
	return native
}

func (p *googleProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" && len(apiErr.Errors) > 0 {
			message = apiErr.Errors[0].Message
		}
		return p.errorClassifier.ClassifyHTTPError(apiErr.Code, message, err)
	}
	return NewProviderError(p.Name(), ErrorTypeNetwork, 0, "request failed", err)
}
