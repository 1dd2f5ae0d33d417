package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Cubanisto31/geoprobe/internal/domain"
	"github.com/Cubanisto31/geoprobe/internal/extract"
)

const (
	// AnthropicDefaultModel is used when the parameter bag names no model.
	AnthropicDefaultModel = "claude-3-5-sonnet-20241022"
	// anthropicDefaultMaxTokens is the Messages API token cap applied when
	// the configuration leaves max_tokens unset; the API requires a value.
	anthropicDefaultMaxTokens = 4096
)

func init() {
	Register("anthropic", func(cfg domain.ModelConfig, creds Credentials) (CoreProvider, error) {
		return newAnthropicProvider(cfg, creds, false)
	})
	Register("anthropic_search", func(cfg domain.ModelConfig, creds Credentials) (CoreProvider, error) {
		return newAnthropicProvider(cfg, creds, true)
	})
}

// anthropicProvider implements CoreProvider for the Anthropic Messages API.
// The plain variant has no retrieval capability, so its source list is
// intentionally empty; the search variant requests the server-side web
// search tool and harvests the native citations it returns.
type anthropicProvider struct {
	client          anthropic.Client
	params          domain.ModelParameters
	model           string
	search          bool
	errorClassifier *ErrorClassifier
}

func newAnthropicProvider(cfg domain.ModelConfig, creds Credentials, search bool) (CoreProvider, error) {
	model := cfg.Parameters.ModelName
	if model == "" {
		model = AnthropicDefaultModel
	}
	return &anthropicProvider{
		client:          anthropic.NewClient(option.WithAPIKey(creds.APIKey)),
		params:          cfg.Parameters,
		model:           model,
		search:          search,
		errorClassifier: &ErrorClassifier{Provider: "anthropic"},
	}, nil
}

func (p *anthropicProvider) Name() string {
	if p.search {
		return "anthropic_search"
	}
	return "anthropic"
}

func (p *anthropicProvider) Model() string { return p.model }

// DoQuery sends one Messages request and normalizes the response.
func (p *anthropicProvider) DoQuery(ctx context.Context, text, sessionID string) (*domain.CanonicalResult, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(p.maxTokens()),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	}
	if p.params.Temperature != nil {
		params.Temperature = anthropic.Float(ClampFloat64(*p.params.Temperature, 0.0, 1.0))
	}
	searchEnabled := p.search && p.params.EnableSearch
	if searchEnabled {
		params.Tools = []anthropic.ToolUnionParam{{
			OfWebSearchTool20250305: &anthropic.WebSearchTool20250305Param{},
		}}
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, p.handleError(err)
	}

	content, native := p.processContent(message)

	var sources []domain.Source
	if searchEnabled {
		sources = extract.Sources(content, native)
	} else {
		// No retrieval capability: the empty list is meaningful data, not
		// a failure.
		sources = []domain.Source{}
	}

	return &domain.CanonicalResult{
		ResponseRaw:    content,
		Sources:        sources,
		ChainOfThought: extract.ChainOfThought(content),
		Metadata: domain.Metadata{
			"provider":           p.Name(),
			"model":              p.model,
			"session_id":         sessionID,
			"web_search_enabled": searchEnabled,
			"usage": domain.Metadata{
				"input_tokens":  message.Usage.InputTokens,
				"output_tokens": message.Usage.OutputTokens,
			},
		},
	}, nil
}

// processContent flattens the response blocks into answer text and collects
// native citations from web search results and inline text citations.
func (p *anthropicProvider) processContent(message *anthropic.Message) (string, []domain.Source) {
	var sb strings.Builder
	var native []domain.Source

	for _, block := range message.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(content.Text)
			for _, citation := range content.Citations {
				if loc, ok := citation.AsAny().(anthropic.CitationsWebSearchResultLocation); ok {
					native = append(native, domain.Source{
						Type:    domain.SourceNativeCitation,
						URL:     loc.URL,
						Title:   loc.Title,
						Snippet: loc.CitedText,
						Method:  "anthropic_text_citation",
					})
				}
			}
		case anthropic.WebSearchToolResultBlock:
			// The error variant of the content union yields an empty array.
			for _, item := range content.Content.AsWebSearchResultBlockArray() {
				native = append(native, domain.Source{
					Type:   domain.SourceNativeCitation,
					URL:    item.URL,
					Title:  item.Title,
					Method: "anthropic_web_search",
				})
			}
		}
	}

	return sb.String(), native
}

func (p *anthropicProvider) maxTokens() int {
	if p.params.MaxTokens > 0 {
		return p.params.MaxTokens
	}
	return anthropicDefaultMaxTokens
}

func (p *anthropicProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return p.errorClassifier.ClassifyHTTPError(apiErr.StatusCode, apiErr.Error(), err)
	}
	return NewProviderError(p.Name(), ErrorTypeNetwork, 0, "request failed", err)
}
