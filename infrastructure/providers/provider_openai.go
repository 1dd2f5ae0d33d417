package providers

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Cubanisto31/geoprobe/internal/domain"
	"github.com/Cubanisto31/geoprobe/internal/extract"
)

const (
	// OpenAIDefaultModel is used when the model parameter bag names no model.
	OpenAIDefaultModel = "gpt-4o"

	// openAISearchSystemPrompt nudges the model toward citing web sources.
	// OpenAI exposes no retrieval toggle on the chat completions API, so the
	// search variant works purely through the prompt.
	openAISearchSystemPrompt = "You are a helpful assistant with access to web search. " +
		"When answering questions, please search for current information and cite your " +
		"sources when possible. Include URLs in your response when referencing specific " +
		"websites or sources."
)

func init() {
	Register("openai", func(cfg domain.ModelConfig, creds Credentials) (CoreProvider, error) {
		return newOpenAIProvider(cfg, creds, false)
	})
	Register("openai_search", func(cfg domain.ModelConfig, creds Credentials) (CoreProvider, error) {
		return newOpenAIProvider(cfg, creds, true)
	})
}

// openAIProvider implements CoreProvider for OpenAI chat completions. The
// search variant adds a citation-encouraging system prompt; both variants
// run the text-layer source extractor over the answer.
type openAIProvider struct {
	client          *openai.Client
	params          domain.ModelParameters
	model           string
	search          bool
	errorClassifier *ErrorClassifier
}

func newOpenAIProvider(cfg domain.ModelConfig, creds Credentials, search bool) (CoreProvider, error) {
	model := cfg.Parameters.ModelName
	if model == "" {
		model = OpenAIDefaultModel
	}
	return &openAIProvider{
		client:          openai.NewClient(creds.APIKey),
		params:          cfg.Parameters,
		model:           model,
		search:          search,
		errorClassifier: &ErrorClassifier{Provider: "openai"},
	}, nil
}

func (p *openAIProvider) Name() string {
	if p.search {
		return "openai_search"
	}
	return "openai"
}

func (p *openAIProvider) Model() string { return p.model }

// DoQuery sends one chat completion request and normalizes the response.
func (p *openAIProvider) DoQuery(ctx context.Context, text, sessionID string) (*domain.CanonicalResult, error) {
	req := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: p.buildMessages(text),
	}
	if p.params.Temperature != nil {
		req.Temperature = float32(ClampFloat64(*p.params.Temperature, 0.0, 2.0))
	}
	if p.params.MaxTokens > 0 {
		req.MaxTokens = p.params.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, p.handleError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewProviderError(p.Name(), ErrorTypeUnknown, 0, "no response choices returned", nil)
	}

	content := resp.Choices[0].Message.Content
	meta := domain.Metadata{
		"provider":   p.Name(),
		"model":      p.model,
		"session_id": sessionID,
		"usage": domain.Metadata{
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
			"total_tokens":      resp.Usage.TotalTokens,
		},
	}
	if p.search {
		meta["search_enabled"] = true
	}

	return &domain.CanonicalResult{
		ResponseRaw:    content,
		Sources:        extract.Sources(content, nil),
		ChainOfThought: extract.ChainOfThought(content),
		Metadata:       meta,
	}, nil
}

func (p *openAIProvider) buildMessages(text string) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if p.search {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: openAISearchSystemPrompt,
		})
	}
	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})
}

func (p *openAIProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "unknown error"
		}
		return p.errorClassifier.ClassifyHTTPError(apiErr.HTTPStatusCode, message, err)
	}
	return NewProviderError(p.Name(), ErrorTypeNetwork, 0, "request failed", err)
}
