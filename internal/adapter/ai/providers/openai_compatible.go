package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fairyhunter13/ai-analysis-core/internal/domain"
)

// OpenAICompatible talks to any Chat Completions endpoint: OpenAI itself,
// Groq and OpenRouter differ only in base URL and model id.
type OpenAICompatible struct {
	base
	client *openai.Client
}

var _ domain.ProviderAdapter = (*OpenAICompatible)(nil)

// NewOpenAICompatible builds an adapter for cfg.BaseURL.
func NewOpenAICompatible(cfg domain.ProviderConfig, opts ...Option) *OpenAICompatible {
	o := applyOptions(opts)
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = o.httpClient
	return &OpenAICompatible{
		base:   base{cfg: cfg},
		client: openai.NewClientWithConfig(oc),
	}
}

// Call performs one chat completion and parses the analysis out of it.
func (p *OpenAICompatible) Call(ctx context.Context, req domain.ProviderRequest) (res domain.AnalysisResult, err error) {
	start := time.Now()
	defer func() { p.observe(ctx, start, err) }()

	msgs := buildMessages(req)
	wire := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	wire = append(wire, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	for _, m := range msgs {
		wire = append(wire, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.cfg.Model,
		Messages:    wire,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return domain.AnalysisResult{}, p.classify(err)
	}
	if len(resp.Choices) == 0 {
		return domain.AnalysisResult{}, p.fail(domain.KindMalformed, 0, errors.New("empty choices"))
	}
	return p.result(resp.Choices[0].Message.Content, resp.Model)
}

func (p *OpenAICompatible) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return p.fail(classifyStatus(apiErr.HTTPStatusCode), apiErr.HTTPStatusCode, apiErr)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode >= http.StatusMultipleChoices {
		return p.fail(classifyStatus(reqErr.HTTPStatusCode), reqErr.HTTPStatusCode, reqErr)
	}
	// A 2xx whose body does not decode as a chat completion.
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return p.fail(domain.KindMalformed, 0, err)
	}
	// No status: timeout, cancellation or a broken connection.
	return p.fail(domain.KindTransient, 0, err)
}
