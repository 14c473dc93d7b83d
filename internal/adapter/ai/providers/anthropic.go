package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-analysis-core/internal/domain"
)

const (
	anthropicVersion        = "2023-06-01"
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	maxErrorBodySnippet     = 512
)

// Anthropic calls the Messages API directly over HTTP.
type Anthropic struct {
	base
	hc *http.Client
}

var _ domain.ProviderAdapter = (*Anthropic)(nil)

// NewAnthropic builds an Anthropic adapter.
func NewAnthropic(cfg domain.ProviderConfig, opts ...Option) *Anthropic {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAnthropicBaseURL
	}
	return &Anthropic{base: base{cfg: cfg}, hc: applyOptions(opts).httpClient}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Call performs one Messages API request and parses the analysis out of it.
func (p *Anthropic) Call(ctx context.Context, req domain.ProviderRequest) (res domain.AnalysisResult, err error) {
	start := time.Now()
	defer func() { p.observe(ctx, start, err) }()

	maxTokens := p.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 800
	}
	body, err := json.Marshal(anthropicRequest{
		Model:       p.cfg.Model,
		MaxTokens:   maxTokens,
		Temperature: 0.2,
		System:      systemPrompt,
		Messages:    alternate(buildMessages(req)),
	})
	if err != nil {
		return domain.AnalysisResult{}, p.fail(domain.KindAuth, 0, fmt.Errorf("marshal request: %w", err))
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.AnalysisResult{}, p.fail(domain.KindAuth, 0, fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.hc.Do(httpReq)
	if err != nil {
		return domain.AnalysisResult{}, p.fail(domain.KindTransient, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.AnalysisResult{}, p.fail(domain.KindTransient, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(respBody)
		if len(snippet) > maxErrorBodySnippet {
			snippet = snippet[:maxErrorBodySnippet]
		}
		return domain.AnalysisResult{}, p.fail(classifyStatus(resp.StatusCode), resp.StatusCode, fmt.Errorf("messages status %d: %s", resp.StatusCode, snippet))
	}

	var out anthropicResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return domain.AnalysisResult{}, p.fail(domain.KindMalformed, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return p.result(text.String(), out.Model)
}

// alternate folds the history into the strictly alternating user/assistant
// sequence the Messages API requires, starting with a user turn.
func alternate(msgs []chatMessage) []anthropicMessage {
	out := make([]anthropicMessage, 0, len(msgs))
	for _, m := range msgs {
		if len(out) == 0 && m.Role != string(domain.RoleUser) {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
