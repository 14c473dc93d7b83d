// Package tokencount counts prompt tokens so conversation history can be
// trimmed to a budget before it is sent to a provider.
//
// It uses tiktoken-go with the offline BPE loader, so no encoding files are
// fetched at runtime. Models without a tiktoken mapping are counted with
// cl100k_base, which is close enough for budgeting Llama, Mistral and Claude.
package tokencount

import (
	"log/slog"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/fairyhunter13/ai-analysis-core/internal/domain"
)

func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

const (
	// OpenAI chat format: every message costs a few framing tokens.
	tokensPerMessage = 3
	// Every reply is primed with <|start|>assistant<|message|>.
	replyPriming = 3
)

// Counter provides thread-safe token counting for LLM models.
type Counter struct {
	encodingCache map[string]*tiktoken.Tiktoken
	mu            sync.RWMutex
}

// NewCounter creates a new token counter instance.
func NewCounter() *Counter {
	return &Counter{
		encodingCache: make(map[string]*tiktoken.Tiktoken),
	}
}

// DefaultCounter is a global token counter instance.
var DefaultCounter = NewCounter()

// getEncodingForModel returns the tiktoken encoding for a model, cached per
// normalized model name.
func (c *Counter) getEncodingForModel(model string) (*tiktoken.Tiktoken, error) {
	normalizedModel := normalizeModelName(model)

	c.mu.RLock()
	if enc, ok := c.encodingCache[normalizedModel]; ok {
		c.mu.RUnlock()
		return enc, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok := c.encodingCache[normalizedModel]; ok {
		return enc, nil
	}

	enc, err := tiktoken.EncodingForModel(normalizedModel)
	if err != nil {
		slog.Debug("falling back to cl100k_base encoding",
			slog.String("model", model),
			slog.String("normalized", normalizedModel),
			slog.Any("error", err))
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}

	c.encodingCache[normalizedModel] = enc
	return enc, nil
}

// normalizeModelName converts provider model IDs to tiktoken-compatible names.
func normalizeModelName(model string) string {
	model = strings.ToLower(model)

	// OpenRouter IDs carry a vendor prefix and an optional :free suffix,
	// e.g. "meta-llama/llama-3.1-8b-instruct:free".
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	model = strings.TrimSuffix(model, ":free")

	switch {
	case strings.HasPrefix(model, "gpt-4o"):
		return "gpt-4o"
	case strings.Contains(model, "gpt-3.5"):
		return "gpt-3.5-turbo"
	default:
		return "gpt-4"
	}
}

// Estimate is the ~4 characters per token rule used when no encoding is available.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// CountTokens counts the tokens in text for model.
func (c *Counter) CountTokens(text, model string) (int, error) {
	enc, err := c.getEncodingForModel(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// CountMessage returns the cost of one chat message including role framing.
// Counting failures degrade to Estimate.
func (c *Counter) CountMessage(role, content, model string) int {
	enc, err := c.getEncodingForModel(model)
	if err != nil {
		slog.Warn("failed to load encoding, using estimate",
			slog.String("model", model),
			slog.Any("error", err))
		return tokensPerMessage + Estimate(role) + Estimate(content)
	}
	return tokensPerMessage + len(enc.Encode(role, nil, nil)) + len(enc.Encode(content, nil, nil))
}

// CountChatTokens counts tokens for a system + user chat completion request.
func (c *Counter) CountChatTokens(systemPrompt, userPrompt, model string) int {
	return c.CountMessage("system", systemPrompt, model) +
		c.CountMessage("user", userPrompt, model) +
		replyPriming
}

// Fit returns the longest suffix of msgs (most recent last) whose combined
// message cost does not exceed budget. A non-positive budget disables the cap.
func (c *Counter) Fit(msgs []domain.ConversationMessage, budget int, model string) []domain.ConversationMessage {
	if budget <= 0 {
		return msgs
	}
	used := 0
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		cost := c.CountMessage(string(msgs[i].Role), msgs[i].Content, model)
		if used+cost > budget {
			break
		}
		used += cost
		start = i
	}
	return msgs[start:]
}

// CountTokensDefault uses the default counter to count tokens.
func CountTokensDefault(text, model string) (int, error) {
	return DefaultCounter.CountTokens(text, model)
}
