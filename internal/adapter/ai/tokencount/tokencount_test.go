package tokencount

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-analysis-core/internal/domain"
)

func TestCountTokens(t *testing.T) {
	t.Parallel()

	counter := NewCounter()

	tests := []struct {
		name     string
		text     string
		model    string
		minCount int
		maxCount int
	}{
		{
			name:     "simple text with gpt-4",
			text:     "Hello, world!",
			model:    "gpt-4",
			minCount: 3,
			maxCount: 5,
		},
		{
			name:     "longer text",
			text:     "The quick brown fox jumps over the lazy dog.",
			model:    "gpt-3.5-turbo",
			minCount: 8,
			maxCount: 12,
		},
		{
			name:     "openrouter llama id",
			text:     "Hello, world!",
			model:    "meta-llama/llama-3.1-8b-instruct:free",
			minCount: 3,
			maxCount: 5,
		},
		{
			name:     "claude model",
			text:     "Testing token counting",
			model:    "claude-3-5-haiku-latest",
			minCount: 3,
			maxCount: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := counter.CountTokens(tt.text, tt.model)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, count, tt.minCount)
			assert.LessOrEqual(t, count, tt.maxCount)
		})
	}
}

func TestNormalizeModelName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "gpt-4o", normalizeModelName("gpt-4o-mini"))
	assert.Equal(t, "gpt-3.5-turbo", normalizeModelName("GPT-3.5-Turbo-0125"))
	assert.Equal(t, "gpt-4", normalizeModelName("meta-llama/llama-3.1-8b-instruct:free"))
	assert.Equal(t, "gpt-4", normalizeModelName(""))
}

func TestEstimate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Estimate(""))
	assert.Equal(t, 1, Estimate("abc"))
	assert.Equal(t, 2, Estimate("abcde"))
}

func TestCountChatTokens(t *testing.T) {
	t.Parallel()

	counter := NewCounter()
	count := counter.CountChatTokens("You are a helpful assistant.", "What is the capital of France?", "gpt-4")
	assert.Greater(t, count, 15)
	assert.Less(t, count, 40)
}

func TestFit(t *testing.T) {
	t.Parallel()

	counter := NewCounter()
	msgs := []domain.ConversationMessage{
		{Role: domain.RoleUser, Content: strings.Repeat("alpha ", 50)},
		{Role: domain.RoleAssistant, Content: "short reply"},
		{Role: domain.RoleUser, Content: "latest question"},
	}

	t.Run("unbounded budget keeps everything", func(t *testing.T) {
		assert.Len(t, counter.Fit(msgs, 0, "gpt-4"), 3)
	})

	t.Run("tight budget keeps the most recent suffix", func(t *testing.T) {
		got := counter.Fit(msgs, 20, "gpt-4")
		require.Len(t, got, 2)
		assert.Equal(t, "short reply", got[0].Content)
		assert.Equal(t, "latest question", got[1].Content)
	})

	t.Run("budget smaller than newest message keeps nothing", func(t *testing.T) {
		assert.Empty(t, counter.Fit(msgs, 2, "gpt-4"))
	})
}
