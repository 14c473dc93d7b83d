package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-analysis-core/internal/domain"
)

func TestProviderError_UnwrapsToKindSentinel(t *testing.T) {
	cause := errors.New("dial tcp: connection reset")
	tests := []struct {
		kind     domain.ErrorKind
		sentinel error
	}{
		{domain.KindTransient, domain.ErrUpstreamTimeout},
		{domain.KindAuth, domain.ErrUpstreamAuth},
		{domain.KindMalformed, domain.ErrSchemaInvalid},
		{domain.KindRateLimited, domain.ErrUpstreamRateLimit},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := fmt.Errorf("op=call: %w", domain.NewProviderError("groq", tt.kind, 0, cause))
			assert.ErrorIs(t, err, tt.sentinel)
			assert.ErrorIs(t, err, cause)
			assert.Equal(t, tt.kind, domain.KindOf(err))
		})
	}
}

func TestProviderError_Message(t *testing.T) {
	err := domain.NewProviderError("openai", domain.KindAuth, 401, errors.New("bad key"))
	assert.Equal(t, "provider openai: auth (status 401): bad key", err.Error())
	err = domain.NewProviderError("openai", domain.KindTransient, 0, errors.New("timeout"))
	assert.Equal(t, "provider openai: transient: timeout", err.Error())
}

func TestKindOf_UnclassifiedIsTransient(t *testing.T) {
	assert.Equal(t, domain.KindTransient, domain.KindOf(errors.New("boom")))
}

func TestErrorKind_Retryable(t *testing.T) {
	assert.True(t, domain.KindTransient.Retryable())
	assert.True(t, domain.KindMalformed.Retryable())
	assert.False(t, domain.KindAuth.Retryable())
	assert.False(t, domain.KindRateLimited.Retryable())
	assert.Equal(t, "unknown", domain.ErrorKind(42).String())
}

func TestRateLimitExceededError(t *testing.T) {
	var err error = &domain.RateLimitExceededError{RetryAfterSeconds: 7}
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	var rl *domain.RateLimitExceededError
	require.ErrorAs(t, fmt.Errorf("analyze: %w", err), &rl)
	assert.Equal(t, 7, rl.RetryAfterSeconds)
	assert.Contains(t, err.Error(), "7s")
}

func TestValidationError(t *testing.T) {
	err := domain.NewValidationError("content", "empty")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Equal(t, "invalid argument: content: empty", err.Error())
}
