package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-analysis-core/internal/domain"
)

// clearProviderEnv makes provider discovery independent of the host environment.
func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, p := range []string{"OPENAI_", "GROQ_", "OPENROUTER_", "ANTHROPIC_"} {
		t.Setenv(p+"API_KEY", "")
	}
	t.Setenv("PROVIDERS_FILE", "")
}

func Test_Load_Defaults(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("APP_ENV", "dev")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsDev())
	assert.False(t, cfg.IsProd())
	assert.Equal(t, 10, cfg.RateLimitMaxRequests)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow())
	assert.Equal(t, 1000, cfg.CacheMaxEntries)
	assert.Equal(t, 5, cfg.CircuitBreakerFailureThreshold)
	assert.Equal(t, 50, cfg.ContextMaxMessagesPerUser)

	ps, err := cfg.Providers()
	require.NoError(t, err)
	assert.Empty(t, ps)
}

func Test_Load_RejectsInvalidLimits(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_MAX_REQUESTS")
}

func Test_Load_InputLimitMustFitConversationStore(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("ANALYZE_MAX_INPUT_LENGTH", "5000")
	t.Setenv("CONTEXT_MAX_LENGTH", "4000")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANALYZE_MAX_INPUT_LENGTH")

	t.Setenv("CONTEXT_MAX_LENGTH", "5000")
	_, err = Load()
	require.NoError(t, err)
}

func Test_Load_RedisBackendNeedsURL(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("RATE_LIMIT_BACKEND", "redis")
	t.Setenv("REDIS_URL", "")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	_, err = Load()
	require.NoError(t, err)

	t.Setenv("RATE_LIMIT_BACKEND", "etcd")
	_, err = Load()
	require.Error(t, err)
}

func Test_Providers_FromEnv(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("GROQ_API_KEY", "gk")
	t.Setenv("OPENAI_API_KEY", "ok")
	t.Setenv("OPENAI_PRIORITY", "1")
	t.Setenv("OPENAI_MAX_RETRIES", "4")
	t.Setenv("OPENAI_CALL_TIMEOUT", "7s")

	cfg, err := Load()
	require.NoError(t, err)
	ps, err := cfg.Providers()
	require.NoError(t, err)
	require.Len(t, ps, 2)

	byName := map[string]domain.ProviderConfig{}
	for _, p := range ps {
		byName[p.Name] = p
	}
	groq := byName["groq"]
	assert.Equal(t, domain.ProviderGroq, groq.Kind)
	assert.Equal(t, 10, groq.Priority)
	assert.Equal(t, "https://api.groq.com/openai/v1", groq.BaseURL)
	assert.Equal(t, 2, groq.MaxRetries)

	openai := byName["openai"]
	assert.Equal(t, 1, openai.Priority)
	assert.Equal(t, 4, openai.MaxRetries)
	assert.Equal(t, 7*time.Second, openai.CallTimeout)
	assert.Equal(t, "gpt-4o-mini", openai.Model)
}

func Test_Providers_TestEnvShortensBackoff(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("APP_ENV", "test")
	t.Setenv("GROQ_API_KEY", "gk")
	cfg, err := Load()
	require.NoError(t, err)
	ps, err := cfg.Providers()
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, 10*time.Millisecond, ps[0].BackoffBase)
}

func Test_Providers_FromFile(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("MY_SECRET_KEY", "sk-from-env")
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
providers:
  - name: primary
    kind: openrouter
    priority: 1
    api_key: ${MY_SECRET_KEY}
    call_timeout: 3s
    max_retries: 1
    backoff_base: 200ms
  - name: backup
    kind: anthropic
    priority: 2
    api_key: literal
    model: claude-x
`), 0o600))
	t.Setenv("PROVIDERS_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	ps, err := cfg.Providers()
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "sk-from-env", ps[0].APIKey)
	assert.Equal(t, 3*time.Second, ps[0].CallTimeout)
	assert.Equal(t, 200*time.Millisecond, ps[0].BackoffBase)
	assert.Equal(t, "https://openrouter.ai/api/v1", ps[0].BaseURL)
	assert.Equal(t, "claude-x", ps[1].Model)
	assert.Equal(t, 20*time.Second, ps[1].CallTimeout)
}

func Test_Providers_FileDuplicateNames(t *testing.T) {
	clearProviderEnv(t)
	path := filepath.Join(t.TempDir(), "p.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
providers:
  - {name: a, kind: groq, api_key: k}
  - {name: a, kind: openai, api_key: k}
`), 0o600))
	cfg := Config{ProvidersFile: path}
	_, err := cfg.Providers()
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func Test_MaxTotalLatency(t *testing.T) {
	ps := []domain.ProviderConfig{
		{CallTimeout: time.Second},
		{CallTimeout: 2 * time.Second, MaxRetries: 1, BackoffBase: 100 * time.Millisecond},
	}
	cfg := Config{}
	assert.Equal(t, time.Second+4*time.Second+100*time.Millisecond, cfg.MaxTotalLatency(ps))
	cfg.AnalyzeMaxTotalLatency = 9 * time.Second
	assert.Equal(t, 9*time.Second, cfg.MaxTotalLatency(ps))
}

func Test_MaxTotalLatency_FitsHTTPWriteTimeout(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("GROQ_API_KEY", "gk")
	t.Setenv("OPENAI_API_KEY", "ok")
	t.Setenv("OPENROUTER_API_KEY", "rk")
	cfg, err := Load()
	require.NoError(t, err)
	ps, err := cfg.Providers()
	require.NoError(t, err)
	require.Len(t, ps, 3)

	var sum time.Duration
	for _, p := range ps {
		sum += p.WorstCaseLatency()
	}
	require.Greater(t, sum, cfg.HTTPWriteTimeout)
	assert.Equal(t, cfg.HTTPWriteTimeout-cfg.AnalyzeResponseHeadroom, cfg.MaxTotalLatency(ps))
	assert.Equal(t, 115*time.Second, cfg.MaxTotalLatency(ps))
}

func Test_Load_RejectsTotalLatencyBeyondHTTPTimeout(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("HTTP_WRITE_TIMEOUT", "30s")
	t.Setenv("ANALYZE_MAX_TOTAL_LATENCY", "28s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANALYZE_MAX_TOTAL_LATENCY")

	t.Setenv("ANALYZE_MAX_TOTAL_LATENCY", "25s")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 25*time.Second, cfg.MaxTotalLatency(nil))

	t.Setenv("ANALYZE_RESPONSE_HEADROOM", "30s")
	t.Setenv("ANALYZE_MAX_TOTAL_LATENCY", "0s")
	_, err = Load()
	require.Error(t, err)
}
