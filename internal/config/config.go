// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   int    `env:"PORT" envDefault:"8080"`
	// DBURL enables durable conversation history when set.
	DBURL string `env:"DB_URL"`
	// RedisURL is required only when RateLimitBackend is "redis".
	RedisURL string `env:"REDIS_URL"`
	// KafkaBrokers enables analysis event publishing when non-empty.
	KafkaBrokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic      string   `env:"KAFKA_ANALYSIS_TOPIC" envDefault:"analysis-events"`
	OTLPEndpoint    string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string   `env:"OTEL_SERVICE_NAME" envDefault:"ai-analysis-core"`
	// OTELSampleRatio overrides the env-derived trace sampling ratio when in (0, 1].
	OTELSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"0"`
	// LogLevel overrides the env-derived level (debug, info, warn, error).
	LogLevel string `env:"LOG_LEVEL"`

	CORSAllowOrigins      string        `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	HTTPRateLimitPerMin   int           `env:"HTTP_RATE_LIMIT_PER_MIN" envDefault:"600"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"120s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`

	// Per-user admission control
	RateLimitBackend       string `env:"RATE_LIMIT_BACKEND" envDefault:"memory"`
	RateLimitMaxRequests   int    `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"10"`
	RateLimitWindowSeconds int    `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"60"`
	// RateLimitJanitorInterval sweeps idle in-memory windows; 0 disables it.
	RateLimitJanitorInterval time.Duration `env:"RATE_LIMIT_JANITOR_INTERVAL" envDefault:"5m"`

	// Response cache
	CacheMaxEntries int           `env:"CACHE_MAX_ENTRIES" envDefault:"1000"`
	CacheTTL        time.Duration `env:"CACHE_TTL" envDefault:"1h"`
	// CacheShards > 1 trades exact global LRU order for less lock contention.
	CacheShards     int           `env:"CACHE_SHARDS" envDefault:"16"`

	// Circuit breakers
	CircuitBreakerFailureThreshold int `env:"CB_FAILURE_THRESHOLD" envDefault:"5"`
	// CircuitBreakerRateLimitThreshold counts provider 429s separately; 0 means
	// 429s never open the breaker.
	CircuitBreakerRateLimitThreshold int           `env:"CB_RATE_LIMIT_THRESHOLD" envDefault:"10"`
	CircuitBreakerRecoveryTimeout    time.Duration `env:"CB_RECOVERY_TIMEOUT" envDefault:"60s"`

	// Conversation context
	ContextMaxMessagesPerUser int           `env:"CONTEXT_MAX_MESSAGES_PER_USER" envDefault:"50"`
	ContextRetentionWindow    time.Duration `env:"CONTEXT_RETENTION_WINDOW" envDefault:"720h"`
	ContextMinLength          int           `env:"CONTEXT_MIN_LENGTH" envDefault:"1"`
	ContextMaxLength          int           `env:"CONTEXT_MAX_LENGTH" envDefault:"4000"`
	ContextPurgeInterval      time.Duration `env:"CONTEXT_PURGE_INTERVAL" envDefault:"1h"`
	ContextHistoryMessages    int           `env:"CONTEXT_HISTORY_MESSAGES" envDefault:"10"`
	ContextTokenBudget        int           `env:"CONTEXT_TOKEN_BUDGET" envDefault:"1500"`

	// Analyze entry point
	AnalyzeMaxInputLength int `env:"ANALYZE_MAX_INPUT_LENGTH" envDefault:"4000"`
	// AnalyzeMaxTotalLatency bounds a whole Analyze call; 0 derives it from the providers.
	AnalyzeMaxTotalLatency time.Duration `env:"ANALYZE_MAX_TOTAL_LATENCY" envDefault:"0s"`
	// AnalyzeResponseHeadroom is kept free between the Analyze bound and
	// HTTP_WRITE_TIMEOUT for event publishing and writing the response.
	AnalyzeResponseHeadroom time.Duration `env:"ANALYZE_RESPONSE_HEADROOM" envDefault:"5s"`

	// Providers
	ProvidersFile string      `env:"PROVIDERS_FILE"`
	OpenAI        ProviderEnv `envPrefix:"OPENAI_"`
	Groq          ProviderEnv `envPrefix:"GROQ_"`
	OpenRouter    ProviderEnv `envPrefix:"OPENROUTER_"`
	Anthropic     ProviderEnv `envPrefix:"ANTHROPIC_"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// Validate rejects limits that would make the resilience components meaningless.
func (c Config) Validate() error {
	positive := []struct {
		name string
		v    int
	}{
		{"RATE_LIMIT_MAX_REQUESTS", c.RateLimitMaxRequests},
		{"RATE_LIMIT_WINDOW_SECONDS", c.RateLimitWindowSeconds},
		{"CACHE_MAX_ENTRIES", c.CacheMaxEntries},
		{"CACHE_SHARDS", c.CacheShards},
		{"CB_FAILURE_THRESHOLD", c.CircuitBreakerFailureThreshold},
		{"CONTEXT_MAX_MESSAGES_PER_USER", c.ContextMaxMessagesPerUser},
		{"CONTEXT_MAX_LENGTH", c.ContextMaxLength},
		{"ANALYZE_MAX_INPUT_LENGTH", c.AnalyzeMaxInputLength},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.v)
		}
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.CircuitBreakerRecoveryTimeout <= 0 {
		return fmt.Errorf("CB_RECOVERY_TIMEOUT must be positive")
	}
	if c.CircuitBreakerRateLimitThreshold < 0 {
		return fmt.Errorf("CB_RATE_LIMIT_THRESHOLD must not be negative")
	}
	if c.ContextRetentionWindow <= 0 {
		return fmt.Errorf("CONTEXT_RETENTION_WINDOW must be positive")
	}
	if c.ContextMinLength < 0 || c.ContextMinLength > c.ContextMaxLength {
		return fmt.Errorf("CONTEXT_MIN_LENGTH must be within [0, CONTEXT_MAX_LENGTH]")
	}
	if c.AnalyzeMaxInputLength > c.ContextMaxLength {
		return fmt.Errorf("ANALYZE_MAX_INPUT_LENGTH (%d) must not exceed CONTEXT_MAX_LENGTH (%d)", c.AnalyzeMaxInputLength, c.ContextMaxLength)
	}
	if c.OTELSampleRatio < 0 || c.OTELSampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATIO must be within [0, 1]")
	}
	if c.AnalyzeResponseHeadroom < 0 {
		return fmt.Errorf("ANALYZE_RESPONSE_HEADROOM must not be negative")
	}
	if c.HTTPWriteTimeout > 0 {
		ceiling := c.analyzeCeiling()
		if ceiling <= 0 {
			return fmt.Errorf("HTTP_WRITE_TIMEOUT must exceed ANALYZE_RESPONSE_HEADROOM")
		}
		if c.AnalyzeMaxTotalLatency > ceiling {
			return fmt.Errorf("ANALYZE_MAX_TOTAL_LATENCY (%s) must not exceed HTTP_WRITE_TIMEOUT minus ANALYZE_RESPONSE_HEADROOM (%s)", c.AnalyzeMaxTotalLatency, ceiling)
		}
	}
	switch strings.ToLower(c.RateLimitBackend) {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL required when RATE_LIMIT_BACKEND=redis")
		}
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be memory or redis, got %q", c.RateLimitBackend)
	}
	return nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// analyzeCeiling is the longest an Analyze call may run and still be answered
// before the HTTP timeout fires.
func (c Config) analyzeCeiling() time.Duration {
	return c.HTTPWriteTimeout - c.AnalyzeResponseHeadroom
}

// RateLimitWindow returns the sliding window length as a duration.
func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}
