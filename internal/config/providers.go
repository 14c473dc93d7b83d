package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/ai-analysis-core/internal/domain"
)

// ProviderEnv is the per-provider environment section, read with a prefix
// such as GROQ_ or OPENAI_. A provider is enabled when its API key is set.
type ProviderEnv struct {
	APIKey      string        `env:"API_KEY"`
	BaseURL     string        `env:"BASE_URL"`
	Model       string        `env:"MODEL"`
	Priority    int           `env:"PRIORITY"`
	CallTimeout time.Duration `env:"CALL_TIMEOUT" envDefault:"20s"`
	MaxRetries  int           `env:"MAX_RETRIES" envDefault:"2"`
	BackoffBase time.Duration `env:"BACKOFF_BASE" envDefault:"500ms"`
	BackoffMax  time.Duration `env:"BACKOFF_MAX" envDefault:"5s"`
	MaxTokens   int           `env:"MAX_TOKENS" envDefault:"800"`
}

type providerDefaults struct {
	baseURL  string
	model    string
	priority int
}

var defaultsByKind = map[domain.ProviderKind]providerDefaults{
	domain.ProviderGroq:       {"https://api.groq.com/openai/v1", "llama-3.1-8b-instant", 10},
	domain.ProviderOpenRouter: {"https://openrouter.ai/api/v1", "meta-llama/llama-3.1-8b-instruct:free", 20},
	domain.ProviderOpenAI:     {"https://api.openai.com/v1", "gpt-4o-mini", 30},
	domain.ProviderAnthropic:  {"https://api.anthropic.com/v1", "claude-3-5-haiku-latest", 40},
}

func (p ProviderEnv) toProvider(kind domain.ProviderKind) domain.ProviderConfig {
	d := defaultsByKind[kind]
	pc := domain.ProviderConfig{
		Name:        string(kind),
		Kind:        kind,
		Priority:    p.Priority,
		APIKey:      p.APIKey,
		BaseURL:     p.BaseURL,
		Model:       p.Model,
		CallTimeout: p.CallTimeout,
		MaxRetries:  p.MaxRetries,
		BackoffBase: p.BackoffBase,
		BackoffMax:  p.BackoffMax,
		MaxTokens:   p.MaxTokens,
	}
	if pc.BaseURL == "" {
		pc.BaseURL = d.baseURL
	}
	if pc.Model == "" {
		pc.Model = d.model
	}
	if pc.Priority == 0 {
		pc.Priority = d.priority
	}
	return pc
}

type providersFile struct {
	Providers []domain.ProviderConfig `yaml:"providers"`
}

// Providers returns the validated provider chain. When ProvidersFile is set it
// replaces the environment-defined providers entirely; ${VAR} references in
// the file are expanded from the environment so keys stay out of the file.
func (c Config) Providers() ([]domain.ProviderConfig, error) {
	var out []domain.ProviderConfig
	if c.ProvidersFile != "" {
		fromFile, err := loadProvidersFile(c.ProvidersFile)
		if err != nil {
			return nil, fmt.Errorf("op=config.Providers: %w", err)
		}
		out = fromFile
	} else {
		sections := []struct {
			kind domain.ProviderKind
			env  ProviderEnv
		}{
			{domain.ProviderGroq, c.Groq},
			{domain.ProviderOpenRouter, c.OpenRouter},
			{domain.ProviderOpenAI, c.OpenAI},
			{domain.ProviderAnthropic, c.Anthropic},
		}
		for _, s := range sections {
			if s.env.APIKey == "" {
				continue
			}
			out = append(out, s.env.toProvider(s.kind))
		}
	}

	seen := make(map[string]struct{}, len(out))
	for i := range out {
		if c.IsTest() {
			// Test environment: keep retries fast
			out[i].BackoffBase = 10 * time.Millisecond
			out[i].BackoffMax = 50 * time.Millisecond
		}
		if err := out[i].Validate(); err != nil {
			return nil, fmt.Errorf("op=config.Providers: %w", err)
		}
		if _, dup := seen[out[i].Name]; dup {
			return nil, fmt.Errorf("op=config.Providers: %w: duplicate provider name %q", domain.ErrInvalidArgument, out[i].Name)
		}
		seen[out[i].Name] = struct{}{}
	}
	return out, nil
}

func loadProvidersFile(path string) ([]domain.ProviderConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f providersFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range f.Providers {
		p := &f.Providers[i]
		d := defaultsByKind[p.Kind]
		if p.Name == "" {
			p.Name = string(p.Kind)
		}
		if p.BaseURL == "" {
			p.BaseURL = d.baseURL
		}
		if p.Model == "" {
			p.Model = d.model
		}
		if p.CallTimeout == 0 {
			p.CallTimeout = 20 * time.Second
		}
		if p.MaxTokens == 0 {
			p.MaxTokens = 800
		}
	}
	return f.Providers, nil
}

// MaxTotalLatency returns the configured Analyze bound, or the sum of every
// provider's worst-case call latency when none is configured. Either way the
// result is clamped to HTTP_WRITE_TIMEOUT minus ANALYZE_RESPONSE_HEADROOM so
// the degraded answer is written before the HTTP timeout.
func (c Config) MaxTotalLatency(providers []domain.ProviderConfig) time.Duration {
	total := c.AnalyzeMaxTotalLatency
	if total <= 0 {
		for _, p := range providers {
			total += p.WorstCaseLatency()
		}
	}
	if c.HTTPWriteTimeout > 0 {
		if ceiling := c.analyzeCeiling(); ceiling > 0 && total > ceiling {
			total = ceiling
		}
	}
	return total
}
