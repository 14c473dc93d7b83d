// Package domain defines the core types, ports and error taxonomy of the
// analysis service.
package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ProviderKind enumerates the wire protocols an adapter can speak.
type ProviderKind string

const (
	ProviderOpenAI     ProviderKind = "openai"
	ProviderGroq       ProviderKind = "groq"
	ProviderOpenRouter ProviderKind = "openrouter"
	ProviderAnthropic  ProviderKind = "anthropic"
)

// ProviderConfig describes one upstream provider. It is built once at startup
// and never mutated afterwards.
type ProviderConfig struct {
	// Name identifies the provider in logs, metrics and circuit breakers.
	Name string `yaml:"name"`
	// Kind selects the adapter implementation.
	Kind ProviderKind `yaml:"kind"`
	// Priority orders the fallback chain; lower is tried first.
	Priority int    `yaml:"priority"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	// CallTimeout bounds a single attempt.
	CallTimeout time.Duration `yaml:"call_timeout"`
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `yaml:"max_retries"`
	// BackoffBase is the delay before the first retry; it doubles per attempt.
	BackoffBase time.Duration `yaml:"backoff_base"`
	// BackoffMax caps the delay between attempts; zero leaves it uncapped.
	BackoffMax time.Duration `yaml:"backoff_max"`
	MaxTokens  int           `yaml:"max_tokens"`
}

// Validate checks a provider definition once at startup.
func (p ProviderConfig) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: provider name required", ErrInvalidArgument)
	case p.APIKey == "":
		return fmt.Errorf("%w: provider %s: api key required", ErrInvalidArgument, p.Name)
	case p.Model == "":
		return fmt.Errorf("%w: provider %s: model required", ErrInvalidArgument, p.Name)
	case p.CallTimeout <= 0:
		return fmt.Errorf("%w: provider %s: call timeout must be positive", ErrInvalidArgument, p.Name)
	case p.MaxRetries < 0:
		return fmt.Errorf("%w: provider %s: max retries must not be negative", ErrInvalidArgument, p.Name)
	case p.BackoffBase < 0 || p.BackoffMax < 0:
		return fmt.Errorf("%w: provider %s: backoff must not be negative", ErrInvalidArgument, p.Name)
	}
	switch p.Kind {
	case ProviderOpenAI, ProviderGroq, ProviderOpenRouter, ProviderAnthropic:
	default:
		return fmt.Errorf("%w: provider %s: unknown kind %q", ErrInvalidArgument, p.Name, p.Kind)
	}
	return nil
}

// WorstCaseLatency is the longest a single Call may take including retries.
func (p ProviderConfig) WorstCaseLatency() time.Duration {
	total := time.Duration(p.MaxRetries+1) * p.CallTimeout
	delay := p.BackoffBase
	for i := 0; i < p.MaxRetries; i++ {
		if p.BackoffMax > 0 && delay > p.BackoffMax {
			delay = p.BackoffMax
		}
		total += delay
		delay *= 2
	}
	return total
}

// SortProviders orders providers by ascending priority, breaking ties by name.
func SortProviders[T interface{ Priority() int; Name() string }](ps []T) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].Priority() != ps[j].Priority() {
			return ps[i].Priority() < ps[j].Priority()
		}
		return ps[i].Name() < ps[j].Name()
	})
}
