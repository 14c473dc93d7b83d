package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrRateLimited           = errors.New("rate limited")
	ErrAllProvidersExhausted = errors.New("all providers exhausted")
	ErrUpstreamTimeout       = errors.New("upstream timeout")
	ErrUpstreamRateLimit     = errors.New("upstream rate limit")
	ErrUpstreamAuth          = errors.New("upstream auth")
	ErrSchemaInvalid         = errors.New("schema invalid")
)

// ErrorKind classifies a provider failure for retry and circuit-breaker policy.
type ErrorKind int

const (
	// KindTransient covers timeouts, 5xx and dropped connections. Retryable.
	KindTransient ErrorKind = iota
	// KindAuth covers 401/403 and other configuration rejections. Not retryable.
	KindAuth
	// KindMalformed means the response could not be parsed. Retried once.
	KindMalformed
	// KindRateLimited is a provider-side 429. Not retried; falls through to the next provider.
	KindRateLimited
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindAuth:
		return "auth"
	case KindMalformed:
		return "malformed"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Retryable reports whether the retry policy may attempt the call again.
func (k ErrorKind) Retryable() bool { return k == KindTransient || k == KindMalformed }

// ProviderError is the classified error returned by every ProviderAdapter.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s: %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

// Unwrap exposes both the cause and the sentinel matching the kind, so
// errors.Is works against either.
func (e *ProviderError) Unwrap() []error {
	var sentinel error
	switch e.Kind {
	case KindTransient:
		sentinel = ErrUpstreamTimeout
	case KindAuth:
		sentinel = ErrUpstreamAuth
	case KindMalformed:
		sentinel = ErrSchemaInvalid
	case KindRateLimited:
		sentinel = ErrUpstreamRateLimit
	}
	if e.Err == nil {
		return []error{sentinel}
	}
	return []error{e.Err, sentinel}
}

// NewProviderError builds a classified provider error.
func NewProviderError(provider string, kind ErrorKind, status int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, StatusCode: status, Err: err}
}

// KindOf extracts the ErrorKind from err, defaulting to KindTransient for
// unclassified failures.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransient
}

// RateLimitExceededError is returned when a user exhausted their request window.
type RateLimitExceededError struct {
	RetryAfterSeconds int
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded: retry after %ds", e.RetryAfterSeconds)
}

func (e *RateLimitExceededError) Unwrap() error { return ErrRateLimited }

// ValidationError reports bad input to the context store, cache key derivation
// or the analyze entry point. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidArgument, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
