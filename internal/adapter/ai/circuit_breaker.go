package ai

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fairyhunter13/ai-analysis-core/internal/adapter/observability"
	"github.com/fairyhunter13/ai-analysis-core/internal/domain"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	// CircuitClosed indicates the circuit is allowing requests to pass through.
	CircuitClosed CircuitState = iota
	// CircuitOpen indicates the circuit is blocking requests due to failures.
	CircuitOpen
	// CircuitHalfOpen indicates a single trial request is probing recovery.
	CircuitHalfOpen
)

// String returns a string representation of the circuit state
func (cs CircuitState) String() string {
	switch cs {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds the thresholds shared by every provider breaker.
type BreakerConfig struct {
	// FailureThreshold consecutive outage failures open the circuit.
	FailureThreshold int
	// RateLimitThreshold consecutive provider 429s open the circuit; 0 disables.
	RateLimitThreshold int
	// RecoveryTimeout is how long the circuit stays open before a trial.
	RecoveryTimeout time.Duration
}

// DefaultBreakerConfig mirrors the service defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, RateLimitThreshold: 10, RecoveryTimeout: 60 * time.Second}
}

// CircuitBreaker tracks one provider's health. RecordSuccess and RecordFailure
// are the only write paths; all methods are safe for concurrent use.
type CircuitBreaker struct {
	mu                  sync.Mutex
	name                string
	cfg                 BreakerConfig
	now                 func() time.Time
	state               CircuitState
	consecutiveFailures int
	rateLimitFailures   int
	trialInFlight       bool
	lastFailureTime     time.Time
	lastSuccessTime     time.Time
	totalRequests       int
	totalFailures       int
	totalAuthFailures   int
	totalRateLimited    int
}

// BreakerOption configures a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithBreakerClock overrides the time source (tests).
func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(cb *CircuitBreaker) { cb.now = now }
}

// NewCircuitBreaker creates a closed circuit breaker for a provider.
func NewCircuitBreaker(name string, cfg BreakerConfig, opts ...BreakerOption) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultBreakerConfig().RecoveryTimeout
	}
	cb := &CircuitBreaker{name: name, cfg: cfg, now: time.Now, state: CircuitClosed}
	for _, o := range opts {
		o(cb)
	}
	observability.CircuitBreakerState.WithLabelValues(name).Set(float64(CircuitClosed))
	return cb
}

// Name returns the provider this breaker guards.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Allow reports whether a call may be attempted. An open circuit whose
// recovery timeout has elapsed moves to half-open and hands the single trial
// token to this caller; concurrent callers are refused until the trial reports.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if !cb.recoveryDue(cb.now()) {
			return false
		}
		cb.transition(CircuitHalfOpen)
		cb.trialInFlight = true
		return true
	case CircuitHalfOpen:
		if cb.trialInFlight {
			return false
		}
		cb.trialInFlight = true
		return true
	default:
		return false
	}
}

// Release hands back an unused half-open trial token when the caller gave up
// before getting a verdict (for example its context was cancelled).
func (cb *CircuitBreaker) Release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitHalfOpen {
		cb.trialInFlight = false
	}
}

// RecordSuccess records a successful request
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++
	cb.lastSuccessTime = cb.now()
	cb.consecutiveFailures = 0
	cb.rateLimitFailures = 0
	cb.trialInFlight = false

	switch cb.state {
	case CircuitHalfOpen:
		cb.transition(CircuitClosed)
		slog.Info("circuit breaker closed after successful recovery",
			slog.String("provider", cb.name),
			slog.Float64("success_rate", cb.successRate()))
	case CircuitOpen:
		// A call admitted before the circuit opened came back healthy.
		cb.transition(CircuitClosed)
		slog.Warn("circuit breaker closed by late success", slog.String("provider", cb.name))
	}
}

// RecordFailure records a failed request of the given kind. Auth failures do
// not count toward the outage threshold and 429s use their own counter, but
// any failure of a half-open trial reopens the circuit.
func (cb *CircuitBreaker) RecordFailure(kind domain.ErrorKind) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	cb.totalRequests++
	cb.totalFailures++

	if cb.state == CircuitHalfOpen {
		cb.trialInFlight = false
		cb.lastFailureTime = now
		cb.transition(CircuitOpen)
		slog.Warn("circuit breaker trial failed, reopening",
			slog.String("provider", cb.name),
			slog.String("kind", kind.String()))
		return
	}

	switch kind {
	case domain.KindAuth:
		cb.totalAuthFailures++
		return
	case domain.KindRateLimited:
		cb.totalRateLimited++
		cb.rateLimitFailures++
		cb.lastFailureTime = now
		if cb.state == CircuitClosed && cb.cfg.RateLimitThreshold > 0 && cb.rateLimitFailures >= cb.cfg.RateLimitThreshold {
			cb.transition(CircuitOpen)
			slog.Warn("circuit breaker opened due to provider rate limiting",
				slog.String("provider", cb.name),
				slog.Int("rate_limit_failures", cb.rateLimitFailures),
				slog.Int("threshold", cb.cfg.RateLimitThreshold))
		}
		return
	}

	cb.consecutiveFailures++
	cb.lastFailureTime = now
	if cb.state == CircuitClosed && cb.consecutiveFailures >= cb.cfg.FailureThreshold {
		cb.transition(CircuitOpen)
		slog.Warn("circuit breaker opened due to consecutive failures",
			slog.String("provider", cb.name),
			slog.Int("failure_count", cb.consecutiveFailures),
			slog.Int("threshold", cb.cfg.FailureThreshold),
			slog.Float64("failure_rate", cb.failureRate()))
	}
}

// GetState returns the current circuit state. An open circuit past its
// recovery timeout still reports open until a caller claims the trial; use
// Available to ask whether the next request would be let through.
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Available reports whether Allow would currently admit a call, without
// claiming the half-open trial token.
func (cb *CircuitBreaker) Available() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.availableLocked(cb.now())
}

func (cb *CircuitBreaker) availableLocked(now time.Time) bool {
	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		return cb.recoveryDue(now)
	case CircuitHalfOpen:
		return !cb.trialInFlight
	default:
		return false
	}
}

func (cb *CircuitBreaker) recoveryDue(now time.Time) bool {
	return now.Sub(cb.lastFailureTime) >= cb.cfg.RecoveryTimeout
}

// BreakerStats is a point-in-time snapshot of a breaker.
type BreakerStats struct {
	Provider            string    `json:"provider"`
	State               string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	RateLimitFailures   int       `json:"rate_limit_failures"`
	TotalRequests       int       `json:"total_requests"`
	TotalFailures       int       `json:"total_failures"`
	TotalAuthFailures   int       `json:"total_auth_failures"`
	TotalRateLimited    int       `json:"total_rate_limited"`
	SuccessRate         float64   `json:"success_rate"`
	// Recovering marks an open circuit whose recovery timeout has elapsed; the
	// next request gets the trial call.
	Recovering          bool      `json:"recovering"`
	Available           bool      `json:"available"`
	LastFailure         time.Time `json:"last_failure"`
	LastSuccess         time.Time `json:"last_success"`
}

// GetStats returns circuit breaker statistics
func (cb *CircuitBreaker) GetStats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	return BreakerStats{
		Provider:            cb.name,
		State:               cb.state.String(),
		ConsecutiveFailures: cb.consecutiveFailures,
		RateLimitFailures:   cb.rateLimitFailures,
		TotalRequests:       cb.totalRequests,
		TotalFailures:       cb.totalFailures,
		TotalAuthFailures:   cb.totalAuthFailures,
		TotalRateLimited:    cb.totalRateLimited,
		SuccessRate:         cb.successRate(),
		Recovering:          cb.state == CircuitOpen && cb.recoveryDue(now),
		Available:           cb.availableLocked(now),
		LastFailure:         cb.lastFailureTime,
		LastSuccess:         cb.lastSuccessTime,
	}
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to CircuitState) {
	cb.state = to
	observability.CircuitBreakerState.WithLabelValues(cb.name).Set(float64(to))
}

func (cb *CircuitBreaker) successRate() float64 {
	if cb.totalRequests == 0 {
		return 0.0
	}
	return float64(cb.totalRequests-cb.totalFailures) / float64(cb.totalRequests)
}

func (cb *CircuitBreaker) failureRate() float64 {
	if cb.totalRequests == 0 {
		return 0.0
	}
	return float64(cb.totalFailures) / float64(cb.totalRequests)
}

// CircuitBreakerManager owns one circuit breaker per provider.
type CircuitBreakerManager struct {
	mu       sync.RWMutex
	cfg      BreakerConfig
	opts     []BreakerOption
	breakers map[string]*CircuitBreaker
}

// NewCircuitBreakerManager creates a new circuit breaker manager
func NewCircuitBreakerManager(cfg BreakerConfig, opts ...BreakerOption) *CircuitBreakerManager {
	return &CircuitBreakerManager{
		cfg:      cfg,
		opts:     opts,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// GetBreaker returns or creates the circuit breaker for a provider
func (cbm *CircuitBreakerManager) GetBreaker(provider string) *CircuitBreaker {
	cbm.mu.RLock()
	breaker, exists := cbm.breakers[provider]
	cbm.mu.RUnlock()
	if exists {
		return breaker
	}

	cbm.mu.Lock()
	defer cbm.mu.Unlock()
	if breaker, exists := cbm.breakers[provider]; exists {
		return breaker
	}
	breaker = NewCircuitBreaker(provider, cbm.cfg, cbm.opts...)
	cbm.breakers[provider] = breaker
	return breaker
}

// GetAllStats returns statistics for all circuit breakers, sorted by provider.
func (cbm *CircuitBreakerManager) GetAllStats() []BreakerStats {
	cbm.mu.RLock()
	defer cbm.mu.RUnlock()

	stats := make([]BreakerStats, 0, len(cbm.breakers))
	for _, breaker := range cbm.breakers {
		stats = append(stats, breaker.GetStats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Provider < stats[j].Provider })
	return stats
}

// GetHealthyProviders returns providers whose breaker would admit a call now,
// including open circuits that are due a recovery trial.
func (cbm *CircuitBreakerManager) GetHealthyProviders() []string {
	cbm.mu.RLock()
	defer cbm.mu.RUnlock()

	var healthy []string
	for name, breaker := range cbm.breakers {
		if breaker.Available() {
			healthy = append(healthy, name)
		}
	}
	sort.Strings(healthy)
	return healthy
}
