package ai

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-analysis-core/internal/domain"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func newManualClock() *manualClock {
	return &manualClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(clk *manualClock) *CircuitBreaker {
	return NewCircuitBreaker("test-provider", BreakerConfig{
		FailureThreshold:   3,
		RateLimitThreshold: 4,
		RecoveryTimeout:    30 * time.Second,
	}, WithBreakerClock(clk.Now))
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker("p", BreakerConfig{})
	assert.Equal(t, "p", cb.Name())
	assert.Equal(t, CircuitClosed, cb.GetState())
	assert.Equal(t, 5, cb.cfg.FailureThreshold)
	assert.Equal(t, 60*time.Second, cb.cfg.RecoveryTimeout)
	assert.True(t, cb.Allow())
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(42).String())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	clk := newManualClock()
	cb := newTestBreaker(clk)

	cb.RecordFailure(domain.KindTransient)
	cb.RecordFailure(domain.KindMalformed)
	assert.Equal(t, CircuitClosed, cb.GetState())
	cb.RecordFailure(domain.KindTransient)
	assert.Equal(t, CircuitOpen, cb.GetState())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_SuccessResetsConsecutiveCount(t *testing.T) {
	clk := newManualClock()
	cb := newTestBreaker(clk)

	cb.RecordFailure(domain.KindTransient)
	cb.RecordFailure(domain.KindTransient)
	cb.RecordSuccess()
	cb.RecordFailure(domain.KindTransient)
	cb.RecordFailure(domain.KindTransient)
	assert.Equal(t, CircuitClosed, cb.GetState())
	assert.Equal(t, 2, cb.GetStats().ConsecutiveFailures)
}

func TestCircuitBreaker_AuthFailuresDoNotOpen(t *testing.T) {
	clk := newManualClock()
	cb := newTestBreaker(clk)

	for i := 0; i < 10; i++ {
		cb.RecordFailure(domain.KindAuth)
	}
	assert.Equal(t, CircuitClosed, cb.GetState())
	stats := cb.GetStats()
	assert.Equal(t, 10, stats.TotalAuthFailures)
	assert.Equal(t, 0, stats.ConsecutiveFailures)
}

func TestCircuitBreaker_RateLimitUsesOwnThreshold(t *testing.T) {
	clk := newManualClock()
	cb := newTestBreaker(clk)

	for i := 0; i < 3; i++ {
		cb.RecordFailure(domain.KindRateLimited)
	}
	assert.Equal(t, CircuitClosed, cb.GetState(), "below the lenient 429 threshold")
	assert.Equal(t, 0, cb.GetStats().ConsecutiveFailures)

	cb.RecordFailure(domain.KindRateLimited)
	assert.Equal(t, CircuitOpen, cb.GetState())
}

func TestCircuitBreaker_RateLimitThresholdDisabled(t *testing.T) {
	cb := NewCircuitBreaker("p", BreakerConfig{FailureThreshold: 2, RecoveryTimeout: time.Second})
	for i := 0; i < 50; i++ {
		cb.RecordFailure(domain.KindRateLimited)
	}
	assert.Equal(t, CircuitClosed, cb.GetState())
}

func TestCircuitBreaker_HalfOpenAfterRecoveryTimeout(t *testing.T) {
	clk := newManualClock()
	cb := newTestBreaker(clk)
	for i := 0; i < 3; i++ {
		cb.RecordFailure(domain.KindTransient)
	}
	require.Equal(t, CircuitOpen, cb.GetState())

	clk.Advance(29 * time.Second)
	assert.False(t, cb.Allow())

	clk.Advance(time.Second)
	assert.True(t, cb.Allow(), "first caller after timeout gets the trial")
	assert.Equal(t, CircuitHalfOpen, cb.GetState())
	assert.False(t, cb.Allow(), "only one trial in flight")
}

func TestCircuitBreaker_TrialSuccessCloses(t *testing.T) {
	clk := newManualClock()
	cb := newTestBreaker(clk)
	for i := 0; i < 3; i++ {
		cb.RecordFailure(domain.KindTransient)
	}
	clk.Advance(30 * time.Second)
	require.True(t, cb.Allow())

	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.GetState())
	assert.True(t, cb.Allow())
	assert.Equal(t, 0, cb.GetStats().ConsecutiveFailures)
}

func TestCircuitBreaker_TrialFailureReopens(t *testing.T) {
	for _, kind := range []domain.ErrorKind{domain.KindTransient, domain.KindAuth, domain.KindRateLimited, domain.KindMalformed} {
		t.Run(kind.String(), func(t *testing.T) {
			clk := newManualClock()
			cb := newTestBreaker(clk)
			for i := 0; i < 3; i++ {
				cb.RecordFailure(domain.KindTransient)
			}
			clk.Advance(30 * time.Second)
			require.True(t, cb.Allow())

			cb.RecordFailure(kind)
			assert.Equal(t, CircuitOpen, cb.GetState())
			assert.False(t, cb.Allow(), "recovery timeout restarts from the trial failure")

			clk.Advance(30 * time.Second)
			assert.True(t, cb.Allow())
		})
	}
}

func TestCircuitBreaker_ReleaseReturnsTrialToken(t *testing.T) {
	clk := newManualClock()
	cb := newTestBreaker(clk)
	for i := 0; i < 3; i++ {
		cb.RecordFailure(domain.KindTransient)
	}
	clk.Advance(30 * time.Second)
	require.True(t, cb.Allow())
	require.False(t, cb.Allow())

	cb.Release()
	assert.Equal(t, CircuitHalfOpen, cb.GetState())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_ConcurrentTrialIsExclusive(t *testing.T) {
	clk := newManualClock()
	cb := newTestBreaker(clk)
	for i := 0; i < 3; i++ {
		cb.RecordFailure(domain.KindTransient)
	}
	clk.Advance(time.Minute)

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cb.Allow() {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), granted.Load())
}

func TestCircuitBreaker_GetStats(t *testing.T) {
	clk := newManualClock()
	cb := newTestBreaker(clk)
	cb.RecordSuccess()
	cb.RecordFailure(domain.KindTransient)
	cb.RecordFailure(domain.KindRateLimited)

	stats := cb.GetStats()
	assert.Equal(t, "test-provider", stats.Provider)
	assert.Equal(t, "closed", stats.State)
	assert.Equal(t, 3, stats.TotalRequests)
	assert.Equal(t, 2, stats.TotalFailures)
	assert.Equal(t, 1, stats.TotalRateLimited)
	assert.InDelta(t, 1.0/3.0, stats.SuccessRate, 1e-9)
	assert.Equal(t, clk.Now(), stats.LastSuccess)
}

func TestCircuitBreakerManager(t *testing.T) {
	clk := newManualClock()
	m := NewCircuitBreakerManager(BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Minute}, WithBreakerClock(clk.Now))

	a := m.GetBreaker("alpha")
	assert.Same(t, a, m.GetBreaker("alpha"))
	b := m.GetBreaker("beta")
	b.RecordFailure(domain.KindTransient)

	assert.Equal(t, []string{"alpha"}, m.GetHealthyProviders())
	stats := m.GetAllStats()
	require.Len(t, stats, 2)
	assert.Equal(t, "alpha", stats[0].Provider)
	assert.Equal(t, "open", stats[1].State)
}

func TestCircuitBreaker_ReportsRecoveryWithoutClaimingTrial(t *testing.T) {
	clk := newManualClock()
	m := NewCircuitBreakerManager(BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Minute}, WithBreakerClock(clk.Now))
	b := m.GetBreaker("beta")
	b.RecordFailure(domain.KindTransient)
	m.GetBreaker("alpha")

	assert.False(t, b.Available())
	assert.False(t, b.GetStats().Recovering)

	clk.Advance(time.Minute)
	assert.True(t, b.Available())
	assert.Equal(t, []string{"alpha", "beta"}, m.GetHealthyProviders())
	stats := b.GetStats()
	assert.Equal(t, "open", stats.State)
	assert.True(t, stats.Recovering)
	assert.True(t, stats.Available)

	// Reporting must not consume the trial token.
	require.True(t, b.Allow())
	assert.Equal(t, CircuitHalfOpen, b.GetState())
	assert.False(t, b.Available(), "trial in flight")
	assert.Equal(t, []string{"alpha"}, m.GetHealthyProviders())
	assert.False(t, b.GetStats().Recovering)
}
