package ratelimiter

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestMemoryLimiter_DeniesAfterMaxRequests(t *testing.T) {
	clk := newFakeClock()
	l := NewMemoryLimiter(3, 10*time.Second, WithClock(clk.Now))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Admit(ctx, 42)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should be admitted", i)
		assert.Equal(t, 2-i, d.Remaining)
		clk.Advance(time.Second)
	}

	d, err := l.Admit(ctx, 42)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	// oldest at t0, now t0+3s, window 10s
	assert.Equal(t, 7, d.RetryAfterSeconds)
}

func TestMemoryLimiter_AllowsAgainAfterOldestAgesOut(t *testing.T) {
	clk := newFakeClock()
	l := NewMemoryLimiter(2, 10*time.Second, WithClock(clk.Now))
	ctx := context.Background()

	d, _ := l.Admit(ctx, 1)
	require.True(t, d.Allowed)
	clk.Advance(4 * time.Second)
	d, _ = l.Admit(ctx, 1)
	require.True(t, d.Allowed)

	// exactly at the window boundary the oldest entry still counts
	clk.Advance(6 * time.Second)
	d, _ = l.Admit(ctx, 1)
	assert.False(t, d.Allowed)
	assert.Equal(t, 1, d.RetryAfterSeconds)

	clk.Advance(time.Millisecond)
	d, _ = l.Admit(ctx, 1)
	assert.True(t, d.Allowed)

	// the second entry (t0+4s) is still live, and so is the one just added
	d, _ = l.Admit(ctx, 1)
	assert.False(t, d.Allowed)
	assert.Equal(t, 4, d.RetryAfterSeconds)
}

func TestMemoryLimiter_RetryAfterRoundsUp(t *testing.T) {
	clk := newFakeClock()
	l := NewMemoryLimiter(1, 10*time.Second, WithClock(clk.Now))
	_, _ = l.Admit(context.Background(), 5)
	clk.Advance(2500 * time.Millisecond)
	d, _ := l.Admit(context.Background(), 5)
	assert.False(t, d.Allowed)
	assert.Equal(t, 8, d.RetryAfterSeconds)
}

func TestMemoryLimiter_UsersAreIndependent(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	ctx := context.Background()
	d, _ := l.Admit(ctx, 1)
	assert.True(t, d.Allowed)
	d, _ = l.Admit(ctx, 1)
	assert.False(t, d.Allowed)
	d, _ = l.Admit(ctx, 2)
	assert.True(t, d.Allowed)
}

func TestMemoryLimiter_ConcurrentSameUserNeverOverAdmits(t *testing.T) {
	const max = 25
	l := NewMemoryLimiter(max, time.Hour, WithShards(4))
	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Admit(context.Background(), 7)
			if err == nil && d.Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(max), admitted.Load())
}

func TestMemoryLimiter_SweepRemovesIdleWindows(t *testing.T) {
	clk := newFakeClock()
	l := NewMemoryLimiter(2, 10*time.Second, WithClock(clk.Now))
	ctx := context.Background()
	_, _ = l.Admit(ctx, 1)
	_, _ = l.Admit(ctx, 2)
	clk.Advance(5 * time.Second)
	_, _ = l.Admit(ctx, 2)
	require.Equal(t, 2, l.Len())

	clk.Advance(6 * time.Second)
	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())

	// a swept user starts with a fresh window
	d, _ := l.Admit(ctx, 1)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
}

func TestMemoryLimiter_ConcurrentSweepAndAdmit(t *testing.T) {
	l := NewMemoryLimiter(1000, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.RunJanitor(ctx, time.Millisecond)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if d, _ := l.Admit(context.Background(), uid%5); d.Allowed {
					admitted.Add(1)
				}
			}
		}(int64(i))
	}
	wg.Wait()
	assert.Equal(t, int64(1000), admitted.Load())
}

func TestCeilSeconds(t *testing.T) {
	assert.Equal(t, 1, ceilSeconds(0))
	assert.Equal(t, 1, ceilSeconds(-time.Second))
	assert.Equal(t, 1, ceilSeconds(300*time.Millisecond))
	assert.Equal(t, 2, ceilSeconds(1001*time.Millisecond))
}
