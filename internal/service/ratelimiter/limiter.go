// Package ratelimiter implements per-user sliding-window admission control.
package ratelimiter

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed           bool
	RetryAfterSeconds int
	Remaining         int
}

// Limiter admits or rejects a request for a user without blocking.
type Limiter interface {
	Admit(ctx context.Context, userID int64) (Decision, error)
}

const defaultShards = 32

// MemoryLimiter keeps one sliding window per user in process memory.
// Windows are created lazily and pruned on every check; RunJanitor drops
// windows that have gone idle.
type MemoryLimiter struct {
	maxRequests int
	window      time.Duration
	now         func() time.Time
	shards      []*limiterShard
}

type limiterShard struct {
	mu      sync.Mutex
	windows map[int64]*userWindow
}

type userWindow struct {
	mu     sync.Mutex
	stamps []time.Time
	// dead is set by the janitor after removal; holders must look the window up again.
	dead bool
}

// Option configures a MemoryLimiter.
type Option func(*MemoryLimiter)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(l *MemoryLimiter) { l.now = now }
}

// WithShards sets the number of lock shards used for the user map.
func WithShards(n int) Option {
	return func(l *MemoryLimiter) {
		if n > 0 {
			l.shards = newShards(n)
		}
	}
}

// NewMemoryLimiter creates a limiter admitting maxRequests per window per user.
func NewMemoryLimiter(maxRequests int, window time.Duration, opts ...Option) *MemoryLimiter {
	l := &MemoryLimiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		shards:      newShards(defaultShards),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func newShards(n int) []*limiterShard {
	s := make([]*limiterShard, n)
	for i := range s {
		s[i] = &limiterShard{windows: make(map[int64]*userWindow)}
	}
	return s
}

func (l *MemoryLimiter) shardFor(userID int64) *limiterShard {
	h := uint64(userID) * 0x9E3779B97F4A7C15
	return l.shards[h%uint64(len(l.shards))]
}

func (l *MemoryLimiter) windowFor(userID int64) *userWindow {
	s := l.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[userID]
	if !ok {
		w = &userWindow{stamps: make([]time.Time, 0, l.maxRequests)}
		s.windows[userID] = w
	}
	return w
}

// Admit records a request for userID if the trailing window has room.
func (l *MemoryLimiter) Admit(_ context.Context, userID int64) (Decision, error) {
	for {
		w := l.windowFor(userID)
		w.mu.Lock()
		if w.dead {
			w.mu.Unlock()
			continue
		}
		d := l.admitLocked(w, l.now())
		w.mu.Unlock()
		if !d.Allowed {
			slog.Debug("rate limit denied",
				slog.Int64("user_id", userID),
				slog.Int("retry_after_seconds", d.RetryAfterSeconds))
		}
		return d, nil
	}
}

func (l *MemoryLimiter) admitLocked(w *userWindow, now time.Time) Decision {
	w.prune(now.Add(-l.window))
	if len(w.stamps) < l.maxRequests {
		w.stamps = append(w.stamps, now)
		return Decision{Allowed: true, Remaining: l.maxRequests - len(w.stamps)}
	}
	wait := l.window - now.Sub(w.stamps[0])
	return Decision{Allowed: false, RetryAfterSeconds: ceilSeconds(wait)}
}

// prune drops timestamps strictly older than cutoff, keeping the slice compact.
func (w *userWindow) prune(cutoff time.Time) {
	i := 0
	for i < len(w.stamps) && w.stamps[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return
	}
	n := copy(w.stamps, w.stamps[i:])
	w.stamps = w.stamps[:n]
}

// ceilSeconds rounds a wait up to whole seconds, never below one.
func ceilSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

// Sweep removes windows that hold no live timestamps and returns how many were dropped.
func (l *MemoryLimiter) Sweep() int {
	cutoff := l.now().Add(-l.window)
	removed := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for id, w := range s.windows {
			w.mu.Lock()
			w.prune(cutoff)
			if len(w.stamps) == 0 {
				w.dead = true
				delete(s.windows, id)
				removed++
			}
			w.mu.Unlock()
		}
		s.mu.Unlock()
	}
	return removed
}

// Len reports the number of tracked user windows.
func (l *MemoryLimiter) Len() int {
	n := 0
	for _, s := range l.shards {
		s.mu.Lock()
		n += len(s.windows)
		s.mu.Unlock()
	}
	return n
}

// RunJanitor sweeps idle windows every interval until ctx is done.
func (l *MemoryLimiter) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("rate limiter janitor stopping")
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				slog.Debug("rate limiter windows swept", slog.Int("removed", n))
			}
		}
	}
}
