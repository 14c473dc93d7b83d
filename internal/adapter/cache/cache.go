// Package cache provides the bounded TTL+LRU response cache used to serve
// repeated analysis requests without contacting a provider.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/ai-analysis-core/internal/domain"
)

// Entry is a cached analysis with its lifecycle timestamps.
type Entry struct {
	Key            string
	Value          domain.AnalysisResult
	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastAccessedAt time.Time
}

// Stats are cumulative counters since construction.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Expired   int64
	Entries   int
}

// ResponseCache is a sharded hybrid TTL + LRU cache. Each shard owns its lock
// and recency list; shard capacities sum to exactly MaxEntries so the cache as
// a whole never holds more than that. With a single shard LRU order is global.
// It is safe for concurrent use.
type ResponseCache struct {
	shards     []*shard
	defaultTTL time.Duration
	now        func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	expired   atomic.Int64
}

type shard struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	// front is most recently used
	order *list.List
}

// Option configures a ResponseCache.
type Option func(*ResponseCache)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(c *ResponseCache) { c.now = now }
}

// New creates a cache bounded to maxEntries across the given number of shards.
// If maxEntries <= 0 a single-entry cache is created. With more than one shard
// eviction is per shard: a full shard evicts its own LRU entry even while the
// cache as a whole holds fewer than maxEntries. Use one shard for exact global LRU.
func New(maxEntries, shards int, defaultTTL time.Duration, opts ...Option) *ResponseCache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	if shards <= 0 {
		shards = 1
	}
	if shards > maxEntries {
		shards = maxEntries
	}
	c := &ResponseCache{defaultTTL: defaultTTL, now: time.Now}
	base, extra := maxEntries/shards, maxEntries%shards
	c.shards = make([]*shard, shards)
	for i := range c.shards {
		capacity := base
		if i < extra {
			capacity++
		}
		c.shards[i] = &shard{capacity: capacity, items: make(map[string]*list.Element, capacity), order: list.New()}
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *ResponseCache) shardFor(key string) *shard {
	if len(c.shards) == 1 {
		return c.shards[0]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

// Get returns the cached value for key. Expired entries are evicted and
// reported as a miss; a hit becomes the most recently used entry.
func (c *ResponseCache) Get(key string) (domain.AnalysisResult, bool) {
	s := c.shardFor(key)
	now := c.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.items[key]
	if !ok {
		c.misses.Add(1)
		return domain.AnalysisResult{}, false
	}
	e := el.Value.(*Entry)
	if !now.Before(e.ExpiresAt) {
		s.remove(el)
		c.expired.Add(1)
		c.misses.Add(1)
		return domain.AnalysisResult{}, false
	}
	e.LastAccessedAt = now
	s.order.MoveToFront(el)
	c.hits.Add(1)
	return e.Value.Clone(), true
}

// Put inserts or overwrites key. A non-positive ttl uses the cache default.
// When the shard is full, expired entries go first, then the least recently used.
func (c *ResponseCache) Put(key string, value domain.AnalysisResult, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	s := c.shardFor(key)
	now := c.now()
	stored := value.Clone()
	stored.FromCache = false

	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.items[key]; ok {
		e := el.Value.(*Entry)
		e.Value = stored
		e.ExpiresAt = now.Add(ttl)
		e.LastAccessedAt = now
		s.order.MoveToFront(el)
		return
	}
	if len(s.items) >= s.capacity {
		if n := s.removeExpired(now); n > 0 {
			c.expired.Add(int64(n))
		}
	}
	for len(s.items) >= s.capacity {
		back := s.order.Back()
		if back == nil {
			break
		}
		s.remove(back)
		c.evictions.Add(1)
	}
	e := &Entry{Key: key, Value: stored, CreatedAt: now, ExpiresAt: now.Add(ttl), LastAccessedAt: now}
	s.items[key] = s.order.PushFront(e)
}

// Delete removes key if present.
func (c *ResponseCache) Delete(key string) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.items[key]; ok {
		s.remove(el)
	}
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (c *ResponseCache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += len(s.items)
		s.mu.Unlock()
	}
	return n
}

// Purge drops every entry.
func (c *ResponseCache) Purge() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.items = make(map[string]*list.Element, s.capacity)
		s.order.Init()
		s.mu.Unlock()
	}
}

// Stats returns a snapshot of the cache counters.
func (c *ResponseCache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Expired:   c.expired.Load(),
		Entries:   c.Len(),
	}
}

func (s *shard) remove(el *list.Element) {
	e := s.order.Remove(el).(*Entry)
	delete(s.items, e.Key)
}

func (s *shard) removeExpired(now time.Time) int {
	n := 0
	for el := s.order.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*Entry).ExpiresAt) {
			s.remove(el)
			n++
		}
		el = prev
	}
	return n
}

// Normalize trims, lowercases and collapses whitespace runs so superficially
// different spellings of the same request share a key.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Fingerprint returns the hex SHA-256 of the normalized text.
func Fingerprint(text string) (string, error) {
	n := Normalize(text)
	if n == "" {
		return "", domain.NewValidationError("text", "empty after normalization")
	}
	h := sha256.Sum256([]byte(n))
	return hex.EncodeToString(h[:]), nil
}
