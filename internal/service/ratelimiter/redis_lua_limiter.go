package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLuaLimiter shares sliding windows across replicas through a Redis
// sorted set per user. The whole check runs as one Lua script so concurrent
// requests for the same user cannot double-admit.
type RedisLuaLimiter struct {
	redis       *redis.Client
	script      *redis.Script
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

// NewRedisLuaLimiter returns nil when rdb is nil so callers can fall back.
func NewRedisLuaLimiter(rdb *redis.Client, maxRequests int, window time.Duration) *RedisLuaLimiter {
	if rdb == nil {
		return nil
	}
	return &RedisLuaLimiter{
		redis:       rdb,
		script:      redis.NewScript(luaSlidingWindowScript),
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// Scores are unix milliseconds. Entries older than now-window are removed,
// an entry exactly at the boundary stays in the window.
const luaSlidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]
local min_kept = ARGV[5]

redis.call("ZREMRANGEBYSCORE", key, "-inf", "(" .. min_kept)

local count = redis.call("ZCARD", key)
if count < limit then
  redis.call("ZADD", key, ARGV[1], member)
  redis.call("PEXPIRE", key, ARGV[2])
  return { 1, limit - count - 1, 0 }
end

local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
local retry_after = window
if oldest[2] ~= nil then
  retry_after = window - (now - tonumber(oldest[2]))
end
return { 0, 0, retry_after }
`

// Admit runs the sliding-window script for userID.
func (l *RedisLuaLimiter) Admit(ctx context.Context, userID int64) (Decision, error) {
	if l == nil || l.redis == nil {
		return Decision{Allowed: true}, nil
	}
	nowMs := l.now().UnixMilli()
	key := fmt.Sprintf("rate:user:%d", userID)
	member := fmt.Sprintf("%d-%s", nowMs, uuid.NewString())

	res, err := l.script.Run(ctx, l.redis, []string{key}, nowMs, l.window.Milliseconds(), l.maxRequests, member, strconv.FormatInt(nowMs-l.window.Milliseconds(), 10)).Result()
	if err != nil {
		slog.Error("redis rate limiter script error", slog.Int64("user_id", userID), slog.Any("error", err))
		// Fail open on Redis errors to avoid hard outages.
		return Decision{Allowed: true}, err
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) < 3 {
		slog.Error("redis rate limiter unexpected script result", slog.Int64("user_id", userID), slog.Any("result", res))
		return Decision{Allowed: true}, nil
	}

	if toInt64(vals[0]) == 1 {
		return Decision{Allowed: true, Remaining: int(toInt64(vals[1]))}, nil
	}
	retryAfter := time.Duration(toInt64(vals[2])) * time.Millisecond
	return Decision{Allowed: false, RetryAfterSeconds: ceilSeconds(retryAfter)}, nil
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}
