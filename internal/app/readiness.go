package app

import (
	"context"

	"github.com/redis/go-redis/v9"

	httpserver "github.com/fairyhunter13/ai-analysis-core/internal/adapter/httpserver"
)

//go:generate mockery --name=Pinger --with-expecter --filename=pinger.go

// Pinger is anything that can report connectivity to a dependency.
type Pinger interface{ Ping(ctx context.Context) error }

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping implements Pinger.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// RedisPinger pings a go-redis client.
func RedisPinger(rdb redis.UniversalClient) Pinger {
	return PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
}

// Dependencies lists the optional backends; nil entries are not configured
// and are left out of readiness.
type Dependencies struct {
	DB    Pinger
	Redis Pinger
	Kafka Pinger
}

// BuildReadinessChecks returns one check per configured dependency.
func BuildReadinessChecks(d Dependencies) []httpserver.ReadinessCheck {
	var checks []httpserver.ReadinessCheck
	add := func(name string, p Pinger) {
		if p != nil {
			checks = append(checks, httpserver.ReadinessCheck{Name: name, Check: p.Ping})
		}
	}
	add("db", d.DB)
	add("redis", d.Redis)
	add("kafka", d.Kafka)
	return checks
}
