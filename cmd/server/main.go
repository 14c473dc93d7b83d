// Command server starts the AI analysis HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-analysis-core/internal/adapter/ai"
	"github.com/fairyhunter13/ai-analysis-core/internal/adapter/ai/providers"
	"github.com/fairyhunter13/ai-analysis-core/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-analysis-core/internal/adapter/cache"
	httpserver "github.com/fairyhunter13/ai-analysis-core/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-analysis-core/internal/adapter/observability"
	"github.com/fairyhunter13/ai-analysis-core/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/ai-analysis-core/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-analysis-core/internal/app"
	"github.com/fairyhunter13/ai-analysis-core/internal/config"
	"github.com/fairyhunter13/ai-analysis-core/internal/domain"
	"github.com/fairyhunter13/ai-analysis-core/internal/service/conversation"
	"github.com/fairyhunter13/ai-analysis-core/internal/service/ratelimiter"
	"github.com/fairyhunter13/ai-analysis-core/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(observability.SetupLogger(cfg))
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providerCfgs, err := cfg.Providers()
	if err != nil {
		return err
	}
	if len(providerCfgs) == 0 {
		slog.Warn("no providers configured; every analysis will be degraded")
	}
	adapters, err := providers.BuildAll(providerCfgs)
	if err != nil {
		return err
	}
	for _, p := range adapters {
		slog.Info("provider enabled",
			slog.String("provider", p.Name()),
			slog.Int("priority", p.Priority()),
			slog.String("model", p.Config().Model))
	}

	var deps app.Dependencies

	// Conversation store, optionally backed by Postgres.
	storeOpts := []conversation.Option{conversation.WithCounter(tokencount.NewCounter())}
	if cfg.DBURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer pool.Close()
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		storeOpts = append(storeOpts, conversation.WithRepository(postgres.NewMessageRepo(pool)))
		deps.DB = pool
		slog.Info("conversation persistence enabled")
	}
	store := conversation.NewStore(conversation.Config{
		MaxMessagesPerUser: cfg.ContextMaxMessagesPerUser,
		RetentionWindow:    cfg.ContextRetentionWindow,
		MinContentLength:   cfg.ContextMinLength,
		MaxContentLength:   cfg.ContextMaxLength,
	}, storeOpts...)
	go store.RunPurger(ctx, cfg.ContextPurgeInterval)

	limiter, err := buildLimiter(ctx, cfg, &deps)
	if err != nil {
		return err
	}

	var events domain.EventPublisher = redpanda.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := redpanda.NewProducer(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return fmt.Errorf("redpanda producer: %w", err)
		}
		defer producer.Close()
		events = producer
		deps.Kafka = producer
	}

	breakers := ai.NewCircuitBreakerManager(ai.BreakerConfig{
		FailureThreshold:   cfg.CircuitBreakerFailureThreshold,
		RateLimitThreshold: cfg.CircuitBreakerRateLimitThreshold,
		RecoveryTimeout:    cfg.CircuitBreakerRecoveryTimeout,
	})
	responses := cache.New(cfg.CacheMaxEntries, cfg.CacheShards, cfg.CacheTTL)

	analyzer := usecase.NewAnalyzeService(usecase.AnalyzeConfig{
		MinInputLength:  cfg.ContextMinLength,
		MaxInputLength:  cfg.AnalyzeMaxInputLength,
		MaxTotalLatency: cfg.MaxTotalLatency(providerCfgs),
		CacheTTL:        cfg.CacheTTL,
		HistoryMessages: cfg.ContextHistoryMessages,
		TokenBudget:     cfg.ContextTokenBudget,
		MaxReplyLength:  cfg.ContextMaxLength,
	}, limiter, responses, store, breakers, adapters, usecase.WithEventPublisher(events))

	srv := httpserver.NewServer(analyzer, store, breakers, app.BuildReadinessChecks(deps)...)
	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.BuildRouter(cfg, srv),
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	return srvHTTP.Shutdown(shutdownCtx)
}

func buildLimiter(ctx context.Context, cfg config.Config, deps *app.Dependencies) (ratelimiter.Limiter, error) {
	if strings.EqualFold(cfg.RateLimitBackend, "redis") {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		deps.Redis = app.RedisPinger(rdb)
		slog.Info("redis rate limiter enabled")
		return ratelimiter.NewRedisLuaLimiter(rdb, cfg.RateLimitMaxRequests, cfg.RateLimitWindow()), nil
	}
	mem := ratelimiter.NewMemoryLimiter(cfg.RateLimitMaxRequests, cfg.RateLimitWindow())
	go mem.RunJanitor(ctx, cfg.RateLimitJanitorInterval)
	return mem, nil
}
