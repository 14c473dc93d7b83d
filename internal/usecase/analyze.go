// Package usecase contains application business logic services.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fairyhunter13/ai-analysis-core/internal/adapter/ai"
	"github.com/fairyhunter13/ai-analysis-core/internal/adapter/cache"
	"github.com/fairyhunter13/ai-analysis-core/internal/adapter/observability"
	"github.com/fairyhunter13/ai-analysis-core/internal/domain"
	"github.com/fairyhunter13/ai-analysis-core/internal/service/conversation"
	"github.com/fairyhunter13/ai-analysis-core/internal/service/ratelimiter"
	"github.com/fairyhunter13/ai-analysis-core/pkg/textx"
)

const (
	degradedSummary = "AI analysis is temporarily unavailable. Your message was received, please try again in a few minutes."
	intentAnalyze   = "analyze"
	publishTimeout  = 2 * time.Second
)

// ResponseCache is the subset of the response cache the orchestrator needs.
type ResponseCache interface {
	Get(key string) (domain.AnalysisResult, bool)
	Put(key string, value domain.AnalysisResult, ttl time.Duration)
}

// ContextStore is the subset of the conversation store the orchestrator needs.
type ContextStore interface {
	Append(ctx context.Context, userID int64, role domain.Role, content string, opts ...conversation.AppendOption) (domain.ConversationMessage, error)
	ContextWindow(ctx context.Context, userID int64, limit, tokenBudget int) []domain.ConversationMessage
}

// AnalyzeConfig tunes the orchestrator.
type AnalyzeConfig struct {
	// MinInputLength and MaxInputLength bound the sanitized text in runes. They
	// must sit inside the conversation store's content bounds so an admitted
	// request can always record its user turn.
	MinInputLength int
	MaxInputLength int
	// MaxTotalLatency bounds one Analyze call; zero disables the bound.
	MaxTotalLatency time.Duration
	CacheTTL        time.Duration
	// HistoryMessages and TokenBudget size the context window sent to providers.
	HistoryMessages int
	TokenBudget     int
	// MaxReplyLength truncates the assistant turn stored as history.
	MaxReplyLength int
}

// AnalyzeService turns a user's text into an analysis, walking the provider
// chain behind the rate limiter, the response cache and per-provider breakers.
type AnalyzeService struct {
	cfg       AnalyzeConfig
	limiter   ratelimiter.Limiter
	cache     ResponseCache
	store     ContextStore
	breakers  *ai.CircuitBreakerManager
	providers []providerEntry
	events    domain.EventPublisher
	now       func() time.Time
}

type providerEntry struct {
	adapter domain.ProviderAdapter
	policy  ai.RetryPolicy
}

// AnalyzeOption configures an AnalyzeService.
type AnalyzeOption func(*AnalyzeService)

// WithEventPublisher publishes one AnalysisEvent per terminal request.
func WithEventPublisher(p domain.EventPublisher) AnalyzeOption {
	return func(s *AnalyzeService) { s.events = p }
}

// WithAnalyzeClock overrides the time source used for latency.
func WithAnalyzeClock(now func() time.Time) AnalyzeOption {
	return func(s *AnalyzeService) { s.now = now }
}

// NewAnalyzeService wires the orchestrator. Providers are ordered by ascending
// priority, ties broken by name.
func NewAnalyzeService(cfg AnalyzeConfig, limiter ratelimiter.Limiter, c ResponseCache, store ContextStore,
	breakers *ai.CircuitBreakerManager, providers []domain.ProviderAdapter, opts ...AnalyzeOption) *AnalyzeService {
	if cfg.MinInputLength <= 0 {
		cfg.MinInputLength = 1
	}
	if cfg.MaxInputLength <= 0 {
		cfg.MaxInputLength = 4000
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	sorted := append([]domain.ProviderAdapter(nil), providers...)
	domain.SortProviders(sorted)

	s := &AnalyzeService{
		cfg:      cfg,
		limiter:  limiter,
		cache:    c,
		store:    store,
		breakers: breakers,
		now:      time.Now,
	}
	for _, p := range sorted {
		s.providers = append(s.providers, providerEntry{adapter: p, policy: ai.RetryPolicyFor(p.Config())})
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// providerOutcome is the result of one provider in the chain: either a
// result or the kind of failure that ended it.
type providerOutcome struct {
	result   domain.AnalysisResult
	kind     domain.ErrorKind
	err      error
	attempts int
}

func (o providerOutcome) ok() bool { return o.err == nil }

// Analyze returns an analysis for text. Only *domain.ValidationError and
// *domain.RateLimitExceededError are returned as errors; when every provider
// fails a degraded result tagged with domain.FallbackProvider is returned.
func (s *AnalyzeService) Analyze(ctx context.Context, userID int64, text string) (domain.AnalysisResult, error) {
	start := s.now()
	ctx, span := otel.Tracer("usecase.analyze").Start(ctx, "Analyze")
	defer span.End()
	span.SetAttributes(attribute.Int64("user_id", userID))
	ctx = observability.WithUser(ctx, userID)
	lg := observability.LoggerFromContext(ctx)

	text = textx.SanitizeText(text)
	if err := s.validate(userID, text); err != nil {
		s.finish(ctx, userID, domain.OutcomeInvalid, domain.AnalysisResult{}, start)
		span.SetStatus(codes.Error, err.Error())
		return domain.AnalysisResult{}, err
	}

	if err := s.admit(ctx, userID); err != nil {
		s.finish(ctx, userID, domain.OutcomeRateLimited, domain.AnalysisResult{}, start)
		span.SetStatus(codes.Error, err.Error())
		return domain.AnalysisResult{}, err
	}

	key, err := cache.Fingerprint(text)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	if cached, ok := s.cache.Get(key); ok {
		observability.CacheLookup(true)
		s.record(ctx, userID, domain.RoleUser, text)
		res := cached.Clone()
		res.FromCache = true
		res.Attempts = 0
		res.LatencyMs = s.since(start)
		span.SetAttributes(attribute.Bool("cache_hit", true))
		s.finish(ctx, userID, domain.OutcomeCached, res, start)
		return res, nil
	}
	observability.CacheLookup(false)

	if s.cfg.MaxTotalLatency > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.MaxTotalLatency)
		defer cancel()
	}

	// History is read before the current text is recorded so the prompt does
	// not carry it twice.
	history := s.store.ContextWindow(ctx, userID, s.cfg.HistoryMessages, s.cfg.TokenBudget)
	s.record(ctx, userID, domain.RoleUser, text)
	req := domain.ProviderRequest{UserID: userID, Text: text, History: history}

	attempts := 0
	for _, p := range s.providers {
		if ctx.Err() != nil {
			break
		}
		name := p.adapter.Name()
		br := s.breakers.GetBreaker(name)
		if !br.Allow() {
			lg.Debug("provider skipped, circuit open", slog.String("provider", name))
			continue
		}

		out := s.call(ctx, p, req)
		attempts += out.attempts
		if out.ok() {
			br.RecordSuccess()
			res := out.result
			if res.Provider == "" {
				res.Provider = name
			}
			res.FromCache = false
			res.Degraded = false
			res.Attempts = attempts
			res.LatencyMs = s.since(start)
			s.cache.Put(key, res.Clone(), s.cfg.CacheTTL)
			s.record(ctx, userID, domain.RoleAssistant, textx.TruncateRunes(renderReply(res), s.cfg.MaxReplyLength))
			span.SetAttributes(attribute.String("provider", res.Provider), attribute.Int("attempts", attempts))
			s.finish(ctx, userID, domain.OutcomeProvider, res, start)
			return res, nil
		}

		if ctx.Err() != nil {
			// The request ran out of time; that says nothing about the provider.
			br.Release()
			lg.Warn("analyze deadline reached during provider call",
				slog.String("provider", name),
				slog.Int("attempt", attempts))
			break
		}
		br.RecordFailure(out.kind)
		lg.Warn("provider failed, falling through",
			slog.String("provider", name),
			slog.String("kind", out.kind.String()),
			slog.Int("attempt", attempts),
			slog.Any("error", out.err))
	}

	lg.Error("all providers exhausted, returning degraded response",
		slog.Int("attempt", attempts),
		slog.Any("error", domain.ErrAllProvidersExhausted))
	res := domain.AnalysisResult{
		SummaryText:      degradedSummary,
		StructuredPoints: []string{},
		Provider:         domain.FallbackProvider,
		Degraded:         true,
		Attempts:         attempts,
		LatencyMs:        s.since(start),
	}
	s.record(ctx, userID, domain.RoleAssistant, res.SummaryText)
	span.SetAttributes(attribute.Bool("degraded", true))
	s.finish(ctx, userID, domain.OutcomeDegraded, res, start)
	return res, nil
}

func (s *AnalyzeService) validate(userID int64, text string) error {
	if userID <= 0 {
		return domain.NewValidationError("user_id", "must be positive")
	}
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return domain.NewValidationError("text", "empty")
	}
	if n < s.cfg.MinInputLength {
		return domain.NewValidationError("text", fmt.Sprintf("shorter than %d characters", s.cfg.MinInputLength))
	}
	if n > s.cfg.MaxInputLength {
		return domain.NewValidationError("text", fmt.Sprintf("exceeds %d characters", s.cfg.MaxInputLength))
	}
	return nil
}

// admit consults the limiter. A limiter backend error admits the request.
func (s *AnalyzeService) admit(ctx context.Context, userID int64) error {
	dec, err := s.limiter.Admit(ctx, userID)
	switch {
	case err != nil:
		observability.RateLimitDecision("error")
		observability.LoggerFromContext(ctx).Warn("rate limiter unavailable, admitting request", slog.Any("error", err))
		return nil
	case !dec.Allowed:
		observability.RateLimitDecision("denied")
		return &domain.RateLimitExceededError{RetryAfterSeconds: dec.RetryAfterSeconds}
	default:
		observability.RateLimitDecision("allowed")
		return nil
	}
}

func (s *AnalyzeService) call(ctx context.Context, p providerEntry, req domain.ProviderRequest) providerOutcome {
	res, attempts, err := p.policy.Do(ctx, func(ctx context.Context) (domain.AnalysisResult, error) {
		return p.adapter.Call(ctx, req)
	})
	if err != nil {
		return providerOutcome{kind: domain.KindOf(err), err: err, attempts: attempts}
	}
	return providerOutcome{result: res, attempts: attempts}
}

// record appends to the conversation log; failures are logged only.
func (s *AnalyzeService) record(ctx context.Context, userID int64, role domain.Role, content string) {
	if _, err := s.store.Append(ctx, userID, role, content, conversation.WithIntent(intentAnalyze)); err != nil {
		observability.LoggerFromContext(ctx).Warn("conversation append failed",
			slog.String("role", string(role)),
			slog.Any("error", err))
	}
}

func (s *AnalyzeService) finish(ctx context.Context, userID int64, outcome domain.Outcome, res domain.AnalysisResult, start time.Time) {
	elapsed := s.now().Sub(start)
	observability.ObserveAnalyze(string(outcome), elapsed)
	if s.events == nil || outcome == domain.OutcomeInvalid {
		return
	}
	ev := domain.AnalysisEvent{
		RequestID: observability.RequestIDFromContext(ctx),
		UserID:    userID,
		Outcome:   outcome,
		Provider:  res.Provider,
		Model:     res.Model,
		FromCache: res.FromCache,
		Degraded:  res.Degraded,
		LatencyMs: elapsed.Milliseconds(),
		Attempts:  res.Attempts,
		At:        s.now().UTC(),
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	err := s.events.PublishAnalysis(pctx, ev)
	observability.EventPublished(err)
	if err != nil && !errors.Is(err, context.Canceled) {
		observability.LoggerFromContext(ctx).Warn("analysis event publish failed", slog.Any("error", err))
	}
}

func (s *AnalyzeService) since(start time.Time) int64 {
	return s.now().Sub(start).Milliseconds()
}

// renderReply flattens a result into the assistant turn kept as history.
func renderReply(res domain.AnalysisResult) string {
	if len(res.StructuredPoints) == 0 {
		return res.SummaryText
	}
	var b strings.Builder
	b.WriteString(res.SummaryText)
	for _, p := range res.StructuredPoints {
		b.WriteString("\n- ")
		b.WriteString(p)
	}
	return b.String()
}
