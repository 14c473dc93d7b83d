// Package providers contains the concrete ProviderAdapter implementations.
// Every adapter makes exactly one upstream call per Call and returns either a
// parsed AnalysisResult or a classified *domain.ProviderError; retries and
// circuit breaking live in the caller.
package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ai-analysis-core/internal/adapter/ai"
	"github.com/fairyhunter13/ai-analysis-core/internal/adapter/observability"
	"github.com/fairyhunter13/ai-analysis-core/internal/domain"
)

const systemPrompt = `You are an analyst assistant. Analyze the user's latest message in the context of the conversation.
Reply with a single JSON object and nothing else:
{"summary": "<two or three sentence summary>", "points": ["<key point>", "..."]}
Keep points short and factual. Use at most 6 points.`

// chatMessage is the provider-neutral message shape both wire formats map from.
type chatMessage struct {
	Role    string
	Content string
}

// buildMessages renders history followed by the current text as the user turn.
func buildMessages(req domain.ProviderRequest) []chatMessage {
	msgs := make([]chatMessage, 0, len(req.History)+1)
	for _, m := range req.History {
		if !m.Role.Valid() || strings.TrimSpace(m.Content) == "" {
			continue
		}
		msgs = append(msgs, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	return append(msgs, chatMessage{Role: string(domain.RoleUser), Content: req.Text})
}

// Option configures an adapter.
type Option func(*options)

type options struct {
	httpClient *http.Client
}

// WithHTTPClient overrides the HTTP client (tests, custom transports).
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

func applyOptions(opts []Option) options {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.httpClient == nil {
		// Per-attempt deadlines come from the caller's context.
		o.httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return o
}

// base carries the identity methods shared by all adapters.
type base struct {
	cfg domain.ProviderConfig
}

func (b base) Name() string { return b.cfg.Name }

func (b base) Priority() int { return b.cfg.Priority }

func (b base) Config() domain.ProviderConfig { return b.cfg }

func (b base) fail(kind domain.ErrorKind, status int, err error) error {
	return domain.NewProviderError(b.cfg.Name, kind, status, err)
}

// observe records metrics and a log line for one upstream attempt.
func (b base) observe(ctx context.Context, start time.Time, err error) {
	lg := observability.LoggerFromContext(ctx)
	d := time.Since(start)
	if err == nil {
		observability.ObserveProviderCall(b.cfg.Name, "", d)
		lg.Debug("provider call succeeded",
			slog.String("provider", b.cfg.Name),
			slog.String("model", b.cfg.Model),
			slog.Int64("duration_ms", d.Milliseconds()))
		return
	}
	kind := domain.KindOf(err)
	observability.ObserveProviderCall(b.cfg.Name, kind.String(), d)
	lg.Warn("provider call failed",
		slog.String("provider", b.cfg.Name),
		slog.String("model", b.cfg.Model),
		slog.String("kind", kind.String()),
		slog.Int64("duration_ms", d.Milliseconds()),
		slog.Any("error", err))
}

// result parses raw model output into an AnalysisResult.
func (b base) result(raw, model string) (domain.AnalysisResult, error) {
	summary, points, err := ai.ParseAnalysis(raw)
	if err != nil {
		return domain.AnalysisResult{}, b.fail(domain.KindMalformed, 0, err)
	}
	if model == "" {
		model = b.cfg.Model
	}
	return domain.AnalysisResult{
		SummaryText:      summary,
		StructuredPoints: points,
		Provider:         b.cfg.Name,
		Model:            model,
	}, nil
}

// classifyStatus maps an HTTP status to an error kind. Any 4xx that is not
// 429 means the request itself is wrong (bad key, unknown model) and is
// treated like an auth failure: not retried and not an outage signal.
func classifyStatus(status int) domain.ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return domain.KindRateLimited
	case status == http.StatusRequestTimeout:
		return domain.KindTransient
	case status >= 400 && status < 500:
		return domain.KindAuth
	default:
		return domain.KindTransient
	}
}

// New builds the adapter for cfg.Kind.
func New(cfg domain.ProviderConfig, opts ...Option) (domain.ProviderAdapter, error) {
	switch cfg.Kind {
	case domain.ProviderOpenAI, domain.ProviderGroq, domain.ProviderOpenRouter:
		return NewOpenAICompatible(cfg, opts...), nil
	case domain.ProviderAnthropic:
		return NewAnthropic(cfg, opts...), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider kind %q", domain.ErrInvalidArgument, cfg.Kind)
	}
}

// BuildAll builds adapters for every config, sorted by priority then name.
func BuildAll(cfgs []domain.ProviderConfig, opts ...Option) ([]domain.ProviderAdapter, error) {
	out := make([]domain.ProviderAdapter, 0, len(cfgs))
	for _, c := range cfgs {
		a, err := New(c, opts...)
		if err != nil {
			return nil, fmt.Errorf("op=providers.BuildAll provider=%s: %w", c.Name, err)
		}
		out = append(out, a)
	}
	domain.SortProviders(out)
	return out, nil
}
