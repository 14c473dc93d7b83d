package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI provider calls by provider and result",
		},
		[]string{"provider", "result"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI provider call duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"provider"},
	)
	ProviderFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_provider_failures_total",
			Help: "Failed provider attempts by provider and failure kind",
		},
		[]string{"provider", "kind"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ai_circuit_breaker_state",
			Help: "Circuit breaker state per provider (0=closed, 1=open, 2=half-open)",
		},
		[]string{"provider"},
	)

	AnalyzeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyze_requests_total",
			Help: "Analyze calls by outcome",
		},
		[]string{"outcome"},
	)
	AnalyzeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analyze_duration_seconds",
			Help:    "End-to-end Analyze latency in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"outcome"},
	)
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_lookups_total",
			Help: "Response cache lookups by result (hit or miss)",
		},
		[]string{"result"},
	)
	RateLimitDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_decisions_total",
			Help: "Per-user admission decisions (allowed, denied, error)",
		},
		[]string{"decision"},
	)
	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_events_published_total",
			Help: "Analysis events handed to the broker by result",
		},
		[]string{"result"},
	)
	ContextPurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "conversation_messages_purged_total",
			Help: "Conversation messages removed by the retention purger",
		},
	)
)

var initOnce sync.Once

// InitMetrics registers all collectors with the default registry. Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(AIRequestsTotal)
		prometheus.MustRegister(AIRequestDuration)
		prometheus.MustRegister(ProviderFailuresTotal)
		prometheus.MustRegister(CircuitBreakerState)
		prometheus.MustRegister(AnalyzeRequestsTotal)
		prometheus.MustRegister(AnalyzeDuration)
		prometheus.MustRegister(CacheLookupsTotal)
		prometheus.MustRegister(RateLimitDecisionsTotal)
		prometheus.MustRegister(EventsPublishedTotal)
		prometheus.MustRegister(ContextPurgedTotal)
	})
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// ObserveAnalyze records one finished Analyze call.
func ObserveAnalyze(outcome string, d time.Duration) {
	AnalyzeRequestsTotal.WithLabelValues(outcome).Inc()
	AnalyzeDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveProviderCall records one provider attempt. kind is empty on success.
func ObserveProviderCall(provider, kind string, d time.Duration) {
	AIRequestDuration.WithLabelValues(provider).Observe(d.Seconds())
	if kind == "" {
		AIRequestsTotal.WithLabelValues(provider, "success").Inc()
		return
	}
	AIRequestsTotal.WithLabelValues(provider, "failure").Inc()
	ProviderFailuresTotal.WithLabelValues(provider, kind).Inc()
}

// CacheLookup records a response cache hit or miss.
func CacheLookup(hit bool) {
	if hit {
		CacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	CacheLookupsTotal.WithLabelValues("miss").Inc()
}

// RateLimitDecision records an admission decision.
func RateLimitDecision(decision string) {
	RateLimitDecisionsTotal.WithLabelValues(decision).Inc()
}

// EventPublished records an analysis event publish attempt.
func EventPublished(err error) {
	if err != nil {
		EventsPublishedTotal.WithLabelValues("error").Inc()
		return
	}
	EventsPublishedTotal.WithLabelValues("ok").Inc()
}
