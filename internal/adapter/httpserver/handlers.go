package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-analysis-core/internal/adapter/ai"
	"github.com/fairyhunter13/ai-analysis-core/internal/domain"
)

// Analyzer runs one analysis request.
type Analyzer interface {
	Analyze(ctx context.Context, userID int64, text string) (domain.AnalysisResult, error)
}

// ContextReader exposes a user's stored conversation.
type ContextReader interface {
	GetRecent(ctx context.Context, userID int64, limit int) []domain.ConversationMessage
	Stats(ctx context.Context, userID int64) domain.ContextStats
}

// BreakerStatsSource reports per-provider circuit state.
type BreakerStatsSource interface {
	GetAllStats() []ai.BreakerStats
	GetHealthyProviders() []string
}

// ReadinessCheck is one named dependency check for /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server aggregates handler dependencies.
type Server struct {
	Analyzer Analyzer
	Context  ContextReader
	Breakers BreakerStatsSource
	Checks   []ReadinessCheck
	// MaxBodyBytes caps the analyze request body.
	MaxBodyBytes int64
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(analyzer Analyzer, ctxReader ContextReader, breakers BreakerStatsSource, checks ...ReadinessCheck) *Server {
	return &Server{Analyzer: analyzer, Context: ctxReader, Breakers: breakers, Checks: checks, MaxBodyBytes: 1 << 20}
}

type analyzeRequest struct {
	UserID int64  `json:"user_id" validate:"required,gt=0"`
	Text   string `json:"text" validate:"required"`
}

type analyzeResponse struct {
	SummaryText      string   `json:"summary_text"`
	StructuredPoints []string `json:"structured_points"`
	Provider         string   `json:"provider"`
	Model            string   `json:"model,omitempty"`
	FromCache        bool     `json:"from_cache"`
	Degraded         bool     `json:"degraded"`
	LatencyMs        int64    `json:"latency_ms"`
	Attempts         int      `json:"attempts"`
}

func toAnalyzeResponse(res domain.AnalysisResult) analyzeResponse {
	points := res.StructuredPoints
	if points == nil {
		points = []string{}
	}
	return analyzeResponse{
		SummaryText:      res.SummaryText,
		StructuredPoints: points,
		Provider:         res.Provider,
		Model:            res.Model,
		FromCache:        res.FromCache,
		Degraded:         res.Degraded,
		LatencyMs:        res.LatencyMs,
		Attempts:         res.Attempts,
	}
}

// acceptsJSON rejects clients that explicitly refuse JSON.
func acceptsJSON(w http.ResponseWriter, r *http.Request) bool {
	a := r.Header.Get("Accept")
	if a == "" || a == "*/*" || strings.Contains(a, "application/json") {
		return true
	}
	writeJSON(w, http.StatusNotAcceptable, errorEnvelope{Error: apiError{
		Code: "INVALID_ARGUMENT", Message: "not acceptable", Details: map[string]string{"accept": a},
	}})
	return false
}

// AnalyzeHandler serves POST /v1/analyze.
func (s *Server) AnalyzeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.MaxBodyBytes)
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), validationDetails(err))
			return
		}
		res, err := s.Analyzer.Analyze(r.Context(), req.UserID, req.Text)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, toAnalyzeResponse(res))
	}
}

type messageResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Intent    string    `json:"intent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ContextHandler serves GET /v1/users/{userID}/context.
func (s *Server) ContextHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := parseUserID(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		limit, err := parseLimit(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		msgs := s.Context.GetRecent(r.Context(), userID, limit)
		out := make([]messageResponse, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, messageResponse{ID: m.ID, Role: string(m.Role), Content: m.Content, Intent: m.Intent, Timestamp: m.Timestamp})
		}
		writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "messages": out})
	}
}

// StatsHandler serves GET /v1/users/{userID}/stats.
func (s *Server) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := parseUserID(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		st := s.Context.Stats(r.Context(), userID)
		body := map[string]any{
			"user_id":            userID,
			"total_messages":     st.TotalMessages,
			"user_messages":      st.UserMessages,
			"assistant_messages": st.AssistantMessages,
		}
		if st.TotalMessages > 0 {
			body["first_message_time"] = st.FirstMessageTime
			body["last_message_time"] = st.LastMessageTime
		}
		writeJSON(w, http.StatusOK, body)
	}
}

// ProvidersHandler serves GET /v1/providers with breaker diagnostics.
func (s *Server) ProvidersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"providers": s.Breakers.GetAllStats(),
			"healthy":   s.Breakers.GetHealthyProviders(),
		})
	}
}

// ReadyzHandler runs every configured dependency check.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, len(s.Checks))
		ok := true
		for _, c := range s.Checks {
			if err := c.Check(ctx); err != nil {
				ok = false
				checks = append(checks, check{Name: c.Name, Details: err.Error()})
				continue
			}
			checks = append(checks, check{Name: c.Name, OK: true})
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
