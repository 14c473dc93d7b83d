package domain

import (
	"context"
	"time"
)

//go:generate mockery --name=ProviderAdapter --with-expecter --filename=provider_adapter_mock.go
//go:generate mockery --name=MessageRepository --with-expecter --filename=message_repository_mock.go
//go:generate mockery --name=EventPublisher --with-expecter --filename=event_publisher_mock.go

// Role enumerates conversation message authors.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the two roles a conversation may contain.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAssistant }

// FallbackProvider tags degraded responses synthesized without any upstream call.
const FallbackProvider = "fallback"

// AnalysisResult is the orchestrator output returned to the chat transport.
type AnalysisResult struct {
	SummaryText      string
	StructuredPoints []string
	Provider         string
	Model            string
	FromCache        bool
	Degraded         bool
	LatencyMs        int64
	Attempts         int
}

// Clone returns a copy that does not share the points slice.
func (r AnalysisResult) Clone() AnalysisResult {
	out := r
	if r.StructuredPoints != nil {
		out.StructuredPoints = append([]string(nil), r.StructuredPoints...)
	}
	return out
}

// ConversationMessage is one entry of a user's append-only dialogue log.
// Invariants: Role valid; Content within configured bounds; Timestamp set by the store.
type ConversationMessage struct {
	ID        string
	UserID    int64
	Role      Role
	Content   string
	Intent    string
	Timestamp time.Time
}

// ContextStats summarises a user's stored conversation.
type ContextStats struct {
	TotalMessages     int
	UserMessages      int
	AssistantMessages int
	FirstMessageTime  time.Time
	LastMessageTime   time.Time
}

// ProviderRequest is the uniform input every adapter receives.
type ProviderRequest struct {
	UserID  int64
	Text    string
	History []ConversationMessage
}

// Ports

// ProviderAdapter wraps one concrete AI provider behind a uniform contract.
// Call returns either a result or a *ProviderError carrying its ErrorKind.
type ProviderAdapter interface {
	Name() string
	Priority() int
	Config() ProviderConfig
	Call(ctx Context, req ProviderRequest) (AnalysisResult, error)
}

// MessageRepository persists the conversation log.
type MessageRepository interface {
	Append(ctx Context, m ConversationMessage) error
	TrimUser(ctx Context, userID int64, keep int) (int64, error)
	ListRecent(ctx Context, userID int64, limit int, since time.Time) ([]ConversationMessage, error)
	DeleteOlderThan(ctx Context, cutoff time.Time) (int64, error)
}

// EventPublisher emits analysis lifecycle events for downstream consumers.
type EventPublisher interface {
	PublishAnalysis(ctx Context, ev AnalysisEvent) error
}

// AnalysisEvent is published once per Analyze call that reached a terminal state.
type AnalysisEvent struct {
	RequestID string    `json:"request_id"`
	UserID    int64     `json:"user_id"`
	Outcome   Outcome   `json:"outcome"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model,omitempty"`
	FromCache bool      `json:"from_cache"`
	Degraded  bool      `json:"degraded"`
	LatencyMs int64     `json:"latency_ms"`
	Attempts  int       `json:"attempts"`
	At        time.Time `json:"at"`
}

// Outcome is the terminal state of an Analyze request.
type Outcome string

const (
	OutcomeCached      Outcome = "cached"
	OutcomeProvider    Outcome = "provider"
	OutcomeDegraded    Outcome = "degraded"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeInvalid     Outcome = "invalid"
)

// Context is an alias so adapters and usecases can share one signature style.
type Context = context.Context
