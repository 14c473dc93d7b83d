// Package conversation keeps the bounded per-user dialogue log that supplies
// prompt history to providers.
package conversation

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/fairyhunter13/ai-analysis-core/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-analysis-core/internal/adapter/observability"
	"github.com/fairyhunter13/ai-analysis-core/internal/domain"
)

const repoTimeout = 3 * time.Second

// Config bounds what the store keeps.
type Config struct {
	MaxMessagesPerUser int
	RetentionWindow    time.Duration
	MinContentLength   int
	MaxContentLength   int
	// TokenModel selects the encoding used by ContextWindow.
	TokenModel string
}

// Store is the in-memory, per-user conversation log. When a repository is
// attached every change is written through to it and a user's rows are loaded
// on first touch; repository failures are logged and never fail the caller.
type Store struct {
	cfg     Config
	repo    domain.MessageRepository
	counter *tokencount.Counter
	now     func() time.Time

	mu    sync.RWMutex
	users map[int64]*userLog
}

type userLog struct {
	mu       sync.Mutex
	msgs     []domain.ConversationMessage
	hydrated bool
	// dead is set after the purger removed this log from the map.
	dead bool
}

// Option configures a Store.
type Option func(*Store)

// WithRepository enables write-through persistence.
func WithRepository(repo domain.MessageRepository) Option {
	return func(s *Store) { s.repo = repo }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithCounter overrides the token counter.
func WithCounter(c *tokencount.Counter) Option {
	return func(s *Store) { s.counter = c }
}

// NewStore creates an empty store.
func NewStore(cfg Config, opts ...Option) *Store {
	if cfg.MaxMessagesPerUser <= 0 {
		cfg.MaxMessagesPerUser = 50
	}
	if cfg.MinContentLength <= 0 {
		cfg.MinContentLength = 1
	}
	if cfg.TokenModel == "" {
		cfg.TokenModel = "gpt-4"
	}
	s := &Store{
		cfg:     cfg,
		counter: tokencount.DefaultCounter,
		now:     time.Now,
		users:   make(map[int64]*userLog),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AppendOption tags an appended message.
type AppendOption func(*domain.ConversationMessage)

// WithIntent records an optional intent label on the message.
func WithIntent(intent string) AppendOption {
	return func(m *domain.ConversationMessage) { m.Intent = intent }
}

// Append validates and records a message. If the user now holds more than
// MaxMessagesPerUser messages the oldest are dropped under the same lock.
func (s *Store) Append(ctx context.Context, userID int64, role domain.Role, content string, opts ...AppendOption) (domain.ConversationMessage, error) {
	content = strings.TrimSpace(content)
	if err := s.validate(role, content); err != nil {
		return domain.ConversationMessage{}, err
	}

	m := domain.ConversationMessage{
		ID:      ulid.Make().String(),
		UserID:  userID,
		Role:    role,
		Content: content,
	}
	for _, o := range opts {
		o(&m)
	}

	var trimmed int
	s.withLog(ctx, userID, func(l *userLog) {
		m.Timestamp = s.now()
		l.msgs = append(l.msgs, m)
		if excess := len(l.msgs) - s.cfg.MaxMessagesPerUser; excess > 0 {
			n := copy(l.msgs, l.msgs[excess:])
			clear(l.msgs[n:])
			l.msgs = l.msgs[:n]
			trimmed = excess
		}
	})

	if s.repo != nil {
		rctx, cancel := repoContext(ctx)
		defer cancel()
		lg := observability.LoggerFromContext(ctx)
		if err := s.repo.Append(rctx, m); err != nil {
			lg.Warn("conversation write-through failed",
				slog.Int64("user_id", userID),
				slog.Any("error", err))
		} else if trimmed > 0 {
			if _, err := s.repo.TrimUser(rctx, userID, s.cfg.MaxMessagesPerUser); err != nil {
				lg.Warn("conversation trim write-through failed",
					slog.Int64("user_id", userID),
					slog.Any("error", err))
			}
		}
	}
	return m, nil
}

func (s *Store) validate(role domain.Role, content string) error {
	if !role.Valid() {
		return domain.NewValidationError("role", "must be user or assistant")
	}
	n := utf8.RuneCountInString(content)
	switch {
	case n == 0:
		return domain.NewValidationError("content", "empty")
	case n < s.cfg.MinContentLength:
		return domain.NewValidationError("content", "shorter than minimum length")
	case s.cfg.MaxContentLength > 0 && n > s.cfg.MaxContentLength:
		return domain.NewValidationError("content", "exceeds maximum length")
	}
	return nil
}

// GetRecent returns up to limit of the user's newest live messages, oldest first.
func (s *Store) GetRecent(ctx context.Context, userID int64, limit int) []domain.ConversationMessage {
	if limit <= 0 {
		return []domain.ConversationMessage{}
	}
	var out []domain.ConversationMessage
	s.withLog(ctx, userID, func(l *userLog) {
		live := l.live(s.cutoff())
		if len(live) > limit {
			live = live[len(live)-limit:]
		}
		out = append(make([]domain.ConversationMessage, 0, len(live)), live...)
	})
	return out
}

// ContextWindow returns the newest messages, at most limit, whose token cost
// fits tokenBudget. A non-positive budget only applies the limit.
func (s *Store) ContextWindow(ctx context.Context, userID int64, limit, tokenBudget int) []domain.ConversationMessage {
	return s.counter.Fit(s.GetRecent(ctx, userID, limit), tokenBudget, s.cfg.TokenModel)
}

// Stats summarises the user's live messages.
func (s *Store) Stats(ctx context.Context, userID int64) domain.ContextStats {
	var st domain.ContextStats
	s.withLog(ctx, userID, func(l *userLog) {
		live := l.live(s.cutoff())
		st.TotalMessages = len(live)
		for _, m := range live {
			if m.Role == domain.RoleUser {
				st.UserMessages++
			} else {
				st.AssistantMessages++
			}
		}
		if len(live) > 0 {
			st.FirstMessageTime = live[0].Timestamp
			st.LastMessageTime = live[len(live)-1].Timestamp
		}
	})
	return st
}

// PurgeExpired drops messages older than the retention window as of now and
// returns how many in-memory messages were removed.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) int {
	if s.cfg.RetentionWindow <= 0 {
		return 0
	}
	cutoff := now.Add(-s.cfg.RetentionWindow)
	removed := 0

	s.mu.Lock()
	for id, l := range s.users {
		l.mu.Lock()
		i := 0
		for i < len(l.msgs) && l.msgs[i].Timestamp.Before(cutoff) {
			i++
		}
		if i > 0 {
			n := copy(l.msgs, l.msgs[i:])
			clear(l.msgs[n:])
			l.msgs = l.msgs[:n]
			removed += i
		}
		// With a repository the hydrated marker must survive so trimmed rows
		// that failed to delete are never loaded again.
		if len(l.msgs) == 0 && s.repo == nil {
			l.dead = true
			delete(s.users, id)
		}
		l.mu.Unlock()
	}
	s.mu.Unlock()

	if removed > 0 {
		observability.ContextPurgedTotal.Add(float64(removed))
	}
	if s.repo != nil {
		rctx, cancel := repoContext(ctx)
		defer cancel()
		if n, err := s.repo.DeleteOlderThan(rctx, cutoff); err != nil {
			observability.LoggerFromContext(ctx).Warn("conversation retention purge failed", slog.Any("error", err))
		} else if n > 0 {
			observability.LoggerFromContext(ctx).Debug("conversation rows purged", slog.Int64("rows", n))
		}
	}
	return removed
}

// RunPurger calls PurgeExpired every interval until ctx is done.
func (s *Store) RunPurger(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.cfg.RetentionWindow <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("conversation purger stopping")
			return
		case <-ticker.C:
			if n := s.PurgeExpired(ctx, s.now()); n > 0 {
				slog.Info("conversation messages purged", slog.Int("removed", n))
			}
		}
	}
}

// Users reports how many user logs are held in memory.
func (s *Store) Users() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func (s *Store) cutoff() time.Time {
	if s.cfg.RetentionWindow <= 0 {
		return time.Time{}
	}
	return s.now().Add(-s.cfg.RetentionWindow)
}

// withLog runs fn with the user's log locked, creating and hydrating it first
// if needed.
func (s *Store) withLog(ctx context.Context, userID int64, fn func(*userLog)) {
	for {
		l := s.logFor(userID)
		l.mu.Lock()
		if l.dead {
			l.mu.Unlock()
			continue
		}
		if !l.hydrated {
			s.hydrate(ctx, userID, l)
		}
		fn(l)
		l.mu.Unlock()
		return
	}
}

func (s *Store) logFor(userID int64) *userLog {
	s.mu.RLock()
	l, ok := s.users[userID]
	s.mu.RUnlock()
	if ok {
		return l
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok = s.users[userID]; !ok {
		l = &userLog{hydrated: s.repo == nil}
		s.users[userID] = l
	}
	return l
}

// hydrate loads persisted rows ahead of anything appended in memory. Called
// with l.mu held.
func (s *Store) hydrate(ctx context.Context, userID int64, l *userLog) {
	l.hydrated = true
	rctx, cancel := repoContext(ctx)
	defer cancel()
	rows, err := s.repo.ListRecent(rctx, userID, s.cfg.MaxMessagesPerUser, s.cutoff())
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("conversation hydrate failed",
			slog.Int64("user_id", userID),
			slog.Any("error", err))
		return
	}
	if len(rows) == 0 {
		return
	}
	merged := append(rows, l.msgs...)
	if excess := len(merged) - s.cfg.MaxMessagesPerUser; excess > 0 {
		merged = merged[excess:]
	}
	l.msgs = merged
}

// live returns the suffix of messages not older than cutoff. Called with l.mu held.
func (l *userLog) live(cutoff time.Time) []domain.ConversationMessage {
	i := 0
	for i < len(l.msgs) && l.msgs[i].Timestamp.Before(cutoff) {
		i++
	}
	return l.msgs[i:]
}

func repoContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), repoTimeout)
}
