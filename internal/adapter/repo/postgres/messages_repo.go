// Package postgres provides the PostgreSQL persistence for conversation
// messages.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/ai-analysis-core/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// PgxPool is a minimal subset of pgxpool used by the repos for easy testing.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// EnsureSchema creates the conversation tables if they are missing.
func EnsureSchema(ctx context.Context, p PgxPool) error {
	if _, err := p.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("op=schema.ensure: %w", err)
	}
	return nil
}

// MessageRepo persists conversation messages.
type MessageRepo struct{ Pool PgxPool }

var _ domain.MessageRepository = (*MessageRepo)(nil)

// NewMessageRepo constructs a MessageRepo with the given pool.
func NewMessageRepo(p PgxPool) *MessageRepo { return &MessageRepo{Pool: p} }

func startSpan(ctx context.Context, name, operation string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("repo.messages").Start(ctx, name)
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", "conversation_messages"),
	)
	return ctx, span
}

// Append inserts one message. Replaying the same id is a no-op.
func (r *MessageRepo) Append(ctx domain.Context, m domain.ConversationMessage) error {
	ctx, span := startSpan(ctx, "messages.Append", "INSERT")
	defer span.End()
	span.SetAttributes(attribute.Int64("user_id", m.UserID))

	q := `INSERT INTO conversation_messages (id, user_id, role, content, intent, created_at)
VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (id) DO NOTHING`
	if _, err := r.Pool.Exec(ctx, q, m.ID, m.UserID, string(m.Role), m.Content, m.Intent, m.Timestamp.UTC()); err != nil {
		span.RecordError(err)
		return fmt.Errorf("op=message.append: %w", err)
	}
	return nil
}

// TrimUser deletes everything but the user's keep newest messages and
// returns the number of rows removed.
func (r *MessageRepo) TrimUser(ctx domain.Context, userID int64, keep int) (int64, error) {
	ctx, span := startSpan(ctx, "messages.TrimUser", "DELETE")
	defer span.End()
	span.SetAttributes(attribute.Int64("user_id", userID), attribute.Int("keep", keep))

	q := `DELETE FROM conversation_messages
WHERE user_id = $1 AND id NOT IN (
	SELECT id FROM conversation_messages WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2
)`
	tag, err := r.Pool.Exec(ctx, q, userID, keep)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("op=message.trim_user: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListRecent returns up to limit of the user's newest messages created at or
// after since, oldest first.
func (r *MessageRepo) ListRecent(ctx domain.Context, userID int64, limit int, since time.Time) ([]domain.ConversationMessage, error) {
	ctx, span := startSpan(ctx, "messages.ListRecent", "SELECT")
	defer span.End()
	span.SetAttributes(attribute.Int64("user_id", userID), attribute.Int("limit", limit))

	q := `SELECT id, user_id, role, content, intent, created_at FROM (
	SELECT id, user_id, role, content, intent, created_at FROM conversation_messages
	WHERE user_id = $1 AND created_at >= $2
	ORDER BY created_at DESC, id DESC LIMIT $3
) recent ORDER BY created_at ASC, id ASC`
	rows, err := r.Pool.Query(ctx, q, userID, since.UTC(), limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("op=message.list_recent: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ConversationMessage, 0, limit)
	for rows.Next() {
		var (
			m    domain.ConversationMessage
			role string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &role, &m.Content, &m.Intent, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("op=message.list_recent_scan: %w", err)
		}
		m.Role = domain.Role(role)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=message.list_recent_rows: %w", err)
	}
	return out, nil
}

// DeleteOlderThan removes messages created before cutoff.
func (r *MessageRepo) DeleteOlderThan(ctx domain.Context, cutoff time.Time) (int64, error) {
	ctx, span := startSpan(ctx, "messages.DeleteOlderThan", "DELETE")
	defer span.End()

	tag, err := r.Pool.Exec(ctx, `DELETE FROM conversation_messages WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("op=message.delete_older_than: %w", err)
	}
	return tag.RowsAffected(), nil
}
