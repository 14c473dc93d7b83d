package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-analysis-core/internal/domain"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func TestEnsureSchema(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS conversation_messages").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, EnsureSchema(context.Background(), mock))
}

func TestEnsureSchema_Error(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))
	err := EnsureSchema(context.Background(), mock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=schema.ensure")
}

func TestMessageRepo_Append(t *testing.T) {
	mock := newMock(t)
	repo := NewMessageRepo(mock)
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	m := domain.ConversationMessage{
		ID: "01J0000000000000000000000A", UserID: 42, Role: domain.RoleUser,
		Content: "hello", Intent: "greeting", Timestamp: ts,
	}

	mock.ExpectExec("INSERT INTO conversation_messages").
		WithArgs(m.ID, int64(42), "user", "hello", "greeting", ts.UTC()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Append(context.Background(), m))
}

func TestMessageRepo_AppendError(t *testing.T) {
	mock := newMock(t)
	repo := NewMessageRepo(mock)
	mock.ExpectExec("INSERT INTO conversation_messages").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("conn reset"))

	err := repo.Append(context.Background(), domain.ConversationMessage{ID: "x", UserID: 1, Role: domain.RoleAssistant, Content: "c", Timestamp: time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=message.append")
}

func TestMessageRepo_TrimUser(t *testing.T) {
	mock := newMock(t)
	repo := NewMessageRepo(mock)
	mock.ExpectExec("DELETE FROM conversation_messages").
		WithArgs(int64(9), 50).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := repo.TrimUser(context.Background(), 9, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestMessageRepo_ListRecent(t *testing.T) {
	mock := newMock(t)
	repo := NewMessageRepo(mock)
	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	t1 := since.Add(time.Minute)
	t2 := since.Add(2 * time.Minute)

	rows := pgxmock.NewRows([]string{"id", "user_id", "role", "content", "intent", "created_at"}).
		AddRow("a", int64(5), "user", "question", "", t1).
		AddRow("b", int64(5), "assistant", "answer", "", t2)
	mock.ExpectQuery("SELECT id, user_id, role, content, intent, created_at FROM").
		WithArgs(int64(5), since, 10).
		WillReturnRows(rows)

	got, err := repo.ListRecent(context.Background(), 5, 10, since)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.RoleUser, got[0].Role)
	assert.Equal(t, "answer", got[1].Content)
	assert.Equal(t, t2, got[1].Timestamp)
}

func TestMessageRepo_ListRecentQueryError(t *testing.T) {
	mock := newMock(t)
	repo := NewMessageRepo(mock)
	mock.ExpectQuery("SELECT").
		WithArgs(int64(5), pgxmock.AnyArg(), 10).
		WillReturnError(errors.New("timeout"))

	_, err := repo.ListRecent(context.Background(), 5, 10, time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=message.list_recent")
}

func TestMessageRepo_ListRecentRowError(t *testing.T) {
	mock := newMock(t)
	repo := NewMessageRepo(mock)
	rows := pgxmock.NewRows([]string{"id", "user_id", "role", "content", "intent", "created_at"}).
		AddRow("a", int64(5), "user", "q", "", time.Now()).
		RowError(0, errors.New("broken row"))
	mock.ExpectQuery("SELECT").
		WithArgs(int64(5), pgxmock.AnyArg(), 10).
		WillReturnRows(rows)

	_, err := repo.ListRecent(context.Background(), 5, 10, time.Time{})
	require.Error(t, err)
}

func TestMessageRepo_DeleteOlderThan(t *testing.T) {
	mock := newMock(t)
	repo := NewMessageRepo(mock)
	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM conversation_messages WHERE created_at").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 12))

	n, err := repo.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	mock.ExpectExec("DELETE FROM conversation_messages WHERE created_at").
		WithArgs(cutoff).
		WillReturnError(errors.New("locked"))
	_, err = repo.DeleteOlderThan(context.Background(), cutoff)
	assert.ErrorContains(t, err, "op=message.delete_older_than")
}
