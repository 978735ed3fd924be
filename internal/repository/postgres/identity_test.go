package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/warmup-scheduler/internal/service/sending"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var columns = []string{"id", "smtp_host", "smtp_username", "is_active", "hourly_limit", "daily_limit",
	"created_at", "emails_sent_total", "emails_sent_today", "sent_today_date", "last_error_at"}

func TestIdentityRepo_List(t *testing.T) {
	db, mock := setupTestDB(t)
	created := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	errAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sentOn := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM sending_identities ORDER BY id").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("a", "smtp.gmail.com", "a@example.com", true, 0, 0, created, 120, 4, sentOn, nil).
			AddRow("b", "smtp.office365.com", "b@example.com", false, 50, 400, created, 900, 0, nil, errAt))

	ids, err := NewIdentityRepo(db).List(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, "smtp.gmail.com", ids[0].Host)
	assert.True(t, ids[0].Active)
	assert.Nil(t, ids[0].LastError)
	assert.Equal(t, "2026-03-02", ids[0].SentTodayDate)
	assert.Equal(t, 4, ids[0].SentOn("2026-03-02"))
	assert.Equal(t, 0, ids[0].SentOn("2026-03-03"))
	assert.Empty(t, ids[1].SentTodayDate)
	assert.Equal(t, 400, ids[1].DailyLimit)
	require.NotNil(t, ids[1].LastError)
	assert.Equal(t, errAt, *ids[1].LastError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepo_Get(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewIdentityRepo(db)

	mock.ExpectQuery("SELECT (.+) FROM sending_identities WHERE id = \\$1").
		WithArgs("a").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("a", "smtp.gmail.com", "a@example.com", true, 10, 100, time.Now(), 1, 1, nil, nil))
	id, err := repo.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 10, id.HourlyLimit)

	mock.ExpectQuery("SELECT (.+) FROM sending_identities WHERE id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, sending.ErrIdentityNotFound)

	mock.ExpectQuery("SELECT (.+) FROM sending_identities WHERE id = \\$1").
		WithArgs("x").
		WillReturnError(errors.New("connection reset"))
	_, err = repo.Get(context.Background(), "x")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, sending.ErrIdentityNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepo_IncrementSent(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewIdentityRepo(db)

	mock.ExpectExec("UPDATE sending_identities").
		WithArgs("a", "2026-03-02").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.IncrementSent(context.Background(), "a", "2026-03-02"))

	mock.ExpectExec("UPDATE sending_identities").
		WithArgs("missing", "2026-03-02").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.IncrementSent(context.Background(), "missing", "2026-03-02"), sending.ErrIdentityNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepo_RecordError(t *testing.T) {
	db, mock := setupTestDB(t)
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE sending_identities SET last_error_at").
		WithArgs("a", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, NewIdentityRepo(db).RecordError(context.Background(), "a", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityRepo_EnsureSchema(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sending_identities").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, NewIdentityRepo(db).EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
