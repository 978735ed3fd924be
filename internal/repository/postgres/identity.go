package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/warmup-scheduler/internal/domain"
	"github.com/ignite/warmup-scheduler/internal/service/sending"
)

// IdentityRepo implements sending.Registry against PostgreSQL.
type IdentityRepo struct{ db *sql.DB }

// NewIdentityRepo creates a Postgres-backed identity registry.
func NewIdentityRepo(db *sql.DB) *IdentityRepo { return &IdentityRepo{db: db} }

// EnsureSchema creates the identities table if it does not exist.
func (r *IdentityRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sending_identities (
			id VARCHAR(100) PRIMARY KEY,
			smtp_host VARCHAR(255) NOT NULL,
			smtp_username VARCHAR(255) NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT true,
			hourly_limit INTEGER NOT NULL DEFAULT 0,
			daily_limit INTEGER NOT NULL DEFAULT 0,
			emails_sent_total BIGINT NOT NULL DEFAULT 0,
			emails_sent_today INTEGER NOT NULL DEFAULT 0,
			sent_today_date DATE,
			last_error_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure sending_identities: %w", err)
	}
	return nil
}

const identityColumns = `id, smtp_host, smtp_username, is_active, hourly_limit, daily_limit, created_at, emails_sent_total, emails_sent_today, sent_today_date, last_error_at`

func scanIdentity(row interface{ Scan(...any) error }) (*domain.Identity, error) {
	var (
		id        domain.Identity
		sentDate  sql.NullTime
		lastError sql.NullTime
	)
	if err := row.Scan(&id.ID, &id.Host, &id.User, &id.Active, &id.HourlyLimit, &id.DailyLimit,
		&id.CreatedAt, &id.EmailsSentTotal, &id.EmailsSentToday, &sentDate, &lastError); err != nil {
		return nil, err
	}
	if sentDate.Valid {
		// DATE columns come back as UTC midnight.
		id.SentTodayDate = sentDate.Time.UTC().Format("2006-01-02")
	}
	if lastError.Valid {
		t := lastError.Time
		id.LastError = &t
	}
	return &id, nil
}

func (r *IdentityRepo) List(ctx context.Context) ([]domain.Identity, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+identityColumns+` FROM sending_identities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var out []domain.Identity
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out = append(out, *id)
	}
	return out, rows.Err()
}

func (r *IdentityRepo) Get(ctx context.Context, id string) (*domain.Identity, error) {
	ident, err := scanIdentity(r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM sending_identities WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sending.ErrIdentityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return ident, nil
}

// IncrementSent restarts emails_sent_today when sent_today_date differs
// from day, so the reset follows the scheduler's zone rather than the
// database's.
func (r *IdentityRepo) IncrementSent(ctx context.Context, id string, day string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sending_identities
		SET emails_sent_total = emails_sent_total + 1,
		    emails_sent_today = CASE WHEN sent_today_date = $2::date THEN emails_sent_today + 1 ELSE 1 END,
		    sent_today_date = $2::date,
		    updated_at = NOW()
		WHERE id = $1
	`, id, day)
	if err != nil {
		return fmt.Errorf("increment sent: %w", err)
	}
	return requireRow(res)
}

func (r *IdentityRepo) RecordError(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sending_identities SET last_error_at = $2, updated_at = NOW() WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("record error: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, _ := res.RowsAffected()
	if n == 0 {
		return sending.ErrIdentityNotFound
	}
	return nil
}
