package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"log/slog"

	"github.com/dailyinfluencing/listingbot/core/logger"
)

const userColumns = `user_id, username, full_name, email, role, status, rejected_at,
	plan, subscription_expiry, last_active, community_size, answers, reminders`

// PostgresStore persists user records in the users table.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an open sqlx handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get loads one record; (nil, nil) when absent.
func (s *PostgresStore) Get(ctx context.Context, userID int64) (*UserRecord, error) {
	var rec UserRecord
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	err := s.db.GetContext(ctx, &rec, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user %d: %w", userID, err)
	}
	return &rec, nil
}

// Set upserts the record keyed by user_id.
func (s *PostgresStore) Set(ctx context.Context, rec *UserRecord) error {
	query := `INSERT INTO users (` + userColumns + `)
		VALUES (:user_id, :username, :full_name, :email, :role, :status, :rejected_at,
			:plan, :subscription_expiry, :last_active, :community_size, :answers, :reminders)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			full_name = EXCLUDED.full_name,
			email = EXCLUDED.email,
			role = EXCLUDED.role,
			status = EXCLUDED.status,
			rejected_at = EXCLUDED.rejected_at,
			plan = EXCLUDED.plan,
			subscription_expiry = EXCLUDED.subscription_expiry,
			last_active = EXCLUDED.last_active,
			community_size = EXCLUDED.community_size,
			answers = EXCLUDED.answers,
			reminders = EXCLUDED.reminders`
	if _, err := s.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("store: set user %d: %w", rec.UserID, err)
	}
	return nil
}

// Delete removes the record; deleting a missing user is a no-op.
func (s *PostgresStore) Delete(ctx context.Context, userID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("store: delete user %d: %w", userID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		logger.Debug(ctx, "db", "users.delete.miss",
			slog.Int64("user_id", userID),
		)
	}
	return nil
}

// All returns every record, oldest activity first.
func (s *PostgresStore) All(ctx context.Context) ([]*UserRecord, error) {
	var recs []*UserRecord
	query := `SELECT ` + userColumns + ` FROM users ORDER BY last_active ASC`
	if err := s.db.SelectContext(ctx, &recs, query); err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	return recs, nil
}
