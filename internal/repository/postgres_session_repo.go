package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/buildwise/backend/internal/model"
)

// PostgresSessionRepo is the Postgres-backed session repository.
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo creates a PostgresSessionRepo.
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create inserts a session.
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, token, user_agent, ip_address, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		session.ID, session.UserID, session.Token,
		nullString(session.UserAgent), nullString(session.IPAddress),
		session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID returns the session with id, or nil when absent.
// Expired sessions are returned so the caller can reject and delete them.
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var (
		session              model.Session
		userAgent, ipAddress sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, token, user_agent, ip_address, expires_at, created_at
		 FROM sessions
		 WHERE id = $1`,
		id,
	).Scan(&session.ID, &session.UserID, &session.Token, &userAgent, &ipAddress,
		&session.ExpiresAt, &session.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	session.UserAgent = userAgent.String
	session.IPAddress = ipAddress.String
	return &session, nil
}

// DeleteByID deletes the session. Deleting an absent session is not an error.
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUserID deletes every session of the user.
func (r *PostgresSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpiredByUserID deletes the user's sessions that expired before now.
func (r *PostgresSessionRepo) DeleteExpiredByUserID(ctx context.Context, userID string, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = $1 AND expires_at < $2`,
		userID, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
