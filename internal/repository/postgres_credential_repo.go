package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/buildwise/backend/internal/model"
)

// PostgresCredentialRepo is the Postgres-backed password credential repository.
type PostgresCredentialRepo struct {
	db *sql.DB
}

// NewPostgresCredentialRepo creates a PostgresCredentialRepo.
func NewPostgresCredentialRepo(db *sql.DB) *PostgresCredentialRepo {
	return &PostgresCredentialRepo{db: db}
}

// FindByUserID returns the user's credential, or nil when the user has none.
func (r *PostgresCredentialRepo) FindByUserID(ctx context.Context, userID string) (*model.Credential, error) {
	cred := &model.Credential{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, password_hash, created_at, updated_at
		 FROM email_credentials
		 WHERE user_id = $1`,
		userID,
	).Scan(&cred.ID, &cred.UserID, &cred.PasswordHash, &cred.CreatedAt, &cred.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}
	return cred, nil
}

// compile-time interface check
var _ CredentialRepository = (*PostgresCredentialRepo)(nil)
