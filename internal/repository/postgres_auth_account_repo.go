package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/buildwise/backend/internal/model"
)

// PostgresAuthAccountRepo is the Postgres-backed OAuth account repository.
type PostgresAuthAccountRepo struct {
	db *sql.DB
}

// NewPostgresAuthAccountRepo creates a PostgresAuthAccountRepo.
func NewPostgresAuthAccountRepo(db *sql.DB) *PostgresAuthAccountRepo {
	return &PostgresAuthAccountRepo{db: db}
}

// FindByUserAndProvider returns the user's account for provider, or nil when absent.
func (r *PostgresAuthAccountRepo) FindByUserAndProvider(ctx context.Context, userID string, provider model.Provider) (*model.AuthAccount, error) {
	var (
		account                   model.AuthAccount
		prov                      string
		accessToken, refreshToken sql.NullString
		expiresAt                 sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, provider, provider_user_id, access_token, refresh_token, expires_at, created_at, updated_at
		 FROM auth_accounts
		 WHERE user_id = $1 AND provider = $2`,
		userID, string(provider),
	).Scan(&account.ID, &account.UserID, &prov, &account.ProviderUserID,
		&accessToken, &refreshToken, &expiresAt, &account.CreatedAt, &account.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find auth account: %w", err)
	}

	account.Provider = model.Provider(prov)
	account.AccessToken = accessToken.String
	account.RefreshToken = refreshToken.String
	if expiresAt.Valid {
		t := expiresAt.Time
		account.ExpiresAt = &t
	}
	return &account, nil
}

// Create links a provider account to an existing user.
func (r *PostgresAuthAccountRepo) Create(ctx context.Context, account *model.AuthAccount) error {
	return insertAuthAccount(ctx, r.db, account)
}

// UpdateTokens replaces the stored provider tokens in place.
func (r *PostgresAuthAccountRepo) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE auth_accounts
		 SET access_token = $2, refresh_token = $3, expires_at = $4, updated_at = now()
		 WHERE id = $1`,
		id, nullString(accessToken), nullString(refreshToken), nullTime(expiresAt),
	)
	if err != nil {
		return fmt.Errorf("failed to update auth account tokens: %w", err)
	}
	return nil
}

func insertAuthAccount(ctx context.Context, db execer, a *model.AuthAccount) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO auth_accounts (id, user_id, provider, provider_user_id, access_token, refresh_token, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.UserID, string(a.Provider), a.ProviderUserID,
		nullString(a.AccessToken), nullString(a.RefreshToken), nullTime(a.ExpiresAt),
		a.CreatedAt, a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert auth account: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// compile-time interface check
var _ AuthAccountRepository = (*PostgresAuthAccountRepo)(nil)
