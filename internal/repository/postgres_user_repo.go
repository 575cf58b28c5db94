package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/buildwise/backend/internal/model"
)

const userColumns = `id, email, name, role, is_active, avatar_url, college, created_at, updated_at`

// PostgresUserRepo is the Postgres-backed user repository.
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo creates a PostgresUserRepo.
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		user                     model.User
		role                     string
		name, avatarURL, college sql.NullString
	)
	err := row.Scan(&user.ID, &user.Email, &name, &role, &user.IsActive,
		&avatarURL, &college, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.Role = model.Role(role)
	user.Name = name.String
	user.AvatarURL = avatarURL.String
	user.College = college.String
	return &user, nil
}

// FindByID returns the user with id, or nil when absent.
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail returns the user with email, or nil when absent.
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`,
		email,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// FindFirstByRole returns the oldest user with role, or nil when none exists.
func (r *PostgresUserRepo) FindFirstByRole(ctx context.Context, role model.Role) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY created_at ASC LIMIT 1`,
		string(role),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by role: %w", err)
	}
	return user, nil
}

// ListByRole returns users with role, newest first.
func (r *PostgresUserRepo) ListByRole(ctx context.Context, role model.Role) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY created_at DESC`,
		string(role),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users by role: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// CreateWithCredential creates the user and its password credential in one transaction.
func (r *PostgresUserRepo) CreateWithCredential(ctx context.Context, user *model.User, cred *model.Credential) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertUser(ctx, tx, user); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO email_credentials (id, user_id, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		cred.ID, cred.UserID, cred.PasswordHash, cred.CreatedAt, cred.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateWithAuthAccount creates the user and its first auth account in one transaction.
func (r *PostgresUserRepo) CreateWithAuthAccount(ctx context.Context, user *model.User, account *model.AuthAccount) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertUser(ctx, tx, user); err != nil {
		return err
	}

	if err := insertAuthAccount(ctx, tx, account); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FillProfile sets name and avatar URL only where they are currently empty.
func (r *PostgresUserRepo) FillProfile(ctx context.Context, id, name, avatarURL string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET name = COALESCE(NULLIF(name, ''), $2),
		     avatar_url = COALESCE(NULLIF(avatar_url, ''), $3),
		     updated_at = now()
		 WHERE id = $1`,
		id, nullString(name), nullString(avatarURL),
	)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	return nil
}

// UpdateRole changes the role and returns the updated user, or nil when absent.
func (r *PostgresUserRepo) UpdateRole(ctx context.Context, id string, role model.Role) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users SET role = $2, updated_at = now() WHERE id = $1 RETURNING `+userColumns,
		id, string(role),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user role: %w", err)
	}
	return user, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertUser(ctx context.Context, db execer, user *model.User) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, role, is_active, avatar_url, college, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Email, nullString(user.Name), string(user.Role), user.IsActive,
		nullString(user.AvatarURL), nullString(user.College), user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
