// Package repository defines persistence interfaces and their Postgres implementations.
package repository

import (
	"context"
	"time"

	"github.com/buildwise/backend/internal/model"
)

// UserRepository persists users.
type UserRepository interface {
	// FindByID returns the user with id, or nil when absent.
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail returns the user with email (case-insensitive), or nil when absent.
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindFirstByRole returns the oldest user with role, or nil when none exists.
	FindFirstByRole(ctx context.Context, role model.Role) (*model.User, error)

	// ListByRole returns users with role, newest first.
	ListByRole(ctx context.Context, role model.Role) ([]*model.User, error)

	// CreateWithCredential creates the user and its password credential in one transaction.
	// Returns ErrDuplicate when the email is already registered.
	CreateWithCredential(ctx context.Context, user *model.User, cred *model.Credential) error

	// CreateWithAuthAccount creates the user and its first auth account in one transaction.
	// Returns ErrDuplicate when the email or provider subject is already registered.
	CreateWithAuthAccount(ctx context.Context, user *model.User, account *model.AuthAccount) error

	// FillProfile sets name and avatar URL only where they are currently empty.
	FillProfile(ctx context.Context, id, name, avatarURL string) error

	// UpdateRole changes the role and returns the updated user, or nil when absent.
	UpdateRole(ctx context.Context, id string, role model.Role) (*model.User, error)
}

// CredentialRepository persists password credentials.
type CredentialRepository interface {
	// FindByUserID returns the user's credential, or nil when the user has none.
	FindByUserID(ctx context.Context, userID string) (*model.Credential, error)
}

// AuthAccountRepository persists OAuth provider links.
type AuthAccountRepository interface {
	// FindByUserAndProvider returns the user's account for provider, or nil when absent.
	FindByUserAndProvider(ctx context.Context, userID string, provider model.Provider) (*model.AuthAccount, error)

	// Create links a provider account to an existing user.
	// Returns ErrDuplicate when the provider subject is already linked.
	Create(ctx context.Context, account *model.AuthAccount) error

	// UpdateTokens replaces the stored provider tokens in place.
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error
}

// SessionRepository persists sessions.
type SessionRepository interface {
	// Create inserts a session.
	Create(ctx context.Context, session *model.Session) error
	// FindByID returns the session with id, expired or not, or nil when absent.
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID deletes the session. Deleting an absent session is not an error.
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID deletes every session of the user.
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpiredByUserID deletes the user's sessions that expired before now.
	DeleteExpiredByUserID(ctx context.Context, userID string, now time.Time) (int64, error)
}

// EmailNotificationRepository persists outbound email notifications.
type EmailNotificationRepository interface {
	// Create inserts a notification.
	Create(ctx context.Context, n *model.EmailNotification) error
	// ListPending returns unsent notifications below their retry limit, oldest first.
	ListPending(ctx context.Context, limit int) ([]*model.EmailNotification, error)
	// MarkSent records a successful delivery.
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	// MarkFailed increments the retry count and records the failure.
	MarkFailed(ctx context.Context, id string, reason string) error
	// Stats returns aggregate counts.
	Stats(ctx context.Context) (*model.EmailStats, error)
	// DeleteSentBefore deletes sent notifications older than cutoff.
	DeleteSentBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
