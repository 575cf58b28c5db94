// Package identity maps authentication events to exactly one user.
//
// Email is the only merge key: a password signup and any number of OAuth
// providers that report the same address resolve to the same user.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/buildwise/backend/internal/model"
	"github.com/buildwise/backend/internal/repository"
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) (bool, error)
}

// OAuthIdentity is a verified identity reported by an OAuth provider.
type OAuthIdentity struct {
	Provider       model.Provider
	ProviderUserID string
	Email          string
	Name           string
	AvatarURL      string
	AccessToken    string
	RefreshToken   string
	ExpiresAt      *time.Time
}

// NewUser is the input of CreateWithPassword.
type NewUser struct {
	Email    string
	Password string
	Name     string
	College  string
}

// Resolver finds, creates and links users.
type Resolver struct {
	users    repository.UserRepository
	creds    repository.CredentialRepository
	accounts repository.AuthAccountRepository
	hasher   PasswordHasher
	now      func() time.Time
}

// NewResolver creates a Resolver.
func NewResolver(
	users repository.UserRepository,
	creds repository.CredentialRepository,
	accounts repository.AuthAccountRepository,
	hasher PasswordHasher,
) *Resolver {
	return &Resolver{
		users:    users,
		creds:    creds,
		accounts: accounts,
		hasher:   hasher,
		now:      time.Now,
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ResolvePassword authenticates email and password.
// Unknown email, missing credential and wrong password all return the same InvalidCredentials error.
func (r *Resolver) ResolvePassword(ctx context.Context, email, password string) (*model.User, error) {
	user, err := r.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	cred, err := r.creds.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}
	if cred == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	ok, err := r.hasher.Compare(cred.PasswordHash, password)
	if err != nil {
		slog.Error("stored password hash is unreadable",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewInvalidCredentialsError()
	}
	if !ok {
		return nil, model.NewInvalidCredentialsError()
	}

	if !user.IsActive {
		return nil, model.NewAccountDeactivatedError()
	}

	return user, nil
}

// CreateWithPassword registers a new STUDENT with a password credential.
// Returns EmailAlreadyExists when the email is taken, including when a concurrent signup wins the race.
func (r *Resolver) CreateWithPassword(ctx context.Context, in NewUser) (*model.User, error) {
	email := NormalizeEmail(in.Email)

	existing, err := r.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailAlreadyExistsError()
	}

	hash, err := r.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := r.now()
	user := &model.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      strings.TrimSpace(in.Name),
		Role:      model.RoleStudent,
		IsActive:  true,
		College:   strings.TrimSpace(in.College),
		CreatedAt: now,
		UpdatedAt: now,
	}
	cred := &model.Credential{
		ID:           uuid.New().String(),
		UserID:       user.ID,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := r.users.CreateWithCredential(ctx, user, cred); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewEmailAlreadyExistsError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// ResolveOAuth links a provider identity to the user owning its email, creating the user when none exists.
func (r *Resolver) ResolveOAuth(ctx context.Context, id OAuthIdentity) (*model.User, error) {
	email := NormalizeEmail(id.Email)
	if email == "" {
		return nil, model.NewValidationError("Provider did not return an email address")
	}

	user, err := r.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		user, err = r.createOAuthUser(ctx, email, id)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}

		// lost a race against a concurrent signup; link to the winner
		user, err = r.users.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		if user == nil {
			// the collision was on the provider subject, which another email owns
			return nil, model.NewOAuthExchangeFailedError(id.Provider,
				fmt.Errorf("provider account is linked to another user"))
		}
	}

	if !user.IsActive {
		return nil, model.NewAccountDeactivatedError()
	}

	if err := r.linkAccount(ctx, user, id); err != nil {
		return nil, err
	}

	if user.Name == "" || user.AvatarURL == "" {
		if err := r.users.FillProfile(ctx, user.ID, id.Name, id.AvatarURL); err != nil {
			return nil, err
		}
		if user.Name == "" {
			user.Name = id.Name
		}
		if user.AvatarURL == "" {
			user.AvatarURL = id.AvatarURL
		}
	}

	return user, nil
}

func (r *Resolver) createOAuthUser(ctx context.Context, email string, id OAuthIdentity) (*model.User, error) {
	now := r.now()
	user := &model.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      id.Name,
		Role:      model.RoleStudent,
		IsActive:  true,
		AvatarURL: id.AvatarURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	account := newAccount(user.ID, id, now)

	if err := r.users.CreateWithAuthAccount(ctx, user, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created via oauth",
		slog.String("user_id", user.ID),
		slog.String("provider", string(id.Provider)),
	)
	return user, nil
}

// linkAccount refreshes the user's existing account for the provider or creates one.
func (r *Resolver) linkAccount(ctx context.Context, user *model.User, id OAuthIdentity) error {
	account, err := r.accounts.FindByUserAndProvider(ctx, user.ID, id.Provider)
	if err != nil {
		return fmt.Errorf("failed to find auth account: %w", err)
	}

	if account != nil {
		if err := r.accounts.UpdateTokens(ctx, account.ID, id.AccessToken, id.RefreshToken, id.ExpiresAt); err != nil {
			return err
		}
		return nil
	}

	if err := r.accounts.Create(ctx, newAccount(user.ID, id, r.now())); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// the provider subject already belongs to a different user
			return model.NewOAuthExchangeFailedError(id.Provider,
				fmt.Errorf("provider account is linked to another user"))
		}
		return fmt.Errorf("failed to link auth account: %w", err)
	}

	slog.Info("auth account linked",
		slog.String("user_id", user.ID),
		slog.String("provider", string(id.Provider)),
	)
	return nil
}

func newAccount(userID string, id OAuthIdentity, now time.Time) *model.AuthAccount {
	return &model.AuthAccount{
		ID:             uuid.New().String(),
		UserID:         userID,
		Provider:       id.Provider,
		ProviderUserID: id.ProviderUserID,
		AccessToken:    id.AccessToken,
		RefreshToken:   id.RefreshToken,
		ExpiresAt:      id.ExpiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
