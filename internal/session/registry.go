// Package session manages the server-side sessions that back refresh tokens.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/buildwise/backend/internal/model"
	"github.com/buildwise/backend/internal/repository"
)

// DefaultTTL is the fixed lifetime of a session. It is never extended.
const DefaultTTL = 7 * 24 * time.Hour

// tokenBytes is the entropy of Session.Token before hex encoding.
const tokenBytes = 32

// Registry creates, looks up and revokes sessions.
type Registry struct {
	repo repository.SessionRepository
	ttl  time.Duration
	now  func() time.Time
}

// NewRegistry creates a Registry. A non-positive ttl means DefaultTTL.
func NewRegistry(repo repository.SessionRepository, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		repo: repo,
		ttl:  ttl,
		now:  time.Now,
	}
}

// Create inserts a new session for the user.
// Before inserting, the user's expired sessions are swept. A failed sweep is logged and ignored.
func (r *Registry) Create(ctx context.Context, userID, userAgent, ipAddress string) (*model.Session, error) {
	now := r.now()

	if n, err := r.repo.DeleteExpiredByUserID(ctx, userID, now); err != nil {
		slog.Warn("expired session sweep failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	} else if n > 0 {
		slog.Debug("swept expired sessions",
			slog.String("user_id", userID),
			slog.Int64("deleted_count", n),
		)
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	session := &model.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Token:     token,
		UserAgent: userAgent,
		IPAddress: ipAddress,
		ExpiresAt: now.Add(r.ttl),
		CreatedAt: now,
	}

	if err := r.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// FindByID returns the session, or nil when it does not exist. Expired sessions are returned as-is.
func (r *Registry) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		// the column is UUID; a non-UUID id can never match
		return nil, nil
	}
	return r.repo.FindByID(ctx, id)
}

// DeleteByID deletes the session. Deleting an absent session succeeds.
func (r *Registry) DeleteByID(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	return r.repo.DeleteByID(ctx, id)
}

// DeleteByIDForUser deletes the session only when it belongs to userID.
func (r *Registry) DeleteByIDForUser(ctx context.Context, id, userID string) error {
	s, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if s == nil || s.UserID != userID {
		return nil
	}
	return r.repo.DeleteByID(ctx, id)
}

// DeleteAllForUser deletes every session of the user.
func (r *Registry) DeleteAllForUser(ctx context.Context, userID string) error {
	return r.repo.DeleteByUserID(ctx, userID)
}

// Now returns the registry clock. Callers compare it against Session.ExpiresAt.
func (r *Registry) Now() time.Time {
	return r.now()
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
