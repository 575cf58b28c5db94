// Package auth implements signup, login, token refresh, logout and the OAuth callbacks.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/buildwise/backend/internal/identity"
	"github.com/buildwise/backend/internal/model"
	"github.com/buildwise/backend/internal/token"
)

// IdentityResolver maps authentication events to users.
type IdentityResolver interface {
	ResolvePassword(ctx context.Context, email, password string) (*model.User, error)
	ResolveOAuth(ctx context.Context, id identity.OAuthIdentity) (*model.User, error)
	CreateWithPassword(ctx context.Context, in identity.NewUser) (*model.User, error)
}

// SessionRegistry stores the sessions backing refresh tokens.
type SessionRegistry interface {
	Create(ctx context.Context, userID, userAgent, ipAddress string) (*model.Session, error)
	FindByID(ctx context.Context, id string) (*model.Session, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByIDForUser(ctx context.Context, id, userID string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

// TokenIssuer mints token pairs and verifies refresh tokens.
type TokenIssuer interface {
	Issue(p token.Payload) (*token.Pair, error)
	VerifyRefresh(tokenString string) (*token.RefreshPayload, error)
	AccessTokenLifetimeSeconds() int
}

// UserFinder loads users by id.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// SignupNotifier hands the welcome email to the background dispatcher.
// NotifySignup must not block and reports false when the message was not accepted.
type SignupNotifier interface {
	NotifySignup(user *model.User) bool
}

// Metrics records auth outcomes.
type Metrics interface {
	RecordAuthAttempt(operation, outcome string)
	RecordSessionCreated()
	RecordNotificationDropped(reason string)
}

// ClientInfo is diagnostic request metadata stored on the session.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

// AuthResult is returned by every operation that establishes a session.
type AuthResult struct {
	User         model.PublicUser `json:"user"`
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
	ExpiresIn    int              `json:"expiresIn"`
}

// ServiceConfig configures the Service.
type ServiceConfig struct {
	// RevokeOnRefresh deletes the redeemed session after a successful refresh.
	RevokeOnRefresh bool
}

// Service orchestrates the auth operations.
type Service struct {
	identities IdentityResolver
	sessions   SessionRegistry
	tokens     TokenIssuer
	users      UserFinder
	providers  map[model.Provider]OAuthProvider
	notifier   SignupNotifier
	metrics    Metrics
	config     ServiceConfig
	now        func() time.Time
}

// NewService creates a Service. notifier and metrics may be nil.
func NewService(
	identities IdentityResolver,
	sessions SessionRegistry,
	tokens TokenIssuer,
	users UserFinder,
	providers []OAuthProvider,
	notifier SignupNotifier,
	metrics Metrics,
	config ServiceConfig,
) *Service {
	byName := make(map[model.Provider]OAuthProvider, len(providers))
	for _, p := range providers {
		if p != nil {
			byName[p.Provider()] = p
		}
	}
	return &Service{
		identities: identities,
		sessions:   sessions,
		tokens:     tokens,
		users:      users,
		providers:  byName,
		notifier:   notifier,
		metrics:    metrics,
		config:     config,
		now:        time.Now,
	}
}

// Signup validates the request, creates the user and opens a session.
// The welcome email is handed off without waiting and never fails the signup.
func (s *Service) Signup(ctx context.Context, req SignupRequest, client ClientInfo) (res *AuthResult, err error) {
	defer func() { s.record("signup", err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.identities.CreateWithPassword(ctx, identity.NewUser{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		College:  req.College,
	})
	if err != nil {
		return nil, err
	}

	res, err = s.establish(ctx, user, client)
	if err != nil {
		return nil, err
	}

	s.notifySignup(user)

	slog.Info("user signed up", slog.String("user_id", user.ID))
	return res, nil
}

// Login authenticates email and password and opens a session.
func (s *Service) Login(ctx context.Context, req LoginRequest, client ClientInfo) (res *AuthResult, err error) {
	defer func() { s.record("login", err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.identities.ResolvePassword(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	return s.establish(ctx, user, client)
}

// Refresh redeems a refresh token for a new session and token pair.
// The redeemed session is left to expire unless RevokeOnRefresh is set.
func (s *Service) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (res *AuthResult, err error) {
	defer func() { s.record("refresh", err) }()

	if refreshToken == "" {
		return nil, model.NewValidationError("Refresh token is required")
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	if !user.IsActive {
		return nil, model.NewAccountDeactivatedError()
	}

	if claims.SessionID != "" {
		old, err := s.sessions.FindByID(ctx, claims.SessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to find session: %w", err)
		}
		if old == nil || old.UserID != user.ID {
			return nil, model.NewSessionNotFoundError()
		}
		if old.Expired(s.now()) {
			if err := s.sessions.DeleteByID(ctx, old.ID); err != nil {
				slog.Warn("failed to delete expired session",
					slog.String("session_id", old.ID),
					slog.String("error", err.Error()),
				)
			}
			return nil, model.NewSessionExpiredError()
		}
	}

	res, err = s.establish(ctx, user, client)
	if err != nil {
		return nil, err
	}

	if s.config.RevokeOnRefresh && claims.SessionID != "" {
		if err := s.sessions.DeleteByID(ctx, claims.SessionID); err != nil {
			slog.Warn("failed to revoke redeemed session",
				slog.String("session_id", claims.SessionID),
				slog.String("error", err.Error()),
			)
		}
	}

	return res, nil
}

// Logout deletes the named session, or every session of the user when sessionID is empty.
// Logging out of an already deleted session succeeds.
func (s *Service) Logout(ctx context.Context, userID, sessionID string) error {
	if userID == "" {
		return model.NewUnauthorizedError("User not authenticated")
	}

	if sessionID != "" {
		if err := s.sessions.DeleteByIDForUser(ctx, sessionID, userID); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
	} else {
		if err := s.sessions.DeleteAllForUser(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete sessions: %w", err)
		}
	}

	slog.Info("user logged out",
		slog.String("user_id", userID),
		slog.Bool("all_sessions", sessionID == ""),
	)
	return nil
}

// GetProfile returns the stored profile of the user.
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	profile := user.Profile()
	return &profile, nil
}

// AuthURL returns the consent page URL of provider.
func (s *Service) AuthURL(provider model.Provider, state string) (string, error) {
	p, err := s.provider(provider)
	if err != nil {
		return "", err
	}
	return p.AuthCodeURL(state), nil
}

// GoogleCallback completes the Google flow.
func (s *Service) GoogleCallback(ctx context.Context, code string, client ClientInfo) (*AuthResult, error) {
	return s.OAuthCallback(ctx, model.ProviderGoogle, code, client)
}

// GithubCallback completes the GitHub flow.
func (s *Service) GithubCallback(ctx context.Context, code string, client ClientInfo) (*AuthResult, error) {
	return s.OAuthCallback(ctx, model.ProviderGitHub, code, client)
}

// OAuthCallback exchanges code with provider, resolves the user by email and opens a session.
// Any provider failure, timeouts included, is reported as OAuthExchangeFailed.
func (s *Service) OAuthCallback(ctx context.Context, provider model.Provider, code string, client ClientInfo) (res *AuthResult, err error) {
	defer func() { s.record("oauth_"+string(provider), err) }()

	p, err := s.provider(provider)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, model.NewValidationError("Authorization code is required")
	}

	info, err := p.ExchangeCode(ctx, code)
	if err != nil {
		slog.Warn("oauth exchange failed",
			slog.String("provider", string(provider)),
			slog.String("error", err.Error()),
		)
		return nil, model.NewOAuthExchangeFailedError(provider, err)
	}

	user, err := s.identities.ResolveOAuth(ctx, identity.OAuthIdentity{
		Provider:       provider,
		ProviderUserID: info.ProviderUserID,
		Email:          info.Email,
		Name:           info.Name,
		AvatarURL:      info.AvatarURL,
		AccessToken:    info.AccessToken,
		RefreshToken:   info.RefreshToken,
		ExpiresAt:      info.ExpiresAt,
	})
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Kind == model.KindValidation {
			return nil, model.NewOAuthExchangeFailedError(provider, err)
		}
		return nil, err
	}

	return s.establish(ctx, user, client)
}

func (s *Service) provider(name model.Provider) (OAuthProvider, error) {
	p, ok := s.providers[name]
	if !ok || !p.Configured() {
		return nil, model.NewOAuthNotConfiguredError(name)
	}
	return p, nil
}

// establish creates a session for user and issues the token pair bound to it.
func (s *Service) establish(ctx context.Context, user *model.User, client ClientInfo) (*AuthResult, error) {
	session, err := s.sessions.Create(ctx, user.ID, client.UserAgent, client.IPAddress)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordSessionCreated()
	}

	pair, err := s.tokens.Issue(token.Payload{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		SessionID: session.ID,
	})
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		User:         user.Public(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    s.tokens.AccessTokenLifetimeSeconds(),
	}, nil
}

func (s *Service) notifySignup(user *model.User) {
	if s.notifier == nil {
		return
	}
	if s.notifier.NotifySignup(user) {
		return
	}
	slog.Warn("welcome email dropped: notification queue full",
		slog.String("user_id", user.ID),
	)
	if s.metrics != nil {
		s.metrics.RecordNotificationDropped("queue_full")
	}
}

func (s *Service) record(operation string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = model.KindInternal.Code()
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			outcome = apiErr.Code()
		}
	}
	s.metrics.RecordAuthAttempt(operation, outcome)
}
