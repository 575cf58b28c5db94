package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/buildwise/backend/internal/auth"
	"github.com/buildwise/backend/internal/middleware"
	"github.com/buildwise/backend/internal/model"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 600
)

// AuthService is the auth orchestrator as seen by the HTTP layer.
type AuthService interface {
	Signup(ctx context.Context, req auth.SignupRequest, client auth.ClientInfo) (*auth.AuthResult, error)
	Login(ctx context.Context, req auth.LoginRequest, client auth.ClientInfo) (*auth.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string, client auth.ClientInfo) (*auth.AuthResult, error)
	Logout(ctx context.Context, userID, sessionID string) error
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	AuthURL(provider model.Provider, state string) (string, error)
	OAuthCallback(ctx context.Context, provider model.Provider, code string, client auth.ClientInfo) (*auth.AuthResult, error)
}

// AuthHandlerConfig configures the OAuth state cookie.
type AuthHandlerConfig struct {
	CookieSecure bool
}

// AuthHandler serves /api/auth.
type AuthHandler struct {
	service AuthService
	config  AuthHandlerConfig
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(service AuthService, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.Signup(r.Context(), req, client(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "User created successfully", result)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.Login(r.Context(), req, client(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Login successful", result)
}

// Refresh handles POST /api/auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if req.RefreshToken == "" {
		handleServiceError(w, r, model.NewValidationError("Refresh token is required"))
		return
	}

	result, err := h.service.Refresh(r.Context(), req.RefreshToken, client(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Token refreshed successfully", result)
}

// Logout handles POST /api/auth/logout. It revokes the session named in
// the access token, or every session when the token names none.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		handleServiceError(w, r, model.NewUnauthorizedError("User not authenticated"))
		return
	}

	if err := h.service.Logout(r.Context(), claims.UserID, claims.SessionID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Logout successful", nil)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, r, model.NewUnauthorizedError("User not authenticated"))
		return
	}

	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", profile)
}

// GoogleRedirect handles GET /api/auth/google.
func (h *AuthHandler) GoogleRedirect(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r, model.ProviderGoogle)
}

// GoogleCallback handles GET /api/auth/google/callback.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	h.callback(w, r, model.ProviderGoogle, "Google authentication successful")
}

// GitHubRedirect handles GET /api/auth/github.
func (h *AuthHandler) GitHubRedirect(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r, model.ProviderGitHub)
}

// GitHubCallback handles GET /api/auth/github/callback.
func (h *AuthHandler) GitHubCallback(w http.ResponseWriter, r *http.Request) {
	h.callback(w, r, model.ProviderGitHub, "GitHub authentication successful")
}

func (h *AuthHandler) redirect(w http.ResponseWriter, r *http.Request, provider model.Provider) {
	state, err := generateState()
	if err != nil {
		handleServiceError(w, r, fmt.Errorf("failed to generate oauth state: %w", err))
		return
	}

	url, err := h.service.AuthURL(provider, state)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.setStateCookie(w, state, oauthStateMaxAge)
	http.Redirect(w, r, url, http.StatusFound)
}

// callback completes an OAuth flow. The state is compared only when the
// cookie set by redirect is present, so API clients may post just the code.
func (h *AuthHandler) callback(w http.ResponseWriter, r *http.Request, provider model.Provider, message string) {
	query := r.URL.Query()

	if cookie, err := r.Cookie(oauthStateCookie); err == nil {
		h.setStateCookie(w, "", -1)
		if cookie.Value == "" || cookie.Value != query.Get("state") {
			slog.Warn("oauth state mismatch", slog.String("provider", string(provider)))
			handleServiceError(w, r, model.NewValidationError("Invalid OAuth state"))
			return
		}
	}

	code := query.Get("code")
	if code == "" {
		handleServiceError(w, r, model.NewValidationError("Authorization code is required"))
		return
	}

	result, err := h.service.OAuthCallback(r.Context(), provider, code, client(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, message, result)
}

func (h *AuthHandler) setStateCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    value,
		Path:     "/api/auth",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func client(r *http.Request) auth.ClientInfo {
	userAgent, ip := clientInfo(r)
	return auth.ClientInfo{UserAgent: userAgent, IPAddress: ip}
}

// generateState returns 32 random bytes, hex encoded.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
