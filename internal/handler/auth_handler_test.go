package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/buildwise/backend/internal/auth"
	"github.com/buildwise/backend/internal/model"
	"github.com/buildwise/backend/internal/token"
)

func TestAuthHandler_Signup_Created(t *testing.T) {
	var gotReq auth.SignupRequest
	var gotClient auth.ClientInfo
	svc := &mockAuthService{
		signupFn: func(ctx context.Context, req auth.SignupRequest, c auth.ClientInfo) (*auth.AuthResult, error) {
			gotReq, gotClient = req, c
			return sampleResult(), nil
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	req := jsonRequest(http.MethodPost, "/api/auth/signup",
		`{"email":"ada@example.com","password":"password123","name":"Ada","college":"MIT"}`)
	req.Header.Set("User-Agent", "test-agent")
	req.RemoteAddr = "203.0.113.7:5555"
	w := httptest.NewRecorder()
	h.Signup(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	env := decodeEnvelope(t, w)
	if !env.Success || env.Message != "User created successfully" {
		t.Errorf("envelope = %+v", env)
	}

	var data auth.AuthResult
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.AccessToken != "access" || data.RefreshToken != "refresh" || data.ExpiresIn != 900 {
		t.Errorf("data = %+v", data)
	}
	if data.User.Email != "ada@example.com" {
		t.Errorf("user email = %q", data.User.Email)
	}

	if gotReq.Email != "ada@example.com" || gotReq.Password != "password123" || gotReq.College != "MIT" {
		t.Errorf("request = %+v", gotReq)
	}
	if gotClient.UserAgent != "test-agent" || gotClient.IPAddress != "203.0.113.7" {
		t.Errorf("client = %+v", gotClient)
	}
}

func TestAuthHandler_Signup_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		{"malformed json", `{"email":`, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"validation", `{}`, model.NewValidationError("Email is required"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"conflict", `{"email":"a@b.co","password":"password123"}`, model.NewEmailAlreadyExistsError(), http.StatusConflict, "CONFLICT"},
		{"unexpected", `{"email":"a@b.co","password":"password123"}`, errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				signupFn: func(ctx context.Context, req auth.SignupRequest, c auth.ClientInfo) (*auth.AuthResult, error) {
					return nil, tt.svcErr
				},
			}
			w := httptest.NewRecorder()
			NewAuthHandler(svc, AuthHandlerConfig{}).Signup(w, jsonRequest(http.MethodPost, "/api/auth/signup", tt.body))
			assertErrorEnvelope(t, w, tt.wantStatus, tt.wantCode, "")
			if strings.Contains(w.Body.String(), "db down") {
				t.Error("internal cause leaked")
			}
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, req auth.LoginRequest, c auth.ClientInfo) (*auth.AuthResult, error) {
			if req.Password != "password123" {
				return nil, model.NewInvalidCredentialsError()
			}
			return sampleResult(), nil
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	w := httptest.NewRecorder()
	h.Login(w, jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"password123"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if env := decodeEnvelope(t, w); env.Message != "Login successful" {
		t.Errorf("message = %q", env.Message)
	}

	w = httptest.NewRecorder()
	h.Login(w, jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"wrong-pass"}`))
	assertErrorEnvelope(t, w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "")
}

func TestAuthHandler_Refresh(t *testing.T) {
	var got string
	svc := &mockAuthService{
		refreshFn: func(ctx context.Context, refreshToken string, c auth.ClientInfo) (*auth.AuthResult, error) {
			got = refreshToken
			return sampleResult(), nil
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	w := httptest.NewRecorder()
	h.Refresh(w, jsonRequest(http.MethodPost, "/api/auth/refresh", `{"refreshToken":"rt-1"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got != "rt-1" {
		t.Errorf("refresh token = %q, want rt-1", got)
	}
	if env := decodeEnvelope(t, w); env.Message != "Token refreshed successfully" {
		t.Errorf("message = %q", env.Message)
	}
}

func TestAuthHandler_Refresh_MissingToken(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, AuthHandlerConfig{})

	for _, body := range []string{"", `{}`, `{"refreshToken":""}`} {
		w := httptest.NewRecorder()
		h.Refresh(w, jsonRequest(http.MethodPost, "/api/auth/refresh", body))
		assertErrorEnvelope(t, w, http.StatusBadRequest, "VALIDATION_ERROR", "Refresh token is required")
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	var gotUser, gotSession string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, userID, sessionID string) error {
			gotUser, gotSession = userID, sessionID
			return nil
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	req := withClaims(jsonRequest(http.MethodPost, "/api/auth/logout", ""),
		&token.Payload{UserID: "user-1", SessionID: "sess-1"})
	w := httptest.NewRecorder()
	h.Logout(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotUser != "user-1" || gotSession != "sess-1" {
		t.Errorf("logout(%q, %q)", gotUser, gotSession)
	}
	env := decodeEnvelope(t, w)
	if env.Message != "Logout successful" || len(env.Data) != 0 {
		t.Errorf("envelope = %+v", env)
	}
}

func TestAuthHandler_Logout_NoClaims(t *testing.T) {
	w := httptest.NewRecorder()
	NewAuthHandler(&mockAuthService{}, AuthHandlerConfig{}).Logout(w, jsonRequest(http.MethodPost, "/api/auth/logout", ""))
	assertErrorEnvelope(t, w, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
}

func TestAuthHandler_Me(t *testing.T) {
	svc := &mockAuthService{
		profileFn: func(ctx context.Context, userID string) (*model.Profile, error) {
			if userID != "user-1" {
				return nil, model.NewUserNotFoundError()
			}
			u := &model.User{ID: "user-1", Email: "ada@example.com", Role: model.RoleStudent, IsActive: true}
			p := u.Profile()
			return &p, nil
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	w := httptest.NewRecorder()
	h.Me(w, withClaims(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), &token.Payload{UserID: "user-1"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var profile map[string]any
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &profile); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if profile["email"] != "ada@example.com" || profile["isActive"] != true {
		t.Errorf("profile = %v", profile)
	}
	if _, ok := profile["name"]; !ok {
		t.Error("name should be present as null")
	}

	w = httptest.NewRecorder()
	h.Me(w, withClaims(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), &token.Payload{UserID: "gone"}))
	assertErrorEnvelope(t, w, http.StatusNotFound, "NOT_FOUND", "User not found")
}

func TestAuthHandler_OAuthRedirect(t *testing.T) {
	var gotState string
	svc := &mockAuthService{
		authURLFn: func(provider model.Provider, state string) (string, error) {
			gotState = state
			return "https://accounts.google.com/o/oauth2/auth?state=" + state, nil
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{CookieSecure: true})

	w := httptest.NewRecorder()
	h.GoogleRedirect(w, httptest.NewRequest(http.MethodGet, "/api/auth/google", nil))

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusFound)
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad Location: %v", err)
	}
	if loc.Host != "accounts.google.com" || loc.Query().Get("state") != gotState {
		t.Errorf("Location = %s", loc)
	}
	if len(gotState) != 64 {
		t.Errorf("state length = %d, want 64", len(gotState))
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != oauthStateCookie || c.Value != gotState || !c.HttpOnly || !c.Secure || c.MaxAge != oauthStateMaxAge {
		t.Errorf("cookie = %+v", c)
	}
}

func TestAuthHandler_OAuthRedirect_NotConfigured(t *testing.T) {
	svc := &mockAuthService{
		authURLFn: func(provider model.Provider, state string) (string, error) {
			return "", model.NewOAuthNotConfiguredError(provider)
		},
	}
	w := httptest.NewRecorder()
	NewAuthHandler(svc, AuthHandlerConfig{}).GitHubRedirect(w, httptest.NewRequest(http.MethodGet, "/api/auth/github", nil))

	assertErrorEnvelope(t, w, http.StatusInternalServerError, "OAUTH_NOT_CONFIGURED", "")
	if len(w.Result().Cookies()) != 0 {
		t.Error("no state cookie should be set when the provider is not configured")
	}
}

func TestAuthHandler_OAuthCallback(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		cookie     string
		wantStatus int
		wantCalled bool
		wantMsg    string
	}{
		{"code without cookie", "/cb?code=abc", "", http.StatusOK, true, ""},
		{"matching state", "/cb?code=abc&state=s1", "s1", http.StatusOK, true, ""},
		{"mismatched state", "/cb?code=abc&state=s2", "s1", http.StatusBadRequest, false, "Invalid OAuth state"},
		{"cookie but no state", "/cb?code=abc", "s1", http.StatusBadRequest, false, "Invalid OAuth state"},
		{"missing code", "/cb?state=s1", "s1", http.StatusBadRequest, false, "Authorization code is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{}
			h := NewAuthHandler(svc, AuthHandlerConfig{})

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			h.GitHubCallback(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if (svc.oauthCalls == 1) != tt.wantCalled {
				t.Errorf("OAuthCallback calls = %d", svc.oauthCalls)
			}
			env := decodeEnvelope(t, w)
			if tt.wantMsg != "" && env.Error != tt.wantMsg {
				t.Errorf("error = %q, want %q", env.Error, tt.wantMsg)
			}
			if tt.wantCalled {
				if svc.lastProvider != model.ProviderGitHub {
					t.Errorf("provider = %q", svc.lastProvider)
				}
				if env.Message != "GitHub authentication successful" {
					t.Errorf("message = %q", env.Message)
				}
			}
			if tt.cookie != "" {
				cleared := false
				for _, c := range w.Result().Cookies() {
					if c.Name == oauthStateCookie && c.MaxAge < 0 {
						cleared = true
					}
				}
				if !cleared {
					t.Error("state cookie should be cleared")
				}
			}
		})
	}
}

func TestAuthHandler_OAuthCallback_ExchangeFailed(t *testing.T) {
	svc := &mockAuthService{
		oauthFn: func(ctx context.Context, provider model.Provider, code string, c auth.ClientInfo) (*auth.AuthResult, error) {
			return nil, model.NewOAuthExchangeFailedError(provider, errors.New("invalid_grant"))
		},
	}
	w := httptest.NewRecorder()
	NewAuthHandler(svc, AuthHandlerConfig{}).GoogleCallback(w, httptest.NewRequest(http.MethodGet, "/cb?code=bad", nil))

	assertErrorEnvelope(t, w, http.StatusUnauthorized, "OAUTH_EXCHANGE_FAILED", "")
	if strings.Contains(w.Body.String(), "invalid_grant") {
		t.Error("provider error leaked")
	}
}
