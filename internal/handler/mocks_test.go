package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/buildwise/backend/internal/auth"
	"github.com/buildwise/backend/internal/email"
	"github.com/buildwise/backend/internal/middleware"
	"github.com/buildwise/backend/internal/model"
	"github.com/buildwise/backend/internal/token"
)

type mockAuthService struct {
	signupFn     func(ctx context.Context, req auth.SignupRequest, c auth.ClientInfo) (*auth.AuthResult, error)
	loginFn      func(ctx context.Context, req auth.LoginRequest, c auth.ClientInfo) (*auth.AuthResult, error)
	refreshFn    func(ctx context.Context, refreshToken string, c auth.ClientInfo) (*auth.AuthResult, error)
	logoutFn     func(ctx context.Context, userID, sessionID string) error
	profileFn    func(ctx context.Context, userID string) (*model.Profile, error)
	authURLFn    func(provider model.Provider, state string) (string, error)
	oauthFn      func(ctx context.Context, provider model.Provider, code string, c auth.ClientInfo) (*auth.AuthResult, error)
	oauthCalls   int
	lastProvider model.Provider
}

func (m *mockAuthService) Signup(ctx context.Context, req auth.SignupRequest, c auth.ClientInfo) (*auth.AuthResult, error) {
	return m.signupFn(ctx, req, c)
}

func (m *mockAuthService) Login(ctx context.Context, req auth.LoginRequest, c auth.ClientInfo) (*auth.AuthResult, error) {
	return m.loginFn(ctx, req, c)
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string, c auth.ClientInfo) (*auth.AuthResult, error) {
	return m.refreshFn(ctx, refreshToken, c)
}

func (m *mockAuthService) Logout(ctx context.Context, userID, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, userID, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	return m.profileFn(ctx, userID)
}

func (m *mockAuthService) AuthURL(provider model.Provider, state string) (string, error) {
	if m.authURLFn != nil {
		return m.authURLFn(provider, state)
	}
	return "https://provider.example.com/authorize?state=" + state, nil
}

func (m *mockAuthService) OAuthCallback(ctx context.Context, provider model.Provider, code string, c auth.ClientInfo) (*auth.AuthResult, error) {
	m.oauthCalls++
	m.lastProvider = provider
	if m.oauthFn != nil {
		return m.oauthFn(ctx, provider, code, c)
	}
	return sampleResult(), nil
}

type mockAdminService struct {
	promoteFn func(ctx context.Context, email string) (*model.User, error)
	demoteFn  func(ctx context.Context, actorEmail, email string) (*model.User, error)
	listFn    func(ctx context.Context) ([]*model.User, error)
}

func (m *mockAdminService) Promote(ctx context.Context, email string) (*model.User, error) {
	return m.promoteFn(ctx, email)
}

func (m *mockAdminService) Demote(ctx context.Context, actorEmail, email string) (*model.User, error) {
	return m.demoteFn(ctx, actorEmail, email)
}

func (m *mockAdminService) ListAdmins(ctx context.Context) ([]*model.User, error) {
	return m.listFn(ctx)
}

type mockEmailService struct {
	previewFn func(event model.EmailEventType, data email.TemplateData) (*email.Rendered, error)
	queueFn   func(ctx context.Context, to string, event model.EmailEventType, data email.TemplateData, userID string) (*model.EmailNotification, error)
	sendNowFn func(ctx context.Context, to string, event model.EmailEventType, data email.TemplateData, userID string) (*email.SendResult, error)
	customFn  func(ctx context.Context, to, subject, html, text string) error
	processFn func(ctx context.Context, limit int) (*email.ProcessResult, error)
	statsFn   func(ctx context.Context) (*model.EmailStats, error)
	cleanupFn func(ctx context.Context, days int) (int64, error)
	verifyFn  func(ctx context.Context) error
}

func (m *mockEmailService) Preview(event model.EmailEventType, data email.TemplateData) (*email.Rendered, error) {
	return m.previewFn(event, data)
}

func (m *mockEmailService) Queue(ctx context.Context, to string, event model.EmailEventType, data email.TemplateData, userID string) (*model.EmailNotification, error) {
	return m.queueFn(ctx, to, event, data, userID)
}

func (m *mockEmailService) SendNow(ctx context.Context, to string, event model.EmailEventType, data email.TemplateData, userID string) (*email.SendResult, error) {
	return m.sendNowFn(ctx, to, event, data, userID)
}

func (m *mockEmailService) SendCustom(ctx context.Context, to, subject, html, text string) error {
	return m.customFn(ctx, to, subject, html, text)
}

func (m *mockEmailService) ProcessPending(ctx context.Context, limit int) (*email.ProcessResult, error) {
	return m.processFn(ctx, limit)
}

func (m *mockEmailService) Stats(ctx context.Context) (*model.EmailStats, error) {
	return m.statsFn(ctx)
}

func (m *mockEmailService) CleanupSent(ctx context.Context, days int) (int64, error) {
	return m.cleanupFn(ctx, days)
}

func (m *mockEmailService) VerifyTransport(ctx context.Context) error {
	return m.verifyFn(ctx)
}

func sampleResult() *auth.AuthResult {
	name := "Ada"
	return &auth.AuthResult{
		User:         model.PublicUser{ID: "user-1", Email: "ada@example.com", Name: &name, Role: model.RoleStudent},
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresIn:    900,
	}
}

func withClaims(r *http.Request, claims *token.Payload) *http.Request {
	return r.WithContext(middleware.ContextWithClaims(r.Context(), claims))
}

func jsonRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return env
}

func assertErrorEnvelope(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode, wantMsg string) {
	t.Helper()
	if w.Code != wantStatus {
		t.Errorf("status = %d, want %d", w.Code, wantStatus)
	}
	env := decodeEnvelope(t, w)
	if env.Success {
		t.Error("success should be false")
	}
	if env.Code != wantCode {
		t.Errorf("code = %q, want %q", env.Code, wantCode)
	}
	if wantMsg != "" && env.Error != wantMsg {
		t.Errorf("error = %q, want %q", env.Error, wantMsg)
	}
}
