package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/buildwise/backend/internal/auth"
	"github.com/buildwise/backend/internal/middleware"
	"github.com/buildwise/backend/internal/model"
	"github.com/buildwise/backend/internal/token"
)

type fakePinger struct {
	err error
}

func (p *fakePinger) PingContext(ctx context.Context) error {
	return p.err
}

type staticVerifier map[string]*token.Payload

func (v staticVerifier) VerifyAccess(s string) (*token.Payload, error) {
	if p, ok := v[s]; ok {
		return p, nil
	}
	return nil, model.NewTokenInvalidError(errors.New("unknown token"))
}

func newTestRouter(t *testing.T, db Pinger) http.Handler {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	authSvc := &mockAuthService{
		signupFn: func(ctx context.Context, req auth.SignupRequest, c auth.ClientInfo) (*auth.AuthResult, error) {
			return sampleResult(), nil
		},
		profileFn: func(ctx context.Context, userID string) (*model.Profile, error) {
			u := &model.User{ID: userID, Email: "ada@example.com", Role: model.RoleStudent, IsActive: true}
			p := u.Profile()
			return &p, nil
		},
	}
	adminSvc := &mockAdminService{
		listFn: func(ctx context.Context) ([]*model.User, error) { return nil, nil },
	}
	emailSvc := &mockEmailService{
		statsFn: func(ctx context.Context) (*model.EmailStats, error) { return &model.EmailStats{}, nil },
	}

	return NewRouter(&RouterDeps{
		Verifier: staticVerifier{
			"student": {UserID: "s1", Email: "s@example.com", Role: model.RoleStudent},
			"admin":   {UserID: "a1", Email: "a@example.com", Role: model.RoleAdmin},
		},
		RateLimiter:       rl,
		CORSAllowedOrigin: "http://localhost:3000",
		AuthService:       authSvc,
		AdminService:      adminSvc,
		EmailService:      emailSvc,
		DB:                db,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# metrics"))
		}),
		Version: "test",
	})
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter(t, &fakePinger{})

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		bearer     string
		wantStatus int
	}{
		{"root", http.MethodGet, "/", "", "", http.StatusOK},
		{"health", http.MethodGet, "/health", "", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", "", http.StatusOK},
		{"signup", http.MethodPost, "/api/auth/signup", `{}`, "", http.StatusCreated},
		{"google redirect", http.MethodGet, "/api/auth/google", "", "", http.StatusFound},
		{"github callback", http.MethodGet, "/api/auth/github/callback?code=x", "", "", http.StatusOK},
		{"me anonymous", http.MethodGet, "/api/auth/me", "", "", http.StatusUnauthorized},
		{"me", http.MethodGet, "/api/auth/me", "", "student", http.StatusOK},
		{"logout", http.MethodPost, "/api/auth/logout", "", "student", http.StatusOK},
		{"admin list as student", http.MethodGet, "/api/admin/list", "", "student", http.StatusForbidden},
		{"admin list", http.MethodGet, "/api/admin/list", "", "admin", http.StatusOK},
		{"email stats anonymous", http.MethodGet, "/api/emails/stats", "", "", http.StatusUnauthorized},
		{"email stats as student", http.MethodGet, "/api/emails/stats", "", "student", http.StatusForbidden},
		{"email stats", http.MethodGet, "/api/emails/stats", "", "admin", http.StatusOK},
		{"wrong method", http.MethodGet, "/api/auth/signup", "", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := jsonRequest(tt.method, tt.path, tt.body)
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("%s %s status = %d, want %d; body=%s", tt.method, tt.path, w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestRouter_NotFoundEnvelope(t *testing.T) {
	router := newTestRouter(t, &fakePinger{})

	for _, path := range []string{"/nope", "/api/auth/nope", "/api/emails/nope"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if path == "/api/emails/nope" {
			// unknown routes inside a protected group still require auth first
			if w.Code != http.StatusUnauthorized {
				t.Errorf("%s status = %d, want 401", path, w.Code)
			}
			continue
		}
		assertErrorEnvelope(t, w, http.StatusNotFound, "NOT_FOUND", "Route GET "+path+" not found")
	}
}

func TestRouter_HealthUnavailable(t *testing.T) {
	router := newTestRouter(t, &fakePinger{err: errors.New("connection refused")})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assertErrorEnvelope(t, w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Database unavailable")
}

func TestRouter_AuthRateLimitPerIP(t *testing.T) {
	router := newTestRouter(t, &fakePinger{})

	var last int
	for i := 0; i < 11; i++ {
		req := jsonRequest(http.MethodPost, "/api/auth/signup", `{}`)
		req.RemoteAddr = "198.51.100.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		last = w.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("11th signup status = %d, want 429", last)
	}

	// X-Forwarded-For is honored through RealIP
	req := jsonRequest(http.MethodPost, "/api/auth/signup", `{}`)
	req.RemoteAddr = "198.51.100.1:1234"
	req.Header.Set("X-Forwarded-For", "198.51.100.99")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("forwarded client status = %d, want 201", w.Code)
	}
}

func TestHealthHandler_Timestamp(t *testing.T) {
	h := NewHealthHandler(nil, "v1")
	h.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	want := "{\"success\":true,\"status\":\"healthy\",\"timestamp\":\"2026-03-04T05:06:07Z\"}\n"
	if w.Body.String() != want {
		t.Errorf("body = %s, want %s", w.Body.String(), want)
	}
}
