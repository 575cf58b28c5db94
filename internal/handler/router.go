package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/buildwise/backend/internal/middleware"
	"github.com/buildwise/backend/internal/model"
)

// RouterDeps holds everything NewRouter wires together.
type RouterDeps struct {
	Logger            *slog.Logger
	Verifier          middleware.AccessTokenVerifier
	RateLimiter       *middleware.RateLimiter
	StatusRecorder    middleware.StatusRecorder // may be nil
	CORSAllowedOrigin string

	AuthService  AuthService
	AuthConfig   AuthHandlerConfig
	AdminService AdminService
	EmailService EmailService

	EmailRetentionDays int
	DB                 Pinger
	MetricsHandler     http.Handler // may be nil
	Version            string
}

// NewRouter builds the API router.
//
// Middleware order, outermost first:
//
//	Recovery → RealIP → Logging → SecurityHeaders → CORS
//
// Protected groups add Authenticate → GeneralRateLimit (→ Authorize).
// Credential endpoints add the per-IP auth limiter instead.
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, model.KindNotFound.Code(),
			fmt.Sprintf("Route %s %s not found", r.Method, r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed on %s", r.Method, r.URL.Path))
	})

	health := NewHealthHandler(deps.DB, deps.Version)
	r.Get("/", health.Root)
	r.Get("/health", health.Health)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	authenticate := middleware.Authenticate(deps.Verifier)
	adminOnly := middleware.Authorize(model.RoleAdmin)

	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())
			r.Post("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
		})

		r.Get("/google", authHandler.GoogleRedirect)
		r.Get("/google/callback", authHandler.GoogleCallback)
		r.Get("/github", authHandler.GitHubRedirect)
		r.Get("/github/callback", authHandler.GitHubCallback)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(deps.RateLimiter.GeneralMiddleware())
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})
	})

	if deps.AdminService != nil {
		adminHandler := NewAdminHandler(deps.AdminService)
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(authenticate)
			r.Use(deps.RateLimiter.GeneralMiddleware())
			r.Use(adminOnly)
			r.Post("/promote", adminHandler.Promote)
			r.Post("/demote", adminHandler.Demote)
			r.Get("/list", adminHandler.List)
		})
	}

	if deps.EmailService != nil {
		emailHandler := NewEmailHandler(deps.EmailService, deps.EmailRetentionDays)
		r.Route("/api/emails", func(r chi.Router) {
			r.Use(authenticate)
			r.Use(deps.RateLimiter.GeneralMiddleware())
			r.Use(adminOnly)
			r.Get("/preview/{eventType}", emailHandler.Preview)
			r.Post("/test", emailHandler.Test)
			r.Post("/custom", emailHandler.Custom)
			r.Post("/process", emailHandler.Process)
			r.Get("/stats", emailHandler.Stats)
			r.Delete("/cleanup", emailHandler.Cleanup)
			r.Get("/test-config", emailHandler.TestConfig)
		})
	}

	return r
}
