package app

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/buildwise/backend/internal/auth"
	"github.com/buildwise/backend/internal/config"
	"github.com/buildwise/backend/internal/email"
	"github.com/buildwise/backend/internal/identity"
	"github.com/buildwise/backend/internal/metrics"
	"github.com/buildwise/backend/internal/repository"
	"github.com/buildwise/backend/internal/security"
	"github.com/buildwise/backend/internal/session"
	"github.com/buildwise/backend/internal/token"
	"github.com/buildwise/backend/internal/user"
)

// services is the wired object graph shared by the commands.
type services struct {
	registry   *prometheus.Registry
	metrics    *metrics.Collector
	tokens     *token.Codec
	auth       *auth.Service
	users      *user.Service
	email      *email.Service
	dispatcher *email.Dispatcher
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newEmailService(db *sql.DB, cfg *config.Config, collector *metrics.Collector) (*email.Service, error) {
	templates, err := email.NewTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to load email templates: %w", err)
	}
	sender := email.NewSMTPSender(email.SMTPConfig{
		Host:      cfg.SMTP.Host,
		Port:      cfg.SMTP.Port,
		Secure:    cfg.SMTP.Secure,
		User:      cfg.SMTP.User,
		Password:  cfg.SMTP.Password,
		FromEmail: cfg.SMTP.FromEmail,
		FromName:  cfg.SMTP.FromName,
	})
	return email.NewService(
		repository.NewPostgresEmailNotificationRepo(db),
		sender,
		templates,
		security.NewContentSanitizer(),
		collector,
	), nil
}

func buildServices(db *sql.DB, cfg *config.Config, logger *slog.Logger) (*services, error) {
	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	codec, err := token.NewCodec(token.Config{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.JWTExpiresIn,
		RefreshTTL:    cfg.JWTRefreshExpiresIn,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token codec: %w", err)
	}

	userRepo := repository.NewPostgresUserRepo(db)
	hasher := security.NewBcryptHasher(cfg.BcryptCost)

	resolver := identity.NewResolver(
		userRepo,
		repository.NewPostgresCredentialRepo(db),
		repository.NewPostgresAuthAccountRepo(db),
		hasher,
	)
	registry := session.NewRegistry(repository.NewPostgresSessionRepo(db), session.DefaultTTL)

	emailService, err := newEmailService(db, cfg, collector)
	if err != nil {
		return nil, err
	}
	dispatcher := email.NewDispatcher(emailService, email.DefaultDispatcherBuffer, collector, logger)

	providers := []auth.OAuthProvider{
		auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURI,
		}),
		auth.NewGitHubOAuthProvider(auth.GitHubOAuthConfig{
			ClientID:     cfg.GitHub.ClientID,
			ClientSecret: cfg.GitHub.ClientSecret,
			RedirectURL:  cfg.GitHub.RedirectURI,
		}),
	}

	authService := auth.NewService(
		resolver, registry, codec, userRepo, providers, dispatcher, collector,
		auth.ServiceConfig{RevokeOnRefresh: cfg.RefreshRevokeOldSession},
	)

	return &services{
		registry:   reg,
		metrics:    collector,
		tokens:     codec,
		auth:       authService,
		users:      user.NewService(userRepo, hasher),
		email:      emailService,
		dispatcher: dispatcher,
	}, nil
}
