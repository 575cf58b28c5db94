// Package config loads the immutable runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is read once at startup and passed explicitly to every component.
type Config struct {
	// Database
	DatabaseURL string

	// Tokens
	JWTSecret           string
	JWTRefreshSecret    string
	JWTExpiresIn        string
	JWTRefreshExpiresIn string

	// Sessions
	RefreshRevokeOldSession bool
	SessionCleanupInterval  time.Duration

	// OAuth
	Google OAuthClient
	GitHub OAuthClient

	// Email
	SMTP                   SMTP
	EmailWorkerInterval    time.Duration
	EmailWorkerConcurrency int
	EmailBatchSize         int
	EmailRetentionDays     int

	// Rate limits, requests per minute
	RateLimitGeneral int
	RateLimitAuth    int

	// Server
	Port         string
	FrontendURL  string
	CookieSecure bool
	LogLevel     string
	BcryptCost   int
}

// OAuthClient holds one provider's client registration. Empty means not configured.
type OAuthClient struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// SMTP holds the outgoing mail settings.
type SMTP struct {
	Host      string
	Port      int
	Secure    bool
	User      string
	Password  string
	FromEmail string
	FromName  string
}

// LoadDotEnv loads variables from the given files (default ".env") into the
// process environment without overriding ones already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads Config from the environment.
// It fails when a required variable is missing or the two JWT secrets are equal.
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.JWTRefreshSecret = os.Getenv("JWT_REFRESH_SECRET")
	if cfg.JWTRefreshSecret == "" {
		missing = append(missing, "JWT_REFRESH_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}
	if cfg.JWTSecret == cfg.JWTRefreshSecret {
		return nil, errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}

	cfg.JWTExpiresIn = getEnvString("JWT_EXPIRES_IN", "15m")
	cfg.JWTRefreshExpiresIn = getEnvString("JWT_REFRESH_EXPIRES_IN", "7d")
	cfg.RefreshRevokeOldSession = getEnvBool("REFRESH_REVOKE_OLD_SESSION", false)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", 24*time.Hour)

	cfg.Google = OAuthClient{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedirectURI:  getEnvString("GOOGLE_REDIRECT_URI", "http://localhost:4000/api/auth/google/callback"),
	}
	cfg.GitHub = OAuthClient{
		ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		RedirectURI:  getEnvString("GITHUB_REDIRECT_URI", "http://localhost:4000/api/auth/github/callback"),
	}

	cfg.SMTP = SMTP{
		Host:      getEnvString("SMTP_HOST", "smtp.gmail.com"),
		Port:      getEnvInt("SMTP_PORT", 587),
		Secure:    getEnvBool("SMTP_SECURE", false),
		User:      os.Getenv("SMTP_USER"),
		Password:  os.Getenv("SMTP_PASS"),
		FromEmail: os.Getenv("FROM_EMAIL"),
		FromName:  getEnvString("FROM_NAME", "BuildWise"),
	}
	cfg.EmailWorkerInterval = getEnvDuration("EMAIL_WORKER_INTERVAL", time.Minute)
	cfg.EmailWorkerConcurrency = getEnvInt("EMAIL_WORKER_CONCURRENCY", 5)
	cfg.EmailBatchSize = getEnvInt("EMAIL_BATCH_SIZE", 50)
	cfg.EmailRetentionDays = getEnvInt("EMAIL_RETENTION_DAYS", 30)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)

	cfg.Port = getEnvString("PORT", "4000")
	cfg.FrontendURL = getEnvString("FRONTEND_URL", "http://localhost:3000")
	cfg.CookieSecure = strings.HasPrefix(cfg.FrontendURL, "https://")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 10)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
