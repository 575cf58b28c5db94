// Package app wires configuration, storage and services into the process commands.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/buildwise/backend/internal/config"
	"github.com/buildwise/backend/internal/database"
	"github.com/buildwise/backend/internal/handler"
	"github.com/buildwise/backend/internal/logger"
	"github.com/buildwise/backend/internal/metrics"
	"github.com/buildwise/backend/internal/middleware"
	"github.com/buildwise/backend/internal/repository"
	"github.com/buildwise/backend/internal/user"
	"github.com/buildwise/backend/internal/worker/cleanup"
	"github.com/buildwise/backend/internal/worker/mailer"
)

// Version is stamped at build time with -ldflags "-X".
var Version = "dev"

const shutdownTimeout = 30 * time.Second

// Init loads .env and the configuration, then installs the JSON logger
// writing to w at LOG_LEVEL.
func Init(w io.Writer) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// Run is the process entry point. args is os.Args[1:].
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)
	var rest []string
	if len(args) > 0 {
		rest = args[1:]
	}

	// healthcheck runs inside the distroless image without full configuration.
	if cmd == CommandHealthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "4000"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("version", Version),
		slog.String("port", cfg.Port),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandBootstrapAdmin:
		in, err := parseBootstrapArgs(rest)
		if err != nil {
			return err
		}
		return runBootstrapAdmin(cfg, in)
	case CommandPromoteAdmin:
		email, err := parsePromoteArgs(rest)
		if err != nil {
			return err
		}
		return runPromoteAdmin(cfg, email)
	default:
		return runServe(cfg)
	}
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")
	return db, nil
}

func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rl := middleware.DefaultRateLimiterConfig()
	// config values are per minute
	if cfg.RateLimitGeneral > 0 {
		rl.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rl.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitAuth > 0 {
		rl.AuthRate = rate.Limit(float64(cfg.RateLimitAuth) / 60.0)
		rl.AuthBurst = cfg.RateLimitAuth
	}
	return rl
}

// runServe serves the API until SIGINT or SIGTERM, then shuts down within 30s.
func runServe(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	svc, err := buildServices(db, cfg, slog.Default())
	if err != nil {
		return err
	}

	limiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	defer limiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:             slog.Default(),
		Verifier:           svc.tokens,
		RateLimiter:        limiter,
		StatusRecorder:     svc.metrics,
		CORSAllowedOrigin:  cfg.FrontendURL,
		AuthService:        svc.auth,
		AuthConfig:         handler.AuthHandlerConfig{CookieSecure: cfg.CookieSecure},
		AdminService:       svc.users,
		EmailService:       svc.email,
		EmailRetentionDays: cfg.EmailRetentionDays,
		DB:                 db,
		MetricsHandler:     metrics.Handler(svc.registry),
		Version:            Version,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	go svc.dispatcher.Run(dispatcherCtx)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen failed: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	// in-flight handlers are done; store what they submitted
	if err := svc.dispatcher.Close(shutdownCtx); err != nil {
		slog.Warn("email dispatcher did not drain", slog.String("error", err.Error()))
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker runs the mailer scheduler and the cleanup job until SIGINT or SIGTERM.
func runWorker(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	svc, err := buildServices(db, cfg, slog.Default())
	if err != nil {
		return err
	}

	scheduler := mailer.NewScheduler(svc.email, slog.Default(), cfg.EmailWorkerConcurrency, cfg.EmailBatchSize)
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default(), svc.metrics, cfg.EmailRetentionDays)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker starting",
		slog.Duration("email_interval", cfg.EmailWorkerInterval),
		slog.Int("email_concurrency", cfg.EmailWorkerConcurrency),
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scheduler.Start(gctx, cfg.EmailWorkerInterval)
		return nil
	})
	g.Go(func() error {
		cleanupJob.Start(gctx, cfg.SessionCleanupInterval)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("worker stopped gracefully")
	return nil
}

func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

func runBootstrapAdmin(cfg *config.Config, in user.BootstrapInput) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	svc, err := buildServices(db, cfg, slog.Default())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admin, err := svc.users.BootstrapAdmin(ctx, in)
	if err != nil {
		return err
	}
	slog.Info("admin account ready", slog.String("user_id", admin.ID), slog.String("email", admin.Email))
	return nil
}

func runPromoteAdmin(cfg *config.Config, email string) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	users := user.NewService(repository.NewPostgresUserRepo(db), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	promoted, err := users.Promote(ctx, email)
	if err != nil {
		return err
	}
	slog.Info("user promoted to admin", slog.String("user_id", promoted.ID), slog.String("email", promoted.Email))
	return nil
}

// runHealthcheck probes /health on the local server. Used by the container health check.
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL hides credentials before logging.
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
