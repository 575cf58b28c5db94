// Package cleanup purges expired sessions and old sent email notifications.
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

const (
	deleteExpiredSessions = `DELETE FROM sessions WHERE expires_at < now()`
	deleteSentEmails      = `DELETE FROM email_notifications WHERE is_sent = true AND sent_at < now() - $1::interval`
)

// Executor is satisfied by *sql.DB and *sql.Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PurgeRecorder records purged session counts.
type PurgeRecorder interface {
	RecordSessionsPurged(count int64)
}

// Result is the outcome of one Run.
type Result struct {
	SessionsDeleted int64
	EmailsDeleted   int64
}

// CleanupJob deletes expired sessions and sent notifications past retention.
// Both statements are idempotent.
type CleanupJob struct {
	db      Executor
	logger  *slog.Logger
	metrics PurgeRecorder

	EmailRetentionDays int
}

// NewCleanupJob creates a CleanupJob. metrics may be nil; retentionDays below 1 means 30.
func NewCleanupJob(db Executor, logger *slog.Logger, metrics PurgeRecorder, retentionDays int) *CleanupJob {
	if retentionDays < 1 {
		retentionDays = 30
	}
	return &CleanupJob{
		db:                 db,
		logger:             logger,
		metrics:            metrics,
		EmailRetentionDays: retentionDays,
	}
}

// Run executes one cleanup pass. A session purge failure stops the pass.
func (j *CleanupJob) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}

	sessions, err := j.exec(ctx, deleteExpiredSessions)
	if err != nil {
		j.logger.Error("session cleanup failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	result.SessionsDeleted = sessions
	if j.metrics != nil {
		j.metrics.RecordSessionsPurged(sessions)
	}

	interval := fmt.Sprintf("%d days", j.EmailRetentionDays)
	emails, err := j.exec(ctx, deleteSentEmails, interval)
	if err != nil {
		j.logger.Error("email notification cleanup failed",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.EmailRetentionDays),
		)
		return result, fmt.Errorf("failed to delete sent notifications: %w", err)
	}
	result.EmailsDeleted = emails

	j.logger.Info("cleanup job complete",
		slog.Int64("sessions_deleted", result.SessionsDeleted),
		slog.Int64("emails_deleted", result.EmailsDeleted),
		slog.Int("retention_days", j.EmailRetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return result, nil
}

// Start runs a pass immediately and then on every tick until ctx is cancelled.
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("cleanup job started", slog.Duration("interval", interval))
	_, _ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("cleanup job stopped")
			return
		case <-ticker.C:
			_, _ = j.Run(ctx)
		}
	}
}

func (j *CleanupJob) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
