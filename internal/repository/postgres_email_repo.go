package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/buildwise/backend/internal/model"
)

// PostgresEmailNotificationRepo is the Postgres-backed email notification repository.
type PostgresEmailNotificationRepo struct {
	db *sql.DB
}

// NewPostgresEmailNotificationRepo creates a PostgresEmailNotificationRepo.
func NewPostgresEmailNotificationRepo(db *sql.DB) *PostgresEmailNotificationRepo {
	return &PostgresEmailNotificationRepo{db: db}
}

// Create inserts a notification.
func (r *PostgresEmailNotificationRepo) Create(ctx context.Context, n *model.EmailNotification) error {
	metadata := n.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO email_notifications
		   (id, user_id, email, event_type, subject, body, metadata, is_sent, sent_at, error,
		    retry_count, max_retries, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		n.ID, nullString(n.UserID), n.Email, string(n.EventType), n.Subject, n.Body,
		[]byte(metadata), n.IsSent, nullTime(n.SentAt), nullString(n.Error),
		n.RetryCount, n.MaxRetries, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create email notification: %w", err)
	}
	return nil
}

// ListPending returns unsent notifications below their retry limit, oldest first.
func (r *PostgresEmailNotificationRepo) ListPending(ctx context.Context, limit int) ([]*model.EmailNotification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, email, event_type, subject, body, metadata, is_sent, sent_at, error,
		        retry_count, max_retries, created_at, updated_at
		 FROM email_notifications
		 WHERE is_sent = false AND retry_count < max_retries
		 ORDER BY created_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	defer rows.Close()

	var result []*model.EmailNotification
	for rows.Next() {
		var (
			n              model.EmailNotification
			eventType      string
			userID, errMsg sql.NullString
			sentAt         sql.NullTime
			metadata       []byte
		)
		if err := rows.Scan(&n.ID, &userID, &n.Email, &eventType, &n.Subject, &n.Body, &metadata,
			&n.IsSent, &sentAt, &errMsg, &n.RetryCount, &n.MaxRetries, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.EventType = model.EmailEventType(eventType)
		n.UserID = userID.String
		n.Error = errMsg.String
		n.Metadata = metadata
		if sentAt.Valid {
			t := sentAt.Time
			n.SentAt = &t
		}
		result = append(result, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return result, nil
}

// MarkSent records a successful delivery.
func (r *PostgresEmailNotificationRepo) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE email_notifications
		 SET is_sent = true, sent_at = $2, error = NULL, updated_at = now()
		 WHERE id = $1`,
		id, sentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed increments the retry count and records the failure.
func (r *PostgresEmailNotificationRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE email_notifications
		 SET retry_count = retry_count + 1, error = $2, updated_at = now()
		 WHERE id = $1`,
		id, nullString(reason),
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}

// Stats returns aggregate counts. Failed counts unsent rows that exhausted their retries.
func (r *PostgresEmailNotificationRepo) Stats(ctx context.Context) (*model.EmailStats, error) {
	stats := &model.EmailStats{}
	err := r.db.QueryRowContext(ctx,
		`SELECT
		   COUNT(*),
		   COUNT(*) FILTER (WHERE is_sent),
		   COUNT(*) FILTER (WHERE NOT is_sent AND retry_count < max_retries),
		   COUNT(*) FILTER (WHERE NOT is_sent AND retry_count >= max_retries)
		 FROM email_notifications`,
	).Scan(&stats.Total, &stats.Sent, &stats.Pending, &stats.Failed)
	if err != nil {
		return nil, fmt.Errorf("failed to compute notification stats: %w", err)
	}
	return stats, nil
}

// DeleteSentBefore deletes sent notifications older than cutoff.
func (r *PostgresEmailNotificationRepo) DeleteSentBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM email_notifications WHERE is_sent = true AND sent_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old notifications: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ EmailNotificationRepository = (*PostgresEmailNotificationRepo)(nil)
