package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/buildwise/backend/internal/model"
	"github.com/buildwise/backend/internal/repository"
	"github.com/buildwise/backend/internal/security"
)

const (
	// DefaultMaxRetries is the retry limit of a new notification.
	DefaultMaxRetries = 3
	// DefaultProcessLimit is the batch size of ProcessPending.
	DefaultProcessLimit = 50
	// DefaultRetentionDays is how long sent notifications are kept.
	DefaultRetentionDays = 30
)

// Metrics records email outcomes.
type Metrics interface {
	RecordNotificationQueued(eventType string)
	RecordEmailSent(eventType string)
	RecordEmailFailed(eventType string)
	RecordEmailSendLatency(duration time.Duration)
}

// SendResult is the outcome of SendNow.
type SendResult struct {
	NotificationID string `json:"notificationId"`
	Sent           bool   `json:"sent"`
	Error          string `json:"error,omitempty"`
}

// ProcessResult summarizes one ProcessPending pass.
type ProcessResult struct {
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// Service queues, renders and delivers notifications.
type Service struct {
	repo      repository.EmailNotificationRepository
	sender    Sender
	templates *Templates
	sanitizer security.ContentSanitizerService
	metrics   Metrics
	now       func() time.Time
}

// NewService creates a Service. metrics may be nil.
func NewService(
	repo repository.EmailNotificationRepository,
	sender Sender,
	templates *Templates,
	sanitizer security.ContentSanitizerService,
	metrics Metrics,
) *Service {
	return &Service{
		repo:      repo,
		sender:    sender,
		templates: templates,
		sanitizer: sanitizer,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Preview renders event without storing or sending anything.
func (s *Service) Preview(event model.EmailEventType, data TemplateData) (*Rendered, error) {
	return s.templates.Render(event, data)
}

// Queue stores a pending notification for the background worker.
func (s *Service) Queue(ctx context.Context, to string, event model.EmailEventType, data TemplateData, userID string) (*model.EmailNotification, error) {
	n, err := s.newNotification(to, event, data, userID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, n.EmailNotification); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordNotificationQueued(string(event))
	}

	slog.Info("email queued",
		slog.String("notification_id", n.ID),
		slog.String("event_type", string(event)),
	)
	return n.EmailNotification, nil
}

// SendNow renders and sends event immediately, then records the outcome.
// A delivery failure is reported in the result, not as an error.
func (s *Service) SendNow(ctx context.Context, to string, event model.EmailEventType, data TemplateData, userID string) (*SendResult, error) {
	n, err := s.newNotification(to, event, data, userID)
	if err != nil {
		return nil, err
	}

	sendErr := s.send(ctx, event, Message{To: to, Subject: n.Subject, HTML: n.Body, Text: n.text})
	if sendErr == nil {
		sentAt := s.now()
		n.IsSent = true
		n.SentAt = &sentAt
	} else {
		n.Error = sendErr.Error()
	}

	if err := s.repo.Create(ctx, n.EmailNotification); err != nil {
		return nil, err
	}

	result := &SendResult{NotificationID: n.ID, Sent: n.IsSent, Error: n.Error}
	return result, nil
}

// SendCustom sends an ad-hoc message. The HTML body is sanitized first.
func (s *Service) SendCustom(ctx context.Context, to, subject, html, text string) error {
	to = strings.TrimSpace(to)
	subject = strings.TrimSpace(subject)
	if to == "" || subject == "" {
		return model.NewValidationError("To and subject are required")
	}

	if html != "" {
		html = s.sanitizer.Sanitize(html)
	}
	if strings.TrimSpace(html) == "" && strings.TrimSpace(text) == "" {
		return model.NewValidationError("Either htmlBody or textBody is required")
	}

	if err := s.send(ctx, "CUSTOM", Message{To: to, Subject: subject, HTML: html, Text: text}); err != nil {
		return err
	}
	slog.Info("custom email sent")
	return nil
}

// Deliver re-renders n from its metadata, sends it and records the outcome.
// The send error is returned after the row is updated.
func (s *Service) Deliver(ctx context.Context, n *model.EmailNotification) error {
	msg, err := s.rebuild(n)
	if err == nil {
		err = s.send(ctx, n.EventType, msg)
	}

	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, n.ID, err.Error()); markErr != nil {
			return errors.Join(err, markErr)
		}
		slog.Warn("email delivery failed",
			slog.String("notification_id", n.ID),
			slog.Int("attempt", n.RetryCount+1),
			slog.String("error", err.Error()),
		)
		return err
	}

	if err := s.repo.MarkSent(ctx, n.ID, s.now()); err != nil {
		return err
	}
	return nil
}

// ListPending returns notifications eligible for delivery, oldest first.
func (s *Service) ListPending(ctx context.Context, limit int) ([]*model.EmailNotification, error) {
	if limit <= 0 {
		limit = DefaultProcessLimit
	}
	return s.repo.ListPending(ctx, limit)
}

// ProcessPending delivers up to limit pending notifications one by one.
func (s *Service) ProcessPending(ctx context.Context, limit int) (*ProcessResult, error) {
	pending, err := s.ListPending(ctx, limit)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{Processed: len(pending)}
	for _, n := range pending {
		if err := s.Deliver(ctx, n); err != nil {
			result.Failed++
			continue
		}
		result.Successful++
	}

	slog.Info("email processing complete",
		slog.Int("processed", result.Processed),
		slog.Int("successful", result.Successful),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}

// Stats returns aggregate notification counts.
func (s *Service) Stats(ctx context.Context) (*model.EmailStats, error) {
	return s.repo.Stats(ctx)
}

// CleanupSent deletes notifications sent more than days ago.
func (s *Service) CleanupSent(ctx context.Context, days int) (int64, error) {
	if days < 1 {
		return 0, model.NewValidationError("Days must be a positive number")
	}
	cutoff := s.now().AddDate(0, 0, -days)
	return s.repo.DeleteSentBefore(ctx, cutoff)
}

// VerifyTransport checks that the SMTP relay is reachable with the configured credentials.
func (s *Service) VerifyTransport(ctx context.Context) error {
	return s.sender.Verify(ctx)
}

type pendingNotification struct {
	*model.EmailNotification
	text string
}

func (s *Service) newNotification(to string, event model.EmailEventType, data TemplateData, userID string) (*pendingNotification, error) {
	to = strings.ToLower(strings.TrimSpace(to))
	if to == "" {
		return nil, model.NewValidationError("Email is required")
	}
	if !event.Valid() {
		return nil, model.NewValidationError("Invalid email event type")
	}

	rendered, err := s.templates.Render(event, data)
	if err != nil {
		return nil, err
	}
	metadata, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode template data: %w", err)
	}

	now := s.now()
	return &pendingNotification{
		EmailNotification: &model.EmailNotification{
			ID:         uuid.NewString(),
			UserID:     userID,
			Email:      to,
			EventType:  event,
			Subject:    rendered.Subject,
			Body:       rendered.HTML,
			Metadata:   metadata,
			MaxRetries: DefaultMaxRetries,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		text: rendered.Text,
	}, nil
}

func (s *Service) rebuild(n *model.EmailNotification) (Message, error) {
	var data TemplateData
	if len(n.Metadata) > 0 {
		if err := json.Unmarshal(n.Metadata, &data); err != nil {
			return Message{}, fmt.Errorf("failed to decode template data: %w", err)
		}
	}
	rendered, err := s.templates.Render(n.EventType, data)
	if err != nil {
		return Message{}, err
	}
	return Message{To: n.Email, Subject: rendered.Subject, HTML: rendered.HTML, Text: rendered.Text}, nil
}

func (s *Service) send(ctx context.Context, event model.EmailEventType, msg Message) error {
	start := s.now()
	err := s.sender.Send(ctx, msg)
	if s.metrics != nil {
		s.metrics.RecordEmailSendLatency(s.now().Sub(start))
		if err != nil {
			s.metrics.RecordEmailFailed(string(event))
		} else {
			s.metrics.RecordEmailSent(string(event))
		}
	}
	return err
}
