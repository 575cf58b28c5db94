package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/buildwise/backend/internal/email"
	"github.com/buildwise/backend/internal/middleware"
	"github.com/buildwise/backend/internal/model"
)

// EmailService is the notification service as seen by the admin endpoints.
type EmailService interface {
	Preview(event model.EmailEventType, data email.TemplateData) (*email.Rendered, error)
	Queue(ctx context.Context, to string, event model.EmailEventType, data email.TemplateData, userID string) (*model.EmailNotification, error)
	SendNow(ctx context.Context, to string, event model.EmailEventType, data email.TemplateData, userID string) (*email.SendResult, error)
	SendCustom(ctx context.Context, to, subject, html, text string) error
	ProcessPending(ctx context.Context, limit int) (*email.ProcessResult, error)
	Stats(ctx context.Context) (*model.EmailStats, error)
	CleanupSent(ctx context.Context, days int) (int64, error)
	VerifyTransport(ctx context.Context) error
}

// EmailHandler serves /api/emails. Every route requires an admin.
type EmailHandler struct {
	service       EmailService
	retentionDays int
}

// NewEmailHandler creates an EmailHandler. retentionDays is the cleanup default.
func NewEmailHandler(service EmailService, retentionDays int) *EmailHandler {
	if retentionDays < 1 {
		retentionDays = email.DefaultRetentionDays
	}
	return &EmailHandler{service: service, retentionDays: retentionDays}
}

type testEmailRequest struct {
	Email     string              `json:"email"`
	EventType string              `json:"eventType"`
	Metadata  *email.TemplateData `json:"metadata"`
	SendNow   bool                `json:"sendNow"`
}

type customEmailRequest struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"htmlBody"`
	TextBody string `json:"textBody"`
}

type processRequest struct {
	Limit int `json:"limit"`
}

// Preview handles GET /api/emails/preview/{eventType}. The rendered message
// uses sample data; ?format=html returns the HTML body alone.
func (h *EmailHandler) Preview(w http.ResponseWriter, r *http.Request) {
	event := model.EmailEventType(chi.URLParam(r, "eventType"))
	data := email.SampleData(event)
	if name := r.URL.Query().Get("name"); name != "" {
		data.Name = name
	}

	rendered, err := h.service.Preview(event, data)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(rendered.HTML))
		return
	}
	writeSuccess(w, http.StatusOK, "", rendered)
}

// Test handles POST /api/emails/test. The message is queued unless sendNow is set.
func (h *EmailHandler) Test(w http.ResponseWriter, r *http.Request) {
	var req testEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if req.Email == "" {
		handleServiceError(w, r, model.NewValidationError("Email is required"))
		return
	}
	event := model.EmailEventType(req.EventType)
	if !event.Valid() {
		handleServiceError(w, r, model.NewValidationError("Invalid email event type"))
		return
	}

	data := email.SampleData(event)
	if req.Metadata != nil {
		data = *req.Metadata
	}
	userID, _ := middleware.UserIDFromContext(r.Context())

	if req.SendNow {
		result, err := h.service.SendNow(r.Context(), req.Email, event, data, userID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		message := "Test email sent successfully"
		if !result.Sent {
			message = "Test email could not be sent"
		}
		writeSuccess(w, http.StatusOK, message, result)
		return
	}

	n, err := h.service.Queue(r.Context(), req.Email, event, data, userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Test email queued successfully", map[string]string{"notificationId": n.ID})
}

// Custom handles POST /api/emails/custom.
func (h *EmailHandler) Custom(w http.ResponseWriter, r *http.Request) {
	var req customEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.service.SendCustom(r.Context(), req.To, req.Subject, req.HTMLBody, req.TextBody); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Email sent successfully", nil)
}

// Process handles POST /api/emails/process.
func (h *EmailHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.ProcessPending(r.Context(), req.Limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Email queue processed", result)
}

// Stats handles GET /api/emails/stats.
func (h *EmailHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", stats)
}

// Cleanup handles DELETE /api/emails/cleanup?days=N.
func (h *EmailHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	days := h.retentionDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			handleServiceError(w, r, model.NewValidationError("Days must be a positive number"))
			return
		}
		days = n
	}

	deleted, err := h.service.CleanupSent(r.Context(), days)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK,
		fmt.Sprintf("Cleaned up email notifications older than %d days", days),
		map[string]int64{"deletedCount": deleted},
	)
}

// TestConfig handles GET /api/emails/test-config.
func (h *EmailHandler) TestConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.service.VerifyTransport(r.Context()); err != nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "EMAIL_TRANSPORT_UNAVAILABLE", err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, "Email configuration is valid", nil)
}
