package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/buildwise/backend/internal/middleware"
)

const healthPingTimeout = 2 * time.Second

// Pinger reports database reachability. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler serves / and /health.
type HealthHandler struct {
	db      Pinger
	version string
	now     func() time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(db Pinger, version string) *HealthHandler {
	return &HealthHandler{db: db, version: version, now: time.Now}
}

type rootResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Version string `json:"version"`
}

type healthResponse struct {
	Success   bool   `json:"success"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Root handles GET /.
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Success: true,
		Message: "BuildWise API is running",
		Version: h.version,
	})
}

// Health handles GET /health. It returns 503 when the database does not answer.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			middleware.WriteError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Database unavailable")
			return
		}
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Success:   true,
		Status:    "healthy",
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}
