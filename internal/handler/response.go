// Package handler provides the HTTP handlers of the API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/buildwise/backend/internal/middleware"
	"github.com/buildwise/backend/internal/model"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, statusCode int, message string, data any) {
	writeJSON(w, statusCode, successResponse{Success: true, Message: message, Data: data})
}

// handleServiceError writes err as an error envelope. Anything that is not
// an APIError is logged and hidden behind the generic 500.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Kind == model.KindInternal {
			logInternal(r, err)
		}
		middleware.WriteErrorResponse(w, apiErr)
		return
	}

	logInternal(r, err)
	middleware.WriteInternalServerError(w)
}

func logInternal(r *http.Request, err error) {
	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
}

// decodeJSON decodes the request body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return model.NewValidationError("Invalid JSON request body")
	}
	return nil
}

func clientInfo(r *http.Request) (userAgent, ip string) {
	return r.UserAgent(), middleware.ClientIP(r)
}
