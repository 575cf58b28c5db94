package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/buildwise/backend/internal/model"
)

// ErrorResponseBody is the error envelope shared by every endpoint.
type ErrorResponseBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// WriteErrorResponse writes apiErr with the status of its kind.
// The underlying cause is never written.
func WriteErrorResponse(w http.ResponseWriter, apiErr *model.APIError) {
	WriteError(w, apiErr.HTTPStatus(), apiErr.Code(), apiErr.Message)
}

// WriteError writes an error envelope with an explicit status and code.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Success: false,
		Error:   message,
		Code:    code,
	})
}

// WriteInternalServerError writes the generic 500 envelope.
// Details belong in the log, not the response.
func WriteInternalServerError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, model.KindInternal.Code(), "Internal server error")
}
