package api

import (
	"encoding/json"
	"net/http"

	"github.com/rowforge/rowforge/pkg/job"
	"github.com/rs/zerolog/log"
)

// ErrorResponse represents a standard JSON error response.
// Used consistently across all API endpoints for error responses.
//
// Example:
//
//	{
//	  "error": "Conflict",
//	  "message": "job 5b3e...: cannot transition completed -> running"
//	}
type ErrorResponse struct {
	Error   string `json:"error"`             // Short error type (e.g., "Not Found", "Conflict")
	Message string `json:"message,omitempty"` // Detailed error message (optional)
}

// WriteError writes a standard JSON error response to the client.
// It determines the HTTP status code from the error type:
//   - job.ErrNotFound → 404 Not Found
//   - job.ErrInvalidTransition → 409 Conflict
//   - job.ErrInvalidSource → 400 Bad Request
//   - everything else → 500 Internal Server Error
//
// It also logs the error with structured logging for observability.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var statusCode int
	var errorType string

	switch {
	case job.IsNotFound(err):
		statusCode = http.StatusNotFound
		errorType = "Not Found"
	case job.IsInvalidTransition(err):
		statusCode = http.StatusConflict
		errorType = "Conflict"
	case job.IsInvalidSource(err):
		statusCode = http.StatusBadRequest
		errorType = "Bad Request"
	default:
		statusCode = http.StatusInternalServerError
		errorType = "Internal Server Error"
	}

	logEvent := log.Error().
		Str("component", "api").
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", statusCode).
		Err(err)

	if statusCode < http.StatusInternalServerError {
		logEvent.Msg("Request rejected")
	} else {
		logEvent.Msg("Request failed")
	}

	WriteJSONError(w, statusCode, errorType, err.Error())
}

// WriteJSONError writes a custom JSON error response with a specific status code.
// Use this when you need fine-grained control over the error response.
func WriteJSONError(w http.ResponseWriter, statusCode int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error:   errorType,
		Message: message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().
			Str("component", "api").
			Err(err).
			Msg("Failed to encode error response")
	}
}

// WriteJSON writes a JSON response to the client.
// Use this for successful API responses.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().
			Str("component", "api").
			Err(err).
			Msg("Failed to encode JSON response")
	}
}
