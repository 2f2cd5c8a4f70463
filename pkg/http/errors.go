package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"authcore/internal/models"
)

// ErrorResponse is the standard API error body.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable code
	Message string `json:"message"` // human-readable message
}

func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: errorCode, Message: message})
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "conflict", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}

// WriteServiceError maps the core's error taxonomy onto status codes. The
// core itself never sees transport codes.
func WriteServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		WriteUnauthorized(w, "invalid credentials or token")
	case errors.Is(err, models.ErrConflict):
		WriteConflict(w, err.Error())
	case errors.Is(err, models.ErrNotFound):
		WriteNotFound(w, "resource not found")
	case errors.Is(err, models.ErrConcurrency):
		WriteConflict(w, "the resource was modified concurrently, retry the request")
	case errors.Is(err, models.ErrBadRequest):
		WriteBadRequest(w, err.Error())
	default:
		WriteInternalError(w, "an unexpected error occurred")
	}
}
