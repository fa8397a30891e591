package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/discograph/pkg/apperrors"
)

// ApiResponse is the envelope of every successful JSON response.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeServiceError maps a query service error onto an HTTP status and error code.
func writeServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status, code, message := http.StatusInternalServerError, "internal_error", "Internal server error"
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status, code, message = http.StatusNotFound, "entity_not_found", "Entity not found"
	case errors.Is(err, apperrors.ErrEmptyStore):
		status, code, message = http.StatusNotFound, "no_relations", "No relation matches the requested roles"
	case errors.Is(err, apperrors.ErrInvalidEntityKind):
		status, code, message = http.StatusBadRequest, "invalid_entity_kind", err.Error()
	case errors.Is(err, apperrors.ErrInvalidRole):
		status, code, message = http.StatusBadRequest, "invalid_role", err.Error()
	case errors.Is(err, apperrors.ErrInvalidYearFilter):
		status, code, message = http.StatusBadRequest, "invalid_year", err.Error()
	case errors.Is(err, apperrors.ErrInvalidParameter):
		status, code, message = http.StatusBadRequest, "invalid_parameter", err.Error()
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		status, code, message = http.StatusServiceUnavailable, "store_unavailable", "Relation store unavailable, try again later"
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.Int("status", status), zap.Error(err))
	}
	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
