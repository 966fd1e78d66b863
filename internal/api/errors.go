package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/sentry-core/internal/alarm"
	"github.com/nerrad567/sentry-core/internal/auth"
	"github.com/nerrad567/sentry-core/internal/device"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes. Credential denials from the alarm gate pass their
// reason through as the code (invalid_pin, change_key_required, ...).
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps errors from the alarm, device, and auth packages
// to structured HTTP responses. Unrecognised errors become 500s.
func writeDomainError(w http.ResponseWriter, err error) {
	if denied, ok := alarm.IsDenied(err); ok {
		writeError(w, http.StatusForbidden, denied.Reason, "authorization denied")
		return
	}

	switch {
	case errors.Is(err, alarm.ErrDeviceNotFound), errors.Is(err, device.ErrNotFound):
		writeNotFound(w, "device not found")
	case errors.Is(err, alarm.ErrDeviceInactive):
		writeError(w, http.StatusConflict, ErrCodeConflict, "device is deactivated")
	case errors.Is(err, alarm.ErrUnknownCategory):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "unknown event category")
	case errors.Is(err, device.ErrExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, "device already claimed")
	case errors.Is(err, auth.ErrUsernameExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, "username already exists")
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUserNotFound):
		writeUnauthorized(w, "invalid credentials")
	case errors.Is(err, auth.ErrUserInactive):
		writeForbidden(w, "account is deactivated")
	default:
		writeInternalError(w, "internal server error")
	}
}
