package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"evregistry/backend/services/station-registry/internal/geo"
	"evregistry/backend/services/station-registry/internal/service"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: code})
}

func writeFieldError(w http.ResponseWriter, code, field, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: message, Code: code, Field: field})
}

// respondError maps service errors to responses. Anything unrecognised is logged and
// reported as a bare server error.
func respondError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var (
		locErr *geo.LocationError
		valErr *service.ValidationError
	)
	switch {
	case errors.As(err, &locErr):
		writeFieldError(w, "invalid_location", locErr.Field, locErr.Error())
	case errors.As(err, &valErr):
		writeFieldError(w, "validation_failed", valErr.Field, valErr.Message)
	case errors.Is(err, service.ErrStationNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Charging station not found")
	case errors.Is(err, service.ErrEmailInUse):
		writeError(w, http.StatusConflict, "duplicate_identity", "User already exists")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_login", "Invalid credentials")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "Admin role required")
	case errors.Is(err, service.ErrUnknownOwner):
		writeError(w, http.StatusForbidden, "forbidden", "Session does not belong to a registered user")
	default:
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "server_error", "Server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(dst)
}
