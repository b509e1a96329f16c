package handler

// Every error response has the same shape:
//
//	{"error": "not_found", "message": "tweet not found with id 999"}
//
// so a client can branch on "error" without caring about the status code.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/tweetsync/internal/apperror"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// writeJSON sets headers, then status, then encodes the body. Headers set
// after the first Write are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorStatus maps a domain error to its HTTP status and error type.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrNotConfigured):
		return http.StatusPreconditionFailed, "not_configured"
	case errors.Is(err, apperror.ErrMalformed):
		return http.StatusBadGateway, "malformed_payload"
	case errors.Is(err, apperror.ErrUpstream):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError translates a domain error into a JSON error response. The
// message of an *AppError or *APIError is shown to the client; anything
// else is logged and replaced with a generic message, since raw errors can
// carry SQL or file paths.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, errType := errorStatus(err)
	resp := ErrorResponse{Error: errType}

	var appErr *apperror.AppError
	var apiErr *apperror.APIError
	switch {
	case errors.As(err, &apiErr):
		resp.Message = apiErr.Error()
	case errors.As(err, &appErr):
		resp.Message = appErr.Message
		resp.Field = appErr.Field
	default:
		resp.Message = "An internal error occurred"
	}

	if status >= 500 {
		logger.Error("request failed", slog.String("error", err.Error()), slog.Int("status", status))
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads a JSON body of at most 1MB into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON body: "+err.Error())
	}
	return nil
}
