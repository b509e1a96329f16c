// Package apperror defines the domain errors shared by the service, repository,
// and handler layers.
//
// SENTINELS + TYPED ERRORS:
// Every AppError wraps one of the sentinel values below. Callers branch with
// errors.Is(err, apperror.ErrNotFound) and never compare message strings.
// Handlers translate the sentinel into an HTTP status (see handler/response.go).
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("Validation Error")
	ErrConflict      = errors.New("conflict")
	ErrForbidden     = errors.New("forbidden")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotConfigured = errors.New("not configured")
	ErrUpstream      = errors.New("upstream api error")
	ErrMalformed     = errors.New("malformed payload")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized means the caller did not prove who they are (bad login, no session).
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// NotConfigured is returned when an operation needs settings that are missing,
// e.g. a sync pass before the Twitter consumer credentials are set.
func NotConfigured(message string) *AppError {
	return &AppError{
		Err:     ErrNotConfigured,
		Message: message,
	}
}

// Malformed reports an upstream payload that does not have the shape we need.
// cause may be nil.
func Malformed(message string, cause error) *AppError {
	err := ErrMalformed
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrMalformed, cause)
	}
	return &AppError{
		Err:     err,
		Message: message,
	}
}

// APIError is a non-200 answer from the Twitter API. It keeps the raw status
// and body so the operator can see exactly what the upstream said.
type APIError struct {
	StatusCode int
	Body       string
	URL        string
}

func (e *APIError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("twitter api returned status %d for %s: %s", e.StatusCode, e.URL, e.Body)
	}
	return fmt.Sprintf("twitter api returned status %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return ErrUpstream
}

// NewAPIError builds an APIError from a response status and body.
func NewAPIError(status int, body []byte, url string) *APIError {
	return &APIError{
		StatusCode: status,
		Body:       string(body),
		URL:        url,
	}
}
