// Package apperr defines the error taxonomy shared by the store, the
// reservation lifecycle and the HTTP layer.
package apperr

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrInternal     = errors.New("internal error")
)

// Status maps an error onto an HTTP status class.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Reason returns a short machine-readable reason for err.
func Reason(err error) string {
	switch Status(err) {
	case http.StatusBadRequest:
		return "validation"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Public returns the message that may be shown to a caller. Errors outside
// the taxonomy collapse to a generic text.
func Public(err error) string {
	if Status(err) == http.StatusInternalServerError {
		return "internal error"
	}
	return strings.TrimSpace(err.Error())
}
