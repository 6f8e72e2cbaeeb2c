// Package apperr defines the error values shared by the storefront client and gateway.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrUnavailable    = errors.New("service unavailable")
	ErrSessionExpired = errors.New("session expired, sign in again")
	ErrInvalidInput   = errors.New("invalid input")
)

// APIError is a non-2xx backend response. Reason is the human-readable text
// the backend supplied for display.
type APIError struct {
	Status int
	Code   string
	Reason string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Reason)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Reason)
}

// Is maps HTTP statuses onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrConflict:
		return e.Status == http.StatusConflict
	case ErrUnavailable:
		return e.Status >= http.StatusInternalServerError
	case ErrInvalidInput:
		return e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity
	}
	return false
}

// Reason returns the text to show a user for err.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Reason != "" {
		return apiErr.Reason
	}
	switch {
	case errors.Is(err, ErrSessionExpired):
		return ErrSessionExpired.Error()
	case errors.Is(err, ErrUnavailable):
		return "Service is temporarily unavailable"
	}
	return "Something went wrong"
}
