package shared

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrTransient          = fmt.Errorf("transient service failure")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Cache errors
	ErrCacheCorrupt = fmt.Errorf("cache entry corrupt")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// StatusError is a non-2xx response from an upstream HTTP service.
//
// It unwraps to [ErrAuthFailed] for 401/403, [ErrTransient] for 429 and 5xx, and [ErrAPIRequest] otherwise.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s API error: status %d: %s", e.Service, e.Code, e.Body)
	}
	return fmt.Sprintf("%s API error: status %d", e.Service, e.Code)
}

func (e *StatusError) Unwrap() error {
	switch {
	case e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden:
		return ErrAuthFailed
	case e.Code == http.StatusTooManyRequests || e.Code >= 500:
		return ErrTransient
	default:
		return ErrAPIRequest
	}
}

// NewStatusError builds a [StatusError] for the given service and response status.
func NewStatusError(service string, code int, body string) *StatusError {
	return &StatusError{Service: service, Code: code, Body: body}
}

// TransportError marks a request failure that never produced a response (DNS, reset, timeout).
func TransportError(service string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s request failed: %w", service, err)
	}
	return fmt.Errorf("%s request failed: %w: %w", service, ErrTransient, err)
}

// IsTransient reports whether err is worth retrying.
//
// Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
