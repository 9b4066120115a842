package vaultauth

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidRequest is returned when the server rejects the input as malformed
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnauthorized is returned when a nonce, signature or session token is rejected
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited is returned when the client has been throttled
	ErrRateLimited = errors.New("rate limited")

	// ErrServer is returned for unexpected server failures
	ErrServer = errors.New("server error")
)

// APIError is a non-2xx response from the auth API
type APIError struct {
	StatusCode int
	Message    string
	// RetryAfter is the Retry-After header in seconds, set on 429
	RetryAfter int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vaultauth: %d %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code onto the package sentinel errors
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusBadRequest:
		return ErrInvalidRequest
	case e.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrServer
	}
}
