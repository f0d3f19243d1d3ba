package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUsage                = errors.New("usage error")
	ErrMissingConfiguration = errors.New("missing configuration")
	ErrInvalidInput         = errors.New("invalid input")
	ErrNetwork              = errors.New("network error")
	ErrAuth                 = errors.New("authentication rejected")
	ErrProvider             = errors.New("provider error")
	ErrMalformedResponse    = errors.New("malformed response")
	ErrDimensionMismatch    = errors.New("vector dimension mismatch")
)

// ProviderError is a non-2xx answer from a remote service.
// It matches ErrAuth for 401/403 and ErrProvider otherwise.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.IsAuth() {
		return fmt.Sprintf("%s: authentication rejected (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

func (e *ProviderError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

func (e *ProviderError) Is(target error) bool {
	if target == ErrAuth {
		return e.IsAuth()
	}
	return target == ErrProvider && !e.IsAuth()
}

// Retryable reports whether the status is worth another attempt.
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
