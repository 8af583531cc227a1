package exchange

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnavailable marks data or actions that could not be obtained this
// cycle: retries exhausted, rate limiter aborted or context done.
var ErrUnavailable = errors.New("exchange unavailable")

// APIError is a non-success response from the exchange.
type APIError struct {
	StatusCode int
	Code       int    // exchange-specific error code, 0 if absent
	Message    string // exchange message or raw body
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("exchange api error: status %d, code %d: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("exchange api error: status %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether the status is worth retrying.
func (e *APIError) Temporary() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
