package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// NetworkError means the request never produced an HTTP response.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network error: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPError is a non-2xx response from the backend.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message)
}

// IsNetworkError reports whether err wraps a NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// Retryable reports whether a caller may reasonably try the same request again.
// The client itself never retries.
func Retryable(err error) bool {
	if IsNetworkError(err) {
		return true
	}
	code := StatusCode(err)
	return code == http.StatusTooManyRequests || code >= 500
}
