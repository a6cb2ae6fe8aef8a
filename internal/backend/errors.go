package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is returned when the backend answers with a status of 400 or
// above: immediately for 4xx, after retries are exhausted for 5xx.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend API returned %d", e.StatusCode)
}

// ConnectionError is returned when the backend could not be reached after
// all retry attempts.
type ConnectionError struct {
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to backend after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}

// IsConnectionError reports whether err means the backend is unreachable.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}
