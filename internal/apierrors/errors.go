// Package apierrors provides shared error types for the Cooperative Hub client.
package apierrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// CannotConnectMessage is the human-readable message carried by transport failures.
const CannotConnectMessage = "Cannot connect to server. Please check your connection."

// Sentinel errors for errors.Is() checks
var (
	// ErrClientClosed is returned when operations are attempted on a closed client.
	ErrClientClosed = errors.New("client has been closed")

	// ErrCannotConnect is returned when the backend cannot be reached.
	ErrCannotConnect = errors.New("cannot connect to server")

	// ErrUnauthorized is returned when the session token is missing, invalid or expired.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the session lacks permission for the resource.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrConflict is returned when the resource already exists or changed concurrently.
	ErrConflict = errors.New("conflict")

	// ErrBadRequest is returned when the backend rejected the request payload.
	ErrBadRequest = errors.New("bad request")

	// ErrRateLimited is returned when the API rate limit is exceeded and retries ran out.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrServer is returned for 5xx responses.
	ErrServer = errors.New("server error")

	// ErrInvalidInput is returned when client-side validation rejects a payload.
	ErrInvalidInput = errors.New("invalid input")
)

// APIError represents a non-2xx response from the Cooperative Hub API.
type APIError struct {
	StatusCode int
	Message    string
	// Details holds the raw backend error payload, if it was JSON.
	Details   json.RawMessage
	RequestID string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		if e.Message != "" {
			return fmt.Sprintf("API error %d: %s (request_id: %s)", e.StatusCode, e.Message, e.RequestID)
		}
		return fmt.Sprintf("API error %d (request_id: %s)", e.StatusCode, e.RequestID)
	}
	if e.Message != "" {
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error %d", e.StatusCode)
}

// Is implements errors.Is for sentinel error matching.
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case 400, 422:
		return target == ErrBadRequest
	case 401:
		return target == ErrUnauthorized
	case 403:
		return target == ErrForbidden
	case 404:
		return target == ErrNotFound
	case 409:
		return target == ErrConflict
	case 429:
		return target == ErrRateLimited
	}
	if e.StatusCode >= 500 {
		return target == ErrServer
	}
	return false
}

// NetworkError represents a transport-level failure. It always reports status 0.
type NetworkError struct {
	Err     error
	URL     string
	Attempt int
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s: %v", CannotConnectMessage, e.Err)
}

// Message returns the user-facing message for the failure.
func (e *NetworkError) Message() string {
	return CannotConnectMessage
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *NetworkError) Is(target error) bool {
	return target == ErrCannotConnect
}

// ValidationError contains client-side validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

// Is implements errors.Is for sentinel error matching.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// StatusCode reports the status carried by err: the HTTP status for an
// APIError, 0 for a NetworkError and -1 for anything else.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return 0
	}
	return -1
}
