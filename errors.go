package coophub

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/smartcoophub/client-go/internal/api"
	"github.com/smartcoophub/client-go/internal/apierrors"
	"github.com/smartcoophub/client-go/internal/realtime"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrClientClosed is returned when operations are attempted on a closed client.
	ErrClientClosed = apierrors.ErrClientClosed

	// ErrCannotConnect is returned when the backend cannot be reached.
	ErrCannotConnect = apierrors.ErrCannotConnect

	// ErrUnauthorized is returned for 401 responses. The session has already
	// been cleared by the time the caller sees it.
	ErrUnauthorized = apierrors.ErrUnauthorized

	// ErrForbidden is returned for 403 responses.
	ErrForbidden = apierrors.ErrForbidden

	// ErrNotFound is returned for 404 responses.
	ErrNotFound = apierrors.ErrNotFound

	// ErrConflict is returned for 409 responses.
	ErrConflict = apierrors.ErrConflict

	// ErrBadRequest is returned for 400 and 422 responses.
	ErrBadRequest = apierrors.ErrBadRequest

	// ErrRateLimited is returned when 429 retries are exhausted.
	ErrRateLimited = apierrors.ErrRateLimited

	// ErrServer is returned for 5xx responses.
	ErrServer = apierrors.ErrServer

	// ErrInvalidInput is returned when parameters fail client-side validation.
	ErrInvalidInput = apierrors.ErrInvalidInput

	// ErrNotConnected is returned when a realtime operation needs a live socket.
	ErrNotConnected = realtime.ErrNotConnected
)

// CannotConnectMessage is the message carried by every NetworkError.
const CannotConnectMessage = apierrors.CannotConnectMessage

// CoopHubError is implemented by all SDK errors.
type CoopHubError interface {
	error
	CoopHubError() // marker method
}

// APIError represents a non-2xx response from the Cooperative Hub API.
type APIError struct {
	StatusCode int
	// Message is the backend's error or message field, else the HTTP status text.
	Message string
	// Details is the raw backend error payload, if any.
	Details   json.RawMessage
	RequestID string
}

func (e *APIError) Error() string {
	return e.internal().Error()
}

// CoopHubError implements the CoopHubError interface.
func (e *APIError) CoopHubError() {}

// Is implements errors.Is for sentinel error matching.
func (e *APIError) Is(target error) bool {
	return e.internal().Is(target)
}

func (e *APIError) internal() *apierrors.APIError {
	return &apierrors.APIError{StatusCode: e.StatusCode, Message: e.Message, RequestID: e.RequestID}
}

// NetworkError represents a transport-level failure. Its status is 0.
type NetworkError struct {
	Err     error
	URL     string
	Attempt int
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s: %v", CannotConnectMessage, e.Err)
}

// Message returns the user-facing message.
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

// CoopHubError implements the CoopHubError interface.
func (e *NetworkError) CoopHubError() {}

// ValidationError lists the parameters that failed client-side validation.
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

// CoopHubError implements the CoopHubError interface.
func (e *ValidationError) CoopHubError() {}

// StatusCode returns the HTTP status carried by err, 0 for transport
// failures and -1 when err did not come from the API.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return 0
	}
	return apierrors.StatusCode(err)
}

// ErrorMessage returns the message a UI should show for err.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.Message()
	}
	return err.Error()
}

// wrapError converts internal API errors to public errors.
// This ensures that errors.As() finds the public types.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			Details:    apiErr.Details,
			RequestID:  apiErr.RequestID,
		}
	}

	var netErr *api.NetworkError
	if errors.As(err, &netErr) {
		return &NetworkError{
			Err:     netErr.Err,
			URL:     netErr.URL,
			Attempt: netErr.Attempt,
		}
	}

	var valErr *api.ValidationError
	if errors.As(err, &valErr) {
		return &ValidationError{Errors: valErr.Errors}
	}

	return err
}
