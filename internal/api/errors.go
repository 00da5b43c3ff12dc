package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/smartcoophub/client-go/internal/apierrors"
)

// Aliases so callers of this package need not import apierrors.
type (
	APIError        = apierrors.APIError
	NetworkError    = apierrors.NetworkError
	ValidationError = apierrors.ValidationError
)

// parseErrorResponse builds the structured error for a non-2xx response.
// The message prefers the backend's error field, then message, then the
// HTTP status text.
func parseErrorResponse(status int, contentType string, body []byte, requestID string) error {
	apiErr := &apierrors.APIError{
		StatusCode: status,
		RequestID:  requestID,
	}

	trimmed := bytes.TrimSpace(body)
	switch {
	case len(trimmed) == 0:
	case isJSONContentType(contentType) || json.Valid(trimmed):
		if json.Valid(trimmed) {
			apiErr.Details = json.RawMessage(trimmed)
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(trimmed, &fields); err == nil {
				if msg := stringField(fields["error"]); msg != "" {
					apiErr.Message = msg
				} else if msg := stringField(fields["message"]); msg != "" {
					apiErr.Message = msg
				}
			}
		}
	default:
		apiErr.Message = string(trimmed)
		apiErr.Details, _ = json.Marshal(map[string]string{"message": apiErr.Message})
	}

	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
