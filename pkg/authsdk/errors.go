package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/lockbox/pkg/httpx"
)

// APIError is a failed call. The server writes it and the SDK client parses
// it back, so both sides share one set of stable messages.
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Message is the stable, client-safe description
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode, StatusResponse{
		Success: false,
		Message: e.Message,
	})
}

// Is matches on status code and message so callers can use errors.Is against
// the predefined values.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode && e.Message == t.Message
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	// ErrInvalidCredentials is returned for a wrong email or password. The two
	// cases are indistinguishable.
	ErrInvalidCredentials = &APIError{
		StatusCode: http.StatusUnauthorized,
		Message:    "Invalid credentials",
	}

	// ErrUnauthorized is returned for bad, expired or revoked credentials, a
	// wrong TOTP code or a failed face match.
	ErrUnauthorized = &APIError{
		StatusCode: http.StatusUnauthorized,
		Message:    "Unauthorized",
	}

	// ErrInvalidRequest is returned for malformed input.
	ErrInvalidRequest = &APIError{
		StatusCode: http.StatusBadRequest,
		Message:    "Invalid request",
	}

	// ErrRequestNotActive is returned when a face request expired or already
	// reached a final state.
	ErrRequestNotActive = &APIError{
		StatusCode: http.StatusBadRequest,
		Message:    "Face verification request is no longer valid",
	}

	// ErrNotFound is returned for unknown face requests and devices.
	ErrNotFound = &APIError{
		StatusCode: http.StatusNotFound,
		Message:    "Not found",
	}

	// ErrConflict is returned when a resource already exists.
	ErrConflict = &APIError{
		StatusCode: http.StatusConflict,
		Message:    "Already exists",
	}

	// ErrVerificationUnavailable hides the cause of an upstream failure.
	ErrVerificationUnavailable = &APIError{
		StatusCode: http.StatusBadGateway,
		Message:    "Face verification failed",
	}

	// ErrServerError is returned when the service hit an unexpected condition.
	ErrServerError = &APIError{
		StatusCode: http.StatusInternalServerError,
		Message:    "Internal server error",
	}
)

// NewAPIError creates an APIError with a custom message.
func NewAPIError(statusCode int, message string) *APIError {
	return &APIError{StatusCode: statusCode, Message: message}
}

// parseErrorResponse turns a non-2xx response into an *APIError. Returns nil
// for success responses.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp StatusResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Message}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
