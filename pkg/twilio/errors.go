package twilio

import (
	"errors"
	"fmt"
)

// Sentinel errors for the twilio package.
var (
	// ErrStreamNotFound indicates no media stream is registered for the call.
	ErrStreamNotFound = errors.New("twilio: stream not found")

	// ErrStreamClosed indicates the media stream has already ended.
	ErrStreamClosed = errors.New("twilio: stream closed")

	// ErrMissingCredentials indicates the REST client has no account to act as.
	ErrMissingCredentials = errors.New("twilio: account SID and auth token are required")

	// ErrMissingCallSID indicates a call SID was required but empty.
	ErrMissingCallSID = errors.New("twilio: call SID is required")
)

// APIError represents an error response from the Twilio REST API.
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Code is Twilio's numeric error code (e.g. 21211 for an invalid
	// To number), zero when the body carried none.
	Code int

	// Message is the human-readable error message.
	Message string

	// MoreInfo is Twilio's documentation URL for the error code.
	MoreInfo string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("twilio: API error %d (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("twilio: API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the request can be retried.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// TransportError represents a WebSocket failure on a media stream.
type TransportError struct {
	// Reason describes the operation that failed.
	Reason string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("twilio: transport error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("twilio: transport error: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// NewTransportError creates a new TransportError.
func NewTransportError(reason string, cause error) *TransportError {
	return &TransportError{Reason: reason, Cause: cause}
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	return false
}
