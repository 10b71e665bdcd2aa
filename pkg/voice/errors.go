package voice

import (
	"errors"
	"fmt"
)

// Sentinel errors for the voice package.
var (
	// ErrMissingAPIKey indicates no API key was provided.
	ErrMissingAPIKey = errors.New("voice: Google API key required")

	// ErrMissingProject indicates Vertex mode without a project.
	ErrMissingProject = errors.New("voice: Vertex project required")

	// ErrMissingModel indicates no model name was configured.
	ErrMissingModel = errors.New("voice: model required")

	// ErrNotConnected indicates the session is not connected.
	ErrNotConnected = errors.New("voice: not connected")

	// ErrAlreadyStarted indicates the session was already started.
	ErrAlreadyStarted = errors.New("voice: session already started")

	// ErrSessionExists indicates a session is already registered for the call.
	ErrSessionExists = errors.New("voice: session already exists for call")

	// ErrSessionNotFound indicates no session is registered for the call.
	ErrSessionNotFound = errors.New("voice: session not found")

	// ErrSetupTimeout indicates the server never acknowledged the setup message.
	ErrSetupTimeout = errors.New("voice: setup not acknowledged")
)

// SessionCreationError reports that a session could not be
// established for a call. The relay answers it by apologizing to the
// caller and hanging up.
type SessionCreationError struct {
	// CallSID identifies the call the session was for.
	CallSID string

	// Cause is the underlying dial or setup error.
	Cause error
}

// Error implements the error interface.
func (e *SessionCreationError) Error() string {
	return fmt.Sprintf("voice: session creation failed for call %s: %v", e.CallSID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *SessionCreationError) Unwrap() error {
	return e.Cause
}

// ConnectionError represents a WebSocket failure on a live session.
type ConnectionError struct {
	// Reason describes the operation that failed.
	Reason string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates whether a new session is worth attempting.
	Retryable bool
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("voice: connection error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("voice: connection error: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns true if reconnection should be attempted.
func (e *ConnectionError) IsRetryable() bool {
	return e.Retryable
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(reason string, cause error, retryable bool) *ConnectionError {
	return &ConnectionError{Reason: reason, Cause: cause, Retryable: retryable}
}

// ProtocolError reports a server frame that could not be decoded.
// The session logs it and keeps reading; a bad frame never ends a call.
type ProtocolError struct {
	// Detail describes what failed to parse.
	Detail string

	// Cause is the underlying decode error.
	Cause error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("voice: protocol error: %s: %v", e.Detail, e.Cause)
	}
	return fmt.Sprintf("voice: protocol error: %s", e.Detail)
}

// Unwrap returns the underlying cause.
func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

// IsSessionCreation returns true if err is a session creation failure.
func IsSessionCreation(err error) bool {
	var scErr *SessionCreationError
	return errors.As(err, &scErr)
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.IsRetryable()
	}
	return false
}
