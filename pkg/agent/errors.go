package agent

import "errors"

var (
	// ErrNotFound is returned when no profile has the requested ID.
	ErrNotFound = errors.New("agent: profile not found")

	// ErrInvalidProfile is returned when a profile fails validation.
	ErrInvalidProfile = errors.New("agent: invalid profile")
)
