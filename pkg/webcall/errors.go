package webcall

import "errors"

var (
	// ErrMissingVoice is returned when the bridge is built without a
	// session manager.
	ErrMissingVoice = errors.New("webcall: voice session manager required")

	// ErrCallNotFound is returned when no browser call has the
	// requested ID.
	ErrCallNotFound = errors.New("webcall: call not found")

	// ErrEmptyOffer is returned when the SDP offer is missing.
	ErrEmptyOffer = errors.New("webcall: empty SDP offer")
)
