package relay

import "errors"

var (
	// ErrCallNotFound is returned when no call has the requested SID.
	ErrCallNotFound = errors.New("relay: call not found")

	// ErrCallExists is returned when a stream arrives for a call the
	// relay is already handling.
	ErrCallExists = errors.New("relay: call already exists")

	// ErrMissingAdapter is returned when the orchestrator is built
	// without a telephony adapter.
	ErrMissingAdapter = errors.New("relay: telephony adapter required")

	// ErrMissingVoice is returned when the orchestrator is built
	// without a session manager.
	ErrMissingVoice = errors.New("relay: voice session manager required")

	// ErrMissingConverter is returned when the orchestrator is built
	// without an audio converter.
	ErrMissingConverter = errors.New("relay: audio converter required")

	// ErrOutboundUnavailable is returned when outbound dialing is
	// requested without REST credentials or a public host.
	ErrOutboundUnavailable = errors.New("relay: outbound calls not configured")
)
