package web

import "errors"

var (
	// ErrMissingConfig means the server was built without configuration.
	ErrMissingConfig = errors.New("web: service config required")

	// ErrMissingAdapter means no telephony adapter was provided.
	ErrMissingAdapter = errors.New("web: telephony adapter required")

	// ErrMissingRelay means no orchestrator was provided.
	ErrMissingRelay = errors.New("web: relay orchestrator required")
)
