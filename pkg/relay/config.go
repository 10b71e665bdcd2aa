package relay

import "time"

// Config holds orchestrator settings.
type Config struct {
	// PublicHost is the externally reachable host, used to build the
	// TwiML callback URL for outbound calls. Scheme-less, e.g.
	// "example.ngrok.io".
	PublicHost string

	// CallerID is the default From number for outbound calls, E.164.
	CallerID string

	// ApologyText is spoken to the caller when the model session
	// cannot be created, right before hanging up.
	ApologyText string

	// SessionCreateTimeout bounds dialing the model when a stream
	// starts.
	SessionCreateTimeout time.Duration

	// HangupGrace is how long to wait for the apology playback mark
	// to come back before forcing the hangup anyway.
	HangupGrace time.Duration
}

// DefaultConfig returns orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		ApologyText:          "I'm sorry, I can't take your call right now. Please try again later.",
		SessionCreateTimeout: 15 * time.Second,
		HangupGrace:          10 * time.Second,
	}
}
