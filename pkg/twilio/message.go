// Package twilio implements the Media Streams WebSocket protocol and
// the few REST operations the relay needs to place and end calls.
package twilio

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// EventType identifies the type of Media Streams message.
type EventType string

const (
	// Twilio → relay events
	EventConnected EventType = "connected" // Handshake, first message on the socket
	EventStart     EventType = "start"     // Stream metadata, call becomes active
	EventMedia     EventType = "media"     // One frame of audio
	EventStop      EventType = "stop"      // Stream ended
	EventDTMF      EventType = "dtmf"      // Keypad digit pressed

	// Relay → Twilio events
	EventClear EventType = "clear" // Discard buffered playback audio

	// Bidirectional (sent by the relay, echoed back once playback reaches it)
	EventMark EventType = "mark"
)

// Track names carried in media events.
const (
	TrackInbound  = "inbound"
	TrackOutbound = "outbound"
)

// EncodingMulaw is the media encoding Twilio uses for phone audio.
const EncodingMulaw = "audio/x-mulaw"

// Envelope is the wrapper for all Media Streams messages. Only the
// payload field matching Event is populated.
type Envelope struct {
	Event          EventType     `json:"event"`
	SequenceNumber string        `json:"sequenceNumber,omitempty"`
	StreamSID      string        `json:"streamSid,omitempty"`
	Protocol       string        `json:"protocol,omitempty"`
	Version        string        `json:"version,omitempty"`
	Start          *StartPayload `json:"start,omitempty"`
	Media          *MediaPayload `json:"media,omitempty"`
	Stop           *StopPayload  `json:"stop,omitempty"`
	Mark           *MarkPayload  `json:"mark,omitempty"`
	DTMF           *DTMFPayload  `json:"dtmf,omitempty"`
}

// StartPayload carries the stream metadata from the start event.
type StartPayload struct {
	AccountSID       string            `json:"accountSid"`
	StreamSID        string            `json:"streamSid"`
	CallSID          string            `json:"callSid"`
	Tracks           []string          `json:"tracks"`
	MediaFormat      MediaFormat       `json:"mediaFormat"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

// MediaFormat describes the audio encoding of a stream.
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// MediaPayload carries one frame of base64-encoded audio.
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// DecodePayload decodes the base64 audio payload.
func (m *MediaPayload) DecodePayload() ([]byte, error) {
	return base64.StdEncoding.DecodeString(m.Payload)
}

// StopPayload carries the stop event metadata.
type StopPayload struct {
	AccountSID string `json:"accountSid"`
	CallSID    string `json:"callSid"`
}

// MarkPayload names a playback checkpoint.
type MarkPayload struct {
	Name string `json:"name"`
}

// DTMFPayload carries a keypad digit.
type DTMFPayload struct {
	Track string `json:"track"`
	Digit string `json:"digit"`
}

// NewMediaEnvelope builds an outbound media message carrying one frame
// of companded audio.
func NewMediaEnvelope(streamSID string, audio []byte) *Envelope {
	return &Envelope{
		Event:     EventMedia,
		StreamSID: streamSID,
		Media: &MediaPayload{
			Payload: base64.StdEncoding.EncodeToString(audio),
		},
	}
}

// NewMarkEnvelope builds a mark message. Twilio echoes it back once
// playback reaches the mark.
func NewMarkEnvelope(streamSID, name string) *Envelope {
	return &Envelope{
		Event:     EventMark,
		StreamSID: streamSID,
		Mark:      &MarkPayload{Name: name},
	}
}

// NewClearEnvelope builds a clear message that discards any audio
// Twilio has buffered but not yet played.
func NewClearEnvelope(streamSID string) *Envelope {
	return &Envelope{
		Event:     EventClear,
		StreamSID: streamSID,
	}
}

// ParseEnvelope parses a JSON message from bytes.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("twilio: parse envelope: %w", err)
	}
	return &env, nil
}

// Bytes returns the JSON-encoded envelope.
func (e *Envelope) Bytes() ([]byte, error) {
	return json.Marshal(e)
}
