// Package hub fans call activity out to dashboard clients over
// WebSocket. It implements relay.Monitor, so handing it to the
// orchestrator is all it takes to watch calls live.
package hub

import (
	"time"

	"github.com/pfeddy91/better-call-robots-sub000/pkg/relay"
)

// Event types pushed to monitor clients.
const (
	TypeCallStarted = "call_started"
	TypeCallEnded   = "call_ended"
	TypeTranscript  = "transcript"
	TypeCallEvent   = "call_event"
)

// Event is one monitor message. Fields beyond Type and Time are set
// per event type: Call for lifecycle events, Role and Text for
// transcript fragments, Text alone for call events.
type Event struct {
	Type    string          `json:"type"`
	CallSID string          `json:"call_sid,omitempty"`
	Time    time.Time       `json:"time"`
	Call    *relay.CallInfo `json:"call,omitempty"`
	Role    string          `json:"role,omitempty"`
	Text    string          `json:"text,omitempty"`
}

func callEvent(typ string, info relay.CallInfo) Event {
	return Event{
		Type:    typ,
		CallSID: info.SID,
		Time:    time.Now(),
		Call:    &info,
	}
}
