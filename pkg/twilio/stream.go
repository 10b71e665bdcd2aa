package twilio

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// StreamState tracks the lifecycle of a media stream connection.
type StreamState int32

const (
	// StreamConnecting means the socket is open but the start event
	// has not arrived yet.
	StreamConnecting StreamState = iota
	// StreamActive means media is flowing.
	StreamActive
	// StreamClosed means the stream ended or the socket is gone.
	StreamClosed
)

// String returns a human-readable stream state.
func (s StreamState) String() string {
	switch s {
	case StreamConnecting:
		return "connecting"
	case StreamActive:
		return "active"
	case StreamClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MediaStream represents one live Media Streams WebSocket connection.
type MediaStream struct {
	Conn      *websocket.Conn
	Connected time.Time

	state atomic.Int32
	seq   atomic.Uint64

	mu         sync.Mutex // guards writes and the fields below
	streamSID  string
	callSID    string
	accountSID string
	params     map[string]string
}

// State returns the current lifecycle state.
func (m *MediaStream) State() StreamState {
	return StreamState(m.state.Load())
}

// StreamSID returns the stream identifier from the start event.
func (m *MediaStream) StreamSID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamSID
}

// CallSID returns the call identifier from the start event.
func (m *MediaStream) CallSID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callSID
}

// AccountSID returns the account identifier from the start event.
func (m *MediaStream) AccountSID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accountSID
}

// CustomParameter returns the named parameter from the TwiML
// <Parameter> elements, or "" if absent.
func (m *MediaStream) CustomParameter(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.params[name]
}

// setStart records the start event metadata and activates the stream.
func (m *MediaStream) setStart(start *StartPayload) {
	m.mu.Lock()
	m.streamSID = start.StreamSID
	m.callSID = start.CallSID
	m.accountSID = start.AccountSID
	m.params = start.CustomParameters
	m.mu.Unlock()

	m.state.Store(int32(StreamActive))
}

// markClosed transitions the stream to its terminal state.
func (m *MediaStream) markClosed() {
	m.state.Store(int32(StreamClosed))
}

// nextSeq returns the next outbound sequence number, starting at 1.
func (m *MediaStream) nextSeq() string {
	return strconv.FormatUint(m.seq.Add(1), 10)
}

// Send writes an envelope to the stream.
func (m *MediaStream) Send(env *Envelope) error {
	data, err := env.Bytes()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return NewTransportError("write failed", err)
	}
	return nil
}
