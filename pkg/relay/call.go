package relay

import (
	"sync"
	"sync/atomic"
	"time"
)

// CallStatus tracks where a call is in its lifecycle.
type CallStatus string

const (
	// StatusConnecting means the media stream arrived but the model
	// session is not up yet.
	StatusConnecting CallStatus = "connecting"

	// StatusActive means audio is relaying in both directions.
	StatusActive CallStatus = "active"

	// StatusEnding means teardown has started, an apology may still
	// be playing out.
	StatusEnding CallStatus = "ending"

	// StatusCompleted means the call ended normally.
	StatusCompleted CallStatus = "completed"

	// StatusFailed means the call ended because something broke.
	StatusFailed CallStatus = "failed"
)

// Call directions, seen from this service.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// TranscriptEntry is one fragment of recognized speech.
type TranscriptEntry struct {
	Role string    `json:"role"` // "user" or "agent"
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

// Call is the relay's record of one phone call.
type Call struct {
	// SID is the provider's call identifier.
	SID string

	// AgentID names the answering persona.
	AgentID string

	// Direction is "inbound" or "outbound", from the caller's side.
	Direction string

	// From and To are the far-end and near-end addresses, as the
	// webhook reported them. Empty when the webhook did not pass them
	// through.
	From string
	To   string

	// StartedAt is when the media stream arrived.
	StartedAt time.Time

	mu         sync.Mutex
	status     CallStatus
	streamSID  string
	sessionID  string
	endedAt    time.Time
	endReason  string
	transcript []TranscriptEntry
	hangupWait *time.Timer

	// processing guards the caller-to-model path: at most one frame
	// is in flight per call, extras are dropped.
	processing atomic.Bool

	framesFromCaller atomic.Uint64
	framesToCaller   atomic.Uint64
	framesDropped    atomic.Uint64
}

// newCall creates a call record in the connecting state.
func newCall(sid, agentID string) *Call {
	return &Call{
		SID:       sid,
		AgentID:   agentID,
		Direction: DirectionInbound,
		StartedAt: time.Now(),
		status:    StatusConnecting,
	}
}

// Status returns the current lifecycle state.
func (c *Call) Status() CallStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// setStatus moves the call to a new state.
func (c *Call) setStatus(s CallStatus) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// markEnded records the terminal state exactly once. It returns false
// when the call had already ended, which keeps teardown idempotent.
func (c *Call) markEnded(status CallStatus, reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusCompleted || c.status == StatusFailed {
		return false
	}
	c.status = status
	c.endReason = reason
	c.endedAt = time.Now()
	if c.hangupWait != nil {
		c.hangupWait.Stop()
		c.hangupWait = nil
	}
	return true
}

// setStreamSID records the media stream identifier.
func (c *Call) setStreamSID(sid string) {
	c.mu.Lock()
	c.streamSID = sid
	c.mu.Unlock()
}

// setSessionID records the model session identifier.
func (c *Call) setSessionID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

// setHangupWait installs the timer that forces a hangup if the
// apology mark never comes back. Any previous timer is stopped.
func (c *Call) setHangupWait(t *time.Timer) {
	c.mu.Lock()
	if c.hangupWait != nil {
		c.hangupWait.Stop()
	}
	c.hangupWait = t
	c.mu.Unlock()
}

// stopHangupWait cancels the pending forced hangup, if any.
func (c *Call) stopHangupWait() {
	c.mu.Lock()
	if c.hangupWait != nil {
		c.hangupWait.Stop()
		c.hangupWait = nil
	}
	c.mu.Unlock()
}

// AppendTranscript records one fragment of recognized speech.
func (c *Call) AppendTranscript(role, text string) {
	c.mu.Lock()
	c.transcript = append(c.transcript, TranscriptEntry{
		Role: role,
		Text: text,
		Time: time.Now(),
	})
	c.mu.Unlock()
}

// Transcript returns a copy of the recognized speech so far.
func (c *Call) Transcript() []TranscriptEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TranscriptEntry, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// CallInfo is the JSON shape of one call for the API and monitor.
type CallInfo struct {
	SID              string     `json:"sid"`
	StreamSID        string     `json:"stream_sid,omitempty"`
	SessionID        string     `json:"session_id,omitempty"`
	AgentID          string     `json:"agent_id"`
	Direction        string     `json:"direction"`
	From             string     `json:"from,omitempty"`
	To               string     `json:"to,omitempty"`
	Status           CallStatus `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	EndReason        string     `json:"end_reason,omitempty"`
	DurationMs       int64      `json:"duration_ms"`
	FramesFromCaller uint64     `json:"frames_from_caller"`
	FramesToCaller   uint64     `json:"frames_to_caller"`
	FramesDropped    uint64     `json:"frames_dropped"`
	TranscriptLen    int        `json:"transcript_len"`
}

// Info returns a snapshot of the call.
func (c *Call) Info() CallInfo {
	c.mu.Lock()
	status := c.status
	streamSID := c.streamSID
	sessionID := c.sessionID
	endedAt := c.endedAt
	endReason := c.endReason
	transcriptLen := len(c.transcript)
	c.mu.Unlock()

	info := CallInfo{
		SID:              c.SID,
		StreamSID:        streamSID,
		SessionID:        sessionID,
		AgentID:          c.AgentID,
		Direction:        c.Direction,
		From:             c.From,
		To:               c.To,
		Status:           status,
		StartedAt:        c.StartedAt,
		EndReason:        endReason,
		FramesFromCaller: c.framesFromCaller.Load(),
		FramesToCaller:   c.framesToCaller.Load(),
		FramesDropped:    c.framesDropped.Load(),
		TranscriptLen:    transcriptLen,
	}

	if !endedAt.IsZero() {
		info.EndedAt = &endedAt
		info.DurationMs = endedAt.Sub(c.StartedAt).Milliseconds()
	} else {
		info.DurationMs = time.Since(c.StartedAt).Milliseconds()
	}
	return info
}
