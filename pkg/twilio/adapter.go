package twilio

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/pfeddy91/better-call-robots-sub000/internal/log"
)

// Adapter bridges Media Streams WebSocket connections to the rest of
// the relay. A single Adapter serves every concurrent call.
type Adapter struct {
	mu      sync.RWMutex
	streams map[string]*MediaStream // keyed by call SID
	logger  *slog.Logger

	// Callbacks
	onStart func(ms *MediaStream, start *StartPayload)
	onAudio func(callSID string, frame []byte)
	onStop  func(callSID string)
	onMark  func(callSID string, name string)
	onDTMF  func(callSID string, digit string)

	// Stats
	framesReceived atomic.Uint64
	framesSent     atomic.Uint64
	framesDropped  atomic.Uint64
	connections    atomic.Uint64
}

// NewAdapter creates a new media stream adapter.
func NewAdapter() *Adapter {
	return &Adapter{
		streams: make(map[string]*MediaStream),
		logger:  log.Component("twilio"),
	}
}

// OnStreamStart sets the callback for a stream's start event. The
// stream is registered before the callback runs.
func (a *Adapter) OnStreamStart(fn func(ms *MediaStream, start *StartPayload)) {
	a.mu.Lock()
	a.onStart = fn
	a.mu.Unlock()
}

// OnAudioFrame sets the callback for inbound caller audio. The frame
// is the decoded mu-law payload.
func (a *Adapter) OnAudioFrame(fn func(callSID string, frame []byte)) {
	a.mu.Lock()
	a.onAudio = fn
	a.mu.Unlock()
}

// OnStreamStop sets the callback for a stream's stop event.
func (a *Adapter) OnStreamStop(fn func(callSID string)) {
	a.mu.Lock()
	a.onStop = fn
	a.mu.Unlock()
}

// OnMark sets the callback for mark echoes, fired when Twilio's
// playback reaches a mark the relay sent.
func (a *Adapter) OnMark(fn func(callSID string, name string)) {
	a.mu.Lock()
	a.onMark = fn
	a.mu.Unlock()
}

// OnDTMF sets the callback for keypad digits.
func (a *Adapter) OnDTMF(fn func(callSID string, digit string)) {
	a.mu.Lock()
	a.onDTMF = fn
	a.mu.Unlock()
}

// RegisterRoutes registers the audio WebSocket route on a Fiber app.
func (a *Adapter) RegisterRoutes(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/audio", websocket.New(a.HandleStream))
}

// HandleStream handles one Media Streams WebSocket connection. It
// blocks until the socket closes.
func (a *Adapter) HandleStream(c *websocket.Conn) {
	ms := &MediaStream{
		Conn:      c,
		Connected: time.Now(),
	}
	a.connections.Add(1)

	defer func() {
		ms.markClosed()
		a.unregister(ms)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			a.logger.Debug("stream read ended", "call_sid", ms.CallSID(), "error", err)
			return
		}

		env, err := ParseEnvelope(data)
		if err != nil {
			a.logger.Warn("failed to parse envelope", "error", err)
			continue
		}

		a.handleEnvelope(ms, env)
	}
}

// handleEnvelope dispatches one inbound message.
func (a *Adapter) handleEnvelope(ms *MediaStream, env *Envelope) {
	a.mu.RLock()
	startCb := a.onStart
	audioCb := a.onAudio
	stopCb := a.onStop
	markCb := a.onMark
	dtmfCb := a.onDTMF
	a.mu.RUnlock()

	switch env.Event {
	case EventConnected:
		a.logger.Debug("media stream handshake", "protocol", env.Protocol, "version", env.Version)

	case EventStart:
		if env.Start == nil {
			a.logger.Warn("start event without payload")
			return
		}
		ms.setStart(env.Start)
		a.register(ms)
		a.logger.Info("media stream started",
			"call_sid", env.Start.CallSID,
			"stream_sid", env.Start.StreamSID,
			"tracks", env.Start.Tracks,
		)
		if startCb != nil {
			startCb(ms, env.Start)
		}

	case EventMedia:
		if env.Media == nil {
			return
		}
		// The outbound track is an echo of our own playback.
		if env.Media.Track == TrackOutbound {
			return
		}
		callSID := ms.CallSID()
		if callSID == "" {
			return
		}
		a.framesReceived.Add(1)
		if audioCb != nil {
			frame, err := env.Media.DecodePayload()
			if err != nil {
				a.logger.Warn("failed to decode media payload", "call_sid", callSID, "error", err)
				return
			}
			audioCb(callSID, frame)
		}

	case EventStop:
		ms.markClosed()
		callSID := ms.CallSID()
		a.logger.Info("media stream stopped", "call_sid", callSID)
		if stopCb != nil && callSID != "" {
			stopCb(callSID)
		}

	case EventMark:
		if markCb != nil && env.Mark != nil {
			markCb(ms.CallSID(), env.Mark.Name)
		}

	case EventDTMF:
		if dtmfCb != nil && env.DTMF != nil {
			dtmfCb(ms.CallSID(), env.DTMF.Digit)
		}

	default:
		a.logger.Debug("unhandled event", "event", env.Event)
	}
}

// register adds a started stream to the registry.
func (a *Adapter) register(ms *MediaStream) {
	callSID := ms.CallSID()
	if callSID == "" {
		return
	}

	a.mu.Lock()
	a.streams[callSID] = ms
	count := len(a.streams)
	a.mu.Unlock()

	a.logger.Debug("stream registered", "call_sid", callSID, "active", count)
}

// unregister removes a stream from the registry.
func (a *Adapter) unregister(ms *MediaStream) {
	callSID := ms.CallSID()
	if callSID == "" {
		return
	}

	a.mu.Lock()
	if a.streams[callSID] == ms {
		delete(a.streams, callSID)
	}
	count := len(a.streams)
	a.mu.Unlock()

	a.logger.Debug("stream unregistered", "call_sid", callSID, "active", count)
}

// SendAudioFrame writes one frame of companded audio to the call's
// stream. It reports false when the stream is gone or no longer
// active; the frame is dropped, never buffered.
func (a *Adapter) SendAudioFrame(callSID string, frame []byte) bool {
	a.mu.RLock()
	ms, ok := a.streams[callSID]
	a.mu.RUnlock()

	if !ok || ms.State() != StreamActive {
		a.framesDropped.Add(1)
		return false
	}

	env := NewMediaEnvelope(ms.StreamSID(), frame)
	env.SequenceNumber = ms.nextSeq()

	if err := ms.Send(env); err != nil {
		a.framesDropped.Add(1)
		a.logger.Debug("audio frame dropped", "call_sid", callSID, "error", err)
		return false
	}

	a.framesSent.Add(1)
	return true
}

// SendMark sends a named playback checkpoint to the call's stream.
func (a *Adapter) SendMark(callSID, name string) error {
	ms, err := a.activeStream(callSID)
	if err != nil {
		return err
	}
	return ms.Send(NewMarkEnvelope(ms.StreamSID(), name))
}

// SendClear tells Twilio to discard any buffered playback audio for
// the call. Used when the caller interrupts the agent.
func (a *Adapter) SendClear(callSID string) error {
	ms, err := a.activeStream(callSID)
	if err != nil {
		return err
	}
	return ms.Send(NewClearEnvelope(ms.StreamSID()))
}

// activeStream looks up a registered stream that is still active.
func (a *Adapter) activeStream(callSID string) (*MediaStream, error) {
	a.mu.RLock()
	ms, ok := a.streams[callSID]
	a.mu.RUnlock()

	if !ok {
		return nil, ErrStreamNotFound
	}
	if ms.State() != StreamActive {
		return nil, ErrStreamClosed
	}
	return ms, nil
}

// CloseStream tears down the call's WebSocket from the server side.
// Used to end a call when REST credentials are not configured; Twilio
// drops the call when its stream closes.
func (a *Adapter) CloseStream(callSID string) error {
	a.mu.RLock()
	ms, ok := a.streams[callSID]
	a.mu.RUnlock()

	if !ok {
		return ErrStreamNotFound
	}
	ms.markClosed()
	return ms.Conn.Close()
}

// Get returns the media stream for a call.
func (a *Adapter) Get(callSID string) (*MediaStream, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ms, ok := a.streams[callSID]
	return ms, ok
}

// Count returns the number of registered streams.
func (a *Adapter) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.streams)
}

// Stats contains adapter statistics.
type Stats struct {
	ActiveStreams  int    `json:"active_streams"`
	Connections    uint64 `json:"connections"`
	FramesReceived uint64 `json:"frames_received"`
	FramesSent     uint64 `json:"frames_sent"`
	FramesDropped  uint64 `json:"frames_dropped"`
}

// GetStats returns adapter statistics.
func (a *Adapter) GetStats() Stats {
	return Stats{
		ActiveStreams:  a.Count(),
		Connections:    a.connections.Load(),
		FramesReceived: a.framesReceived.Load(),
		FramesSent:     a.framesSent.Load(),
		FramesDropped:  a.framesDropped.Load(),
	}
}
