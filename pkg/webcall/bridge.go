// Package webcall answers browser calls over WebRTC, so an agent can
// be exercised from a web page without dialing a phone. The browser
// posts an SDP offer and speaks opus; the bridge runs the same model
// session pipeline a phone call gets, trading mu-law for opus at the
// edges.
package webcall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"gopkg.in/hraban/opus.v2"

	"github.com/pfeddy91/better-call-robots-sub000/internal/log"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/agent"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/audio"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/relay"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/voice"
)

// gatherTimeout caps how long an offer waits for ICE candidates. Host
// candidates normally arrive within milliseconds.
const gatherTimeout = 10 * time.Second

// Answer is the response to an SDP offer.
type Answer struct {
	// CallID identifies the browser call for later API operations.
	CallID string `json:"call_id"`

	// Type is always "answer".
	Type string `json:"type"`

	// SDP is the local session description with all ICE candidates
	// included, so no further signalling is needed.
	SDP string `json:"sdp"`
}

// Deps are the components the bridge drives. Voice is required; the
// rest degrade gracefully when absent.
type Deps struct {
	// Voice manages live model sessions.
	Voice *voice.Manager

	// Agents resolves answering personas. When nil the built-in
	// profiles are loaded.
	Agents *agent.Registry

	// Monitor observes call lifecycle events, usually the same one the
	// phone leg reports to. When nil, events are discarded.
	Monitor relay.Monitor
}

// Bridge accepts browser offers and runs each call against a model
// session.
type Bridge struct {
	logger  *slog.Logger
	voice   *voice.Manager
	agents  *agent.Registry
	monitor relay.Monitor

	mu    sync.RWMutex
	calls map[string]*browserCall

	served      atomic.Uint64
	packetsIn   atomic.Uint64
	packetsLost atomic.Uint64
	framesOut   atomic.Uint64
	decodeErrs  atomic.Uint64
}

// New validates the dependencies and prepares the bridge.
func New(deps Deps) (*Bridge, error) {
	if deps.Voice == nil {
		return nil, ErrMissingVoice
	}

	agents := deps.Agents
	if agents == nil {
		agents = agent.NewRegistry()
		if err := agents.LoadBuiltIn(); err != nil {
			return nil, fmt.Errorf("webcall: load built-in profiles: %w", err)
		}
	}

	monitor := deps.Monitor
	if monitor == nil {
		monitor = nopMonitor{}
	}

	return &Bridge{
		logger:  log.Component("webcall"),
		voice:   deps.Voice,
		agents:  agents,
		monitor: monitor,
		calls:   make(map[string]*browserCall),
	}, nil
}

// HandleOffer accepts a browser's SDP offer and returns the answer.
// The call connects as soon as the browser applies it: media flows,
// the model session is live, and the agent greets the caller.
func (b *Bridge) HandleOffer(ctx context.Context, offerSDP, agentID string) (*Answer, error) {
	if strings.TrimSpace(offerSDP) == "" {
		return nil, ErrEmptyOffer
	}

	profile, err := b.agents.Resolve(agentID)
	if err != nil {
		return nil, fmt.Errorf("webcall: resolve agent %q: %w", agentID, err)
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, fmt.Errorf("webcall: create peer connection: %w", err)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "agent",
	)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("webcall: create audio track: %w", err)
	}
	sender, err := pc.AddTrack(track)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("webcall: add audio track: %w", err)
	}
	// The sender's RTCP stream has to be drained for its interceptors
	// to run.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	encoder, err := opus.NewEncoder(browserRate, 1, opus.AppVoIP)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("webcall: create opus encoder: %w", err)
	}

	id := uuid.NewString()
	sess, err := b.voice.CreateSession(ctx, id, voice.SessionOptions{
		SystemPrompt: profile.Instructions(),
		Voice:        profile.Voice,
		Language:     profile.Language,
		Model:        profile.Model,
	})
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("webcall: model session: %w", err)
	}

	call := newBrowserCall(id, profile, b.logger.With("call_id", id))
	call.pc = pc
	call.track = track
	call.session = sess
	call.encoder = encoder

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if remote.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		call.logger.Debug("browser track up", "codec", remote.Codec().MimeType)
		go b.readLoop(call, remote)
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		b.handleConnectionState(call, state)
	})

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offerSDP,
	}); err != nil {
		b.abort(call)
		return nil, fmt.Errorf("webcall: apply offer: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		b.abort(call)
		return nil, fmt.Errorf("webcall: create answer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		b.abort(call)
		return nil, fmt.Errorf("webcall: apply answer: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		b.abort(call)
		return nil, ctx.Err()
	case <-time.After(gatherTimeout):
		b.abort(call)
		return nil, errors.New("webcall: ICE gathering timed out")
	}

	b.mu.Lock()
	b.calls[id] = call
	b.mu.Unlock()
	b.served.Add(1)
	b.monitor.OnCallStarted(call.info())
	b.logger.Info("browser call answered", "call_id", id, "agent", profile.ID)

	b.bindSession(call, sess)
	if !sess.IsConnected() {
		b.endCall(call, relay.StatusFailed, "session lost")
		return nil, errors.New("webcall: model session lost during setup")
	}

	go b.playbackLoop(call)

	return &Answer{CallID: id, Type: "answer", SDP: pc.LocalDescription().SDP}, nil
}

// abort tears down a call that never made it into the registry.
func (b *Bridge) abort(call *browserCall) {
	call.pc.Close()
	if err := b.voice.EndSession(call.id); err != nil {
		b.logger.Debug("session close failed", "call_id", call.id, "error", err)
	}
}

// bindSession points the session's events at this browser call.
func (b *Bridge) bindSession(call *browserCall, sess *voice.Session) {
	sess.OnAudio(call.enqueuePlayback)

	sess.OnInterrupted(func() {
		call.clearPlayback()
		b.monitor.OnCallEvent(call.id, "interrupted")
	})

	sess.OnTranscript(func(role, text string) {
		call.appendTranscript(role, text)
		b.monitor.OnTranscript(call.id, role, text)
	})

	sess.OnTurnComplete(func() {
		call.markTurnDone()
		b.monitor.OnCallEvent(call.id, "turn complete")
	})

	sess.OnClosed(func(err error) {
		if err != nil {
			call.logger.Warn("model session lost", "error", err)
			b.endCall(call, relay.StatusFailed, "session lost")
			return
		}
		b.endCall(call, relay.StatusCompleted, "session closed")
	})
}

// handleConnectionState reacts to the peer's transport lifecycle. The
// greeting waits for Connected so the caller actually hears it.
// Disconnected is left alone because ICE can recover from it; Failed
// and Closed are terminal. The work moves off pion's callback
// goroutine, which must not block or re-enter the peer connection.
func (b *Bridge) handleConnectionState(call *browserCall, state webrtc.PeerConnectionState) {
	call.logger.Debug("peer connection state", "state", state.String())

	switch state {
	case webrtc.PeerConnectionStateConnected:
		call.setStatus(relay.StatusActive)
		b.monitor.OnCallEvent(call.id, "browser connected")
		go call.greet()
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		go b.endCall(call, relay.StatusCompleted, "browser disconnected")
	}
}

// readLoop decodes the browser's opus packets and feeds the model.
// Each 20ms packet becomes one 20ms model frame, the same cadence a
// phone call produces, so the session cannot tell the legs apart.
func (b *Bridge) readLoop(call *browserCall, track *webrtc.TrackRemote) {
	decoder, err := opus.NewDecoder(browserRate, 1)
	if err != nil {
		call.logger.Error("opus decoder failed", "error", err)
		return
	}

	frameBuf := make([]int16, maxOpusFrameSamples)
	var seq seqTracker

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		call.packetsIn.Add(1)
		b.packetsIn.Add(1)
		if lost := seq.observe(pkt); lost > 0 {
			call.packetsLost.Add(lost)
			b.packetsLost.Add(lost)
		}

		n, err := decoder.Decode(pkt.Payload, frameBuf)
		if err != nil {
			call.decodeErrs.Add(1)
			b.decodeErrs.Add(1)
			continue
		}

		pcm := audio.Resample(frameBuf[:n], browserRate, audio.DefaultModelInRate)
		if err := call.session.SendAudio(audio.SamplesToBytes(pcm)); err != nil {
			call.logger.Debug("audio forward failed", "error", err)
			return
		}
	}
}

// playbackLoop paces queued model audio onto the browser track in
// real-time opus frames. The model sends faster than real time, so
// the queue absorbs the difference. The loop doubles as the liveness
// check for the session: a deliberate close elsewhere, such as the
// idle sweep, fires no callback, and this is where it gets noticed.
func (b *Bridge) playbackLoop(call *browserCall) {
	ticker := time.NewTicker(opusFrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-call.done:
			return
		case <-ticker.C:
			if !call.session.IsConnected() {
				b.endCall(call, relay.StatusCompleted, "session closed")
				return
			}
			b.writeFrame(call)
		}
	}
}

// writeFrame encodes and sends at most one opus frame.
func (b *Bridge) writeFrame(call *browserCall) {
	frame, ok := call.nextFrame()
	if !ok {
		return
	}

	packet := make([]byte, maxOpusPacket)
	size, err := call.encoder.Encode(frame, packet)
	if err != nil {
		call.logger.Warn("opus encode failed", "error", err)
		return
	}
	if err := call.track.WriteSample(media.Sample{
		Data:     packet[:size],
		Duration: opusFrameDuration,
	}); err != nil {
		call.logger.Debug("track write failed", "error", err)
		return
	}
	call.framesOut.Add(1)
	b.framesOut.Add(1)
}

// endCall finishes a browser call exactly once: stop the pacer, close
// the peer and the session, drop the registry entry and notify the
// monitor.
func (b *Bridge) endCall(call *browserCall, status relay.CallStatus, reason string) {
	if !call.markEnded(status, reason) {
		return
	}

	close(call.done)
	call.pc.Close()
	if err := b.voice.EndSession(call.id); err != nil {
		b.logger.Debug("session close failed", "call_id", call.id, "error", err)
	}

	b.mu.Lock()
	delete(b.calls, call.id)
	b.mu.Unlock()

	info := call.info()
	b.monitor.OnCallEnded(info)
	call.logger.Info("browser call ended",
		"status", status,
		"reason", reason,
		"duration_ms", info.DurationMs,
		"packets_in", info.FramesFromCaller,
		"frames_out", info.FramesToCaller,
	)
}

func (b *Bridge) get(id string) (*browserCall, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	call, ok := b.calls[id]
	return call, ok
}

// EndCall terminates a browser call on request.
func (b *Bridge) EndCall(id string) error {
	call, ok := b.get(id)
	if !ok {
		return ErrCallNotFound
	}
	b.endCall(call, relay.StatusCompleted, "operator request")
	return nil
}

// CallInfo returns a snapshot of one active browser call.
func (b *Bridge) CallInfo(id string) (relay.CallInfo, error) {
	call, ok := b.get(id)
	if !ok {
		return relay.CallInfo{}, ErrCallNotFound
	}
	return call.info(), nil
}

// Transcript returns the recognized speech of one active browser call.
func (b *Bridge) Transcript(id string) ([]relay.TranscriptEntry, error) {
	call, ok := b.get(id)
	if !ok {
		return nil, ErrCallNotFound
	}
	return call.transcriptCopy(), nil
}

// ActiveCalls lists browser calls in progress, oldest first.
func (b *Bridge) ActiveCalls() []relay.CallInfo {
	b.mu.RLock()
	infos := make([]relay.CallInfo, 0, len(b.calls))
	for _, call := range b.calls {
		infos = append(infos, call.info())
	}
	b.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}

// Shutdown ends every active browser call. Used on service stop.
func (b *Bridge) Shutdown() {
	b.mu.RLock()
	calls := make([]*browserCall, 0, len(b.calls))
	for _, call := range b.calls {
		calls = append(calls, call)
	}
	b.mu.RUnlock()

	for _, call := range calls {
		b.endCall(call, relay.StatusCompleted, "service shutdown")
	}
}

// Stats are the bridge's counters.
type Stats struct {
	ActiveCalls  int    `json:"active_calls"`
	CallsServed  uint64 `json:"calls_served"`
	PacketsIn    uint64 `json:"packets_in"`
	PacketsLost  uint64 `json:"packets_lost"`
	FramesOut    uint64 `json:"frames_out"`
	DecodeErrors uint64 `json:"decode_errors"`
}

// GetStats returns current counters.
func (b *Bridge) GetStats() Stats {
	b.mu.RLock()
	active := len(b.calls)
	b.mu.RUnlock()

	return Stats{
		ActiveCalls:  active,
		CallsServed:  b.served.Load(),
		PacketsIn:    b.packetsIn.Load(),
		PacketsLost:  b.packetsLost.Load(),
		FramesOut:    b.framesOut.Load(),
		DecodeErrors: b.decodeErrs.Load(),
	}
}

// nopMonitor is used when no monitor is wired.
type nopMonitor struct{}

func (nopMonitor) OnCallStarted(relay.CallInfo)        {}
func (nopMonitor) OnCallEnded(relay.CallInfo)          {}
func (nopMonitor) OnTranscript(string, string, string) {}
func (nopMonitor) OnCallEvent(string, string)          {}
