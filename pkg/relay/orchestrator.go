// Package relay wires the telephony leg to the model leg. The
// orchestrator owns the call lifecycle: it accepts media streams,
// opens a live session per call, pumps audio both ways, and is the
// only component that ends calls.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pfeddy91/better-call-robots-sub000/internal/log"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/agent"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/audio"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/tts"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/twilio"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/voice"
)

const (
	// apologyMark labels the apology playback so the mark echo tells
	// us when the caller has heard it all.
	apologyMark = "apology-done"

	// announceFrameBytes is one 20ms frame of 8kHz companded audio,
	// the unit synthesized announcements are streamed in.
	announceFrameBytes = 160
)

// Deps are the components the orchestrator drives. Adapter, Voice and
// Converter are required; the rest degrade gracefully when absent.
type Deps struct {
	// Adapter is the telephony media stream endpoint.
	Adapter *twilio.Adapter

	// Rest ends and originates calls through the provider API. Without
	// it, hangups fall back to closing the media stream and outbound
	// calls are unavailable.
	Rest *twilio.RestClient

	// Voice manages live model sessions.
	Voice *voice.Manager

	// Converter transcodes between telephony and model audio.
	Converter *audio.Converter

	// TTS synthesizes the greeting and the apology announcement.
	// Without it, the model speaks the greeting and a failed session
	// hangs up silently.
	TTS tts.Provider

	// Agents resolves answering personas. When nil the built-in
	// profiles are loaded.
	Agents *agent.Registry

	// Monitor observes call lifecycle events. When nil, events are
	// discarded.
	Monitor Monitor
}

// Orchestrator connects phone calls to live model sessions.
type Orchestrator struct {
	config Config
	logger *slog.Logger

	adapter   *twilio.Adapter
	rest      *twilio.RestClient
	voice     *voice.Manager
	converter *audio.Converter
	tts       tts.Provider
	agents    *agent.Registry
	monitor   Monitor

	calls *Registry

	apologyOnce  sync.Once
	apologyAudio []byte

	greetMu   sync.Mutex
	greetings map[string]*greetingClip
}

// greetingClip caches one profile's synthesized greeting.
type greetingClip struct {
	once  sync.Once
	audio []byte
}

// New validates the dependencies and wires the orchestrator into the
// adapter and session manager callbacks.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Adapter == nil {
		return nil, ErrMissingAdapter
	}
	if deps.Voice == nil {
		return nil, ErrMissingVoice
	}
	if deps.Converter == nil {
		return nil, ErrMissingConverter
	}

	def := DefaultConfig()
	if cfg.ApologyText == "" {
		cfg.ApologyText = def.ApologyText
	}
	if cfg.SessionCreateTimeout <= 0 {
		cfg.SessionCreateTimeout = def.SessionCreateTimeout
	}
	if cfg.HangupGrace <= 0 {
		cfg.HangupGrace = def.HangupGrace
	}

	agents := deps.Agents
	if agents == nil {
		agents = agent.NewRegistry()
		if err := agents.LoadBuiltIn(); err != nil {
			return nil, fmt.Errorf("relay: load built-in profiles: %w", err)
		}
	}

	monitor := deps.Monitor
	if monitor == nil {
		monitor = nopMonitor{}
	}

	o := &Orchestrator{
		config:    cfg,
		logger:    log.Component("relay"),
		adapter:   deps.Adapter,
		rest:      deps.Rest,
		voice:     deps.Voice,
		converter: deps.Converter,
		tts:       deps.TTS,
		agents:    agents,
		monitor:   monitor,
		calls:     NewRegistry(),
		greetings: make(map[string]*greetingClip),
	}

	o.adapter.OnStreamStart(o.handleStreamStart)
	o.adapter.OnAudioFrame(o.handleAudioFrame)
	o.adapter.OnStreamStop(o.handleStreamStop)
	o.adapter.OnMark(o.handleMark)
	o.adapter.OnDTMF(o.handleDTMF)
	o.voice.OnStale(o.handleStale)

	return o, nil
}

// handleStreamStart runs when a media stream delivers its start event.
// It creates the call record, starts greeting playback and opens the
// model session; with no synthesized greeting the model speaks it once
// the session is up. On session failure the caller hears the apology
// and the call is hung up.
func (o *Orchestrator) handleStreamStart(ms *twilio.MediaStream, start *twilio.StartPayload) {
	callSID := start.CallSID
	logger := o.logger.With("call_sid", callSID)

	profile, err := o.agents.Resolve(ms.CustomParameter("agentId"))
	if err != nil {
		logger.Error("no agent profile available", "error", err)
		profile = &agent.Profile{ID: "none"}
	}

	call := newCall(callSID, profile.ID)
	call.setStreamSID(start.StreamSID)
	call.From = ms.CustomParameter("from")
	call.To = ms.CustomParameter("to")
	if strings.HasPrefix(ms.CustomParameter("direction"), "outbound") {
		call.Direction = DirectionOutbound
	}
	if err := o.calls.Add(call); err != nil {
		logger.Warn("duplicate stream start ignored")
		return
	}
	o.monitor.OnCallStarted(call.Info())
	logger.Info("call started",
		"agent", profile.ID,
		"direction", call.Direction,
		"stream_sid", start.StreamSID,
	)

	// The synthesized greeting goes out first: the provider plays it
	// while the model session is still connecting, so the caller never
	// waits in silence.
	greeted := o.playGreeting(call, profile)

	ctx, cancel := context.WithTimeout(context.Background(), o.config.SessionCreateTimeout)
	defer cancel()

	sess, err := o.voice.CreateSession(ctx, callSID, voice.SessionOptions{
		SystemPrompt: profile.Instructions(),
		Voice:        profile.Voice,
		Language:     profile.Language,
		Model:        profile.Model,
	})
	if err != nil {
		logger.Error("model session failed", "error", err)
		o.apologizeAndHangUp(call)
		return
	}

	call.setSessionID(sess.ID)
	o.bindSession(call, sess)
	call.setStatus(StatusActive)
	o.monitor.OnCallEvent(callSID, "session ready")

	if !greeted {
		if instr := profile.GreetingInstruction(); instr != "" {
			if err := sess.SendText(instr); err != nil {
				logger.Warn("greeting failed", "error", err)
			}
		}
	}
}

// bindSession points the session's events at this call.
func (o *Orchestrator) bindSession(call *Call, sess *voice.Session) {
	callSID := call.SID

	sess.OnAudio(func(pcm []byte) {
		frame, err := o.converter.ToTelephonyFormat(pcm)
		if err != nil {
			o.logger.Warn("model audio conversion failed", "call_sid", callSID, "error", err)
			return
		}
		if o.adapter.SendAudioFrame(callSID, frame) {
			call.framesToCaller.Add(1)
		}
	})

	sess.OnInterrupted(func() {
		if err := o.adapter.SendClear(callSID); err != nil {
			o.logger.Debug("clear failed", "call_sid", callSID, "error", err)
		}
		o.monitor.OnCallEvent(callSID, "interrupted")
	})

	sess.OnTranscript(func(role, text string) {
		call.AppendTranscript(role, text)
		o.monitor.OnTranscript(callSID, role, text)
	})

	sess.OnTurnComplete(func() {
		o.monitor.OnCallEvent(callSID, "turn complete")
	})

	sess.OnClosed(func(err error) {
		if err != nil {
			o.logger.Warn("model session lost", "call_sid", callSID, "error", err)
			o.endCall(call, StatusFailed, "session lost", true)
			return
		}
		o.endCall(call, StatusCompleted, "session closed", true)
	})
}

// handleAudioFrame forwards one caller frame to the model. At most one
// frame per call is converted at a time; frames arriving while one is
// in flight are dropped, never queued.
func (o *Orchestrator) handleAudioFrame(callSID string, frame []byte) {
	call, ok := o.calls.Get(callSID)
	if !ok {
		return
	}
	call.framesFromCaller.Add(1)

	if !call.processing.CompareAndSwap(false, true) {
		call.framesDropped.Add(1)
		return
	}

	go func() {
		defer call.processing.Store(false)

		pcm, err := o.converter.ToModelFormat(frame)
		if err != nil {
			o.logger.Warn("caller audio conversion failed", "call_sid", callSID, "error", err)
			return
		}
		if err := o.voice.SendAudio(callSID, pcm); err != nil {
			o.logger.Debug("audio forward failed", "call_sid", callSID, "error", err)
		}
	}()
}

// handleStreamStop runs when the caller's media stream ends.
func (o *Orchestrator) handleStreamStop(callSID string) {
	call, ok := o.calls.Get(callSID)
	if !ok {
		return
	}
	o.endCall(call, StatusCompleted, "caller hung up", false)
}

// handleMark fires when the provider has played our marked audio back
// to the caller. Only the apology mark matters: once the caller has
// heard it, the call can be ended.
func (o *Orchestrator) handleMark(callSID, name string) {
	if name != apologyMark {
		return
	}
	call, ok := o.calls.Get(callSID)
	if !ok {
		return
	}
	o.endCall(call, StatusFailed, "session unavailable", true)
}

// handleDTMF surfaces keypad presses to the monitor. The model hears
// the tones in the audio itself.
func (o *Orchestrator) handleDTMF(callSID, digit string) {
	o.logger.Debug("dtmf", "call_sid", callSID, "digit", digit)
	o.monitor.OnCallEvent(callSID, "dtmf "+digit)
}

// handleStale runs when the session manager sweeps an idle session.
// The orchestrator owns the teardown so the phone leg is hung up too.
func (o *Orchestrator) handleStale(callSID string) {
	call, ok := o.calls.Get(callSID)
	if !ok {
		if err := o.voice.EndSession(callSID); err != nil {
			o.logger.Debug("stale session close failed", "call_sid", callSID, "error", err)
		}
		return
	}
	o.endCall(call, StatusCompleted, "idle timeout", true)
}

// playGreeting streams the synthesized greeting to the caller. It
// reports whether anything was played; when it was, the model is not
// asked to repeat itself.
func (o *Orchestrator) playGreeting(call *Call, profile *agent.Profile) bool {
	clip := o.greeting(profile)
	if len(clip) == 0 {
		return false
	}

	o.streamAnnouncement(call.SID, clip)
	call.AppendTranscript("agent", profile.Greeting)
	o.monitor.OnTranscript(call.SID, "agent", profile.Greeting)
	return true
}

// greeting returns the synthesized greeting for the profile, rendering
// it on first use. An empty slice means synthesis is unavailable.
func (o *Orchestrator) greeting(profile *agent.Profile) []byte {
	if o.tts == nil || profile.Greeting == "" {
		return nil
	}

	o.greetMu.Lock()
	clip, ok := o.greetings[profile.ID]
	if !ok {
		clip = &greetingClip{}
		o.greetings[profile.ID] = clip
	}
	o.greetMu.Unlock()

	clip.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.config.SessionCreateTimeout)
		defer cancel()

		res, err := o.tts.Synthesize(ctx, profile.Greeting)
		if err != nil {
			o.logger.Error("greeting synthesis failed", "agent", profile.ID, "error", err)
			return
		}
		clip.audio = res.Audio
		o.logger.Debug("greeting synthesized", "agent", profile.ID, "bytes", len(clip.audio))
	})
	return clip.audio
}

// apologizeAndHangUp plays the apology announcement and schedules the
// hangup. The call ends when the apology mark echoes back, or after
// the grace period if it never does.
func (o *Orchestrator) apologizeAndHangUp(call *Call) {
	call.setStatus(StatusEnding)
	o.monitor.OnCallEvent(call.SID, "apology")

	clip := o.apology()
	if len(clip) == 0 {
		o.endCall(call, StatusFailed, "session unavailable", true)
		return
	}

	o.streamAnnouncement(call.SID, clip)
	if err := o.adapter.SendMark(call.SID, apologyMark); err != nil {
		o.logger.Debug("apology mark failed", "call_sid", call.SID, "error", err)
		o.endCall(call, StatusFailed, "session unavailable", true)
		return
	}

	call.setHangupWait(time.AfterFunc(o.config.HangupGrace, func() {
		o.endCall(call, StatusFailed, "session unavailable", true)
	}))
}

// apology returns the synthesized announcement, rendering it on first
// use. An empty slice means synthesis is unavailable.
func (o *Orchestrator) apology() []byte {
	o.apologyOnce.Do(func() {
		if o.tts == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), o.config.SessionCreateTimeout)
		defer cancel()

		res, err := o.tts.Synthesize(ctx, o.config.ApologyText)
		if err != nil {
			o.logger.Error("apology synthesis failed", "error", err)
			return
		}
		o.apologyAudio = res.Audio
		o.logger.Debug("apology synthesized", "bytes", len(o.apologyAudio))
	})
	return o.apologyAudio
}

// streamAnnouncement writes a synthesized clip to the caller in 20ms
// frames. The provider buffers them and plays at real time.
func (o *Orchestrator) streamAnnouncement(callSID string, clip []byte) {
	for off := 0; off < len(clip); off += announceFrameBytes {
		end := off + announceFrameBytes
		if end > len(clip) {
			end = len(clip)
		}
		if !o.adapter.SendAudioFrame(callSID, clip[off:end]) {
			return
		}
	}
}

// endCall finishes a call exactly once: stop the phone leg if asked,
// close the model session, archive the record and notify the monitor.
func (o *Orchestrator) endCall(call *Call, status CallStatus, reason string, hangup bool) {
	if !call.markEnded(status, reason) {
		return
	}

	if hangup {
		o.hangUp(call.SID)
	}
	if err := o.voice.EndSession(call.SID); err != nil {
		o.logger.Debug("session close failed", "call_sid", call.SID, "error", err)
	}

	o.calls.Complete(call)
	info := call.Info()
	o.monitor.OnCallEnded(info)
	o.logger.Info("call ended",
		"call_sid", call.SID,
		"status", status,
		"reason", reason,
		"duration_ms", info.DurationMs,
		"frames_in", info.FramesFromCaller,
		"frames_out", info.FramesToCaller,
	)
}

// hangUp ends the phone leg, via the provider API when configured,
// otherwise by closing the media stream.
func (o *Orchestrator) hangUp(callSID string) {
	if o.rest != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := o.rest.EndCall(ctx, callSID)
		if err == nil {
			return
		}
		o.logger.Warn("hangup via API failed, closing stream", "call_sid", callSID, "error", err)
	}
	if err := o.adapter.CloseStream(callSID); err != nil && !errors.Is(err, twilio.ErrStreamNotFound) {
		o.logger.Debug("stream close failed", "call_sid", callSID, "error", err)
	}
}

// StartOutboundCall originates a call to the given number. The
// provider fetches TwiML from this service's public URL once the
// callee answers, which starts the media stream like any inbound call.
func (o *Orchestrator) StartOutboundCall(ctx context.Context, to, agentID string) (*twilio.CallResource, error) {
	if o.rest == nil || o.config.PublicHost == "" || o.config.CallerID == "" {
		return nil, ErrOutboundUnavailable
	}
	if _, err := o.agents.Resolve(agentID); err != nil {
		return nil, err
	}

	twimlURL := "https://" + o.config.PublicHost + "/twiml"
	if agentID != "" {
		twimlURL += "?agentId=" + url.QueryEscape(agentID)
	}
	return o.rest.CreateCall(ctx, to, o.config.CallerID, twimlURL)
}

// EndCall terminates a call on request, hanging up the phone leg.
func (o *Orchestrator) EndCall(callSID string) error {
	call, ok := o.calls.Get(callSID)
	if !ok {
		return ErrCallNotFound
	}
	o.endCall(call, StatusCompleted, "operator request", true)
	return nil
}

// CallInfo returns a snapshot of one active call.
func (o *Orchestrator) CallInfo(callSID string) (CallInfo, error) {
	call, ok := o.calls.Get(callSID)
	if !ok {
		return CallInfo{}, ErrCallNotFound
	}
	return call.Info(), nil
}

// Transcript returns the recognized speech of one active call.
func (o *Orchestrator) Transcript(callSID string) ([]TranscriptEntry, error) {
	call, ok := o.calls.Get(callSID)
	if !ok {
		return nil, ErrCallNotFound
	}
	return call.Transcript(), nil
}

// ActiveCalls lists calls currently in progress, oldest first.
func (o *Orchestrator) ActiveCalls() []CallInfo {
	return o.calls.Active()
}

// RecentCalls lists finished calls, newest first.
func (o *Orchestrator) RecentCalls() []CallInfo {
	return o.calls.Recent()
}

// Agents exposes the profile registry in use.
func (o *Orchestrator) Agents() *agent.Registry {
	return o.agents
}

// Shutdown ends every active call. Used on service stop.
func (o *Orchestrator) Shutdown() {
	for _, info := range o.calls.Active() {
		if call, ok := o.calls.Get(info.SID); ok {
			o.endCall(call, StatusCompleted, "service shutdown", true)
		}
	}
}

// RelayStats aggregates the counters of every layer for the stats API.
type RelayStats struct {
	ActiveCalls    int                `json:"active_calls"`
	CompletedCalls int                `json:"completed_calls"`
	Telephony      twilio.Stats       `json:"telephony"`
	Sessions       voice.ManagerStats `json:"sessions"`
	Audio          audio.Stats        `json:"audio"`
}

// GetStats returns current counters across the relay.
func (o *Orchestrator) GetStats() RelayStats {
	return RelayStats{
		ActiveCalls:    o.calls.Count(),
		CompletedCalls: len(o.calls.Recent()),
		Telephony:      o.adapter.GetStats(),
		Sessions:       o.voice.GetStats(),
		Audio:          o.converter.Stats(),
	}
}
