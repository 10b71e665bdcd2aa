package webcall

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"gopkg.in/hraban/opus.v2"

	"github.com/pfeddy91/better-call-robots-sub000/pkg/agent"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/audio"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/relay"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/voice"
)

const (
	// browserRate is WebRTC's opus clock rate.
	browserRate = 48000

	// opusFrameSamples is one 20ms frame at the browser rate.
	opusFrameSamples = 960

	// opusFrameDuration paces playback at real time.
	opusFrameDuration = 20 * time.Millisecond

	// maxOpusFrameSamples fits the longest opus frame, 120ms at 48 kHz.
	maxOpusFrameSamples = 5760

	// maxOpusPacket is the largest packet a single opus frame encodes to.
	maxOpusPacket = 1275

	// seqReorderWindow bounds how far a sequence number jump still
	// counts as loss rather than late reordering.
	seqReorderWindow = 1000
)

// browserCall is one WebRTC caller bridged onto a live model session.
type browserCall struct {
	id      string
	profile *agent.Profile
	started time.Time
	logger  *slog.Logger

	pc      *webrtc.PeerConnection
	track   *webrtc.TrackLocalStaticSample
	session *voice.Session
	encoder *opus.Encoder

	// outQueue holds 48 kHz samples waiting to be paced onto the
	// track. turnDone lets the pacer flush a trailing partial frame.
	outMu    sync.Mutex
	outQueue []int16
	turnDone bool

	// done stops the playback pacer.
	done chan struct{}

	// greeted guards the greeting, which is sent once the browser's
	// media path is actually up.
	greeted sync.Once

	mu         sync.Mutex
	status     relay.CallStatus
	endReason  string
	endedAt    time.Time
	transcript []relay.TranscriptEntry

	packetsIn   atomic.Uint64
	packetsLost atomic.Uint64
	framesOut   atomic.Uint64
	decodeErrs  atomic.Uint64
}

func newBrowserCall(id string, profile *agent.Profile, logger *slog.Logger) *browserCall {
	return &browserCall{
		id:      id,
		profile: profile,
		started: time.Now(),
		logger:  logger,
		status:  relay.StatusConnecting,
		done:    make(chan struct{}),
	}
}

// setStatus moves the call to a new state.
func (bc *browserCall) setStatus(s relay.CallStatus) {
	bc.mu.Lock()
	bc.status = s
	bc.mu.Unlock()
}

// markEnded records the terminal state exactly once. It returns false
// when the call had already ended, which keeps teardown idempotent.
func (bc *browserCall) markEnded(status relay.CallStatus, reason string) bool {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if bc.status == relay.StatusCompleted || bc.status == relay.StatusFailed {
		return false
	}
	bc.status = status
	bc.endReason = reason
	bc.endedAt = time.Now()
	return true
}

// greet sends the greeting instruction once the media path is up, so
// the caller is there to hear the reply.
func (bc *browserCall) greet() {
	bc.greeted.Do(func() {
		instr := bc.profile.GreetingInstruction()
		if instr == "" {
			return
		}
		if err := bc.session.SendText(instr); err != nil {
			bc.logger.Warn("greeting failed", "error", err)
		}
	})
}

// appendTranscript records one fragment of recognized speech.
func (bc *browserCall) appendTranscript(role, text string) {
	bc.mu.Lock()
	bc.transcript = append(bc.transcript, relay.TranscriptEntry{
		Role: role,
		Text: text,
		Time: time.Now(),
	})
	bc.mu.Unlock()
}

// transcriptCopy returns the recognized speech so far.
func (bc *browserCall) transcriptCopy() []relay.TranscriptEntry {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	out := make([]relay.TranscriptEntry, len(bc.transcript))
	copy(out, bc.transcript)
	return out
}

// enqueuePlayback resamples one model audio chunk up to the browser
// rate and queues it for pacing.
func (bc *browserCall) enqueuePlayback(pcm []byte) {
	samples := audio.Resample(audio.BytesToSamples(pcm), audio.DefaultModelOutRate, browserRate)

	bc.outMu.Lock()
	bc.outQueue = append(bc.outQueue, samples...)
	bc.turnDone = false
	bc.outMu.Unlock()
}

// clearPlayback drops queued audio when the caller interrupts.
func (bc *browserCall) clearPlayback() {
	bc.outMu.Lock()
	bc.outQueue = nil
	bc.turnDone = false
	bc.outMu.Unlock()
}

// markTurnDone lets the pacer flush the trailing partial frame instead
// of waiting for audio that will not come.
func (bc *browserCall) markTurnDone() {
	bc.outMu.Lock()
	if len(bc.outQueue) > 0 {
		bc.turnDone = true
	}
	bc.outMu.Unlock()
}

// nextFrame pops one opus frame's worth of samples, zero padded when
// the turn is over and only a runt remains. The second return is false
// when there is nothing to send yet.
func (bc *browserCall) nextFrame() ([]int16, bool) {
	bc.outMu.Lock()
	defer bc.outMu.Unlock()

	n := len(bc.outQueue)
	if n == 0 || (n < opusFrameSamples && !bc.turnDone) {
		return nil, false
	}

	frame := make([]int16, opusFrameSamples)
	took := copy(frame, bc.outQueue)
	if took == len(bc.outQueue) {
		bc.outQueue = nil
		bc.turnDone = false
	} else {
		bc.outQueue = bc.outQueue[took:]
	}
	return frame, true
}

// queuedSamples reports how much playback is waiting, for tests and
// stats.
func (bc *browserCall) queuedSamples() int {
	bc.outMu.Lock()
	defer bc.outMu.Unlock()
	return len(bc.outQueue)
}

// info returns a snapshot shaped like a phone call's, so the monitor
// and the API treat both legs alike.
func (bc *browserCall) info() relay.CallInfo {
	bc.mu.Lock()
	status := bc.status
	endedAt := bc.endedAt
	endReason := bc.endReason
	transcriptLen := len(bc.transcript)
	bc.mu.Unlock()

	info := relay.CallInfo{
		SID:              bc.id,
		AgentID:          bc.profile.ID,
		Direction:        relay.DirectionInbound,
		From:             "browser",
		Status:           status,
		StartedAt:        bc.started,
		EndReason:        endReason,
		FramesFromCaller: bc.packetsIn.Load(),
		FramesToCaller:   bc.framesOut.Load(),
		TranscriptLen:    transcriptLen,
	}
	if bc.session != nil {
		info.SessionID = bc.session.ID
	}

	if !endedAt.IsZero() {
		info.EndedAt = &endedAt
		info.DurationMs = endedAt.Sub(bc.started).Milliseconds()
	} else {
		info.DurationMs = time.Since(bc.started).Milliseconds()
	}
	return info
}

// seqTracker watches the RTP sequence numbers of the browser's audio
// track for gaps.
type seqTracker struct {
	started bool
	last    uint16
}

// observe returns how many packets went missing before this one.
// Sequence arithmetic is modular, so wraparound needs no special case.
func (s *seqTracker) observe(pkt *rtp.Packet) uint64 {
	if !s.started {
		s.started = true
		s.last = pkt.SequenceNumber
		return 0
	}

	gap := pkt.SequenceNumber - s.last
	s.last = pkt.SequenceNumber
	if gap > 1 && gap < seqReorderWindow {
		return uint64(gap - 1)
	}
	return 0
}
