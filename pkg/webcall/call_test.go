package webcall

import (
	"testing"

	"github.com/pion/rtp"

	"github.com/pfeddy91/better-call-robots-sub000/internal/log"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/agent"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/audio"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/relay"
)

func testCall(t *testing.T) *browserCall {
	t.Helper()
	profile := &agent.Profile{ID: "default", Greeting: "Hello."}
	return newBrowserCall("web-test", profile, log.Component("webcall"))
}

// modelChunk builds n samples of 24 kHz PCM with every sample set to v.
func modelChunk(n int, v int16) []byte {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = v
	}
	return audio.SamplesToBytes(samples)
}

func TestPlaybackQueue(t *testing.T) {
	call := testCall(t)

	// 240 samples at 24 kHz resample up to 480 at the browser rate,
	// half an opus frame. Nothing to send yet.
	call.enqueuePlayback(modelChunk(240, 7))
	if got := call.queuedSamples(); got != 480 {
		t.Fatalf("queuedSamples() = %d, want 480", got)
	}
	if _, ok := call.nextFrame(); ok {
		t.Fatal("nextFrame() produced a frame from half a frame of audio")
	}

	// The second chunk completes the frame.
	call.enqueuePlayback(modelChunk(240, 7))
	frame, ok := call.nextFrame()
	if !ok {
		t.Fatal("nextFrame() = no frame, want a full frame")
	}
	if len(frame) != opusFrameSamples {
		t.Errorf("len(frame) = %d, want %d", len(frame), opusFrameSamples)
	}
	for i, s := range frame {
		if s != 7 {
			t.Fatalf("frame[%d] = %d, want 7", i, s)
		}
	}
	if got := call.queuedSamples(); got != 0 {
		t.Errorf("queuedSamples() after pop = %d, want 0", got)
	}
}

func TestPlaybackTurnDonePadsRunt(t *testing.T) {
	call := testCall(t)

	call.enqueuePlayback(modelChunk(240, 9))
	if _, ok := call.nextFrame(); ok {
		t.Fatal("nextFrame() sent a runt before the turn ended")
	}

	call.markTurnDone()
	frame, ok := call.nextFrame()
	if !ok {
		t.Fatal("nextFrame() = no frame, want the padded runt")
	}
	for i := 0; i < 480; i++ {
		if frame[i] != 9 {
			t.Fatalf("frame[%d] = %d, want 9", i, frame[i])
		}
	}
	for i := 480; i < opusFrameSamples; i++ {
		if frame[i] != 0 {
			t.Fatalf("frame[%d] = %d, want silence padding", i, frame[i])
		}
	}

	// New audio arrives: the flush flag must not leak into the next turn.
	call.enqueuePlayback(modelChunk(240, 9))
	if _, ok := call.nextFrame(); ok {
		t.Fatal("nextFrame() flushed a runt from the next turn")
	}
}

func TestPlaybackClear(t *testing.T) {
	call := testCall(t)

	call.enqueuePlayback(modelChunk(960, 3))
	call.markTurnDone()
	call.clearPlayback()

	if got := call.queuedSamples(); got != 0 {
		t.Errorf("queuedSamples() after clear = %d, want 0", got)
	}
	if _, ok := call.nextFrame(); ok {
		t.Error("nextFrame() produced a frame after clear")
	}

	// markTurnDone on an empty queue must not arm the flush.
	call.markTurnDone()
	call.enqueuePlayback(modelChunk(120, 3))
	if _, ok := call.nextFrame(); ok {
		t.Error("nextFrame() flushed a runt with no turn pending")
	}
}

func TestBrowserCallLifecycle(t *testing.T) {
	call := testCall(t)

	if got := call.info().Status; got != relay.StatusConnecting {
		t.Errorf("initial status = %v, want connecting", got)
	}

	call.setStatus(relay.StatusActive)
	if got := call.info().Status; got != relay.StatusActive {
		t.Errorf("status = %v, want active", got)
	}

	if !call.markEnded(relay.StatusCompleted, "browser disconnected") {
		t.Fatal("markEnded() = false on a live call")
	}
	if call.markEnded(relay.StatusFailed, "second attempt") {
		t.Error("markEnded() succeeded twice")
	}

	info := call.info()
	if info.Status != relay.StatusCompleted {
		t.Errorf("Status = %v, want completed", info.Status)
	}
	if info.EndReason != "browser disconnected" {
		t.Errorf("EndReason = %q, want the first reason", info.EndReason)
	}
	if info.EndedAt == nil {
		t.Error("EndedAt = nil, want set")
	}
	if info.DurationMs < 0 {
		t.Errorf("DurationMs = %d, want >= 0", info.DurationMs)
	}
	if info.SID != "web-test" || info.AgentID != "default" {
		t.Errorf("info = %s/%s, want web-test/default", info.SID, info.AgentID)
	}
}

func TestBrowserCallTranscript(t *testing.T) {
	call := testCall(t)

	call.appendTranscript("user", "hello")
	call.appendTranscript("agent", "hi there")

	entries := call.transcriptCopy()
	if len(entries) != 2 {
		t.Fatalf("len(transcript) = %d, want 2", len(entries))
	}
	if entries[0].Role != "user" || entries[0].Text != "hello" {
		t.Errorf("entries[0] = %+v, want user/hello", entries[0])
	}
	if entries[0].Time.IsZero() {
		t.Error("entry has no timestamp")
	}

	// The copy must not alias the call's own slice.
	entries[1].Text = "mutated"
	if got := call.transcriptCopy()[1].Text; got != "hi there" {
		t.Errorf("transcript[1].Text = %q after mutating the copy", got)
	}

	if got := call.info().TranscriptLen; got != 2 {
		t.Errorf("TranscriptLen = %d, want 2", got)
	}
}

func TestSeqTracker(t *testing.T) {
	packet := func(seq uint16) *rtp.Packet {
		p := &rtp.Packet{}
		p.SequenceNumber = seq
		return p
	}

	var s seqTracker
	if got := s.observe(packet(100)); got != 0 {
		t.Errorf("first packet loss = %d, want 0", got)
	}
	if got := s.observe(packet(101)); got != 0 {
		t.Errorf("consecutive loss = %d, want 0", got)
	}
	if got := s.observe(packet(104)); got != 2 {
		t.Errorf("gap loss = %d, want 2", got)
	}

	// Wraparound is just modular arithmetic.
	s = seqTracker{}
	s.observe(packet(65535))
	if got := s.observe(packet(0)); got != 0 {
		t.Errorf("wraparound loss = %d, want 0", got)
	}
	if got := s.observe(packet(3)); got != 2 {
		t.Errorf("post-wrap gap loss = %d, want 2", got)
	}

	// A late, reordered packet shows up as a huge backwards jump and
	// must not count as loss.
	s = seqTracker{}
	s.observe(packet(500))
	if got := s.observe(packet(498)); got != 0 {
		t.Errorf("reordered packet loss = %d, want 0", got)
	}

	// Jumps beyond the window mean a stream reset, not loss.
	s = seqTracker{}
	s.observe(packet(10))
	if got := s.observe(packet(8000)); got != 0 {
		t.Errorf("reset jump loss = %d, want 0", got)
	}
}
