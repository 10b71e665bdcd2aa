package relay

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pfeddy91/better-call-robots-sub000/pkg/audio"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/twilio"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/voice"
)

func TestCallLifecycle(t *testing.T) {
	call := newCall("CA1", "default")

	if call.Status() != StatusConnecting {
		t.Errorf("Status = %v, want connecting", call.Status())
	}

	call.setStatus(StatusActive)
	if call.Status() != StatusActive {
		t.Errorf("Status = %v, want active", call.Status())
	}

	if !call.markEnded(StatusCompleted, "caller hung up") {
		t.Error("first markEnded should succeed")
	}
	if call.markEnded(StatusFailed, "late teardown") {
		t.Error("second markEnded should be a no-op")
	}
	if call.Status() != StatusCompleted {
		t.Errorf("Status = %v, want completed", call.Status())
	}

	info := call.Info()
	if info.EndReason != "caller hung up" {
		t.Errorf("EndReason = %q, want the first reason", info.EndReason)
	}
	if info.EndedAt == nil {
		t.Error("EndedAt should be set after markEnded")
	}
}

func TestCallTranscript(t *testing.T) {
	call := newCall("CA2", "default")
	call.AppendTranscript("user", "hello")
	call.AppendTranscript("agent", "hi there")

	entries := call.Transcript()
	if len(entries) != 2 {
		t.Fatalf("len(Transcript()) = %d, want 2", len(entries))
	}
	if entries[0].Role != "user" || entries[0].Text != "hello" {
		t.Errorf("first entry = %q/%q, want user/hello", entries[0].Role, entries[0].Text)
	}

	// The returned slice is a copy.
	entries[0].Text = "mutated"
	if got := call.Transcript()[0].Text; got != "hello" {
		t.Errorf("transcript entry changed through the copy: %q", got)
	}
}

func TestCallInfoSnapshot(t *testing.T) {
	call := newCall("CA3", "support")
	call.setStreamSID("MZ3")
	call.setSessionID("sess-3")
	call.From = "+15550001"
	call.To = "+15550002"
	call.framesFromCaller.Add(5)
	call.framesToCaller.Add(4)
	call.framesDropped.Add(1)

	info := call.Info()
	if info.SID != "CA3" || info.AgentID != "support" {
		t.Errorf("identity = %s/%s, want CA3/support", info.SID, info.AgentID)
	}
	if info.Direction != DirectionInbound || info.From != "+15550001" || info.To != "+15550002" {
		t.Errorf("addressing = %s %s -> %s, want inbound +15550001 -> +15550002",
			info.Direction, info.From, info.To)
	}
	if info.StreamSID != "MZ3" || info.SessionID != "sess-3" {
		t.Errorf("stream/session = %s/%s", info.StreamSID, info.SessionID)
	}
	if info.FramesFromCaller != 5 || info.FramesToCaller != 4 || info.FramesDropped != 1 {
		t.Errorf("frames = %d/%d/%d, want 5/4/1",
			info.FramesFromCaller, info.FramesToCaller, info.FramesDropped)
	}
	if info.EndedAt != nil {
		t.Error("EndedAt should be nil while the call is live")
	}
	if info.DurationMs < 0 {
		t.Errorf("DurationMs = %d, want >= 0", info.DurationMs)
	}
}

func TestCallHangupWait(t *testing.T) {
	fired := make(chan struct{}, 2)

	call := newCall("CA4", "default")
	call.setHangupWait(time.AfterFunc(30*time.Millisecond, func() { fired <- struct{}{} }))
	call.stopHangupWait()

	// markEnded also cancels a pending forced hangup.
	ended := newCall("CA5", "default")
	ended.setHangupWait(time.AfterFunc(30*time.Millisecond, func() { fired <- struct{}{} }))
	ended.markEnded(StatusFailed, "test")

	select {
	case <-fired:
		t.Error("stopped hangup timer should not fire")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestAudioFrameDroppedWhileBusy(t *testing.T) {
	manager := voice.NewManager(voice.DefaultConfig().WithAPIKey("test-key"))
	t.Cleanup(manager.CloseAll)

	orch, err := New(Config{}, Deps{
		Adapter:   twilio.NewAdapter(),
		Voice:     manager,
		Converter: audio.NewConverter(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	call := newCall("CA20", "default")
	if err := orch.calls.Add(call); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	// While a conversion is in flight, further frames are dropped.
	call.processing.Store(true)
	orch.handleAudioFrame("CA20", make([]byte, 160))
	if got := call.framesDropped.Load(); got != 1 {
		t.Errorf("framesDropped = %d, want 1", got)
	}
	if got := call.framesFromCaller.Load(); got != 1 {
		t.Errorf("framesFromCaller = %d, want 1", got)
	}

	// Once it finishes, the next frame is taken again.
	call.processing.Store(false)
	orch.handleAudioFrame("CA20", make([]byte, 160))

	deadline := time.Now().Add(2 * time.Second)
	for call.processing.Load() {
		if time.Now().After(deadline) {
			t.Fatal("conversion never released the call")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := call.framesDropped.Load(); got != 1 {
		t.Errorf("framesDropped = %d, want still 1", got)
	}
	if got := call.framesFromCaller.Load(); got != 2 {
		t.Errorf("framesFromCaller = %d, want 2", got)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	older := newCall("CA10", "default")
	older.StartedAt = time.Now().Add(-time.Minute)
	newer := newCall("CA11", "default")

	if err := reg.Add(older); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := reg.Add(newer); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := reg.Add(newCall("CA10", "default")); !errors.Is(err, ErrCallExists) {
		t.Errorf("duplicate Add() error = %v, want ErrCallExists", err)
	}

	if got, ok := reg.Get("CA10"); !ok || got != older {
		t.Error("Get should return the registered call")
	}
	if _, ok := reg.Get("CAnope"); ok {
		t.Error("Get should miss for unknown SIDs")
	}
	if reg.Count() != 2 {
		t.Errorf("Count() = %d, want 2", reg.Count())
	}

	active := reg.Active()
	if len(active) != 2 || active[0].SID != "CA10" || active[1].SID != "CA11" {
		t.Errorf("Active() = %+v, want CA10 then CA11", active)
	}

	older.markEnded(StatusCompleted, "done")
	reg.Complete(older)

	if reg.Count() != 1 {
		t.Errorf("Count() after Complete = %d, want 1", reg.Count())
	}
	recent := reg.Recent()
	if len(recent) != 1 || recent[0].SID != "CA10" {
		t.Errorf("Recent() = %+v, want just CA10", recent)
	}
}

func TestRegistryHistoryLimit(t *testing.T) {
	reg := NewRegistry()

	total := historyLimit + 10
	for i := 0; i < total; i++ {
		c := newCall(fmt.Sprintf("CA%03d", i), "default")
		if err := reg.Add(c); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		c.markEnded(StatusCompleted, "done")
		reg.Complete(c)
	}

	recent := reg.Recent()
	if len(recent) != historyLimit {
		t.Fatalf("len(Recent()) = %d, want %d", len(recent), historyLimit)
	}
	if recent[0].SID != fmt.Sprintf("CA%03d", total-1) {
		t.Errorf("Recent()[0].SID = %s, want the newest call", recent[0].SID)
	}
	if recent[len(recent)-1].SID != fmt.Sprintf("CA%03d", total-historyLimit) {
		t.Errorf("oldest kept = %s, want CA%03d", recent[len(recent)-1].SID, total-historyLimit)
	}
}
