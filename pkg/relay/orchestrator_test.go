package relay_test

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/pfeddy91/better-call-robots-sub000/pkg/audio"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/relay"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/tts"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/twilio"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/voice"
)

// fakeLive stands in for the Live API endpoint. Setup is acknowledged,
// caller audio gets a short model turn back, text turns get an agent
// transcription.
type fakeLive struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	// interruptOnAudio answers caller audio with an interruption
	// instead of a model turn.
	interruptOnAudio bool

	lastClient atomic.Value // string
}

func newFakeLive(t *testing.T) *fakeLive {
	t.Helper()
	f := &fakeLive{}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeLive) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeLive) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg := string(data)

		switch {
		case strings.Contains(msg, `"setup"`):
			conn.WriteMessage(websocket.TextMessage, []byte(`{"setupComplete":{}}`))

		case strings.Contains(msg, `"realtime_input"`):
			if f.interruptOnAudio {
				conn.WriteMessage(websocket.TextMessage, []byte(`{"serverContent":{"interrupted":true}}`))
				continue
			}
			pcm := base64.StdEncoding.EncodeToString(make([]byte, 480))
			reply := `{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"` + pcm + `"}}]}}}`
			conn.WriteMessage(websocket.TextMessage, []byte(reply))
			conn.WriteMessage(websocket.TextMessage, []byte(`{"serverContent":{"turnComplete":true}}`))

		case strings.Contains(msg, `"client_content"`):
			f.lastClient.Store(msg)
			conn.WriteMessage(websocket.TextMessage, []byte(`{"serverContent":{"outputTranscription":{"text":"greeting spoken"}}}`))
			conn.WriteMessage(websocket.TextMessage, []byte(`{"serverContent":{"turnComplete":true}}`))
		}
	}
}

// recordingMonitor captures lifecycle events for assertions.
type recordingMonitor struct {
	mu          sync.Mutex
	events      []string
	transcripts []string

	ended chan relay.CallInfo
}

func newRecordingMonitor() *recordingMonitor {
	return &recordingMonitor{ended: make(chan relay.CallInfo, 4)}
}

func (m *recordingMonitor) OnCallStarted(info relay.CallInfo) {}

func (m *recordingMonitor) OnCallEnded(info relay.CallInfo) {
	m.ended <- info
}

func (m *recordingMonitor) OnTranscript(callSID, role, text string) {
	m.mu.Lock()
	m.transcripts = append(m.transcripts, role+": "+text)
	m.mu.Unlock()
}

func (m *recordingMonitor) OnCallEvent(callSID, event string) {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
}

func (m *recordingMonitor) sawEvent(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e == name {
			return true
		}
	}
	return false
}

func (m *recordingMonitor) waitEnded(t *testing.T) relay.CallInfo {
	t.Helper()
	select {
	case info := <-m.ended:
		return info
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for call end")
		return relay.CallInfo{}
	}
}

// wsCaller plays the telephony side: it dials the media stream
// endpoint and speaks the provider's wire protocol.
type wsCaller struct {
	t    *testing.T
	conn *websocket.Conn

	media  chan *twilio.Envelope
	marks  chan *twilio.Envelope
	clears chan struct{}
	closed chan struct{}
}

func dialCaller(t *testing.T, port int) *wsCaller {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://localhost:%d/ws/audio", port), nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}

	c := &wsCaller{
		t:      t,
		conn:   conn,
		media:  make(chan *twilio.Envelope, 256),
		marks:  make(chan *twilio.Envelope, 8),
		clears: make(chan struct{}, 8),
		closed: make(chan struct{}),
	}
	t.Cleanup(func() { conn.Close() })
	go c.readLoop()
	return c
}

func (c *wsCaller) readLoop() {
	defer close(c.closed)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := twilio.ParseEnvelope(data)
		if err != nil {
			continue
		}
		switch env.Event {
		case twilio.EventMedia:
			c.media <- env
		case twilio.EventMark:
			c.marks <- env
		case twilio.EventClear:
			c.clears <- struct{}{}
		}
	}
}

func (c *wsCaller) send(env *twilio.Envelope) {
	c.t.Helper()
	data, err := env.Bytes()
	if err != nil {
		c.t.Fatalf("envelope encode error: %v", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.t.Fatalf("write error: %v", err)
	}
}

func (c *wsCaller) begin(callSID, streamSID, agentID string) {
	c.send(&twilio.Envelope{Event: twilio.EventConnected, Protocol: "Call", Version: "1.0.0"})

	params := map[string]string{
		"from":      "+15550111",
		"to":        "+15550222",
		"direction": "inbound",
	}
	if agentID != "" {
		params["agentId"] = agentID
	}
	c.send(&twilio.Envelope{
		Event:     twilio.EventStart,
		StreamSID: streamSID,
		Start: &twilio.StartPayload{
			AccountSID:       "ACtest",
			StreamSID:        streamSID,
			CallSID:          callSID,
			Tracks:           []string{"inbound"},
			MediaFormat:      twilio.MediaFormat{Encoding: twilio.EncodingMulaw, SampleRate: 8000, Channels: 1},
			CustomParameters: params,
		},
	})
}

func (c *wsCaller) speak(streamSID string, n int) {
	c.send(&twilio.Envelope{
		Event:     twilio.EventMedia,
		StreamSID: streamSID,
		Media: &twilio.MediaPayload{
			Track:   twilio.TrackInbound,
			Payload: base64.StdEncoding.EncodeToString(make([]byte, n)),
		},
	})
}

func (c *wsCaller) hangUp(streamSID, callSID string) {
	c.send(&twilio.Envelope{
		Event:     twilio.EventStop,
		StreamSID: streamSID,
		Stop:      &twilio.StopPayload{AccountSID: "ACtest", CallSID: callSID},
	})
}

func (c *wsCaller) waitMedia(timeout time.Duration) *twilio.Envelope {
	c.t.Helper()
	select {
	case env := <-c.media:
		return env
	case <-time.After(timeout):
		c.t.Fatal("timed out waiting for media")
		return nil
	}
}

func (c *wsCaller) waitMark(timeout time.Duration) *twilio.Envelope {
	c.t.Helper()
	select {
	case env := <-c.marks:
		return env
	case <-time.After(timeout):
		c.t.Fatal("timed out waiting for mark")
		return nil
	}
}

func (c *wsCaller) waitClosed(timeout time.Duration) {
	c.t.Helper()
	select {
	case <-c.closed:
	case <-time.After(timeout):
		c.t.Fatal("timed out waiting for stream close")
	}
}

// drainMedia empties the buffered media envelopes and reports how many
// frames and payload bytes arrived.
func (c *wsCaller) drainMedia() (frames, bytes int) {
	for {
		select {
		case env := <-c.media:
			payload, err := env.Media.DecodePayload()
			if err != nil {
				c.t.Fatalf("DecodePayload() error = %v", err)
			}
			frames++
			bytes += len(payload)
		default:
			return frames, bytes
		}
	}
}

func startAdapter(t *testing.T, port int) *twilio.Adapter {
	t.Helper()
	adapter := twilio.NewAdapter()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	adapter.RegisterRoutes(app)

	go app.Listen(fmt.Sprintf(":%d", port))
	t.Cleanup(func() { app.Shutdown() })
	time.Sleep(100 * time.Millisecond)
	return adapter
}

func liveManager(t *testing.T, liveURL string) *voice.Manager {
	t.Helper()
	cfg := voice.DefaultConfig().WithAPIKey("test-key")
	cfg.BaseURL = liveURL
	cfg.HandshakeTimeout = 2 * time.Second
	mgr := voice.NewManager(cfg)
	t.Cleanup(mgr.CloseAll)
	return mgr
}

func TestRelayCallFlow(t *testing.T) {
	live := newFakeLive(t)
	adapter := startAdapter(t, 19090)
	manager := liveManager(t, live.url())
	monitor := newRecordingMonitor()

	orch, err := relay.New(relay.Config{}, relay.Deps{
		Adapter:   adapter,
		Voice:     manager,
		Converter: audio.NewConverter(),
		Monitor:   monitor,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	caller := dialCaller(t, 19090)
	caller.begin("CArelay1", "MZrelay1", "default")
	time.Sleep(300 * time.Millisecond)

	active := orch.ActiveCalls()
	if len(active) != 1 {
		t.Fatalf("ActiveCalls() = %d, want 1", len(active))
	}
	if active[0].SID != "CArelay1" || active[0].AgentID != "default" {
		t.Errorf("call = %s/%s, want CArelay1/default", active[0].SID, active[0].AgentID)
	}
	if active[0].Direction != relay.DirectionInbound || active[0].From != "+15550111" || active[0].To != "+15550222" {
		t.Errorf("addressing = %s %s -> %s, want inbound +15550111 -> +15550222",
			active[0].Direction, active[0].From, active[0].To)
	}
	if active[0].Status != relay.StatusActive {
		t.Errorf("Status = %v, want active", active[0].Status)
	}
	if !monitor.sawEvent("session ready") {
		t.Error("monitor never saw the session ready event")
	}

	// The greeting goes to the model as a text turn.
	greeting, _ := live.lastClient.Load().(string)
	if !strings.Contains(greeting, "voice assistant powered by Twilio") {
		t.Errorf("greeting turn missing welcome text: %s", greeting)
	}

	// One caller frame in, one model turn back out on the stream.
	// 160 bytes of 8kHz μ-law become 480 bytes of 24kHz model PCM,
	// which come back as 80 μ-law bytes.
	caller.speak("MZrelay1", 160)
	env := caller.waitMedia(2 * time.Second)
	if env.StreamSID != "MZrelay1" {
		t.Errorf("StreamSID = %s, want MZrelay1", env.StreamSID)
	}
	payload, err := env.Media.DecodePayload()
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if len(payload) != 80 {
		t.Errorf("len(payload) = %d, want 80", len(payload))
	}

	time.Sleep(100 * time.Millisecond)

	info, err := orch.CallInfo("CArelay1")
	if err != nil {
		t.Fatalf("CallInfo() error = %v", err)
	}
	if info.FramesFromCaller != 1 || info.FramesToCaller != 1 {
		t.Errorf("frames = %d in / %d out, want 1 / 1", info.FramesFromCaller, info.FramesToCaller)
	}

	entries, err := orch.Transcript("CArelay1")
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if len(entries) == 0 || entries[0].Role != "agent" || entries[0].Text != "greeting spoken" {
		t.Errorf("transcript = %+v, want the greeting turn first", entries)
	}

	stats := orch.GetStats()
	if stats.ActiveCalls != 1 {
		t.Errorf("stats.ActiveCalls = %d, want 1", stats.ActiveCalls)
	}
	if stats.Sessions.ActiveSessions != 1 {
		t.Errorf("stats.Sessions.ActiveSessions = %d, want 1", stats.Sessions.ActiveSessions)
	}
	if stats.Audio.Conversions < 2 {
		t.Errorf("stats.Audio.Conversions = %d, want at least 2", stats.Audio.Conversions)
	}

	// Caller hangs up: the call completes and the session goes away.
	caller.hangUp("MZrelay1", "CArelay1")

	end := monitor.waitEnded(t)
	if end.Status != relay.StatusCompleted {
		t.Errorf("end status = %v, want completed", end.Status)
	}
	if end.EndReason != "caller hung up" {
		t.Errorf("end reason = %q, want caller hung up", end.EndReason)
	}

	if got := len(orch.ActiveCalls()); got != 0 {
		t.Errorf("ActiveCalls() after hangup = %d, want 0", got)
	}
	if manager.Count() != 0 {
		t.Errorf("session Count() = %d, want 0", manager.Count())
	}
	recent := orch.RecentCalls()
	if len(recent) != 1 || recent[0].SID != "CArelay1" {
		t.Errorf("RecentCalls() = %+v, want just CArelay1", recent)
	}
}

func TestRelaySessionFailureApology(t *testing.T) {
	adapter := startAdapter(t, 19091)

	cfg := voice.DefaultConfig().WithAPIKey("test-key")
	cfg.BaseURL = "ws://127.0.0.1:1"
	cfg.HandshakeTimeout = 500 * time.Millisecond
	manager := voice.NewManager(cfg)

	mock := tts.NewMock()
	monitor := newRecordingMonitor()
	apology := "Sorry, try again later."

	orch, err := relay.New(relay.Config{
		ApologyText: apology,
		HangupGrace: 5 * time.Second,
	}, relay.Deps{
		Adapter:   adapter,
		Voice:     manager,
		Converter: audio.NewConverter(),
		TTS:       mock,
		Monitor:   monitor,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	caller := dialCaller(t, 19091)
	caller.begin("CArelay2", "MZrelay2", "")

	// The synthesized greeting plays first. Session creation then
	// fails, so the apology streams out behind it in 20ms frames,
	// followed by the apology mark.
	mark := caller.waitMark(3 * time.Second)
	if mark.Mark == nil || mark.Mark.Name == "" {
		t.Fatalf("mark envelope has no name: %+v", mark)
	}

	profile, err := orch.Agents().Resolve("")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	frames, bytes := caller.drainMedia()
	wantBytes := (len(profile.Greeting) + len(apology)) * 160
	if bytes != wantBytes {
		t.Errorf("announcement bytes = %d, want %d", bytes, wantBytes)
	}
	if frames != wantBytes/160 {
		t.Errorf("announcement frames = %d, want %d", frames, wantBytes/160)
	}
	if got := mock.CallCount("Synthesize"); got != 2 {
		t.Errorf("Synthesize calls = %d, want greeting plus apology", got)
	}
	if !monitor.sawEvent("apology") {
		t.Error("monitor never saw the apology event")
	}

	// The provider echoes the mark once the caller heard it all; the
	// relay then hangs up. Without REST credentials that means
	// closing the stream.
	caller.send(mark)

	end := monitor.waitEnded(t)
	if end.Status != relay.StatusFailed {
		t.Errorf("end status = %v, want failed", end.Status)
	}
	if end.EndReason != "session unavailable" {
		t.Errorf("end reason = %q, want session unavailable", end.EndReason)
	}
	caller.waitClosed(2 * time.Second)

	if got := manager.GetStats().SessionsFailed; got != 1 {
		t.Errorf("SessionsFailed = %d, want 1", got)
	}
	if got := len(orch.ActiveCalls()); got != 0 {
		t.Errorf("ActiveCalls() = %d, want 0", got)
	}
}

func TestRelayGreetingPlayback(t *testing.T) {
	live := newFakeLive(t)
	adapter := startAdapter(t, 19094)
	manager := liveManager(t, live.url())
	mock := tts.NewMock()
	monitor := newRecordingMonitor()

	orch, err := relay.New(relay.Config{}, relay.Deps{
		Adapter:   adapter,
		Voice:     manager,
		Converter: audio.NewConverter(),
		TTS:       mock,
		Monitor:   monitor,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	caller := dialCaller(t, 19094)
	caller.begin("CArelay5", "MZrelay5", "support")
	time.Sleep(300 * time.Millisecond)

	profile, err := orch.Agents().Resolve("support")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// The whole greeting reaches the caller as 20ms frames.
	frames, bytes := caller.drainMedia()
	wantBytes := len(profile.Greeting) * 160
	if bytes != wantBytes || frames != wantBytes/160 {
		t.Errorf("greeting playback = %d frames / %d bytes, want %d / %d",
			frames, bytes, wantBytes/160, wantBytes)
	}

	// The model is not asked to repeat what was already played.
	if got, _ := live.lastClient.Load().(string); got != "" {
		t.Errorf("unexpected greeting turn sent to the model: %s", got)
	}

	entries, err := orch.Transcript("CArelay5")
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if len(entries) == 0 || entries[0].Role != "agent" || entries[0].Text != profile.Greeting {
		t.Errorf("transcript = %+v, want the spoken greeting first", entries)
	}

	// A second call on the same profile replays the cached clip.
	caller2 := dialCaller(t, 19094)
	caller2.begin("CArelay6", "MZrelay6", "support")
	time.Sleep(300 * time.Millisecond)

	if got := mock.CallCount("Synthesize"); got != 1 {
		t.Errorf("Synthesize calls = %d, want 1 across both calls", got)
	}
	if frames2, _ := caller2.drainMedia(); frames2 != wantBytes/160 {
		t.Errorf("cached greeting frames = %d, want %d", frames2, wantBytes/160)
	}
}

func TestRelayInterruptionClearsPlayback(t *testing.T) {
	live := newFakeLive(t)
	live.interruptOnAudio = true
	adapter := startAdapter(t, 19092)
	manager := liveManager(t, live.url())
	monitor := newRecordingMonitor()

	orch, err := relay.New(relay.Config{}, relay.Deps{
		Adapter:   adapter,
		Voice:     manager,
		Converter: audio.NewConverter(),
		Monitor:   monitor,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	caller := dialCaller(t, 19092)
	caller.begin("CArelay3", "MZrelay3", "support")
	time.Sleep(300 * time.Millisecond)

	active := orch.ActiveCalls()
	if len(active) != 1 || active[0].AgentID != "support" {
		t.Fatalf("ActiveCalls() = %+v, want one call on the support agent", active)
	}

	// A barge-in from the model side clears buffered playback.
	caller.speak("MZrelay3", 160)

	select {
	case <-caller.clears:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for clear")
	}

	time.Sleep(100 * time.Millisecond)
	if !monitor.sawEvent("interrupted") {
		t.Error("monitor never saw the interruption")
	}
}

func TestRelayEndCallViaAPI(t *testing.T) {
	var restPath atomic.Value
	var restStatus atomic.Value
	restSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		restPath.Store(r.URL.Path)
		restStatus.Store(r.FormValue("Status"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sid": "CArelay4", "status": "completed"}`))
	}))
	t.Cleanup(restSrv.Close)

	rest, err := twilio.NewRestClient("ACtest", "token")
	if err != nil {
		t.Fatalf("NewRestClient() error = %v", err)
	}
	rest.BaseURL = restSrv.URL

	live := newFakeLive(t)
	adapter := startAdapter(t, 19093)
	manager := liveManager(t, live.url())
	monitor := newRecordingMonitor()

	orch, err := relay.New(relay.Config{}, relay.Deps{
		Adapter:   adapter,
		Rest:      rest,
		Voice:     manager,
		Converter: audio.NewConverter(),
		Monitor:   monitor,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	caller := dialCaller(t, 19093)
	caller.begin("CArelay4", "MZrelay4", "default")
	time.Sleep(300 * time.Millisecond)

	if err := orch.EndCall("CArelay4"); err != nil {
		t.Fatalf("EndCall() error = %v", err)
	}

	end := monitor.waitEnded(t)
	if end.EndReason != "operator request" {
		t.Errorf("end reason = %q, want operator request", end.EndReason)
	}
	if path, _ := restPath.Load().(string); !strings.Contains(path, "/Calls/CArelay4.json") {
		t.Errorf("REST path = %q, want the call's endpoint", path)
	}
	if status, _ := restStatus.Load().(string); status != "completed" {
		t.Errorf("REST Status form = %q, want completed", status)
	}
	if manager.Count() != 0 {
		t.Errorf("session Count() = %d, want 0", manager.Count())
	}

	if err := orch.EndCall("CAnope"); !errors.Is(err, relay.ErrCallNotFound) {
		t.Errorf("EndCall(unknown) error = %v, want ErrCallNotFound", err)
	}
}

func TestRelayStartOutboundCall(t *testing.T) {
	var gotTo, gotFrom, gotURL atomic.Value
	restSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotTo.Store(r.FormValue("To"))
		gotFrom.Store(r.FormValue("From"))
		gotURL.Store(r.FormValue("Url"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sid": "CAout1", "status": "queued", "to": "+15550123", "from": "+15550100", "direction": "outbound-api"}`))
	}))
	t.Cleanup(restSrv.Close)

	rest, err := twilio.NewRestClient("ACtest", "token")
	if err != nil {
		t.Fatalf("NewRestClient() error = %v", err)
	}
	rest.BaseURL = restSrv.URL

	cfg := voice.DefaultConfig().WithAPIKey("test-key")
	cfg.BaseURL = "ws://127.0.0.1:1"
	manager := voice.NewManager(cfg)

	orch, err := relay.New(relay.Config{
		PublicHost: "relay.example.com",
		CallerID:   "+15550100",
	}, relay.Deps{
		Adapter:   twilio.NewAdapter(),
		Rest:      rest,
		Voice:     manager,
		Converter: audio.NewConverter(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := orch.StartOutboundCall(context.Background(), "+15550123", "support")
	if err != nil {
		t.Fatalf("StartOutboundCall() error = %v", err)
	}
	if res.SID != "CAout1" {
		t.Errorf("SID = %s, want CAout1", res.SID)
	}
	if to, _ := gotTo.Load().(string); to != "+15550123" {
		t.Errorf("To = %q, want +15550123", to)
	}
	if from, _ := gotFrom.Load().(string); from != "+15550100" {
		t.Errorf("From = %q, want +15550100", from)
	}
	if u, _ := gotURL.Load().(string); u != "https://relay.example.com/twiml?agentId=support" {
		t.Errorf("Url = %q, want the agent's TwiML callback", u)
	}

	// Without REST credentials or addressing, outbound is refused.
	plain, err := relay.New(relay.Config{}, relay.Deps{
		Adapter:   twilio.NewAdapter(),
		Voice:     manager,
		Converter: audio.NewConverter(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := plain.StartOutboundCall(context.Background(), "+15550123", ""); !errors.Is(err, relay.ErrOutboundUnavailable) {
		t.Errorf("StartOutboundCall() error = %v, want ErrOutboundUnavailable", err)
	}
}

func TestRelayNewValidation(t *testing.T) {
	adapter := twilio.NewAdapter()
	manager := voice.NewManager(voice.DefaultConfig())

	if _, err := relay.New(relay.Config{}, relay.Deps{}); !errors.Is(err, relay.ErrMissingAdapter) {
		t.Errorf("New() error = %v, want ErrMissingAdapter", err)
	}
	if _, err := relay.New(relay.Config{}, relay.Deps{Adapter: adapter}); !errors.Is(err, relay.ErrMissingVoice) {
		t.Errorf("New() error = %v, want ErrMissingVoice", err)
	}
	if _, err := relay.New(relay.Config{}, relay.Deps{Adapter: adapter, Voice: manager}); !errors.Is(err, relay.ErrMissingConverter) {
		t.Errorf("New() error = %v, want ErrMissingConverter", err)
	}
}
