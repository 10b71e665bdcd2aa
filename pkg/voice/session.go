package voice

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/oauth2/google"

	"github.com/pfeddy91/better-call-robots-sub000/internal/log"
)

const (
	aiStudioURL  = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
	vertexURLFmt = "wss://%s-aiplatform.googleapis.com/ws/google.cloud.aiplatform.v1beta1.LlmBidiService/BidiGenerateContent"

	cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

	pcmMimeType = "audio/pcm"
)

// Session is one live speech-to-speech link to the model, owned by
// exactly one phone call.
type Session struct {
	// ID uniquely identifies the session.
	ID string

	// CallSID identifies the owning call.
	CallSID string

	config  Config
	logger  *slog.Logger
	metrics *MetricsCollector

	ws   *websocket.Conn
	wsMu sync.Mutex

	mu        sync.RWMutex
	connected bool
	closed    bool
	cancel    context.CancelFunc

	setupDone chan struct{}
	setupOnce sync.Once
	closeOnce sync.Once

	lastActivity atomic.Int64 // unix nanos

	// Callbacks
	onAudio        func(pcm []byte)
	onTranscript   func(role, text string)
	onInterrupted  func()
	onTurnComplete func()
	onClosed       func(err error)
}

// newSession builds an unstarted session. Manager.CreateSession is
// the public entry point.
func newSession(callSID string, cfg Config) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		CallSID:   callSID,
		config:    cfg,
		logger:    log.Component("voice").With("call_sid", callSID),
		metrics:   NewMetricsCollector(),
		setupDone: make(chan struct{}),
	}
	s.touch()
	return s
}

// start dials the Live API, sends the setup message, and blocks until
// the server acknowledges it.
func (s *Session) start(ctx context.Context) error {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.mu.Unlock()

	target, header, err := s.dialTarget(ctx)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: s.config.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return NewConnectionError(
				fmt.Sprintf("dial failed with status %d", resp.StatusCode),
				err,
				resp.StatusCode >= 500,
			)
		}
		return NewConnectionError("dial failed", err, true)
	}

	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	runCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.ws = conn
	s.connected = true
	s.cancel = cancel
	s.mu.Unlock()

	if err := s.sendSetup(); err != nil {
		s.Close()
		return fmt.Errorf("voice: send setup: %w", err)
	}

	go s.readLoop()
	go s.keepAlive(runCtx)

	select {
	case <-s.setupDone:
	case <-time.After(s.config.HandshakeTimeout):
		s.Close()
		return ErrSetupTimeout
	case <-ctx.Done():
		s.Close()
		return ctx.Err()
	}

	s.metrics.MarkConnected()
	s.logger.Info("session ready", "session_id", s.ID, "model", s.config.Model)
	return nil
}

// dialTarget builds the endpoint URL and headers for the configured
// variant.
func (s *Session) dialTarget(ctx context.Context) (string, http.Header, error) {
	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	if s.config.UseVertex {
		target := s.config.BaseURL
		if target == "" {
			target = fmt.Sprintf(vertexURLFmt, s.config.VertexLocation)
		}

		creds, err := google.FindDefaultCredentials(ctx, cloudPlatformScope)
		if err != nil {
			return "", nil, NewConnectionError("load default credentials", err, false)
		}
		tok, err := creds.TokenSource.Token()
		if err != nil {
			return "", nil, NewConnectionError("fetch access token", err, true)
		}
		header.Set("Authorization", "Bearer "+tok.AccessToken)

		return target, header, nil
	}

	base := s.config.BaseURL
	if base == "" {
		base = aiStudioURL
	}
	return base + "?key=" + s.config.APIKey, header, nil
}

// sendSetup sends the initial session configuration.
func (s *Session) sendSetup() error {
	setup := setupMessage{
		Setup: setupPayload{
			Model: s.config.qualifiedModel(),
			GenerationConfig: &generationConfig{
				ResponseModalities: []string{"AUDIO"},
				SpeechConfig: &speechConfig{
					VoiceConfig: &voiceConfig{
						PrebuiltVoiceConfig: &prebuiltVoiceConfig{VoiceName: s.config.Voice},
					},
					LanguageCode: s.config.Language,
				},
			},
		},
	}

	if s.config.SystemPrompt != "" {
		setup.Setup.SystemInstruction = &contentPayload{
			Parts: []textPart{{Text: s.config.SystemPrompt}},
		}
	}

	return s.sendJSON(setup)
}

// SendAudio forwards one chunk of 16kHz PCM16 caller audio upstream.
// Audio arriving after the session closed is dropped without error;
// calls tear down asynchronously and trailing frames are expected.
func (s *Session) SendAudio(pcm []byte) error {
	s.mu.RLock()
	ready := s.connected && !s.closed
	s.mu.RUnlock()

	if !ready {
		return nil
	}

	msg := realtimeInput{
		RealtimeInput: mediaChunks{
			MediaChunks: []mediaChunk{{
				Data:     base64.StdEncoding.EncodeToString(pcm),
				MimeType: pcmMimeType,
			}},
		},
	}

	if err := s.sendJSON(msg); err != nil {
		return NewConnectionError("send audio failed", err, true)
	}

	s.metrics.AddAudioSent(len(pcm))
	s.touch()
	return nil
}

// SendText injects a user text turn. The relay uses it to elicit the
// spoken greeting at call start.
func (s *Session) SendText(text string) error {
	s.mu.RLock()
	ready := s.connected && !s.closed
	s.mu.RUnlock()

	if !ready {
		return ErrNotConnected
	}

	msg := clientContent{
		ClientContent: clientContentPayload{
			Turns: []clientTurn{{
				Role:  "user",
				Parts: []textPart{{Text: text}},
			}},
			TurnComplete: true,
		},
	}

	if err := s.sendJSON(msg); err != nil {
		return NewConnectionError("send text failed", err, true)
	}

	s.touch()
	return nil
}

// IsConnected returns true if the session is up.
func (s *Session) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected && !s.closed
}

// Metrics returns a snapshot of the session's counters.
func (s *Session) Metrics() Metrics {
	return s.metrics.Current()
}

// LastActivity returns the time audio last moved in either direction.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// Close tears the session down. It is idempotent and safe to call
// concurrently.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.connected = false
		cancel := s.cancel
		conn := s.ws
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}

		if conn != nil {
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				deadline,
			)
			err = conn.Close()
		}

		s.logger.Info("session closed", "session_id", s.ID)
	})
	return err
}

// Callback setters

// OnAudio sets the callback for model audio, 24kHz PCM16.
func (s *Session) OnAudio(fn func(pcm []byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAudio = fn
}

// OnTranscript sets the callback for transcript text. role is "user"
// or "agent".
func (s *Session) OnTranscript(fn func(role, text string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTranscript = fn
}

// OnInterrupted sets the callback for caller interruptions.
func (s *Session) OnInterrupted(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onInterrupted = fn
}

// OnTurnComplete sets the callback for completed model turns.
func (s *Session) OnTurnComplete(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTurnComplete = fn
}

// OnClosed sets the callback for unexpected session loss. It does not
// fire for a deliberate Close.
func (s *Session) OnClosed(fn func(err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClosed = fn
}

// readLoop processes incoming server events until the socket dies.
func (s *Session) readLoop() {
	for {
		s.mu.RLock()
		conn := s.ws
		closed := s.closed
		s.mu.RUnlock()

		if closed || conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.RLock()
			closed := s.closed
			s.mu.RUnlock()
			if closed {
				return
			}

			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("session closed by server")
				s.emitClosed(nil)
				return
			}
			s.logger.Error("session read error", "error", err)
			s.emitClosed(NewConnectionError("read failed", err, true))
			return
		}

		ev, err := decodeServerEvent(data)
		if err != nil {
			s.logger.Warn("failed to parse server event", "error", err)
			continue
		}

		s.handleEvent(ev)
	}
}

// handleEvent dispatches one server event.
func (s *Session) handleEvent(ev *serverEvent) {
	switch {
	case len(ev.SetupComplete) > 0:
		s.setupOnce.Do(func() { close(s.setupDone) })
		s.logger.Debug("setup acknowledged")

	case ev.ServerContent != nil:
		s.handleServerContent(ev.ServerContent)

	case len(ev.Interrupted) > 0:
		s.metrics.MarkInterrupted()
		s.emitInterrupted()

	case len(ev.GoAway) > 0:
		s.logger.Warn("server going away")

	default:
		s.logger.Debug("unhandled server event")
	}
}

// handleServerContent processes model audio, transcripts, and turn
// boundaries.
func (s *Session) handleServerContent(content *serverContent) {
	if content.Interrupted {
		s.metrics.MarkInterrupted()
		s.emitInterrupted()
		return
	}

	if content.ModelTurn != nil {
		for _, part := range content.ModelTurn.Parts {
			if part.InlineData != nil && strings.HasPrefix(part.InlineData.MimeType, pcmMimeType) {
				audio, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err != nil {
					s.logger.Warn("failed to decode model audio", "error", err)
					continue
				}
				if len(audio) == 0 {
					continue
				}
				s.metrics.MarkFirstAudio()
				s.metrics.AddAudioReceived(len(audio))
				s.touch()
				s.emitAudio(audio)
			}
			if part.Text != "" {
				s.emitTranscript("agent", part.Text)
			}
		}
	}

	if content.InputTranscription != nil && content.InputTranscription.Text != "" {
		s.emitTranscript("user", content.InputTranscription.Text)
	}
	if content.OutputTranscription != nil && content.OutputTranscription.Text != "" {
		s.emitTranscript("agent", content.OutputTranscription.Text)
	}

	if content.TurnComplete {
		s.metrics.MarkTurnComplete()
		s.emitTurnComplete()
	}
}

// keepAlive pings the server so quiet sessions stay up.
func (s *Session) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(s.config.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.wsMu.Lock()
			conn := s.ws
			var err error
			if conn != nil {
				err = conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second))
			}
			s.wsMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// sendJSON writes one JSON frame to the socket.
func (s *Session) sendJSON(v any) error {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()

	if s.ws == nil {
		return ErrNotConnected
	}
	return s.ws.WriteJSON(v)
}

// Emit helpers

func (s *Session) emitAudio(pcm []byte) {
	s.mu.RLock()
	fn := s.onAudio
	s.mu.RUnlock()
	if fn != nil {
		fn(pcm)
	}
}

func (s *Session) emitTranscript(role, text string) {
	s.mu.RLock()
	fn := s.onTranscript
	s.mu.RUnlock()
	if fn != nil {
		fn(role, text)
	}
}

func (s *Session) emitInterrupted() {
	s.mu.RLock()
	fn := s.onInterrupted
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (s *Session) emitTurnComplete() {
	s.mu.RLock()
	fn := s.onTurnComplete
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (s *Session) emitClosed(err error) {
	s.mu.RLock()
	fn := s.onClosed
	s.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}
