package voice

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pfeddy91/better-call-robots-sub000/internal/log"
)

// Manager owns every live model session, keyed by call SID.
type Manager struct {
	config Config
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	onStale  func(callSID string)

	created atomic.Uint64
	failed  atomic.Uint64
	swept   atomic.Uint64
	dropped atomic.Uint64
}

// NewManager creates a session manager. Validate the config before
// handing it over.
func NewManager(cfg Config) *Manager {
	return &Manager{
		config:   cfg,
		sessions: make(map[string]*Session),
		logger:   log.Component("voice"),
	}
}

// OnStale sets the callback the sweep fires instead of ending a stale
// session itself. The relay uses it to run the full call teardown.
func (m *Manager) OnStale(fn func(callSID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStale = fn
}

// CreateSession dials a new model session for the call and blocks
// until the server acknowledges the setup. At most one session exists
// per call SID.
//
// On failure it returns a *SessionCreationError wrapping the cause;
// the relay answers those calls with a spoken apology and hangs up.
func (m *Manager) CreateSession(ctx context.Context, callSID string, opts SessionOptions) (*Session, error) {
	m.mu.RLock()
	_, exists := m.sessions[callSID]
	m.mu.RUnlock()
	if exists {
		return nil, ErrSessionExists
	}

	cfg := m.config
	if opts.SystemPrompt != "" {
		cfg.SystemPrompt = opts.SystemPrompt
	}
	if opts.Voice != "" {
		cfg.Voice = opts.Voice
	}
	if opts.Language != "" {
		cfg.Language = opts.Language
	}
	if opts.Model != "" {
		cfg.Model = opts.Model
	}

	s := newSession(callSID, cfg)
	if err := s.start(ctx); err != nil {
		m.failed.Add(1)
		m.logger.Error("session creation failed", "call_sid", callSID, "error", err)
		return nil, &SessionCreationError{CallSID: callSID, Cause: err}
	}

	m.mu.Lock()
	if _, exists := m.sessions[callSID]; exists {
		m.mu.Unlock()
		s.Close()
		return nil, ErrSessionExists
	}
	m.sessions[callSID] = s
	active := len(m.sessions)
	m.mu.Unlock()

	m.created.Add(1)
	m.logger.Info("session created", "call_sid", callSID, "session_id", s.ID, "active", active)
	return s, nil
}

// SendAudio forwards caller audio to the call's session. Audio for a
// call with no live session is dropped silently; calls tear down
// asynchronously and trailing frames are expected.
func (m *Manager) SendAudio(callSID string, pcm []byte) error {
	m.mu.RLock()
	s, ok := m.sessions[callSID]
	m.mu.RUnlock()

	if !ok {
		m.dropped.Add(1)
		return nil
	}
	return s.SendAudio(pcm)
}

// Get returns the session for a call.
func (m *Manager) Get(callSID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[callSID]
	return s, ok
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// EndSession closes and forgets the call's session. Ending a call
// with no session is a no-op, so double teardown is harmless.
func (m *Manager) EndSession(callSID string) error {
	m.mu.Lock()
	s, ok := m.sessions[callSID]
	if ok {
		delete(m.sessions, callSID)
	}
	active := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return nil
	}

	err := s.Close()
	m.logger.Info("session ended", "call_sid", callSID, "active", active)
	return err
}

// CloseAll ends every session. Used at shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}
}

// Run sweeps stale sessions until ctx is canceled. A session is stale
// once no audio has moved for Config.StaleAfter; the sweep catches
// calls whose stop event never arrived. This is the manager's only
// periodic task.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep ends sessions idle past the stale cutoff.
func (m *Manager) sweep() {
	cutoff := time.Now().Add(-m.config.StaleAfter)

	m.mu.RLock()
	fn := m.onStale
	var stale []string
	for callSID, s := range m.sessions {
		if s.LastActivity().Before(cutoff) {
			stale = append(stale, callSID)
		}
	}
	m.mu.RUnlock()

	for _, callSID := range stale {
		m.swept.Add(1)
		m.logger.Warn("sweeping stale session", "call_sid", callSID)
		if fn != nil {
			fn(callSID)
			continue
		}
		if err := m.EndSession(callSID); err != nil {
			m.logger.Error("failed to end stale session", "call_sid", callSID, "error", err)
		}
	}
}

// ManagerStats contains manager counters.
type ManagerStats struct {
	ActiveSessions  int    `json:"active_sessions"`
	SessionsCreated uint64 `json:"sessions_created"`
	SessionsFailed  uint64 `json:"sessions_failed"`
	SessionsSwept   uint64 `json:"sessions_swept"`
	FramesDropped   uint64 `json:"frames_dropped"`
}

// GetStats returns a snapshot of the manager counters.
func (m *Manager) GetStats() ManagerStats {
	return ManagerStats{
		ActiveSessions:  m.Count(),
		SessionsCreated: m.created.Load(),
		SessionsFailed:  m.failed.Load(),
		SessionsSwept:   m.swept.Load(),
		FramesDropped:   m.dropped.Load(),
	}
}
