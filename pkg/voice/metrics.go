package voice

import (
	"sync"
	"time"
)

// Metrics is a snapshot of one session's traffic counters. Latency is
// measured from connection to the first model audio chunk, which for
// a phone call is the greeting latency the caller hears.
type Metrics struct {
	ConnectedAt    time.Time     `json:"connected_at"`
	FirstAudioTime time.Time     `json:"first_audio_time,omitempty"`
	FirstAudioIn   time.Duration `json:"first_audio_in,omitempty"`

	AudioChunksSent     int64 `json:"audio_chunks_sent"`
	AudioChunksReceived int64 `json:"audio_chunks_received"`
	AudioBytesSent      int64 `json:"audio_bytes_sent"`
	AudioBytesReceived  int64 `json:"audio_bytes_received"`

	Turns         int64 `json:"turns"`
	Interruptions int64 `json:"interruptions"`
}

// MetricsCollector accumulates metrics for one session. It is
// goroutine-safe; the read loop and senders update it concurrently.
type MetricsCollector struct {
	mu      sync.Mutex
	current Metrics
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// MarkConnected records when the session came up.
func (m *MetricsCollector) MarkConnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.ConnectedAt = time.Now()
}

// MarkFirstAudio records the first model audio chunk.
func (m *MetricsCollector) MarkFirstAudio() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.current.FirstAudioTime.IsZero() {
		return
	}
	m.current.FirstAudioTime = time.Now()
	if !m.current.ConnectedAt.IsZero() {
		m.current.FirstAudioIn = m.current.FirstAudioTime.Sub(m.current.ConnectedAt)
	}
}

// AddAudioSent counts one chunk of caller audio sent upstream.
func (m *MetricsCollector) AddAudioSent(bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.AudioChunksSent++
	m.current.AudioBytesSent += int64(bytes)
}

// AddAudioReceived counts one chunk of model audio received.
func (m *MetricsCollector) AddAudioReceived(bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.AudioChunksReceived++
	m.current.AudioBytesReceived += int64(bytes)
}

// MarkTurnComplete counts one finished model turn.
func (m *MetricsCollector) MarkTurnComplete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Turns++
}

// MarkInterrupted counts one caller interruption.
func (m *MetricsCollector) MarkInterrupted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Interruptions++
}

// Current returns the current metrics snapshot.
func (m *MetricsCollector) Current() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}
