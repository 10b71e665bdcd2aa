package voice

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all tunable parameters for model sessions.
type Config struct {
	// APIKey authenticates against the AI Studio endpoint.
	APIKey string

	// UseVertex switches to the regional Vertex AI endpoint,
	// authenticated with application default credentials.
	UseVertex bool

	// VertexProject is the Google Cloud project (Vertex mode).
	VertexProject string

	// VertexLocation is the Vertex region (default us-central1).
	VertexLocation string

	// Model is the Live API model name, without the "models/" prefix.
	Model string

	// Voice is the prebuilt voice name (Puck, Charon, Kore, Fenrir, Aoede).
	Voice string

	// Language is the BCP-47 speech code, like "en-US". Empty leaves
	// the endpoint's default in place.
	Language string

	// SystemPrompt is the default system instruction. Per-call
	// SessionOptions override it.
	SystemPrompt string

	// BaseURL overrides the default Live API endpoint, for tests.
	BaseURL string

	// InputSampleRate is the caller audio rate sent upstream (Hz).
	InputSampleRate int

	// OutputSampleRate is the model audio rate received (Hz).
	OutputSampleRate int

	// HandshakeTimeout bounds the dial plus setup acknowledgment.
	HandshakeTimeout time.Duration

	// ReadTimeout is the per-read deadline on the socket.
	ReadTimeout time.Duration

	// KeepAliveInterval is how often pings are sent.
	KeepAliveInterval time.Duration

	// StaleAfter is the idle age at which the sweep ends a session.
	StaleAfter time.Duration

	// SweepInterval is how often the manager checks for stale sessions.
	SweepInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults for the AI
// Studio endpoint.
func DefaultConfig() Config {
	return Config{
		VertexLocation: "us-central1",
		Model:          "gemini-2.0-flash-exp",
		Voice:          "Puck",

		InputSampleRate:  16000,
		OutputSampleRate: 24000,

		HandshakeTimeout:  10 * time.Second,
		ReadTimeout:       120 * time.Second,
		KeepAliveInterval: 30 * time.Second,

		StaleAfter:    30 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.UseVertex {
		if c.VertexProject == "" {
			return ErrMissingProject
		}
	} else if c.APIKey == "" {
		return ErrMissingAPIKey
	}

	if c.Model == "" {
		return ErrMissingModel
	}
	return nil
}

// WithAPIKey returns a copy with the API key set.
func (c Config) WithAPIKey(key string) Config {
	c.APIKey = key
	return c
}

// WithVertex returns a copy targeting the Vertex endpoint.
func (c Config) WithVertex(project, location string) Config {
	c.UseVertex = true
	c.VertexProject = project
	if location != "" {
		c.VertexLocation = location
	}
	return c
}

// WithModel returns a copy with the model set.
func (c Config) WithModel(model string) Config {
	c.Model = model
	return c
}

// WithVoice returns a copy with the voice set.
func (c Config) WithVoice(voice string) Config {
	c.Voice = voice
	return c
}

// WithSystemPrompt returns a copy with the system prompt set.
func (c Config) WithSystemPrompt(prompt string) Config {
	c.SystemPrompt = prompt
	return c
}

// qualifiedModel returns the model path for the active endpoint.
func (c Config) qualifiedModel() string {
	if c.UseVertex {
		return fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s",
			c.VertexProject, c.VertexLocation, c.Model)
	}
	if strings.HasPrefix(c.Model, "models/") {
		return c.Model
	}
	return "models/" + c.Model
}

// SessionOptions carries per-call overrides for a new session.
type SessionOptions struct {
	// SystemPrompt overrides Config.SystemPrompt when non-empty.
	SystemPrompt string

	// Voice overrides Config.Voice when non-empty.
	Voice string

	// Language overrides Config.Language when non-empty.
	Language string

	// Model overrides Config.Model when non-empty.
	Model string
}
