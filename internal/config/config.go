// Package config provides service configuration for the relay.
// Flag parsing is done in cmd/relay; this struct is data only.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Default configuration values.
const (
	DefaultPort           = "8080"
	DefaultModel          = "gemini-2.0-flash-exp"
	DefaultVoice          = "Puck"
	DefaultVertexLocation = "us-central1"
	DefaultLogLevel       = "info"
)

// Config holds all configuration for the relay service.
type Config struct {
	// Port is the HTTP listen port.
	Port string

	// PublicHost is the externally reachable host for webhook callbacks
	// and the media stream URL (e.g. an ngrok domain). No scheme.
	PublicHost string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// Gemini Live configuration.
	GoogleAPIKey string
	Model        string
	Voice        string

	// Vertex variant: dial the Live API through Vertex AI with OAuth
	// default credentials instead of an API key.
	UseVertex      bool
	VertexProject  string
	VertexLocation string

	// Twilio REST credentials. Optional for inbound-only operation;
	// outbound calls and server-side hangup require them.
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// AgentDir is an optional directory of JSON profile files, loaded
	// over the built-in profiles.
	AgentDir string
}

// Default returns sensible defaults for the relay configuration.
func Default() Config {
	return Config{
		Port:           DefaultPort,
		LogLevel:       DefaultLogLevel,
		Model:          DefaultModel,
		Voice:          DefaultVoice,
		VertexLocation: DefaultVertexLocation,
	}
}

// FromEnv loads configuration values from environment variables.
// Call this after flag parsing to apply environment overrides.
func (c *Config) FromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.Port = port
	}
	if host := os.Getenv("PUBLIC_HOST"); host != "" {
		c.PublicHost = host
	} else if host := os.Getenv("NGROK_URL"); host != "" {
		// Original deployments exposed the service through ngrok.
		c.PublicHost = host
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		c.LogLevel = lvl
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.GoogleAPIKey = key
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		c.Model = model
	}
	if voice := os.Getenv("GEMINI_VOICE"); voice != "" {
		c.Voice = voice
	}
	if os.Getenv("VERTEX_PROJECT") != "" {
		c.UseVertex = true
		c.VertexProject = os.Getenv("VERTEX_PROJECT")
	}
	if loc := os.Getenv("VERTEX_LOCATION"); loc != "" {
		c.VertexLocation = loc
	}
	if sid := os.Getenv("TWILIO_ACCOUNT_SID"); sid != "" {
		c.TwilioAccountSID = sid
	}
	if token := os.Getenv("TWILIO_AUTH_TOKEN"); token != "" {
		c.TwilioAuthToken = token
	}
	if from := os.Getenv("TWILIO_FROM_NUMBER"); from != "" {
		c.TwilioFromNumber = from
	}
	if dir := os.Getenv("AGENT_DIR"); dir != "" {
		c.AgentDir = dir
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.PublicHost == "" {
		return &ConfigError{Field: "PublicHost", Message: "PUBLIC_HOST (or NGROK_URL) environment variable is required"}
	}
	if c.UseVertex {
		if c.VertexProject == "" {
			return &ConfigError{Field: "VertexProject", Message: "VERTEX_PROJECT environment variable is required for the Vertex variant"}
		}
	} else if c.GoogleAPIKey == "" {
		return &ConfigError{Field: "GoogleAPIKey", Message: "GOOGLE_API_KEY environment variable is required"}
	}
	if c.Model == "" {
		return &ConfigError{Field: "Model", Message: "model must not be empty"}
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// StreamURL returns the wss:// URL the telephony provider should open
// its media stream to.
func (c *Config) StreamURL() string {
	return fmt.Sprintf("wss://%s/ws/audio", c.hostOnly())
}

// TelephonyConfigured reports whether REST credentials are present.
// The health endpoint uses this, it never probes the provider.
func (c *Config) TelephonyConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != ""
}

// AIConfigured reports whether the model session can be dialed.
func (c *Config) AIConfigured() bool {
	if c.UseVertex {
		return c.VertexProject != ""
	}
	return c.GoogleAPIKey != ""
}

// hostOnly strips any scheme the operator pasted into PUBLIC_HOST.
func (c *Config) hostOnly() string {
	host := c.PublicHost
	for _, prefix := range []string{"https://", "http://", "wss://", "ws://"} {
		host = strings.TrimPrefix(host, prefix)
	}
	return strings.TrimSuffix(host, "/")
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
