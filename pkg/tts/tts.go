// Package tts synthesizes the relay's canned announcements.
//
// The relay speaks to callers through the model for everything except
// the few fixed lines it must be able to say when the model is not
// available, such as the apology played before hanging up a call whose
// session could not be created. Those lines are synthesized here,
// directly in the telephony wire format (8 kHz G.711), so they can be
// framed and sent without passing through the audio converter.
//
// Example usage:
//
//	provider, _ := tts.NewGoogle(ctx,
//	    tts.WithAPIKey(os.Getenv("GOOGLE_API_KEY")),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "Sorry, I cannot take your call right now.")
//	// result.Audio contains raw μ-law bytes, no container
package tts

import (
	"context"
	"time"
)

// Provider defines the announcement synthesizer interface.
type Provider interface {
	// Synthesize converts text to audio, returning the complete
	// audio buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks provider connectivity and credential validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult represents a complete synthesis result.
type AudioResult struct {
	// Audio contains the raw audio data in the specified format,
	// with any container stripped.
	Audio []byte

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// Duration is the estimated playback duration.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the synthesis round trip in milliseconds.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	// Encoding specifies the audio codec.
	Encoding Encoding

	// SampleRate in Hz.
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int

	// BitDepth per sample before companding.
	BitDepth int
}

// Encoding represents audio encoding types.
// The values are the Cloud TTS AudioEncoding enum names.
type Encoding string

const (
	// EncodingMulaw is 8-bit G.711 μ-law, the telephony wire format.
	EncodingMulaw Encoding = "MULAW"

	// EncodingAlaw is 8-bit G.711 A-law.
	EncodingAlaw Encoding = "ALAW"

	// EncodingLinear16 is 16-bit little-endian PCM.
	EncodingLinear16 Encoding = "LINEAR16"
)

// BytesPerSample returns the wire size of one sample.
func (e Encoding) BytesPerSample() int {
	if e == EncodingLinear16 {
		return 2
	}
	return 1
}

// bitDepth returns the decoded sample width for format metadata.
func (e Encoding) bitDepth() int {
	if e == EncodingLinear16 {
		return 16
	}
	return 8
}
