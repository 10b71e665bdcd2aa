package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"
)

const providerGoogle = "google"

// Google implements Provider using the Cloud Text-to-Speech API.
type Google struct {
	config  *Config
	service *texttospeech.Service
	logger  *slog.Logger
}

// NewGoogle creates a Cloud TTS provider.
func NewGoogle(ctx context.Context, opts ...Option) (*Google, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clientOpts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}

	service, err := texttospeech.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("create service: %w", err))
	}

	return &Google{
		config:  cfg,
		service: service,
		logger:  cfg.Logger.With("component", "tts.google"),
	}, nil
}

// Synthesize converts text to audio, returning the complete buffer
// with the WAV container already stripped.
func (g *Google) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if text == "" {
		return nil, WrapError(providerGoogle, ErrEmptyText)
	}

	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	start := time.Now()

	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: g.config.LanguageCode,
			Name:         g.config.Voice,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding:   string(g.config.Encoding),
			SampleRateHertz: int64(g.config.SampleRate),
			SpeakingRate:    g.config.SpeakingRate,
		},
	}

	resp, err := g.service.Text.Synthesize(req).Context(ctx).Do()
	if err != nil {
		return nil, g.apiError(err)
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("decode audio content: %w", err))
	}
	audio = stripWAV(audio)

	latency := time.Since(start).Milliseconds()
	g.logger.Debug("synthesized announcement",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"voice", g.config.Voice,
	)

	return &AudioResult{
		Audio:     audio,
		Format:    g.outputFormat(),
		CharCount: len(text),
		LatencyMs: latency,
		Duration:  g.estimateDuration(len(audio)),
	}, nil
}

// Health checks API connectivity and credential validity.
func (g *Google) Health(ctx context.Context) error {
	_, err := g.service.Voices.List().LanguageCode(g.config.LanguageCode).Context(ctx).Do()
	if err != nil {
		return g.apiError(err)
	}
	return nil
}

// Close releases resources held by the provider.
func (g *Google) Close() error {
	return nil
}

// apiError maps a transport failure to the package error taxonomy.
func (g *Google) apiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{
			StatusCode: gerr.Code,
			Message:    gerr.Message,
			Provider:   providerGoogle,
		}
	}
	return WrapError(providerGoogle, err)
}

// outputFormat returns the audio format configuration.
func (g *Google) outputFormat() AudioFormat {
	return AudioFormat{
		Encoding:   g.config.Encoding,
		SampleRate: g.config.SampleRate,
		Channels:   1,
		BitDepth:   g.config.Encoding.bitDepth(),
	}
}

// estimateDuration estimates playback duration from byte count.
func (g *Google) estimateDuration(bytes int) time.Duration {
	samples := bytes / g.config.Encoding.BytesPerSample()
	seconds := float64(samples) / float64(g.config.SampleRate)
	return time.Duration(seconds * float64(time.Second))
}

// Verify Google implements Provider at compile time.
var _ Provider = (*Google)(nil)
