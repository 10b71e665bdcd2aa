package audio

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pfeddy91/better-call-robots-sub000/internal/log"
)

// Default sample rates for the relay path: companded telephony audio in,
// linear PCM to the model, a higher-rate linear stream back out.
const (
	DefaultTelephonyRate = 8000
	DefaultModelInRate   = 16000
	DefaultModelOutRate  = 24000
)

// Codec identifies the telephony companding scheme.
type Codec string

// Supported telephony codecs.
const (
	CodecMulaw Codec = "mulaw"
	CodecAlaw  Codec = "alaw"
)

// One in every timingSampleEvery conversions logs its duration.
// Sampling only ever logs; it never changes the output.
const timingSampleEvery = 100

// Sentinel causes for conversion failures.
var (
	ErrEmptyFrame     = errors.New("audio: empty frame")
	ErrOddFrameLength = errors.New("audio: PCM frame length must be even")
	ErrUnknownCodec   = errors.New("audio: unknown codec")
)

// ConversionError reports a failed frame conversion. The original cause
// is preserved for errors.Is checks.
type ConversionError struct {
	Op    string
	Cause error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("audio: %s conversion failed: %v", e.Op, e.Cause)
}

func (e *ConversionError) Unwrap() error {
	return e.Cause
}

// Converter transforms telephony codec frames into the model's linear
// PCM format and back. It keeps no per-frame state, so one instance is
// safe to share across every concurrent call.
type Converter struct {
	codec         Codec
	telephonyRate int
	modelInRate   int
	modelOutRate  int

	conversions atomic.Uint64
	failures    atomic.Uint64
}

// NewConverter returns a converter for mu-law telephony audio with the
// default rate layout (8 kHz in, 16 kHz to model, 24 kHz from model).
func NewConverter() *Converter {
	return NewConverterWithRates(CodecMulaw, DefaultTelephonyRate, DefaultModelInRate, DefaultModelOutRate)
}

// NewConverterWithRates returns a converter for a specific codec and
// rate layout. Providers on this wire protocol negotiate the codec in
// their stream-start message.
func NewConverterWithRates(codec Codec, telephonyRate, modelInRate, modelOutRate int) *Converter {
	return &Converter{
		codec:         codec,
		telephonyRate: telephonyRate,
		modelInRate:   modelInRate,
		modelOutRate:  modelOutRate,
	}
}

// ToModelFormat converts one companded telephony frame to PCM16 LE at
// the model input rate.
func (c *Converter) ToModelFormat(frame []byte) ([]byte, error) {
	start := time.Now()

	if len(frame) == 0 {
		c.failures.Add(1)
		return nil, &ConversionError{Op: "to_model", Cause: ErrEmptyFrame}
	}

	var pcm []int16
	switch c.codec {
	case CodecMulaw:
		pcm = MulawToPCM(frame)
	case CodecAlaw:
		pcm = AlawToPCM(frame)
	default:
		c.failures.Add(1)
		return nil, &ConversionError{Op: "to_model", Cause: fmt.Errorf("%w: %q", ErrUnknownCodec, c.codec)}
	}

	out := SamplesToBytes(Resample(pcm, c.telephonyRate, c.modelInRate))
	c.observe("to_model", len(frame), len(out), start)
	return out, nil
}

// ToTelephonyFormat converts PCM16 LE at the model output rate to one
// companded telephony frame.
func (c *Converter) ToTelephonyFormat(pcm []byte) ([]byte, error) {
	start := time.Now()

	if len(pcm) == 0 {
		c.failures.Add(1)
		return nil, &ConversionError{Op: "to_telephony", Cause: ErrEmptyFrame}
	}
	if len(pcm)%2 != 0 {
		c.failures.Add(1)
		return nil, &ConversionError{Op: "to_telephony", Cause: ErrOddFrameLength}
	}

	samples := Resample(BytesToSamples(pcm), c.modelOutRate, c.telephonyRate)

	var out []byte
	switch c.codec {
	case CodecMulaw:
		out = PCMToMulaw(samples)
	case CodecAlaw:
		out = PCMToAlaw(samples)
	default:
		c.failures.Add(1)
		return nil, &ConversionError{Op: "to_telephony", Cause: fmt.Errorf("%w: %q", ErrUnknownCodec, c.codec)}
	}

	c.observe("to_telephony", len(pcm), len(out), start)
	return out, nil
}

// TelephonyRate returns the companded-side sample rate.
func (c *Converter) TelephonyRate() int {
	return c.telephonyRate
}

// ModelInRate returns the PCM rate sent to the model.
func (c *Converter) ModelInRate() int {
	return c.modelInRate
}

// ModelOutRate returns the PCM rate received from the model.
func (c *Converter) ModelOutRate() int {
	return c.modelOutRate
}

// Stats is a snapshot of converter counters.
type Stats struct {
	Conversions uint64 `json:"conversions"`
	Failures    uint64 `json:"failures"`
}

// Stats returns a snapshot of the running counters.
func (c *Converter) Stats() Stats {
	return Stats{
		Conversions: c.conversions.Load(),
		Failures:    c.failures.Load(),
	}
}

func (c *Converter) observe(op string, inBytes, outBytes int, start time.Time) {
	n := c.conversions.Add(1)
	if n%timingSampleEvery == 0 {
		log.Debug("conversion sampled",
			"op", op,
			"in_bytes", inBytes,
			"out_bytes", outBytes,
			"elapsed", time.Since(start))
	}
}
