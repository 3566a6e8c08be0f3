// Package audio exposes the playback surface the command protocol drives.
// The real codec/amplifier driver lives behind the Player interface; this
// package provides a PCM16 sink implementation and the tone synth used for
// beeps.
package audio

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync"
)

// DefaultSampleRate matches the device speaker configuration.
const DefaultSampleRate = 16000

// toneAmplitude keeps beeps well below full scale.
const toneAmplitude = 0.3

// Sentinel errors.
var (
	// ErrNoSamples is returned when a playback request carries no audio.
	ErrNoSamples = errors.New("audio: no samples")
)

// Player is what the command protocol invokes for audio commands.
type Player interface {
	// PlayTone plays a sine tone. Blocks until the tone is queued.
	PlayTone(freqHz, durationMs int) error

	// PlayPCM16Mono plays 16-bit signed little-endian mono samples at
	// the configured sample rate.
	PlayPCM16Mono(samples []int16) error
}

// Sink is a Player that writes little-endian PCM16 frames to an io.Writer
// (an I2S pipe, a file, or a test buffer). Writes are serialized so
// concurrent commands cannot interleave frames.
type Sink struct {
	// W receives the raw PCM stream. Required.
	W io.Writer

	// SampleRate defaults to DefaultSampleRate.
	SampleRate int

	mu sync.Mutex
}

func (s *Sink) rate() int {
	if s.SampleRate > 0 {
		return s.SampleRate
	}
	return DefaultSampleRate
}

// PlayTone synthesizes a sine at freqHz for durationMs and plays it.
func (s *Sink) PlayTone(freqHz, durationMs int) error {
	if freqHz <= 0 || durationMs <= 0 {
		return ErrNoSamples
	}
	return s.PlayPCM16Mono(Tone(freqHz, durationMs, s.rate()))
}

// PlayPCM16Mono writes the samples to the sink.
func (s *Sink) PlayPCM16Mono(samples []int16) error {
	if len(samples) == 0 {
		return ErrNoSamples
	}
	buf := make([]byte, 2*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(v))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.W.Write(buf)
	return err
}

// Tone synthesizes a sine wave as PCM16 samples.
func Tone(freqHz, durationMs, sampleRate int) []int16 {
	n := sampleRate * durationMs / 1000
	out := make([]int16, n)
	step := 2 * math.Pi * float64(freqHz) / float64(sampleRate)
	for i := range out {
		out[i] = int16(toneAmplitude * math.MaxInt16 * math.Sin(step*float64(i)))
	}
	return out
}

// Nop is a Player that discards everything. Used when no speaker is wired.
type Nop struct{}

func (Nop) PlayTone(int, int) error     { return nil }
func (Nop) PlayPCM16Mono([]int16) error { return nil }
