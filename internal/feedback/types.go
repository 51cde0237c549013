// Package feedback turns gestures and chimes into speech and haptic output.
package feedback

import (
	"errors"
	"time"
)

// ErrUnavailable is returned by a port that is not ready or has failed.
// Callers drop the feedback; a stale announcement is never retried.
var ErrUnavailable = errors.New("feedback: port unavailable")

// Priority controls whether an utterance interrupts current speech.
type Priority string

const (
	// PriorityFlush stops any utterance being spoken and discards the backlog.
	PriorityFlush Priority = "FLUSH"
	// PriorityEnqueue appends after whatever is speaking or queued.
	PriorityEnqueue Priority = "ENQUEUE"
)

// Utterance is one piece of spoken feedback.
type Utterance struct {
	ID       string
	Text     string
	Priority Priority
	// TrackID tags the utterance for the speech engine; empty for none.
	TrackID string
	Pitch   float64
	Rate    float64
}

// HapticKind distinguishes single pulses from waveforms.
type HapticKind string

const (
	HapticOneShot  HapticKind = "ONE_SHOT"
	HapticWaveform HapticKind = "WAVEFORM"
)

const (
	// DefaultAmplitude lets the actuator pick its own strength.
	DefaultAmplitude = -1
	// NoRepeat plays a waveform once.
	NoRepeat = -1
)

// HapticPattern describes a vibration.
//
// For a one-shot, Timings holds the single "on" duration. For a waveform,
// Timings alternate off/on starting with "off", as platform vibrators do:
// [100ms, 50ms] waits 100ms then vibrates for 50ms. Repeat is the index to
// loop back to, or NoRepeat.
type HapticPattern struct {
	Kind      HapticKind
	Timings   []time.Duration
	Amplitude int
	Repeat    int
}

// OneShot returns a single pulse.
func OneShot(d time.Duration, amplitude int) HapticPattern {
	return HapticPattern{
		Kind:      HapticOneShot,
		Timings:   []time.Duration{d},
		Amplitude: amplitude,
		Repeat:    NoRepeat,
	}
}

// Waveform returns an off/on sequence.
func Waveform(repeat int, timings ...time.Duration) HapticPattern {
	return HapticPattern{
		Kind:      HapticWaveform,
		Timings:   timings,
		Amplitude: DefaultAmplitude,
		Repeat:    repeat,
	}
}

// Duration is the length of one pass through the pattern.
func (p HapticPattern) Duration() time.Duration {
	var total time.Duration
	for _, d := range p.Timings {
		total += d
	}
	return total
}

// Cue is the feedback for one trigger: speech first, then the optional haptic.
type Cue struct {
	Utterance Utterance
	Haptic    *HapticPattern
}
