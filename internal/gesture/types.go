// Package gesture resolves raw tap and long-press input into gestures.
// It has no knowledge of feedback, transport or hardware. Time comes from an
// injected clock so every window can be driven by a mock in tests.
package gesture

import "time"

// DefaultWindow is how long taps are collected before a resolution.
const DefaultWindow = 500 * time.Millisecond

// Gesture is the outcome of one resolution.
type Gesture string

const (
	GestureNone      Gesture = "NONE"
	GestureSingleTap Gesture = "SINGLE_TAP"
	GestureDoubleTap Gesture = "DOUBLE_TAP"
	GestureLongPress Gesture = "LONG_PRESS"
)

// Event is a resolved gesture, emitted exactly once per resolution.
type Event struct {
	Timestamp time.Time
	Gesture   Gesture
	// Taps counted in the window (0 for long press)
	Taps int
}

// State is the tap-counting state of a classifier.
type State struct {
	PendingTaps  int
	WindowActive bool
	// Zero when no window is active
	Deadline time.Time
}

// Counts tracks resolutions since startup.
type Counts struct {
	SingleTap int
	DoubleTap int
	LongPress int
}

// tapGesture maps a tap count to its gesture. Three or more taps collapse
// into a double tap: the window is single-shot and extra taps are absorbed.
func tapGesture(taps int) Gesture {
	switch {
	case taps <= 0:
		return GestureNone
	case taps == 1:
		return GestureSingleTap
	default:
		return GestureDoubleTap
	}
}
