package feedback

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/tapassist/internal/chime"
	"github.com/sweeney/tapassist/internal/gesture"
)

// Spoken texts.
const (
	OnboardingText = "Tap anywhere on the screen for instructions. " +
		"Tap twice for navigation. Long press for current time."

	InstructionsText = "To Master the navigation through this App, follow these instructions below. " +
		"Double Tap on the Navigation screen to stop the Navigation or vice versa. " +
		"Right after, speak any query about anything or the environment around you. " +
		"You also can use your earbuds or airpods by double tapping to stop or resume the navigation. " +
		"Long press the screen to know the time. " +
		"Now Double tap on the screen to begin"

	// ToneText is a blank utterance; the engine renders it as a short tone
	// at the requested pitch.
	ToneText = " "
)

// Track ids.
const (
	TrackChime = "chime"
	TrackTone  = "tone"
)

// TimeLayout renders the time as "h:mm a", e.g. "2:05 PM".
const TimeLayout = "3:04 PM"

func newUtterance(text string, p Priority, track string, pitch, rate float64) Utterance {
	return Utterance{
		ID:       uuid.NewString(),
		Text:     text,
		Priority: p,
		TrackID:  track,
		Pitch:    pitch,
		Rate:     rate,
	}
}

// GestureCue returns the cue for a resolved gesture. NONE has no cue.
func GestureCue(ev gesture.Event) (Cue, bool) {
	switch ev.Gesture {
	case gesture.GestureSingleTap:
		h := OneShot(50*time.Millisecond, DefaultAmplitude)
		return Cue{
			Utterance: newUtterance(InstructionsText, PriorityFlush, "", 1.2, 1.0),
			Haptic:    &h,
		}, true
	case gesture.GestureDoubleTap:
		h := Waveform(NoRepeat, 100*time.Millisecond, 50*time.Millisecond)
		return Cue{
			Utterance: newUtterance(ToneText, PriorityFlush, TrackTone, 0.8, 1.0),
			Haptic:    &h,
		}, true
	case gesture.GestureLongPress:
		h := Waveform(NoRepeat, 100*time.Millisecond, 50*time.Millisecond, 100*time.Millisecond)
		return Cue{
			Utterance: newUtterance(TimeText(ev.Timestamp), PriorityFlush, "", 1.0, 1.0),
			Haptic:    &h,
		}, true
	default:
		return Cue{}, false
	}
}

// TimeText is the long-press announcement for t.
func TimeText(t time.Time) string {
	return "The current time is " + t.Local().Format(TimeLayout)
}

// ChimeText is the announcement for a boundary.
func ChimeText(b chime.Boundary) string {
	if b.Half {
		return fmt.Sprintf("It's half past %d", b.Hour)
	}
	return fmt.Sprintf("It's %d o'clock", b.Hour)
}

// ChimeCue returns the cue for a boundary. Chimes never interrupt.
func ChimeCue(b chime.Boundary) Cue {
	return Cue{
		Utterance: newUtterance(ChimeText(b), PriorityEnqueue, TrackChime, 1.0, 1.0),
	}
}

// OnboardingCue is spoken once when the port becomes ready.
func OnboardingCue() Cue {
	return Cue{
		Utterance: newUtterance(OnboardingText, PriorityFlush, "", 1.0, 1.0),
	}
}
