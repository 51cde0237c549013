package feedback

import (
	"errors"
	"io"
)

// Vibrator drives a haptic actuator.
type Vibrator interface {
	Vibrate(p HapticPattern) error
}

// Port is the sink for spoken and haptic feedback.
//
// Ports must tolerate calls before they are ready; such calls return
// ErrUnavailable. Errors are informational: the dispatcher logs and drops.
type Port interface {
	Vibrator
	// Speak delivers an utterance honouring its priority.
	Speak(u Utterance) error
	// Ready is closed once the port can accept feedback.
	Ready() <-chan struct{}
	// Close releases the port.
	Close() error
}

// IsReady reports whether p's readiness channel is closed.
func IsReady(p Port) bool {
	select {
	case <-p.Ready():
		return true
	default:
		return false
	}
}

// combined routes haptics to a separate actuator.
type combined struct {
	Port
	haptics Vibrator
}

// Combine returns a port that speaks through speech and vibrates through
// haptics. Readiness follows the speech port.
func Combine(speech Port, haptics Vibrator) Port {
	if haptics == nil {
		return speech
	}
	return &combined{Port: speech, haptics: haptics}
}

func (c *combined) Vibrate(p HapticPattern) error {
	return c.haptics.Vibrate(p)
}

func (c *combined) Close() error {
	var errs []error
	if err := c.Port.Close(); err != nil {
		errs = append(errs, err)
	}
	if closer, ok := c.haptics.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
