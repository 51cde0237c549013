// Package gpio connects a push button and a vibration motor on the Linux
// GPIO character device. The button feeds raw presses to an input tracker;
// the motor plays haptic patterns. Fakes allow testing without hardware.
package gpio

import "time"

// Defaults (BCM numbering)
const (
	DefaultChip      = "gpiochip0"
	DefaultButtonPin = 17
	// DefaultMotorPin of 0 disables the motor.
	DefaultMotorPin = 0
	DefaultDebounce = 10 * time.Millisecond
)

// Line is a single output line.
type Line interface {
	// SetValue drives the line: 1 = active, 0 = inactive.
	SetValue(value int) error
	// Close releases the line.
	Close() error
}

// PressHandler receives debounced button edges.
type PressHandler interface {
	Press()
	Release()
}
