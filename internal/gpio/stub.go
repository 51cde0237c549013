//go:build !linux

package gpio

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Button is not available on non-Linux platforms.
type Button struct{}

// NewButton returns an error on non-Linux platforms.
func NewButton(chipName string, pin int, debounce time.Duration, handler PressHandler) (*Button, error) {
	return nil, errUnsupported
}

// Close is a no-op on non-Linux platforms.
func (b *Button) Close() error {
	return nil
}

// OutputLine is not available on non-Linux platforms.
type OutputLine struct{}

// NewOutputLine returns an error on non-Linux platforms.
func NewOutputLine(chipName string, pin int) (*OutputLine, error) {
	return nil, errUnsupported
}

// SetValue is not implemented on non-Linux platforms.
func (o *OutputLine) SetValue(value int) error {
	return errUnsupported
}

// Close is a no-op on non-Linux platforms.
func (o *OutputLine) Close() error {
	return nil
}

// ReadButton returns an error on non-Linux platforms.
func ReadButton(chipName string, pin int) (bool, error) {
	return false, errUnsupported
}
