//go:build linux

package gpio

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Button watches a push button wired between a pin and ground.
type Button struct {
	chip    *gpiocdev.Chip
	line    *gpiocdev.Line
	handler PressHandler
}

// NewButton requests pin as an active-low input with pull-up and edge
// detection. Edges are debounced by the kernel and passed to handler.
func NewButton(chipName string, pin int, debounce time.Duration, handler PressHandler) (*Button, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	b := &Button{chip: chip, handler: handler}
	line, err := chip.RequestLine(pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.AsActiveLow,
		gpiocdev.WithBothEdges,
		gpiocdev.WithDebounce(debounce),
		gpiocdev.WithEventHandler(b.handle))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request button pin %d: %w", pin, err)
	}
	b.line = line
	return b, nil
}

// handle runs on gpiocdev's event goroutine. Active-low: a press is a
// logical rising edge.
func (b *Button) handle(evt gpiocdev.LineEvent) {
	switch evt.Type {
	case gpiocdev.LineEventRisingEdge:
		b.handler.Press()
	case gpiocdev.LineEventFallingEdge:
		b.handler.Release()
	}
}

// Close releases the button line.
// Reconfigures the pin to a plain input with pull-down (matching Pi boot
// defaults) before closing.
func (b *Button) Close() error {
	var errs []error
	if b.line != nil {
		if err := b.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure button pin: %w", err))
		}
		if err := b.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button pin: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// OutputLine is a motor driver line.
type OutputLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewOutputLine requests pin as an output, initially inactive.
func NewOutputLine(chipName string, pin int) (*OutputLine, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request motor pin %d: %w", pin, err)
	}
	return &OutputLine{chip: chip, line: line}, nil
}

// SetValue drives the line.
func (o *OutputLine) SetValue(value int) error {
	return o.line.SetValue(value)
}

// Close turns the motor off and releases the line.
func (o *OutputLine) Close() error {
	var errs []error
	if err := o.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("reset motor pin: %w", err))
	}
	if err := o.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close motor pin: %w", err))
	}
	if err := o.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// ReadButton returns whether the button on pin is currently pressed.
func ReadButton(chipName string, pin int) (bool, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return false, fmt.Errorf("open gpio chip: %w", err)
	}
	defer chip.Close()

	line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.AsActiveLow)
	if err != nil {
		return false, fmt.Errorf("request button pin %d: %w", pin, err)
	}
	defer line.Close()

	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("read button pin: %w", err)
	}
	return v == 1, nil
}
