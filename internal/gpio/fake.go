package gpio

import (
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

// Level is one recorded line value.
type Level struct {
	At    time.Time
	Value int
}

// FakeLine is a test double that records the values written to it.
type FakeLine struct {
	mu     sync.Mutex
	clock  clock.Clock
	levels []Level

	// SetError, if set, will be returned by SetValue.
	SetError error
	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeLine creates a FakeLine stamping writes with clk.
func NewFakeLine(clk clock.Clock) *FakeLine {
	return &FakeLine{clock: clk}
}

// SetValue records value.
func (f *FakeLine) SetValue(value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.levels = append(f.levels, Level{At: f.clock.Now(), Value: value})
	return nil
}

// Close marks the line as closed.
func (f *FakeLine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Levels returns the recorded writes.
func (f *FakeLine) Levels() []Level {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Level(nil), f.levels...)
}

// Value returns the last written value, 0 if none.
func (f *FakeLine) Value() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.levels) == 0 {
		return 0
	}
	return f.levels[len(f.levels)-1].Value
}

// Reset clears recorded writes.
func (f *FakeLine) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels = nil
	f.Closed = false
	f.SetError = nil
}
