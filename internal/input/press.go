package input

import (
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

// DefaultLongPress is how long a press must be held to count as a long press.
const DefaultLongPress = 500 * time.Millisecond

// PressTracker turns press/release edges into taps and long presses.
// A release before the threshold is a tap. Holding past the threshold fires
// a long press at once; the eventual release is then ignored.
type PressTracker struct {
	mu        sync.Mutex
	clock     clock.Clock
	sink      Sink
	threshold time.Duration

	pressed bool
	// longFired is set once the held press has resolved as a long press.
	longFired bool
	gen       uint64
	timer     *clock.Timer
}

// NewPressTracker creates a tracker. A threshold <= 0 uses DefaultLongPress.
func NewPressTracker(clk clock.Clock, sink Sink, threshold time.Duration) *PressTracker {
	if threshold <= 0 {
		threshold = DefaultLongPress
	}
	return &PressTracker{
		clock:     clk,
		sink:      sink,
		threshold: threshold,
	}
}

// Press records the start of a touch. Repeated presses without a release
// are ignored.
func (p *PressTracker) Press() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pressed {
		return
	}
	p.pressed = true
	p.longFired = false
	p.gen++
	gen := p.gen
	p.timer = p.clock.AfterFunc(p.threshold, func() { p.held(gen) })
}

// Release records the end of a touch.
func (p *PressTracker) Release() {
	p.mu.Lock()
	if !p.pressed {
		p.mu.Unlock()
		return
	}
	p.pressed = false
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	tap := !p.longFired
	p.longFired = false
	p.mu.Unlock()

	if tap {
		p.sink.Tap()
	}
}

// Pressed reports whether a touch is in progress.
func (p *PressTracker) Pressed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pressed
}

// Stop cancels a pending long-press timer.
func (p *PressTracker) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	p.pressed = false
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *PressTracker) held(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || !p.pressed {
		p.mu.Unlock()
		return
	}
	p.longFired = true
	p.timer = nil
	p.mu.Unlock()

	p.sink.LongPress()
}
