package gesture

import (
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

// resolutionBuffer bounds how many resolutions may wait for the consumer.
const resolutionBuffer = 16

// Classifier counts taps inside a timing window and resolves them into a
// gesture when the window closes. A long press resolves immediately and
// cancels any open window.
//
// All methods are safe for concurrent use. Resolutions are delivered in the
// order they resolve. A full resolution channel holds back further
// resolutions but never blocks Tap, State or Counts.
type Classifier struct {
	// emitMu serializes resolution and delivery; it is taken before mu and
	// held across the channel send, while mu is not.
	emitMu sync.Mutex

	mu     sync.Mutex
	clock  clock.Clock
	window time.Duration
	state  State
	counts Counts

	// gen identifies the current window; a timer whose generation no
	// longer matches was superseded and must not resolve.
	gen   uint64
	timer *clock.Timer

	out      chan Event
	done     chan struct{}
	stopOnce sync.Once
	stopped  bool
}

// NewClassifier creates a classifier with the given window. A window <= 0
// uses DefaultWindow.
func NewClassifier(clk clock.Clock, window time.Duration) *Classifier {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Classifier{
		clock:  clk,
		window: window,
		out:    make(chan Event, resolutionBuffer),
		done:   make(chan struct{}),
	}
}

// Resolutions returns the channel resolved gestures are delivered on.
func (c *Classifier) Resolutions() <-chan Event {
	return c.out
}

// Window returns the configured timing window.
func (c *Classifier) Window() time.Duration {
	return c.window
}

// Tap records a tap. The first tap opens a window; later taps are counted
// against the deadline the first one set.
func (c *Classifier) Tap() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}

	c.state.PendingTaps++
	if c.state.WindowActive {
		return
	}

	c.gen++
	gen := c.gen
	c.state.WindowActive = true
	c.state.Deadline = c.clock.Now().Add(c.window)
	c.timer = c.clock.AfterFunc(c.window, func() { c.expire(gen) })
}

// LongPress resolves a long press immediately. Any pending taps are
// discarded and the open window, if any, is cancelled.
func (c *Classifier) LongPress() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.cancelWindow()
	ev, ok := c.resolve(GestureLongPress, 0)
	c.mu.Unlock()

	if ok {
		c.emit(ev)
	}
}

// State returns a copy of the current tap-counting state.
func (c *Classifier) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Counts returns resolution counts since startup.
func (c *Classifier) Counts() Counts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts
}

// Stop cancels any pending window. No resolution is emitted after Stop
// returns and further input is ignored.
func (c *Classifier) Stop() {
	// Unblock a resolution waiting on a full channel before taking the lock.
	c.stopOnce.Do(func() { close(c.done) })

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true
	c.cancelWindow()
}

// expire is the window timer callback.
func (c *Classifier) expire(gen uint64) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if c.stopped || gen != c.gen || !c.state.WindowActive {
		c.mu.Unlock()
		return
	}
	taps := c.state.PendingTaps
	c.timer = nil
	ev, ok := c.resolve(tapGesture(taps), taps)
	c.mu.Unlock()

	if ok {
		c.emit(ev)
	}
}

// cancelWindow stops the window timer and invalidates its generation.
// Caller must hold c.mu.
func (c *Classifier) cancelWindow() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	c.state = State{}
}

// resolve resets the state, counts the gesture and builds its event. NONE
// is counted nowhere and reports false. Caller must hold c.mu.
func (c *Classifier) resolve(g Gesture, taps int) (Event, bool) {
	c.state = State{}

	switch g {
	case GestureSingleTap:
		c.counts.SingleTap++
	case GestureDoubleTap:
		c.counts.DoubleTap++
	case GestureLongPress:
		c.counts.LongPress++
	default:
		return Event{}, false
	}

	return Event{
		Timestamp: c.clock.Now(),
		Gesture:   g,
		Taps:      taps,
	}, true
}

// emit delivers ev, waiting for room on the channel until Stop. Caller must
// hold c.emitMu and must not hold c.mu.
func (c *Classifier) emit(ev Event) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.out <- ev:
	case <-c.done:
	}
}
