package mqtt

import (
	"sync"

	"github.com/sweeney/tapassist/internal/chime"
	"github.com/sweeney/tapassist/internal/gesture"
)

// FakePublisher records published telemetry for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Gestures contains all gesture events that were published.
	Gestures []gesture.Event

	// Chimes contains all chimes that were published.
	Chimes []chime.Boundary

	// Payloads contains the JSON payloads published on the events topic.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// Navigations counts Navigate calls.
	Navigations int

	// PublishError, if set, will be returned by PublishGesture and PublishChime.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// NavigateError, if set, will be returned by Navigate.
	NavigateError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishGesture records the gesture.
func (f *FakePublisher) PublishGesture(ev gesture.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatGesturePayload(ev)
	if err != nil {
		return err
	}
	f.Gestures = append(f.Gestures, ev)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishChime records the chime.
func (f *FakePublisher) PublishChime(b chime.Boundary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatChimePayload(b)
	if err != nil {
		return err
	}
	f.Chimes = append(f.Chimes, b)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Navigate counts the trigger.
func (f *FakePublisher) Navigate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NavigateError != nil {
		return f.NavigateError
	}
	f.Navigations++
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// GestureCount returns the number of published gestures.
func (f *FakePublisher) GestureCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Gestures)
}

// ChimeCount returns the number of published chimes.
func (f *FakePublisher) ChimeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Chimes)
}

// NavigationCount returns the number of Navigate calls.
func (f *FakePublisher) NavigationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Navigations
}

// SystemEventCount returns the number of published system events.
func (f *FakePublisher) SystemEventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.SystemEvents)
}

// LastSystemEvent returns the most recent system event and its payload.
func (f *FakePublisher) LastSystemEvent() (SystemEvent, []byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.SystemEvents)
	if n == 0 {
		return SystemEvent{}, nil, false
	}
	return f.SystemEvents[n-1], f.SystemPayloads[n-1], true
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Gestures = nil
	f.Chimes = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Navigations = 0
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.NavigateError = nil
	f.Connected = false
}
