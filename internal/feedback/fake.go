package feedback

import "sync"

// FakeCall is one recorded port call.
type FakeCall struct {
	// "speak" or "vibrate"
	Method    string
	Utterance Utterance
	Haptic    HapticPattern
}

// FakePort records feedback for test assertions.
type FakePort struct {
	mu    sync.Mutex
	calls []FakeCall

	ready     chan struct{}
	readyOnce sync.Once

	// SpeakError, if set, will be returned by Speak.
	SpeakError error
	// VibrateError, if set, will be returned by Vibrate.
	VibrateError error
	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePort creates a FakePort, optionally already ready.
func NewFakePort(ready bool) *FakePort {
	f := &FakePort{ready: make(chan struct{})}
	if ready {
		f.SetReady()
	}
	return f
}

// SetReady closes the readiness channel.
func (f *FakePort) SetReady() {
	f.readyOnce.Do(func() { close(f.ready) })
}

// Ready returns the readiness channel.
func (f *FakePort) Ready() <-chan struct{} {
	return f.ready
}

// Speak records the utterance.
func (f *FakePort) Speak(u Utterance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SpeakError != nil {
		return f.SpeakError
	}
	f.calls = append(f.calls, FakeCall{Method: "speak", Utterance: u})
	return nil
}

// Vibrate records the pattern.
func (f *FakePort) Vibrate(p HapticPattern) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.VibrateError != nil {
		return f.VibrateError
	}
	f.calls = append(f.calls, FakeCall{Method: "vibrate", Haptic: p})
	return nil
}

// Close marks the port as closed.
func (f *FakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Calls returns a copy of the recorded calls.
func (f *FakePort) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}

// Utterances returns the spoken utterances in order.
func (f *FakePort) Utterances() []Utterance {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Utterance
	for _, c := range f.calls {
		if c.Method == "speak" {
			out = append(out, c.Utterance)
		}
	}
	return out
}

// IsClosed reports whether Close was called.
func (f *FakePort) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Closed
}

// Reset clears recorded calls and errors.
func (f *FakePort) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
	f.SpeakError = nil
	f.VibrateError = nil
	f.Closed = false
}
