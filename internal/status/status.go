// Package status provides a thread-safe status tracker for the tapassist daemon.
// It is read by the HTTP handlers and the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/facebookgo/clock"

	"github.com/sweeney/tapassist/internal/chime"
	"github.com/sweeney/tapassist/internal/feedback"
	"github.com/sweeney/tapassist/internal/gesture"
)

// Config contains daemon configuration for display.
type Config struct {
	WindowMs       int64
	LongPressMs    int64
	PollIntervalMs int64
	ChimeEnabled   bool
	Backend        string
	Broker         string
	HTTPAddr       string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Gestures      gesture.Counts
	Classifier    gesture.State
	LastGesture   *gesture.Event
	Chimes        int
	LastChime     *chime.Boundary
	Navigations   int
	Feedback      feedback.Stats
	FeedbackReady bool
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu    sync.RWMutex
	clock clock.Clock
	snap  Snapshot
}

// NewTracker creates a Tracker started now on clk.
func NewTracker(clk clock.Clock, cfg Config) *Tracker {
	return &Tracker{
		clock: clk,
		snap: Snapshot{
			StartTime: clk.Now(),
			Config:    cfg,
		},
	}
}

// UpdateGestures sets the classifier counts and tap state.
func (t *Tracker) UpdateGestures(counts gesture.Counts, state gesture.State) {
	t.mu.Lock()
	t.snap.Gestures = counts
	t.snap.Classifier = state
	t.mu.Unlock()
}

// RecordGesture stores the most recent resolution.
func (t *Tracker) RecordGesture(ev gesture.Event) {
	t.mu.Lock()
	t.snap.LastGesture = &ev
	t.mu.Unlock()
}

// RecordChime counts a fired chime and stores it as the most recent.
func (t *Tracker) RecordChime(b chime.Boundary) {
	t.mu.Lock()
	t.snap.Chimes++
	t.snap.LastChime = &b
	t.mu.Unlock()
}

// RecordNavigation counts a navigation trigger.
func (t *Tracker) RecordNavigation() {
	t.mu.Lock()
	t.snap.Navigations++
	t.mu.Unlock()
}

// SetFeedback sets the dispatcher stats and port readiness.
func (t *Tracker) SetFeedback(stats feedback.Stats, ready bool) {
	t.mu.Lock()
	t.snap.Feedback = stats
	t.snap.FeedbackReady = ready
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.clock.Now()
	return s
}
