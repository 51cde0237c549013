package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/tapassist/internal/chime"
	"github.com/sweeney/tapassist/internal/feedback"
	"github.com/sweeney/tapassist/internal/gesture"
	"github.com/sweeney/tapassist/internal/metrics"
	"github.com/sweeney/tapassist/internal/mqtt"
	"github.com/sweeney/tapassist/internal/status"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func mockAt(t time.Time) *clock.Mock {
	m := clock.NewMock()
	m.Add(t.Sub(m.Now()))
	return m
}

func local(h, m, s int) time.Time {
	return time.Date(2026, 1, 1, h, m, s, 0, time.Local)
}

type fakeJournal struct {
	mu     sync.Mutex
	events []gesture.Event
}

func (j *fakeJournal) RecordGesture(_ context.Context, ev gesture.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, ev)
	return nil
}

func (j *fakeJournal) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.events)
}

type fakeLedger struct {
	claimed bool
}

func (l fakeLedger) Claim(context.Context, chime.Boundary) (bool, error) {
	return l.claimed, nil
}

// gatedPort holds every utterance but onboarding until the gate opens.
type gatedPort struct {
	*feedback.FakePort
	gate    chan struct{}
	waiting atomic.Int32
}

func newGatedPort() *gatedPort {
	return &gatedPort{FakePort: feedback.NewFakePort(true), gate: make(chan struct{})}
}

func (p *gatedPort) Speak(u feedback.Utterance) error {
	if u.Text != feedback.OnboardingText {
		p.waiting.Add(1)
		<-p.gate
	}
	return p.FakePort.Speak(u)
}

type harness struct {
	clock   *clock.Mock
	port    *feedback.FakePort
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	metrics *metrics.Metrics
	journal *fakeJournal
	engine  *Engine
}

func newHarness(t *testing.T, at time.Time, ready bool, opts Options, mutate ...func(*Deps)) *harness {
	t.Helper()

	h := &harness{
		clock:   mockAt(at),
		port:    feedback.NewFakePort(ready),
		pub:     mqtt.NewFakePublisher(),
		metrics: metrics.New(),
		journal: &fakeJournal{},
	}
	h.tracker = status.NewTracker(h.clock, status.Config{WindowMs: 500})

	deps := Deps{
		Clock:      h.clock,
		Port:       h.port,
		Tracker:    h.tracker,
		Metrics:    h.metrics,
		Journal:    h.journal,
		Publisher:  h.pub,
		Connection: h.pub,
		Navigator:  h.pub,
	}
	for _, fn := range mutate {
		fn(&deps)
	}

	h.engine = New(deps, opts)
	require.NoError(t, h.engine.Start(context.Background()))
	t.Cleanup(h.engine.Stop)
	return h
}

func (h *harness) texts() []string {
	var out []string
	for _, u := range h.port.Utterances() {
		out = append(out, u.Text)
	}
	return out
}

func (h *harness) waitOnboarded(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(h.port.Utterances()) == 1
	}, waitFor, tick)
	assert.Equal(t, feedback.OnboardingText, h.port.Utterances()[0].Text)
}

func TestOnboardingSpokenOnceWhenReady(t *testing.T) {
	h := newHarness(t, local(10, 5, 0), false, Options{})

	assert.Never(t, func() bool { return len(h.port.Utterances()) > 0 }, 50*time.Millisecond, tick)

	h.port.SetReady()
	h.waitOnboarded(t)

	h.engine.Tap()
	h.clock.Add(600 * time.Millisecond)

	require.Eventually(t, func() bool { return len(h.port.Utterances()) == 2 }, waitFor, tick)
	assert.Equal(t, feedback.InstructionsText, h.port.Utterances()[1].Text)
	assert.Equal(t, 1, strings.Count(strings.Join(h.texts(), "|"), feedback.OnboardingText))
}

func TestSingleTap(t *testing.T) {
	h := newHarness(t, local(10, 5, 0), true, Options{})
	h.waitOnboarded(t)

	h.engine.Tap()
	h.clock.Add(600 * time.Millisecond)

	require.Eventually(t, func() bool {
		return h.tracker.Snapshot().Gestures.SingleTap == 1
	}, waitFor, tick)

	calls := h.port.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "speak", calls[1].Method)
	assert.Equal(t, feedback.InstructionsText, calls[1].Utterance.Text)
	assert.Equal(t, feedback.PriorityFlush, calls[1].Utterance.Priority)
	assert.Equal(t, "vibrate", calls[2].Method)
	assert.Equal(t, feedback.HapticOneShot, calls[2].Haptic.Kind)

	assert.Equal(t, 1, h.pub.GestureCount())
	assert.Equal(t, 1, h.journal.count())
	assert.Equal(t, 0, h.pub.NavigationCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.GesturesTotal.WithLabelValues("SINGLE_TAP")))

	snap := h.tracker.Snapshot()
	require.NotNil(t, snap.LastGesture)
	assert.Equal(t, gesture.GestureSingleTap, snap.LastGesture.Gesture)
	assert.False(t, snap.Classifier.WindowActive)
	assert.True(t, snap.FeedbackReady)
}

func TestDoubleTapNavigatesOnce(t *testing.T) {
	h := newHarness(t, local(10, 5, 0), true, Options{})
	h.waitOnboarded(t)

	h.engine.Tap()
	h.clock.Add(200 * time.Millisecond)
	h.engine.Tap()
	h.clock.Add(400 * time.Millisecond)

	require.Eventually(t, func() bool { return h.pub.NavigationCount() == 1 }, waitFor, tick)
	require.Eventually(t, func() bool {
		return h.tracker.Snapshot().Navigations == 1
	}, waitFor, tick)

	us := h.port.Utterances()
	require.Len(t, us, 2)
	assert.Equal(t, feedback.ToneText, us[1].Text)
	assert.Equal(t, feedback.TrackTone, us[1].TrackID)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.NavigationsTotal))
}

func TestTripleTapCollapsesToDoubleTap(t *testing.T) {
	h := newHarness(t, local(10, 5, 0), true, Options{})
	h.waitOnboarded(t)

	for i := 0; i < 3; i++ {
		h.engine.Tap()
		h.clock.Add(100 * time.Millisecond)
	}
	h.clock.Add(300 * time.Millisecond)

	require.Eventually(t, func() bool {
		return h.tracker.Snapshot().Gestures.DoubleTap == 1
	}, waitFor, tick)
	assert.Equal(t, 1, h.pub.NavigationCount())
	assert.Equal(t, 0, h.tracker.Snapshot().Gestures.SingleTap)
}

func TestLongPressCancelsPendingTaps(t *testing.T) {
	h := newHarness(t, local(14, 5, 0), true, Options{})
	h.waitOnboarded(t)

	h.engine.Tap()
	h.clock.Add(100 * time.Millisecond)
	h.engine.LongPress()

	require.Eventually(t, func() bool { return len(h.port.Utterances()) == 2 }, waitFor, tick)
	assert.True(t, strings.HasPrefix(h.port.Utterances()[1].Text, "The current time is "))

	h.clock.Add(time.Second)
	assert.Never(t, func() bool {
		return h.tracker.Snapshot().Gestures.SingleTap > 0
	}, 50*time.Millisecond, tick)
	assert.Equal(t, 1, h.tracker.Snapshot().Gestures.LongPress)
}

func TestFeedbackDroppedBeforeReady(t *testing.T) {
	h := newHarness(t, local(10, 5, 0), false, Options{})

	h.engine.Tap()
	h.clock.Add(600 * time.Millisecond)

	require.Eventually(t, func() bool {
		return h.tracker.Snapshot().Gestures.SingleTap == 1
	}, waitFor, tick)

	assert.Empty(t, h.port.Calls())
	stats := h.engine.Stats()
	assert.Equal(t, 1, stats.SpeechDropped)
	assert.Equal(t, 1, stats.HapticsDropped)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.FeedbackDroppedTotal.WithLabelValues("speech", "not_ready")))

	// Telemetry still flows with no feedback port.
	assert.Equal(t, 1, h.pub.GestureCount())
}

func TestFailingPortKeepsEngineResponsive(t *testing.T) {
	h := newHarness(t, local(10, 5, 0), true, Options{})
	h.waitOnboarded(t)
	h.port.SpeakError = feedback.ErrUnavailable

	for i := 0; i < 3; i++ {
		h.engine.LongPress()
	}

	require.Eventually(t, func() bool {
		return h.tracker.Snapshot().Gestures.LongPress == 3
	}, waitFor, tick)
	assert.Equal(t, 3, h.engine.Stats().SpeechDropped)
	assert.Equal(t, 3, h.engine.Stats().Vibrated)
}

func TestNavigatorErrorIsLogged(t *testing.T) {
	var calls int
	var mu sync.Mutex
	nav := NavigatorFunc(func() error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return errors.New("session busy")
	})

	h := newHarness(t, local(10, 5, 0), true, Options{}, func(d *Deps) { d.Navigator = nav })
	h.waitOnboarded(t)

	h.engine.Tap()
	h.engine.Tap()
	h.clock.Add(time.Second)

	require.Eventually(t, func() bool {
		return h.tracker.Snapshot().Navigations == 1
	}, waitFor, tick)
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
}

func TestChimeAtBoundary(t *testing.T) {
	h := newHarness(t, local(13, 59, 30), true, Options{ChimeEnabled: true})
	h.waitOnboarded(t)

	h.clock.Add(time.Minute)

	require.Eventually(t, func() bool { return h.pub.ChimeCount() == 1 }, waitFor, tick)
	us := h.port.Utterances()
	require.Len(t, us, 2)
	assert.Equal(t, "It's 14 o'clock", us[1].Text)
	assert.Equal(t, feedback.PriorityEnqueue, us[1].Priority)

	snap := h.tracker.Snapshot()
	assert.Equal(t, 1, snap.Chimes)
	require.NotNil(t, snap.LastChime)
	assert.Equal(t, 14, snap.LastChime.Hour)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ChimesTotal.WithLabelValues("hour")))

	// Nothing until half past.
	h.clock.Add(29*time.Minute + 15*time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, h.pub.ChimeCount())

	h.clock.Add(time.Minute)
	require.Eventually(t, func() bool { return h.pub.ChimeCount() == 2 }, waitFor, tick)
	assert.Equal(t, "It's half past 14", h.port.Utterances()[2].Text)
}

func TestChimeSkippedWhenLedgerClaimed(t *testing.T) {
	h := newHarness(t, local(14, 0, 10), true, Options{ChimeEnabled: true},
		func(d *Deps) { d.Ledger = fakeLedger{claimed: false} })
	h.waitOnboarded(t)

	assert.Never(t, func() bool { return h.pub.ChimeCount() > 0 }, 100*time.Millisecond, tick)
}

func TestChimeSkipsUnsetClock(t *testing.T) {
	m := clock.NewMock()
	port := feedback.NewFakePort(true)
	met := metrics.New()

	e := New(Deps{Clock: m, Port: port, Metrics: met}, Options{ChimeEnabled: true})
	require.NoError(t, e.Start(context.Background()))
	defer e.Stop()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(met.ChimeSkipsTotal) == 1
	}, waitFor, tick)
}

func TestChimeDisabled(t *testing.T) {
	h := newHarness(t, local(14, 0, 0), true, Options{})
	h.waitOnboarded(t)

	assert.Never(t, func() bool { return h.pub.ChimeCount() > 0 }, 50*time.Millisecond, tick)
}

func TestHeartbeat(t *testing.T) {
	h := newHarness(t, local(10, 0, 5), true, Options{
		Heartbeat:       15 * time.Minute,
		RefreshInterval: time.Hour,
	})
	h.waitOnboarded(t)

	h.clock.Add(15 * time.Minute)

	require.Eventually(t, func() bool { return h.pub.SystemEventCount() == 1 }, waitFor, tick)

	ev, payload, ok := h.pub.LastSystemEvent()
	require.True(t, ok)
	assert.Equal(t, EventHeartbeat, ev.Event)
	assert.Contains(t, string(payload), `"event":"HEARTBEAT"`)
}

func TestStartTwice(t *testing.T) {
	h := newHarness(t, local(10, 0, 5), true, Options{})
	assert.ErrorIs(t, h.engine.Start(context.Background()), ErrAlreadyStarted)
}

func TestStopCancelsPendingWindow(t *testing.T) {
	h := newHarness(t, local(10, 5, 0), true, Options{ChimeEnabled: true})
	h.waitOnboarded(t)

	h.engine.Tap()
	h.engine.Stop()
	h.engine.Stop()

	assert.True(t, h.port.IsClosed())

	h.clock.Add(time.Hour)
	h.engine.Tap()
	h.clock.Add(time.Second)

	assert.Len(t, h.port.Utterances(), 1)
	assert.Equal(t, 0, h.pub.GestureCount())
	assert.Equal(t, 0, h.pub.ChimeCount())
}

func TestContextCancelStopsLoop(t *testing.T) {
	m := mockAt(local(10, 5, 0))
	port := feedback.NewFakePort(true)

	ctx, cancel := context.WithCancel(context.Background())
	e := New(Deps{Clock: m, Port: port}, Options{})
	require.NoError(t, e.Start(ctx))

	cancel()
	done := make(chan struct{})
	go func() {
		e.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("Stop did not return after context cancellation")
	}
	assert.True(t, port.IsClosed())
}

func TestSlowPortBacklogDoesNotBlockInput(t *testing.T) {
	port := newGatedPort()
	h := newHarness(t, local(10, 5, 0), true, Options{}, func(d *Deps) { d.Port = port })
	require.Eventually(t, func() bool { return len(port.Utterances()) == 1 }, waitFor, tick)

	const presses = 40
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < presses; i++ {
			h.engine.LongPress()
		}
	}()

	// Taps keep being accepted while the loop is stuck in Speak.
	require.Eventually(t, func() bool { return port.waiting.Load() == 1 }, waitFor, tick)
	tapped := make(chan struct{})
	go func() {
		defer close(tapped)
		h.engine.Tap()
	}()
	select {
	case <-tapped:
	case <-time.After(waitFor):
		t.Fatal("tap blocked behind a slow feedback port")
	}

	time.Sleep(100 * time.Millisecond)
	close(port.gate)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("long press callers still blocked after the port recovered")
	}
	require.Eventually(t, func() bool {
		return h.tracker.Snapshot().Gestures.LongPress == presses
	}, 2*time.Second, tick)
	assert.Equal(t, presses+1, h.engine.Stats().Spoken)
}

func TestStopDiscardsQueuedResolutions(t *testing.T) {
	port := newGatedPort()
	h := newHarness(t, local(10, 5, 0), true, Options{}, func(d *Deps) { d.Port = port })
	require.Eventually(t, func() bool { return len(port.Utterances()) == 1 }, waitFor, tick)

	for i := 0; i < 5; i++ {
		h.engine.LongPress()
	}
	require.Eventually(t, func() bool { return port.waiting.Load() == 1 }, waitFor, tick)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		h.engine.Stop()
	}()
	time.Sleep(20 * time.Millisecond)
	close(port.gate)

	select {
	case <-stopped:
	case <-time.After(waitFor):
		t.Fatal("Stop did not return")
	}
	// Only the resolution already being spoken completes.
	assert.Len(t, port.Utterances(), 2)
	assert.Equal(t, int32(1), port.waiting.Load())
	assert.True(t, port.IsClosed())
}
