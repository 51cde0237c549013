// Package engine wires the gesture classifier and chime scheduler to the
// feedback dispatcher and runs them on a single event loop.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"go.uber.org/zap"

	"github.com/sweeney/tapassist/internal/chime"
	"github.com/sweeney/tapassist/internal/feedback"
	"github.com/sweeney/tapassist/internal/gesture"
	"github.com/sweeney/tapassist/internal/metrics"
	"github.com/sweeney/tapassist/internal/mqtt"
	"github.com/sweeney/tapassist/internal/status"
)

// DefaultRefreshInterval is how often the status tracker is refreshed
// between events.
const DefaultRefreshInterval = 5 * time.Second

// EventHeartbeat is the system event published every heartbeat period.
const EventHeartbeat = "HEARTBEAT"

// ErrAlreadyStarted is returned by a second Start.
var ErrAlreadyStarted = errors.New("engine: already started")

// Navigator is triggered once per double tap.
type Navigator interface {
	Navigate() error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func() error

// Navigate calls f.
func (f NavigatorFunc) Navigate() error { return f() }

// Journal persists resolved gestures.
type Journal interface {
	RecordGesture(ctx context.Context, ev gesture.Event) error
}

// Deps are the collaborators of an Engine. Clock and Port are required;
// everything else may be nil.
type Deps struct {
	Clock     clock.Clock
	Port      feedback.Port
	Logger    *zap.Logger
	Tracker   *status.Tracker
	Metrics   *metrics.Metrics
	Journal   Journal
	Ledger    chime.Ledger
	Publisher mqtt.Publisher
	// Connection reports broker connectivity to the tracker and metrics.
	Connection mqtt.ConnectionStatus
	Navigator  Navigator
}

// Options tune an Engine. Zero values use package defaults.
type Options struct {
	Window          time.Duration
	PollInterval    time.Duration
	ChimeEnabled    bool
	RefreshInterval time.Duration
	// Heartbeat publishes a status event periodically; 0 disables it.
	Heartbeat time.Duration
}

// Engine owns one classifier, one chime scheduler and one dispatcher.
// Tap and LongPress may be called from any goroutine.
type Engine struct {
	deps   Deps
	opts   Options
	logger *zap.Logger

	classifier *gesture.Classifier
	dispatcher *feedback.Dispatcher
	scheduler  *chime.Scheduler

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates an engine. It does nothing until Start.
func New(deps Deps, opts Options) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}

	var observer feedback.Observer
	if deps.Metrics != nil {
		observer = deps.Metrics
	}

	schedOpts := []chime.Option{
		chime.WithLogger(logger.Named("chime")),
		chime.WithSkipHook(deps.Metrics.ChimeSkipped),
	}
	if deps.Ledger != nil {
		schedOpts = append(schedOpts, chime.WithLedger(deps.Ledger))
	}

	return &Engine{
		deps:       deps,
		opts:       opts,
		logger:     logger,
		classifier: gesture.NewClassifier(deps.Clock, opts.Window),
		dispatcher: feedback.NewDispatcher(deps.Port, logger.Named("feedback"), observer),
		scheduler:  chime.NewScheduler(deps.Clock, opts.PollInterval, schedOpts...),
	}
}

// Tap feeds a tap to the classifier.
func (e *Engine) Tap() {
	e.classifier.Tap()
}

// LongPress feeds a long press to the classifier.
func (e *Engine) LongPress() {
	e.classifier.LongPress()
}

// Stats returns feedback delivery counts.
func (e *Engine) Stats() feedback.Stats {
	return e.dispatcher.Stats()
}

// Start launches the event loop and, when enabled, the chime scheduler.
// The engine runs until ctx is cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return ErrAlreadyStarted
	}
	e.started = true

	ctx, e.cancel = context.WithCancel(ctx)

	// Tickers are created here rather than in the goroutines so a mock
	// clock advanced right after Start is observed.
	refresh := e.deps.Clock.Ticker(e.opts.RefreshInterval)
	var heartbeat *clock.Ticker
	if e.opts.Heartbeat > 0 {
		heartbeat = e.deps.Clock.Ticker(e.opts.Heartbeat)
	}

	boundaries := make(chan chime.Boundary)
	if e.opts.ChimeEnabled {
		poll := e.deps.Clock.Ticker(e.scheduler.Interval())
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			defer poll.Stop()
			e.scheduler.RunTicks(ctx, poll.C, boundaries)
		}()
	}

	e.wg.Add(1)
	go e.loop(ctx, boundaries, refresh, heartbeat)

	e.logger.Info("engine started",
		zap.Duration("window", e.classifier.Window()),
		zap.Bool("chime", e.opts.ChimeEnabled),
		zap.Duration("chime_interval", e.scheduler.Interval()))
	return nil
}

// Stop cancels the scheduler and any pending tap window, waits for the
// loop to exit and closes the port. No feedback is delivered after Stop
// returns. Stop is idempotent.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		cancel := e.cancel
		e.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		e.classifier.Stop()
		e.wg.Wait()

		if err := e.deps.Port.Close(); err != nil {
			e.logger.Warn("close feedback port", zap.Error(err))
		}
		e.logger.Info("engine stopped")
	})
}

func (e *Engine) loop(ctx context.Context, boundaries <-chan chime.Boundary, refresh, heartbeat *clock.Ticker) {
	defer e.wg.Done()
	defer refresh.Stop()

	var beat <-chan time.Time
	if heartbeat != nil {
		defer heartbeat.Stop()
		beat = heartbeat.C
	}

	ready := e.deps.Port.Ready()
	e.refresh()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ready:
			// Onboarding is spoken once, on the first readiness only.
			ready = nil
			if ctx.Err() != nil {
				return
			}
			e.logger.Info("feedback ready")
			e.dispatcher.Onboard()
			e.refresh()

		case ev := <-e.classifier.Resolutions():
			e.handleGesture(ctx, ev)

		case b := <-boundaries:
			e.handleChime(ctx, b)

		case <-refresh.C:
			e.refresh()

		case <-beat:
			e.publishHeartbeat()
		}
	}
}

// handleGesture and handleChime discard events picked after cancellation;
// select does not prefer ctx.Done over other ready channels.
func (e *Engine) handleGesture(ctx context.Context, ev gesture.Event) {
	if ctx.Err() != nil {
		return
	}
	e.logger.Info("gesture",
		zap.String("gesture", string(ev.Gesture)),
		zap.Int("taps", ev.Taps))

	e.dispatcher.Gesture(ev)
	if ev.Gesture == gesture.GestureDoubleTap {
		e.navigate()
	}

	if e.deps.Tracker != nil {
		e.deps.Tracker.RecordGesture(ev)
	}
	e.deps.Metrics.Gesture(ev)

	if e.deps.Journal != nil {
		if err := e.deps.Journal.RecordGesture(ctx, ev); err != nil {
			e.logger.Warn("journal gesture", zap.Error(err))
		}
	}
	if e.deps.Publisher != nil {
		if err := e.deps.Publisher.PublishGesture(ev); err != nil {
			e.logger.Debug("publish gesture", zap.Error(err))
		}
	}
	e.refresh()
}

func (e *Engine) navigate() {
	if e.deps.Tracker != nil {
		e.deps.Tracker.RecordNavigation()
	}
	e.deps.Metrics.Navigation()

	if e.deps.Navigator == nil {
		e.logger.Debug("no navigator, double tap ignored")
		return
	}
	if err := e.deps.Navigator.Navigate(); err != nil {
		e.logger.Warn("navigate", zap.Error(err))
	}
}

func (e *Engine) handleChime(ctx context.Context, b chime.Boundary) {
	if ctx.Err() != nil {
		return
	}
	e.logger.Info("chime",
		zap.String("slot", b.Key()),
		zap.String("text", feedback.ChimeText(b)))

	e.dispatcher.Chime(b)

	if e.deps.Tracker != nil {
		e.deps.Tracker.RecordChime(b)
	}
	e.deps.Metrics.Chime(b)

	if e.deps.Publisher != nil {
		if err := e.deps.Publisher.PublishChime(b); err != nil {
			e.logger.Debug("publish chime", zap.Error(err))
		}
	}
	e.refresh()
}

// refresh copies live classifier, dispatcher and connection state into
// the tracker and metrics.
func (e *Engine) refresh() {
	connected := false
	if e.deps.Connection != nil {
		connected = e.deps.Connection.IsConnected()
	}
	e.deps.Metrics.SetMQTTConnected(connected)

	if e.deps.Tracker == nil {
		return
	}
	e.deps.Tracker.UpdateGestures(e.classifier.Counts(), e.classifier.State())
	e.deps.Tracker.SetFeedback(e.dispatcher.Stats(), feedback.IsReady(e.deps.Port))
	e.deps.Tracker.SetMQTTConnected(connected)
}

func (e *Engine) publishHeartbeat() {
	if e.deps.Publisher == nil {
		return
	}
	e.refresh()

	event := mqtt.SystemEvent{
		Timestamp: e.deps.Clock.Now(),
		Event:     EventHeartbeat,
	}
	if e.deps.Tracker != nil {
		event.RawPayload = status.FormatStatusEvent(e.deps.Tracker.Snapshot(), EventHeartbeat, "")
	}
	if err := e.deps.Publisher.PublishSystem(event); err != nil {
		e.logger.Debug("heartbeat publish", zap.Error(err))
	}
}
