// Package chime announces the time at every hour and half hour.
package chime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/facebookgo/clock"
	"go.uber.org/zap"
)

// DefaultInterval is the poll interval. It equals the boundary granularity,
// so under normal scheduling every boundary minute is seen by exactly one poll.
const DefaultInterval = 60 * time.Second

// ErrClockUnavailable is returned when the wall clock cannot be trusted,
// e.g. a board without an RTC that has not synced with NTP yet.
var ErrClockUnavailable = errors.New("chime: wall clock unavailable")

// earliestValid is the first wall-clock time considered synced.
var earliestValid = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Boundary is an hour or half-hour instant at which an announcement is due.
type Boundary struct {
	Hour int // 0..23
	Half bool
	At   time.Time
}

// Key identifies the boundary's calendar slot, e.g. "2026-01-01T14:30".
func (b Boundary) Key() string {
	minute := 0
	if b.Half {
		minute = 30
	}
	return fmt.Sprintf("%s%02d:%02d", b.At.Format("2006-01-02T"), b.Hour, minute)
}

// Ledger records fired boundaries outside the process. Claim returns false
// if the boundary was already claimed.
type Ledger interface {
	Claim(ctx context.Context, b Boundary) (bool, error)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLedger extends the duplicate guard across restarts.
func WithLedger(l Ledger) Option {
	return func(s *Scheduler) { s.ledger = l }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithSkipHook is called for every tick skipped because the clock was unavailable.
func WithSkipHook(fn func()) Option {
	return func(s *Scheduler) { s.onSkip = fn }
}

// Scheduler polls the wall clock and emits one Boundary per hour and
// half-hour minute.
type Scheduler struct {
	clock    clock.Clock
	interval time.Duration
	ledger   Ledger
	logger   *zap.Logger
	onSkip   func()

	// lastKey is the minute key of the last fired boundary.
	// Only touched from Check, which Run calls from a single goroutine.
	lastKey string
}

// NewScheduler creates a scheduler. An interval <= 0 uses DefaultInterval.
func NewScheduler(clk clock.Clock, interval time.Duration, opts ...Option) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Scheduler{
		clock:    clk,
		interval: interval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Interval returns the poll interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Now returns the local wall-clock time, or ErrClockUnavailable if the
// clock has not been set.
func (s *Scheduler) Now() (time.Time, error) {
	t := s.clock.Now()
	if t.Before(earliestValid) {
		return time.Time{}, ErrClockUnavailable
	}
	return t.Local(), nil
}

// Check reports whether t falls on a boundary that has not fired yet.
// A poll repeated within the same minute never fires twice.
func (s *Scheduler) Check(t time.Time) (Boundary, bool) {
	var b Boundary
	switch t.Minute() {
	case 0:
		b = Boundary{Hour: t.Hour(), At: t}
	case 30:
		b = Boundary{Hour: t.Hour(), Half: true, At: t}
	default:
		return Boundary{}, false
	}

	key := b.Key()
	if key == s.lastKey {
		return Boundary{}, false
	}
	s.lastKey = key
	return b, true
}

// Run polls immediately and then every interval until ctx is cancelled,
// sending each boundary on out. It never sends after ctx is done.
func (s *Scheduler) Run(ctx context.Context, out chan<- Boundary) {
	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	s.logger.Info("chime scheduler started", zap.Duration("interval", s.interval))
	defer s.logger.Info("chime scheduler stopped")

	s.RunTicks(ctx, ticker.C, out)
}

// RunTicks is the poll loop of Run driven by an arbitrary tick source.
func (s *Scheduler) RunTicks(ctx context.Context, tick <-chan time.Time, out chan<- Boundary) {
	s.poll(ctx, out)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			s.poll(ctx, out)
		}
	}
}

func (s *Scheduler) poll(ctx context.Context, out chan<- Boundary) {
	if ctx.Err() != nil {
		return
	}

	t, err := s.Now()
	if err != nil {
		s.logger.Debug("skipping chime tick", zap.Error(err))
		if s.onSkip != nil {
			s.onSkip()
		}
		return
	}

	b, ok := s.Check(t)
	if !ok {
		return
	}

	if s.ledger != nil {
		claimed, err := s.ledger.Claim(ctx, b)
		if err != nil {
			// The in-memory guard already holds; fire anyway.
			s.logger.Warn("chime ledger claim failed", zap.String("slot", b.Key()), zap.Error(err))
		} else if !claimed {
			s.logger.Info("chime already announced", zap.String("slot", b.Key()))
			return
		}
	}

	select {
	case out <- b:
	case <-ctx.Done():
	}
}
