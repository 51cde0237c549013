package gpio

import (
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"go.uber.org/zap"

	"github.com/sweeney/tapassist/internal/feedback"
)

type step struct {
	value int
	dur   time.Duration
}

// steps expands a pattern into line levels. Waveform timings alternate
// off/on starting with off.
func steps(p feedback.HapticPattern) []step {
	if p.Kind == feedback.HapticOneShot {
		if len(p.Timings) == 0 {
			return nil
		}
		return []step{{value: 1, dur: p.Timings[0]}}
	}
	out := make([]step, len(p.Timings))
	for i, d := range p.Timings {
		out[i] = step{value: i % 2, dur: d}
	}
	return out
}

// Motor plays haptic patterns on a single on/off line. Amplitude is
// ignored. A new pattern cancels the one playing.
type Motor struct {
	mu     sync.Mutex
	clock  clock.Clock
	line   Line
	logger *zap.Logger

	gen     uint64
	timer   *clock.Timer
	playing bool
	closed  bool
}

// NewMotor drives line using clk for step timing.
func NewMotor(clk clock.Clock, line Line, logger *zap.Logger) *Motor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Motor{clock: clk, line: line, logger: logger}
}

// Vibrate starts p and returns at once; steps run on the clock.
func (m *Motor) Vibrate(p feedback.HapticPattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return feedback.ErrUnavailable
	}
	if err := m.cancel(); err != nil {
		return err
	}

	s := steps(p)
	if len(s) == 0 {
		return nil
	}
	repeat := p.Repeat
	if p.Duration() <= 0 || repeat >= len(s) {
		repeat = feedback.NoRepeat
	}

	m.gen++
	m.playing = true
	return m.run(m.gen, s, 0, repeat)
}

// Playing reports whether a pattern is in progress.
func (m *Motor) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

// Close stops the motor and releases the line.
func (m *Motor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	if err := m.cancel(); err != nil {
		m.logger.Warn("motor reset failed", zap.Error(err))
	}
	return m.line.Close()
}

// Caller must hold m.mu.
func (m *Motor) cancel() error {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if !m.playing {
		return nil
	}
	m.playing = false
	return m.line.SetValue(0)
}

// run drives step i and schedules the next one. Caller must hold m.mu.
func (m *Motor) run(gen uint64, s []step, i, repeat int) error {
	if i >= len(s) {
		if repeat < 0 {
			m.playing = false
			m.timer = nil
			return m.line.SetValue(0)
		}
		i = repeat
	}

	if err := m.line.SetValue(s[i].value); err != nil {
		m.playing = false
		m.timer = nil
		return err
	}
	m.timer = m.clock.AfterFunc(s[i].dur, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if gen != m.gen {
			return
		}
		if err := m.run(gen, s, i+1, repeat); err != nil {
			m.logger.Warn("motor step failed", zap.Error(err))
		}
	})
	return nil
}
