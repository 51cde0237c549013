package feedback

import (
	"strings"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"go.uber.org/zap"
)

const (
	// DefaultWordDuration is the estimated speaking time per word at rate 1.0.
	DefaultWordDuration = 350 * time.Millisecond
	// DefaultBacklog bounds the enqueued utterances waiting to be spoken.
	DefaultBacklog = 32

	transcriptLimit = 256
)

// Transcript entry kinds.
const (
	SpeechStarted     = "started"
	SpeechFinished    = "finished"
	SpeechInterrupted = "interrupted"
	SpeechDiscarded   = "discarded"
)

// TranscriptEntry records one speech engine transition.
type TranscriptEntry struct {
	At        time.Time
	Kind      string
	Utterance Utterance
}

// ConsolePort is a local speech engine that writes to the log. It keeps one
// utterance "speaking" for an estimated duration and a bounded backlog of
// enqueued ones, so flush and enqueue behave as on a real TTS engine.
type ConsolePort struct {
	mu           sync.Mutex
	clock        clock.Clock
	logger       *zap.Logger
	wordDuration time.Duration

	current *Utterance
	timer   *clock.Timer
	gen     uint64
	backlog *queue

	transcript []TranscriptEntry
	haptics    []HapticPattern

	ready  chan struct{}
	closed bool
}

// NewConsolePort creates a console engine. It is ready immediately.
func NewConsolePort(clk clock.Clock, logger *zap.Logger) *ConsolePort {
	if logger == nil {
		logger = zap.NewNop()
	}
	ready := make(chan struct{})
	close(ready)
	return &ConsolePort{
		clock:        clk,
		logger:       logger,
		wordDuration: DefaultWordDuration,
		backlog:      newQueue(DefaultBacklog),
		ready:        ready,
	}
}

// Ready is closed from construction.
func (c *ConsolePort) Ready() <-chan struct{} {
	return c.ready
}

// Speak starts or queues u. A flush interrupts the current utterance and
// discards the backlog; an enqueue waits its turn.
func (c *ConsolePort) Speak(u Utterance) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrUnavailable
	}

	switch u.Priority {
	case PriorityFlush:
		if c.current != nil {
			c.stopCurrent(SpeechInterrupted)
		}
		for _, d := range c.backlog.drainAll() {
			c.record(SpeechDiscarded, d)
		}
		c.start(u)
	default:
		if c.current == nil {
			c.start(u)
			return nil
		}
		wasOverflow := c.backlog.overflow
		if evicted, ok := c.backlog.push(u); ok {
			if !wasOverflow {
				c.logger.Warn("speech backlog full, dropping oldest", zap.Int("capacity", c.backlog.capacity))
			}
			c.record(SpeechDiscarded, evicted)
		}
	}
	return nil
}

// Vibrate logs the pattern.
func (c *ConsolePort) Vibrate(p HapticPattern) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrUnavailable
	}
	c.haptics = append(c.haptics, p)
	c.logger.Info("vibrate",
		zap.String("kind", string(p.Kind)),
		zap.Durations("timings", p.Timings),
		zap.Int("amplitude", p.Amplitude))
	return nil
}

// Close stops speech and rejects further calls.
func (c *ConsolePort) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	if c.current != nil {
		c.stopCurrent(SpeechInterrupted)
	}
	for _, d := range c.backlog.drainAll() {
		c.record(SpeechDiscarded, d)
	}
	c.closed = true
	return nil
}

// Speaking returns the utterance currently being spoken, if any.
func (c *ConsolePort) Speaking() (Utterance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Utterance{}, false
	}
	return *c.current, true
}

// Pending returns the number of queued utterances.
func (c *ConsolePort) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backlog.len()
}

// Transcript returns recent engine transitions, oldest first.
func (c *ConsolePort) Transcript() []TranscriptEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]TranscriptEntry(nil), c.transcript...)
}

// Haptics returns every pattern played.
func (c *ConsolePort) Haptics() []HapticPattern {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]HapticPattern(nil), c.haptics...)
}

// estimate is the time u takes to speak.
func (c *ConsolePort) estimate(u Utterance) time.Duration {
	words := len(strings.Fields(u.Text))
	if words == 0 {
		words = 1 // tones take one slot
	}
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	return time.Duration(float64(words) * float64(c.wordDuration) / rate)
}

// Caller must hold c.mu.
func (c *ConsolePort) start(u Utterance) {
	c.current = &u
	c.gen++
	gen := c.gen
	c.record(SpeechStarted, u)
	c.logger.Info("speak",
		zap.String("text", u.Text),
		zap.String("priority", string(u.Priority)),
		zap.String("track", u.TrackID),
		zap.Float64("pitch", u.Pitch),
		zap.Float64("rate", u.Rate))
	c.timer = c.clock.AfterFunc(c.estimate(u), func() { c.finish(gen) })
}

// Caller must hold c.mu.
func (c *ConsolePort) stopCurrent(kind string) {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	c.record(kind, *c.current)
	c.current = nil
}

func (c *ConsolePort) finish(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.current == nil {
		return
	}
	c.timer = nil
	c.record(SpeechFinished, *c.current)
	c.current = nil

	if next, ok := c.backlog.pop(); ok {
		c.start(next)
	}
}

// Caller must hold c.mu.
func (c *ConsolePort) record(kind string, u Utterance) {
	if len(c.transcript) == transcriptLimit {
		c.transcript = c.transcript[1:]
	}
	c.transcript = append(c.transcript, TranscriptEntry{
		At:        c.clock.Now(),
		Kind:      kind,
		Utterance: u,
	})
}
