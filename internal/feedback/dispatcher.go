package feedback

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sweeney/tapassist/internal/chime"
	"github.com/sweeney/tapassist/internal/gesture"
)

// Channel names used in stats and metrics.
const (
	ChannelSpeech = "speech"
	ChannelHaptic = "haptic"
)

// Drop reasons.
const (
	ReasonNotReady = "not_ready"
	ReasonFailed   = "failed"
)

// Observer is notified of every delivery outcome.
type Observer interface {
	FeedbackDelivered(channel string)
	FeedbackDropped(channel, reason string)
}

// Stats counts delivery outcomes since startup.
type Stats struct {
	Spoken         int
	Vibrated       int
	SpeechDropped  int
	HapticsDropped int
}

// Dispatcher sends cues to a port. It is the only caller of the port and
// serializes every call, so a flush arriving from the gesture path while a
// chime is being delivered never interleaves with it.
type Dispatcher struct {
	mu       sync.Mutex
	port     Port
	logger   *zap.Logger
	observer Observer
	stats    Stats
}

// NewDispatcher creates a dispatcher. logger and observer may be nil.
func NewDispatcher(port Port, logger *zap.Logger, observer Observer) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		port:     port,
		logger:   logger,
		observer: observer,
	}
}

// Gesture delivers the cue for a resolved gesture.
func (d *Dispatcher) Gesture(ev gesture.Event) {
	cue, ok := GestureCue(ev)
	if !ok {
		return
	}
	d.Deliver(cue)
}

// Chime delivers a time announcement.
func (d *Dispatcher) Chime(b chime.Boundary) {
	d.Deliver(ChimeCue(b))
}

// Onboard delivers the onboarding instructions.
func (d *Dispatcher) Onboard() {
	d.Deliver(OnboardingCue())
}

// Stats returns delivery counts.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Deliver speaks the cue's utterance and then plays its haptic. Feedback
// for an unavailable port is dropped without retry.
func (d *Dispatcher) Deliver(cue Cue) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !IsReady(d.port) {
		d.logger.Debug("feedback port not ready, dropping cue",
			zap.String("text", cue.Utterance.Text))
		d.dropped(ChannelSpeech, ReasonNotReady)
		if cue.Haptic != nil {
			d.dropped(ChannelHaptic, ReasonNotReady)
		}
		return
	}

	if err := d.port.Speak(cue.Utterance); err != nil {
		d.logger.Debug("speak failed",
			zap.String("id", cue.Utterance.ID),
			zap.String("priority", string(cue.Utterance.Priority)),
			zap.Error(err))
		d.dropped(ChannelSpeech, ReasonFailed)
	} else {
		d.delivered(ChannelSpeech)
	}

	if cue.Haptic == nil {
		return
	}
	if err := d.port.Vibrate(*cue.Haptic); err != nil {
		d.logger.Debug("vibrate failed", zap.String("kind", string(cue.Haptic.Kind)), zap.Error(err))
		d.dropped(ChannelHaptic, ReasonFailed)
	} else {
		d.delivered(ChannelHaptic)
	}
}

func (d *Dispatcher) delivered(channel string) {
	switch channel {
	case ChannelSpeech:
		d.stats.Spoken++
	case ChannelHaptic:
		d.stats.Vibrated++
	}
	if d.observer != nil {
		d.observer.FeedbackDelivered(channel)
	}
}

func (d *Dispatcher) dropped(channel, reason string) {
	switch channel {
	case ChannelSpeech:
		d.stats.SpeechDropped++
	case ChannelHaptic:
		d.stats.HapticsDropped++
	}
	if d.observer != nil {
		d.observer.FeedbackDropped(channel, reason)
	}
}
