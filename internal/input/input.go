// Package input adapts raw touch sources (buttons, MQTT, HTTP) to the
// tap / long-press stream the gesture classifier consumes.
package input

import (
	"fmt"
	"strings"

	"golang.org/x/time/rate"
)

// Kind is a raw input event.
type Kind string

const (
	KindTap       Kind = "TAP"
	KindLongPress Kind = "LONG_PRESS"
)

// Sink receives raw input.
type Sink interface {
	Tap()
	LongPress()
}

// ParseKind accepts "tap", "long_press" and "long-press" in any case.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case string(KindTap):
		return KindTap, nil
	case string(KindLongPress), "LONGPRESS":
		return KindLongPress, nil
	default:
		return "", fmt.Errorf("unknown input kind %q", s)
	}
}

// Deliver sends k to sink.
func Deliver(sink Sink, k Kind) {
	switch k {
	case KindTap:
		sink.Tap()
	case KindLongPress:
		sink.LongPress()
	}
}

// LimitedSink drops input arriving faster than its limiter allows.
type LimitedSink struct {
	sink    Sink
	limiter *rate.Limiter
	onDrop  func(Kind)
}

// Limited wraps sink with limiter. onDrop may be nil.
func Limited(sink Sink, limiter *rate.Limiter, onDrop func(Kind)) *LimitedSink {
	return &LimitedSink{sink: sink, limiter: limiter, onDrop: onDrop}
}

// Tap forwards a tap if allowed.
func (l *LimitedSink) Tap() { l.deliver(KindTap) }

// LongPress forwards a long press if allowed.
func (l *LimitedSink) LongPress() { l.deliver(KindLongPress) }

// Allow reports whether one more event may pass, consuming a token.
func (l *LimitedSink) Allow() bool {
	return l.limiter == nil || l.limiter.Allow()
}

func (l *LimitedSink) deliver(k Kind) {
	if !l.Allow() {
		if l.onDrop != nil {
			l.onDrop(k)
		}
		return
	}
	Deliver(l.sink, k)
}
