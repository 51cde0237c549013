// Package mqtt carries feedback commands, telemetry, navigation triggers and
// remote input over an MQTT broker, with an abstraction for testing.
package mqtt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/sweeney/tapassist/internal/chime"
	"github.com/sweeney/tapassist/internal/feedback"
	"github.com/sweeney/tapassist/internal/gesture"
	"github.com/sweeney/tapassist/internal/input"
)

// DefaultTopicPrefix roots every topic unless configured otherwise.
const DefaultTopicPrefix = "assist"

// Topics are the MQTT topics used by the daemon.
type Topics struct {
	Speech   string
	Haptic   string
	Navigate string
	Events   string
	System   string
	Input    string
}

// NewTopics builds the topic set under prefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{
		Speech:   prefix + "/feedback/speech",
		Haptic:   prefix + "/feedback/haptic",
		Navigate: prefix + "/session/navigate",
		Events:   prefix + "/events",
		System:   prefix + "/system",
		Input:    prefix + "/input",
	}
}

// Publisher publishes telemetry to MQTT.
type Publisher interface {
	// PublishGesture sends a resolved gesture.
	// Returns error if publishing fails (should not crash the process).
	PublishGesture(ev gesture.Event) error

	// PublishChime sends a fired chime.
	PublishChime(b chime.Boundary) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "RECONNECTED"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SpeechPayload is the speech command sent to the speech engine.
type SpeechPayload struct {
	Speech SpeechPayloadInner `json:"speech"`
}

// SpeechPayloadInner contains the utterance.
type SpeechPayloadInner struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Mode      string  `json:"mode"`
	Track     string  `json:"track,omitempty"`
	Pitch     float64 `json:"pitch"`
	Rate      float64 `json:"rate"`
	Language  string  `json:"language"`
	Timestamp string  `json:"timestamp"`
}

// Speech engine queue modes.
const (
	ModeFlush = "flush"
	ModeQueue = "queue"
)

// FormatSpeechPayload creates the JSON command for an utterance.
func FormatSpeechPayload(u feedback.Utterance, lang language.Tag, now time.Time) ([]byte, error) {
	mode := ModeQueue
	if u.Priority == feedback.PriorityFlush {
		mode = ModeFlush
	}
	return json.Marshal(SpeechPayload{
		Speech: SpeechPayloadInner{
			ID:        u.ID,
			Text:      u.Text,
			Mode:      mode,
			Track:     u.TrackID,
			Pitch:     u.Pitch,
			Rate:      u.Rate,
			Language:  lang.String(),
			Timestamp: now.UTC().Format(time.RFC3339),
		},
	})
}

// HapticPayload is the vibration command sent to the actuator.
type HapticPayload struct {
	Haptic HapticPayloadInner `json:"haptic"`
}

// HapticPayloadInner contains the pattern with timings in milliseconds.
type HapticPayloadInner struct {
	Kind      string  `json:"kind"`
	TimingsMs []int64 `json:"timings_ms"`
	Amplitude int     `json:"amplitude"`
	Repeat    int     `json:"repeat"`
	Timestamp string  `json:"timestamp"`
}

// FormatHapticPayload creates the JSON command for a haptic pattern.
func FormatHapticPayload(p feedback.HapticPattern, now time.Time) ([]byte, error) {
	timings := make([]int64, len(p.Timings))
	for i, d := range p.Timings {
		timings[i] = d.Milliseconds()
	}
	return json.Marshal(HapticPayload{
		Haptic: HapticPayloadInner{
			Kind:      string(p.Kind),
			TimingsMs: timings,
			Amplitude: p.Amplitude,
			Repeat:    p.Repeat,
			Timestamp: now.UTC().Format(time.RFC3339),
		},
	})
}

// GesturePayload is the telemetry message for a resolved gesture.
type GesturePayload struct {
	Gesture GesturePayloadInner `json:"gesture"`
}

// GesturePayloadInner contains the gesture details.
type GesturePayloadInner struct {
	Timestamp string `json:"timestamp"`
	Gesture   string `json:"gesture"`
	Taps      int    `json:"taps"`
}

// FormatGesturePayload creates the JSON payload for a gesture.
func FormatGesturePayload(ev gesture.Event) ([]byte, error) {
	return json.Marshal(GesturePayload{
		Gesture: GesturePayloadInner{
			Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
			Gesture:   string(ev.Gesture),
			Taps:      ev.Taps,
		},
	})
}

// ChimePayload is the telemetry message for a fired chime.
type ChimePayload struct {
	Chime ChimePayloadInner `json:"chime"`
}

// ChimePayloadInner contains the boundary details.
type ChimePayloadInner struct {
	Timestamp string `json:"timestamp"`
	Hour      int    `json:"hour"`
	Half      bool   `json:"half"`
	Text      string `json:"text"`
}

// FormatChimePayload creates the JSON payload for a chime.
func FormatChimePayload(b chime.Boundary) ([]byte, error) {
	return json.Marshal(ChimePayload{
		Chime: ChimePayloadInner{
			Timestamp: b.At.UTC().Format(time.RFC3339),
			Hour:      b.Hour,
			Half:      b.Half,
			Text:      feedback.ChimeText(b),
		},
	})
}

// NavigatePayload triggers the navigation session.
type NavigatePayload struct {
	Navigate NavigatePayloadInner `json:"navigate"`
}

// NavigatePayloadInner contains the trigger time.
type NavigatePayloadInner struct {
	Timestamp string `json:"timestamp"`
}

// FormatNavigatePayload creates the JSON payload for a navigation trigger.
func FormatNavigatePayload(now time.Time) ([]byte, error) {
	return json.Marshal(NavigatePayload{
		Navigate: NavigatePayloadInner{Timestamp: now.UTC().Format(time.RFC3339)},
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// InputPayload is the JSON form accepted on the input topic.
type InputPayload struct {
	Input string `json:"input"`
}

// ParseInput decodes a remote input message. Both a bare kind ("tap") and
// {"input":"TAP"} are accepted.
func ParseInput(payload []byte) (input.Kind, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) > 0 && payload[0] == '{' {
		var p InputPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return "", fmt.Errorf("decode input: %w", err)
		}
		return input.ParseKind(p.Input)
	}
	return input.ParseKind(string(payload))
}
