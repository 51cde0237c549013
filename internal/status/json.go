package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/tapassist/internal/feedback"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Gestures      GesturesJSON   `json:"gestures"`
	Classifier    ClassifierJSON `json:"classifier"`
	LastGesture   *LastGesture   `json:"last_gesture,omitempty"`
	Chimes        ChimesJSON     `json:"chimes"`
	Navigations   int            `json:"navigations"`
	Feedback      FeedbackJSON   `json:"feedback"`
	Config        ConfigJSON     `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// GesturesJSON is the JSON representation of gesture counts.
type GesturesJSON struct {
	SingleTap int `json:"single_tap"`
	DoubleTap int `json:"double_tap"`
	LongPress int `json:"long_press"`
}

// ClassifierJSON is the tap window state.
type ClassifierJSON struct {
	PendingTaps  int    `json:"pending_taps"`
	WindowActive bool   `json:"window_active"`
	Deadline     string `json:"deadline,omitempty"`
}

// LastGesture is the most recent resolution.
type LastGesture struct {
	Gesture   string `json:"gesture"`
	Taps      int    `json:"taps"`
	Timestamp string `json:"timestamp"`
}

// ChimesJSON reports fired chimes.
type ChimesJSON struct {
	Enabled bool   `json:"enabled"`
	Count   int    `json:"count"`
	Last    string `json:"last,omitempty"`
	LastAt  string `json:"last_at,omitempty"`
}

// FeedbackJSON reports feedback delivery.
type FeedbackJSON struct {
	Ready          bool   `json:"ready"`
	Backend        string `json:"backend"`
	Spoken         int    `json:"spoken"`
	Vibrated       int    `json:"vibrated"`
	SpeechDropped  int    `json:"speech_dropped"`
	HapticsDropped int    `json:"haptics_dropped"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	WindowMs       int64  `json:"window_ms"`
	LongPressMs    int64  `json:"long_press_ms"`
	PollIntervalMs int64  `json:"poll_interval_ms"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Gestures: GesturesJSON{
			SingleTap: snap.Gestures.SingleTap,
			DoubleTap: snap.Gestures.DoubleTap,
			LongPress: snap.Gestures.LongPress,
		},
		Classifier: ClassifierJSON{
			PendingTaps:  snap.Classifier.PendingTaps,
			WindowActive: snap.Classifier.WindowActive,
		},
		Chimes:      ChimesJSON{Enabled: snap.Config.ChimeEnabled, Count: snap.Chimes},
		Navigations: snap.Navigations,
		Feedback: FeedbackJSON{
			Ready:          snap.FeedbackReady,
			Backend:        snap.Config.Backend,
			Spoken:         snap.Feedback.Spoken,
			Vibrated:       snap.Feedback.Vibrated,
			SpeechDropped:  snap.Feedback.SpeechDropped,
			HapticsDropped: snap.Feedback.HapticsDropped,
		},
		Config: ConfigJSON{
			WindowMs:       snap.Config.WindowMs,
			LongPressMs:    snap.Config.LongPressMs,
			PollIntervalMs: snap.Config.PollIntervalMs,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
		},
	}
	if snap.Classifier.WindowActive {
		inner.Classifier.Deadline = snap.Classifier.Deadline.UTC().Format(time.RFC3339Nano)
	}
	if g := snap.LastGesture; g != nil {
		inner.LastGesture = &LastGesture{
			Gesture:   string(g.Gesture),
			Taps:      g.Taps,
			Timestamp: g.Timestamp.UTC().Format(time.RFC3339),
		}
	}
	if c := snap.LastChime; c != nil {
		inner.Chimes.Last = feedback.ChimeText(*c)
		inner.Chimes.LastAt = c.At.UTC().Format(time.RFC3339)
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
