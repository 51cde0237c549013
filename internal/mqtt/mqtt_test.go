package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"golang.org/x/text/language"

	"github.com/sweeney/tapassist/internal/chime"
	"github.com/sweeney/tapassist/internal/feedback"
	"github.com/sweeney/tapassist/internal/gesture"
	"github.com/sweeney/tapassist/internal/input"
)

var testTime = time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC)

func TestNewTopics(t *testing.T) {
	topics := NewTopics("home/hall/")

	want := Topics{
		Speech:   "home/hall/feedback/speech",
		Haptic:   "home/hall/feedback/haptic",
		Navigate: "home/hall/session/navigate",
		Events:   "home/hall/events",
		System:   "home/hall/system",
		Input:    "home/hall/input",
	}
	if topics != want {
		t.Errorf("unexpected topics:\ngot:  %+v\nwant: %+v", topics, want)
	}
}

func TestNewTopicsDefaultPrefix(t *testing.T) {
	if got := NewTopics("").System; got != "assist/system" {
		t.Errorf("unexpected system topic: %s", got)
	}
}

func TestFormatSpeechPayload(t *testing.T) {
	u := feedback.Utterance{
		ID:       "abc",
		Text:     "It's 3 o'clock",
		Priority: feedback.PriorityEnqueue,
		TrackID:  feedback.TrackChime,
		Pitch:    1.0,
		Rate:     1.0,
	}

	payload, err := FormatSpeechPayload(u, language.AmericanEnglish, testTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"speech":{"id":"abc","text":"It's 3 o'clock","mode":"queue","track":"chime","pitch":1,"rate":1,"language":"en-US","timestamp":"2026-02-03T10:30:45Z"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSpeechPayloadFlush(t *testing.T) {
	u := feedback.Utterance{Text: "hi", Priority: feedback.PriorityFlush, Pitch: 1.2, Rate: 1}

	payload, err := FormatSpeechPayload(u, language.BritishEnglish, testTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed SpeechPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Speech.Mode != ModeFlush {
		t.Errorf("unexpected mode: %s", parsed.Speech.Mode)
	}
	if parsed.Speech.Language != "en-GB" {
		t.Errorf("unexpected language: %s", parsed.Speech.Language)
	}
	if parsed.Speech.Track != "" {
		t.Errorf("expected no track, got %s", parsed.Speech.Track)
	}
	if parsed.Speech.Pitch != 1.2 {
		t.Errorf("unexpected pitch: %v", parsed.Speech.Pitch)
	}
}

func TestFormatHapticPayload(t *testing.T) {
	tests := []struct {
		name    string
		pattern feedback.HapticPattern
		want    string
	}{
		{
			"one shot",
			feedback.OneShot(50*time.Millisecond, feedback.DefaultAmplitude),
			`{"haptic":{"kind":"ONE_SHOT","timings_ms":[50],"amplitude":-1,"repeat":-1,"timestamp":"2026-02-03T10:30:45Z"}}`,
		},
		{
			"waveform",
			feedback.Waveform(feedback.NoRepeat, 100*time.Millisecond, 50*time.Millisecond, 100*time.Millisecond),
			`{"haptic":{"kind":"WAVEFORM","timings_ms":[100,50,100],"amplitude":-1,"repeat":-1,"timestamp":"2026-02-03T10:30:45Z"}}`,
		},
		{
			"empty",
			feedback.Waveform(0),
			`{"haptic":{"kind":"WAVEFORM","timings_ms":[],"amplitude":-1,"repeat":0,"timestamp":"2026-02-03T10:30:45Z"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := FormatHapticPayload(tt.pattern, testTime)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(payload) != tt.want {
				t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), tt.want)
			}
		})
	}
}

func TestFormatGesturePayload(t *testing.T) {
	tests := []struct {
		gesture gesture.Gesture
		taps    int
	}{
		{gesture.GestureSingleTap, 1},
		{gesture.GestureDoubleTap, 2},
		{gesture.GestureDoubleTap, 3},
		{gesture.GestureLongPress, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.gesture), func(t *testing.T) {
			payload, err := FormatGesturePayload(gesture.Event{Timestamp: testTime, Gesture: tt.gesture, Taps: tt.taps})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var parsed GesturePayload
			if err := json.Unmarshal(payload, &parsed); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if parsed.Gesture.Gesture != string(tt.gesture) {
				t.Errorf("gesture: got %s, want %s", parsed.Gesture.Gesture, tt.gesture)
			}
			if parsed.Gesture.Taps != tt.taps {
				t.Errorf("taps: got %d, want %d", parsed.Gesture.Taps, tt.taps)
			}
			if parsed.Gesture.Timestamp != "2026-02-03T10:30:45Z" {
				t.Errorf("unexpected timestamp: %s", parsed.Gesture.Timestamp)
			}
		})
	}
}

func TestFormatChimePayloadExactJSON(t *testing.T) {
	b := chime.Boundary{Hour: 14, Half: true, At: time.Date(2026, 2, 3, 14, 30, 5, 0, time.UTC)}

	payload, err := FormatChimePayload(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"chime":{"timestamp":"2026-02-03T14:30:05Z","hour":14,"half":true,"text":"It's half past 14"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatNavigatePayload(t *testing.T) {
	payload, err := FormatNavigatePayload(testTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"navigate":{"timestamp":"2026-02-03T10:30:45Z"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: testTime,
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{Timestamp: testTime, Event: "OFFLINE"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"OFFLINE"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"system":{"event":"STARTUP"}}`)

	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload passthrough, got %s", payload)
	}
}

func TestParseInput(t *testing.T) {
	tests := []struct {
		payload string
		want    input.Kind
		wantErr bool
	}{
		{"tap", input.KindTap, false},
		{" TAP\n", input.KindTap, false},
		{"long-press", input.KindLongPress, false},
		{`{"input":"LONG_PRESS"}`, input.KindLongPress, false},
		{`{"input":"tap"}`, input.KindTap, false},
		{`{"input":"swipe"}`, "", true},
		{`{"input":`, "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, err := ParseInput([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewRealClientRequiresBroker(t *testing.T) {
	if _, err := NewRealClient(Options{}); err == nil {
		t.Error("expected error for empty broker")
	}
}

func TestNewRealClientRejectsBadLanguage(t *testing.T) {
	if _, err := NewRealClient(Options{Broker: "tcp://127.0.0.1:1", Language: "not a tag!"}); err == nil {
		t.Error("expected error for bad language tag")
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	if err := f.PublishGesture(gesture.Event{Timestamp: testTime, Gesture: gesture.GestureDoubleTap, Taps: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishChime(chime.Boundary{Hour: 9, At: testTime}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.Navigate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.GestureCount() != 1 {
		t.Fatalf("expected 1 gesture, got %d", f.GestureCount())
	}
	if f.Gestures[0].Gesture != gesture.GestureDoubleTap {
		t.Errorf("unexpected gesture: %s", f.Gestures[0].Gesture)
	}
	if f.ChimeCount() != 1 {
		t.Errorf("expected 1 chime, got %d", f.ChimeCount())
	}
	if len(f.Payloads) != 2 {
		t.Errorf("expected 2 payloads, got %d", len(f.Payloads))
	}
	if f.NavigationCount() != 1 {
		t.Errorf("expected 1 navigation, got %d", f.NavigationCount())
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("simulated error")

	if err := f.PublishGesture(gesture.Event{Gesture: gesture.GestureSingleTap, Taps: 1}); err == nil {
		t.Error("expected error")
	}
	if len(f.Gestures) != 0 {
		t.Errorf("expected no gestures recorded on error, got %d", len(f.Gestures))
	}
}

func TestFakePublisherClose(t *testing.T) {
	f := NewFakePublisher()

	if f.Closed {
		t.Error("should not be closed initially")
	}
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()

	f.PublishGesture(gesture.Event{Gesture: gesture.GestureSingleTap, Taps: 1})
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.Navigate()
	f.Close()
	f.PublishError = errors.New("error")
	f.Connected = true

	f.Reset()

	if len(f.Gestures) != 0 || len(f.Payloads) != 0 {
		t.Error("gestures should be cleared")
	}
	if len(f.SystemEvents) != 0 {
		t.Error("system events should be cleared")
	}
	if f.Navigations != 0 {
		t.Error("navigations should be cleared")
	}
	if f.Closed {
		t.Error("closed should be reset")
	}
	if f.PublishError != nil {
		t.Error("error should be cleared")
	}
	if f.IsConnected() {
		t.Error("connected should be reset")
	}
}
