package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/tapassist/internal/chime"
	"github.com/sweeney/tapassist/internal/feedback"
	"github.com/sweeney/tapassist/internal/gesture"
)

func TestGestureCounts(t *testing.T) {
	m := New()

	m.Gesture(gesture.Event{Gesture: gesture.GestureSingleTap, Taps: 1})
	m.Gesture(gesture.Event{Gesture: gesture.GestureDoubleTap, Taps: 2})
	m.Gesture(gesture.Event{Gesture: gesture.GestureDoubleTap, Taps: 3})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GesturesTotal.WithLabelValues("SINGLE_TAP")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.GesturesTotal.WithLabelValues("DOUBLE_TAP")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.GesturesTotal.WithLabelValues("LONG_PRESS")))
}

func TestChimeKinds(t *testing.T) {
	m := New()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	m.Chime(chime.Boundary{Hour: 9, At: at})
	m.Chime(chime.Boundary{Hour: 9, Half: true, At: at.Add(30 * time.Minute)})
	m.Chime(chime.Boundary{Hour: 10, At: at.Add(time.Hour)})
	m.ChimeSkipped()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ChimesTotal.WithLabelValues("hour")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChimesTotal.WithLabelValues("half")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChimeSkipsTotal))
}

func TestFeedbackObserver(t *testing.T) {
	m := New()
	port := feedback.NewFakePort(true)
	d := feedback.NewDispatcher(port, nil, m)

	d.Gesture(gesture.Event{Gesture: gesture.GestureSingleTap, Taps: 1})
	port.SpeakError = feedback.ErrUnavailable
	d.Gesture(gesture.Event{Gesture: gesture.GestureSingleTap, Taps: 1})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedbackDeliveredTotal.WithLabelValues(feedback.ChannelSpeech)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FeedbackDeliveredTotal.WithLabelValues(feedback.ChannelHaptic)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedbackDroppedTotal.WithLabelValues(feedback.ChannelSpeech, feedback.ReasonFailed)))
}

func TestConnectedGauge(t *testing.T) {
	m := New()
	m.SetMQTTConnected(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MQTTConnected))
	m.SetMQTTConnected(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.MQTTConnected))
}

func TestInstancesDoNotCollide(t *testing.T) {
	a, b := New(), New()
	a.Navigation()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.NavigationsTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.NavigationsTotal))
}

func TestNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Gesture(gesture.Event{Gesture: gesture.GestureLongPress})
		m.Chime(chime.Boundary{})
		m.ChimeSkipped()
		m.Navigation()
		m.FeedbackDelivered(feedback.ChannelSpeech)
		m.FeedbackDropped(feedback.ChannelHaptic, feedback.ReasonNotReady)
		m.InputDropped("TAP")
		m.SetMQTTConnected(true)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.InputDropped("TAP")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tapassist_input_dropped_total{kind="TAP"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
