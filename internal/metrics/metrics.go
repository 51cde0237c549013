// Package metrics exposes daemon counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/tapassist/internal/chime"
	"github.com/sweeney/tapassist/internal/gesture"
)

// Metrics holds the daemon's collectors on a private registry, so several
// instances (tests, for one) never collide on registration.
//
// All methods are safe on a nil *Metrics.
//
// Metrics:
//   - tapassist_gestures_total{gesture} - resolved gestures
//   - tapassist_chimes_total{kind} - chimes fired, kind is "hour" or "half"
//   - tapassist_chime_skips_total - polls skipped with no usable wall clock
//   - tapassist_navigations_total - navigation triggers
//   - tapassist_feedback_delivered_total{channel} - speech/haptic calls accepted by the port
//   - tapassist_feedback_dropped_total{channel,reason} - speech/haptic calls dropped
//   - tapassist_input_dropped_total{kind} - remote input dropped by rate limiting
//   - tapassist_mqtt_connected - 1 while the broker connection is up
type Metrics struct {
	registry *prometheus.Registry

	GesturesTotal          *prometheus.CounterVec
	ChimesTotal            *prometheus.CounterVec
	ChimeSkipsTotal        prometheus.Counter
	NavigationsTotal       prometheus.Counter
	FeedbackDeliveredTotal *prometheus.CounterVec
	FeedbackDroppedTotal   *prometheus.CounterVec
	InputDroppedTotal      *prometheus.CounterVec
	MQTTConnected          prometheus.Gauge
}

// New creates and registers the daemon metrics plus Go runtime collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		GesturesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tapassist_gestures_total",
			Help: "Total number of resolved gestures",
		}, []string{"gesture"}),
		ChimesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tapassist_chimes_total",
			Help: "Total number of time chimes fired",
		}, []string{"kind"}),
		ChimeSkipsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "tapassist_chime_skips_total",
			Help: "Total number of chime polls skipped because the wall clock was unavailable",
		}),
		NavigationsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "tapassist_navigations_total",
			Help: "Total number of navigation triggers",
		}),
		FeedbackDeliveredTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tapassist_feedback_delivered_total",
			Help: "Total number of feedback calls accepted by the port",
		}, []string{"channel"}),
		FeedbackDroppedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tapassist_feedback_dropped_total",
			Help: "Total number of feedback calls dropped",
		}, []string{"channel", "reason"}),
		InputDroppedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tapassist_input_dropped_total",
			Help: "Total number of remote input events dropped by rate limiting",
		}, []string{"kind"}),
		MQTTConnected: f.NewGauge(prometheus.GaugeOpts{
			Name: "tapassist_mqtt_connected",
			Help: "Whether the MQTT broker connection is up",
		}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gesture counts a resolved gesture.
func (m *Metrics) Gesture(ev gesture.Event) {
	if m == nil {
		return
	}
	m.GesturesTotal.WithLabelValues(string(ev.Gesture)).Inc()
}

// Chime counts a fired chime.
func (m *Metrics) Chime(b chime.Boundary) {
	if m == nil {
		return
	}
	kind := "hour"
	if b.Half {
		kind = "half"
	}
	m.ChimesTotal.WithLabelValues(kind).Inc()
}

// ChimeSkipped counts a poll skipped for lack of a wall clock.
func (m *Metrics) ChimeSkipped() {
	if m == nil {
		return
	}
	m.ChimeSkipsTotal.Inc()
}

// Navigation counts a navigation trigger.
func (m *Metrics) Navigation() {
	if m == nil {
		return
	}
	m.NavigationsTotal.Inc()
}

// FeedbackDelivered counts a delivered speech or haptic call.
func (m *Metrics) FeedbackDelivered(channel string) {
	if m == nil {
		return
	}
	m.FeedbackDeliveredTotal.WithLabelValues(channel).Inc()
}

// FeedbackDropped counts a dropped speech or haptic call.
func (m *Metrics) FeedbackDropped(channel, reason string) {
	if m == nil {
		return
	}
	m.FeedbackDroppedTotal.WithLabelValues(channel, reason).Inc()
}

// InputDropped counts remote input rejected by the rate limiter.
func (m *Metrics) InputDropped(kind string) {
	if m == nil {
		return
	}
	m.InputDroppedTotal.WithLabelValues(kind).Inc()
}

// SetMQTTConnected records the broker connection state.
func (m *Metrics) SetMQTTConnected(connected bool) {
	if m == nil {
		return
	}
	v := 0.0
	if connected {
		v = 1
	}
	m.MQTTConnected.Set(v)
}
