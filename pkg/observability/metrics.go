package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Session events counted by the Recorder.
const (
	EventCreated     = "created"
	EventFound       = "found"
	EventNotFound    = "not_found"
	EventExpired     = "expired"
	EventInvalidated = "invalidated"
	EventOrphaned    = "orphaned"
	EventRaced       = "raced"
)

// Recorder collects session metrics.
type Recorder struct {
	events  *prometheus.CounterVec
	lookups *prometheus.HistogramVec
	handles prometheus.Gauge
}

// NewRecorder creates a Recorder and registers its collectors with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionkit_session_events_total",
				Help: "Session lifecycle events by kind",
			},
			[]string{"event"},
		),
		lookups: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessionkit_store_duration_seconds",
				Help:    "Duration of session store operations",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"operation"},
		),
		handles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sessionkit_shared_sessions",
			Help: "Sessions currently shared by the concurrent manager",
		}),
	}
	reg.MustRegister(r.events, r.lookups, r.handles)
	return r
}

// Event counts one session event.
func (r *Recorder) Event(event string) {
	if r == nil {
		return
	}
	r.events.WithLabelValues(event).Inc()
}

// ObserveSince records the duration of a store operation started at start.
func (r *Recorder) ObserveSince(operation string, start time.Time) {
	if r == nil {
		return
	}
	r.lookups.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// SessionShared tracks a session entering the concurrent manager.
func (r *Recorder) SessionShared() {
	if r == nil {
		return
	}
	r.handles.Inc()
}

// SessionReleased tracks a session leaving the concurrent manager.
func (r *Recorder) SessionReleased() {
	if r == nil {
		return
	}
	r.handles.Dec()
}
