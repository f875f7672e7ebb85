package observability_test

import (
	"testing"
	"time"

	"github.com/aretw0/sessionkit/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := observability.NewRecorder(reg)

	r.Event(observability.EventCreated)
	r.Event(observability.EventCreated)
	r.Event(observability.EventExpired)
	r.ObserveSince("find", time.Now())
	r.SessionShared()
	r.SessionShared()
	r.SessionReleased()

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				values[family.GetName()+"/"+metric.GetLabel()[0].GetValue()] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				values[family.GetName()] = metric.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, values["sessionkit_session_events_total/created"])
	assert.Equal(t, 1.0, values["sessionkit_session_events_total/expired"])
	assert.Equal(t, 1.0, values["sessionkit_shared_sessions"])
	assert.Len(t, values, 3, "one counter series per event kind plus the gauge")
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *observability.Recorder
	assert.NotPanics(t, func() {
		r.Event(observability.EventFound)
		r.ObserveSince("find", time.Now())
		r.SessionShared()
		r.SessionReleased()
	})
}
