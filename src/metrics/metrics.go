package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "visits_observer"

// Event results
const (
	ResultAccepted  = "accepted"
	ResultMalformed = "malformed"
)

// -----------------------------------------------------------------------------

// ControllerMetrics holds the collectors updated on the event path
type ControllerMetrics struct {
	Events           *prometheus.CounterVec
	Evictions        prometheus.Counter
	SeriesLength     prometheus.Gauge
	WebsocketClients prometheus.Gauge
}

// -----------------------------------------------------------------------------

// NewControllerMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewControllerMetrics(reg prometheus.Registerer) *ControllerMetrics {
	m := &ControllerMetrics{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound visitor events by decode result.",
		}, []string{"result"}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Points evicted from the bounded series.",
		}),
		SeriesLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "series_length",
			Help:      "Current number of points in the bounded series.",
		}),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected websocket chart clients.",
		}),
	}

	// pre-create both label values so they show up as 0
	m.Events.WithLabelValues(ResultAccepted)
	m.Events.WithLabelValues(ResultMalformed)

	if reg != nil {
		reg.MustRegister(m.Events, m.Evictions, m.SeriesLength, m.WebsocketClients)
	}

	return m
}

// -----------------------------------------------------------------------------

func (m *ControllerMetrics) Accepted(evicted bool, length int) {
	m.Events.WithLabelValues(ResultAccepted).Inc()
	if evicted {
		m.Evictions.Inc()
	}
	m.SeriesLength.Set(float64(length))
}

// -----------------------------------------------------------------------------

func (m *ControllerMetrics) Malformed() {
	m.Events.WithLabelValues(ResultMalformed).Inc()
}
