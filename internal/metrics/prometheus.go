package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Default histogram buckets for dispatch latency (in seconds). Dispatch is an
// in-memory operation so the range sits well below the usual HTTP buckets.
var defaultBuckets = []float64{
	.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1,
}

type promMetrics struct {
	messagesTotal   *prometheus.CounterVec
	messageDuration *prometheus.HistogramVec
	stateEntries    prometheus.Gauge
}

// NewPrometheus registers the dispatch collectors with reg.
func NewPrometheus(reg prometheus.Registerer) Metrics {
	m := &promMetrics{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aoproc_messages_total",
			Help: "Total number of dispatched messages",
		}, []string{"action", "outcome"}),

		messageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aoproc_message_duration_seconds",
			Help:    "Message dispatch time in seconds",
			Buckets: defaultBuckets,
		}, []string{"action"}),

		stateEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aoproc_state_entries",
			Help: "Number of entries in the state store",
		}),
	}

	reg.MustRegister(m.messagesTotal, m.messageDuration, m.stateEntries)
	return m
}

func (m *promMetrics) MessageHandled(action, outcome string, d time.Duration) {
	m.messagesTotal.WithLabelValues(action, outcome).Inc()
	m.messageDuration.WithLabelValues(action).Observe(d.Seconds())
}

func (m *promMetrics) StateEntries(n int) {
	m.stateEntries.Set(float64(n))
}
