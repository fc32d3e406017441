package metrics

import "github.com/prometheus/client_golang/prometheus"

// RelayMetrics tracks the cross-instance relay.
type RelayMetrics struct {
	Published *prometheus.CounterVec
	Received  *prometheus.CounterVec
}

// NewRelayMetrics creates and registers relay metrics on the given registry.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "published_total",
			Help:      "Total number of room change notifications published, by result.",
		}, []string{"result"}),
		Received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "received_total",
			Help:      "Total number of relay messages received, by outcome (dispatched, echo, malformed, dropped).",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.Published, m.Received)
	return m
}
