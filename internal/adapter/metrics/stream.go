package metrics

import "github.com/prometheus/client_golang/prometheus"

// StreamMetrics tracks long-lived push streams (SSE and WebSocket).
type StreamMetrics struct {
	Active   *prometheus.GaugeVec
	Rejected prometheus.Counter
	Closed   *prometheus.CounterVec
}

// NewStreamMetrics creates and registers stream metrics on the given registry.
func NewStreamMetrics(reg prometheus.Registerer) *StreamMetrics {
	m := &StreamMetrics{
		Active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "active",
			Help:      "Number of open push streams, by transport.",
		}, []string{"transport"}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "rejected_total",
			Help:      "Total number of streams rejected by the connection limit.",
		}),
		Closed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "closed_total",
			Help:      "Total number of closed streams, by transport and reason.",
		}, []string{"transport", "reason"}),
	}

	reg.MustRegister(m.Active, m.Rejected, m.Closed)
	return m
}
