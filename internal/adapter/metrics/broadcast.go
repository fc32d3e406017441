package metrics

import "github.com/prometheus/client_golang/prometheus"

// BroadcastMetrics tracks the channel registry and the broadcast triggers.
// It satisfies broadcast.Observer.
type BroadcastMetrics struct {
	ActiveChannels    prometheus.Gauge
	ActiveRooms       prometheus.Gauge
	Delivered         prometheus.Counter
	ChannelsEvicted   *prometheus.CounterVec
	Triggers          *prometheus.CounterVec
	AggregateDuration prometheus.Histogram
}

// NewBroadcastMetrics creates and registers broadcast metrics on the given registry.
func NewBroadcastMetrics(reg prometheus.Registerer) *BroadcastMetrics {
	m := &BroadcastMetrics{
		ActiveChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "active_channels",
			Help:      "Number of open push channels on this instance.",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "active_rooms",
			Help:      "Number of rooms with at least one open channel on this instance.",
		}),
		Delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "events_delivered_total",
			Help:      "Total number of summary events accepted by channels.",
		}),
		ChannelsEvicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "channels_evicted_total",
			Help:      "Total number of channels dropped during fan-out, by reason.",
		}, []string{"reason"}),
		Triggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "triggers_total",
			Help:      "Total number of room change triggers, by origin and result.",
		}, []string{"origin", "result"}),
		AggregateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "aggregate_duration_seconds",
			Help:      "Duration of snapshot recomputation in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}),
	}

	reg.MustRegister(m.ActiveChannels, m.ActiveRooms, m.Delivered, m.ChannelsEvicted, m.Triggers, m.AggregateDuration)
	return m
}

func (m *BroadcastMetrics) ChannelOpened() { m.ActiveChannels.Inc() }

func (m *BroadcastMetrics) ChannelClosed() { m.ActiveChannels.Dec() }

func (m *BroadcastMetrics) RoomOpened() { m.ActiveRooms.Inc() }

func (m *BroadcastMetrics) RoomPruned() { m.ActiveRooms.Dec() }

func (m *BroadcastMetrics) EventsDelivered(n int) { m.Delivered.Add(float64(n)) }

func (m *BroadcastMetrics) ChannelEvicted(reason string) {
	m.ChannelsEvicted.WithLabelValues(reason).Inc()
}

// Trigger records the outcome of one room change trigger.
func (m *BroadcastMetrics) Trigger(origin, result string) {
	m.Triggers.WithLabelValues(origin, result).Inc()
}
