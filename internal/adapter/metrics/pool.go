package metrics

import "github.com/prometheus/client_golang/prometheus"

// PoolMetrics tracks a background worker pool. It satisfies workerpool.Observer.
type PoolMetrics struct {
	Submitted prometheus.Counter
	Rejected  prometheus.Counter
	Panics    prometheus.Counter
}

// NewPoolMetrics creates and registers metrics for the pool named name.
func NewPoolMetrics(reg prometheus.Registerer, name string) *PoolMetrics {
	labels := prometheus.Labels{"pool": name}
	m := &PoolMetrics{
		Submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "workerpool",
			Name:        "tasks_submitted_total",
			Help:        "Total number of tasks accepted into the backlog.",
			ConstLabels: labels,
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "workerpool",
			Name:        "tasks_rejected_total",
			Help:        "Total number of tasks dropped because the backlog was full.",
			ConstLabels: labels,
		}),
		Panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "workerpool",
			Name:        "task_panics_total",
			Help:        "Total number of tasks that panicked.",
			ConstLabels: labels,
		}),
	}

	reg.MustRegister(m.Submitted, m.Rejected, m.Panics)
	return m
}

func (m *PoolMetrics) TaskSubmitted() { m.Submitted.Inc() }

func (m *PoolMetrics) TaskRejected() { m.Rejected.Inc() }

func (m *PoolMetrics) TaskPanicked() { m.Panics.Inc() }
