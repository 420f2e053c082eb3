package storage

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts backend operations and fallbacks for a Chain.
type Metrics struct {
	operations *prometheus.CounterVec
	fallbacks  *prometheus.CounterVec
}

// NewMetrics creates the storage collectors and registers them with reg.
// A nil reg leaves the collectors unregistered, which is useful in tests.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snapshelf",
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Storage operations by backend, operation and result.",
		}, []string{"backend", "op", "result"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snapshelf",
			Subsystem: "storage",
			Name:      "fallbacks_total",
			Help:      "Operations that failed on a backend and moved down the chain.",
		}, []string{"from", "op"}),
	}

	if reg != nil {
		var registered []prometheus.Collector
		for _, c := range []prometheus.Collector{m.operations, m.fallbacks} {
			if err := reg.Register(c); err != nil {
				for _, r := range registered {
					reg.Unregister(r)
				}
				return nil, err
			}
			registered = append(registered, c)
		}
	}
	return m, nil
}

func (m *Metrics) observe(backend, op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(backend, op, result).Inc()
}

func (m *Metrics) fallback(from, op string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(from, op).Inc()
}
