// Package metrics exposes Prometheus metrics for the loading aggregator and
// the operations it tracks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iliamunaev/taskload/internal/service/observable"
	"github.com/iliamunaev/taskload/internal/service/task"
)

const namespace = "taskload"

// Metrics holds the service's collectors.
type Metrics struct {
	loading     prometheus.Gauge
	transitions *prometheus.CounterVec
	operations  *prometheus.CounterVec
	underflows  prometheus.Counter
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		loading: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loading",
			Help:      "1 while at least one tracked operation is in flight, otherwise 0",
		}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loading_transitions_total",
			Help:      "Number of loading state changes, by new state",
		}, []string{"state"}),
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Number of tracked operations that finished, by outcome",
		}, []string{"outcome"}),
		underflows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "underflows_total",
			Help:      "Number of End calls made with nothing in flight",
		}),
	}
}

// ObserveLoading records a published loading state. The first value a
// subscriber sees is the current state, not a transition; pass initial=true
// for it so only the gauge is set.
func (m *Metrics) ObserveLoading(loading, initial bool) {
	if loading {
		m.loading.Set(1)
	} else {
		m.loading.Set(0)
	}
	if initial {
		return
	}
	m.transitions.WithLabelValues(stateLabel(loading)).Inc()
}

// WatchLoading subscribes to src and records every published state.
func (m *Metrics) WatchLoading(src observable.Source[bool]) *observable.Subscription[bool] {
	// Deliveries are serialized, so first needs no lock.
	first := true
	return src.Subscribe(func(v bool) {
		m.ObserveLoading(v, first)
		first = false
	})
}

// ObserveOutcome counts a finished operation.
func (m *Metrics) ObserveOutcome(o task.Outcome) {
	m.operations.WithLabelValues(o.String()).Inc()
}

// ObserveUnderflow counts an unbalanced End.
func (m *Metrics) ObserveUnderflow() {
	m.underflows.Inc()
}

func stateLabel(loading bool) string {
	if loading {
		return "loading"
	}
	return "idle"
}
