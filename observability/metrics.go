package observability

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsObserver counts events by type and source in a Prometheus counter
// named propwatch_events_total.
type MetricsObserver struct {
	events *prometheus.CounterVec
}

// NewMetricsObserver creates the counter and registers it with reg. If an
// identical collector is already registered, the existing one is reused so
// several watchers can share a registry.
func NewMetricsObserver(reg prometheus.Registerer) (*MetricsObserver, error) {
	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propwatch_events_total",
			Help: "Total number of watcher events by type and source.",
		},
		[]string{"type", "source"},
	)

	if reg != nil {
		if err := reg.Register(events); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
			existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				return nil, err
			}
			events = existing
		}
	}

	return &MetricsObserver{events: events}, nil
}

func (m *MetricsObserver) OnEvent(_ context.Context, event Event) {
	m.events.WithLabelValues(string(event.Type), event.Source).Inc()
}

// Counter exposes the underlying counter vector.
func (m *MetricsObserver) Counter() *prometheus.CounterVec {
	return m.events
}
