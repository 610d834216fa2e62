// Package metrics holds the prometheus collectors for the dispatch loop.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics aggregates the engine's collectors. Register once per process.
type Metrics struct {
	// EventsHandled counts inbound events by input kind and step outcome.
	EventsHandled *prometheus.CounterVec

	// ActiveSessions tracks the number of in-flight workflow sessions.
	ActiveSessions prometheus.Gauge

	// NotifyFailures counts best-effort notification sends that failed.
	NotifyFailures prometheus.Counter

	// SlotReservations counts ledger operations by result.
	SlotReservations *prometheus.CounterVec
}

// New creates and registers the collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsHandled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "haley_events_handled_total",
				Help: "Inbound events handled, by input kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "haley_active_sessions",
				Help: "In-flight workflow sessions.",
			},
		),
		NotifyFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "haley_notify_failures_total",
				Help: "Best-effort notification sends that failed.",
			},
		),
		SlotReservations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "haley_slot_reservations_total",
				Help: "Capacity ledger operations, by result.",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(m.EventsHandled, m.ActiveSessions, m.NotifyFailures, m.SlotReservations)
	return m
}
