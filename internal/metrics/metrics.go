// Package metrics holds the process wide prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OptimisticSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatcore",
			Name:      "optimistic_sends_total",
			Help:      "Optimistic message writes by result (confirmed, failed, retried).",
		},
		[]string{"result"},
	)

	RemoteEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatcore",
			Name:      "remote_events_total",
			Help:      "Realtime events applied by sessions, by event type.",
		},
		[]string{"type"},
	)

	HistoryLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatcore",
			Name:      "history_loads_total",
			Help:      "Message history loads by result (ok, error, stale).",
		},
		[]string{"result"},
	)

	Reconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatcore",
			Name:      "transport_reconnects_total",
			Help:      "Realtime transport resubscriptions observed by sessions.",
		},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chatcore",
			Name:      "active_sessions",
			Help:      "Connected client sessions.",
		},
	)
)

func init() {
	prometheus.MustRegister(OptimisticSends)
	prometheus.MustRegister(RemoteEvents)
	prometheus.MustRegister(HistoryLoads)
	prometheus.MustRegister(Reconnects)
	prometheus.MustRegister(ActiveSessions)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
