// Package metrics provides Prometheus metrics for the event ingest pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsReceivedTotal counts inbound events by kind.
	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentmon",
			Subsystem: "ingest",
			Name:      "events_received_total",
			Help:      "Total number of inbound stream events",
		},
		[]string{"event"},
	)

	// EventsDroppedTotal counts events discarded without effect.
	EventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentmon",
			Subsystem: "ingest",
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped without applying state",
		},
		[]string{"reason"}, // "invalid_payload", "unknown_slot", "unknown_agent"
	)

	// SourceConnected reflects the transport connection state.
	SourceConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "agentmon",
			Subsystem: "ingest",
			Name:      "source_connected",
			Help:      "1 when the event source is connected, 0 otherwise",
		},
	)

	// ReconnectsTotal counts transport reconnect attempts.
	ReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agentmon",
			Subsystem: "ingest",
			Name:      "reconnects_total",
			Help:      "Total number of transport reconnect attempts",
		},
	)

	// TrackedRuns tracks agents with a run currently in flight.
	TrackedRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "agentmon",
			Subsystem: "state",
			Name:      "tracked_runs",
			Help:      "Number of agents with a run currently in flight",
		},
	)

	// TrackedExecutions tracks executions with a reconstructed action sequence.
	TrackedExecutions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "agentmon",
			Subsystem: "state",
			Name:      "tracked_executions",
			Help:      "Number of executions with a reconstructed action sequence",
		},
	)
)
