// Package metrics implements Prometheus metrics for the runtime.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsStartedTotal counts runs admitted by begin_run.
	RunsStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visionflow_runs_started_total",
			Help: "Total number of runs admitted",
		},
		[]string{"source"},
	)

	// RunsDroppedTotal counts runs rejected by the admission gate.
	RunsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visionflow_runs_dropped_total",
			Help: "Total number of runs rejected because max_running was reached",
		},
		[]string{"source"},
	)

	// RunsRetiredTotal counts runs that reached full retirement.
	RunsRetiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visionflow_runs_retired_total",
			Help: "Total number of runs that fully retired",
		},
		[]string{"source"},
	)

	// RunsActive tracks the number of runs currently admitted and in flight.
	RunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "visionflow_runs_active",
			Help: "Number of runs currently admitted (not yet retired)",
		},
	)

	// InvocationsTotal counts component invocations by component and outcome.
	InvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visionflow_invocations_total",
			Help: "Total number of component invocations by outcome",
		},
		[]string{"component", "outcome"}, // outcome: started, succeeded, failed, skipped
	)

	// InvocationsCreatedTotal counts distinct (component, broadcast prefix)
	// invocation objects instantiated.
	InvocationsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visionflow_invocations_created_total",
			Help: "Total number of distinct component invocations instantiated",
		},
		[]string{"component"},
	)

	// InvocationLatencySeconds measures wall time inside Component.Run.
	InvocationLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "visionflow_invocation_latency_seconds",
			Help:    "Latency of a single component invocation",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 18),
		},
		[]string{"component"},
	)

	// ScopesActive tracks the number of open aggregation scopes across all
	// active runs — the live size of each Run's scopeTable, summed.
	ScopesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "visionflow_scopes_active",
			Help: "Number of currently open aggregation scopes across all runs",
		},
	)

	// ScopeUnderflowsTotal counts scope reference-count underflows: a bug
	// signal, not an expected runtime condition.
	ScopeUnderflowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visionflow_scope_underflows_total",
			Help: "Total number of aggregation scope reference-count underflows observed",
		},
	)

	// WorkQueueDepth is registered for the number of ready invocations
	// waiting for a free worker; nothing in the runtime sets it, so it
	// always reads zero.
	WorkQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "visionflow_work_queue_depth",
			Help: "Number of ready invocations waiting for a worker",
		},
	)
)
