package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ScansTotal counts scan operations by kind (parent, child, finish) and outcome.
var ScansTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tracetrack",
		Subsystem: "scan",
		Name:      "total",
		Help:      "Total number of scan operations.",
	},
	[]string{"kind", "outcome"},
)

// ScanDuplicatesSuppressedTotal counts duplicate parent and child scans
// suppressed within the noisy-double-scan window.
var ScanDuplicatesSuppressedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "tracetrack",
		Subsystem: "scan",
		Name:      "duplicates_suppressed_total",
		Help:      "Total number of duplicate parent and child scans suppressed.",
	},
)

// BillsFinalizedTotal counts bills transitioned to completed.
var BillsFinalizedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "tracetrack",
		Subsystem: "bill",
		Name:      "finalized_total",
		Help:      "Total number of bills finalized.",
	},
)

// LoginAttemptsTotal counts login attempts by outcome (ok, bad_password, locked, needs_2fa).
var LoginAttemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tracetrack",
		Subsystem: "auth",
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts by outcome.",
	},
	[]string{"outcome"},
)

// StatsReconcileDrift records the absolute counter drift corrected by the
// last reconciliation pass, per counter name.
var StatsReconcileDrift = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "tracetrack",
		Subsystem: "stats",
		Name:      "reconcile_drift",
		Help:      "Absolute drift corrected by the last statistics reconciliation, by counter.",
	},
	[]string{"counter"},
)

// All returns all TraceTrack-specific metrics for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		ScansTotal,
		ScanDuplicatesSuppressedTotal,
		BillsFinalizedTotal,
		LoginAttemptsTotal,
		StatsReconcileDrift,
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process collectors,
// the shared HTTPRequestDuration metric, and any additional service-specific
// collectors passed as arguments.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestDuration,
	)
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}

// HTTPRequestDuration tracks HTTP request latency, labelled by route.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "tracetrack",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)
