// Package metrics provides Prometheus metrics for FieldAudit.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "fieldaudit"
)

// Detection metrics
var (
	// DetectionRunsTotal counts detection batch runs.
	DetectionRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detect",
			Name:      "runs_total",
			Help:      "Total detection batch runs",
		},
	)

	// FindingsTotal counts findings by category.
	FindingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detect",
			Name:      "findings_total",
			Help:      "Total findings that passed their confidence gate",
		},
		[]string{"category"},
	)

	// DetectionDuration tracks detection batch latency.
	DetectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "detect",
			Name:      "run_duration_seconds",
			Help:      "Detection batch latency in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

// Workflow metrics
var (
	// AlertsTotal counts tracked alerts by priority.
	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "alerts_total",
			Help:      "Total alerts entering the workflow",
		},
		[]string{"priority"},
	)

	// OpenAlerts tracks alerts not yet resolved or closed.
	OpenAlerts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "open_alerts",
			Help:      "Alerts currently in a non-terminal state",
		},
	)

	// DispatchesTotal counts delivery attempts by kind and result.
	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "dispatches_total",
			Help:      "Total notification dispatches",
		},
		[]string{"kind", "result"}, // result: success, failure
	)

	// EscalationsTotal counts SLA escalations.
	EscalationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "escalations_total",
			Help:      "Total alerts escalated after missing their response SLA",
		},
	)

	// FollowupsTotal counts follow-up reminders sent.
	FollowupsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "followups_total",
			Help:      "Total follow-up reminders delivered",
		},
	)

	// ResolutionDuration tracks time from send to resolution.
	ResolutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "resolution_duration_seconds",
			Help:      "Time from first delivery to resolution in seconds",
			Buckets:   prometheus.ExponentialBuckets(60, 4, 10),
		},
	)
)

// HTTP metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
)

// Storage metrics
var (
	// StorageQueryDuration tracks query latency.
	StorageQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "query_duration_seconds",
			Help:      "Storage query latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	// StorageErrors counts storage operation errors.
	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Total storage operation errors",
		},
		[]string{"operation"},
	)
)
