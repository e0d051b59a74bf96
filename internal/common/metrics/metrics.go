// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ApplicationsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "applications_submitted_total",
			Help: "Total number of applications persisted",
		},
	)

	ApplicationsDuplicate = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "applications_duplicate_total",
			Help: "Total number of submissions refused because a pending application exists",
		},
	)

	ApplicationsDecided = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applications_decided_total",
			Help: "Total number of resolved applications by decision",
		},
		[]string{"decision"},
	)

	ApplicationsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "applications_pending",
			Help: "Number of pending applications at the last list or submission",
		},
	)

	DispatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_failures_total",
			Help: "Total number of failed side effects by step",
		},
		[]string{"step"},
	)

	TasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_completed_total",
			Help: "Total number of interactions and commands completed",
		},
		[]string{"task_type"},
	)

	TasksFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_failed_total",
			Help: "Total number of interactions and commands failed",
		},
		[]string{"task_type", "error_code"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "task_duration_seconds",
			Help: "Duration of interaction and command processing in seconds",
		},
		[]string{"task_type"},
	)

	PlatformRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platform_requests_total",
			Help: "Total number of chat platform bridge calls",
		},
		[]string{"operation", "outcome"},
	)
)
