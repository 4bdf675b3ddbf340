package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	NotificationsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_emitted_total",
			Help: "Notifications persisted to the user inbox",
		},
		[]string{"type"},
	)

	NotificationsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_suppressed_total",
			Help: "Candidates suppressed by the cooldown gate",
		},
		[]string{"type"},
	)

	CandidatesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_candidates_failed_total",
			Help: "Candidates skipped because of a per-candidate failure",
		},
		[]string{"type", "reason"},
	)

	ChannelDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_channel_deliveries_total",
			Help: "Outbound channel delivery attempts",
		},
		[]string{"channel", "status"},
	)

	RuleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_rule_duration_seconds",
			Help:    "Duration of a dispatch rule run",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"type"},
	)

	SchedulerRearms = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_scheduler_rearms_total",
			Help: "Scheduler rearm attempts",
		},
		[]string{"type", "result"},
	)

	ArmedSchedules = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_scheduler_armed",
			Help: "Number of notification types with a live timer",
		},
	)
)
