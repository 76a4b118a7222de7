package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcode_jobs_processed_total",
		Help: "Total number of jobs driven to a terminal state, by status",
	}, []string{"status"})

	JobsEnqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcode_jobs_enqueued_total",
		Help: "Total number of job messages published to the work queue",
	})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transcode_job_duration_seconds",
		Help:    "Duration of job pipeline stages",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcode_active_jobs",
		Help: "Number of jobs currently being executed by this worker",
	})

	MalformedMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcode_malformed_messages_total",
		Help: "Total number of queue messages dropped as malformed",
	})

	RedeliveriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcode_redeliveries_total",
		Help: "Total number of messages received after a visibility timeout expiry",
	})

	DeadLetteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcode_dead_lettered_total",
		Help: "Total number of messages routed to the dead-letter stream",
	})
)
