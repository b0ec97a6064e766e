package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "wikidoc"

var (
	// jobsTotal counts jobs by terminal status.
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "pipeline",
			Name:      "jobs_total",
			Help:      "Ingest jobs by terminal status",
		},
		[]string{"status"},
	)

	// parseDuration measures the parse phase by input format.
	parseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "pipeline",
			Name:      "parse_duration_seconds",
			Help:      "Duration of document parsing in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"format"},
	)

	// queueDepth shows jobs waiting for a worker.
	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "pipeline",
			Name:      "queue_depth",
			Help:      "Jobs waiting in the ingest queue",
		},
	)

	// retriesTotal counts storage retries after lock contention.
	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "pipeline",
			Name:      "retries_total",
			Help:      "Storage operations retried after SQLite lock contention",
		},
		[]string{"op"},
	)
)
