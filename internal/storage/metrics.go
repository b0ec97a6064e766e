package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "wikidoc"

var (
	// queryDuration measures store operations.
	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "storage",
			Name:      "query_duration_seconds",
			Help:      "Duration of storage operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"op"},
	)

	// queryErrorsTotal counts failed store operations. Missing rows are not
	// failures.
	queryErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "storage",
			Name:      "query_errors_total",
			Help:      "Total number of failed storage operations",
		},
		[]string{"op"},
	)
)
