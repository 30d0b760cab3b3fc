package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "optimization_active_jobs",
		Help: "Number of optimization jobs currently running.",
	})

	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "optimization_jobs_total",
		Help: "Finished optimization jobs by terminal status.",
	}, []string{"status"})

	evaluationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "optimization_evaluations_total",
		Help: "Candidate solutions evaluated across all jobs.",
	})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "optimization_job_duration_seconds",
		Help:    "Wall-clock duration of optimization jobs.",
		Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
	})
)
