package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docflow_uploads_total",
			Help: "Uploaded files by outcome (accepted, rejected, duplicate).",
		},
		[]string{"outcome"},
	)

	processingTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docflow_processing_total",
			Help: "Finished processing jobs by final document status.",
		},
		[]string{"status"},
	)

	processingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docflow_processing_duration_seconds",
			Help:    "Wall time of a single processing job.",
			Buckets: prometheus.DefBuckets,
		},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docflow_processing_queue_depth",
			Help: "Jobs waiting for a processing worker.",
		},
	)

	commitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docflow_commits_total",
			Help: "Review commits by result.",
		},
		[]string{"result"},
	)

	clientCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docflow_client_cache_hits_total",
		Help: "Client directory cache hits.",
	})
	clientCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docflow_client_cache_misses_total",
		Help: "Client directory cache misses.",
	})
)
