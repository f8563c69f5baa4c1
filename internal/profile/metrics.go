package profile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	extractCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bellhop",
			Name:      "extract_calls_total",
			Help:      "Total field extraction calls",
		},
		[]string{"field", "status"},
	)

	confidenceClampedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bellhop",
			Name:      "merge_confidence_clamped_total",
			Help:      "Fragments whose confidence fell outside [0,1] and was clamped",
		},
		[]string{"field"},
	)

	extractDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bellhop",
			Name:      "extract_duration_seconds",
			Help:      "Duration of field extraction calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8), // 0.25s to ~32s
		},
	)
)
