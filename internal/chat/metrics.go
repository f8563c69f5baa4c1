package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bellhop",
			Name:      "chat_turns_total",
			Help:      "Total conversation turns processed",
		},
		[]string{"kind"},
	)

	turnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bellhop",
			Name:      "chat_turn_duration_seconds",
			Help:      "Duration of full conversation turns in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3m
		},
	)

	crawlTriggersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bellhop",
			Name:      "chat_crawl_triggers_total",
			Help:      "Crawls triggered by URLs pasted into the chat",
		},
		[]string{"status"},
	)
)
