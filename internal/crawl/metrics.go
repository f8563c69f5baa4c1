package crawl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	crawlPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bellhop",
			Name:      "crawl_pages_total",
			Help:      "Total pages processed during crawls",
		},
		[]string{"status"},
	)

	crawlDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bellhop",
			Name:      "crawl_duration_seconds",
			Help:      "Duration of whole-site crawls in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17m
		},
		[]string{"host"},
	)

	renderPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bellhop",
			Name:      "render_pages_total",
			Help:      "Total pages rendered via headless browser",
		},
		[]string{"status"},
	)

	renderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bellhop",
			Name:      "render_duration_seconds",
			Help:      "Duration of headless browser page renders in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~64s
		},
	)

	linksDiscoveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bellhop",
			Name:      "links_discovered_total",
			Help:      "Total hyperlinks discovered on crawled pages",
		},
	)
)
