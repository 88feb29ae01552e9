package navsys

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const tracerName = "gravnav.navsys"

var (
	buildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gravnav_builds_total",
		Help: "Volume builds by result",
	}, []string{"result"})

	buildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gravnav_build_duration_seconds",
		Help:    "Volume build duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	volumeNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gravnav_volume_nodes",
		Help: "Nodes in the installed volume",
	})

	pathRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gravnav_path_requests_total",
		Help: "Path requests by result",
	}, []string{"result"})

	pathSearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gravnav_path_search_duration_seconds",
		Help:    "Path search duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	}, []string{"algorithm"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gravnav_path_queue_depth",
		Help: "Path requests waiting for a worker",
	})
)
