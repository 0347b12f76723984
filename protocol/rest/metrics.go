package rest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promRequestCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ffiec",
		Subsystem: "rest",
		Name:      "request_count",
		Help:      "Number of requests sent to the REST service",
	},
		[]string{"endpoint", "method", "status"},
	)
	promRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ffiec",
		Subsystem: "rest",
		Name:      "request_duration_ms",
		Help:      "Duration of REST requests in milliseconds, excluding rate limiter waits",
		Buckets: []float64{
			50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000,
		},
	},
		[]string{"endpoint"},
	)
	promFacsimileFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ffiec",
		Subsystem: "rest",
		Name:      "facsimile_candidate_skips",
		Help:      "Number of facsimile candidates skipped before one answered",
	},
		[]string{"series", "endpoint", "method"},
	)
	promNormalizationWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ffiec",
		Subsystem: "rest",
		Name:      "normalization_warning_count",
		Help:      "Number of warnings raised while normalizing REST payloads",
	},
		[]string{"endpoint"},
	)
)
