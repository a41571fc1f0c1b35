package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AcceptsTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "field_dispatch", Name: "accepts_total", Help: "Total successful job acceptances"})
	DeclinesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "field_dispatch", Name: "declines_total", Help: "Total job declines"})
	ReportsTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "field_dispatch", Name: "mileage_reports_total", Help: "Total mileage reports built"})

	CaptureFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "field_dispatch", Name: "capture_failures_total", Help: "GPS capture failures by reason"},
		[]string{"reason"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "field_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "field_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
