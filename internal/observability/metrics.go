package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScanAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facepos",
		Name:      "scan_attempts_total",
		Help:      "Total number of recognition attempts across capture sessions",
	}, []string{"scan_id"})

	FacesRecognized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facepos",
		Name:      "faces_recognized_total",
		Help:      "Total number of successful gallery matches",
	})

	ScansExhausted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facepos",
		Name:      "scans_exhausted_total",
		Help:      "Capture sessions that ended without a match",
	}, []string{"policy"})

	Enrollments = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facepos",
		Name:      "enrollments_total",
		Help:      "Total number of identities enrolled",
	})

	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facepos",
		Name:      "orders_created_total",
		Help:      "Total number of committed orders",
	}, []string{"payment_method"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facepos",
		Name:      "inference_duration_seconds",
		Help:      "Duration of ML inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	ActiveScans = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facepos",
		Name:      "active_scans",
		Help:      "Number of capture sessions currently running",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facepos",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facepos",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
