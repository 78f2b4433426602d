package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_backend_requests_total",
			Help: "Total number of requests sent to the studio backend",
		},
		[]string{"method", "route", "status"},
	)

	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studio_backend_request_duration_seconds",
			Help:    "Studio backend request duration in seconds (time to response headers)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ProgressSnapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_progress_snapshots_total",
			Help: "Deployment progress snapshots received, by transport mode",
		},
		[]string{"mode"},
	)

	ProgressFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studio_progress_sse_fallbacks_total",
			Help: "Tracking sessions that fell back from SSE to polling",
		},
	)

	ProgressSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_progress_sessions_total",
			Help: "Finished tracking sessions, by outcome",
		},
		[]string{"outcome"},
	)

	DeploymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_deployments_total",
			Help: "Deployment requests, by result",
		},
		[]string{"result"},
	)

	HealthChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_health_checks_total",
			Help: "Model health checks, by resulting status",
		},
		[]string{"status"},
	)
)
