package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
)

// RegisterDBStats exposes database/sql pool statistics for the local state
// store as Prometheus gauges.
func RegisterDBStats(db *sql.DB) {
	prometheus.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "studio_store_open_conns",
			Help: "Number of open connections to the state database",
		}, func() float64 {
			return float64(db.Stats().OpenConnections)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "studio_store_in_use_conns",
			Help: "Number of state database connections currently in use",
		}, func() float64 {
			return float64(db.Stats().InUse)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "studio_store_wait_count",
			Help: "Total number of waits for a state database connection",
		}, func() float64 {
			return float64(db.Stats().WaitCount)
		}),
	)
}

// RegisterActiveSessions exposes the number of deployments currently being
// tracked, as reported by count.
func RegisterActiveSessions(count func() int) {
	prometheus.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "studio_progress_active_sessions",
			Help: "Number of deployments currently being tracked",
		}, func() float64 {
			return float64(count())
		}),
	)
}
