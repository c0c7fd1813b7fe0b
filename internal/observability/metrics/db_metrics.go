package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "stored_charts",
			Help: "Chart snapshots in the store",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM chart_snapshots")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "stored_invalid_charts",
			Help: "Stored chart snapshots flagged invalid by the validator",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM chart_snapshots WHERE NOT is_valid")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	return float64(count)
}
