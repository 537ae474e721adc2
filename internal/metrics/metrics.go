package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TradesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trade_recorder_trades_recorded_total",
		Help: "Total number of trades appended to the trade log",
	}, []string{"side"})

	SubmissionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trade_recorder_submissions_rejected_total",
		Help: "Total number of submissions that did not produce a row",
	}, []string{"reason"})

	StoreLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trade_recorder_store_request_seconds",
		Help:    "Latency of table store reads and writes",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "op", "outcome"})

	VersionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trade_recorder_version_conflicts_total",
		Help: "Total number of writes rejected because the table changed since it was read",
	})
)

// ObserveStore records the latency of one store call started at start.
func ObserveStore(backend, op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	StoreLatency.WithLabelValues(backend, op, outcome).Observe(time.Since(start).Seconds())
}
