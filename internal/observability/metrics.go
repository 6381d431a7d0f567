package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline counters, exposed on /metrics. Labels name the cleaned
// output ("accidents", "victims") rather than the raw source file.
var (
	RowsRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accidents_clean_rows_read_total",
		Help: "Raw rows read by the cleaning stage.",
	}, []string{"table"})

	RowsKept = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accidents_clean_rows_kept_total",
		Help: "Rows written to the cleaned CSVs.",
	}, []string{"table"})

	RowsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accidents_clean_rows_dropped_total",
		Help: "Rows dropped by row-level validation, by reason.",
	}, []string{"table", "reason"})

	LoadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "accidents_store_loads_total",
		Help: "Successful full refreshes of the SQLite store.",
	})

	LoadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "accidents_store_load_failures_total",
		Help: "Rolled-back store loads.",
	})
)
