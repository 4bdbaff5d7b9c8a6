package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	appendedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsledger_records_appended_total",
		Help: "Records appended to the ledger.",
	})

	rejectedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsledger_records_rejected_total",
		Help: "Submissions rejected, by reason.",
	}, []string{"reason"})
)
