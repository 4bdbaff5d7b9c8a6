package hotbuf

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var residentRecords = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "newsledger_hot_buffer_records",
	Help: "Records resident in the hot buffer.",
})
