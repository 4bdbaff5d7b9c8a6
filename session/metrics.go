package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	openSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "newsledger_sessions_open",
		Help: "Sessions currently open.",
	})

	droppedNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsledger_notifications_dropped_total",
		Help: "Notifications dropped before delivery, by reason.",
	}, []string{"reason"})

	reapedSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsledger_sessions_reaped_total",
		Help: "Sessions closed for inactivity.",
	})
)
