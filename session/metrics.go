package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// sessionGauge tracks sessions by status
	// Labels: status (active, suspicious, quarantined, ended)
	sessionGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ztcore_sessions",
			Help: "Current number of sessions grouped by status",
		},
		[]string{"status"},
	)

	// anomalyAlerts tracks raised anomaly alerts by reason
	// Labels: reason (high_data_transfer, many_unique_destinations)
	anomalyAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ztcore_session_anomaly_alerts_total",
			Help: "Total number of session anomaly alerts grouped by reason",
		},
		[]string{"reason"},
	)
)
