package firewall

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// packetDecisions tracks packet verdicts by action and source
	// Labels: action (allow, deny, quarantine), source (ai, rule)
	packetDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ztcore_packet_decisions_total",
			Help: "Total number of packet decisions grouped by action and source",
		},
		[]string{"action", "source"},
	)

	// ruleCount tracks the current number of firewall rules
	ruleCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ztcore_firewall_rules",
			Help: "Current number of firewall rules in the store",
		},
	)

	// persistErrors tracks failed rule set persistence attempts
	persistErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ztcore_firewall_persist_errors_total",
			Help: "Total number of failed firewall rule persistence attempts",
		},
	)
)

// recordDecision records a packet decision outcome
func recordDecision(action DecisionAction, source string) {
	packetDecisions.WithLabelValues(string(action), source).Inc()
}
