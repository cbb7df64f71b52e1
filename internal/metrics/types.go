package metrics

import "github.com/prometheus/client_golang/prometheus"

// WithdrawSource labels who cleared a confirmation.
type WithdrawSource string

const (
	WithdrawByUser WithdrawSource = "user"
	WithdrawByAuto WithdrawSource = "auto"
)

// Service holds all the Prometheus metrics for the application.
type Service struct {
	Confirmations      prometheus.Counter
	Matches            prometheus.Counter
	Withdrawals        *prometheus.CounterVec
	AutoWithdrawFailed prometheus.Counter
	Cancellations      prometheus.Counter
	WriteConflicts     prometheus.Counter
	RecomputeDuration  prometheus.Histogram
	ActiveEnforcers    prometheus.Gauge
	MatchesCompleted   prometheus.Counter
	ProcessingDuration prometheus.Histogram
	SlackNotifSent     prometheus.Counter
	SlackNotifFailed   prometheus.Counter
	StartupTimeSeconds prometheus.Gauge
}
