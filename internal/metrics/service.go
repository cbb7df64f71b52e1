package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

// NewMetricsHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		Confirmations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scrim_confirmations_total",
			Help: "The total number of slot confirmations accepted.",
		}),
		Matches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scrim_matches_total",
			Help: "The total number of proposals that reached a two-sided match.",
		}),
		Withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scrim_withdrawals_total",
			Help: "The total number of confirmations withdrawn, by source.",
		}, []string{"source"}),
		AutoWithdrawFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scrim_auto_withdraw_failures_total",
			Help: "The total number of automatic withdrawals that failed and will be retried.",
		}),
		Cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scrim_cancellations_total",
			Help: "The total number of proposals cancelled.",
		}),
		WriteConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scrim_write_conflicts_total",
			Help: "The total number of proposal writes that lost a concurrent update.",
		}),
		RecomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scrim_comparison_recompute_duration_seconds",
			Help:    "The duration of a comparison aggregate recomputation.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		ActiveEnforcers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scrim_active_enforcers",
			Help: "The number of running consistency enforcers.",
		}),
		MatchesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scrim_matches_completed_total",
			Help: "The total number of scheduled matches moved to completed.",
		}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scrim_match_processing_duration_ms",
			Help:    "The duration of processing a single scheduled match in milliseconds.",
			Buckets: prometheus.LinearBuckets(10, 20, 10),
		}),
		SlackNotifSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scrim_slack_notifications_sent_total",
			Help: "The total number of Slack notifications successfully sent.",
		}),
		SlackNotifFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scrim_slack_notifications_failed_total",
			Help: "The total number of Slack notifications that failed to send.",
		}),
		StartupTimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scrim_startup_duration_seconds",
			Help: "The duration of the application startup in seconds.",
		}),
	}

	reg.MustRegister(
		s.Confirmations,
		s.Matches,
		s.Withdrawals,
		s.AutoWithdrawFailed,
		s.Cancellations,
		s.WriteConflicts,
		s.RecomputeDuration,
		s.ActiveEnforcers,
		s.MatchesCompleted,
		s.ProcessingDuration,
		s.SlackNotifSent,
		s.SlackNotifFailed,
		s.StartupTimeSeconds,
	)

	return s
}

func (s *Service) IncConfirmations() {
	s.Confirmations.Inc()
}

func (s *Service) IncMatches() {
	s.Matches.Inc()
}

func (s *Service) IncWithdrawals(source WithdrawSource) {
	s.Withdrawals.WithLabelValues(string(source)).Inc()
}

func (s *Service) IncAutoWithdrawFailed() {
	s.AutoWithdrawFailed.Inc()
}

func (s *Service) IncCancellations() {
	s.Cancellations.Inc()
}

func (s *Service) IncWriteConflicts() {
	s.WriteConflicts.Inc()
}

func (s *Service) ObserveRecomputeDuration(seconds float64) {
	s.RecomputeDuration.Observe(seconds)
}

func (s *Service) SetActiveEnforcers(n int) {
	s.ActiveEnforcers.Set(float64(n))
}

func (s *Service) IncMatchesCompleted() {
	s.MatchesCompleted.Inc()
}

func (s *Service) ObserveProcessingDuration(duration float64) {
	s.ProcessingDuration.Observe(duration)
}

func (s *Service) IncSlackNotifSent() {
	s.SlackNotifSent.Inc()
}

func (s *Service) IncSlackNotifFailed() {
	s.SlackNotifFailed.Inc()
}

func (s *Service) SetStartupTime(duration float64) {
	s.StartupTimeSeconds.Set(duration)
}
