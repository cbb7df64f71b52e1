package metrics

// Metrics defines the interface for collecting scheduling metrics.
type Metrics interface {
	IncConfirmations()
	IncMatches()
	IncWithdrawals(source WithdrawSource)
	IncAutoWithdrawFailed()
	IncCancellations()
	IncWriteConflicts()
	ObserveRecomputeDuration(seconds float64)
	SetActiveEnforcers(n int)
	IncMatchesCompleted()
	ObserveProcessingDuration(duration float64)
	IncSlackNotifSent()
	IncSlackNotifFailed()
	SetStartupTime(duration float64)
}

// CounterStore persists counters across restarts.
type CounterStore interface {
	Increment(key string)
	GetAll() (map[string]int, error)
}
