package metrics

import "sync"

// Mock is a mock implementation of the Metrics interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu                 sync.Mutex
	confirmations      int
	matches            int
	withdrawals        map[WithdrawSource]int
	autoWithdrawFailed int
	cancellations      int
	writeConflicts     int
	recomputeDurations []float64
	activeEnforcers    int
	matchesCompleted   int
	processed          int
	slackNotifSent     int
	slackNotifFailed   int
	startupTime        float64
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{
		withdrawals: make(map[WithdrawSource]int),
	}
}

func (m *Mock) IncConfirmations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmations++
}

func (m *Mock) IncMatches() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches++
}

func (m *Mock) IncWithdrawals(source WithdrawSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.withdrawals[source]++
}

func (m *Mock) IncAutoWithdrawFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoWithdrawFailed++
}

func (m *Mock) IncCancellations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancellations++
}

func (m *Mock) IncWriteConflicts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeConflicts++
}

func (m *Mock) ObserveRecomputeDuration(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recomputeDurations = append(m.recomputeDurations, seconds)
}

func (m *Mock) SetActiveEnforcers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeEnforcers = n
}

func (m *Mock) IncMatchesCompleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matchesCompleted++
}

func (m *Mock) ObserveProcessingDuration(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed++
}

func (m *Mock) IncSlackNotifSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slackNotifSent++
}

func (m *Mock) IncSlackNotifFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slackNotifFailed++
}

func (m *Mock) SetStartupTime(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startupTime = duration
}

// Confirmations returns the number of times IncConfirmations was called.
func (m *Mock) Confirmations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.confirmations
}

// Matches returns the number of times IncMatches was called.
func (m *Mock) Matches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matches
}

// Withdrawals returns the withdrawal count for a source.
func (m *Mock) Withdrawals(source WithdrawSource) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.withdrawals[source]
}

func (m *Mock) AutoWithdrawFailed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.autoWithdrawFailed
}

func (m *Mock) Cancellations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancellations
}

func (m *Mock) WriteConflicts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeConflicts
}

// Recomputes returns how many recompute durations were observed.
func (m *Mock) Recomputes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recomputeDurations)
}

func (m *Mock) ActiveEnforcers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeEnforcers
}

func (m *Mock) MatchesCompleted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matchesCompleted
}

// Processed returns how many processing durations were observed.
func (m *Mock) Processed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processed
}

// SlackNotifSent returns the number of times IncSlackNotifSent was called.
func (m *Mock) SlackNotifSent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slackNotifSent
}

// SlackNotifFailed returns the number of times IncSlackNotifFailed was called.
func (m *Mock) SlackNotifFailed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slackNotifFailed
}
