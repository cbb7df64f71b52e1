package notifier

import (
	"sync"

	"github.com/mauv0809/scrim-scheduler/internal/enforcer"
	"github.com/mauv0809/scrim-scheduler/internal/match"
	"github.com/mauv0809/scrim-scheduler/internal/team"
)

// MatchCall records one match notification.
type MatchCall struct {
	Match *match.ScheduledMatch
	TeamA *team.Team
	TeamB *team.Team
}

// Mock is a mock implementation of the Notifier interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	// Call records
	SendMatchScheduledCalls []MatchCall
	SendMatchCompletedCalls []MatchCall
	SendAutoWithdrawnCalls  []*enforcer.Withdrawn

	// Optional error hooks
	SendMatchScheduledErr error
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{}
}

// Reset clears all call records.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendMatchScheduledCalls = nil
	m.SendMatchCompletedCalls = nil
	m.SendAutoWithdrawnCalls = nil
}

func (m *Mock) SendMatchScheduled(sm *match.ScheduledMatch, teamA, teamB *team.Team, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendMatchScheduledCalls = append(m.SendMatchScheduledCalls, MatchCall{Match: sm, TeamA: teamA, TeamB: teamB})
	return m.SendMatchScheduledErr
}

func (m *Mock) SendMatchCompleted(sm *match.ScheduledMatch, teamA, teamB *team.Team, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendMatchCompletedCalls = append(m.SendMatchCompletedCalls, MatchCall{Match: sm, TeamA: teamA, TeamB: teamB})
	return nil
}

func (m *Mock) SendAutoWithdrawn(ev *enforcer.Withdrawn, t *team.Team, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendAutoWithdrawnCalls = append(m.SendAutoWithdrawnCalls, ev)
	return nil
}

// Scheduled returns a copy of the recorded booking notifications.
func (m *Mock) Scheduled() []MatchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MatchCall(nil), m.SendMatchScheduledCalls...)
}

// Completed returns a copy of the recorded completion notifications.
func (m *Mock) Completed() []MatchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MatchCall(nil), m.SendMatchCompletedCalls...)
}

// Withdrawn returns a copy of the recorded withdrawal notifications.
func (m *Mock) Withdrawn() []*enforcer.Withdrawn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*enforcer.Withdrawn(nil), m.SendAutoWithdrawnCalls...)
}
