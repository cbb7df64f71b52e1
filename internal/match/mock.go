package match

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/mauv0809/scrim-scheduler/internal/slot"
)

// MockStore is an in-memory Store for tests.
type MockStore struct {
	mu      sync.Mutex
	matches []*ScheduledMatch

	CreateScheduledMatchFunc func(ctx context.Context, m *ScheduledMatch) (*ScheduledMatch, error)
	CancelScheduledMatchFunc func(ctx context.Context, proposalID string, id slot.ID) error

	CreateCalls []*ScheduledMatch
	CancelCalls []slot.ID
}

func NewMock() *MockStore {
	return &MockStore{}
}

func (m *MockStore) CreateScheduledMatch(ctx context.Context, sm *ScheduledMatch) (*ScheduledMatch, error) {
	m.mu.Lock()
	m.CreateCalls = append(m.CreateCalls, sm)
	fn := m.CreateScheduledMatchFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, sm)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.matches {
		if existing.ProposalID == sm.ProposalID && existing.Slot == sm.Slot {
			if existing.Status == StatusCancelled {
				existing.Status = StatusUpcoming
			}
			return existing, nil
		}
	}
	stored := *sm
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.Status == "" {
		stored.Status = StatusUpcoming
	}
	stored.StartsAt = stored.Slot.In(stored.Week)
	m.matches = append(m.matches, &stored)
	return &stored, nil
}

func (m *MockStore) CancelScheduledMatch(ctx context.Context, proposalID string, id slot.ID) error {
	m.mu.Lock()
	m.CancelCalls = append(m.CancelCalls, id)
	fn := m.CancelScheduledMatchFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, proposalID, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.matches {
		if existing.ProposalID == proposalID && existing.Slot == id {
			existing.Status = StatusCancelled
		}
	}
	return nil
}

func (m *MockStore) GetByProposal(ctx context.Context, proposalID string) ([]*ScheduledMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ScheduledMatch
	for _, existing := range m.matches {
		if existing.ProposalID == proposalID {
			c := *existing
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *MockStore) ListForTeamWeek(ctx context.Context, teamID string, w slot.Week) ([]*ScheduledMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ScheduledMatch
	for _, existing := range m.matches {
		if existing.Week == w && existing.Involves(teamID) {
			c := *existing
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *MockStore) ListByStatus(ctx context.Context, status Status) ([]*ScheduledMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ScheduledMatch
	for _, existing := range m.matches {
		if existing.Status == status {
			c := *existing
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *MockStore) UpdateStatus(ctx context.Context, matchID string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.matches {
		if existing.ID == matchID {
			existing.Status = status
			return nil
		}
	}
	return ErrNotFound
}
