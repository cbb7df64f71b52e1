package team

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MockStore is an in-memory Store for tests. It is safe for concurrent use.
type MockStore struct {
	mu    sync.Mutex
	teams map[string]*Team

	GetTeamFunc func(ctx context.Context, id string) (*Team, error)

	GetTeamCalls []string
}

// NewMock creates a mock store seeded with teams.
func NewMock(teams ...*Team) *MockStore {
	m := &MockStore{teams: make(map[string]*Team)}
	for _, t := range teams {
		m.teams[t.ID] = t
	}
	return m
}

func (m *MockStore) UpsertTeam(ctx context.Context, t *Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams[t.ID] = t
	return nil
}

func (m *MockStore) GetTeam(ctx context.Context, id string) (*Team, error) {
	m.mu.Lock()
	m.GetTeamCalls = append(m.GetTeamCalls, id)
	fn := m.GetTeamFunc
	t, ok := m.teams[id]
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, id)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t, nil
}

func (m *MockStore) ListTeams(ctx context.Context) ([]*Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	teams := make([]*Team, 0, len(m.teams))
	for _, t := range m.teams {
		teams = append(teams, t)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].Tag < teams[j].Tag })
	return teams, nil
}

func (m *MockStore) ListByDivision(ctx context.Context, division string) ([]*Team, error) {
	all, _ := m.ListTeams(ctx)
	var teams []*Team
	for _, t := range all {
		if t.InDivision(division) {
			teams = append(teams, t)
		}
	}
	return teams, nil
}

func (m *MockStore) DeleteTeam(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.teams, id)
	return nil
}
