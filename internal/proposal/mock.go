package proposal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mauv0809/scrim-scheduler/internal/realtime"
	"github.com/mauv0809/scrim-scheduler/internal/slot"
)

// MockStore is an in-memory Store for tests. It is safe for concurrent use.
type MockStore struct {
	mu        sync.Mutex
	proposals map[string]*Proposal
	hub       *realtime.Hub[string, *Proposal]

	// MutateFunc runs before the in-memory mutation; a non-nil error is returned as is.
	MutateFunc func(ctx context.Context, id string) error

	MutateCalls []string
}

func NewMock(proposals ...*Proposal) *MockStore {
	m := &MockStore{
		proposals: make(map[string]*Proposal),
		hub:       realtime.NewHub[string, *Proposal](),
	}
	for _, p := range proposals {
		m.proposals[p.ID] = p.Clone()
	}
	return m
}

func (m *MockStore) CreateProposal(ctx context.Context, p *Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.proposals {
		if existing.Status == StatusActive && existing.Week == p.Week &&
			((existing.ProposerTeamID == p.ProposerTeamID && existing.OpponentTeamID == p.OpponentTeamID) ||
				(existing.ProposerTeamID == p.OpponentTeamID && existing.OpponentTeamID == p.ProposerTeamID)) {
			return ErrDuplicate
		}
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.Status = StatusActive
	p.Version = 1
	p.CreatedAt, p.UpdatedAt = time.Now(), time.Now()
	m.proposals[p.ID] = p.Clone()
	return nil
}

func (m *MockStore) GetProposal(ctx context.Context, id string) (*Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p.Clone(), nil
}

func (m *MockStore) Mutate(ctx context.Context, id string, fn func(*Proposal) error) (*Proposal, error) {
	m.mu.Lock()
	m.MutateCalls = append(m.MutateCalls, id)
	hook := m.MutateFunc
	m.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, id); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	current, ok := m.proposals[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		m.mu.Unlock()
		if errors.Is(err, ErrNoChange) {
			return current.Clone(), nil
		}
		return nil, err
	}
	next.Version = current.Version + 1
	next.UpdatedAt = time.Now()
	m.proposals[id] = next
	m.mu.Unlock()

	m.hub.Publish(id, next.Clone())
	return next.Clone(), nil
}

func (m *MockStore) ListActive(ctx context.Context) ([]*Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Proposal
	for _, p := range m.proposals {
		if p.Status == StatusActive {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (m *MockStore) ListOpen(ctx context.Context) ([]*Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Proposal
	for _, p := range m.proposals {
		if p.Status == StatusActive || p.Status == StatusMatched {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (m *MockStore) ListForTeamWeek(ctx context.Context, teamID string, w slot.Week) ([]*Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Proposal
	for _, p := range m.proposals {
		if _, ok := p.SideOf(teamID); ok && p.Week == w {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (m *MockStore) SubscribeProposal(id string, fn func(*Proposal)) func() {
	return m.hub.Subscribe(id, fn)
}

// Calls returns how many times Mutate was called.
func (m *MockStore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.MutateCalls)
}
