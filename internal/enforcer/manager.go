package enforcer

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/scrim-scheduler/internal/proposal"
)

// NewManager creates a Manager whose enforcers live until ctx ends or Close is called.
func NewManager(ctx context.Context, deps Deps) *Manager {
	ctx, cancel := context.WithCancel(ctx)
	return &Manager{
		deps:    deps,
		ctx:     ctx,
		cancel:  cancel,
		watched: make(map[string]*watch),
	}
}

// Watch starts enforcers for both sides of a proposal. Watching a proposal
// twice is a no-op. The proposal is unwatched once it is cancelled.
func (m *Manager) Watch(ctx context.Context, proposalID string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("enforcer manager closed")
	}
	if _, ok := m.watched[proposalID]; ok {
		m.mu.Unlock()
		return nil
	}
	w := &watch{}
	m.watched[proposalID] = w
	m.mu.Unlock()

	var enforcers []*Enforcer
	for _, side := range []proposal.Side{proposal.SideProposer, proposal.SideOpponent} {
		e := New(m.deps, proposalID, side)
		if err := e.Start(m.ctx); err != nil {
			for _, started := range enforcers {
				started.Stop()
			}
			m.mu.Lock()
			if m.watched[proposalID] == w {
				delete(m.watched, proposalID)
			}
			m.mu.Unlock()
			return fmt.Errorf("failed to start %s enforcer: %w", side, err)
		}
		enforcers = append(enforcers, e)
	}
	unsubscribe := m.deps.Proposals.SubscribeProposal(proposalID, func(p *proposal.Proposal) {
		if p.Status == proposal.StatusCancelled {
			// Unsubscribing is not allowed from inside the callback.
			go m.Unwatch(p.ID)
		}
	})

	m.mu.Lock()
	current := m.watched[proposalID] == w
	if current {
		w.enforcers, w.unsubscribe = enforcers, unsubscribe
	}
	m.mu.Unlock()
	if !current {
		// Unwatched or closed while starting.
		stopAll(enforcers, unsubscribe)
		return nil
	}

	m.report()
	log.Info("Watching proposal", "proposal", proposalID)
	return nil
}

// Unwatch stops the proposal's enforcers.
func (m *Manager) Unwatch(proposalID string) {
	m.mu.Lock()
	w, ok := m.watched[proposalID]
	delete(m.watched, proposalID)
	m.mu.Unlock()
	if !ok {
		return
	}

	stopAll(w.enforcers, w.unsubscribe)
	m.report()
	log.Info("Stopped watching proposal", "proposal", proposalID)
}

// WatchOpen watches every active or matched proposal. Matched proposals are
// only enforced again once they reopen.
func (m *Manager) WatchOpen(ctx context.Context) error {
	open, err := m.deps.Proposals.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("failed to list open proposals: %w", err)
	}
	var errs []error
	for _, p := range open {
		if err := m.Watch(ctx, p.ID); err != nil {
			errs = append(errs, err)
		}
	}
	log.Info("Watching open proposals", "count", len(open))
	return errors.Join(errs...)
}

// Watching reports whether a proposal has running enforcers.
func (m *Manager) Watching(proposalID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.watched[proposalID]
	return ok
}

// Close stops every enforcer.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	watched := m.watched
	m.watched = make(map[string]*watch)
	m.mu.Unlock()

	for _, w := range watched {
		stopAll(w.enforcers, w.unsubscribe)
	}
	m.cancel()
	m.report()
}

func (m *Manager) report() {
	m.mu.Lock()
	n := 0
	for _, w := range m.watched {
		n += len(w.enforcers)
	}
	m.mu.Unlock()
	m.deps.Metrics.SetActiveEnforcers(n)
}

func stopAll(enforcers []*Enforcer, unsubscribe func()) {
	if unsubscribe != nil {
		unsubscribe()
	}
	for _, e := range enforcers {
		e.Stop()
	}
}
