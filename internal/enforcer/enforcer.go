package enforcer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/scrim-scheduler/internal/proposal"
	"github.com/mauv0809/scrim-scheduler/internal/pubsub"
	"github.com/mauv0809/scrim-scheduler/internal/slot"
	"github.com/mauv0809/scrim-scheduler/internal/viability"
)

// ParsePolicy maps a config value to a Policy, defaulting to PolicyOverall.
func ParsePolicy(s string) Policy {
	switch Policy(s) {
	case PolicyOwnSide:
		return PolicyOwnSide
	case PolicyOverall, "":
		return PolicyOverall
	}
	log.Warn("Unknown withdraw policy, using overall", "policy", s)
	return PolicyOverall
}

// New creates an enforcer for one side of a proposal. Call Start to run it.
func New(deps Deps, proposalID string, side proposal.Side) *Enforcer {
	if deps.Policy == "" {
		deps.Policy = PolicyOverall
	}
	return &Enforcer{
		deps:       deps,
		proposalID: proposalID,
		side:       side,
		tick:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		inflight:   make(map[slot.ID]bool),
	}
}

// Start subscribes to the proposal and both teams' availability and runs an
// initial check. Checks run on the enforcer's own goroutine until Stop or ctx ends.
func (e *Enforcer) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return errors.New("enforcer already started")
	}
	e.started = true
	e.mu.Unlock()

	p, err := e.deps.Proposals.GetProposal(ctx, e.proposalID)
	if err != nil {
		close(e.done)
		return fmt.Errorf("failed to load proposal: %w", err)
	}

	unsubs := []func(){
		e.deps.Proposals.SubscribeProposal(p.ID, func(*proposal.Proposal) { e.signal() }),
		e.deps.Snapshots.OnSnapshotChanged(p.ProposerTeamID, p.Week, func(*slot.Snapshot) { e.signal() }),
		e.deps.Snapshots.OnSnapshotChanged(p.OpponentTeamID, p.Week, func(*slot.Snapshot) { e.signal() }),
	}
	runCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.unsubs = unsubs
	e.cancel = cancel
	e.mu.Unlock()

	go e.run(runCtx)
	e.signal()
	log.Debug("Started enforcer", "proposal", e.proposalID, "side", e.side, "policy", e.deps.Policy)
	return nil
}

// Stop unsubscribes and ends the run goroutine. Withdrawals already sent
// finish in the background and their results are dropped.
func (e *Enforcer) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		e.stopped = true
		unsubs := e.unsubs
		e.unsubs = nil
		cancel := e.cancel
		started := e.started
		e.mu.Unlock()

		for _, unsubscribe := range unsubs {
			unsubscribe()
		}
		if cancel != nil {
			cancel()
		}
		if started {
			<-e.done
		}
		log.Debug("Stopped enforcer", "proposal", e.proposalID, "side", e.side)
	})
}

// signal schedules a check without blocking the caller.
func (e *Enforcer) signal() {
	select {
	case e.tick <- struct{}{}:
	default:
	}
}

func (e *Enforcer) run(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.tick:
			if err := e.Check(ctx); err != nil {
				log.Warn("Consistency check failed", "proposal", e.proposalID, "side", e.side, "error", err)
			}
		}
	}
}

// Check re-validates the side's confirmed slots and withdraws the ones no
// longer backed by availability. Only active proposals are enforced.
func (e *Enforcer) Check(ctx context.Context) error {
	p, err := e.deps.Proposals.GetProposal(ctx, e.proposalID)
	if err != nil {
		return fmt.Errorf("failed to load proposal: %w", err)
	}
	if p.Status != proposal.StatusActive {
		return nil
	}
	confirmed := p.ConfirmedSlots(e.side)
	if len(confirmed) == 0 {
		return nil
	}

	proposerSide, err := e.requirement(ctx, p, proposal.SideProposer)
	if err != nil {
		return err
	}
	opponentSide, err := e.requirement(ctx, p, proposal.SideOpponent)
	if err != nil {
		return err
	}
	own := proposerSide
	if e.side == proposal.SideOpponent {
		own = opponentSide
	}
	viable := viability.Index(viability.ComputeViableSlots(p.Week, proposerSide, opponentSide))

	var wg sync.WaitGroup
	for _, id := range confirmed {
		var reason Reason
		_, stillViable := viable[id]
		switch {
		case own.Count(p.Week, id) < own.EffectiveMinimum():
			reason = ReasonOwnShort
		case e.deps.Policy == PolicyOverall && !stillViable:
			reason = ReasonNotViable
		default:
			continue
		}
		if !e.claim(id) {
			log.Debug("Withdrawal already in flight", "proposal", p.ID, "side", e.side, "slot", id)
			continue
		}
		wg.Add(1)
		go func(id slot.ID, reason Reason) {
			defer wg.Done()
			e.withdraw(context.WithoutCancel(ctx), p, id, reason)
		}(id, reason)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
	}
	return nil
}

// requirement builds the full-roster requirement for side s from current data.
func (e *Enforcer) requirement(ctx context.Context, p *proposal.Proposal, s proposal.Side) (viability.Side, error) {
	t, err := e.deps.Teams.GetTeam(ctx, p.TeamID(s))
	if err != nil {
		return viability.Side{}, fmt.Errorf("failed to load team: %w", err)
	}
	snap, err := e.deps.Snapshots.Get(ctx, t.ID, p.Week)
	if err != nil {
		// An unreadable snapshot would read as nobody available.
		return viability.Side{}, err
	}
	return viability.FullRosterSide(t, snap, p.GameType, p.Standin(s)), nil
}

func (e *Enforcer) claim(id slot.ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped || e.inflight[id] {
		return false
	}
	e.inflight[id] = true
	return true
}

func (e *Enforcer) withdraw(ctx context.Context, p *proposal.Proposal, id slot.ID, reason Reason) {
	defer func() {
		e.mu.Lock()
		delete(e.inflight, id)
		e.mu.Unlock()
	}()

	withdrawn, err := e.deps.Withdrawer.AutoWithdraw(ctx, p.ID, e.side, id)
	if err != nil {
		e.deps.Metrics.IncAutoWithdrawFailed()
		log.Error("Auto-withdraw failed, will retry on next change", "proposal", p.ID, "side", e.side, "slot", id, "error", err)
		return
	}

	e.mu.Lock()
	stopped := e.stopped
	e.mu.Unlock()
	if !withdrawn || stopped {
		return
	}

	log.Info("Auto-withdrew confirmation", "proposal", p.ID, "side", e.side, "slot", id, "reason", reason)
	event := Withdrawn{ProposalID: p.ID, TeamID: p.TeamID(e.side), Side: e.side, Week: p.Week, Slot: id, Reason: reason}
	if err := e.deps.PubSub.SendMessage(pubsub.EventAutoWithdrawn, event); err != nil {
		log.Error("Failed to publish auto-withdrawal", "proposal", p.ID, "error", err)
	}
}
