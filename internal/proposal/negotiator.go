package proposal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/scrim-scheduler/internal/match"
	"github.com/mauv0809/scrim-scheduler/internal/metrics"
	"github.com/mauv0809/scrim-scheduler/internal/pubsub"
	"github.com/mauv0809/scrim-scheduler/internal/slot"
	"github.com/mauv0809/scrim-scheduler/internal/team"
	"github.com/mauv0809/scrim-scheduler/internal/viability"
)

// New creates a Negotiator.
func New(store Store, teams team.Store, snapshots slot.Source, matches match.Store, pubsub pubsub.PubSubClient, metrics metrics.Metrics) *Negotiator {
	return &Negotiator{
		store:     store,
		teams:     teams,
		snapshots: snapshots,
		matches:   matches,
		pubsub:    pubsub,
		metrics:   metrics,
		now:       time.Now,
	}
}

// CreateProposal opens a negotiation between two teams for a week.
func (n *Negotiator) CreateProposal(ctx context.Context, req CreateRequest) (*Proposal, error) {
	if req.GameType == "" {
		req.GameType = viability.GameTypeOfficial
	}
	if !req.GameType.Valid() {
		return nil, fmt.Errorf("%w: unknown game type %q", ErrInvalidSettings, req.GameType)
	}
	if req.ProposerTeamID == "" || req.ProposerTeamID == req.OpponentTeamID {
		return nil, fmt.Errorf("%w: a proposal needs two different teams", ErrInvalidSettings)
	}
	if req.ProposerStandin && req.GameType != viability.GameTypePractice {
		return nil, fmt.Errorf("%w: standins are only allowed for practice games", ErrInvalidSettings)
	}
	if req.MinFilter.Proposer < 0 || req.MinFilter.Opponent < 0 {
		return nil, fmt.Errorf("%w: thresholds must not be negative", ErrInvalidSettings)
	}

	proposer, err := n.team(ctx, req.ProposerTeamID)
	if err != nil {
		return nil, err
	}
	opponent, err := n.team(ctx, req.OpponentTeamID)
	if err != nil {
		return nil, err
	}
	if !proposer.CanSchedule(req.UserID) {
		return nil, fmt.Errorf("%w: %s for %s", ErrNotScheduler, req.UserID, proposer.ID)
	}
	if req.MinFilter.Proposer == 0 {
		req.MinFilter.Proposer = proposer.FullRosterSize()
	}
	if req.MinFilter.Opponent == 0 {
		req.MinFilter.Opponent = opponent.FullRosterSize()
	}

	p := &Proposal{
		ProposerTeamID:  proposer.ID,
		OpponentTeamID:  opponent.ID,
		Week:            req.Week,
		GameType:        req.GameType,
		MinFilter:       req.MinFilter,
		ProposerStandin: req.ProposerStandin,
		CreatedBy:       req.UserID,
	}
	if err := n.store.CreateProposal(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return p, nil
}

// GetProposal reads the current stored proposal.
func (n *Negotiator) GetProposal(ctx context.Context, id string) (*Proposal, error) {
	p, err := n.store.GetProposal(ctx, id)
	return p, classify(err)
}

// ListActive returns every active proposal.
func (n *Negotiator) ListActive(ctx context.Context) ([]*Proposal, error) {
	proposals, err := n.store.ListActive(ctx)
	return proposals, classify(err)
}

// ListForTeamWeek returns a team's proposals for a week in every status.
func (n *Negotiator) ListForTeamWeek(ctx context.Context, teamID string, w slot.Week) ([]*Proposal, error) {
	proposals, err := n.store.ListForTeamWeek(ctx, teamID, w)
	return proposals, classify(err)
}

// ConfirmSlot sets the acting side's confirmation for a slot. When the other
// side already confirmed the same slot the proposal becomes matched and a
// ScheduledMatch is created.
func (n *Negotiator) ConfirmSlot(ctx context.Context, req ConfirmRequest) (ConfirmResult, error) {
	if !req.Slot.Valid() {
		return ConfirmResult{}, fmt.Errorf("%w: invalid slot", ErrInvalidSettings)
	}
	current, side, actor, err := n.authorize(ctx, req.ProposalID, req.TeamID, req.UserID)
	if err != nil {
		return ConfirmResult{}, err
	}

	snap, err := n.snapshots.Get(ctx, actor.ID, current.Week)
	if err != nil {
		return ConfirmResult{}, err
	}

	var alreadyConfirmed, matchedNow bool
	p, err := n.mutate(ctx, req.ProposalID, func(p *Proposal) error {
		alreadyConfirmed, matchedNow = false, false
		if p.IsConfirmed(side, req.Slot) {
			alreadyConfirmed = true
			return ErrNoChange
		}
		if p.Status != StatusActive {
			return fmt.Errorf("%w: proposal is %s", ErrStaleProposal, p.Status)
		}
		if req.GameType != "" && req.GameType != p.GameType {
			return fmt.Errorf("%w: game type changed to %s", ErrStaleProposal, p.GameType)
		}
		own := viability.FullRosterSide(actor, snap, p.GameType, p.Standin(side))
		if own.Count(p.Week, req.Slot) < own.EffectiveMinimum() {
			return fmt.Errorf("%w: %d of %d players available in %s", ErrNotViable, own.Count(p.Week, req.Slot), own.EffectiveMinimum(), req.Slot)
		}

		p.Confirmed(side)[req.Slot] = true
		if p.IsConfirmed(side.Other(), req.Slot) {
			id := req.Slot
			p.Status = StatusMatched
			p.MatchedSlot = &id
			matchedNow = true
		}
		return nil
	})
	if err != nil {
		return ConfirmResult{}, err
	}

	result := ConfirmResult{Success: true, Matched: p.IsMatchedSlot(req.Slot), Proposal: p}
	if alreadyConfirmed {
		log.Debug("Slot already confirmed", "proposal", p.ID, "side", side, "slot", req.Slot)
	}
	if result.Matched {
		scheduled, err := n.ensureMatch(ctx, p)
		if err != nil {
			if matchedNow {
				n.unmatch(ctx, p.ID, side, req.Slot)
			}
			return ConfirmResult{}, err
		}
		result.Match = scheduled
	}
	if alreadyConfirmed {
		return result, nil
	}

	n.metrics.IncConfirmations()
	log.Info("Confirmed slot", "proposal", p.ID, "side", side, "slot", req.Slot, "matched", matchedNow)
	if matchedNow {
		n.metrics.IncMatches()
		if err := n.pubsub.SendMessage(pubsub.EventProposalMatched, result.Match); err != nil {
			log.Error("Failed to publish matched proposal", "error", err, "proposal", p.ID)
		}
	}
	return result, nil
}

// WithdrawConfirmation clears the acting side's confirmation for a slot.
// Withdrawing the matched slot reopens the proposal.
func (n *Negotiator) WithdrawConfirmation(ctx context.Context, req WithdrawRequest) (*Proposal, error) {
	_, side, _, err := n.authorize(ctx, req.ProposalID, req.TeamID, req.UserID)
	if err != nil {
		return nil, err
	}
	p, _, err := n.withdraw(ctx, req.ProposalID, side, req.Slot, metrics.WithdrawByUser)
	return p, err
}

// AutoWithdraw clears side's confirmation for a slot of an active proposal
// without a user. It reports whether a confirmation was cleared.
func (n *Negotiator) AutoWithdraw(ctx context.Context, proposalID string, side Side, id slot.ID) (bool, error) {
	_, withdrawn, err := n.withdraw(ctx, proposalID, side, id, metrics.WithdrawByAuto)
	return withdrawn, err
}

func (n *Negotiator) withdraw(ctx context.Context, proposalID string, side Side, id slot.ID, source metrics.WithdrawSource) (*Proposal, bool, error) {
	var withdrawn, reopened bool
	p, err := n.mutate(ctx, proposalID, func(p *Proposal) error {
		withdrawn, reopened = false, false
		if p.Status == StatusCancelled {
			if source == metrics.WithdrawByAuto {
				return ErrNoChange
			}
			return fmt.Errorf("%w: proposal is cancelled", ErrStaleProposal)
		}
		if source == metrics.WithdrawByAuto && p.Status != StatusActive {
			return ErrNoChange
		}
		if !p.IsConfirmed(side, id) {
			return ErrNoChange
		}
		delete(p.Confirmed(side), id)
		if p.IsMatchedSlot(id) {
			p.Status = StatusActive
			p.MatchedSlot = nil
			reopened = true
		}
		withdrawn = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !withdrawn {
		return p, false, nil
	}
	if reopened {
		if err := n.matches.CancelScheduledMatch(ctx, p.ID, id); err != nil {
			n.rematch(ctx, p.ID, side, id)
			return nil, false, fmt.Errorf("%w: failed to cancel scheduled match: %w", ErrNetwork, err)
		}
	}

	n.metrics.IncWithdrawals(source)
	log.Info("Withdrew confirmation", "proposal", p.ID, "side", side, "slot", id, "source", source, "reopened", reopened)
	return p, true, nil
}

// unmatch rolls back a confirmation whose match could not be booked.
func (n *Negotiator) unmatch(ctx context.Context, id string, side Side, s slot.ID) {
	_, err := n.mutate(context.WithoutCancel(ctx), id, func(p *Proposal) error {
		if p.Status != StatusMatched || !p.IsMatchedSlot(s) {
			return ErrNoChange
		}
		delete(p.Confirmed(side), s)
		p.Status = StatusActive
		p.MatchedSlot = nil
		return nil
	})
	if err != nil {
		log.Error("Failed to roll back unbooked match", "error", err, "proposal", id, "slot", s)
	}
}

// rematch restores a matched slot whose booking could not be cancelled.
func (n *Negotiator) rematch(ctx context.Context, id string, side Side, s slot.ID) {
	_, err := n.mutate(context.WithoutCancel(ctx), id, func(p *Proposal) error {
		if p.Status != StatusActive || p.IsConfirmed(side, s) || !p.IsConfirmed(side.Other(), s) {
			return ErrNoChange
		}
		p.Confirmed(side)[s] = true
		p.Status = StatusMatched
		p.MatchedSlot = &s
		return nil
	})
	if err != nil {
		log.Error("Failed to restore matched slot", "error", err, "proposal", id, "slot", s)
	}
}

// CancelProposal cancels an active proposal and clears all confirmations.
func (n *Negotiator) CancelProposal(ctx context.Context, req CancelRequest) (*Proposal, error) {
	if _, _, _, err := n.authorize(ctx, req.ProposalID, req.TeamID, req.UserID); err != nil {
		return nil, err
	}
	p, err := n.mutate(ctx, req.ProposalID, func(p *Proposal) error {
		if p.Status != StatusActive {
			return fmt.Errorf("%w: proposal is %s", ErrStaleProposal, p.Status)
		}
		p.Status = StatusCancelled
		p.ProposerConfirmed = map[slot.ID]bool{}
		p.OpponentConfirmed = map[slot.ID]bool{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	n.metrics.IncCancellations()
	log.Info("Cancelled proposal", "proposal", p.ID, "by", req.TeamID)
	return p, nil
}

// UpdateProposalSettings changes the game type and the acting side's own
// standin flag. Existing confirmations are left for the enforcer to judge.
func (n *Negotiator) UpdateProposalSettings(ctx context.Context, req SettingsRequest) (*Proposal, error) {
	if req.GameType != nil && !req.GameType.Valid() {
		return nil, fmt.Errorf("%w: unknown game type %q", ErrInvalidSettings, *req.GameType)
	}
	_, side, _, err := n.authorize(ctx, req.ProposalID, req.TeamID, req.UserID)
	if err != nil {
		return nil, err
	}
	return n.mutate(ctx, req.ProposalID, func(p *Proposal) error {
		if p.Status != StatusActive {
			return fmt.Errorf("%w: proposal is %s", ErrStaleProposal, p.Status)
		}
		gameType := p.GameType
		if req.GameType != nil {
			gameType = *req.GameType
		}
		standin := p.Standin(side)
		if req.Standin != nil {
			standin = *req.Standin
		}
		if gameType != viability.GameTypePractice && (standin || p.Standin(side.Other())) {
			return fmt.Errorf("%w: standins are only allowed for practice games", ErrInvalidSettings)
		}
		if gameType == p.GameType && standin == p.Standin(side) {
			return ErrNoChange
		}
		p.GameType = gameType
		p.SetStandin(side, standin)
		return nil
	})
}

// authorize resolves which side teamID plays and checks userID schedules for it.
func (n *Negotiator) authorize(ctx context.Context, proposalID, teamID, userID string) (*Proposal, Side, *team.Team, error) {
	p, err := n.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, "", nil, classify(err)
	}
	side, ok := p.SideOf(teamID)
	if !ok {
		return nil, "", nil, fmt.Errorf("%w: %s", ErrNotParticipant, teamID)
	}
	t, err := n.team(ctx, teamID)
	if err != nil {
		return nil, "", nil, err
	}
	if !t.CanSchedule(userID) {
		return nil, "", nil, fmt.Errorf("%w: %s for %s", ErrNotScheduler, userID, teamID)
	}
	return p, side, t, nil
}

func (n *Negotiator) team(ctx context.Context, id string) (*team.Team, error) {
	t, err := n.teams.GetTeam(ctx, id)
	if errors.Is(err, team.ErrNotFound) {
		return nil, fmt.Errorf("%w: team %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return t, nil
}

// mutate applies fn through the store, retrying once on a write conflict.
func (n *Negotiator) mutate(ctx context.Context, id string, fn func(*Proposal) error) (*Proposal, error) {
	p, err := n.store.Mutate(ctx, id, fn)
	if errors.Is(err, ErrWriteConflict) {
		n.metrics.IncWriteConflicts()
		log.Warn("Write conflict, retrying", "proposal", id)
		p, err = n.store.Mutate(ctx, id, fn)
		if errors.Is(err, ErrWriteConflict) {
			n.metrics.IncWriteConflicts()
		}
	}
	if err != nil {
		return nil, classify(err)
	}
	return p, nil
}

func (n *Negotiator) ensureMatch(ctx context.Context, p *Proposal) (*match.ScheduledMatch, error) {
	scheduled, err := n.matches.CreateScheduledMatch(ctx, &match.ScheduledMatch{
		ProposalID: p.ID,
		TeamAID:    p.ProposerTeamID,
		TeamBID:    p.OpponentTeamID,
		Week:       p.Week,
		Slot:       *p.MatchedSlot,
		GameType:   p.GameType,
		Status:     match.StatusUpcoming,
		CreatedAt:  n.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create scheduled match: %w", ErrNetwork, err)
	}
	return scheduled, nil
}

var domainErrors = []error{
	ErrNotViable, ErrStaleProposal, ErrWriteConflict, ErrNetwork, ErrNotFound,
	ErrNotScheduler, ErrNotParticipant, ErrInvalidSettings, ErrDuplicate,
}

// classify passes domain errors through and wraps anything else as ErrNetwork.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}
