package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/scrim-scheduler/internal/enforcer"
	"github.com/mauv0809/scrim-scheduler/internal/match"
	"github.com/mauv0809/scrim-scheduler/internal/metrics"
	"github.com/mauv0809/scrim-scheduler/internal/pubsub"
	"github.com/mauv0809/scrim-scheduler/internal/team"
)

// New creates a new Processor.
func New(store Store, teams Teams, notifier Notifier, metrics metrics.Metrics, pubsub pubsub.PubSubClient) *Processor {
	return &Processor{
		store:    store,
		teams:    teams,
		pubsub:   pubsub,
		notifier: notifier,
		metrics:  metrics,
		now:      time.Now,
	}
}

// ProcessMatches moves every upcoming match whose slot has been played to completed.
// It returns how many matches were completed.
func (p *Processor) ProcessMatches(ctx context.Context, dryRun bool) (int, error) {
	log.Info("Starting match processing...")
	matches, err := p.store.ListByStatus(ctx, match.StatusUpcoming)
	if err != nil {
		return 0, fmt.Errorf("failed to list upcoming matches: %w", err)
	}

	now := p.now()
	completed := 0
	for _, m := range matches {
		ends := m.StartsAt.Add(MatchLength)
		if now.Before(ends) {
			continue
		}
		startTime := time.Now()
		if p.completeMatch(ctx, m, now.Sub(ends) < notifyWindow, dryRun) {
			completed++
		}
		p.metrics.ObserveProcessingDuration(float64(time.Since(startTime).Milliseconds()))
	}
	log.Info("Match processing finished.", "upcoming", len(matches), "completed", completed)
	return completed, nil
}

func (p *Processor) completeMatch(ctx context.Context, m *match.ScheduledMatch, notify, dryRun bool) bool {
	if dryRun {
		log.Info("[Dry Run] Would complete match", "matchID", m.ID, "startsAt", m.StartsAt)
	} else {
		if err := p.store.UpdateStatus(ctx, m.ID, match.StatusCompleted); err != nil {
			log.Error("Failed to complete match", "error", err, "matchID", m.ID)
			return false
		}
		m.Status = match.StatusCompleted
		p.metrics.IncMatchesCompleted()
		if err := p.pubsub.SendMessage(pubsub.EventMatchCompleted, m); err != nil {
			log.Error("Failed to publish match completion", "error", err, "matchID", m.ID)
		}
	}

	// Matches that ended long ago are completed silently so a backlog doesn't flood the channel.
	if notify {
		teamA, teamB := p.lookup(ctx, m.TeamAID), p.lookup(ctx, m.TeamBID)
		if err := p.notifier.SendMatchCompleted(m, teamA, teamB, dryRun); err != nil {
			log.Error("Failed to send completion notification", "error", err, "matchID", m.ID)
		}
	}
	log.Debug("Completed match", "matchID", m.ID, "notified", notify)
	return true
}

// NotifyMatchScheduled announces a newly booked match.
func (p *Processor) NotifyMatchScheduled(ctx context.Context, m *match.ScheduledMatch, dryRun bool) error {
	if m == nil || m.ID == "" {
		return errors.New("scheduled match is missing")
	}
	teamA, teamB := p.lookup(ctx, m.TeamAID), p.lookup(ctx, m.TeamBID)
	if err := p.notifier.SendMatchScheduled(m, teamA, teamB, dryRun); err != nil {
		return fmt.Errorf("failed to notify scheduled match %s: %w", m.ID, err)
	}
	return nil
}

// NotifyAutoWithdrawn tells a team that one of its confirmations was cleared.
func (p *Processor) NotifyAutoWithdrawn(ctx context.Context, ev *enforcer.Withdrawn, dryRun bool) error {
	if ev == nil || ev.ProposalID == "" {
		return errors.New("withdrawal event is missing")
	}
	if err := p.notifier.SendAutoWithdrawn(ev, p.lookup(ctx, ev.TeamID), dryRun); err != nil {
		return fmt.Errorf("failed to notify withdrawal on proposal %s: %w", ev.ProposalID, err)
	}
	return nil
}

// lookup returns nil for teams that can't be read; notifications fall back to ids.
func (p *Processor) lookup(ctx context.Context, id string) *team.Team {
	t, err := p.teams.GetTeam(ctx, id)
	if err != nil {
		log.Warn("Failed to load team for notification", "error", err, "teamID", id)
		return nil
	}
	return t
}
