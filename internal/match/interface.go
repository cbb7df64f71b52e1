package match

import (
	"context"
	"errors"

	"github.com/mauv0809/scrim-scheduler/internal/slot"
)

// ErrNotFound is returned when no scheduled match exists.
var ErrNotFound = errors.New("scheduled match not found")

// Store persists scheduled matches.
type Store interface {
	// CreateScheduledMatch records m; creating the same proposal slot twice
	// returns the existing record.
	CreateScheduledMatch(ctx context.Context, m *ScheduledMatch) (*ScheduledMatch, error)
	// CancelScheduledMatch marks the proposal slot's match cancelled; a missing match is not an error.
	CancelScheduledMatch(ctx context.Context, proposalID string, id slot.ID) error
	GetByProposal(ctx context.Context, proposalID string) ([]*ScheduledMatch, error)
	ListForTeamWeek(ctx context.Context, teamID string, w slot.Week) ([]*ScheduledMatch, error)
	ListByStatus(ctx context.Context, status Status) ([]*ScheduledMatch, error)
	UpdateStatus(ctx context.Context, matchID string, status Status) error
}
