package proposal

import (
	"context"
	"errors"

	"github.com/mauv0809/scrim-scheduler/internal/slot"
)

var (
	// ErrNotViable is returned when the confirming side lacks enough available players.
	ErrNotViable = errors.New("slot is not viable for this side")
	// ErrStaleProposal is returned for actions the proposal's state no longer allows.
	ErrStaleProposal = errors.New("proposal is no longer open for this action")
	// ErrWriteConflict is returned when a concurrent write changed the proposal first.
	ErrWriteConflict = errors.New("proposal was modified concurrently")
	// ErrNetwork wraps transport and store failures.
	ErrNetwork         = errors.New("proposal store unavailable")
	ErrNotFound        = errors.New("proposal not found")
	ErrNotScheduler    = errors.New("user cannot schedule for this team")
	ErrNotParticipant  = errors.New("team is not part of this proposal")
	ErrInvalidSettings = errors.New("invalid proposal settings")
	// ErrDuplicate is returned when the pair already has an active proposal for the week.
	ErrDuplicate = errors.New("an active proposal already exists for these teams and week")

	// ErrNoChange may be returned by a Mutate function to leave the proposal untouched.
	ErrNoChange = errors.New("no change")
)

// Store is the proposal persistence boundary.
type Store interface {
	CreateProposal(ctx context.Context, p *Proposal) error
	GetProposal(ctx context.Context, id string) (*Proposal, error)
	// Mutate applies fn to the current proposal and writes the result if the
	// stored version is unchanged, otherwise it returns ErrWriteConflict.
	// fn may be called on a fresh copy; it must not block.
	Mutate(ctx context.Context, id string, fn func(*Proposal) error) (*Proposal, error)
	ListActive(ctx context.Context) ([]*Proposal, error)
	// ListOpen returns active and matched proposals, the ones that can still change.
	ListOpen(ctx context.Context) ([]*Proposal, error)
	ListForTeamWeek(ctx context.Context, teamID string, w slot.Week) ([]*Proposal, error)
	// SubscribeProposal registers fn for writes to proposal id. No call happens
	// after unsubscribe returns.
	SubscribeProposal(id string, fn func(*Proposal)) (unsubscribe func())
}
