package proposal

import (
	"database/sql"
	"sync"
	"time"

	"github.com/mauv0809/scrim-scheduler/internal/match"
	"github.com/mauv0809/scrim-scheduler/internal/metrics"
	"github.com/mauv0809/scrim-scheduler/internal/pubsub"
	"github.com/mauv0809/scrim-scheduler/internal/realtime"
	"github.com/mauv0809/scrim-scheduler/internal/slot"
	"github.com/mauv0809/scrim-scheduler/internal/team"
	"github.com/mauv0809/scrim-scheduler/internal/viability"
)

// Status is the lifecycle state of a proposal.
type Status string

const (
	StatusActive    Status = "active"
	StatusMatched   Status = "matched"
	StatusCancelled Status = "cancelled"
)

// Side identifies one of the two teams in a proposal.
type Side string

const (
	SideProposer Side = "proposer"
	SideOpponent Side = "opponent"
)

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == SideProposer {
		return SideOpponent
	}
	return SideProposer
}

// Proposal is a two-team negotiation over one week's slots.
type Proposal struct {
	ID                string               `json:"id"`
	ProposerTeamID    string               `json:"proposer_team_id"`
	OpponentTeamID    string               `json:"opponent_team_id"`
	Week              slot.Week            `json:"week"`
	GameType          viability.GameType   `json:"game_type"`
	MinFilter         viability.Thresholds `json:"min_filter"`
	ProposerStandin   bool                 `json:"proposer_standin"`
	OpponentStandin   bool                 `json:"opponent_standin"`
	ProposerConfirmed map[slot.ID]bool     `json:"proposer_confirmed_slots"`
	OpponentConfirmed map[slot.ID]bool     `json:"opponent_confirmed_slots"`
	Status            Status               `json:"status"`
	MatchedSlot       *slot.ID             `json:"matched_slot,omitempty"`
	CreatedBy         string               `json:"created_by"`
	Version           int                  `json:"version"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// CreateRequest opens a proposal on behalf of the proposing team.
type CreateRequest struct {
	ProposerTeamID  string               `json:"proposer_team_id"`
	OpponentTeamID  string               `json:"opponent_team_id"`
	Week            slot.Week            `json:"week"`
	GameType        viability.GameType   `json:"game_type"`
	MinFilter       viability.Thresholds `json:"min_filter"`
	ProposerStandin bool                 `json:"proposer_standin"`
	UserID          string               `json:"user_id"`
}

// ConfirmRequest confirms one slot for the acting team's side.
type ConfirmRequest struct {
	ProposalID string             `json:"-"`
	TeamID     string             `json:"team_id"`
	UserID     string             `json:"user_id"`
	Slot       slot.ID            `json:"slot"`
	GameType   viability.GameType `json:"game_type"`
}

// WithdrawRequest clears one slot for the acting team's side.
type WithdrawRequest struct {
	ProposalID string  `json:"-"`
	TeamID     string  `json:"team_id"`
	UserID     string  `json:"user_id"`
	Slot       slot.ID `json:"slot"`
}

// CancelRequest cancels a proposal.
type CancelRequest struct {
	ProposalID string `json:"-"`
	TeamID     string `json:"team_id"`
	UserID     string `json:"user_id"`
}

// SettingsRequest changes the game type and the acting side's standin.
// Nil fields stay as they are.
type SettingsRequest struct {
	ProposalID string              `json:"-"`
	TeamID     string              `json:"team_id"`
	UserID     string              `json:"user_id"`
	GameType   *viability.GameType `json:"game_type,omitempty"`
	Standin    *bool               `json:"standin,omitempty"`
}

// ConfirmResult reports the outcome of ConfirmSlot.
type ConfirmResult struct {
	Success  bool                  `json:"success"`
	Matched  bool                  `json:"matched"`
	Proposal *Proposal             `json:"proposal"`
	Match    *match.ScheduledMatch `json:"match,omitempty"`
}

// Negotiator runs the proposal state machine.
type Negotiator struct {
	store     Store
	teams     team.Store
	snapshots slot.Source
	matches   match.Store
	pubsub    pubsub.PubSubClient
	metrics   metrics.Metrics
	now       func() time.Time
}

// store handles database operations for proposals.
type store struct {
	db  *sql.DB
	mu  sync.Mutex
	hub *realtime.Hub[string, *Proposal]
}
