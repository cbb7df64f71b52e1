package comparison

import (
	"context"
	"sync"
	"time"

	"github.com/mauv0809/scrim-scheduler/internal/match"
	"github.com/mauv0809/scrim-scheduler/internal/metrics"
	"github.com/mauv0809/scrim-scheduler/internal/realtime"
	"github.com/mauv0809/scrim-scheduler/internal/slot"
	"github.com/mauv0809/scrim-scheduler/internal/team"
	"github.com/mauv0809/scrim-scheduler/internal/viability"
)

// Deps are the collaborators a Broadcaster reads from.
type Deps struct {
	Teams     team.Store
	Snapshots slot.Source
	Matches   match.Store
	Metrics   metrics.Metrics
}

// Options configure a comparison session. Zero thresholds mean each team's full roster.
type Options struct {
	UserTeamID string               `json:"user_team_id"`
	Candidates []string             `json:"candidates"`
	Weeks      []slot.Week          `json:"weeks"`
	Thresholds viability.Thresholds `json:"thresholds"`
}

// State is the transient session state.
type State struct {
	Active     bool                 `json:"active"`
	AutoMode   bool                 `json:"auto_mode"`
	UserTeamID string               `json:"user_team_id"`
	Candidates []string             `json:"candidates"`
	Thresholds viability.Thresholds `json:"thresholds"`
	Weeks      []slot.Week          `json:"weeks"`
}

// OpponentSlot is one candidate meeting the thresholds in a slot.
type OpponentSlot struct {
	TeamID         string   `json:"team_id"`
	Tag            string   `json:"tag"`
	UserCount      int      `json:"user_count"`
	OpponentCount  int      `json:"opponent_count"`
	UserRoster     []string `json:"user_roster"`
	OpponentRoster []string `json:"opponent_roster"`
}

// BookedSlot marks a slot the user team already has an upcoming match in.
type BookedSlot struct {
	MatchID        string `json:"match_id"`
	OpponentTeamID string `json:"opponent_team_id"`
}

// Aggregate is the per-week, per-slot view across all candidates.
type Aggregate struct {
	Revision   uint64                                   `json:"revision"`
	UserTeamID string                                   `json:"user_team_id"`
	Slots      map[slot.Week]map[slot.ID][]OpponentSlot `json:"slots"`
	Booked     map[slot.Week]map[slot.ID]BookedSlot     `json:"booked"`
	ComputedAt time.Time                                `json:"computed_at"`
}

// Broadcaster keeps an Aggregate current for one user team's session.
type Broadcaster struct {
	deps Deps
	hub  *realtime.Hub[struct{}, *Aggregate]

	mu       sync.Mutex
	state    State
	current  *Aggregate
	session  uint64
	revision uint64
	unsubs   map[slot.Key]func()
	tick     chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}

	// emitMu is held while listeners run so End can wait them out.
	emitMu sync.Mutex

	now func() time.Time
}
