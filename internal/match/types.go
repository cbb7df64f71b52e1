package match

import (
	"database/sql"
	"sync"
	"time"

	"github.com/mauv0809/scrim-scheduler/internal/slot"
	"github.com/mauv0809/scrim-scheduler/internal/viability"
)

// Status is the lifecycle state of a scheduled match.
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ScheduledMatch is the booked outcome of a matched proposal slot.
type ScheduledMatch struct {
	ID         string             `json:"id" msgpack:"id"`
	ProposalID string             `json:"proposal_id" msgpack:"proposal_id"`
	TeamAID    string             `json:"team_a_id" msgpack:"team_a_id"`
	TeamBID    string             `json:"team_b_id" msgpack:"team_b_id"`
	Week       slot.Week          `json:"week" msgpack:"week_id"`
	Slot       slot.ID            `json:"slot" msgpack:"slot_id"`
	GameType   viability.GameType `json:"game_type" msgpack:"game_type"`
	Status     Status             `json:"status" msgpack:"status"`
	StartsAt   time.Time          `json:"starts_at" msgpack:"starts_at"`
	CreatedAt  time.Time          `json:"created_at" msgpack:"created_at"`
}

// Involves reports whether teamID plays in the match.
func (m *ScheduledMatch) Involves(teamID string) bool {
	return m.TeamAID == teamID || m.TeamBID == teamID
}

// store handles database operations for scheduled matches.
type store struct {
	db *sql.DB
	mu sync.RWMutex
}
