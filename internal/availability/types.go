package availability

import (
	"database/sql"
	"sync"

	"github.com/mauv0809/scrim-scheduler/internal/realtime"
	"github.com/mauv0809/scrim-scheduler/internal/slot"
)

// State is a player's mark on a slot.
type State string

const (
	StateAvailable State = "available"
	StateAway      State = "away"
	StateCleared   State = "cleared"
)

// Change marks a player's state across a set of slots in one team's week.
type Change struct {
	TeamID string    `json:"team_id"`
	Week   slot.Week `json:"week"`
	UserID string    `json:"user_id"`
	Slots  []slot.ID `json:"slots"`
	State  State     `json:"state"`
}

// store persists availability and publishes every new snapshot version.
type store struct {
	db  *sql.DB
	mu  sync.RWMutex
	hub *realtime.Hub[slot.Key, *slot.Snapshot]
}
