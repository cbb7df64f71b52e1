package team

import (
	"database/sql"
	"sync"
)

// DefaultRosterSize is the full roster of the reference 4-on-4 discipline.
const DefaultRosterSize = 4

// store handles all database operations for teams.
type store struct {
	db                *sql.DB
	mu                sync.RWMutex
	defaultRosterSize int
}

// Player is a roster member. Identity lives in the auth system.
type Player struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Initials    string `json:"initials"`
}

// Team is a competitive team and its scheduling roles.
type Team struct {
	ID           string   `json:"id"`
	Tag          string   `json:"tag"`
	Name         string   `json:"name"`
	Roster       []Player `json:"roster"`
	SchedulerIDs []string `json:"scheduler_ids"`
	Divisions    []string `json:"divisions"`
	// RosterSize is the full-roster requirement; zero means the default.
	RosterSize int `json:"roster_size,omitempty"`
}

// PlayerIDs returns the roster's user ids in roster order.
func (t *Team) PlayerIDs() []string {
	if t == nil {
		return nil
	}
	ids := make([]string, 0, len(t.Roster))
	for _, p := range t.Roster {
		ids = append(ids, p.UserID)
	}
	return ids
}

// CanSchedule reports whether userID is the leader or a delegate scheduler.
func (t *Team) CanSchedule(userID string) bool {
	if t == nil || userID == "" {
		return false
	}
	for _, id := range t.SchedulerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// FullRosterSize returns the team's full-roster requirement.
func (t *Team) FullRosterSize() int {
	if t == nil || t.RosterSize <= 0 {
		return DefaultRosterSize
	}
	return t.RosterSize
}

// InDivision reports whether the team plays in division.
func (t *Team) InDivision(division string) bool {
	for _, d := range t.Divisions {
		if d == division {
			return true
		}
	}
	return false
}

// SharesDivision reports whether both teams play in at least one common division.
func (t *Team) SharesDivision(other *Team) bool {
	if t == nil || other == nil {
		return false
	}
	for _, d := range t.Divisions {
		if other.InDivision(d) {
			return true
		}
	}
	return false
}
