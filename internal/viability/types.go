package viability

import "github.com/mauv0809/scrim-scheduler/internal/slot"

// GameType is the kind of match being negotiated.
type GameType string

const (
	GameTypeOfficial GameType = "official"
	GameTypePractice GameType = "practice"
)

// Valid reports whether g is a known game type.
func (g GameType) Valid() bool {
	return g == GameTypeOfficial || g == GameTypePractice
}

// Side is one team's input to the calculation.
type Side struct {
	// Roster holds the player ids that may count toward the side.
	Roster []string
	// Snapshot may be nil when not loaded yet; that counts as nobody available.
	Snapshot *slot.Snapshot
	// Minimum is the required player count before standin adjustment.
	Minimum int
	Standin bool
}

// Thresholds are per-side minimum player counts.
type Thresholds struct {
	Proposer int `json:"proposer_min"`
	Opponent int `json:"opponent_min"`
}

// SlotMatch describes a slot where both sides meet their effective minimum.
type SlotMatch struct {
	Slot           slot.ID  `json:"slot"`
	ProposerCount  int      `json:"proposer_count"`
	OpponentCount  int      `json:"opponent_count"`
	ProposerRoster []string `json:"proposer_roster"`
	OpponentRoster []string `json:"opponent_roster"`
}

// Total is the combined player count, used for ranking.
func (m SlotMatch) Total() int {
	return m.ProposerCount + m.OpponentCount
}
