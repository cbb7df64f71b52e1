// Package viability computes which slots of a week two teams can both field
// enough players for. Every function here is pure.
package viability

import (
	"sort"

	"github.com/mauv0809/scrim-scheduler/internal/slot"
	"github.com/mauv0809/scrim-scheduler/internal/team"
)

// EffectiveMinimum applies the standin reduction to a side's minimum.
func EffectiveMinimum(minimum int, standin bool) int {
	if standin {
		minimum--
	}
	if minimum < 0 {
		return 0
	}
	return minimum
}

// EffectiveMinimum returns the side's own requirement.
func (s Side) EffectiveMinimum() int {
	return EffectiveMinimum(s.Minimum, s.Standin)
}

// AvailableIn returns the roster members of s available in id, sorted.
// Players marked away never count.
func (s Side) AvailableIn(w slot.Week, id slot.ID) []string {
	if s.Snapshot == nil || s.Snapshot.Week != w || len(s.Roster) == 0 {
		return []string{}
	}
	available := make([]string, 0, len(s.Roster))
	for _, userID := range s.Roster {
		if s.Snapshot.IsAvailable(id, userID) && !s.Snapshot.IsAway(id, userID) {
			available = append(available, userID)
		}
	}
	sort.Strings(available)
	return available
}

// Count returns how many roster members of s are available in id.
func (s Side) Count(w slot.Week, id slot.ID) int {
	return len(s.AvailableIn(w, id))
}

// ComputeViableSlots returns, in chronological order, every slot of week w
// where both sides meet their effective minimum.
func ComputeViableSlots(w slot.Week, proposer, opponent Side) []SlotMatch {
	proposerMin := proposer.EffectiveMinimum()
	opponentMin := opponent.EffectiveMinimum()

	var matches []SlotMatch
	for _, id := range slot.Universe() {
		proposerRoster := proposer.AvailableIn(w, id)
		if len(proposerRoster) < proposerMin {
			continue
		}
		opponentRoster := opponent.AvailableIn(w, id)
		if len(opponentRoster) < opponentMin {
			continue
		}
		matches = append(matches, SlotMatch{
			Slot:           id,
			ProposerCount:  len(proposerRoster),
			OpponentCount:  len(opponentRoster),
			ProposerRoster: proposerRoster,
			OpponentRoster: opponentRoster,
		})
	}
	return matches
}

// Rank sorts matches by combined player count, descending, breaking ties
// chronologically. It sorts in place and returns its argument.
func Rank(matches []SlotMatch) []SlotMatch {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Total() != matches[j].Total() {
			return matches[i].Total() > matches[j].Total()
		}
		return matches[i].Slot.Before(matches[j].Slot)
	})
	return matches
}

// Index keys matches by slot.
func Index(matches []SlotMatch) map[slot.ID]SlotMatch {
	byID := make(map[slot.ID]SlotMatch, len(matches))
	for _, m := range matches {
		byID[m.Slot] = m
	}
	return byID
}

// FullRosterSide builds a side under the full-roster rule: the team's roster
// size, less one for a standin. Standins only apply to practice games.
func FullRosterSide(t *team.Team, snap *slot.Snapshot, gameType GameType, standin bool) Side {
	return Side{
		Roster:   t.PlayerIDs(),
		Snapshot: snap,
		Minimum:  t.FullRosterSize(),
		Standin:  standin && gameType == GameTypePractice,
	}
}

// ThresholdSide builds a side with an explicit minimum and no standin.
func ThresholdSide(t *team.Team, snap *slot.Snapshot, minimum int) Side {
	return Side{
		Roster:   t.PlayerIDs(),
		Snapshot: snap,
		Minimum:  minimum,
	}
}
