package proposal

import "github.com/mauv0809/scrim-scheduler/internal/slot"

// TeamID returns the team playing side s.
func (p *Proposal) TeamID(s Side) string {
	if s == SideProposer {
		return p.ProposerTeamID
	}
	return p.OpponentTeamID
}

// SideOf returns the side teamID plays, if any.
func (p *Proposal) SideOf(teamID string) (Side, bool) {
	switch teamID {
	case p.ProposerTeamID:
		return SideProposer, true
	case p.OpponentTeamID:
		return SideOpponent, true
	}
	return "", false
}

// Confirmed returns the confirmation map owned by side s.
func (p *Proposal) Confirmed(s Side) map[slot.ID]bool {
	if s == SideProposer {
		if p.ProposerConfirmed == nil {
			p.ProposerConfirmed = make(map[slot.ID]bool)
		}
		return p.ProposerConfirmed
	}
	if p.OpponentConfirmed == nil {
		p.OpponentConfirmed = make(map[slot.ID]bool)
	}
	return p.OpponentConfirmed
}

// IsConfirmed reports whether side s has confirmed id.
func (p *Proposal) IsConfirmed(s Side, id slot.ID) bool {
	if s == SideProposer {
		return p.ProposerConfirmed[id]
	}
	return p.OpponentConfirmed[id]
}

// ConfirmedSlots returns side s's confirmed slots in chronological order.
func (p *Proposal) ConfirmedSlots(s Side) []slot.ID {
	src := p.ProposerConfirmed
	if s == SideOpponent {
		src = p.OpponentConfirmed
	}
	ids := make([]slot.ID, 0, len(src))
	for id, ok := range src {
		if ok {
			ids = append(ids, id)
		}
	}
	slot.Sort(ids)
	return ids
}

// Standin returns side s's standin flag.
func (p *Proposal) Standin(s Side) bool {
	if s == SideProposer {
		return p.ProposerStandin
	}
	return p.OpponentStandin
}

// SetStandin sets side s's standin flag.
func (p *Proposal) SetStandin(s Side, v bool) {
	if s == SideProposer {
		p.ProposerStandin = v
	} else {
		p.OpponentStandin = v
	}
}

// IsMatchedSlot reports whether id is the proposal's matched slot.
func (p *Proposal) IsMatchedSlot(id slot.ID) bool {
	return p.MatchedSlot != nil && *p.MatchedSlot == id
}

// Clone returns a deep copy.
func (p *Proposal) Clone() *Proposal {
	c := *p
	c.ProposerConfirmed = cloneFlags(p.ProposerConfirmed)
	c.OpponentConfirmed = cloneFlags(p.OpponentConfirmed)
	if p.MatchedSlot != nil {
		id := *p.MatchedSlot
		c.MatchedSlot = &id
	}
	return &c
}

func cloneFlags(src map[slot.ID]bool) map[slot.ID]bool {
	dst := make(map[slot.ID]bool, len(src))
	for id, ok := range src {
		if ok {
			dst[id] = true
		}
	}
	return dst
}
