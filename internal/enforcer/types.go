package enforcer

import (
	"context"
	"sync"

	"github.com/mauv0809/scrim-scheduler/internal/metrics"
	"github.com/mauv0809/scrim-scheduler/internal/proposal"
	"github.com/mauv0809/scrim-scheduler/internal/pubsub"
	"github.com/mauv0809/scrim-scheduler/internal/slot"
	"github.com/mauv0809/scrim-scheduler/internal/team"
)

// Policy selects which checks trigger an automatic withdrawal.
type Policy string

const (
	// PolicyOverall withdraws when the slot stops being viable for either side
	// or the own side drops below its effective minimum.
	PolicyOverall Policy = "overall"
	// PolicyOwnSide withdraws only when the own side drops below its effective minimum.
	PolicyOwnSide Policy = "own-side"
)

// Reason explains an automatic withdrawal.
type Reason string

const (
	ReasonOwnShort  Reason = "own-side-short"
	ReasonNotViable Reason = "slot-not-viable"
)

// Withdrawer clears a side's confirmation; *proposal.Negotiator implements it.
type Withdrawer interface {
	AutoWithdraw(ctx context.Context, proposalID string, side proposal.Side, id slot.ID) (bool, error)
}

// Deps are the collaborators an enforcer needs.
type Deps struct {
	Proposals  proposal.Store
	Teams      team.Store
	Snapshots  slot.Source
	Withdrawer Withdrawer
	PubSub     pubsub.PubSubClient
	Metrics    metrics.Metrics
	Policy     Policy
}

// Withdrawn is published after a confirmation is cleared automatically.
type Withdrawn struct {
	ProposalID string        `json:"proposal_id" msgpack:"proposal_id"`
	TeamID     string        `json:"team_id" msgpack:"team_id"`
	Side       proposal.Side `json:"side" msgpack:"side"`
	Week       slot.Week     `json:"week" msgpack:"week_id"`
	Slot       slot.ID       `json:"slot" msgpack:"slot_id"`
	Reason     Reason        `json:"reason" msgpack:"reason"`
}

// Enforcer keeps one side's confirmations of one proposal backed by availability.
type Enforcer struct {
	deps       Deps
	proposalID string
	side       proposal.Side

	tick chan struct{}
	done chan struct{}

	mu       sync.Mutex
	inflight map[slot.ID]bool
	unsubs   []func()
	cancel   context.CancelFunc
	started  bool
	stopped  bool
	stopOnce sync.Once
}

// Manager runs both sides' enforcers for every watched proposal.
type Manager struct {
	deps   Deps
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	watched map[string]*watch
	closed  bool
}

type watch struct {
	enforcers   []*Enforcer
	unsubscribe func()
}
