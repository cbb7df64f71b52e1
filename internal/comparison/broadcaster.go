package comparison

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/scrim-scheduler/internal/match"
	"github.com/mauv0809/scrim-scheduler/internal/realtime"
	"github.com/mauv0809/scrim-scheduler/internal/slot"
	"github.com/mauv0809/scrim-scheduler/internal/team"
	"github.com/mauv0809/scrim-scheduler/internal/viability"
	"golang.org/x/sync/errgroup"
)

// ErrInactive is returned when a session operation runs without an active session.
var ErrInactive = errors.New("comparison is not active")

// New creates an inactive Broadcaster.
func New(deps Deps) *Broadcaster {
	return &Broadcaster{
		deps:   deps,
		hub:    realtime.NewHub[struct{}, *Aggregate](),
		unsubs: make(map[slot.Key]func()),
		now:    time.Now,
	}
}

// Start begins a session, replacing any active one, and computes the first aggregate.
func (b *Broadcaster) Start(ctx context.Context, opts Options) error {
	return b.start(ctx, opts, false)
}

// EnableAutoMode starts a session whose candidates are every team sharing a
// division with the user team.
func (b *Broadcaster) EnableAutoMode(ctx context.Context, userTeamID string, weeks []slot.Week, thresholds viability.Thresholds) error {
	candidates, err := b.divisionRivals(ctx, userTeamID)
	if err != nil {
		return err
	}
	return b.start(ctx, Options{UserTeamID: userTeamID, Candidates: candidates, Weeks: weeks, Thresholds: thresholds}, true)
}

func (b *Broadcaster) start(ctx context.Context, opts Options, auto bool) error {
	if opts.UserTeamID == "" {
		return errors.New("user team id is required")
	}
	if _, err := b.deps.Teams.GetTeam(ctx, opts.UserTeamID); err != nil {
		return fmt.Errorf("failed to load user team: %w", err)
	}
	b.End()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b.mu.Lock()
	b.session++
	b.state = State{
		Active:     true,
		AutoMode:   auto,
		UserTeamID: opts.UserTeamID,
		Candidates: normalizeCandidates(opts.UserTeamID, opts.Candidates),
		Thresholds: opts.Thresholds,
		Weeks:      normalizeWeeks(opts.Weeks),
	}
	b.tick = make(chan struct{}, 1)
	b.done = make(chan struct{})
	b.cancel = cancel
	tick, done := b.tick, b.done
	b.mu.Unlock()

	b.resubscribe()
	go b.run(runCtx, tick, done)

	log.Info("Started comparison", "team", opts.UserTeamID, "candidates", len(b.State().Candidates), "auto", auto)
	_, err := b.Recompute(ctx)
	return err
}

// SetCandidates replaces the candidate set. Auto mode is turned off.
func (b *Broadcaster) SetCandidates(ctx context.Context, candidates []string) error {
	b.mu.Lock()
	if !b.state.Active {
		b.mu.Unlock()
		return ErrInactive
	}
	b.state.Candidates = normalizeCandidates(b.state.UserTeamID, candidates)
	b.state.AutoMode = false
	b.mu.Unlock()

	b.resubscribe()
	_, err := b.Recompute(ctx)
	return err
}

// SetWeeks replaces the displayed weeks.
func (b *Broadcaster) SetWeeks(ctx context.Context, weeks []slot.Week) error {
	b.mu.Lock()
	if !b.state.Active {
		b.mu.Unlock()
		return ErrInactive
	}
	b.state.Weeks = normalizeWeeks(weeks)
	b.mu.Unlock()

	b.resubscribe()
	_, err := b.Recompute(ctx)
	return err
}

// End clears every subscription and the cached aggregate. No listener is
// invoked for this session after End returns.
func (b *Broadcaster) End() {
	b.mu.Lock()
	wasActive := b.state.Active
	b.state = State{}
	b.current = nil
	unsubs := b.unsubs
	b.unsubs = make(map[slot.Key]func())
	cancel, done := b.cancel, b.done
	b.cancel, b.done, b.tick = nil, nil, nil
	b.mu.Unlock()

	for _, unsubscribe := range unsubs {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
		<-done
	}
	// Wait out an emission already in progress.
	b.emitMu.Lock()
	b.emitMu.Unlock()

	if wasActive {
		log.Info("Ended comparison")
	}
}

// State returns a copy of the session state.
func (b *Broadcaster) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.state
	s.Candidates = slices.Clone(s.Candidates)
	s.Weeks = slices.Clone(s.Weeks)
	return s
}

// Current returns the latest aggregate, or nil when inactive.
func (b *Broadcaster) Current() *Aggregate {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Subscribe registers fn for every new aggregate. Unsubscribing is
// synchronous. fn must not call End.
func (b *Broadcaster) Subscribe(fn func(*Aggregate)) func() {
	return b.hub.Subscribe(struct{}{}, fn)
}

// Recompute rebuilds the aggregate from current data and notifies listeners once.
func (b *Broadcaster) Recompute(ctx context.Context) (*Aggregate, error) {
	b.mu.Lock()
	if !b.state.Active {
		b.mu.Unlock()
		return nil, ErrInactive
	}
	state := b.state
	session := b.session
	b.mu.Unlock()

	start := time.Now()
	agg, err := b.compute(ctx, state)
	if err != nil {
		return nil, err
	}

	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	if !b.state.Active || b.session != session {
		b.mu.Unlock()
		return nil, ErrInactive
	}
	b.revision++
	agg.Revision = b.revision
	b.current = agg
	b.mu.Unlock()

	b.hub.Publish(struct{}{}, agg)
	b.deps.Metrics.ObserveRecomputeDuration(time.Since(start).Seconds())
	log.Debug("Recomputed comparison", "team", state.UserTeamID, "revision", agg.Revision)
	return agg, nil
}

type sideData struct {
	team  *team.Team
	snaps map[slot.Week]*slot.Snapshot
}

func (b *Broadcaster) compute(ctx context.Context, state State) (*Aggregate, error) {
	ids := append([]string{state.UserTeamID}, state.Candidates...)
	data := make([]sideData, len(ids))
	booked := make([][]*match.ScheduledMatch, len(state.Weeks))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			t, err := b.deps.Teams.GetTeam(gctx, id)
			if err != nil {
				return fmt.Errorf("failed to load team %s: %w", id, err)
			}
			snaps := make(map[slot.Week]*slot.Snapshot, len(state.Weeks))
			for _, w := range state.Weeks {
				snap, err := b.deps.Snapshots.Get(gctx, id, w)
				if err != nil {
					log.Warn("Snapshot unavailable, counting nobody", "team", id, "week", w, "error", err)
				}
				snaps[w] = snap
			}
			data[i] = sideData{team: t, snaps: snaps}
			return nil
		})
	}
	for i, w := range state.Weeks {
		g.Go(func() error {
			matches, err := b.deps.Matches.ListForTeamWeek(gctx, state.UserTeamID, w)
			if err != nil {
				return fmt.Errorf("failed to load scheduled matches: %w", err)
			}
			booked[i] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	user := data[0]
	agg := &Aggregate{
		UserTeamID: state.UserTeamID,
		Slots:      make(map[slot.Week]map[slot.ID][]OpponentSlot, len(state.Weeks)),
		Booked:     make(map[slot.Week]map[slot.ID]BookedSlot, len(state.Weeks)),
		ComputedAt: b.now(),
	}
	for i, w := range state.Weeks {
		slots := make(map[slot.ID][]OpponentSlot)
		userSide := viability.ThresholdSide(user.team, user.snaps[w], threshold(state.Thresholds.Proposer, user.team))
		for _, cand := range data[1:] {
			candSide := viability.ThresholdSide(cand.team, cand.snaps[w], threshold(state.Thresholds.Opponent, cand.team))
			for _, m := range viability.ComputeViableSlots(w, userSide, candSide) {
				slots[m.Slot] = append(slots[m.Slot], OpponentSlot{
					TeamID:         cand.team.ID,
					Tag:            cand.team.Tag,
					UserCount:      m.ProposerCount,
					OpponentCount:  m.OpponentCount,
					UserRoster:     m.ProposerRoster,
					OpponentRoster: m.OpponentRoster,
				})
			}
		}
		for _, opponents := range slots {
			slices.SortFunc(opponents, func(a, b OpponentSlot) int {
				if c := cmp.Compare(b.OpponentCount, a.OpponentCount); c != 0 {
					return c
				}
				return cmp.Compare(a.TeamID, b.TeamID)
			})
		}
		agg.Slots[w] = slots

		marks := make(map[slot.ID]BookedSlot)
		for _, m := range booked[i] {
			if m.Status != match.StatusUpcoming {
				continue
			}
			opponent := m.TeamBID
			if opponent == state.UserTeamID {
				opponent = m.TeamAID
			}
			marks[m.Slot] = BookedSlot{MatchID: m.ID, OpponentTeamID: opponent}
		}
		agg.Booked[w] = marks
	}
	return agg, nil
}

func threshold(configured int, t *team.Team) int {
	if configured > 0 {
		return configured
	}
	return t.FullRosterSize()
}

// resubscribe aligns snapshot subscriptions with the session's teams and weeks.
func (b *Broadcaster) resubscribe() {
	b.mu.Lock()
	if !b.state.Active {
		b.mu.Unlock()
		return
	}
	want := make(map[slot.Key]bool)
	for _, id := range append([]string{b.state.UserTeamID}, b.state.Candidates...) {
		for _, w := range b.state.Weeks {
			want[slot.Key{TeamID: id, Week: w}] = true
		}
	}
	var stale []func()
	for key, unsubscribe := range b.unsubs {
		if !want[key] {
			stale = append(stale, unsubscribe)
			delete(b.unsubs, key)
		}
	}
	var missing []slot.Key
	for key := range want {
		if _, ok := b.unsubs[key]; !ok {
			missing = append(missing, key)
		}
	}
	tick, session := b.tick, b.session
	b.mu.Unlock()

	for _, unsubscribe := range stale {
		unsubscribe()
	}

	added := make(map[slot.Key]func(), len(missing))
	for _, key := range missing {
		added[key] = b.deps.Snapshots.OnSnapshotChanged(key.TeamID, key.Week, func(*slot.Snapshot) {
			select {
			case tick <- struct{}{}:
			default:
			}
		})
	}

	b.mu.Lock()
	if b.session != session || !b.state.Active {
		b.mu.Unlock()
		for _, unsubscribe := range added {
			unsubscribe()
		}
		return
	}
	for key, unsubscribe := range added {
		b.unsubs[key] = unsubscribe
	}
	b.mu.Unlock()
}

func (b *Broadcaster) run(ctx context.Context, tick <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			if _, err := b.Recompute(ctx); err != nil && !errors.Is(err, ErrInactive) && ctx.Err() == nil {
				log.Warn("Comparison recompute failed", "error", err)
			}
		}
	}
}

func (b *Broadcaster) divisionRivals(ctx context.Context, userTeamID string) ([]string, error) {
	user, err := b.deps.Teams.GetTeam(ctx, userTeamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user team: %w", err)
	}
	seen := make(map[string]bool)
	var rivals []string
	for _, division := range user.Divisions {
		teams, err := b.deps.Teams.ListByDivision(ctx, division)
		if err != nil {
			return nil, fmt.Errorf("failed to list division %s: %w", division, err)
		}
		for _, t := range teams {
			if t.ID != userTeamID && !seen[t.ID] {
				seen[t.ID] = true
				rivals = append(rivals, t.ID)
			}
		}
	}
	return rivals, nil
}

func normalizeCandidates(userTeamID string, candidates []string) []string {
	out := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if id != "" && id != userTeamID && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

func normalizeWeeks(weeks []slot.Week) []slot.Week {
	out := make([]slot.Week, 0, len(weeks))
	for _, w := range weeks {
		if !slices.Contains(out, w) {
			out = append(out, w)
		}
	}
	slices.SortFunc(out, func(a, b slot.Week) int {
		if c := cmp.Compare(a.Year, b.Year); c != 0 {
			return c
		}
		return cmp.Compare(a.Number, b.Number)
	})
	return out
}
