package proposal_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mauv0809/scrim-scheduler/internal/availability"
	"github.com/mauv0809/scrim-scheduler/internal/database"
	"github.com/mauv0809/scrim-scheduler/internal/match"
	"github.com/mauv0809/scrim-scheduler/internal/metrics"
	"github.com/mauv0809/scrim-scheduler/internal/proposal"
	"github.com/mauv0809/scrim-scheduler/internal/pubsub"
	"github.com/mauv0809/scrim-scheduler/internal/slot"
	"github.com/mauv0809/scrim-scheduler/internal/team"
	"github.com/mauv0809/scrim-scheduler/internal/viability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	negotiator   *proposal.Negotiator
	proposals    proposal.Store
	availability availability.Store
	matches      match.Store
	pubsub       *pubsub.MockPubSubClient
	metrics      *metrics.Mock
	teams        team.Store
	cache        *slot.Cache
}

func newTeam(id string) *team.Team {
	t := &team.Team{ID: id, Tag: id, Name: "Team " + id, SchedulerIDs: []string{id + "1"}}
	for i := 1; i <= 4; i++ {
		t.Roster = append(t.Roster, team.Player{UserID: fmt.Sprintf("%s%d", id, i)})
	}
	return t
}

func setupNegotiator(t *testing.T) *fixture {
	t.Helper()

	db, teardown, err := database.InitDB(":memory:", "", "")
	require.NoError(t, err)
	t.Cleanup(teardown)

	teams := team.New(db, 4)
	for _, id := range []string{"a", "b"} {
		require.NoError(t, teams.UpsertTeam(context.Background(), newTeam(id)))
	}

	f := &fixture{
		proposals:    proposal.NewStore(db),
		availability: availability.New(db),
		matches:      match.New(db),
		pubsub:       pubsub.NewMock("test"),
		metrics:      metrics.NewMock(),
		teams:        teams,
	}
	f.cache = slot.NewCache(f.availability, 0)
	t.Cleanup(f.cache.Close)
	f.negotiator = proposal.New(f.proposals, teams, f.cache, f.matches, f.pubsub, f.metrics)
	return f
}

// useMatches swaps the scheduled-match store behind the negotiator.
func (f *fixture) useMatches(matches match.Store) {
	f.matches = matches
	f.negotiator = proposal.New(f.proposals, f.teams, f.cache, matches, f.pubsub, f.metrics)
}

// available marks users of a team available in id.
func (f *fixture) available(t *testing.T, teamID string, id slot.ID, users ...string) {
	t.Helper()
	for _, u := range users {
		_, err := f.availability.Apply(context.Background(), availability.Change{
			TeamID: teamID, Week: week, UserID: u, Slots: []slot.ID{id}, State: availability.StateAvailable,
		})
		require.NoError(t, err)
	}
}

func (f *fixture) create(t *testing.T, gameType viability.GameType) *proposal.Proposal {
	t.Helper()
	p, err := f.negotiator.CreateProposal(context.Background(), proposal.CreateRequest{
		ProposerTeamID: "a", OpponentTeamID: "b", Week: week, GameType: gameType, UserID: "a1",
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) confirm(teamID string, p *proposal.Proposal, id slot.ID) (proposal.ConfirmResult, error) {
	return f.negotiator.ConfirmSlot(context.Background(), proposal.ConfirmRequest{
		ProposalID: p.ID, TeamID: teamID, UserID: teamID + "1", Slot: id,
	})
}

func TestCreateProposal(t *testing.T) {
	f := setupNegotiator(t)
	ctx := context.Background()

	p := f.create(t, viability.GameTypeOfficial)
	assert.Equal(t, viability.Thresholds{Proposer: 4, Opponent: 4}, p.MinFilter, "zero thresholds default to full rosters")

	tests := []struct {
		name string
		req  proposal.CreateRequest
		want error
	}{
		{"duplicate", proposal.CreateRequest{ProposerTeamID: "b", OpponentTeamID: "a", Week: week, UserID: "b1"}, proposal.ErrDuplicate},
		{"same team", proposal.CreateRequest{ProposerTeamID: "a", OpponentTeamID: "a", Week: week, UserID: "a1"}, proposal.ErrInvalidSettings},
		{"unknown opponent", proposal.CreateRequest{ProposerTeamID: "a", OpponentTeamID: "z", Week: week.Next(), UserID: "a1"}, proposal.ErrNotFound},
		{"not a scheduler", proposal.CreateRequest{ProposerTeamID: "a", OpponentTeamID: "b", Week: week.Next(), UserID: "a2"}, proposal.ErrNotScheduler},
		{"standin on official", proposal.CreateRequest{ProposerTeamID: "a", OpponentTeamID: "b", Week: week.Next(), UserID: "a1", ProposerStandin: true}, proposal.ErrInvalidSettings},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.negotiator.CreateProposal(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestConfirmSlot_ScenarioD(t *testing.T) {
	f := setupNegotiator(t)
	f.available(t, "a", tue, "a1", "a2", "a3", "a4")
	f.available(t, "b", tue, "b1", "b2", "b3", "b4")
	p := f.create(t, viability.GameTypeOfficial)

	first, err := f.confirm("a", p, tue)
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.False(t, first.Matched)

	second, err := f.confirm("b", p, tue)
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.True(t, second.Matched)
	require.NotNil(t, second.Match)
	assert.Equal(t, tue, second.Match.Slot)

	scheduled, err := f.matches.GetByProposal(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	assert.Equal(t, tue, scheduled[0].Slot)
	assert.Equal(t, "a", scheduled[0].TeamAID)
	assert.Equal(t, match.StatusUpcoming, scheduled[0].Status)

	stored, err := f.negotiator.GetProposal(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, proposal.StatusMatched, stored.Status)
	assert.True(t, stored.IsMatchedSlot(tue))

	assert.Len(t, f.pubsub.Sent(pubsub.EventProposalMatched), 1)
	assert.Equal(t, 1, f.metrics.Matches())
	assert.Equal(t, 2, f.metrics.Confirmations())
}

func TestConfirmSlot_MatchingNeedsTheSameSlot(t *testing.T) {
	f := setupNegotiator(t)
	f.available(t, "a", mon, "a1", "a2", "a3", "a4")
	f.available(t, "b", tue, "b1", "b2", "b3", "b4")
	p := f.create(t, viability.GameTypeOfficial)

	_, err := f.confirm("a", p, mon)
	require.NoError(t, err)
	res, err := f.confirm("b", p, tue)
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, proposal.StatusActive, res.Proposal.Status)
}

func TestConfirmSlot_Idempotent(t *testing.T) {
	f := setupNegotiator(t)
	f.available(t, "a", tue, "a1", "a2", "a3", "a4")
	f.available(t, "b", tue, "b1", "b2", "b3", "b4")
	p := f.create(t, viability.GameTypeOfficial)

	_, err := f.confirm("a", p, tue)
	require.NoError(t, err)
	again, err := f.confirm("a", p, tue)
	require.NoError(t, err)
	assert.True(t, again.Success)
	assert.Equal(t, 2, again.Proposal.Version, "a repeated confirmation writes nothing")
	assert.Equal(t, 1, f.metrics.Confirmations())

	_, err = f.confirm("b", p, tue)
	require.NoError(t, err)
	repeat, err := f.confirm("b", p, tue)
	require.NoError(t, err)
	assert.True(t, repeat.Matched)
	assert.Equal(t, 1, f.metrics.Matches(), "matching is not re-triggered")
	assert.Len(t, f.pubsub.Sent(pubsub.EventProposalMatched), 1)

	scheduled, err := f.matches.GetByProposal(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Len(t, scheduled, 1)
}

func TestConfirmSlot_NotViable(t *testing.T) {
	f := setupNegotiator(t)
	f.available(t, "a", mon, "a1", "a2", "a3")
	p := f.create(t, viability.GameTypeOfficial)

	_, err := f.confirm("a", p, mon)
	assert.ErrorIs(t, err, proposal.ErrNotViable)

	stored, err := f.negotiator.GetProposal(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.ConfirmedSlots(proposal.SideProposer), "a rejected confirm leaves state unchanged")
}

func TestConfirmSlot_ScenarioC_PracticeStandin(t *testing.T) {
	f := setupNegotiator(t)
	ctx := context.Background()
	f.available(t, "b", mon, "b1", "b2", "b3")
	p := f.create(t, viability.GameTypePractice)

	_, err := f.confirm("b", p, mon)
	assert.ErrorIs(t, err, proposal.ErrNotViable)

	standin := true
	_, err = f.negotiator.UpdateProposalSettings(ctx, proposal.SettingsRequest{
		ProposalID: p.ID, TeamID: "b", UserID: "b1", Standin: &standin,
	})
	require.NoError(t, err)

	res, err := f.confirm("b", p, mon)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestConfirmSlot_RejectsStaleActions(t *testing.T) {
	f := setupNegotiator(t)
	ctx := context.Background()
	f.available(t, "a", mon, "a1", "a2", "a3", "a4")
	p := f.create(t, viability.GameTypeOfficial)

	_, err := f.negotiator.ConfirmSlot(ctx, proposal.ConfirmRequest{
		ProposalID: p.ID, TeamID: "a", UserID: "a1", Slot: mon, GameType: viability.GameTypePractice,
	})
	assert.ErrorIs(t, err, proposal.ErrStaleProposal, "the caller saw different settings")

	_, err = f.negotiator.CancelProposal(ctx, proposal.CancelRequest{ProposalID: p.ID, TeamID: "b", UserID: "b1"})
	require.NoError(t, err)

	_, err = f.confirm("a", p, mon)
	assert.ErrorIs(t, err, proposal.ErrStaleProposal)
}

func TestAuthorization(t *testing.T) {
	f := setupNegotiator(t)
	p := f.create(t, viability.GameTypeOfficial)
	ctx := context.Background()

	_, err := f.negotiator.ConfirmSlot(ctx, proposal.ConfirmRequest{ProposalID: p.ID, TeamID: "a", UserID: "a2", Slot: mon})
	assert.ErrorIs(t, err, proposal.ErrNotScheduler)

	_, err = f.negotiator.WithdrawConfirmation(ctx, proposal.WithdrawRequest{ProposalID: p.ID, TeamID: "c", UserID: "c1", Slot: mon})
	assert.ErrorIs(t, err, proposal.ErrNotParticipant)

	_, err = f.negotiator.CancelProposal(ctx, proposal.CancelRequest{ProposalID: "missing", TeamID: "a", UserID: "a1"})
	assert.ErrorIs(t, err, proposal.ErrNotFound)
}

func TestWithdrawConfirmation(t *testing.T) {
	f := setupNegotiator(t)
	ctx := context.Background()
	f.available(t, "a", mon, "a1", "a2", "a3", "a4")
	p := f.create(t, viability.GameTypeOfficial)
	withdraw := proposal.WithdrawRequest{ProposalID: p.ID, TeamID: "a", UserID: "a1", Slot: mon}

	got, err := f.negotiator.WithdrawConfirmation(ctx, withdraw)
	require.NoError(t, err, "withdrawing an unconfirmed slot is a no-op success")
	assert.Equal(t, 1, got.Version)

	_, err = f.confirm("a", p, mon)
	require.NoError(t, err)
	got, err = f.negotiator.WithdrawConfirmation(ctx, withdraw)
	require.NoError(t, err)
	assert.False(t, got.IsConfirmed(proposal.SideProposer, mon))
	assert.Equal(t, 1, f.metrics.Withdrawals(metrics.WithdrawByUser))
}

func TestWithdrawConfirmation_ReopensMatchedProposal(t *testing.T) {
	f := setupNegotiator(t)
	ctx := context.Background()
	f.available(t, "a", tue, "a1", "a2", "a3", "a4")
	f.available(t, "b", tue, "b1", "b2", "b3", "b4")
	p := f.create(t, viability.GameTypeOfficial)
	_, err := f.confirm("a", p, tue)
	require.NoError(t, err)
	_, err = f.confirm("b", p, tue)
	require.NoError(t, err)

	got, err := f.negotiator.WithdrawConfirmation(ctx, proposal.WithdrawRequest{ProposalID: p.ID, TeamID: "b", UserID: "b1", Slot: tue})
	require.NoError(t, err)
	assert.Equal(t, proposal.StatusActive, got.Status)
	assert.Nil(t, got.MatchedSlot)
	assert.True(t, got.IsConfirmed(proposal.SideProposer, tue), "the other side's confirmation is untouched")

	scheduled, err := f.matches.GetByProposal(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	assert.Equal(t, match.StatusCancelled, scheduled[0].Status)

	rematch, err := f.confirm("b", p, tue)
	require.NoError(t, err)
	assert.True(t, rematch.Matched)
	assert.Equal(t, scheduled[0].ID, rematch.Match.ID)
	assert.Equal(t, match.StatusUpcoming, rematch.Match.Status)
}

func TestConfirmSlot_FailedBookingLeavesProposalActive(t *testing.T) {
	f := setupNegotiator(t)
	ctx := context.Background()
	matches := match.NewMock()
	matches.CreateScheduledMatchFunc = func(ctx context.Context, m *match.ScheduledMatch) (*match.ScheduledMatch, error) {
		return nil, errors.New("disk full")
	}
	f.useMatches(matches)
	f.available(t, "a", tue, "a1", "a2", "a3", "a4")
	f.available(t, "b", tue, "b1", "b2", "b3", "b4")
	p := f.create(t, viability.GameTypeOfficial)
	_, err := f.confirm("a", p, tue)
	require.NoError(t, err)

	_, err = f.confirm("b", p, tue)
	require.ErrorIs(t, err, proposal.ErrNetwork)

	stored, err := f.negotiator.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, proposal.StatusActive, stored.Status)
	assert.Nil(t, stored.MatchedSlot)
	assert.True(t, stored.IsConfirmed(proposal.SideProposer, tue))
	assert.False(t, stored.IsConfirmed(proposal.SideOpponent, tue))
	assert.Zero(t, f.metrics.Matches())
	assert.Empty(t, f.pubsub.Sent(pubsub.EventProposalMatched))

	matches.CreateScheduledMatchFunc = nil
	res, err := f.confirm("b", p, tue)
	require.NoError(t, err)
	assert.True(t, res.Matched)
	require.NotNil(t, res.Match)
}

func TestWithdrawConfirmation_FailedCancelKeepsMatch(t *testing.T) {
	f := setupNegotiator(t)
	ctx := context.Background()
	matches := match.NewMock()
	f.useMatches(matches)
	f.available(t, "a", tue, "a1", "a2", "a3", "a4")
	f.available(t, "b", tue, "b1", "b2", "b3", "b4")
	p := f.create(t, viability.GameTypeOfficial)
	_, err := f.confirm("a", p, tue)
	require.NoError(t, err)
	_, err = f.confirm("b", p, tue)
	require.NoError(t, err)

	matches.CancelScheduledMatchFunc = func(ctx context.Context, proposalID string, id slot.ID) error {
		return errors.New("disk full")
	}
	_, err = f.negotiator.WithdrawConfirmation(ctx, proposal.WithdrawRequest{ProposalID: p.ID, TeamID: "b", UserID: "b1", Slot: tue})
	require.ErrorIs(t, err, proposal.ErrNetwork)

	stored, err := f.negotiator.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, proposal.StatusMatched, stored.Status)
	require.NotNil(t, stored.MatchedSlot)
	assert.Equal(t, tue, *stored.MatchedSlot)
	assert.True(t, stored.IsConfirmed(proposal.SideOpponent, tue))
	assert.Zero(t, f.metrics.Withdrawals(metrics.WithdrawByUser))

	scheduled, err := matches.GetByProposal(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	assert.Equal(t, match.StatusUpcoming, scheduled[0].Status)
}

func TestCancelProposal(t *testing.T) {
	f := setupNegotiator(t)
	ctx := context.Background()
	f.available(t, "a", mon, "a1", "a2", "a3", "a4")
	p := f.create(t, viability.GameTypeOfficial)
	_, err := f.confirm("a", p, mon)
	require.NoError(t, err)

	got, err := f.negotiator.CancelProposal(ctx, proposal.CancelRequest{ProposalID: p.ID, TeamID: "a", UserID: "a1"})
	require.NoError(t, err)
	assert.Equal(t, proposal.StatusCancelled, got.Status)
	assert.Empty(t, got.ConfirmedSlots(proposal.SideProposer))

	_, err = f.negotiator.CancelProposal(ctx, proposal.CancelRequest{ProposalID: p.ID, TeamID: "a", UserID: "a1"})
	assert.ErrorIs(t, err, proposal.ErrStaleProposal)

	_, err = f.negotiator.WithdrawConfirmation(ctx, proposal.WithdrawRequest{ProposalID: p.ID, TeamID: "a", UserID: "a1", Slot: mon})
	assert.ErrorIs(t, err, proposal.ErrStaleProposal)
	assert.Equal(t, 1, f.metrics.Cancellations())
}

func TestUpdateProposalSettings(t *testing.T) {
	f := setupNegotiator(t)
	ctx := context.Background()
	f.available(t, "a", mon, "a1", "a2", "a3", "a4")
	p := f.create(t, viability.GameTypeOfficial)
	_, err := f.confirm("a", p, mon)
	require.NoError(t, err)

	practice, official := viability.GameTypePractice, viability.GameTypeOfficial
	yes := true

	_, err = f.negotiator.UpdateProposalSettings(ctx, proposal.SettingsRequest{ProposalID: p.ID, TeamID: "b", UserID: "b1", Standin: &yes})
	assert.ErrorIs(t, err, proposal.ErrInvalidSettings, "standins need a practice game")

	got, err := f.negotiator.UpdateProposalSettings(ctx, proposal.SettingsRequest{
		ProposalID: p.ID, TeamID: "b", UserID: "b1", GameType: &practice, Standin: &yes,
	})
	require.NoError(t, err)
	assert.Equal(t, viability.GameTypePractice, got.GameType)
	assert.True(t, got.OpponentStandin)
	assert.False(t, got.ProposerStandin, "a side only changes its own standin")
	assert.True(t, got.IsConfirmed(proposal.SideProposer, mon), "settings changes keep confirmations")

	_, err = f.negotiator.UpdateProposalSettings(ctx, proposal.SettingsRequest{ProposalID: p.ID, TeamID: "a", UserID: "a1", GameType: &official})
	assert.ErrorIs(t, err, proposal.ErrInvalidSettings, "the opponent's standin is still set")
}

func TestAutoWithdraw(t *testing.T) {
	f := setupNegotiator(t)
	ctx := context.Background()
	f.available(t, "a", mon, "a1", "a2", "a3", "a4")
	p := f.create(t, viability.GameTypeOfficial)
	_, err := f.confirm("a", p, mon)
	require.NoError(t, err)

	withdrawn, err := f.negotiator.AutoWithdraw(ctx, p.ID, proposal.SideProposer, mon)
	require.NoError(t, err)
	assert.True(t, withdrawn)

	withdrawn, err = f.negotiator.AutoWithdraw(ctx, p.ID, proposal.SideProposer, mon)
	require.NoError(t, err)
	assert.False(t, withdrawn)
	assert.Equal(t, 1, f.metrics.Withdrawals(metrics.WithdrawByAuto))
}

func TestWriteConflictRetriedOnce(t *testing.T) {
	base := &proposal.Proposal{
		ID: "p1", ProposerTeamID: "a", OpponentTeamID: "b", Week: week,
		GameType: viability.GameTypeOfficial, Status: proposal.StatusActive, Version: 1,
	}
	newNegotiator := func(store proposal.Store, m *metrics.Mock) *proposal.Negotiator {
		loader := slot.NewMockLoader()
		snap := slot.NewSnapshot("a", week)
		for _, u := range []string{"a1", "a2", "a3", "a4"} {
			snap.MarkAvailable(mon, u)
		}
		loader.Set(snap)
		return proposal.New(store, team.NewMock(newTeam("a"), newTeam("b")), slot.NewCache(loader, 0), match.NewMock(), pubsub.NewMock("test"), m)
	}

	tests := []struct {
		name      string
		conflicts int
		wantErr   error
		wantCalls int
	}{
		{"first attempt wins", 0, nil, 1},
		{"one conflict is retried", 1, nil, 2},
		{"second conflict surfaces", 2, proposal.ErrWriteConflict, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := proposal.NewMock(base)
			remaining := tt.conflicts
			store.MutateFunc = func(ctx context.Context, id string) error {
				if remaining > 0 {
					remaining--
					return proposal.ErrWriteConflict
				}
				return nil
			}
			m := metrics.NewMock()
			n := newNegotiator(store, m)

			res, err := n.ConfirmSlot(context.Background(), proposal.ConfirmRequest{ProposalID: "p1", TeamID: "a", UserID: "a1", Slot: mon})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.True(t, res.Proposal.IsConfirmed(proposal.SideProposer, mon))
			}
			assert.Equal(t, tt.wantCalls, store.Calls())
			assert.Equal(t, tt.conflicts, m.WriteConflicts())
		})
	}
}

func TestStoreFailuresSurfaceAsNetworkErrors(t *testing.T) {
	store := proposal.NewMock(&proposal.Proposal{
		ID: "p1", ProposerTeamID: "a", OpponentTeamID: "b", Week: week, Status: proposal.StatusActive, Version: 1,
	})
	store.MutateFunc = func(ctx context.Context, id string) error {
		return errors.New("connection reset")
	}
	n := proposal.New(store, team.NewMock(newTeam("a"), newTeam("b")), slot.NewCache(slot.NewMockLoader(), 0), match.NewMock(), pubsub.NewMock("test"), metrics.NewMock())

	_, err := n.CancelProposal(context.Background(), proposal.CancelRequest{ProposalID: "p1", TeamID: "a", UserID: "a1"})
	assert.ErrorIs(t, err, proposal.ErrNetwork)
	assert.Equal(t, 1, store.Calls(), "network errors are not retried")
}

func TestConfirmSlot_DataUnavailable(t *testing.T) {
	loader := slot.NewMockLoader()
	loader.LoadSnapshotFunc = func(ctx context.Context, teamID string, w slot.Week) (*slot.Snapshot, error) {
		return nil, errors.New("timeout")
	}
	store := proposal.NewMock(&proposal.Proposal{
		ID: "p1", ProposerTeamID: "a", OpponentTeamID: "b", Week: week, Status: proposal.StatusActive, Version: 1,
	})
	n := proposal.New(store, team.NewMock(newTeam("a"), newTeam("b")), slot.NewCache(loader, 0), match.NewMock(), pubsub.NewMock("test"), metrics.NewMock())

	_, err := n.ConfirmSlot(context.Background(), proposal.ConfirmRequest{ProposalID: "p1", TeamID: "a", UserID: "a1", Slot: mon})
	assert.ErrorIs(t, err, slot.ErrDataUnavailable)
	assert.Zero(t, store.Calls())
}
