package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mauv0809/scrim-scheduler/internal/availability"
	"github.com/mauv0809/scrim-scheduler/internal/comparison"
	"github.com/mauv0809/scrim-scheduler/internal/config"
	"github.com/mauv0809/scrim-scheduler/internal/database"
	"github.com/mauv0809/scrim-scheduler/internal/enforcer"
	"github.com/mauv0809/scrim-scheduler/internal/http/handlers"
	"github.com/mauv0809/scrim-scheduler/internal/match"
	"github.com/mauv0809/scrim-scheduler/internal/metrics"
	"github.com/mauv0809/scrim-scheduler/internal/notifier"
	"github.com/mauv0809/scrim-scheduler/internal/processor"
	"github.com/mauv0809/scrim-scheduler/internal/proposal"
	"github.com/mauv0809/scrim-scheduler/internal/pubsub"
	"github.com/mauv0809/scrim-scheduler/internal/slot"
	"github.com/mauv0809/scrim-scheduler/internal/team"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	testWeek = slot.MustParseWeek("2026-W42")
	mon      = slot.MustParseID("mon_2000")
	tue      = slot.MustParseID("tue_2000")
)

type testServer struct {
	*Server
	notifier *notifier.Mock
	pubsub   *pubsub.MockPubSubClient
	matches  match.Store
}

// setupTestServer initializes a new server with a test database and mock clients.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	db, teardown, err := database.InitDB(":memory:", "", "")
	require.NoError(t, err)
	t.Cleanup(teardown)

	teams := team.New(db, team.DefaultRosterSize)
	avail := availability.New(db)
	cache := slot.NewCache(avail, 0)
	t.Cleanup(cache.Close)

	reg := prometheus.NewRegistry()
	counters := metrics.NewCounterStore(db)
	metricsSvc := metrics.Durable(metrics.NewService(reg), counters)
	ps := pubsub.NewMock("TEST")
	notif := notifier.NewMock()
	matches := match.New(db)
	proposals := proposal.NewStore(db)
	negotiator := proposal.New(proposals, teams, cache, matches, ps, metricsSvc)

	manager := enforcer.NewManager(context.Background(), enforcer.Deps{
		Proposals:  proposals,
		Teams:      teams,
		Snapshots:  cache,
		Withdrawer: negotiator,
		PubSub:     ps,
		Metrics:    metricsSvc,
		Policy:     enforcer.PolicyOverall,
	})
	t.Cleanup(manager.Close)

	server := NewServer(Deps{
		Teams:        teams,
		Availability: avail,
		Snapshots:    cache,
		Negotiator:   negotiator,
		Enforcers:    manager,
		Comparison: comparison.Deps{
			Teams:     teams,
			Snapshots: cache,
			Matches:   matches,
			Metrics:   metricsSvc,
		},
		Processor:      processor.New(matches, teams, notif, metricsSvc, ps),
		Counters:       counters,
		Metrics:        metricsSvc,
		MetricsHandler: metrics.NewMetricsHandler(reg),
		PubSub:         ps,
		Cfg:            config.Config{},
	})
	return &testServer{Server: server, notifier: notif, pubsub: ps, matches: matches}
}

func (s *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) seedTeams(t *testing.T) {
	t.Helper()
	for _, id := range []string{"a", "b"} {
		tm := team.Team{ID: id, Tag: strings.ToUpper(id), Name: "Team " + id, SchedulerIDs: []string{id + "1"}, Divisions: []string{"gold"}}
		for i := 1; i <= 4; i++ {
			tm.Roster = append(tm.Roster, team.Player{UserID: fmt.Sprintf("%s%d", id, i)})
		}
		rr := s.do(t, http.MethodPost, "/teams", tm)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}
}

func (s *testServer) available(t *testing.T, teamID string, id slot.ID, users ...string) {
	t.Helper()
	for _, u := range users {
		rr := s.do(t, http.MethodPost, "/availability", availability.Change{
			TeamID: teamID, Week: testWeek, UserID: u, Slots: []slot.ID{id}, State: availability.StateAvailable,
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthCheckHandler(t *testing.T) {
	s := setupTestServer(t)
	rr := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK!", rr.Body.String())
}

func TestMetricsHandler(t *testing.T) {
	s := setupTestServer(t)
	rr := s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "scrim_matches_total")
}

func TestTeamsHandlers(t *testing.T) {
	s := setupTestServer(t)
	s.seedTeams(t)

	rr := s.do(t, http.MethodGet, "/teams/a", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[team.Team](t, rr)
	assert.Equal(t, "Team a", got.Name)
	assert.Len(t, got.Roster, 4)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/teams/nope", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/teams", team.Team{Name: "no id"}).Code)
}

func TestAvailabilityHandler(t *testing.T) {
	s := setupTestServer(t)
	s.seedTeams(t)

	rr := s.do(t, http.MethodPost, "/availability", availability.Change{
		TeamID: "a", Week: testWeek, UserID: "a2", Slots: []slot.ID{mon, tue}, State: availability.StateAvailable,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	view := decode[availabilityResponse](t, rr)
	assert.Equal(t, []string{"a2"}, view.Available[mon])
	assert.Equal(t, []string{"a2"}, view.Available[tue])

	rr = s.do(t, http.MethodPost, "/availability", availability.Change{
		TeamID: "a", Week: testWeek, UserID: "a2", Slots: []slot.ID{mon}, State: "maybe",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/availability", strings.NewReader("team=a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	body := `{"team_id":"a","week":"2026-W42","user_id":"a3","slots":["mon_2000"],"state":"available"}`
	req = httptest.NewRequest(http.MethodPost, "/availability", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"a2", "a3"}, decode[availabilityResponse](t, rec).Available[mon])
}

type failingAvailability struct {
	availability.Store
}

func (failingAvailability) Apply(ctx context.Context, change availability.Change) (*slot.Snapshot, error) {
	return nil, errors.New("disk I/O error")
}

func TestAvailabilityHandler_StorageFailure(t *testing.T) {
	s := setupTestServer(t)
	s.Availability = failingAvailability{Store: s.Availability}

	rr := s.do(t, http.MethodPost, "/availability", availability.Change{
		TeamID: "a", Week: testWeek, UserID: "a2", Slots: []slot.ID{mon}, State: availability.StateAvailable,
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotEmpty(t, decode[handlers.ErrorResponse](t, rr).Error)
}

func TestListProposalsHandler(t *testing.T) {
	s := setupTestServer(t)
	s.seedTeams(t)
	rr := s.do(t, http.MethodPost, "/teams", team.Team{ID: "c", Tag: "C", Name: "Team c", SchedulerIDs: []string{"c1"}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	create := func(from, to string, w slot.Week) proposal.Proposal {
		rr := s.do(t, http.MethodPost, "/proposals", proposal.CreateRequest{ProposerTeamID: from, OpponentTeamID: to, Week: w, UserID: from + "1"})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		return decode[proposal.Proposal](t, rr)
	}
	ab := create("a", "b", testWeek)
	ac := create("a", "c", testWeek.Next())
	bc := create("b", "c", testWeek)
	rr = s.do(t, http.MethodPost, "/proposals/"+bc.ID+"/cancel", proposal.CancelRequest{TeamID: "b", UserID: "b1"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	ids := func(rr *httptest.ResponseRecorder) []string {
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var out []string
		for _, p := range decode[[]*proposal.Proposal](t, rr) {
			out = append(out, p.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		target string
		want   []string
	}{
		{"all active", "/proposals", []string{ab.ID, ac.ID}},
		{"active in week", "/proposals?week=" + testWeek.String(), []string{ab.ID}},
		{"active for team", "/proposals?team=c", []string{ac.ID}},
		{"team week in every status", "/proposals?team=c&week=" + testWeek.String(), []string{bc.ID}},
		{"no match", "/proposals?team=c&week=" + testWeek.Next().Next().String(), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, ids(s.do(t, http.MethodGet, tt.target, nil)))
		})
	}

	rr = s.do(t, http.MethodGet, "/proposals?week=soon", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestViableSlotsHandler(t *testing.T) {
	s := setupTestServer(t)
	s.seedTeams(t)
	s.available(t, "a", mon, "a1", "a2", "a3", "a4")
	s.available(t, "b", mon, "b1", "b2", "b3", "b4")
	s.available(t, "a", tue, "a1", "a2", "a3")
	s.available(t, "b", tue, "b1", "b2", "b3", "b4")

	tests := []struct {
		name   string
		query  string
		status int
		slots  []slot.ID
	}{
		{"full roster by default", "proposer=a&opponent=b&week=2026-W42", http.StatusOK, []slot.ID{mon}},
		{"lower thresholds ranked by total", "proposer=a&opponent=b&week=2026-W42&proposer_min=3&opponent_min=3", http.StatusOK, []slot.ID{mon, tue}},
		{"bad week", "proposer=a&opponent=b&week=soon", http.StatusBadRequest, nil},
		{"bad threshold", "proposer=a&opponent=b&week=2026-W42&proposer_min=-1", http.StatusBadRequest, nil},
		{"unknown team", "proposer=a&opponent=zzz&week=2026-W42", http.StatusNotFound, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, http.MethodGet, "/viable?"+tt.query, nil)
			require.Equal(t, tt.status, rr.Code, rr.Body.String())
			if tt.status != http.StatusOK {
				assert.NotEmpty(t, decode[handlers.ErrorResponse](t, rr).Error)
				return
			}
			resp := decode[viableResponse](t, rr)
			var got []slot.ID
			for _, m := range resp.Slots {
				got = append(got, m.Slot)
			}
			assert.Equal(t, tt.slots, got)
		})
	}
}

func TestProposalFlow(t *testing.T) {
	s := setupTestServer(t)
	s.seedTeams(t)
	s.available(t, "a", mon, "a1", "a2", "a3", "a4")
	s.available(t, "b", mon, "b1", "b2", "b3", "b4")

	rr := s.do(t, http.MethodPost, "/proposals", proposal.CreateRequest{
		ProposerTeamID: "a", OpponentTeamID: "b", Week: testWeek, UserID: "a1",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	p := decode[proposal.Proposal](t, rr)
	assert.Equal(t, proposal.StatusActive, p.Status)
	assert.True(t, s.Enforcers.Watching(p.ID))

	rr = s.do(t, http.MethodPost, "/proposals/"+p.ID+"/confirm", proposal.ConfirmRequest{TeamID: "a", UserID: "a1", Slot: mon})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.False(t, decode[proposal.ConfirmResult](t, rr).Matched)

	rr = s.do(t, http.MethodPost, "/proposals/"+p.ID+"/confirm", proposal.ConfirmRequest{TeamID: "b", UserID: "b1", Slot: mon})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decode[proposal.ConfirmResult](t, rr)
	assert.True(t, res.Matched)
	require.NotNil(t, res.Match)
	assert.Equal(t, mon, res.Match.Slot)

	rr = s.do(t, http.MethodGet, "/proposals/"+p.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	stored := decode[proposal.Proposal](t, rr)
	assert.Equal(t, proposal.StatusMatched, stored.Status)
	require.NotNil(t, stored.MatchedSlot)
	assert.Equal(t, mon, *stored.MatchedSlot)
	assert.Len(t, s.pubsub.Sent(pubsub.EventProposalMatched), 1)

	rr = s.do(t, http.MethodGet, "/proposals?team=b", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]*proposal.Proposal](t, rr), "matched proposals are not active")

	// Withdrawing the matched slot reopens the proposal.
	rr = s.do(t, http.MethodPost, "/proposals/"+p.ID+"/withdraw", proposal.WithdrawRequest{TeamID: "b", UserID: "b1", Slot: mon})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, proposal.StatusActive, decode[proposal.Proposal](t, rr).Status)

	rr = s.do(t, http.MethodPost, "/proposals/"+p.ID+"/settings", map[string]any{"team_id": "a", "user_id": "a1", "game_type": "practice", "standin": true})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[proposal.Proposal](t, rr)
	assert.True(t, updated.ProposerStandin)

	rr = s.do(t, http.MethodPost, "/proposals/"+p.ID+"/cancel", proposal.CancelRequest{TeamID: "a", UserID: "a1"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, proposal.StatusCancelled, decode[proposal.Proposal](t, rr).Status)
	assert.Eventually(t, func() bool { return !s.Enforcers.Watching(p.ID) }, time.Second, 10*time.Millisecond)

	rr = s.do(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	stats := decode[map[string]int](t, rr)
	assert.Equal(t, 1, stats["matches"])
	assert.Equal(t, 1, stats["cancellations"])
	assert.Equal(t, 1, stats["withdrawals_user"])
}

func TestProposalErrors(t *testing.T) {
	s := setupTestServer(t)
	s.seedTeams(t)
	s.available(t, "a", mon, "a1", "a2", "a3", "a4")

	rr := s.do(t, http.MethodPost, "/proposals", proposal.CreateRequest{
		ProposerTeamID: "a", OpponentTeamID: "b", Week: testWeek, UserID: "a1",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	p := decode[proposal.Proposal](t, rr)

	cancelled := decode[proposal.Proposal](t, s.do(t, http.MethodPost, "/proposals", proposal.CreateRequest{
		ProposerTeamID: "b", OpponentTeamID: "a", Week: testWeek.Next(), UserID: "b1",
	}))
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/proposals/"+cancelled.ID+"/cancel", proposal.CancelRequest{TeamID: "b", UserID: "b1"}).Code)

	tests := []struct {
		name   string
		method string
		target string
		body   any
		status int
	}{
		{"not a scheduler", http.MethodPost, "/proposals/" + p.ID + "/confirm", proposal.ConfirmRequest{TeamID: "a", UserID: "a2", Slot: mon}, http.StatusForbidden},
		{"not viable", http.MethodPost, "/proposals/" + p.ID + "/confirm", proposal.ConfirmRequest{TeamID: "b", UserID: "b1", Slot: mon}, http.StatusUnprocessableEntity},
		{"stale", http.MethodPost, "/proposals/" + cancelled.ID + "/confirm", proposal.ConfirmRequest{TeamID: "a", UserID: "a1", Slot: mon}, http.StatusConflict},
		{"duplicate", http.MethodPost, "/proposals", proposal.CreateRequest{ProposerTeamID: "b", OpponentTeamID: "a", Week: testWeek, UserID: "b1"}, http.StatusConflict},
		{"unknown proposal", http.MethodGet, "/proposals/nope", nil, http.StatusNotFound},
		{"invalid settings", http.MethodPost, "/proposals/" + p.ID + "/settings", map[string]any{"team_id": "a", "user_id": "a1", "standin": true}, http.StatusUnprocessableEntity},
		{"unknown field", http.MethodPost, "/proposals/" + p.ID + "/confirm", map[string]any{"team": "a"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
			assert.NotEmpty(t, decode[handlers.ErrorResponse](t, rr).Error)
		})
	}
}

func pushBody(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := msgpack.Marshal(v)
	require.NoError(t, err)
	return map[string]any{
		"message":      map[string]any{"data": data, "messageId": "msg-1"},
		"subscription": "projects/test/subscriptions/sub",
	}
}

func TestMatchBookedHandler(t *testing.T) {
	s := setupTestServer(t)
	s.seedTeams(t)

	booked := &match.ScheduledMatch{ID: "m1", ProposalID: "p1", TeamAID: "a", TeamBID: "b", Week: testWeek, Slot: mon, Status: match.StatusUpcoming}
	rr := s.do(t, http.MethodPost, "/pubsub/match-booked", pushBody(t, booked))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	calls := s.notifier.Scheduled()
	require.Len(t, calls, 1)
	assert.Equal(t, "m1", calls[0].Match.ID)
	assert.Equal(t, mon, calls[0].Match.Slot)
	assert.Equal(t, "Team a", calls[0].TeamA.Name)

	rr = s.do(t, http.MethodPost, "/pubsub/match-booked", map[string]any{"message": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAutoWithdrawnHandler(t *testing.T) {
	s := setupTestServer(t)
	s.seedTeams(t)

	ev := &enforcer.Withdrawn{ProposalID: "p1", TeamID: "a", Side: proposal.SideProposer, Week: testWeek, Slot: tue, Reason: enforcer.ReasonOwnShort}
	rr := s.do(t, http.MethodPost, "/pubsub/auto-withdrawn", pushBody(t, ev))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Len(t, s.notifier.Withdrawn(), 1)
	assert.Equal(t, tue, s.notifier.Withdrawn()[0].Slot)
}

func TestProcessMatchesHandler(t *testing.T) {
	s := setupTestServer(t)
	rr := s.do(t, http.MethodPost, "/process?dry_run=true", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[handlers.ProcessResponse](t, rr)
	assert.True(t, resp.DryRun)
	assert.Zero(t, resp.Completed)
}

func TestComparisonHandler(t *testing.T) {
	s := setupTestServer(t)
	s.seedTeams(t)
	s.available(t, "a", mon, "a1", "a2", "a3", "a4")
	s.available(t, "b", mon, "b1", "b2", "b3", "b4")

	for _, query := range []string{"team=a&candidates=b&weeks=2026-W42", "team=a&auto=true&weeks=2026-W42"} {
		t.Run(query, func(t *testing.T) {
			rr := s.do(t, http.MethodGet, "/comparison?"+query, nil)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			agg := decode[comparison.Aggregate](t, rr)
			require.Len(t, agg.Slots[testWeek][mon], 1)
			assert.Equal(t, "b", agg.Slots[testWeek][mon][0].TeamID)
		})
	}

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/comparison?team=zzz", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/comparison", nil).Code)
}

func TestComparisonStreamHandler(t *testing.T) {
	s := setupTestServer(t)
	s.seedTeams(t)
	s.available(t, "a", mon, "a1", "a2", "a3", "a4")
	s.available(t, "b", mon, "b1", "b2", "b3", "b4")

	srv := httptest.NewServer(s)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/comparison/stream?team=a&candidates=b&weeks=2026-W42", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan comparison.Aggregate, 8)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := scanner.Text()
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var agg comparison.Aggregate
				if json.Unmarshal([]byte(data), &agg) == nil {
					events <- agg
				}
			}
		}
	}()

	first := <-events
	require.Len(t, first.Slots[testWeek][mon], 1)
	assert.Empty(t, first.Slots[testWeek][tue])

	s.available(t, "a", tue, "a1", "a2", "a3", "a4")
	s.available(t, "b", tue, "b1", "b2", "b3", "b4")

	for agg := range events {
		if len(agg.Slots[testWeek][tue]) == 1 {
			assert.Greater(t, agg.Revision, first.Revision)
			return
		}
	}
	t.Fatal("stream ended before the new slot appeared")
}
