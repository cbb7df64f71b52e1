package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/scrim-scheduler/internal/availability"
	"github.com/mauv0809/scrim-scheduler/internal/http/handlers"
	"github.com/mauv0809/scrim-scheduler/internal/proposal"
	"github.com/mauv0809/scrim-scheduler/internal/slot"
	"github.com/mauv0809/scrim-scheduler/internal/team"
	"github.com/mauv0809/scrim-scheduler/internal/viability"
)

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return v, nil
}

// queryWeeks parses a comma-separated week list, defaulting to the current week.
func queryWeeks(r *http.Request, key string) ([]slot.Week, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return []slot.Week{slot.WeekOf(time.Now())}, nil
	}
	var weeks []slot.Week
	for _, part := range strings.Split(raw, ",") {
		w, err := slot.ParseWeek(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		weeks = append(weeks, w)
	}
	return weeks, nil
}

// snapshot loads a team's week. An unavailable snapshot is served as empty.
func (s *Server) snapshot(ctx context.Context, teamID string, w slot.Week) *slot.Snapshot {
	snap, err := s.Snapshots.Get(ctx, teamID, w)
	if err != nil {
		log.Warn("Serving empty availability", "error", err, "team", teamID, "week", w)
	}
	return snap
}

func (s *Server) ViableSlotsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		week, err := slot.ParseWeek(q.Get("week"))
		if err != nil {
			handlers.BadRequest(w, err.Error())
			return
		}
		proposerMin, err := queryInt(r, "proposer_min")
		if err != nil {
			handlers.BadRequest(w, err.Error())
			return
		}
		opponentMin, err := queryInt(r, "opponent_min")
		if err != nil {
			handlers.BadRequest(w, err.Error())
			return
		}

		proposer, err := s.Teams.GetTeam(r.Context(), q.Get("proposer"))
		if err != nil {
			handlers.WriteError(w, err)
			return
		}
		opponent, err := s.Teams.GetTeam(r.Context(), q.Get("opponent"))
		if err != nil {
			handlers.WriteError(w, err)
			return
		}
		if proposerMin == 0 {
			proposerMin = proposer.FullRosterSize()
		}
		if opponentMin == 0 {
			opponentMin = opponent.FullRosterSize()
		}

		matches := viability.ComputeViableSlots(week,
			viability.ThresholdSide(proposer, s.snapshot(r.Context(), proposer.ID, week), proposerMin),
			viability.ThresholdSide(opponent, s.snapshot(r.Context(), opponent.ID, week), opponentMin),
		)
		if matches == nil {
			matches = []viability.SlotMatch{}
		}
		handlers.WriteJSON(w, http.StatusOK, viableResponse{Week: week, Slots: viability.Rank(matches)})
	}
}

func (s *Server) UpsertTeamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t team.Team
		if err := decodeBody(r, &t); err != nil {
			handlers.BadRequest(w, err.Error())
			return
		}
		if t.ID == "" {
			handlers.BadRequest(w, "team id is required")
			return
		}
		if err := s.Teams.UpsertTeam(r.Context(), &t); err != nil {
			handlers.WriteError(w, err)
			return
		}
		log.Info("Upserted team", "team", t.ID, "roster", len(t.Roster))
		handlers.WriteJSON(w, http.StatusOK, t)
	}
}

func (s *Server) GetTeamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := s.Teams.GetTeam(r.Context(), r.PathValue("id"))
		if err != nil {
			handlers.WriteError(w, err)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, t)
	}
}

func (s *Server) AvailabilityHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var change availability.Change
		if err := decodeBody(r, &change); err != nil {
			handlers.BadRequest(w, err.Error())
			return
		}
		snap, err := s.Availability.Apply(r.Context(), change)
		if err != nil {
			log.Warn("Failed to apply availability change", "error", err, "team", change.TeamID)
			handlers.WriteError(w, err)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, availabilityResponse{
			TeamID:    snap.TeamID,
			Week:      snap.Week,
			Available: flatten(snap.Available),
			Away:      flatten(snap.Away),
		})
	}
}

func flatten(m map[slot.ID]map[string]struct{}) map[slot.ID][]string {
	out := make(map[slot.ID][]string, len(m))
	for id, users := range m {
		if len(users) == 0 {
			continue
		}
		list := make([]string, 0, len(users))
		for u := range users {
			list = append(list, u)
		}
		sort.Strings(list)
		out[id] = list
	}
	return out
}

func (s *Server) ListProposalsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID := r.URL.Query().Get("team")
		var week *slot.Week
		if raw := r.URL.Query().Get("week"); raw != "" {
			parsed, err := slot.ParseWeek(raw)
			if err != nil {
				handlers.BadRequest(w, err.Error())
				return
			}
			week = &parsed
		}

		var (
			proposals []*proposal.Proposal
			err       error
		)
		if teamID != "" && week != nil {
			proposals, err = s.Negotiator.ListForTeamWeek(r.Context(), teamID, *week)
		} else {
			proposals, err = s.Negotiator.ListActive(r.Context())
		}
		if err != nil {
			handlers.WriteError(w, err)
			return
		}
		filtered := proposals[:0]
		for _, p := range proposals {
			if week != nil && p.Week != *week {
				continue
			}
			if _, ok := p.SideOf(teamID); teamID != "" && !ok {
				continue
			}
			filtered = append(filtered, p)
		}
		proposals = filtered
		if proposals == nil {
			proposals = []*proposal.Proposal{}
		}
		handlers.WriteJSON(w, http.StatusOK, proposals)
	}
}

func (s *Server) CreateProposalHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req proposal.CreateRequest
		if err := decodeBody(r, &req); err != nil {
			handlers.BadRequest(w, err.Error())
			return
		}
		p, err := s.Negotiator.CreateProposal(r.Context(), req)
		if err != nil {
			handlers.WriteError(w, err)
			return
		}
		// The enforcers outlive the request.
		if err := s.Enforcers.Watch(context.WithoutCancel(r.Context()), p.ID); err != nil {
			log.Error("Failed to start enforcers for proposal", "error", err, "proposalID", p.ID)
		}
		handlers.WriteJSON(w, http.StatusCreated, p)
	}
}

func (s *Server) GetProposalHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.Negotiator.GetProposal(r.Context(), r.PathValue("id"))
		if err != nil {
			handlers.WriteError(w, err)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, p)
	}
}

func (s *Server) ConfirmSlotHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req proposal.ConfirmRequest
		if err := decodeBody(r, &req); err != nil {
			handlers.BadRequest(w, err.Error())
			return
		}
		req.ProposalID = r.PathValue("id")
		res, err := s.Negotiator.ConfirmSlot(r.Context(), req)
		if err != nil {
			handlers.WriteError(w, err)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, res)
	}
}

func (s *Server) WithdrawHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req proposal.WithdrawRequest
		if err := decodeBody(r, &req); err != nil {
			handlers.BadRequest(w, err.Error())
			return
		}
		req.ProposalID = r.PathValue("id")
		p, err := s.Negotiator.WithdrawConfirmation(r.Context(), req)
		if err != nil {
			handlers.WriteError(w, err)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, p)
	}
}

func (s *Server) CancelProposalHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req proposal.CancelRequest
		if err := decodeBody(r, &req); err != nil {
			handlers.BadRequest(w, err.Error())
			return
		}
		req.ProposalID = r.PathValue("id")
		p, err := s.Negotiator.CancelProposal(r.Context(), req)
		if err != nil {
			handlers.WriteError(w, err)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, p)
	}
}

func (s *Server) SettingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req proposal.SettingsRequest
		if err := decodeBody(r, &req); err != nil {
			handlers.BadRequest(w, err.Error())
			return
		}
		req.ProposalID = r.PathValue("id")
		p, err := s.Negotiator.UpdateProposalSettings(r.Context(), req)
		if err != nil {
			handlers.WriteError(w, err)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, p)
	}
}
