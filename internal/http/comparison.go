package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/scrim-scheduler/internal/comparison"
	"github.com/mauv0809/scrim-scheduler/internal/http/handlers"
	"github.com/mauv0809/scrim-scheduler/internal/viability"
)

const streamKeepAlive = 15 * time.Second

// startComparison opens a session from the query: team, candidates, weeks,
// user_min, opponent_min and auto.
func (s *Server) startComparison(r *http.Request, b *comparison.Broadcaster) (int, error) {
	q := r.URL.Query()
	weeks, err := queryWeeks(r, "weeks")
	if err != nil {
		return http.StatusBadRequest, err
	}
	userMin, err := queryInt(r, "user_min")
	if err != nil {
		return http.StatusBadRequest, err
	}
	opponentMin, err := queryInt(r, "opponent_min")
	if err != nil {
		return http.StatusBadRequest, err
	}
	thresholds := viability.Thresholds{Proposer: userMin, Opponent: opponentMin}

	if q.Get("auto") == "true" {
		err = b.EnableAutoMode(r.Context(), q.Get("team"), weeks, thresholds)
	} else {
		var candidates []string
		for _, c := range strings.Split(q.Get("candidates"), ",") {
			if c = strings.TrimSpace(c); c != "" {
				candidates = append(candidates, c)
			}
		}
		err = b.Start(r.Context(), comparison.Options{
			UserTeamID: q.Get("team"),
			Candidates: candidates,
			Weeks:      weeks,
			Thresholds: thresholds,
		})
	}
	if err != nil {
		status := handlers.StatusFor(err)
		if status == http.StatusInternalServerError && q.Get("team") == "" {
			status = http.StatusBadRequest
		}
		return status, err
	}
	return http.StatusOK, nil
}

// ComparisonHandler computes the aggregate once.
func (s *Server) ComparisonHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := comparison.New(s.Comparison)
		defer b.End()

		if status, err := s.startComparison(r, b); err != nil {
			handlers.WriteJSON(w, status, handlers.ErrorResponse{Error: err.Error()})
			return
		}
		handlers.WriteJSON(w, http.StatusOK, b.Current())
	}
}

// ComparisonStreamHandler keeps a session open for the life of the request and
// streams every new aggregate as a server-sent event.
func (s *Server) ComparisonStreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			handlers.WriteJSON(w, http.StatusInternalServerError, handlers.ErrorResponse{Error: "streaming unsupported"})
			return
		}

		b := comparison.New(s.Comparison)
		// Latest aggregate wins; a slow client skips revisions.
		updates := make(chan *comparison.Aggregate, 1)
		unsubscribe := b.Subscribe(func(agg *comparison.Aggregate) {
			for {
				select {
				case updates <- agg:
					return
				default:
				}
				select {
				case <-updates:
				default:
				}
			}
		})
		defer unsubscribe()
		defer b.End()

		if status, err := s.startComparison(r, b); err != nil {
			handlers.WriteJSON(w, status, handlers.ErrorResponse{Error: err.Error()})
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		log.Info("Comparison stream opened", "team", b.State().UserTeamID)
		keepAlive := time.NewTicker(streamKeepAlive)
		defer keepAlive.Stop()
		for {
			select {
			case <-r.Context().Done():
				log.Info("Comparison stream closed", "team", b.State().UserTeamID)
				return
			case <-keepAlive.C:
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			case agg := <-updates:
				data, err := json.Marshal(agg)
				if err != nil {
					log.Error("Failed to encode aggregate", "error", err)
					continue
				}
				fmt.Fprintf(w, "id: %d\nevent: aggregate\ndata: %s\n\n", agg.Revision, data)
				flusher.Flush()
			}
		}
	}
}
