package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/scrim-scheduler/internal/enforcer"
	"github.com/mauv0809/scrim-scheduler/internal/match"
	"github.com/mauv0809/scrim-scheduler/internal/processor"
	"github.com/mauv0809/scrim-scheduler/internal/pubsub"
)

// decodePush unwraps a Pub/Sub push request and decodes its payload into v.
func decodePush(r *http.Request, pubsubClient pubsub.PubSubClient, v any) error {
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	log.Debug("Received push message", "path", r.URL.Path, "body", string(bodyBytes))

	var push pubsub.PushRequest
	if err := json.Unmarshal(bodyBytes, &push); err != nil {
		return fmt.Errorf("invalid push envelope: %w", err)
	}
	if len(push.Message.Data) == 0 {
		return fmt.Errorf("push message %s has no data", push.Message.ID)
	}
	if err := pubsubClient.ProcessMessage(push.Message.Data, v); err != nil {
		return fmt.Errorf("failed to decode message %s: %w", push.Message.ID, err)
	}
	return nil
}

// MatchBookedHandler receives proposal-matched events and posts the booking notification.
func MatchBookedHandler(processor *processor.Processor, pubsubClient pubsub.PubSubClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var m match.ScheduledMatch
		if err := decodePush(r, pubsubClient, &m); err != nil {
			log.Error("Failed to decode match booked message", "error", err)
			BadRequest(w, err.Error())
			return
		}
		if err := processor.NotifyMatchScheduled(r.Context(), &m, IsDryRunFromContext(r)); err != nil {
			log.Error("Failed to notify booking", "error", err, "matchID", m.ID)
			WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to notify booking"})
			return
		}
		w.Write([]byte("OK"))
	}
}

// AutoWithdrawnHandler receives confirmation-auto-withdrawn events.
func AutoWithdrawnHandler(processor *processor.Processor, pubsubClient pubsub.PubSubClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev enforcer.Withdrawn
		if err := decodePush(r, pubsubClient, &ev); err != nil {
			log.Error("Failed to decode withdrawal message", "error", err)
			BadRequest(w, err.Error())
			return
		}
		if err := processor.NotifyAutoWithdrawn(r.Context(), &ev, IsDryRunFromContext(r)); err != nil {
			log.Error("Failed to notify withdrawal", "error", err, "proposalID", ev.ProposalID)
			WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to notify withdrawal"})
			return
		}
		w.Write([]byte("OK"))
	}
}
