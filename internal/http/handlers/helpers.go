package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/scrim-scheduler/internal/availability"
	"github.com/mauv0809/scrim-scheduler/internal/match"
	"github.com/mauv0809/scrim-scheduler/internal/proposal"
	"github.com/mauv0809/scrim-scheduler/internal/slot"
	"github.com/mauv0809/scrim-scheduler/internal/team"
)

// ContextKey is a custom type to avoid key collisions in context.
type ContextKey string

const (
	DryRunKey ContextKey = "dryRun"
)

// IsDryRunFromContext is a helper to safely retrieve the dry_run flag from the request context.
func IsDryRunFromContext(r *http.Request) bool {
	dryRun, ok := r.Context().Value(DryRunKey).(bool)
	return ok && dryRun
}

// ErrorResponse is the body of every failed JSON request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, slot.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, availability.ErrInvalidChange):
		return http.StatusBadRequest
	case errors.Is(err, proposal.ErrNotViable), errors.Is(err, proposal.ErrInvalidSettings):
		return http.StatusUnprocessableEntity
	case errors.Is(err, proposal.ErrStaleProposal), errors.Is(err, proposal.ErrWriteConflict), errors.Is(err, proposal.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, proposal.ErrNotScheduler), errors.Is(err, proposal.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, proposal.ErrNotFound), errors.Is(err, team.ErrNotFound), errors.Is(err, match.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to write response", "error", err)
	}
}

// WriteError writes err as a JSON error body with the status StatusFor picks.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("Request failed", "error", err)
	} else {
		log.Debug("Request rejected", "error", err, "status", status)
	}
	WriteJSON(w, status, ErrorResponse{Error: err.Error()})
}

// BadRequest writes a 400 with msg.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg})
}
