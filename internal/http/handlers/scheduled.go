package handlers

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/scrim-scheduler/internal/processor"
)

// ProcessResponse reports a processing run.
type ProcessResponse struct {
	Completed int  `json:"completed"`
	DryRun    bool `json:"dry_run"`
}

// ProcessMatchesHandler is triggered by the scheduler to complete played matches.
func ProcessMatchesHandler(processor *processor.Processor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		isDryRun := IsDryRunFromContext(r)

		completed, err := processor.ProcessMatches(r.Context(), isDryRun)
		if err != nil {
			log.Error("Match processing failed", "error", err)
			WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "match processing failed"})
			return
		}
		WriteJSON(w, http.StatusOK, ProcessResponse{Completed: completed, DryRun: isDryRun})
	}
}
