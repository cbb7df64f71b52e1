package handlers

import (
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/scrim-scheduler/internal/metrics"
)

func HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Received health check request")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK!")
	}
}

// StatsHandler returns the lifetime counters kept in the database.
func StatsHandler(counters metrics.CounterStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := counters.GetAll()
		if err != nil {
			log.Error("Failed to read counters", "error", err)
			WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to read counters"})
			return
		}
		WriteJSON(w, http.StatusOK, stats)
	}
}
