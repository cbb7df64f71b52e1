package http

import (
	"net/http"

	"github.com/mauv0809/scrim-scheduler/internal/availability"
	"github.com/mauv0809/scrim-scheduler/internal/comparison"
	"github.com/mauv0809/scrim-scheduler/internal/config"
	"github.com/mauv0809/scrim-scheduler/internal/enforcer"
	"github.com/mauv0809/scrim-scheduler/internal/metrics"
	"github.com/mauv0809/scrim-scheduler/internal/processor"
	"github.com/mauv0809/scrim-scheduler/internal/proposal"
	"github.com/mauv0809/scrim-scheduler/internal/pubsub"
	"github.com/mauv0809/scrim-scheduler/internal/slot"
	"github.com/mauv0809/scrim-scheduler/internal/team"
	"github.com/mauv0809/scrim-scheduler/internal/viability"
)

// Deps are the services the HTTP surface fronts.
type Deps struct {
	Teams          team.Store
	Availability   availability.Store
	Snapshots      slot.Source
	Negotiator     *proposal.Negotiator
	Enforcers      *enforcer.Manager
	Comparison     comparison.Deps
	Processor      *processor.Processor
	Counters       metrics.CounterStore
	Metrics        metrics.Metrics
	MetricsHandler http.Handler
	PubSub         pubsub.PubSubClient
	Cfg            config.Config
}

type Server struct {
	Deps
	Router *http.ServeMux
}

// viableResponse is the body of GET /viable.
type viableResponse struct {
	Week  slot.Week             `json:"week"`
	Slots []viability.SlotMatch `json:"slots"`
}

// availabilityResponse is a readable view of one team's week.
type availabilityResponse struct {
	TeamID    string               `json:"team_id"`
	Week      slot.Week            `json:"week"`
	Available map[slot.ID][]string `json:"available"`
	Away      map[slot.ID][]string `json:"away"`
}
