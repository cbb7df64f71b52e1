package http

import (
	"net/http"

	"github.com/mauv0809/scrim-scheduler/internal/http/handlers"
)

func NewServer(deps Deps) *Server {
	server := &Server{
		Deps:   deps,
		Router: http.NewServeMux(),
	}

	server.routes()
	return server
}

func (s *Server) routes() {
	// All handlers are wrapped with middleware using the Chain helper.
	// e.g. Chain(s.MyHandler(), paramsMiddleware, authMiddleware)
	s.Router.Handle("GET /metrics", s.MetricsHandler)
	s.Router.Handle("GET /health", Chain(handlers.HealthCheckHandler(), paramsMiddleware))
	s.Router.Handle("GET /stats", Chain(handlers.StatsHandler(s.Counters), paramsMiddleware))

	s.Router.Handle("GET /viable", Chain(s.ViableSlotsHandler(), paramsMiddleware))
	s.Router.Handle("POST /teams", Chain(s.UpsertTeamHandler(), paramsMiddleware, jsonBodyMiddleware))
	s.Router.Handle("GET /teams/{id}", Chain(s.GetTeamHandler(), paramsMiddleware))
	s.Router.Handle("POST /availability", Chain(s.AvailabilityHandler(), paramsMiddleware, jsonBodyMiddleware))

	s.Router.Handle("GET /proposals", Chain(s.ListProposalsHandler(), paramsMiddleware))
	s.Router.Handle("POST /proposals", Chain(s.CreateProposalHandler(), paramsMiddleware, jsonBodyMiddleware))
	s.Router.Handle("GET /proposals/{id}", Chain(s.GetProposalHandler(), paramsMiddleware))
	s.Router.Handle("POST /proposals/{id}/confirm", Chain(s.ConfirmSlotHandler(), paramsMiddleware, jsonBodyMiddleware))
	s.Router.Handle("POST /proposals/{id}/withdraw", Chain(s.WithdrawHandler(), paramsMiddleware, jsonBodyMiddleware))
	s.Router.Handle("POST /proposals/{id}/cancel", Chain(s.CancelProposalHandler(), paramsMiddleware, jsonBodyMiddleware))
	s.Router.Handle("POST /proposals/{id}/settings", Chain(s.SettingsHandler(), paramsMiddleware, jsonBodyMiddleware))

	s.Router.Handle("GET /comparison", Chain(s.ComparisonHandler(), paramsMiddleware))
	s.Router.Handle("GET /comparison/stream", Chain(s.ComparisonStreamHandler(), paramsMiddleware))

	s.Router.Handle("POST /process", Chain(handlers.ProcessMatchesHandler(s.Processor), paramsMiddleware))
	s.Router.Handle("POST /pubsub/match-booked", Chain(handlers.MatchBookedHandler(s.Processor, s.PubSub), paramsMiddleware))
	s.Router.Handle("POST /pubsub/auto-withdrawn", Chain(handlers.AutoWithdrawnHandler(s.Processor, s.PubSub), paramsMiddleware))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}
