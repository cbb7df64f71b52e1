package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/scrim-scheduler/internal/availability"
	"github.com/mauv0809/scrim-scheduler/internal/comparison"
	"github.com/mauv0809/scrim-scheduler/internal/config"
	"github.com/mauv0809/scrim-scheduler/internal/database"
	"github.com/mauv0809/scrim-scheduler/internal/enforcer"
	server "github.com/mauv0809/scrim-scheduler/internal/http"
	"github.com/mauv0809/scrim-scheduler/internal/match"
	"github.com/mauv0809/scrim-scheduler/internal/metrics"
	"github.com/mauv0809/scrim-scheduler/internal/notifier/slack"
	"github.com/mauv0809/scrim-scheduler/internal/processor"
	"github.com/mauv0809/scrim-scheduler/internal/proposal"
	"github.com/mauv0809/scrim-scheduler/internal/pubsub"
	"github.com/mauv0809/scrim-scheduler/internal/slot"
	"github.com/mauv0809/scrim-scheduler/internal/team"
)

func main() {
	// Start profiling timer
	startTime := time.Now()
	log.SetFormatter(log.JSONFormatter)
	cfg := config.Load()
	db, dbTeardown, err := database.InitDB(cfg.DBName, cfg.Turso.PrimaryURL, cfg.Turso.AuthToken)
	dbInitDuration := time.Since(startTime)
	log.Info("Database initialization time recorded", "duration_ms", dbInitDuration.Milliseconds())
	if err != nil {
		log.Fatalf("Failed to initialize database: %s", err)
	}
	defer func() {
		log.Info("Closing database connection")
		dbTeardown()
	}()

	counters := metrics.NewCounterStore(db)
	metricsSvc := metrics.NewService()
	metricsHandler := metrics.NewMetricsHandler()
	tracked := metrics.Durable(metricsSvc, counters)

	pubsubClient := pubsub.New(cfg.ProjectID)
	defer pubsubClient.Close()
	notifier := slack.NewNotifier(cfg.Slack.Token, cfg.Slack.ChannelID, tracked)

	teams := team.New(db, cfg.Scheduling.RosterSize)
	avail := availability.New(db)
	snapshots := slot.NewCache(avail, cfg.CacheMaxEntries)
	defer snapshots.Close()
	matches := match.New(db)
	proposals := proposal.NewStore(db)
	negotiator := proposal.New(proposals, teams, snapshots, matches, pubsubClient, tracked)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	enforcers := enforcer.NewManager(ctx, enforcer.Deps{
		Proposals:  proposals,
		Teams:      teams,
		Snapshots:  snapshots,
		Withdrawer: negotiator,
		PubSub:     pubsubClient,
		Metrics:    tracked,
		Policy:     enforcer.ParsePolicy(cfg.Scheduling.WithdrawPolicy),
	})
	defer enforcers.Close()
	if err := enforcers.WatchOpen(ctx); err != nil {
		log.Error("Some enforcers failed to start", "error", err)
	}

	s := server.NewServer(server.Deps{
		Teams:        teams,
		Availability: avail,
		Snapshots:    snapshots,
		Negotiator:   negotiator,
		Enforcers:    enforcers,
		Comparison: comparison.Deps{
			Teams:     teams,
			Snapshots: snapshots,
			Matches:   matches,
			Metrics:   tracked,
		},
		Processor:      processor.New(matches, teams, notifier, tracked, pubsubClient),
		Counters:       counters,
		Metrics:        tracked,
		MetricsHandler: metricsHandler,
		PubSub:         pubsubClient,
		Cfg:            cfg,
	})

	// --- Record startup time ---
	startupDuration := time.Since(startTime)
	metricsSvc.SetStartupTime(startupDuration.Seconds())
	log.Info("Startup time recorded", "duration_ms", startupDuration.Milliseconds())

	// --- Graceful shutdown setup ---
	// Comparison streams hold their requests open until the client leaves, so
	// request contexts are cancelled on shutdown.
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     s,
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelRequests)

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	go func() {
		log.Info("Server started", "port", cfg.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Error("Server error", "error", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", "error", err)
		} else {
			log.Info("Server gracefully stopped")
		}
	}

	log.Info("Server process shutting down")
}
