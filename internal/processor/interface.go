package processor

import (
	"context"

	"github.com/mauv0809/scrim-scheduler/internal/match"
	"github.com/mauv0809/scrim-scheduler/internal/notifier"
	"github.com/mauv0809/scrim-scheduler/internal/team"
)

// Store defines the database operations required by the processor.
type Store interface {
	ListByStatus(ctx context.Context, status match.Status) ([]*match.ScheduledMatch, error)
	UpdateStatus(ctx context.Context, matchID string, status match.Status) error
}

// Teams resolves the teams named in a notification.
type Teams interface {
	GetTeam(ctx context.Context, id string) (*team.Team, error)
}

// Notifier defines the notification operations required by the processor.
type Notifier interface {
	notifier.Notifier
}
