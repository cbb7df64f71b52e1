package notifier

import (
	"github.com/mauv0809/scrim-scheduler/internal/enforcer"
	"github.com/mauv0809/scrim-scheduler/internal/match"
	"github.com/mauv0809/scrim-scheduler/internal/team"
)

// Notifier defines a high-level interface for sending notifications about scheduling events.
// This decouples the rest of the application from the specific notification provider (e.g., Slack).
type Notifier interface {
	// For matches booked by two confirmations on the same slot
	SendMatchScheduled(m *match.ScheduledMatch, teamA, teamB *team.Team, dryRun bool) error
	// For matches whose start time has passed
	SendMatchCompleted(m *match.ScheduledMatch, teamA, teamB *team.Team, dryRun bool) error
	// For confirmations cleared because availability dropped
	SendAutoWithdrawn(ev *enforcer.Withdrawn, t *team.Team, dryRun bool) error
}
