package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/scrim-scheduler/internal/enforcer"
	"github.com/mauv0809/scrim-scheduler/internal/match"
	"github.com/mauv0809/scrim-scheduler/internal/metrics"
	"github.com/mauv0809/scrim-scheduler/internal/notifier"
	"github.com/mauv0809/scrim-scheduler/internal/team"
	"github.com/slack-go/slack"
)

const timeLayout = "Monday 02 Jan, 15:04 MST"

// slackClient is an interface that contains the methods from the slack.Client that we use.
// This allows for easy mocking in tests.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

var _ notifier.Notifier = &Notifier{}

// Notifier handles sending notifications to Slack.
type Notifier struct {
	api       slackClient
	channelID string
	metrics   metrics.Metrics
}

// NewNotifier creates a new Notifier.
func NewNotifier(token, channelID string, metrics metrics.Metrics) *Notifier {
	return NewNotifierWithAPI(slack.New(token), channelID, metrics)
}

// NewNotifierWithAPI creates a new Notifier with a specific slack.Client instance.
// Useful for tests that need to intercept API calls.
func NewNotifierWithAPI(api slackClient, channelID string, metrics metrics.Metrics) *Notifier {
	return &Notifier{
		api:       api,
		channelID: channelID,
		metrics:   metrics,
	}
}

func (s *Notifier) sendMessage(message slack.Message, dryRun bool) (string, string, error) {
	if dryRun {
		jsonMsg, _ := json.MarshalIndent(message, "", "  ")
		log.Info("[Dry Run] Would send Slack message", "channel", s.channelID, "message", string(jsonMsg))
		return "dry-run-channel", "dry-run-ts", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	channelID, timestamp, err := s.api.PostMessageContext(
		ctx,
		s.channelID,
		slack.MsgOptionBlocks(message.Blocks.BlockSet...),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		s.metrics.IncSlackNotifFailed()
		log.Error("Failed to send Slack message", "error", err, "channel", s.channelID)
		return "", "", fmt.Errorf("failed to post message: %w", err)
	}

	s.metrics.IncSlackNotifSent()
	log.Info("Successfully sent Slack message", "channel", channelID, "timestamp", timestamp)
	return channelID, timestamp, nil
}

func (s *Notifier) SendMatchScheduled(m *match.ScheduledMatch, teamA, teamB *team.Team, dryRun bool) error {
	_, _, err := s.sendMessage(s.formatMatchScheduled(m, teamA, teamB), dryRun)
	return err
}

func (s *Notifier) SendMatchCompleted(m *match.ScheduledMatch, teamA, teamB *team.Team, dryRun bool) error {
	_, _, err := s.sendMessage(s.formatMatchCompleted(m, teamA, teamB), dryRun)
	return err
}

func (s *Notifier) SendAutoWithdrawn(ev *enforcer.Withdrawn, t *team.Team, dryRun bool) error {
	_, _, err := s.sendMessage(s.formatAutoWithdrawn(ev, t), dryRun)
	return err
}

// formatMatchScheduled creates the Slack message for a newly booked match using Block Kit.
func (s *Notifier) formatMatchScheduled(m *match.ScheduledMatch, teamA, teamB *team.Team) slack.Message {
	blocks := make([]slack.Block, 0, 4)

	headerText := slack.NewTextBlockObject("plain_text", "⚔️ Scrim scheduled! ⚔️", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	detailsText := fmt.Sprintf("%s vs %s\nTime: %s\nType: %s",
		label(teamA, m.TeamAID), label(teamB, m.TeamBID), m.StartsAt.UTC().Format(timeLayout), m.GameType)
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", detailsText, true, false), nil, nil))

	var rosters []*slack.TextBlockObject
	for _, t := range []*team.Team{teamA, teamB} {
		if t == nil || len(t.Roster) == 0 {
			continue
		}
		rosters = append(rosters, slack.NewTextBlockObject("mrkdwn", rosterText(t), false, false))
	}
	if len(rosters) > 0 {
		blocks = append(blocks, slack.NewSectionBlock(nil, rosters, nil))
	}

	blocks = append(blocks, slack.NewContextBlock("",
		slack.NewTextBlockObject("plain_text", fmt.Sprintf("Week %s, slot %s", m.Week, m.Slot), false, false)))

	return slack.NewBlockMessage(blocks...)
}

// formatMatchCompleted creates the Slack message for a match whose slot has passed.
func (s *Notifier) formatMatchCompleted(m *match.ScheduledMatch, teamA, teamB *team.Team) slack.Message {
	headerText := slack.NewTextBlockObject("plain_text", "🏁 Scrim played 🏁", true, false)
	detailsText := fmt.Sprintf("%s vs %s finished their %s match from %s.",
		label(teamA, m.TeamAID), label(teamB, m.TeamBID), m.GameType, m.StartsAt.UTC().Format(timeLayout))
	return slack.NewBlockMessage(
		slack.NewHeaderBlock(headerText),
		slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", detailsText, true, false), nil, nil),
	)
}

// formatAutoWithdrawn tells the channel that a confirmation was cleared on a team's behalf.
func (s *Notifier) formatAutoWithdrawn(ev *enforcer.Withdrawn, t *team.Team) slack.Message {
	headerText := slack.NewTextBlockObject("plain_text", "Confirmation withdrawn", false, false)

	var why string
	switch ev.Reason {
	case enforcer.ReasonOwnShort:
		why = "not enough players are available anymore"
	case enforcer.ReasonNotViable:
		why = "the slot is no longer viable for both teams"
	default:
		why = string(ev.Reason)
	}
	detailsText := fmt.Sprintf("*%s* was withdrawn from %s: %s.",
		label(t, ev.TeamID), ev.Slot.In(ev.Week).UTC().Format(timeLayout), why)

	return slack.NewBlockMessage(
		slack.NewHeaderBlock(headerText),
		slack.NewSectionBlock(slack.NewTextBlockObject("mrkdwn", detailsText, false, false), nil, nil),
		slack.NewContextBlock("", slack.NewTextBlockObject("plain_text", "Proposal "+ev.ProposalID, false, false)),
	)
}

func label(t *team.Team, fallback string) string {
	if t == nil {
		return fallback
	}
	if t.Tag != "" {
		return fmt.Sprintf("[%s] %s", t.Tag, t.Name)
	}
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

func rosterText(t *team.Team) string {
	names := make([]string, 0, len(t.Roster))
	for _, p := range t.Roster {
		name := p.DisplayName
		if name == "" {
			name = p.UserID
		}
		names = append(names, "• "+name)
	}
	return fmt.Sprintf("*%s*\n%s", label(t, t.ID), strings.Join(names, "\n"))
}
