package match

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mauv0809/scrim-scheduler/internal/slot"
	"github.com/mauv0809/scrim-scheduler/internal/viability"
)

// New creates a new scheduled match Store.
func New(db *sql.DB) Store {
	return &store{db: db}
}

const selectColumns = `id, proposal_id, team_a_id, team_b_id, week_id, slot_id, game_type, status, created_at`

// CreateScheduledMatch inserts m unless the proposal slot is already booked.
// A cancelled booking for the same slot is revived.
func (s *store) CreateScheduledMatch(ctx context.Context, m *ScheduledMatch) (*ScheduledMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = StatusUpcoming
	}
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_matches (id, proposal_id, team_a_id, team_b_id, week_id, slot_id, game_type, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(proposal_id, slot_id) DO UPDATE SET
			status = CASE WHEN scheduled_matches.status = 'cancelled' THEN excluded.status ELSE scheduled_matches.status END,
			game_type = excluded.game_type,
			updated_at = excluded.updated_at;
	`, m.ID, m.ProposalID, m.TeamAID, m.TeamBID, m.Week.String(), m.Slot.String(), string(m.GameType), string(m.Status), now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduled match: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM scheduled_matches WHERE proposal_id = ? AND slot_id = ?`, m.ProposalID, m.Slot.String())
	stored, err := scanMatch(row)
	if err != nil {
		return nil, fmt.Errorf("failed to read scheduled match: %w", err)
	}

	log.Info("Scheduled match", "id", stored.ID, "proposal", stored.ProposalID, "week", stored.Week, "slot", stored.Slot)
	return stored, nil
}

// CancelScheduledMatch marks the booking for a proposal slot cancelled.
func (s *store) CancelScheduledMatch(ctx context.Context, proposalID string, id slot.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_matches SET status = ?, updated_at = ? WHERE proposal_id = ? AND slot_id = ?
	`, string(StatusCancelled), time.Now().Unix(), proposalID, id.String())
	if err != nil {
		return fmt.Errorf("failed to cancel scheduled match: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Debug("No scheduled match to cancel", "proposal", proposalID, "slot", id)
		return nil
	}
	log.Info("Cancelled scheduled match", "proposal", proposalID, "slot", id)
	return nil
}

// GetByProposal returns every booking made from a proposal.
func (s *store) GetByProposal(ctx context.Context, proposalID string) ([]*ScheduledMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM scheduled_matches WHERE proposal_id = ? ORDER BY created_at ASC`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled matches: %w", err)
	}
	return scanMatches(rows)
}

// ListForTeamWeek returns a team's bookings for a week.
func (s *store) ListForTeamWeek(ctx context.Context, teamID string, w slot.Week) ([]*ScheduledMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+` FROM scheduled_matches
		WHERE week_id = ? AND (team_a_id = ? OR team_b_id = ?)
		ORDER BY created_at ASC
	`, w.String(), teamID, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled matches: %w", err)
	}
	return scanMatches(rows)
}

// ListByStatus returns every booking in a status.
func (s *store) ListByStatus(ctx context.Context, status Status) ([]*ScheduledMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM scheduled_matches WHERE status = ? ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled matches: %w", err)
	}
	return scanMatches(rows)
}

// UpdateStatus moves a booking to a new status.
func (s *store) UpdateStatus(ctx context.Context, matchID string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE scheduled_matches SET status = ?, updated_at = ? WHERE id = ?`, string(status), time.Now().Unix(), matchID)
	if err != nil {
		return fmt.Errorf("failed to update scheduled match status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, matchID)
	}
	log.Info("Updated scheduled match status", "id", matchID, "status", status)
	return nil
}

func scanMatches(rows *sql.Rows) ([]*ScheduledMatch, error) {
	defer rows.Close()
	var matches []*ScheduledMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled match row: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func scanMatch(scanner interface{ Scan(...any) error }) (*ScheduledMatch, error) {
	var (
		m                ScheduledMatch
		weekID, slotID   string
		gameType, status string
		createdAt        int64
	)
	if err := scanner.Scan(&m.ID, &m.ProposalID, &m.TeamAID, &m.TeamBID, &weekID, &slotID, &gameType, &status, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	w, err := slot.ParseWeek(weekID)
	if err != nil {
		return nil, err
	}
	id, err := slot.ParseID(slotID)
	if err != nil {
		return nil, err
	}
	m.Week, m.Slot = w, id
	m.GameType = viability.GameType(gameType)
	m.Status = Status(status)
	m.StartsAt = id.In(w)
	m.CreatedAt = time.Unix(createdAt, 0)
	return &m, nil
}
