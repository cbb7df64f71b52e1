package proposal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mauv0809/scrim-scheduler/internal/realtime"
	"github.com/mauv0809/scrim-scheduler/internal/slot"
	"github.com/mauv0809/scrim-scheduler/internal/viability"
)

// NewStore creates a new proposal Store.
func NewStore(db *sql.DB) Store {
	return &store{
		db:  db,
		hub: realtime.NewHub[string, *Proposal](),
	}
}

const selectColumns = `id, proposer_team_id, opponent_team_id, week_id, game_type, proposer_min, opponent_min,
	proposer_standin, opponent_standin, proposer_confirmed_json, opponent_confirmed_json,
	status, matched_slot, created_by, version, created_at, updated_at`

// CreateProposal inserts p, rejecting a second active proposal for the same pair and week.
func (s *store) CreateProposal(ctx context.Context, p *Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM proposals
		WHERE status = 'active' AND week_id = ?
		AND ((proposer_team_id = ? AND opponent_team_id = ?) OR (proposer_team_id = ? AND opponent_team_id = ?))
	`, p.Week.String(), p.ProposerTeamID, p.OpponentTeamID, p.OpponentTeamID, p.ProposerTeamID).Scan(&existing)
	if err != nil {
		return fmt.Errorf("failed to check for existing proposal: %w", err)
	}
	if existing > 0 {
		return ErrDuplicate
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now()
	p.Status = StatusActive
	p.Version = 1
	p.CreatedAt, p.UpdatedAt = now, now
	p.ProposerConfirmed = cloneFlags(p.ProposerConfirmed)
	p.OpponentConfirmed = cloneFlags(p.OpponentConfirmed)

	proposerJSON, opponentJSON, err := marshalFlags(p)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO proposals (id, proposer_team_id, opponent_team_id, week_id, game_type, proposer_min, opponent_min,
			proposer_standin, opponent_standin, proposer_confirmed_json, opponent_confirmed_json,
			status, matched_slot, created_by, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, ?)
	`, p.ID, p.ProposerTeamID, p.OpponentTeamID, p.Week.String(), string(p.GameType), p.MinFilter.Proposer, p.MinFilter.Opponent,
		p.ProposerStandin, p.OpponentStandin, proposerJSON, opponentJSON,
		string(p.Status), p.CreatedBy, p.Version, now.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert proposal: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info("Created proposal", "id", p.ID, "proposer", p.ProposerTeamID, "opponent", p.OpponentTeamID, "week", p.Week)
	return nil
}

// GetProposal reads a proposal by id.
func (s *store) GetProposal(ctx context.Context, id string) (*Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ctx, id)
}

func (s *store) get(ctx context.Context, id string) (*Proposal, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM proposals WHERE id = ?`, id)
	p, err := scanProposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read proposal: %w", err)
	}
	return p, nil
}

// Mutate performs an optimistic read-modify-write guarded by the version column.
func (s *store) Mutate(ctx context.Context, id string, fn func(*Proposal) error) (*Proposal, error) {
	p, changed, err := s.mutate(ctx, id, fn)
	if err != nil {
		return nil, err
	}
	if changed {
		s.hub.Publish(p.ID, p.Clone())
	}
	return p, nil
}

func (s *store) mutate(ctx context.Context, id string, fn func(*Proposal) error) (*Proposal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.get(ctx, id)
	if err != nil {
		return nil, false, err
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		if errors.Is(err, ErrNoChange) {
			return current, false, nil
		}
		return nil, false, err
	}

	next.Version = current.Version + 1
	next.UpdatedAt = time.Now()
	proposerJSON, opponentJSON, err := marshalFlags(next)
	if err != nil {
		return nil, false, err
	}
	var matched sql.NullString
	if next.MatchedSlot != nil {
		matched = sql.NullString{String: next.MatchedSlot.String(), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE proposals SET
			game_type = ?, proposer_standin = ?, opponent_standin = ?,
			proposer_confirmed_json = ?, opponent_confirmed_json = ?,
			status = ?, matched_slot = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`, string(next.GameType), next.ProposerStandin, next.OpponentStandin,
		proposerJSON, opponentJSON,
		string(next.Status), matched, next.Version, next.UpdatedAt.Unix(),
		id, current.Version)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update proposal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read update result: %w", err)
	}
	if n == 0 {
		log.Warn("Proposal version changed during write", "id", id, "version", current.Version)
		return nil, false, ErrWriteConflict
	}

	log.Debug("Updated proposal", "id", id, "version", next.Version, "status", next.Status)
	return next, true, nil
}

// ListActive returns every active proposal.
func (s *store) ListActive(ctx context.Context) ([]*Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM proposals WHERE status = ? ORDER BY created_at ASC`, string(StatusActive))
	if err != nil {
		return nil, fmt.Errorf("failed to query active proposals: %w", err)
	}
	return scanProposals(rows)
}

// ListOpen returns every active or matched proposal.
func (s *store) ListOpen(ctx context.Context) ([]*Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM proposals WHERE status IN (?, ?) ORDER BY created_at ASC`, string(StatusActive), string(StatusMatched))
	if err != nil {
		return nil, fmt.Errorf("failed to query open proposals: %w", err)
	}
	return scanProposals(rows)
}

// ListForTeamWeek returns a team's proposals for a week on either side.
func (s *store) ListForTeamWeek(ctx context.Context, teamID string, w slot.Week) ([]*Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+` FROM proposals
		WHERE week_id = ? AND (proposer_team_id = ? OR opponent_team_id = ?)
		ORDER BY created_at ASC
	`, w.String(), teamID, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to query proposals: %w", err)
	}
	return scanProposals(rows)
}

// SubscribeProposal registers fn for writes to proposal id.
func (s *store) SubscribeProposal(id string, fn func(*Proposal)) func() {
	return s.hub.Subscribe(id, fn)
}

func marshalFlags(p *Proposal) (string, string, error) {
	proposer, err := json.Marshal(cloneFlags(p.ProposerConfirmed))
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal proposer confirmations: %w", err)
	}
	opponent, err := json.Marshal(cloneFlags(p.OpponentConfirmed))
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal opponent confirmations: %w", err)
	}
	return string(proposer), string(opponent), nil
}

func scanProposals(rows *sql.Rows) ([]*Proposal, error) {
	defer rows.Close()
	var proposals []*Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proposal row: %w", err)
		}
		proposals = append(proposals, p)
	}
	return proposals, rows.Err()
}

func scanProposal(scanner interface{ Scan(...any) error }) (*Proposal, error) {
	var (
		p                          Proposal
		weekID, gameType, status   string
		proposerJSON, opponentJSON string
		matched                    sql.NullString
		createdAt, updatedAt       int64
	)
	err := scanner.Scan(&p.ID, &p.ProposerTeamID, &p.OpponentTeamID, &weekID, &gameType, &p.MinFilter.Proposer, &p.MinFilter.Opponent,
		&p.ProposerStandin, &p.OpponentStandin, &proposerJSON, &opponentJSON,
		&status, &matched, &p.CreatedBy, &p.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if p.Week, err = slot.ParseWeek(weekID); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(proposerJSON), &p.ProposerConfirmed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal proposer confirmations: %w", err)
	}
	if err := json.Unmarshal([]byte(opponentJSON), &p.OpponentConfirmed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal opponent confirmations: %w", err)
	}
	if matched.Valid {
		id, err := slot.ParseID(matched.String)
		if err != nil {
			return nil, err
		}
		p.MatchedSlot = &id
	}
	p.GameType = viability.GameType(gameType)
	p.Status = Status(status)
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}
