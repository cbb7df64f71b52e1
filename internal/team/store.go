package team

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// New creates a new team Store. Teams saved without a roster size inherit defaultRosterSize.
func New(db *sql.DB, defaultRosterSize int) Store {
	if defaultRosterSize <= 0 {
		defaultRosterSize = DefaultRosterSize
	}
	return &store{
		db:                db,
		defaultRosterSize: defaultRosterSize,
	}
}

// UpsertTeam inserts a team or replaces its roster, roles and divisions.
func (s *store) UpsertTeam(ctx context.Context, t *Team) error {
	if t.ID == "" {
		return errors.New("team id is required")
	}
	if t.RosterSize <= 0 {
		t.RosterSize = s.defaultRosterSize
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rosterJSON, err := json.Marshal(nonNil(t.Roster))
	if err != nil {
		return fmt.Errorf("failed to marshal roster: %w", err)
	}
	schedulersJSON, err := json.Marshal(nonNil(t.SchedulerIDs))
	if err != nil {
		return fmt.Errorf("failed to marshal scheduler ids: %w", err)
	}
	divisionsJSON, err := json.Marshal(nonNil(t.Divisions))
	if err != nil {
		return fmt.Errorf("failed to marshal divisions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO teams (id, tag, name, roster_size, roster_json, scheduler_ids_json, divisions_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tag = excluded.tag,
			name = excluded.name,
			roster_size = excluded.roster_size,
			roster_json = excluded.roster_json,
			scheduler_ids_json = excluded.scheduler_ids_json,
			divisions_json = excluded.divisions_json,
			updated_at = excluded.updated_at;
	`, t.ID, t.Tag, t.Name, t.RosterSize, rosterJSON, schedulersJSON, divisionsJSON, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert team: %w", err)
	}

	log.Info("Upserted team", "id", t.ID, "tag", t.Tag, "roster", len(t.Roster))
	return nil
}

// GetTeam retrieves a team by id.
func (s *store) GetTeam(ctx context.Context, id string) (*Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, tag, name, roster_size, roster_json, scheduler_ids_json, divisions_json
		FROM teams WHERE id = ?
	`, id)
	t, err := scanTeam(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return t, nil
}

// ListTeams returns every team ordered by tag.
func (s *store) ListTeams(ctx context.Context) ([]*Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tag, name, roster_size, roster_json, scheduler_ids_json, divisions_json
		FROM teams ORDER BY tag ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			log.Error("Failed to scan team row", "error", err)
			continue
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// ListByDivision returns the teams playing in division.
func (s *store) ListByDivision(ctx context.Context, division string) ([]*Team, error) {
	all, err := s.ListTeams(ctx)
	if err != nil {
		return nil, err
	}
	var teams []*Team
	for _, t := range all {
		if t.InDivision(division) {
			teams = append(teams, t)
		}
	}
	return teams, nil
}

// DeleteTeam removes a team and, through the foreign key, its availability.
func (s *store) DeleteTeam(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM teams WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	log.Info("Deleted team", "id", id)
	return nil
}

func scanTeam(scanner interface{ Scan(...any) error }) (*Team, error) {
	var (
		t                                         Team
		rosterJSON, schedulersJSON, divisionsJSON string
	)
	if err := scanner.Scan(&t.ID, &t.Tag, &t.Name, &t.RosterSize, &rosterJSON, &schedulersJSON, &divisionsJSON); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rosterJSON), &t.Roster); err != nil {
		return nil, fmt.Errorf("failed to unmarshal roster: %w", err)
	}
	if err := json.Unmarshal([]byte(schedulersJSON), &t.SchedulerIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scheduler ids: %w", err)
	}
	if err := json.Unmarshal([]byte(divisionsJSON), &t.Divisions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal divisions: %w", err)
	}
	return &t, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
