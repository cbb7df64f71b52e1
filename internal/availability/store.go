package availability

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/scrim-scheduler/internal/realtime"
	"github.com/mauv0809/scrim-scheduler/internal/slot"
)

// New creates a new availability Store.
func New(db *sql.DB) Store {
	return &store{
		db:  db,
		hub: realtime.NewHub[slot.Key, *slot.Snapshot](),
	}
}

// Apply writes a change and notifies subscribers with the resulting snapshot.
// Notifications for one store are delivered in commit order.
func (s *store) Apply(ctx context.Context, change Change) (*slot.Snapshot, error) {
	if change.TeamID == "" || change.UserID == "" {
		return nil, fmt.Errorf("%w: team id and user id are required", ErrInvalidChange)
	}
	for _, id := range change.Slots {
		if !id.Valid() {
			return nil, fmt.Errorf("%w: invalid slot %v", ErrInvalidChange, id)
		}
	}

	snap, err := s.apply(ctx, change)
	if err != nil {
		return nil, err
	}

	log.Info("Applied availability change", "team", change.TeamID, "week", change.Week, "user", change.UserID, "state", change.State, "slots", len(change.Slots))
	return snap, nil
}

func (s *store) apply(ctx context.Context, change Change) (*slot.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	week := change.Week.String()
	now := time.Now().Unix()
	for _, id := range change.Slots {
		switch change.State {
		case StateAvailable, StateAway:
			// The primary key keeps one state per player per slot.
			_, err = tx.ExecContext(ctx, `
				INSERT INTO availability (team_id, week_id, slot_id, user_id, state, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(team_id, week_id, slot_id, user_id) DO UPDATE SET
					state = excluded.state,
					updated_at = excluded.updated_at;
			`, change.TeamID, week, id.String(), change.UserID, string(change.State), now)
		case StateCleared:
			_, err = tx.ExecContext(ctx, `
				DELETE FROM availability WHERE team_id = ? AND week_id = ? AND slot_id = ? AND user_id = ?
			`, change.TeamID, week, id.String(), change.UserID)
		default:
			return nil, fmt.Errorf("%w: unknown availability state %q", ErrInvalidChange, change.State)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to write availability for slot %s: %w", id, err)
		}
	}

	snap, err := loadSnapshot(ctx, tx, change.TeamID, change.Week)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit availability transaction: %w", err)
	}
	// Subscribers only signal, so publishing under the write lock is safe.
	s.hub.Publish(slot.Key{TeamID: change.TeamID, Week: change.Week}, snap)
	return snap, nil
}

// LoadSnapshot returns the current snapshot of a team's week.
func (s *store) LoadSnapshot(ctx context.Context, teamID string, w slot.Week) (*slot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadSnapshot(ctx, s.db, teamID, w)
}

// SubscribeSnapshot registers fn for every change applied to a team's week.
func (s *store) SubscribeSnapshot(teamID string, w slot.Week, fn func(*slot.Snapshot)) func() {
	return s.hub.Subscribe(slot.Key{TeamID: teamID, Week: w}, fn)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadSnapshot(ctx context.Context, q querier, teamID string, w slot.Week) (*slot.Snapshot, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT slot_id, user_id, state FROM availability WHERE team_id = ? AND week_id = ?
	`, teamID, w.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query availability: %w", err)
	}
	defer rows.Close()

	snap := slot.NewSnapshot(teamID, w)
	snap.LoadedAt = time.Now()
	for rows.Next() {
		var slotID, userID, state string
		if err := rows.Scan(&slotID, &userID, &state); err != nil {
			return nil, fmt.Errorf("failed to scan availability row: %w", err)
		}
		id, err := slot.ParseID(slotID)
		if err != nil {
			log.Warn("Skipping availability row with invalid slot", "slot", slotID, "team", teamID, "error", err)
			continue
		}
		switch State(state) {
		case StateAvailable:
			snap.MarkAvailable(id, userID)
		case StateAway:
			snap.MarkAway(id, userID)
		}
	}
	return snap, rows.Err()
}
