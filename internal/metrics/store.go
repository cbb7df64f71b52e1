package metrics

import (
	"database/sql"
	"sync"

	"github.com/charmbracelet/log"
)

// store keeps lifetime counters in the database.
type store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewCounterStore creates a CounterStore backed by db.
func NewCounterStore(db *sql.DB) CounterStore {
	return &store{
		db: db,
	}
}

// Increment upserts a counter key and increments its value by one.
func (s *store) Increment(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO counters (key, value) VALUES (?, 1)
		ON CONFLICT(key) DO UPDATE SET value = value + 1;
	`, key)
	if err != nil {
		log.Error("Failed to increment counter", "error", err, "key", key)
		return
	}
	log.Debug("Incremented counter", "key", key)
}

// GetAll returns all counters.
func (s *store) GetAll() (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT key, value FROM counters")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counters := make(map[string]int)
	for rows.Next() {
		var key string
		var value int
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		counters[key] = value
	}
	return counters, rows.Err()
}

// Durable wraps m so lifecycle events are also counted in st.
func Durable(m Metrics, st CounterStore) Metrics {
	return &durable{Metrics: m, store: st}
}

type durable struct {
	Metrics
	store CounterStore
}

func (d *durable) IncConfirmations() {
	d.Metrics.IncConfirmations()
	d.store.Increment("confirmations")
}

func (d *durable) IncMatches() {
	d.Metrics.IncMatches()
	d.store.Increment("matches")
}

func (d *durable) IncWithdrawals(source WithdrawSource) {
	d.Metrics.IncWithdrawals(source)
	d.store.Increment("withdrawals_" + string(source))
}

func (d *durable) IncCancellations() {
	d.Metrics.IncCancellations()
	d.store.Increment("cancellations")
}

func (d *durable) IncMatchesCompleted() {
	d.Metrics.IncMatchesCompleted()
	d.store.Increment("matches_completed")
}
