package metrics

import (
	"testing"

	"github.com/mauv0809/scrim-scheduler/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) (CounterStore, func()) {
	t.Helper()

	db, teardown, err := database.InitDB(":memory:", "", "")
	require.NoError(t, err)

	return NewCounterStore(db), teardown
}

func TestIncrementAndGetAll(t *testing.T) {
	store, teardown := setupTestDB(t)
	defer teardown()

	// 1. Initially, there should be no counters
	counters, err := store.GetAll()
	require.NoError(t, err)
	assert.Empty(t, counters)

	// 2. Increment a new key
	store.Increment("matches")
	counters, err = store.GetAll()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"matches": 1}, counters)

	// 3. Increment the same key again
	store.Increment("matches")
	counters, err = store.GetAll()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"matches": 2}, counters)
}

func TestDurableForwardsAndPersists(t *testing.T) {
	store, teardown := setupTestDB(t)
	defer teardown()

	mock := NewMock()
	m := Durable(mock, store)

	m.IncMatches()
	m.IncWithdrawals(WithdrawByAuto)
	m.IncWithdrawals(WithdrawByAuto)
	m.IncWriteConflicts()

	assert.Equal(t, 1, mock.Matches())
	assert.Equal(t, 2, mock.Withdrawals(WithdrawByAuto))
	assert.Equal(t, 1, mock.WriteConflicts())

	counters, err := store.GetAll()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"matches":          1,
		"withdrawals_auto": 2,
	}, counters)
}
