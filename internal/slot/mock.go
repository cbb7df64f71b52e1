package slot

import (
	"context"
	"sync"

	"github.com/mauv0809/scrim-scheduler/internal/realtime"
)

// MockLoader is an in-memory Loader for tests. It is safe for concurrent use.
type MockLoader struct {
	mu        sync.Mutex
	snapshots map[Key]*Snapshot
	hub       *realtime.Hub[Key, *Snapshot]

	// LoadSnapshotFunc overrides the in-memory lookup when set.
	LoadSnapshotFunc func(ctx context.Context, teamID string, w Week) (*Snapshot, error)

	LoadSnapshotCalls []Key
}

// NewMockLoader creates an empty mock loader.
func NewMockLoader() *MockLoader {
	return &MockLoader{
		snapshots: make(map[Key]*Snapshot),
		hub:       realtime.NewHub[Key, *Snapshot](),
	}
}

// Set stores snap without notifying subscribers.
func (m *MockLoader) Set(snap *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[Key{TeamID: snap.TeamID, Week: snap.Week}] = snap
}

// Push stores snap and notifies subscribers, like a real-time store would.
func (m *MockLoader) Push(snap *Snapshot) {
	m.Set(snap)
	m.hub.Publish(Key{TeamID: snap.TeamID, Week: snap.Week}, snap)
}

// Subscribers returns the number of upstream subscriptions for a key.
func (m *MockLoader) Subscribers(teamID string, w Week) int {
	return m.hub.Count(Key{TeamID: teamID, Week: w})
}

// LoadCount returns how many times LoadSnapshot was called.
func (m *MockLoader) LoadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.LoadSnapshotCalls)
}

func (m *MockLoader) LoadSnapshot(ctx context.Context, teamID string, w Week) (*Snapshot, error) {
	m.mu.Lock()
	m.LoadSnapshotCalls = append(m.LoadSnapshotCalls, Key{TeamID: teamID, Week: w})
	fn := m.LoadSnapshotFunc
	snap, ok := m.snapshots[Key{TeamID: teamID, Week: w}]
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, teamID, w)
	}
	if !ok {
		return NewSnapshot(teamID, w), nil
	}
	return snap, nil
}

func (m *MockLoader) SubscribeSnapshot(teamID string, w Week, fn func(*Snapshot)) func() {
	return m.hub.Subscribe(Key{TeamID: teamID, Week: w}, fn)
}
