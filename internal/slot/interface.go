package slot

import "context"

// Loader is the external availability store the cache reads through to.
type Loader interface {
	// LoadSnapshot returns the current snapshot for a team's week.
	LoadSnapshot(ctx context.Context, teamID string, w Week) (*Snapshot, error)
	// SubscribeSnapshot registers fn for changes to a team's week. Unsubscribing
	// guarantees no further calls.
	SubscribeSnapshot(teamID string, w Week, fn func(*Snapshot)) (unsubscribe func())
}

// Source is what readers of availability depend on; *Cache implements it.
type Source interface {
	Get(ctx context.Context, teamID string, w Week) (*Snapshot, error)
	OnSnapshotChanged(teamID string, w Week, fn func(*Snapshot)) (unsubscribe func())
}
