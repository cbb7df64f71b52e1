package slot

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/scrim-scheduler/internal/realtime"
)

const defaultMaxEntries = 512

var _ Source = (*Cache)(nil)

// Cache is a read-through cache of snapshots keyed by team and week. Every
// cached key holds an upstream subscription that keeps the entry current;
// entries without watchers are evicted least-recently-used first once the
// cache grows past its bound. A watched key whose load failed keeps its
// subscription and is loaded again by the next Get.
type Cache struct {
	loader     Loader
	maxEntries int
	hub        *realtime.Hub[Key, *Snapshot]

	mu       sync.Mutex
	tick     uint64
	entries  map[Key]*entry
	watchers map[Key]int
}

type entry struct {
	ready       chan struct{}
	loaded      bool
	snap        *Snapshot
	err         error
	lastUsed    uint64
	unsubscribe func()
}

// NewCache creates a cache reading through to loader. maxEntries <= 0 uses the default bound.
func NewCache(loader Loader, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Cache{
		loader:     loader,
		maxEntries: maxEntries,
		hub:        realtime.NewHub[Key, *Snapshot](),
		entries:    make(map[Key]*entry),
		watchers:   make(map[Key]int),
	}
}

// Get returns the cached snapshot, loading it on a miss. When the load fails
// the result is an empty snapshot together with an error wrapping
// ErrDataUnavailable. Returned snapshots are shared and must not be mutated.
func (c *Cache) Get(ctx context.Context, teamID string, w Week) (*Snapshot, error) {
	key := Key{TeamID: teamID, Week: w}

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = c.newEntryLocked(key)
	}
	retry := ok && e.failedLocked()
	if retry {
		e.ready = make(chan struct{})
		e.loaded, e.err = false, nil
	}
	ready := e.ready
	c.tick++
	e.lastUsed = c.tick
	c.mu.Unlock()

	if !ok || retry {
		c.load(ctx, key, e)
	}

	select {
	case <-ready:
	case <-ctx.Done():
		return NewSnapshot(teamID, w), fmt.Errorf("%w: team %s week %s: %w", ErrDataUnavailable, teamID, w, ctx.Err())
	}

	c.mu.Lock()
	snap, err := e.snap, e.err
	c.mu.Unlock()
	if err != nil {
		return NewSnapshot(teamID, w), fmt.Errorf("%w: team %s week %s: %w", ErrDataUnavailable, teamID, w, err)
	}
	if snap == nil {
		// Another caller restarted the failed load in the meantime.
		return NewSnapshot(teamID, w), fmt.Errorf("%w: team %s week %s: reload in progress", ErrDataUnavailable, teamID, w)
	}
	return snap, nil
}

// Peek returns the cached snapshot without loading.
func (c *Cache) Peek(teamID string, w Week) (*Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[Key{TeamID: teamID, Week: w}]
	if !ok || !e.loaded || e.err != nil {
		return nil, false
	}
	return e.snap, true
}

// Prefetch starts an asynchronous load of a team's week.
func (c *Cache) Prefetch(teamID string, w Week) {
	go func() {
		if _, err := c.Get(context.Background(), teamID, w); err != nil {
			log.Warn("Snapshot prefetch failed", "team", teamID, "week", w, "error", err)
		}
	}()
}

// OnSnapshotChanged registers fn for every new version of a team's week,
// including the first successful load. Once the returned function returns,
// fn is never invoked again.
func (c *Cache) OnSnapshotChanged(teamID string, w Week, fn func(*Snapshot)) func() {
	key := Key{TeamID: teamID, Week: w}

	c.mu.Lock()
	c.watchers[key]++
	e, cached := c.entries[key]
	if cached && e.failedLocked() {
		cached = false
	}
	c.mu.Unlock()

	unsubscribe := c.hub.Subscribe(key, fn)
	if !cached {
		c.Prefetch(teamID, w)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			c.mu.Lock()
			c.watchers[key]--
			if c.watchers[key] <= 0 {
				delete(c.watchers, key)
			}
			c.mu.Unlock()
		})
	}
}

// Invalidate drops a cached entry. Watched keys are reloaded straight away.
func (c *Cache) Invalidate(teamID string, w Week) {
	key := Key{TeamID: teamID, Week: w}

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	watched := c.watchers[key] > 0
	c.mu.Unlock()

	if ok && e.unsubscribe != nil {
		e.unsubscribe()
	}
	log.Debug("Invalidated snapshot cache entry", "team", teamID, "week", w)
	if watched {
		c.Prefetch(teamID, w)
	}
}

// Len returns the number of cached keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close drops every entry and its upstream subscription.
func (c *Cache) Close() {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[Key]*entry)
	c.mu.Unlock()

	for _, e := range entries {
		if e.unsubscribe != nil {
			e.unsubscribe()
		}
	}
}

// newEntryLocked registers the entry and its upstream subscription. The
// loader must not deliver synchronously from SubscribeSnapshot.
func (c *Cache) newEntryLocked(key Key) *entry {
	e := &entry{ready: make(chan struct{})}
	c.entries[key] = e
	e.unsubscribe = c.loader.SubscribeSnapshot(key.TeamID, key.Week, func(snap *Snapshot) {
		c.onUpstream(key, e, snap)
	})
	return e
}

func (e *entry) failedLocked() bool {
	return e.loaded && e.err != nil
}

func (c *Cache) load(ctx context.Context, key Key, e *entry) {
	snap, err := c.loader.LoadSnapshot(ctx, key.TeamID, key.Week)

	c.mu.Lock()
	if e.loaded {
		// A subscription delivery already produced a newer version.
		c.mu.Unlock()
		return
	}
	e.loaded = true
	e.snap, e.err = snap, err
	close(e.ready)

	var drop []func()
	if err != nil {
		// Watched keys stay subscribed so upstream changes still reach them.
		if c.entries[key] == e && c.watchers[key] == 0 {
			delete(c.entries, key)
			drop = append(drop, e.unsubscribe)
		}
	} else {
		drop = c.evictLocked()
	}
	c.mu.Unlock()

	for _, unsubscribe := range drop {
		if unsubscribe != nil {
			unsubscribe()
		}
	}
	if err != nil {
		log.Warn("Failed to load availability snapshot", "team", key.TeamID, "week", key.Week, "error", err)
		return
	}
	c.hub.Publish(key, snap)
}

func (c *Cache) onUpstream(key Key, e *entry, snap *Snapshot) {
	c.mu.Lock()
	if c.entries[key] != e {
		c.mu.Unlock()
		return
	}
	if e.snap != nil && e.err == nil && snap.LoadedAt.Before(e.snap.LoadedAt) {
		c.mu.Unlock()
		log.Debug("Dropped out-of-order snapshot", "team", key.TeamID, "week", key.Week)
		return
	}
	e.snap, e.err = snap, nil
	if !e.loaded {
		e.loaded = true
		close(e.ready)
	}
	c.mu.Unlock()

	log.Debug("Snapshot changed", "team", key.TeamID, "week", key.Week)
	c.hub.Publish(key, snap)
}

// evictLocked trims unwatched entries and returns their upstream unsubscribers.
func (c *Cache) evictLocked() []func() {
	var drop []func()
	for len(c.entries) > c.maxEntries {
		var (
			victim Key
			oldest *entry
		)
		for key, e := range c.entries {
			if c.watchers[key] > 0 || !e.loaded {
				continue
			}
			if oldest == nil || e.lastUsed < oldest.lastUsed {
				victim, oldest = key, e
			}
		}
		if oldest == nil {
			break
		}
		delete(c.entries, victim)
		drop = append(drop, oldest.unsubscribe)
	}
	return drop
}
