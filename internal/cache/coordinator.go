// Package cache owns the authoritative device snapshot: one coordinator
// per unit, refreshed on a fixed interval and on demand, with refresh
// deduplication so the unit never sees two concurrent state fetches
// from this process.
package cache

import (
	"context"
	"reflect"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	bridge "daikin_bridge"
	"daikin_bridge/internal/logger"
)

// Fetcher pulls a fresh snapshot from the unit.
type Fetcher interface {
	FetchState(ctx context.Context) (bridge.DeviceSnapshot, error)
}

// Coordinator holds the latest known snapshot. Readers get the cached
// value; Refresh callers arriving while a fetch is in flight share its
// result instead of issuing a second one.
type Coordinator struct {
	fetcher Fetcher
	log     *logger.Logger

	group singleflight.Group

	mu          sync.RWMutex
	snapshot    bridge.DeviceSnapshot
	hasSnapshot bool
	subscribers map[int]chan bridge.DeviceSnapshot
	nextSubID   int

	// onRefreshError is invoked for scheduled refresh failures, which
	// are never raised to passive readers.
	onRefreshError func(err error)
}

const subscriberBuffer = 4

// New builds a coordinator around the given fetcher. onRefreshError may
// be nil.
func New(fetcher Fetcher, log *logger.Logger, onRefreshError func(error)) *Coordinator {
	return &Coordinator{
		fetcher:        fetcher,
		log:            log,
		subscribers:    map[int]chan bridge.DeviceSnapshot{},
		onRefreshError: onRefreshError,
	}
}

// Seed installs a snapshot without contacting the unit, used to expose
// a persisted last-known-good state before the first live fetch. No
// change notification fires for seeded data.
func (c *Coordinator) Seed(snap bridge.DeviceSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasSnapshot {
		c.snapshot = snap
		c.hasSnapshot = true
	}
}

// Snapshot returns the latest known state. ok is false until the first
// successful fetch or seed.
func (c *Coordinator) Snapshot() (bridge.DeviceSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot, c.hasSnapshot
}

// Refresh fetches the unit state now, deduplicating concurrent callers:
// everyone arriving during an in-flight fetch gets that fetch's result.
// On failure the previous snapshot stays in place.
func (c *Coordinator) Refresh(ctx context.Context) (bridge.DeviceSnapshot, error) {
	v, err, _ := c.group.Do("refresh", func() (any, error) {
		snap, err := c.fetcher.FetchState(ctx)
		if err != nil {
			return nil, err
		}
		c.install(snap)
		return snap, nil
	})
	if err != nil {
		return bridge.DeviceSnapshot{}, err
	}
	return v.(bridge.DeviceSnapshot), nil
}

// ForceRefresh is Refresh for callers that just issued a command and
// want the cache to converge without waiting for the next interval.
func (c *Coordinator) ForceRefresh(ctx context.Context) (bridge.DeviceSnapshot, error) {
	return c.Refresh(ctx)
}

// install atomically replaces the snapshot and notifies subscribers
// when any reported field differs from the previous one.
func (c *Coordinator) install(snap bridge.DeviceSnapshot) {
	c.mu.Lock()
	changed := !c.hasSnapshot || !snapshotsEqual(c.snapshot, snap)
	c.snapshot = snap
	c.hasSnapshot = true
	var targets []chan bridge.DeviceSnapshot
	if changed {
		for _, ch := range c.subscribers {
			targets = append(targets, ch)
		}
	}
	c.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- snap:
		default: // slow subscriber, drop rather than stall the refresh
		}
	}
}

// snapshotsEqual compares everything the unit reports, ignoring the
// fetch timestamp.
func snapshotsEqual(a, b bridge.DeviceSnapshot) bool {
	a.FetchedAt = time.Time{}
	b.FetchedAt = time.Time{}
	return reflect.DeepEqual(a, b)
}

// Subscribe registers a change listener. The returned cancel func must
// be called when the listener goes away.
func (c *Coordinator) Subscribe() (<-chan bridge.DeviceSnapshot, func()) {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	ch := make(chan bridge.DeviceSnapshot, subscriberBuffer)
	c.subscribers[id] = ch
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
	return ch, cancel
}

// Run refreshes on a fixed interval until ctx is cancelled. Failures
// keep the last-known-good snapshot and are reported through the error
// hook only.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Refresh(ctx); err != nil {
				c.log.Errorw("scheduled_refresh_failed", "err", err)
				if c.onRefreshError != nil {
					c.onRefreshError(err)
				}
			}
		}
	}
}
