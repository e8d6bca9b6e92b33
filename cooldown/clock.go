// Package cooldown derives per-boat run countdowns from ledger-cached
// inputs, ticking locally without touching the RPC.
package cooldown

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// source is the pair of ledger inputs a countdown derives from. The inputs
// are refreshed by the invalidation bus / sweep, never by the tick.
type source struct {
	lastRunAt uint64 // unix seconds; 0 means the boat never ran
	duration  uint64 // cooldown length in seconds
}

// Clock recomputes every boat's remaining cooldown on a fixed 1 Hz local
// tick from cached (lastRunAt, duration) pairs.
type Clock struct {
	logger zerolog.Logger
	now    func() time.Time // injectable for tests

	mu        sync.RWMutex
	sources   map[uint64]source
	remaining map[uint64]time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewClock creates a Clock.
func NewClock(logger zerolog.Logger) *Clock {
	return &Clock{
		logger:    logger.With().Str("component", "cooldown_clock").Logger(),
		now:       time.Now,
		sources:   make(map[uint64]source),
		remaining: make(map[uint64]time.Duration),
		stopCh:    make(chan struct{}),
	}
}

// SetSource installs or updates the ledger inputs for a boat. Called by the
// refresh path, never by the tick handler.
func (c *Clock) SetSource(resourceID, lastRunAt, duration uint64) {
	c.mu.Lock()
	c.sources[resourceID] = source{lastRunAt: lastRunAt, duration: duration}
	c.remaining[resourceID] = c.compute(lastRunAt, duration)
	c.mu.Unlock()
}

// Drop removes a boat (burned or transferred away).
func (c *Clock) Drop(resourceID uint64) {
	c.mu.Lock()
	delete(c.sources, resourceID)
	delete(c.remaining, resourceID)
	c.mu.Unlock()
}

// Remaining returns the boat's current countdown. A boat that never ran,
// or is unknown, has no cooldown. Never negative.
func (c *Clock) Remaining(resourceID uint64) time.Duration {
	c.mu.RLock()
	src, ok := c.sources[resourceID]
	c.mu.RUnlock()
	if !ok {
		return 0
	}
	return c.compute(src.lastRunAt, src.duration)
}

// Snapshot returns the last tick's countdown for every tracked boat.
func (c *Clock) Snapshot() map[uint64]time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[uint64]time.Duration, len(c.remaining))
	for id, d := range c.remaining {
		out[id] = d
	}
	return out
}

func (c *Clock) compute(lastRunAt, duration uint64) time.Duration {
	if lastRunAt == 0 {
		return 0
	}
	elapsed := c.now().Unix() - int64(lastRunAt)
	left := int64(duration) - elapsed
	if left <= 0 {
		return 0
	}
	return time.Duration(left) * time.Second
}

// Start begins the 1 Hz tick. The tick recomputes from cached inputs only.
func (c *Clock) Start(ctx context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.tick()
			}
		}
	}()
	return nil
}

// Stop halts the tick loop.
func (c *Clock) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

func (c *Clock) tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, src := range c.sources {
		c.remaining[id] = c.compute(src.lastRunAt, src.duration)
	}
}
