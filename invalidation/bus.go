// Package invalidation maps logical events onto the cache keys they stale
// and runs the periodic fallback sweep that compensates for dropped
// notifications.
package invalidation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lowtide-labs/boatclient/cache"
	"github.com/lowtide-labs/boatclient/game"
	"github.com/lowtide-labs/boatclient/metrics"
)

// Bus applies the game package's invalidation tables to the shared cache.
// Every trigger invalidates twice: immediately, and once more after a short
// delay to absorb the RPC's eventual-consistency lag between "confirmed"
// and "reads reflect it".
type Bus struct {
	cache          *cache.Cache
	secondaryDelay time.Duration
	sweepInterval  time.Duration
	logger         zerolog.Logger

	// refresh, when set, runs after each invalidation pass so hot reads
	// (cooldown inputs) can be re-primed eagerly.
	refresh func()

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
	timers  map[*time.Timer]struct{} // scheduled secondary passes, drained on Stop
}

// NewBus creates a Bus over the shared cache.
func NewBus(c *cache.Cache, secondaryDelay, sweepInterval time.Duration, logger zerolog.Logger) *Bus {
	return &Bus{
		cache:          c,
		secondaryDelay: secondaryDelay,
		sweepInterval:  sweepInterval,
		logger:         logger.With().Str("component", "invalidation_bus").Logger(),
		stopCh:         make(chan struct{}),
		timers:         make(map[*time.Timer]struct{}),
	}
}

// SetRefresh installs the eager-refresh hook. Must be called before Start.
func (b *Bus) SetRefresh(fn func()) {
	b.refresh = fn
}

// OnEvent invalidates the key patterns mapped to the record's type, once
// per distinct record regardless of how it was delivered (the deduplicator
// guarantees distinctness upstream).
func (b *Bus) OnEvent(rec *game.EventRecord) {
	keys := game.InvalidationKeysForEvent(rec.Type)
	if len(keys) == 0 {
		b.logger.Warn().Str("type", string(rec.Type)).Msg("event type has no invalidation mapping")
		return
	}
	b.logger.Debug().
		Str("type", string(rec.Type)).
		Str("token", rec.SourceToken).
		Strs("keys", keys).
		Msg("event invalidation")
	b.invalidate(keys)
}

// OnActionConfirmed invalidates the key patterns for a confirmed action
// kind. Called by the submitter before it publishes the confirmed status.
func (b *Bus) OnActionConfirmed(kind game.ActionKind) {
	keys := game.InvalidationKeysForAction(kind)
	if len(keys) == 0 {
		b.logger.Warn().Str("kind", string(kind)).Msg("action kind has no invalidation mapping")
		return
	}
	b.invalidate(keys)
}

// invalidate runs the immediate pass and schedules the delayed secondary
// pass.
func (b *Bus) invalidate(keys []string) {
	marked := b.cache.Invalidate(keys...)
	metrics.CacheInvalidations.Add(float64(marked))
	if b.refresh != nil {
		b.refresh()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(b.secondaryDelay, func() {
		defer b.wg.Done()

		b.mu.Lock()
		delete(b.timers, timer)
		stopped := b.stopped
		b.mu.Unlock()
		if stopped {
			return
		}

		marked := b.cache.Invalidate(keys...)
		metrics.CacheInvalidations.Add(float64(marked))
		if b.refresh != nil {
			b.refresh()
		}
	})
	b.timers[timer] = struct{}{}
}

// Sweep invalidates every known key pattern unconditionally. The event
// channel is not guaranteed delivery, so this periodic correction is
// mandatory.
func (b *Bus) Sweep() {
	marked := b.cache.Invalidate(game.AllKeyPatterns...)
	metrics.CacheInvalidations.Add(float64(marked))
	metrics.Sweeps.Inc()
	if b.refresh != nil {
		b.refresh()
	}
	b.logger.Debug().Int("marked", marked).Msg("sweep completed")
}

// Start runs the sweep loop until the context is cancelled or Stop is
// called.
func (b *Bus) Start(ctx context.Context) error {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		ticker := time.NewTicker(b.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stopCh:
				return
			case <-ticker.C:
				b.Sweep()
			}
		}
	}()
	return nil
}

// Stop halts the sweep loop and drains the scheduled secondary passes:
// timers that have not fired are cancelled, ones mid-flight are waited for.
func (b *Bus) Stop() {
	close(b.stopCh)

	b.mu.Lock()
	b.stopped = true
	for timer := range b.timers {
		if timer.Stop() {
			b.wg.Done()
		}
	}
	b.timers = make(map[*time.Timer]struct{})
	b.mu.Unlock()

	b.wg.Wait()
}
