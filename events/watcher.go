package events

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/rs/zerolog"

	"github.com/lowtide-labs/boatclient/chain"
	"github.com/lowtide-labs/boatclient/contracts"
	"github.com/lowtide-labs/boatclient/db"
	"github.com/lowtide-labs/boatclient/game"
	"github.com/lowtide-labs/boatclient/store"
)

// maxBlockRange caps how many blocks one poll scans, so a long-offline
// client catches up in bounded chunks.
const maxBlockRange = 5000

// Handler consumes admitted EventRecords in delivery order.
type Handler func(rec *game.EventRecord)

// Watcher polls the chain for game logs, runs them through the
// deduplicator, and hands admitted records to the handler. The last scanned
// block is persisted so restarts resume instead of replaying.
type Watcher struct {
	backend  chain.Backend
	registry *contracts.Registry
	dedup    *Deduplicator
	database *db.DB // optional; cursor is memory-only without it
	handler  Handler
	interval time.Duration
	logger   zerolog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWatcher creates a Watcher polling at the given interval.
func NewWatcher(
	backend chain.Backend,
	registry *contracts.Registry,
	dedup *Deduplicator,
	database *db.DB,
	handler Handler,
	interval time.Duration,
	logger zerolog.Logger,
) *Watcher {
	return &Watcher{
		backend:  backend,
		registry: registry,
		dedup:    dedup,
		database: database,
		handler:  handler,
		interval: interval,
		logger:   logger.With().Str("component", "event_watcher").Logger(),
		stopCh:   make(chan struct{}),
	}
}

// Start begins polling. The first poll starts after the persisted cursor,
// or at the current head when no cursor exists.
func (w *Watcher) Start(ctx context.Context) error {
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop stops the watcher and waits for the poll loop to exit.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	cursor, ok := w.loadCursor()
	if !ok {
		head, err := w.backend.BlockNumber(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("failed to read head block, starting from zero")
		}
		cursor = head
		w.saveCursor(cursor)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info().
		Uint64("from_block", cursor).
		Dur("interval", w.interval).
		Msg("event watcher started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			next, err := w.poll(ctx, cursor)
			if err != nil {
				w.logger.Error().Err(err).Uint64("cursor", cursor).Msg("poll failed")
				continue
			}
			if next != cursor {
				cursor = next
				w.saveCursor(cursor)
			}
		}
	}
}

// poll scans (cursor, head] in one bounded chunk and returns the new cursor.
func (w *Watcher) poll(ctx context.Context, cursor uint64) (uint64, error) {
	head, err := w.backend.BlockNumber(ctx)
	if err != nil {
		return cursor, err
	}
	if head <= cursor {
		return cursor, nil
	}

	from := cursor + 1
	to := head
	if to-from >= maxBlockRange {
		to = from + maxBlockRange - 1
	}

	logs, err := w.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: w.registry.WatchAddresses(),
	})
	if err != nil {
		return cursor, err
	}

	for _, raw := range logs {
		if raw.Removed {
			continue
		}
		rec := w.dedup.Admit(raw)
		if rec == nil {
			continue
		}
		if w.handler != nil {
			w.handler(rec)
		}
	}

	return to, nil
}

func (w *Watcher) loadCursor() (uint64, bool) {
	if w.database == nil {
		return 0, false
	}
	var row store.BlockCursor
	if err := w.database.Client().First(&row).Error; err != nil {
		return 0, false
	}
	return row.LastBlock, true
}

func (w *Watcher) saveCursor(block uint64) {
	if w.database == nil {
		return
	}
	var row store.BlockCursor
	if err := w.database.Client().First(&row).Error; err != nil {
		if err := w.database.Client().Create(&store.BlockCursor{LastBlock: block}).Error; err != nil {
			w.logger.Warn().Err(err).Msg("failed to create block cursor")
		}
		return
	}
	row.LastBlock = block
	if err := w.database.Client().Save(&row).Error; err != nil {
		w.logger.Warn().Err(err).Msg("failed to update block cursor")
	}
}
