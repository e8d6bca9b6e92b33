// Package events turns raw chain logs into normalized, exactly-once
// EventRecords and keeps the client's caches honest about them.
package events

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/lowtide-labs/boatclient/contracts"
	"github.com/lowtide-labs/boatclient/db"
	"github.com/lowtide-labs/boatclient/game"
	"github.com/lowtide-labs/boatclient/metrics"
	"github.com/lowtide-labs/boatclient/store"
)

// Deduplicator admits each logical chain event exactly once. The dedupe key
// is namespaced per source contract: two independently-deployed variants
// emitting identical-looking logs never suppress each other. The in-memory
// set is scoped to one account session; the persisted set (when a database
// is attached) survives restarts for the same account.
type Deduplicator struct {
	registry *contracts.Registry
	account  ethcommon.Address
	database *db.DB // optional
	logger   zerolog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDeduplicator creates a Deduplicator for the active account, preloading
// the persisted key set when a database is attached.
func NewDeduplicator(
	registry *contracts.Registry,
	account ethcommon.Address,
	database *db.DB,
	logger zerolog.Logger,
) *Deduplicator {
	d := &Deduplicator{
		registry: registry,
		account:  account,
		database: database,
		seen:     make(map[string]struct{}),
		logger:   logger.With().Str("component", "dedup").Str("account", account.Hex()).Logger(),
	}

	if database != nil {
		var keys []store.DedupeKey
		if err := database.Client().Where("account = ?", account.Hex()).Find(&keys).Error; err != nil {
			d.logger.Warn().Err(err).Msg("failed to load persisted dedupe keys")
		} else {
			for _, k := range keys {
				d.seen[k.Key] = struct{}{}
			}
			d.logger.Debug().Int("keys", len(keys)).Msg("loaded persisted dedupe keys")
		}
	}
	return d
}

// Account returns the account this session's dedupe set is scoped to.
func (d *Deduplicator) Account() ethcommon.Address {
	return d.account
}

// Len returns the number of keys in the session set.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// Admit classifies a raw log and returns its EventRecord, or nil when the
// log is from an unknown contract/topic or has already been admitted.
// Partially absent payload fields decode to zero values, never an error.
func (d *Deduplicator) Admit(raw types.Log) *game.EventRecord {
	if len(raw.Topics) == 0 {
		return nil
	}

	eventType, sourceToken, ok := d.registry.Normalize(raw.Address, raw.Topics[0])
	if !ok {
		return nil
	}

	key := fmt.Sprintf("%s:%s:%d", raw.Address.Hex(), raw.TxHash.Hex(), raw.Index)

	d.mu.Lock()
	if _, dup := d.seen[key]; dup {
		d.mu.Unlock()
		metrics.EventsDeduped.Inc()
		d.logger.Debug().Str("key", key).Msg("duplicate log dropped")
		return nil
	}
	d.seen[key] = struct{}{}
	d.mu.Unlock()

	if d.database != nil {
		// unique-index violations are fine: the key was persisted by a
		// previous session
		if err := d.database.Client().Create(&store.DedupeKey{
			Account: d.account.Hex(),
			Key:     key,
		}).Error; err != nil {
			d.logger.Debug().Err(err).Str("key", key).Msg("dedupe key not persisted")
		}
	}

	rec := &game.EventRecord{
		DedupeKey:   key,
		Type:        eventType,
		SourceToken: sourceToken,
		OccurredAt:  time.Now(),
	}
	d.parsePayload(rec, raw)

	metrics.EventsAdmitted.WithLabelValues(string(eventType)).Inc()
	return rec
}

// parsePayload fills the typed fields from topics and data. Each event
// shape is fixed per type; anything missing stays zero.
func (d *Deduplicator) parsePayload(rec *game.EventRecord, raw types.Log) {
	switch rec.Type {
	case game.EventRunResult:
		rec.Account = topicAddress(raw, 1)
		rec.ResourceID = topicUint64(raw, 2)
		// variant run events share RunResult's non-indexed layout
		fields := unpackData(raw.Data, "RunResult")
		rec.Level = asUint8(fields, 0)
		rec.Stake = asBig(fields, 1)
		rec.Success = asBool(fields, 2)
		rec.Reward = asBig(fields, 3)

	case game.EventBoatBurned:
		rec.ResourceID = topicUint64(raw, 1)
		fields := unpackData(raw.Data, "BoatBurned")
		rec.Level = asUint8(fields, 0)

	case game.EventBoatDowngraded:
		rec.ResourceID = topicUint64(raw, 1)
		fields := unpackData(raw.Data, "BoatDowngraded")
		rec.FromLevel = asUint8(fields, 0)
		rec.ToLevel = asUint8(fields, 1)

	case game.EventRaftSpawned:
		rec.Account = topicAddress(raw, 1)
		rec.ResourceID = topicUint64(raw, 2)
		rec.Level = 1 // spawned rafts are always level 1

	case game.EventRaftBought:
		rec.Account = topicAddress(raw, 1)
		rec.ResourceID = topicUint64(raw, 2)
		fields := unpackData(raw.Data, "RaftBought")
		rec.Cost = asBig(fields, 0)
		rec.Level = 1

	case game.EventBoatUpgraded:
		rec.Account = topicAddress(raw, 1)
		rec.ResourceID = topicUint64(raw, 2)
		fields := unpackData(raw.Data, "Upgraded")
		rec.FromLevel = asUint8(fields, 0)
		rec.ToLevel = asUint8(fields, 1)
		rec.Cost = asBig(fields, 2)
	}
}

func topicAddress(raw types.Log, i int) ethcommon.Address {
	if len(raw.Topics) <= i {
		return ethcommon.Address{}
	}
	return ethcommon.BytesToAddress(raw.Topics[i].Bytes())
}

func topicUint64(raw types.Log, i int) uint64 {
	if len(raw.Topics) <= i {
		return 0
	}
	return new(big.Int).SetBytes(raw.Topics[i].Bytes()).Uint64()
}

// unpackData decodes an event's non-indexed fields, returning nil (not an
// error) on malformed or truncated data.
func unpackData(data []byte, eventName string) []any {
	ev, ok := contracts.GameABI.Events[eventName]
	if !ok {
		return nil
	}
	fields, err := ev.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil
	}
	return fields
}

func asUint8(fields []any, i int) uint8 {
	if len(fields) <= i {
		return 0
	}
	v, _ := fields[i].(uint8)
	return v
}

func asBool(fields []any, i int) bool {
	if len(fields) <= i {
		return false
	}
	v, _ := fields[i].(bool)
	return v
}

func asBig(fields []any, i int) *big.Int {
	if len(fields) <= i {
		return new(big.Int)
	}
	v, ok := fields[i].(*big.Int)
	if !ok || v == nil {
		return new(big.Int)
	}
	return v
}
