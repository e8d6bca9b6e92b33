// Package activity maintains the bounded per-account activity feed built
// from admitted contract events. The newest entries win; inserts beyond
// capacity evict the oldest rows for that account.
package activity

import (
	"math/big"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/lowtide-labs/boatclient/db"
	"github.com/lowtide-labs/boatclient/game"
	"github.com/lowtide-labs/boatclient/store"
)

const defaultCapacity = 20

// Log is the feed for one account. Entries are held in memory newest-first
// and mirrored to the database when one is attached.
type Log struct {
	mu       sync.Mutex
	account  string
	capacity int
	entries  []game.EventRecord
	database *db.DB
	logger   zerolog.Logger
}

// New loads any persisted entries for the account. database may be nil.
func New(account string, capacity int, database *db.DB, logger zerolog.Logger) *Log {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	l := &Log{
		account:  account,
		capacity: capacity,
		database: database,
		logger:   logger.With().Str("component", "activity").Str("account", account).Logger(),
	}
	l.restore()
	return l
}

// Record prepends an entry, evicting from the tail past capacity.
func (l *Log) Record(rec game.EventRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append([]game.EventRecord{rec}, l.entries...)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[:l.capacity]
	}
	l.persist(rec)
}

// Entries returns a newest-first copy of the feed.
func (l *Log) Entries() []game.EventRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]game.EventRecord, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the current feed size.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Log) restore() {
	if l.database == nil {
		return
	}
	var rows []store.ActivityEntry
	err := l.database.Client().
		Where("account = ?", l.account).
		Order("occurred_at desc, id desc").
		Limit(l.capacity).
		Find(&rows).Error
	if err != nil {
		l.logger.Warn().Err(err).Msg("restore activity feed")
		return
	}
	owner := ethcommon.HexToAddress(l.account)
	for _, row := range rows {
		rec := fromModel(row)
		rec.Account = owner
		l.entries = append(l.entries, rec)
	}
}

func (l *Log) persist(rec game.EventRecord) {
	if l.database == nil {
		return
	}
	client := l.database.Client()
	if err := client.Create(toModel(l.account, rec)).Error; err != nil {
		l.logger.Warn().Err(err).Msg("persist activity entry")
		return
	}
	// Trim rows past capacity, oldest first.
	var count int64
	client.Model(&store.ActivityEntry{}).Where("account = ?", l.account).Count(&count)
	if excess := count - int64(l.capacity); excess > 0 {
		var stale []store.ActivityEntry
		client.Where("account = ?", l.account).
			Order("occurred_at asc, id asc").
			Limit(int(excess)).
			Find(&stale)
		for _, row := range stale {
			client.Unscoped().Delete(&store.ActivityEntry{}, row.ID)
		}
	}
}

func toModel(account string, rec game.EventRecord) *store.ActivityEntry {
	return &store.ActivityEntry{
		Account:     account,
		EventType:   string(rec.Type),
		SourceToken: rec.SourceToken,
		ResourceID:  rec.ResourceID,
		Level:       rec.Level,
		FromLevel:   rec.FromLevel,
		ToLevel:     rec.ToLevel,
		Stake:       bigString(rec.Stake),
		Reward:      bigString(rec.Reward),
		Cost:        bigString(rec.Cost),
		Success:     rec.Success,
		OccurredAt:  rec.OccurredAt.Unix(),
	}
}

func fromModel(row store.ActivityEntry) game.EventRecord {
	return game.EventRecord{
		Type:        game.EventType(row.EventType),
		SourceToken: row.SourceToken,
		ResourceID:  row.ResourceID,
		Level:       row.Level,
		FromLevel:   row.FromLevel,
		ToLevel:     row.ToLevel,
		Stake:       bigFromString(row.Stake),
		Reward:      bigFromString(row.Reward),
		Cost:        bigFromString(row.Cost),
		Success:     row.Success,
		OccurredAt:  time.Unix(row.OccurredAt, 0),
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func bigFromString(s string) *big.Int {
	if s == "" {
		return nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil
	}
	return v
}
