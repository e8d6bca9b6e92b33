// Package store contains the GORM-backed SQLite models persisted by
// boatclient (database file: boatclient.db): the event dedupe set, the
// bounded activity log, leaderboard snapshots, and the watcher cursor.
package store

import (
	"gorm.io/gorm"
)

// BlockCursor tracks the last block scanned by the event watcher. One
// record per database.
type BlockCursor struct {
	gorm.Model
	LastBlock uint64
}

// DedupeKey records an admitted event so a restart does not replay the
// chain log into the activity feed. Keys are scoped per account; switching
// accounts consults a different row set, never a shared one.
type DedupeKey struct {
	gorm.Model
	Account string `gorm:"uniqueIndex:idx_account_key"`
	Key     string `gorm:"uniqueIndex:idx_account_key"`
}

// ActivityEntry is one row of the per-account activity feed. The feed is
// bounded; inserts beyond capacity evict the oldest rows.
type ActivityEntry struct {
	gorm.Model
	Account     string `gorm:"index"`
	EventType   string
	SourceToken string
	ResourceID  uint64
	Level       uint8
	FromLevel   uint8
	ToLevel     uint8
	Stake       string // decimal wei, arbitrary precision
	Reward      string
	Cost        string
	Success     bool
	OccurredAt  int64 // unix seconds
}

// LeaderboardRow is one ranked entry of a persisted live snapshot, keyed by
// partition (reward token). Synthetic fallback data is never written here.
type LeaderboardRow struct {
	gorm.Model
	Partition string `gorm:"index"`
	Rank      int
	Account   string
	Wins      uint64
	Runs      uint64
}

// SnapshotMeta records when a partition's live snapshot was fetched.
type SnapshotMeta struct {
	gorm.Model
	Partition string `gorm:"uniqueIndex"`
	FetchedAt int64 // unix seconds
}
