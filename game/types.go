// Package game defines the domain model shared across the boatclient
// pipeline: user actions and their lifecycle, normalized chain events, and
// the cache keys they touch.
package game

import (
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// ActionKind is a state-changing operation a user can submit.
type ActionKind string

const (
	ActionApprove ActionKind = "approve"
	ActionBuyRaft ActionKind = "buy-raft"
	ActionUpgrade ActionKind = "upgrade"
	ActionRun     ActionKind = "run"
)

// ActionStatus is the lifecycle state of a PendingAction. Transitions are
// strictly ordered within one action; Failed is reachable from any
// non-terminal state.
type ActionStatus string

const (
	StatusIdle             ActionStatus = "idle"
	StatusEstimating       ActionStatus = "estimating"
	StatusAwaitingSignature ActionStatus = "awaiting-signature"
	StatusSubmitted        ActionStatus = "submitted"
	StatusConfirming       ActionStatus = "confirming"
	StatusConfirmed        ActionStatus = "confirmed"
	StatusFailed           ActionStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s ActionStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// PendingAction is one user-initiated operation moving through the
// submission pipeline. Fields are mutated only by the submitter, under the
// owning registry's lock.
type PendingAction struct {
	Kind       ActionKind
	Account    ethcommon.Address
	ResourceID uint64   // boat token id; 0 for buy-raft and approve
	Amount     *big.Int // stake, cost, or approval amount
	Status     ActionStatus
	TxHash     ethcommon.Hash // set once submitted
	ErrKind    string         // stable error kind, set on failure
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PlanSource records whether a TransactionPlan came from live estimation or
// the static fallback table.
type PlanSource string

const (
	PlanEstimated PlanSource = "estimated"
	PlanFallback  PlanSource = "fallback"
)

// TransactionPlan is the fee budget for one submission attempt.
type TransactionPlan struct {
	GasLimit  uint64
	GasTipCap *big.Int
	GasFeeCap *big.Int
	Source    PlanSource
}

// EventType is a normalized chain occurrence. Multiple contract variants
// emit structurally identical logs; the contracts registry folds them onto
// these canonical types.
type EventType string

const (
	EventRunResult      EventType = "run-result"
	EventBoatBurned     EventType = "boat-burned"
	EventBoatDowngraded EventType = "boat-downgraded"
	EventRaftSpawned    EventType = "raft-spawned"
	EventRaftBought     EventType = "raft-bought"
	EventBoatUpgraded   EventType = "boat-upgraded"
)

// EventRecord is one logical occurrence derived from a raw chain log.
// Immutable once created.
type EventRecord struct {
	DedupeKey   string // "<contract>:<txHash>:<logIndex>"
	Type        EventType
	SourceToken string // "BOAT", "JOINT", ... per the emitting variant
	Account     ethcommon.Address
	ResourceID  uint64

	// payload fields; absent fields stay zero
	Level     uint8
	FromLevel uint8
	ToLevel   uint8
	Stake     *big.Int
	Reward    *big.Int
	Cost      *big.Int
	Success   bool

	OccurredAt time.Time
}

// PlayerStat is one leaderboard entry. Entries are rank-ordered by wins
// descending with runs ascending as the tiebreak.
type PlayerStat struct {
	Account string
	Wins    uint64
	Runs    uint64
}
