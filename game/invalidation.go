package game

// Cache key patterns. A concrete cache key is the pattern plus colon-joined
// arguments (cache.Key); invalidation matches on the pattern prefix.
const (
	KeyTokenBalance = "token-balance" // :account
	KeyAllowance    = "allowance"     // :owner:spender:token
	KeyOwnership    = "ownership"     // :tokenId
	KeyBoatCount    = "boat-count"    // :account
	KeyLevels       = "levels"        // :tokenId
	KeyCooldown     = "cooldown"      // :tokenId
	KeyStats        = "stats"         // :account
	KeyPoolBalance  = "pool-balance"  // :game
	KeyCosts        = "costs"         // :game (raft price, upgrade costs)
)

// AllKeyPatterns enumerates every cache key pattern the client uses. The
// periodic sweep invalidates all of them unconditionally.
var AllKeyPatterns = []string{
	KeyTokenBalance,
	KeyAllowance,
	KeyOwnership,
	KeyBoatCount,
	KeyLevels,
	KeyCooldown,
	KeyStats,
	KeyPoolBalance,
	KeyCosts,
}

// eventInvalidations maps each event type to the cache key patterns it
// stales. This table is the single source of truth for event-driven
// invalidation; the bus consumes it verbatim.
var eventInvalidations = map[EventType][]string{
	EventRunResult:      {KeyTokenBalance, KeyCooldown, KeyStats, KeyPoolBalance},
	EventBoatBurned:     {KeyOwnership, KeyBoatCount},
	EventBoatDowngraded: {KeyLevels, KeyOwnership},
	EventRaftSpawned:    {KeyOwnership, KeyBoatCount},
	EventRaftBought:     {KeyTokenBalance, KeyOwnership, KeyBoatCount},
	EventBoatUpgraded:   {KeyTokenBalance, KeyLevels, KeyCosts},
}

// actionInvalidations maps each action kind to the cache key patterns the
// submitter invalidates once the action confirms, before the confirming
// status transition is published.
var actionInvalidations = map[ActionKind][]string{
	ActionApprove: {KeyAllowance},
	ActionBuyRaft: {KeyTokenBalance, KeyAllowance, KeyOwnership, KeyBoatCount},
	ActionUpgrade: {KeyTokenBalance, KeyAllowance, KeyLevels, KeyCosts},
	ActionRun:     {KeyTokenBalance, KeyCooldown, KeyStats, KeyPoolBalance},
}

// InvalidationKeysForEvent returns the cache key patterns staled by an
// event type. The returned slice must not be mutated.
func InvalidationKeysForEvent(t EventType) []string {
	return eventInvalidations[t]
}

// InvalidationKeysForAction returns the cache key patterns staled when an
// action of the given kind confirms.
func InvalidationKeysForAction(k ActionKind) []string {
	return actionInvalidations[k]
}

// EventTypes enumerates every normalized event type.
var EventTypes = []EventType{
	EventRunResult,
	EventBoatBurned,
	EventBoatDowngraded,
	EventRaftSpawned,
	EventRaftBought,
	EventBoatUpgraded,
}

// ActionKinds enumerates every action kind.
var ActionKinds = []ActionKind{
	ActionApprove,
	ActionBuyRaft,
	ActionUpgrade,
	ActionRun,
}
