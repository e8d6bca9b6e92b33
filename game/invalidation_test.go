package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every event type and every action kind must map to a non-empty,
// well-formed key set: the invalidation bus treats this table as exhaustive.
func TestEventInvalidationTableIsExhaustive(t *testing.T) {
	known := map[string]bool{}
	for _, p := range AllKeyPatterns {
		known[p] = true
	}

	for _, et := range EventTypes {
		keys := InvalidationKeysForEvent(et)
		require.NotEmpty(t, keys, "event type %s has no invalidation keys", et)
		for _, k := range keys {
			assert.True(t, known[k], "event %s references unknown key pattern %q", et, k)
		}
	}
}

func TestActionInvalidationTableIsExhaustive(t *testing.T) {
	known := map[string]bool{}
	for _, p := range AllKeyPatterns {
		known[p] = true
	}

	for _, ak := range ActionKinds {
		keys := InvalidationKeysForAction(ak)
		require.NotEmpty(t, keys, "action kind %s has no invalidation keys", ak)
		for _, k := range keys {
			assert.True(t, known[k], "action %s references unknown key pattern %q", ak, k)
		}
	}
}

func TestSpecificMappings(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{KeyOwnership, KeyBoatCount},
		InvalidationKeysForEvent(EventBoatBurned))
	assert.Contains(t, InvalidationKeysForEvent(EventRunResult), KeyCooldown)
	assert.Contains(t, InvalidationKeysForAction(ActionApprove), KeyAllowance)
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusConfirmed.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusSubmitted.Terminal())
	assert.False(t, StatusIdle.Terminal())
}
