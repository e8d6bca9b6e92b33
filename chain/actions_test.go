package chain

import (
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clierrors "github.com/lowtide-labs/boatclient/errors"
	"github.com/lowtide-labs/boatclient/game"
	"github.com/lowtide-labs/boatclient/logger"
)

var testAccount = ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")

func TestBeginRejectsDuplicateTuple(t *testing.T) {
	reg := NewActionRegistry(logger.Nop())

	_, err := reg.Begin(testAccount, 5, game.ActionRun, big.NewInt(100))
	require.NoError(t, err)

	_, err = reg.Begin(testAccount, 5, game.ActionRun, big.NewInt(200))
	require.Error(t, err)
	assert.Equal(t, clierrors.KindDuplicateAction, clierrors.KindOf(err))

	// the first action is untouched
	got, ok := reg.Get(testAccount, 5, game.ActionRun)
	require.True(t, ok)
	assert.Equal(t, game.StatusIdle, got.Status)
	assert.Equal(t, big.NewInt(100), got.Amount)
}

func TestBeginAllowsDifferentTuples(t *testing.T) {
	reg := NewActionRegistry(logger.Nop())

	_, err := reg.Begin(testAccount, 5, game.ActionRun, nil)
	require.NoError(t, err)

	// different resource, different kind, different account: all fine
	_, err = reg.Begin(testAccount, 6, game.ActionRun, nil)
	assert.NoError(t, err)
	_, err = reg.Begin(testAccount, 5, game.ActionUpgrade, nil)
	assert.NoError(t, err)
	_, err = reg.Begin(ethcommon.HexToAddress("0x22"), 5, game.ActionRun, nil)
	assert.NoError(t, err)
}

func TestBeginAllowsReuseAfterTerminal(t *testing.T) {
	reg := NewActionRegistry(logger.Nop())

	act, err := reg.Begin(testAccount, 5, game.ActionRun, nil)
	require.NoError(t, err)
	reg.Fail(act, clierrors.KindTransport)

	_, err = reg.Begin(testAccount, 5, game.ActionRun, nil)
	assert.NoError(t, err, "a terminal action frees the tuple")
}

func TestTransitionEnforcesStrictOrder(t *testing.T) {
	reg := NewActionRegistry(logger.Nop())
	act, err := reg.Begin(testAccount, 1, game.ActionBuyRaft, nil)
	require.NoError(t, err)

	require.Error(t, reg.Transition(act, game.StatusSubmitted), "skipping states is rejected")

	for _, next := range []game.ActionStatus{
		game.StatusEstimating,
		game.StatusAwaitingSignature,
		game.StatusSubmitted,
		game.StatusConfirming,
		game.StatusConfirmed,
	} {
		require.NoError(t, reg.Transition(act, next))
	}
	assert.Error(t, reg.Transition(act, game.StatusConfirming), "terminal actions do not move")
}

func TestFailFromAnyNonTerminalState(t *testing.T) {
	reg := NewActionRegistry(logger.Nop())
	act, err := reg.Begin(testAccount, 1, game.ActionUpgrade, nil)
	require.NoError(t, err)
	require.NoError(t, reg.Transition(act, game.StatusEstimating))
	require.NoError(t, reg.Transition(act, game.StatusAwaitingSignature))

	reg.Fail(act, clierrors.KindUserRejected)
	got, _ := reg.Get(testAccount, 1, game.ActionUpgrade)
	assert.Equal(t, game.StatusFailed, got.Status)
	assert.Equal(t, string(clierrors.KindUserRejected), got.ErrKind)
}

func TestFailIsNoopOnTerminal(t *testing.T) {
	reg := NewActionRegistry(logger.Nop())
	act, err := reg.Begin(testAccount, 1, game.ActionRun, nil)
	require.NoError(t, err)
	reg.Fail(act, clierrors.KindTransport)
	reg.Fail(act, clierrors.KindInternal)

	got, _ := reg.Get(testAccount, 1, game.ActionRun)
	assert.Equal(t, string(clierrors.KindTransport), got.ErrKind, "first failure wins")
}

func TestListScopedToAccount(t *testing.T) {
	reg := NewActionRegistry(logger.Nop())
	_, err := reg.Begin(testAccount, 1, game.ActionRun, nil)
	require.NoError(t, err)
	_, err = reg.Begin(ethcommon.HexToAddress("0x22"), 2, game.ActionRun, nil)
	require.NoError(t, err)

	assert.Len(t, reg.List(testAccount), 1)
}
