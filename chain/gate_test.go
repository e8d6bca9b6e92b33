package chain

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowtide-labs/boatclient/cache"
	"github.com/lowtide-labs/boatclient/contracts"
	"github.com/lowtide-labs/boatclient/game"
	"github.com/lowtide-labs/boatclient/invalidation"
	"github.com/lowtide-labs/boatclient/logger"
)

func newTestGate(t *testing.T, backend *stubBackend) (*AllowanceGate, *ActionRegistry, *cache.Cache, Signer) {
	t.Helper()
	signer := newStubSigner(t)
	readCache := cache.New(logger.Nop())
	reader := NewReader(backend, testRegistry(t), readCache, time.Second, logger.Nop())
	sub, actions := newTestSubmitter(t, backend, signer, nil)
	gate := NewAllowanceGate(reader, sub, actions, 1_000_000, logger.Nop())
	return gate, actions, readCache, signer
}

func primeAllowance(c *cache.Cache, signer Signer, variant string, amount *big.Int) {
	key := cache.Key(game.KeyAllowance, variant, signer.Address().Hex(), testGame.Hex())
	c.Put(key, amount)
}

func TestEnsureAllowanceSufficientIsReady(t *testing.T) {
	backend := &stubBackend{}
	gate, _, readCache, signer := newTestGate(t, backend)
	variant := testVariant(t)

	primeAllowance(readCache, signer, variant.Name, big.NewInt(10_000))

	ready, pending, err := gate.EnsureAllowance(context.Background(), variant, big.NewInt(1000))
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Nil(t, pending)
	assert.Empty(t, backend.sent(), "no approval is submitted when the allowance covers the spend")
}

func TestEnsureAllowanceSubmitsSentinelApproval(t *testing.T) {
	backend := &stubBackend{}
	gate, actions, readCache, signer := newTestGate(t, backend)
	variant := testVariant(t)

	primeAllowance(readCache, signer, variant.Name, big.NewInt(0))

	ready, pending, err := gate.EnsureAllowance(context.Background(), variant, big.NewInt(1000))
	require.NoError(t, err)
	assert.False(t, ready)
	require.NotNil(t, pending)
	assert.Equal(t, game.ActionApprove, pending.Kind)
	assert.Equal(t, gate.Sentinel(), pending.Amount, "approval grants the sentinel, not the exact amount")

	// the approval eventually lands and becomes terminal
	assert.Eventually(t, func() bool {
		got, ok := actions.Get(signer.Address(), 0, game.ActionApprove)
		return ok && got.Status == game.StatusConfirmed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEnsureAllowanceIsIdempotentWhileApprovalPending(t *testing.T) {
	backend := &stubBackend{
		receipt: func(ethcommon.Hash) (*types.Receipt, error) {
			return nil, errors.New("not found yet")
		},
	}
	gate, _, readCache, signer := newTestGate(t, backend)
	variant := testVariant(t)

	primeAllowance(readCache, signer, variant.Name, big.NewInt(0))

	ready, first, err := gate.EnsureAllowance(context.Background(), variant, big.NewInt(1000))
	require.NoError(t, err)
	require.False(t, ready)
	require.NotNil(t, first)

	ready, second, err := gate.EnsureAllowance(context.Background(), variant, big.NewInt(1000))
	require.NoError(t, err)
	assert.False(t, ready)
	require.NotNil(t, second)
	assert.Equal(t, game.ActionApprove, second.Kind, "second call reuses the in-flight approval")
	assert.LessOrEqual(t, len(backend.sent()), 1, "never two concurrent approvals")
}

func TestApprovalConfirmMakesSecondEnsureReady(t *testing.T) {
	// The chain grants the sentinel allowance once the approve lands.
	before, err := contracts.TokenABI.Methods["allowance"].Outputs.Pack(big.NewInt(0))
	require.NoError(t, err)
	after, err := contracts.TokenABI.Methods["allowance"].Outputs.Pack(
		new(big.Int).Mul(big.NewInt(1_000_000), weiPerToken))
	require.NoError(t, err)

	var approved atomic.Bool
	backend := &stubBackend{
		callContract: func(ethereum.CallMsg, *big.Int) ([]byte, error) {
			if approved.Load() {
				return after, nil
			}
			return before, nil
		},
		sendTransaction: func(*types.Transaction) error {
			approved.Store(true)
			return nil
		},
	}

	// Full wiring: the submitter's confirm notification drives the bus,
	// which stales the allowance key so the reader reloads it.
	signer := newStubSigner(t)
	readCache := cache.New(logger.Nop())
	reader := NewReader(backend, testRegistry(t), readCache, time.Second, logger.Nop())
	bus := invalidation.NewBus(readCache, time.Millisecond, time.Hour, logger.Nop())
	defer bus.Stop()
	sub, actions := newTestSubmitter(t, backend, signer, bus)
	gate := NewAllowanceGate(reader, sub, actions, 1_000_000, logger.Nop())
	variant := testVariant(t)

	ready, pending, err := gate.EnsureAllowance(context.Background(), variant, big.NewInt(1000))
	require.NoError(t, err)
	require.False(t, ready)
	require.NotNil(t, pending)

	require.Eventually(t, func() bool {
		got, ok := actions.Get(signer.Address(), 0, game.ActionApprove)
		return ok && got.Status == game.StatusConfirmed
	}, 2*time.Second, 10*time.Millisecond)

	ready, pending, err = gate.EnsureAllowance(context.Background(), variant, big.NewInt(1000))
	require.NoError(t, err)
	assert.True(t, ready, "the reloaded allowance covers the spend")
	assert.Nil(t, pending)
	assert.Len(t, backend.sent(), 1, "no second approval")
}

func TestSentinelIsOneMillionTokens(t *testing.T) {
	backend := &stubBackend{}
	gate, _, _, _ := newTestGate(t, backend)

	want := new(big.Int).Mul(big.NewInt(1_000_000), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	assert.Equal(t, want, gate.Sentinel())
}
