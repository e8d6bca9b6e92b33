package session

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowtide-labs/boatclient/cache"
	"github.com/lowtide-labs/boatclient/chain"
	"github.com/lowtide-labs/boatclient/config"
	"github.com/lowtide-labs/boatclient/contracts"
	clierrors "github.com/lowtide-labs/boatclient/errors"
	"github.com/lowtide-labs/boatclient/game"
	"github.com/lowtide-labs/boatclient/logger"
)

var testGameAddr = ethcommon.HexToAddress("0x00000000000000000000000000000000000000a1")

// quietBackend returns benign defaults for everything the session touches.
type quietBackend struct{}

func (quietBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, context.DeadlineExceeded
}
func (quietBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}
func (quietBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}
func (quietBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: big.NewInt(10_000_000_000)}, nil
}
func (quietBackend) PendingNonceAt(context.Context, ethcommon.Address) (uint64, error) {
	return 0, nil
}
func (quietBackend) SendTransaction(context.Context, *types.Transaction) error { return nil }
func (quietBackend) TransactionReceipt(context.Context, ethcommon.Hash) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(1)}, nil
}
func (quietBackend) BlockNumber(context.Context) (uint64, error) { return 100, nil }
func (quietBackend) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func testDeps(t *testing.T) Deps {
	t.Helper()
	games := []config.GameContracts{{
		Name:         "BOAT",
		GameAddress:  testGameAddr.Hex(),
		TokenAddress: "0x00000000000000000000000000000000000000b1",
		NFTAddress:   "0x00000000000000000000000000000000000000c1",
	}}
	registry, err := contracts.NewRegistry(games)
	require.NoError(t, err)

	return Deps{
		Backend:  quietBackend{},
		Registry: registry,
		Config: &config.Config{
			Games:                       games,
			ReadTimeoutSeconds:          1,
			EstimateTimeoutSeconds:      1,
			ConfirmTimeoutSeconds:       1,
			EventPollingIntervalSeconds: 60,
			SweepIntervalSeconds:        60,
			SecondaryInvalidationDelay:  1,
			GasMarginPercent:            20,
			TipMarginPercent:            10,
			TipBumpWei:                  1_000_000_000,
			FallbackFeeCapGwei:          50,
			RetryGasIncrement:           100_000,
			RetryGasFloor:               500_000,
			ApprovalSentinelTokens:      1_000_000,
			ActivityCapacity:            20,
		},
		ChainID: big.NewInt(1337),
		Logger:  logger.Nop(),
	}
}

func testSigner(t *testing.T, hexKey string) chain.Signer {
	t.Helper()
	signer, err := chain.NewLocalSigner(hexKey, big.NewInt(1337))
	require.NoError(t, err)
	return signer
}

const (
	keyA = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	keyB = "8da4ef21b864d2cc526dbdb2a120bd2874c36c9d0a1fb7f8c63d7f7a8b41de8f"
)

func TestSwitchRebuildsSessionState(t *testing.T) {
	manager := NewManager(testDeps(t))
	defer manager.Close()

	first, err := manager.Switch(context.Background(), testSigner(t, keyA))
	require.NoError(t, err)

	// dirty the per-account state
	first.Cache.Put(cache.Key(game.KeyTokenBalance, "BOAT", first.Account().Hex()), big.NewInt(1))
	require.Equal(t, 1, first.Cache.Len())

	second, err := manager.Switch(context.Background(), testSigner(t, keyB))
	require.NoError(t, err)

	assert.NotEqual(t, first.Account(), second.Account())
	assert.Zero(t, second.Cache.Len(), "new session starts with an empty cache")
	assert.Zero(t, second.Dedup.Len(), "new session starts with an empty dedupe set")
	assert.Zero(t, second.Activity.Len())
	assert.Same(t, second, manager.Current())
}

func TestRunRejectedWhileCooldownActive(t *testing.T) {
	deps := testDeps(t)
	sess := New(deps, testSigner(t, keyA))

	now := uint64(time.Now().Unix())
	sess.Clock.SetSource(42, now-10, 3600)

	_, err := sess.Run(context.Background(), "BOAT", 42, big.NewInt(100))
	require.Error(t, err)
	assert.Equal(t, clierrors.KindRevertCooldown, clierrors.KindOf(err))
}

func TestRunSubmitsWhenCooldownElapsed(t *testing.T) {
	deps := testDeps(t)
	sess := New(deps, testSigner(t, keyA))

	pending, err := sess.Run(context.Background(), "BOAT", 42, big.NewInt(100))
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, game.ActionRun, pending.Kind)
	assert.Equal(t, uint64(42), pending.ResourceID)
}

func TestBuyRaftRoutedThroughAllowanceGate(t *testing.T) {
	deps := testDeps(t)
	sess := New(deps, testSigner(t, keyA))
	owner := sess.Account()

	// prime the reads the flow needs: price known, allowance empty
	sess.Cache.Put(cache.Key(game.KeyCosts, "BOAT", "raft"), big.NewInt(5000))
	sess.Cache.Put(cache.Key(game.KeyAllowance, "BOAT", owner.Hex(), testGameAddr.Hex()), big.NewInt(0))

	action, pendingApprove, err := sess.BuyRaft(context.Background(), "BOAT")
	require.NoError(t, err)
	assert.Nil(t, action, "the purchase waits for the approval")
	require.NotNil(t, pendingApprove)
	assert.Equal(t, game.ActionApprove, pendingApprove.Kind)
}

func TestBuyRaftSubmitsWhenAllowanceCovers(t *testing.T) {
	deps := testDeps(t)
	sess := New(deps, testSigner(t, keyA))
	owner := sess.Account()

	sess.Cache.Put(cache.Key(game.KeyCosts, "BOAT", "raft"), big.NewInt(5000))
	sess.Cache.Put(cache.Key(game.KeyAllowance, "BOAT", owner.Hex(), testGameAddr.Hex()), big.NewInt(10_000))

	action, pendingApprove, err := sess.BuyRaft(context.Background(), "BOAT")
	require.NoError(t, err)
	assert.Nil(t, pendingApprove)
	require.NotNil(t, action)
	assert.Equal(t, game.ActionBuyRaft, action.Kind)
	assert.Equal(t, big.NewInt(5000), action.Amount)
}

func TestUnknownVariantIsRejected(t *testing.T) {
	sess := New(testDeps(t), testSigner(t, keyA))

	_, err := sess.Run(context.Background(), "NOPE", 1, big.NewInt(1))
	assert.Error(t, err)
	_, _, err = sess.BuyRaft(context.Background(), "NOPE")
	assert.Error(t, err)
}
