package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/lowtide-labs/boatclient/config"
	"github.com/lowtide-labs/boatclient/contracts"
	"github.com/lowtide-labs/boatclient/logger"
)

var (
	testChainID = big.NewInt(1337)
	testGame    = ethcommon.HexToAddress("0x00000000000000000000000000000000000000a1")
	testToken   = ethcommon.HexToAddress("0x00000000000000000000000000000000000000b1")
	testNFT     = ethcommon.HexToAddress("0x00000000000000000000000000000000000000c1")
)

// stubBackend overrides individual RPC methods per test; unset methods
// return benign defaults.
type stubBackend struct {
	mu sync.Mutex

	callContract    func(msg ethereum.CallMsg, block *big.Int) ([]byte, error)
	estimateGas     func(msg ethereum.CallMsg) (uint64, error)
	suggestTip      func() (*big.Int, error)
	headerByNumber  func() (*types.Header, error)
	sendTransaction func(tx *types.Transaction) error
	receipt         func(hash ethcommon.Hash) (*types.Receipt, error)

	callCount int
	sentTxs   []*types.Transaction
}

func (s *stubBackend) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	s.mu.Lock()
	s.callCount++
	s.mu.Unlock()
	if s.callContract != nil {
		return s.callContract(msg, block)
	}
	return nil, errors.New("no call handler")
}

func (s *stubBackend) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	if s.estimateGas != nil {
		return s.estimateGas(msg)
	}
	return 100_000, nil
}

func (s *stubBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	if s.suggestTip != nil {
		return s.suggestTip()
	}
	return big.NewInt(1_000_000_000), nil
}

func (s *stubBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	if s.headerByNumber != nil {
		return s.headerByNumber()
	}
	return &types.Header{BaseFee: big.NewInt(10_000_000_000)}, nil
}

func (s *stubBackend) PendingNonceAt(context.Context, ethcommon.Address) (uint64, error) {
	return 7, nil
}

func (s *stubBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	s.mu.Lock()
	s.sentTxs = append(s.sentTxs, tx)
	s.mu.Unlock()
	if s.sendTransaction != nil {
		return s.sendTransaction(tx)
	}
	return nil
}

func (s *stubBackend) TransactionReceipt(_ context.Context, hash ethcommon.Hash) (*types.Receipt, error) {
	if s.receipt != nil {
		return s.receipt(hash)
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(1)}, nil
}

func (s *stubBackend) BlockNumber(context.Context) (uint64, error) { return 100, nil }

func (s *stubBackend) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (s *stubBackend) sent() []*types.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*types.Transaction(nil), s.sentTxs...)
}

// stubSigner signs with a throwaway key, optionally declining first.
type stubSigner struct {
	*LocalSigner
	declineWith error
}

func newStubSigner(t *testing.T) *stubSigner {
	t.Helper()
	local, err := NewLocalSigner(
		"4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318", testChainID)
	require.NoError(t, err)
	return &stubSigner{LocalSigner: local}
}

func (s *stubSigner) SignTx(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	if s.declineWith != nil {
		return nil, s.declineWith
	}
	return s.LocalSigner.SignTx(ctx, tx)
}

func testRegistry(t *testing.T) *contracts.Registry {
	t.Helper()
	registry, err := contracts.NewRegistry([]config.GameContracts{{
		Name:         "BOAT",
		GameAddress:  testGame.Hex(),
		TokenAddress: testToken.Hex(),
		NFTAddress:   testNFT.Hex(),
	}})
	require.NoError(t, err)
	return registry
}

func testVariant(t *testing.T) contracts.Variant {
	t.Helper()
	return testRegistry(t).Primary()
}

func testEstimator(backend Backend, from ethcommon.Address) *Estimator {
	return NewEstimator(backend, from, EstimatorConfig{
		GasMarginPercent: 20,
		TipMarginPercent: 10,
		TipBumpWei:       1_000_000_000,
		FallbackFeeCap:   big.NewInt(50_000_000_000),
		Timeout:          2 * time.Second,
	}, logger.Nop())
}
