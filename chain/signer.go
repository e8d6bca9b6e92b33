package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	clierrors "github.com/lowtide-labs/boatclient/errors"
)

// Signer produces signed transactions for the active account. A signer may
// decline a request (hardware wallet, interactive prompt); the submitter
// maps that to the user-rejected kind and never retries.
type Signer interface {
	Address() ethcommon.Address
	SignTx(ctx context.Context, tx *types.Transaction) (*types.Transaction, error)
}

// LocalSigner signs with an in-process secp256k1 key. It never declines.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address ethcommon.Address
	signer  types.Signer
}

// NewLocalSigner builds a LocalSigner from a hex-encoded private key.
func NewLocalSigner(hexKey string, chainID *big.Int) (*LocalSigner, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, clierrors.New(clierrors.KindInternal, "invalid private key", err)
	}
	return &LocalSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(chainID),
	}, nil
}

func (s *LocalSigner) Address() ethcommon.Address {
	return s.address
}

func (s *LocalSigner) SignTx(_ context.Context, tx *types.Transaction) (*types.Transaction, error) {
	return types.SignTx(tx, s.signer, s.key)
}
