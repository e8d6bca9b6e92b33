package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/lowtide-labs/boatclient/cache"
	"github.com/lowtide-labs/boatclient/contracts"
	clierrors "github.com/lowtide-labs/boatclient/errors"
	"github.com/lowtide-labs/boatclient/game"
)

// Reader answers read-only queries against the ledger, backed by the shared
// cache. A fresh cache hit never touches the RPC; a transport failure
// surfaces the stale cached value rather than an error.
type Reader struct {
	backend  Backend
	registry *contracts.Registry
	cache    *cache.Cache
	timeout  time.Duration
	logger   zerolog.Logger

	mu         sync.Mutex
	tokenAddrs map[string]ethcommon.Address // variant name -> resolved stake token
}

// NewReader creates a Reader with the given read timeout.
func NewReader(
	backend Backend,
	registry *contracts.Registry,
	readCache *cache.Cache,
	timeout time.Duration,
	logger zerolog.Logger,
) *Reader {
	return &Reader{
		backend:    backend,
		registry:   registry,
		cache:      readCache,
		timeout:    timeout,
		tokenAddrs: make(map[string]ethcommon.Address),
		logger:     logger.With().Str("component", "reader").Logger(),
	}
}

// call packs a method call, executes it with a bounded timeout, and unpacks
// the results.
func (r *Reader) call(ctx context.Context, to ethcommon.Address, contractABI interface {
	Pack(name string, args ...any) ([]byte, error)
	Unpack(name string, data []byte) ([]any, error)
}, method string, args ...any) ([]any, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, clierrors.New(clierrors.KindInternal, fmt.Sprintf("pack %s", method), err)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.backend.CallContract(callCtx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, clierrors.New(clierrors.KindTransport, fmt.Sprintf("call %s", method), err)
	}
	return contractABI.Unpack(method, out)
}

// cached runs loader under key. Fresh hit: returned as-is, no RPC. Stale or
// absent: loader runs; on transport failure the stale value (if any) is
// returned instead of the error.
func (r *Reader) cached(ctx context.Context, key string, loader func(ctx context.Context) (any, error)) (any, error) {
	prev, ok, stale := r.cache.Get(key)
	if ok && !stale {
		return prev, nil
	}

	value, err := loader(ctx)
	if err != nil {
		if ok {
			r.logger.Warn().Err(err).Str("key", key).Msg("read failed, serving stale value")
			return prev, nil
		}
		return nil, err
	}

	r.cache.Put(key, value)
	return value, nil
}

// TokenAddress resolves the stake token for a variant, reading the game
// contract's BOAT() pointer when the config leaves it unset.
func (r *Reader) TokenAddress(ctx context.Context, variant contracts.Variant) (ethcommon.Address, error) {
	if variant.TokenAddr != (ethcommon.Address{}) {
		return variant.TokenAddr, nil
	}

	r.mu.Lock()
	addr, ok := r.tokenAddrs[variant.Name]
	r.mu.Unlock()
	if ok {
		return addr, nil
	}

	out, err := r.call(ctx, variant.GameAddr, contracts.GameABI, "BOAT")
	if err != nil {
		return ethcommon.Address{}, err
	}
	addr, _ = out[0].(ethcommon.Address)

	r.mu.Lock()
	r.tokenAddrs[variant.Name] = addr
	r.mu.Unlock()
	return addr, nil
}

// TokenBalance returns the account's stake-token balance.
func (r *Reader) TokenBalance(ctx context.Context, variant contracts.Variant, account ethcommon.Address) (*big.Int, error) {
	key := cache.Key(game.KeyTokenBalance, variant.Name, account.Hex())
	v, err := r.cached(ctx, key, func(ctx context.Context) (any, error) {
		token, err := r.TokenAddress(ctx, variant)
		if err != nil {
			return nil, err
		}
		out, err := r.call(ctx, token, contracts.TokenABI, "balanceOf", account)
		if err != nil {
			return nil, err
		}
		return out[0].(*big.Int), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*big.Int), nil
}

// Allowance returns the amount the game contract may spend of the owner's
// stake tokens.
func (r *Reader) Allowance(ctx context.Context, variant contracts.Variant, owner ethcommon.Address) (*big.Int, error) {
	key := cache.Key(game.KeyAllowance, variant.Name, owner.Hex(), variant.GameAddr.Hex())
	v, err := r.cached(ctx, key, func(ctx context.Context) (any, error) {
		token, err := r.TokenAddress(ctx, variant)
		if err != nil {
			return nil, err
		}
		out, err := r.call(ctx, token, contracts.TokenABI, "allowance", owner, variant.GameAddr)
		if err != nil {
			return nil, err
		}
		return out[0].(*big.Int), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*big.Int), nil
}

// BoatCount returns how many boats the account owns.
func (r *Reader) BoatCount(ctx context.Context, variant contracts.Variant, account ethcommon.Address) (uint64, error) {
	key := cache.Key(game.KeyBoatCount, variant.Name, account.Hex())
	v, err := r.cached(ctx, key, func(ctx context.Context) (any, error) {
		out, err := r.call(ctx, variant.NFTAddr, contracts.NFTABI, "balanceOf", account)
		if err != nil {
			return nil, err
		}
		return out[0].(*big.Int).Uint64(), nil
	})
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}

// BoatsOf returns the token ids the account owns.
func (r *Reader) BoatsOf(ctx context.Context, variant contracts.Variant, account ethcommon.Address) ([]uint64, error) {
	key := cache.Key(game.KeyOwnership, variant.Name, account.Hex())
	v, err := r.cached(ctx, key, func(ctx context.Context) (any, error) {
		out, err := r.call(ctx, variant.NFTAddr, contracts.NFTABI, "walletOfOwner", account)
		if err != nil {
			return nil, err
		}
		raw, _ := out[0].([]*big.Int)
		ids := make([]uint64, 0, len(raw))
		for _, id := range raw {
			ids = append(ids, id.Uint64())
		}
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]uint64), nil
}

// LevelOf returns a boat's current level.
func (r *Reader) LevelOf(ctx context.Context, variant contracts.Variant, tokenID uint64) (uint8, error) {
	key := cache.Key(game.KeyLevels, variant.Name, fmt.Sprintf("%d", tokenID))
	v, err := r.cached(ctx, key, func(ctx context.Context) (any, error) {
		out, err := r.call(ctx, variant.NFTAddr, contracts.NFTABI, "levelOf", new(big.Int).SetUint64(tokenID))
		if err != nil {
			return nil, err
		}
		return out[0].(uint8), nil
	})
	if err != nil {
		return 0, err
	}
	return v.(uint8), nil
}

// LastRunAt returns the unix timestamp of a boat's last run, 0 if it never
// ran.
func (r *Reader) LastRunAt(ctx context.Context, variant contracts.Variant, tokenID uint64) (uint64, error) {
	key := cache.Key(game.KeyCooldown, variant.Name, "last", fmt.Sprintf("%d", tokenID))
	v, err := r.cached(ctx, key, func(ctx context.Context) (any, error) {
		out, err := r.call(ctx, variant.GameAddr, contracts.GameABI, "lastRunAt", new(big.Int).SetUint64(tokenID))
		if err != nil {
			return nil, err
		}
		return out[0].(*big.Int).Uint64(), nil
	})
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}

// RunCooldown returns the game-wide cooldown duration in seconds.
func (r *Reader) RunCooldown(ctx context.Context, variant contracts.Variant) (uint64, error) {
	key := cache.Key(game.KeyCooldown, variant.Name, "duration")
	v, err := r.cached(ctx, key, func(ctx context.Context) (any, error) {
		out, err := r.call(ctx, variant.GameAddr, contracts.GameABI, "runCooldown")
		if err != nil {
			return nil, err
		}
		return out[0].(*big.Int).Uint64(), nil
	})
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}

// RaftPrice returns the cost of a new raft in stake tokens.
func (r *Reader) RaftPrice(ctx context.Context, variant contracts.Variant) (*big.Int, error) {
	key := cache.Key(game.KeyCosts, variant.Name, "raft")
	v, err := r.cached(ctx, key, func(ctx context.Context) (any, error) {
		out, err := r.call(ctx, variant.GameAddr, contracts.GameABI, "buyRaftCost")
		if err != nil {
			return nil, err
		}
		return out[0].(*big.Int), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*big.Int), nil
}

// UpgradeCost returns the cost of upgrading from the given level.
func (r *Reader) UpgradeCost(ctx context.Context, variant contracts.Variant, fromLevel uint8) (*big.Int, error) {
	key := cache.Key(game.KeyCosts, variant.Name, "upgrade", fmt.Sprintf("%d", fromLevel))
	v, err := r.cached(ctx, key, func(ctx context.Context) (any, error) {
		out, err := r.call(ctx, variant.GameAddr, contracts.GameABI, "upgradeCost", fromLevel)
		if err != nil {
			return nil, err
		}
		return out[0].(*big.Int), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*big.Int), nil
}

// PoolBalance returns the reward pool's current balance.
func (r *Reader) PoolBalance(ctx context.Context, variant contracts.Variant) (*big.Int, error) {
	key := cache.Key(game.KeyPoolBalance, variant.Name)
	v, err := r.cached(ctx, key, func(ctx context.Context) (any, error) {
		out, err := r.call(ctx, variant.GameAddr, contracts.GameABI, "poolBalance")
		if err != nil {
			return nil, err
		}
		return out[0].(*big.Int), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*big.Int), nil
}

// Stats returns the account's lifetime run and win counters.
func (r *Reader) Stats(ctx context.Context, variant contracts.Variant, account ethcommon.Address) (runs, wins uint64, err error) {
	key := cache.Key(game.KeyStats, variant.Name, account.Hex())
	v, err := r.cached(ctx, key, func(ctx context.Context) (any, error) {
		out, err := r.call(ctx, variant.GameAddr, contracts.GameABI, "stats", account)
		if err != nil {
			return nil, err
		}
		return [2]uint64{out[0].(*big.Int).Uint64(), out[1].(*big.Int).Uint64()}, nil
	})
	if err != nil {
		return 0, 0, err
	}
	pair := v.([2]uint64)
	return pair[0], pair[1], nil
}
