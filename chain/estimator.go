package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/lowtide-labs/boatclient/game"
)

// Operation is one prepared contract call awaiting submission.
type Operation struct {
	Kind       game.ActionKind
	Variant    string // game variant name
	ResourceID uint64
	Amount     *big.Int // approval amount or run stake; informational
	To         ethcommon.Address
	Value      *big.Int // native value attached (run stake)
	Data       []byte
}

// EstimatorConfig carries the fee margins and fallback budgets.
type EstimatorConfig struct {
	GasMarginPercent int
	TipMarginPercent int
	TipBumpWei       uint64
	FallbackFeeCap   *big.Int
	Timeout          time.Duration
}

// fallbackGasLimits is the static per-kind budget used when simulation
// fails. Values are generous for the game contracts' code paths.
var fallbackGasLimits = map[game.ActionKind]uint64{
	game.ActionApprove: 60_000,
	game.ActionBuyRaft: 250_000,
	game.ActionUpgrade: 200_000,
	game.ActionRun:     300_000,
}

// Estimator computes a TransactionPlan for a pending operation: one
// best-effort simulation with a safety margin, falling back to the static
// table. Retry on shortfall is the submitter's job, not the estimator's.
type Estimator struct {
	backend Backend
	from    ethcommon.Address
	cfg     EstimatorConfig
	logger  zerolog.Logger
}

// NewEstimator creates an Estimator for the given sender.
func NewEstimator(backend Backend, from ethcommon.Address, cfg EstimatorConfig, logger zerolog.Logger) *Estimator {
	return &Estimator{
		backend: backend,
		from:    from,
		cfg:     cfg,
		logger:  logger.With().Str("component", "estimator").Logger(),
	}
}

// Estimate never returns an error: estimation failure is absorbed by the
// fallback plan, per the recovery policy.
func (e *Estimator) Estimate(ctx context.Context, op Operation) game.TransactionPlan {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	msg := ethereum.CallMsg{
		From:  e.from,
		To:    &op.To,
		Value: op.Value,
		Data:  op.Data,
	}

	gas, err := e.backend.EstimateGas(callCtx, msg)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("kind", string(op.Kind)).
			Msg("gas estimation failed, using fallback budget")
		return e.fallbackPlan(callCtx, op.Kind)
	}

	tip, err := e.backend.SuggestGasTipCap(callCtx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("tip query failed, using fallback fees")
		plan := e.fallbackPlan(callCtx, op.Kind)
		plan.GasLimit = e.withGasMargin(gas)
		return plan
	}

	head, err := e.backend.HeaderByNumber(callCtx, nil)
	if err != nil || head.BaseFee == nil {
		plan := e.fallbackPlan(callCtx, op.Kind)
		plan.GasLimit = e.withGasMargin(gas)
		plan.GasTipCap = e.withTipMargin(tip)
		return plan
	}

	boostedTip := e.withTipMargin(tip)
	feeCap := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	feeCap.Add(feeCap, boostedTip)

	return game.TransactionPlan{
		GasLimit:  e.withGasMargin(gas),
		GasTipCap: boostedTip,
		GasFeeCap: feeCap,
		Source:    game.PlanEstimated,
	}
}

// FallbackGasLimit exposes the static budget for a kind (used by the
// submitter's retry floor reasoning and by tests).
func FallbackGasLimit(kind game.ActionKind) uint64 {
	return fallbackGasLimits[kind]
}

func (e *Estimator) withGasMargin(gas uint64) uint64 {
	return gas * uint64(100+e.cfg.GasMarginPercent) / 100
}

func (e *Estimator) withTipMargin(tip *big.Int) *big.Int {
	boosted := new(big.Int).Mul(tip, big.NewInt(int64(100+e.cfg.TipMarginPercent)))
	boosted.Div(boosted, big.NewInt(100))
	boosted.Add(boosted, new(big.Int).SetUint64(e.cfg.TipBumpWei))
	return boosted
}

// fallbackPlan builds the static per-kind plan. The fee cap tries the
// current base fee first and falls back to the configured cap when even the
// header read fails.
func (e *Estimator) fallbackPlan(ctx context.Context, kind game.ActionKind) game.TransactionPlan {
	tip := new(big.Int).SetUint64(e.cfg.TipBumpWei)
	feeCap := e.cfg.FallbackFeeCap

	if head, err := e.backend.HeaderByNumber(ctx, nil); err == nil && head.BaseFee != nil {
		feeCap = new(big.Int).Mul(head.BaseFee, big.NewInt(2))
		feeCap.Add(feeCap, tip)
	}

	return game.TransactionPlan{
		GasLimit:  fallbackGasLimits[kind],
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Source:    game.PlanFallback,
	}
}
