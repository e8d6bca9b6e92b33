package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	clierrors "github.com/lowtide-labs/boatclient/errors"
	"github.com/lowtide-labs/boatclient/game"
	"github.com/lowtide-labs/boatclient/metrics"
)

// InvalidationNotifier receives confirmed-action notifications so dependent
// cache keys are staled before the confirmed status is published.
type InvalidationNotifier interface {
	OnActionConfirmed(kind game.ActionKind)
}

// SubmitterConfig carries the retry policy and confirmation bounds.
type SubmitterConfig struct {
	RetryGasIncrement uint64
	RetryGasFloor     uint64
	ConfirmTimeout    time.Duration
	ReceiptInterval   time.Duration // receipt polling cadence; default 2s
}

// Submitter drives a PendingAction through its lifecycle: estimate, sign,
// submit (with exactly one widened-budget retry on gas shortfall), and
// confirmation.
type Submitter struct {
	backend   Backend
	signer    Signer
	estimator *Estimator
	actions   *ActionRegistry
	notifier  InvalidationNotifier
	chainID   *big.Int
	cfg       SubmitterConfig
	logger    zerolog.Logger
}

// NewSubmitter creates a Submitter. notifier may be nil in tests.
func NewSubmitter(
	backend Backend,
	signer Signer,
	estimator *Estimator,
	actions *ActionRegistry,
	notifier InvalidationNotifier,
	chainID *big.Int,
	cfg SubmitterConfig,
	logger zerolog.Logger,
) *Submitter {
	if cfg.ReceiptInterval == 0 {
		cfg.ReceiptInterval = 2 * time.Second
	}
	return &Submitter{
		backend:   backend,
		signer:    signer,
		estimator: estimator,
		actions:   actions,
		notifier:  notifier,
		chainID:   chainID,
		cfg:       cfg,
		logger:    logger.With().Str("component", "submitter").Logger(),
	}
}

// Submit runs the full lifecycle for one operation and returns the terminal
// action state. The returned error carries a stable kind on failure.
func (s *Submitter) Submit(ctx context.Context, op Operation) (game.PendingAction, error) {
	act, err := s.actions.Begin(s.signer.Address(), op.ResourceID, op.Kind, op.Amount)
	if err != nil {
		return game.PendingAction{}, err
	}
	return s.run(ctx, act, op)
}

// SubmitAsync registers the action synchronously (so duplicate triggers are
// rejected immediately) and drives the lifecycle in the background. The
// done channel delivers the terminal state; progress is observable through
// the action registry.
func (s *Submitter) SubmitAsync(ctx context.Context, op Operation) (game.PendingAction, <-chan game.PendingAction, error) {
	act, err := s.actions.Begin(s.signer.Address(), op.ResourceID, op.Kind, op.Amount)
	if err != nil {
		return game.PendingAction{}, nil, err
	}
	done := make(chan game.PendingAction, 1)
	go func() {
		final, runErr := s.run(ctx, act, op)
		if runErr != nil {
			s.logger.Debug().Err(runErr).Str("kind", string(op.Kind)).Msg("async submission finished with error")
		}
		done <- final
	}()
	return s.actions.Snapshot(act), done, nil
}

func (s *Submitter) run(ctx context.Context, act *game.PendingAction, op Operation) (game.PendingAction, error) {
	metrics.ActionsSubmitted.WithLabelValues(string(op.Kind)).Inc()

	if err := s.actions.Transition(act, game.StatusEstimating); err != nil {
		s.actions.Fail(act, clierrors.KindInternal)
		return s.actions.Snapshot(act), err
	}
	plan := s.estimator.Estimate(ctx, op)

	nonce, err := s.backend.PendingNonceAt(ctx, s.signer.Address())
	if err != nil {
		err = clierrors.New(clierrors.KindTransport, "nonce query failed", err)
		s.actions.Fail(act, clierrors.KindTransport)
		return s.actions.Snapshot(act), err
	}

	if err := s.actions.Transition(act, game.StatusAwaitingSignature); err != nil {
		s.actions.Fail(act, clierrors.KindInternal)
		return s.actions.Snapshot(act), err
	}

	signed, err := s.signTx(ctx, op, plan, nonce)
	if err != nil {
		if clierrors.IsUserRejection(err) {
			s.actions.Fail(act, clierrors.KindUserRejected)
			return s.actions.Snapshot(act), clierrors.New(clierrors.KindUserRejected, "signature declined", err)
		}
		s.actions.Fail(act, clierrors.KindInternal)
		return s.actions.Snapshot(act), clierrors.New(clierrors.KindInternal, "signing failed", err)
	}

	if err := s.actions.Transition(act, game.StatusSubmitted); err != nil {
		s.actions.Fail(act, clierrors.KindInternal)
		return s.actions.Snapshot(act), err
	}

	sendErr := s.backend.SendTransaction(ctx, signed)
	if sendErr != nil && clierrors.IsBudgetShortfall(sendErr) {
		// Exactly one retry with a widened budget. The retry budget is
		// strictly greater than the first attempt's.
		retryPlan := s.widenPlan(plan)
		metrics.SubmitRetries.Inc()
		s.logger.Warn().
			Err(sendErr).
			Uint64("first_gas", plan.GasLimit).
			Uint64("retry_gas", retryPlan.GasLimit).
			Msg("budget shortfall, retrying with widened budget")

		signed, err = s.signTx(ctx, op, retryPlan, nonce)
		if err != nil {
			if clierrors.IsUserRejection(err) {
				s.actions.Fail(act, clierrors.KindUserRejected)
				return s.actions.Snapshot(act), clierrors.New(clierrors.KindUserRejected, "signature declined", err)
			}
			s.actions.Fail(act, clierrors.KindInternal)
			return s.actions.Snapshot(act), clierrors.New(clierrors.KindInternal, "signing failed", err)
		}
		sendErr = s.backend.SendTransaction(ctx, signed)
	}
	if sendErr != nil {
		kind := s.classifySendError(sendErr)
		s.actions.Fail(act, kind)
		metrics.ActionsFailed.WithLabelValues(string(op.Kind), string(kind)).Inc()
		return s.actions.Snapshot(act), clierrors.New(kind, "submission failed", sendErr)
	}

	s.actions.SetTxHash(act, signed.Hash())

	if err := s.actions.Transition(act, game.StatusConfirming); err != nil {
		s.actions.Fail(act, clierrors.KindInternal)
		return s.actions.Snapshot(act), err
	}

	receipt, err := s.awaitReceipt(ctx, signed)
	if err != nil {
		s.actions.Fail(act, clierrors.KindTransport)
		metrics.ActionsFailed.WithLabelValues(string(op.Kind), string(clierrors.KindTransport)).Inc()
		return s.actions.Snapshot(act), err
	}

	if receipt.Status == types.ReceiptStatusFailed {
		kind := s.classifyRevert(ctx, op, signed, receipt)
		s.actions.Fail(act, kind)
		metrics.ActionsFailed.WithLabelValues(string(op.Kind), string(kind)).Inc()
		return s.actions.Snapshot(act), clierrors.New(kind, "execution reverted", nil)
	}

	// Invalidate dependent reads before publishing confirmed, so callers
	// observing the transition never see stale values as fresh.
	if s.notifier != nil {
		s.notifier.OnActionConfirmed(op.Kind)
	}
	if err := s.actions.Transition(act, game.StatusConfirmed); err != nil {
		return s.actions.Snapshot(act), err
	}
	metrics.ActionsConfirmed.WithLabelValues(string(op.Kind)).Inc()

	s.logger.Info().
		Str("kind", string(op.Kind)).
		Uint64("resource", op.ResourceID).
		Str("tx_hash", signed.Hash().Hex()).
		Str("plan_source", string(plan.Source)).
		Msg("action confirmed")
	return s.actions.Snapshot(act), nil
}

// widenPlan computes the retry budget: first + increment, lifted to the
// configured floor when the first plan came from the fallback table. Always
// strictly greater than the first budget.
func (s *Submitter) widenPlan(first game.TransactionPlan) game.TransactionPlan {
	retry := first
	retry.GasLimit = first.GasLimit + s.cfg.RetryGasIncrement
	if first.Source == game.PlanFallback && s.cfg.RetryGasFloor > retry.GasLimit {
		retry.GasLimit = s.cfg.RetryGasFloor
	}
	return retry
}

func (s *Submitter) signTx(ctx context.Context, op Operation, plan game.TransactionPlan, nonce uint64) (*types.Transaction, error) {
	value := op.Value
	if value == nil {
		value = new(big.Int)
	}
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.chainID,
		Nonce:     nonce,
		GasTipCap: plan.GasTipCap,
		GasFeeCap: plan.GasFeeCap,
		Gas:       plan.GasLimit,
		To:        &op.To,
		Value:     value,
		Data:      op.Data,
	})
	return s.signer.SignTx(ctx, tx)
}

func (s *Submitter) awaitReceipt(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(s.cfg.ReceiptInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.backend.TransactionReceipt(waitCtx, tx.Hash())
		if err == nil && receipt != nil {
			return receipt, nil
		}

		select {
		case <-waitCtx.Done():
			return nil, clierrors.New(clierrors.KindTransport, "confirmation wait exceeded", waitCtx.Err())
		case <-ticker.C:
		}
	}
}

// classifySendError maps an RPC submission error onto the taxonomy. Budget
// shortfalls reaching this point already consumed their one retry.
func (s *Submitter) classifySendError(err error) clierrors.Kind {
	if clierrors.IsBudgetShortfall(err) {
		return clierrors.KindBudgetShortfall
	}
	if clierrors.IsUserRejection(err) {
		return clierrors.KindUserRejected
	}
	return clierrors.ClassifyRevert(err.Error())
}

// classifyRevert replays the call at the receipt's block to recover the
// revert reason string, then maps it onto the taxonomy.
func (s *Submitter) classifyRevert(ctx context.Context, op Operation, tx *types.Transaction, receipt *types.Receipt) clierrors.Kind {
	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	msg := ethereum.CallMsg{
		From:  s.signer.Address(),
		To:    tx.To(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}
	_, err := s.backend.CallContract(callCtx, msg, receipt.BlockNumber)
	if err == nil {
		// replay succeeded; reason unrecoverable
		return clierrors.KindRevertUnknown
	}
	return clierrors.ClassifyRevert(err.Error())
}
