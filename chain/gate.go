package chain

import (
	"context"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/lowtide-labs/boatclient/contracts"
	clierrors "github.com/lowtide-labs/boatclient/errors"
	"github.com/lowtide-labs/boatclient/game"
)

// weiPerToken converts whole stake tokens to wei (18 decimals).
var weiPerToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// AllowanceGate decides whether a spend approval must precede an action and
// sequences the approval when it must. Approvals always grant the sentinel
// maximum rather than the exact amount, so varying stakes do not trigger
// repeated approvals.
type AllowanceGate struct {
	reader    *Reader
	submitter *Submitter
	actions   *ActionRegistry
	sentinel  *big.Int
	logger    zerolog.Logger
}

// NewAllowanceGate creates a gate granting sentinelTokens (whole tokens) on
// each approval.
func NewAllowanceGate(
	reader *Reader,
	submitter *Submitter,
	actions *ActionRegistry,
	sentinelTokens uint64,
	logger zerolog.Logger,
) *AllowanceGate {
	return &AllowanceGate{
		reader:    reader,
		submitter: submitter,
		actions:   actions,
		sentinel:  new(big.Int).Mul(new(big.Int).SetUint64(sentinelTokens), weiPerToken),
		logger:    logger.With().Str("component", "allowance_gate").Logger(),
	}
}

// EnsureAllowance reports whether the game contract may already spend
// required tokens for the signer. When it may not, a single approve action
// is started in the background (idempotently: a second call while one is
// pending returns the same pending action) and ready=false is returned; the
// caller re-invokes the original action once the approval confirms.
func (g *AllowanceGate) EnsureAllowance(ctx context.Context, variant contracts.Variant, required *big.Int) (ready bool, pending *game.PendingAction, err error) {
	owner := g.submitter.signer.Address()

	approved, err := g.reader.Allowance(ctx, variant, owner)
	if err != nil {
		return false, nil, err
	}
	if approved.Cmp(required) >= 0 {
		return true, nil, nil
	}

	// an in-flight approval is reused, never duplicated
	if existing, ok := g.actions.Get(owner, 0, game.ActionApprove); ok && !existing.Status.Terminal() {
		return false, &existing, nil
	}

	token, err := g.reader.TokenAddress(ctx, variant)
	if err != nil {
		return false, nil, err
	}
	data, err := contracts.TokenABI.Pack("approve", variant.GameAddr, g.sentinel)
	if err != nil {
		return false, nil, clierrors.New(clierrors.KindInternal, "pack approve", err)
	}

	snapshot, _, err := g.submitter.SubmitAsync(ctx, Operation{
		Kind:    game.ActionApprove,
		Variant: variant.Name,
		Amount:  g.sentinel,
		To:      token,
		Data:    data,
	})
	if err != nil {
		return false, nil, err
	}

	g.logger.Info().
		Str("variant", variant.Name).
		Str("required", required.String()).
		Str("granted", g.sentinel.String()).
		Msg("approval required, submitting sentinel approval")
	return false, &snapshot, nil
}

// Sentinel returns the approval amount granted by this gate, in wei.
func (g *AllowanceGate) Sentinel() *big.Int {
	return new(big.Int).Set(g.sentinel)
}
