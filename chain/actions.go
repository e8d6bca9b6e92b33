package chain

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	clierrors "github.com/lowtide-labs/boatclient/errors"
	"github.com/lowtide-labs/boatclient/game"
)

type actionKey struct {
	account  ethcommon.Address
	resource uint64
	kind     game.ActionKind
}

// validTransitions encodes the strict per-action ordering. Failed is
// reachable from every non-terminal state and handled separately.
var validTransitions = map[game.ActionStatus]game.ActionStatus{
	game.StatusIdle:              game.StatusEstimating,
	game.StatusEstimating:        game.StatusAwaitingSignature,
	game.StatusAwaitingSignature: game.StatusSubmitted,
	game.StatusSubmitted:         game.StatusConfirming,
	game.StatusConfirming:        game.StatusConfirmed,
}

// ActionRegistry owns every PendingAction of the session and enforces the
// one-non-terminal-action-per-tuple invariant. All mutation happens under
// its lock; reads hand out copies.
type ActionRegistry struct {
	mu      sync.Mutex
	actions map[actionKey]*game.PendingAction
	logger  zerolog.Logger
}

// NewActionRegistry creates an empty registry.
func NewActionRegistry(logger zerolog.Logger) *ActionRegistry {
	return &ActionRegistry{
		actions: make(map[actionKey]*game.PendingAction),
		logger:  logger.With().Str("component", "actions").Logger(),
	}
}

// Begin registers a new PendingAction for the tuple. A second request while
// an action for the same tuple is non-terminal is rejected without touching
// the first.
func (r *ActionRegistry) Begin(account ethcommon.Address, resource uint64, kind game.ActionKind, amount *big.Int) (*game.PendingAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := actionKey{account, resource, kind}
	if existing, ok := r.actions[key]; ok && !existing.Status.Terminal() {
		return nil, clierrors.New(clierrors.KindDuplicateAction,
			fmt.Sprintf("%s for resource %d already %s", kind, resource, existing.Status), nil)
	}

	now := time.Now()
	act := &game.PendingAction{
		Kind:       kind,
		Account:    account,
		ResourceID: resource,
		Amount:     amount,
		Status:     game.StatusIdle,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.actions[key] = act
	return act, nil
}

// Transition advances an action to the next status. Skipping states is a
// programming error and rejected.
func (r *ActionRegistry) Transition(act *game.PendingAction, next game.ActionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if validTransitions[act.Status] != next {
		return clierrors.New(clierrors.KindInternal,
			fmt.Sprintf("invalid transition %s -> %s", act.Status, next), nil)
	}
	act.Status = next
	act.UpdatedAt = time.Now()

	r.logger.Debug().
		Str("kind", string(act.Kind)).
		Uint64("resource", act.ResourceID).
		Str("status", string(next)).
		Msg("action transitioned")
	return nil
}

// Fail moves an action to failed with a stable error kind. No-op on
// terminal actions.
func (r *ActionRegistry) Fail(act *game.PendingAction, kind clierrors.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if act.Status.Terminal() {
		return
	}
	act.Status = game.StatusFailed
	act.ErrKind = string(kind)
	act.UpdatedAt = time.Now()

	r.logger.Info().
		Str("kind", string(act.Kind)).
		Uint64("resource", act.ResourceID).
		Str("err_kind", string(kind)).
		Msg("action failed")
}

// SetTxHash records the submitted transaction hash.
func (r *ActionRegistry) SetTxHash(act *game.PendingAction, hash ethcommon.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	act.TxHash = hash
	act.UpdatedAt = time.Now()
}

// Get returns a copy of the action for the tuple.
func (r *ActionRegistry) Get(account ethcommon.Address, resource uint64, kind game.ActionKind) (game.PendingAction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	act, ok := r.actions[actionKey{account, resource, kind}]
	if !ok {
		return game.PendingAction{}, false
	}
	return *act, true
}

// List returns copies of every action for the account, unordered.
func (r *ActionRegistry) List(account ethcommon.Address) []game.PendingAction {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]game.PendingAction, 0, len(r.actions))
	for key, act := range r.actions {
		if key.account == account {
			out = append(out, *act)
		}
	}
	return out
}

// Snapshot returns a copy of the given action's current state.
func (r *ActionRegistry) Snapshot(act *game.PendingAction) game.PendingAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *act
}
