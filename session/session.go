// Package session assembles the per-account working set: cache, action
// registry, dedupe set, activity feed, and the goroutines that keep them
// current. Switching accounts tears the whole set down and builds a fresh
// one, so nothing leaks between accounts.
package session

import (
	"context"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/lowtide-labs/boatclient/activity"
	"github.com/lowtide-labs/boatclient/cache"
	"github.com/lowtide-labs/boatclient/chain"
	"github.com/lowtide-labs/boatclient/config"
	"github.com/lowtide-labs/boatclient/contracts"
	"github.com/lowtide-labs/boatclient/cooldown"
	"github.com/lowtide-labs/boatclient/db"
	clierrors "github.com/lowtide-labs/boatclient/errors"
	"github.com/lowtide-labs/boatclient/events"
	"github.com/lowtide-labs/boatclient/game"
	"github.com/lowtide-labs/boatclient/invalidation"
)

// Deps are the process-wide dependencies a Session borrows. They outlive
// any single session.
type Deps struct {
	Backend  chain.Backend
	Registry *contracts.Registry
	Database *db.DB // optional
	Config   *config.Config
	ChainID  *big.Int
	Logger   zerolog.Logger
}

// Session is the complete working set for one signing account.
type Session struct {
	account ethcommon.Address
	deps    Deps
	signer  chain.Signer
	logger  zerolog.Logger

	Cache     *cache.Cache
	Reader    *chain.Reader
	Actions   *chain.ActionRegistry
	Submitter *chain.Submitter
	Gate      *chain.AllowanceGate
	Dedup     *events.Deduplicator
	Watcher   *events.Watcher
	Bus       *invalidation.Bus
	Clock     *cooldown.Clock
	Activity  *activity.Log
}

// New builds a Session for the signer's account. Nothing starts running
// until Start.
func New(deps Deps, signer chain.Signer) *Session {
	account := signer.Address()
	log := deps.Logger.With().Str("account", account.Hex()).Logger()
	cfg := deps.Config

	s := &Session{
		account: account,
		deps:    deps,
		signer:  signer,
		logger:  log,
	}

	s.Cache = cache.New(log)
	s.Reader = chain.NewReader(deps.Backend, deps.Registry, s.Cache, cfg.ReadTimeout(), log)
	s.Actions = chain.NewActionRegistry(log)
	s.Bus = invalidation.NewBus(s.Cache, cfg.SecondaryDelay(), cfg.SweepInterval(), log)

	estimator := chain.NewEstimator(deps.Backend, account, chain.EstimatorConfig{
		GasMarginPercent: cfg.GasMarginPercent,
		TipMarginPercent: cfg.TipMarginPercent,
		TipBumpWei:       cfg.TipBumpWei,
		FallbackFeeCap:   cfg.FallbackFeeCap(),
		Timeout:          cfg.EstimateTimeout(),
	}, log)
	s.Submitter = chain.NewSubmitter(deps.Backend, signer, estimator, s.Actions, s.Bus, deps.ChainID, chain.SubmitterConfig{
		RetryGasIncrement: cfg.RetryGasIncrement,
		RetryGasFloor:     cfg.RetryGasFloor,
		ConfirmTimeout:    cfg.ConfirmTimeout(),
	}, log)
	s.Gate = chain.NewAllowanceGate(s.Reader, s.Submitter, s.Actions, cfg.ApprovalSentinelTokens, log)

	s.Clock = cooldown.NewClock(log)
	s.Activity = activity.New(account.Hex(), cfg.ActivityCapacity, deps.Database, log)
	s.Dedup = events.NewDeduplicator(deps.Registry, account, deps.Database, log)
	s.Watcher = events.NewWatcher(deps.Backend, deps.Registry, s.Dedup, deps.Database,
		s.handleEvent, cfg.EventPollInterval(), log)

	s.Bus.SetRefresh(s.refreshCooldowns)
	return s
}

// Account returns the session's account.
func (s *Session) Account() ethcommon.Address {
	return s.account
}

// VariantNames lists the configured game variants.
func (s *Session) VariantNames() []string {
	variants := s.deps.Registry.Variants()
	names := make([]string, 0, len(variants))
	for _, v := range variants {
		names = append(names, v.Name)
	}
	return names
}

// Start launches the watcher, the invalidation sweep, and the cooldown
// tick.
func (s *Session) Start(ctx context.Context) error {
	if err := s.Bus.Start(ctx); err != nil {
		return err
	}
	if err := s.Clock.Start(ctx); err != nil {
		return err
	}
	if err := s.Watcher.Start(ctx); err != nil {
		return err
	}
	s.logger.Info().Msg("session started")
	return nil
}

// Stop halts the session's goroutines.
func (s *Session) Stop() {
	s.Watcher.Stop()
	s.Clock.Stop()
	s.Bus.Stop()
	s.logger.Info().Msg("session stopped")
}

// handleEvent feeds one admitted record into the invalidation bus, the
// cooldown sources, and (for events concerning this account) the activity
// feed.
func (s *Session) handleEvent(rec *game.EventRecord) {
	s.Bus.OnEvent(rec)

	switch rec.Type {
	case game.EventBoatBurned, game.EventBoatDowngraded:
		// losing events carry no account topic; ownership reconciles on
		// the next cache read, the clock just stops tracking burned boats
		if rec.Type == game.EventBoatBurned {
			s.Clock.Drop(rec.ResourceID)
		}
		s.Activity.Record(*rec)
	default:
		if rec.Account == s.account {
			s.Activity.Record(*rec)
		}
	}
}

// refreshCooldowns re-primes the clock's (lastRunAt, duration) pairs from
// the reader. Runs after invalidation passes, never on the tick.
func (s *Session) refreshCooldowns() {
	ctx := context.Background()
	for _, variant := range s.deps.Registry.Variants() {
		boats, err := s.Reader.BoatsOf(ctx, variant, s.account)
		if err != nil {
			continue
		}
		duration, err := s.Reader.RunCooldown(ctx, variant)
		if err != nil {
			continue
		}
		for _, id := range boats {
			last, err := s.Reader.LastRunAt(ctx, variant, id)
			if err != nil {
				continue
			}
			s.Clock.SetSource(id, last, duration)
		}
	}
}

// BuyRaft spends stake tokens on a new raft. Returns (nil, pendingApprove,
// nil) when an approval has to confirm first.
func (s *Session) BuyRaft(ctx context.Context, variantName string) (*game.PendingAction, *game.PendingAction, error) {
	variant, ok := s.deps.Registry.Variant(variantName)
	if !ok {
		return nil, nil, clierrors.New(clierrors.KindInternal, "unknown variant "+variantName, nil)
	}

	price, err := s.Reader.RaftPrice(ctx, variant)
	if err != nil {
		return nil, nil, err
	}
	ready, pendingApprove, err := s.Gate.EnsureAllowance(ctx, variant, price)
	if err != nil {
		return nil, nil, err
	}
	if !ready {
		return nil, pendingApprove, nil
	}

	data, err := contracts.GameABI.Pack("buyRaft")
	if err != nil {
		return nil, nil, clierrors.New(clierrors.KindInternal, "pack buyRaft", err)
	}
	snapshot, _, err := s.Submitter.SubmitAsync(ctx, chain.Operation{
		Kind:    game.ActionBuyRaft,
		Variant: variant.Name,
		Amount:  price,
		To:      variant.GameAddr,
		Data:    data,
	})
	if err != nil {
		return nil, nil, err
	}
	return &snapshot, nil, nil
}

// Upgrade spends stake tokens to level a boat up.
func (s *Session) Upgrade(ctx context.Context, variantName string, tokenID uint64) (*game.PendingAction, *game.PendingAction, error) {
	variant, ok := s.deps.Registry.Variant(variantName)
	if !ok {
		return nil, nil, clierrors.New(clierrors.KindInternal, "unknown variant "+variantName, nil)
	}

	level, err := s.Reader.LevelOf(ctx, variant, tokenID)
	if err != nil {
		return nil, nil, err
	}
	cost, err := s.Reader.UpgradeCost(ctx, variant, level)
	if err != nil {
		return nil, nil, err
	}
	ready, pendingApprove, err := s.Gate.EnsureAllowance(ctx, variant, cost)
	if err != nil {
		return nil, nil, err
	}
	if !ready {
		return nil, pendingApprove, nil
	}

	data, err := contracts.GameABI.Pack("upgrade", new(big.Int).SetUint64(tokenID))
	if err != nil {
		return nil, nil, clierrors.New(clierrors.KindInternal, "pack upgrade", err)
	}
	snapshot, _, err := s.Submitter.SubmitAsync(ctx, chain.Operation{
		Kind:       game.ActionUpgrade,
		Variant:    variant.Name,
		ResourceID: tokenID,
		Amount:     cost,
		To:         variant.GameAddr,
		Data:       data,
	})
	if err != nil {
		return nil, nil, err
	}
	return &snapshot, nil, nil
}

// Run stakes native value on a boat run. Rejected locally while the boat's
// cooldown is still counting down.
func (s *Session) Run(ctx context.Context, variantName string, tokenID uint64, stake *big.Int) (*game.PendingAction, error) {
	variant, ok := s.deps.Registry.Variant(variantName)
	if !ok {
		return nil, clierrors.New(clierrors.KindInternal, "unknown variant "+variantName, nil)
	}
	if remaining := s.Clock.Remaining(tokenID); remaining > 0 {
		return nil, clierrors.New(clierrors.KindRevertCooldown,
			"cooldown active for "+remaining.String(), nil)
	}

	data, err := contracts.GameABI.Pack("run", new(big.Int).SetUint64(tokenID))
	if err != nil {
		return nil, clierrors.New(clierrors.KindInternal, "pack run", err)
	}
	snapshot, _, err := s.Submitter.SubmitAsync(ctx, chain.Operation{
		Kind:       game.ActionRun,
		Variant:    variant.Name,
		ResourceID: tokenID,
		Amount:     stake,
		To:         variant.GameAddr,
		Value:      stake,
		Data:       data,
	})
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}
