package contracts

import (
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lowtide-labs/boatclient/config"
	"github.com/lowtide-labs/boatclient/game"
)

// runEventNames maps a variant name to the event its run operation emits.
// The parameter layout is identical across variants; only the name (and so
// the topic hash) differs.
var runEventNames = map[string]string{
	"BOAT":   "RunResult",
	"JOINT":  "JointRun",
	"LIZARD": "LIZARDRun",
	"LSD":    "LSDRun",
}

const runEventParams = "(address,uint256,uint8,uint256,bool,uint256)"

// Variant is one deployed game contract set.
type Variant struct {
	Name      string
	GameAddr  ethcommon.Address
	TokenAddr ethcommon.Address
	NFTAddr   ethcommon.Address
}

// classification is what a (contract, topic0) pair normalizes to.
type classification struct {
	eventType   game.EventType
	sourceToken string
}

// Registry normalizes raw logs across contract variants. Adding a new
// variant is a config edit; the topic table is derived, not hand-written.
type Registry struct {
	variants []Variant
	byTopic  map[ethcommon.Address]map[ethcommon.Hash]classification
}

// NewRegistry builds the normalization table from the configured variants.
func NewRegistry(games []config.GameContracts) (*Registry, error) {
	r := &Registry{
		byTopic: make(map[ethcommon.Address]map[ethcommon.Hash]classification),
	}

	for _, g := range games {
		if !ethcommon.IsHexAddress(g.GameAddress) {
			return nil, fmt.Errorf("variant %s: invalid game address %q", g.Name, g.GameAddress)
		}
		v := Variant{
			Name:     g.Name,
			GameAddr: ethcommon.HexToAddress(g.GameAddress),
		}
		if g.TokenAddress != "" {
			v.TokenAddr = ethcommon.HexToAddress(g.TokenAddress)
		}
		if g.NFTAddress != "" {
			v.NFTAddr = ethcommon.HexToAddress(g.NFTAddress)
		}
		r.variants = append(r.variants, v)

		topics := make(map[ethcommon.Hash]classification)

		runName, ok := runEventNames[g.Name]
		if !ok {
			// unknown variants fall back to the canonical name
			runName = "RunResult"
		}
		topics[crypto.Keccak256Hash([]byte(runName+runEventParams))] = classification{game.EventRunResult, g.Name}

		topics[GameABI.Events["BoatBurned"].ID] = classification{game.EventBoatBurned, g.Name}
		topics[GameABI.Events["BoatDowngraded"].ID] = classification{game.EventBoatDowngraded, g.Name}
		topics[GameABI.Events["RaftSpawned"].ID] = classification{game.EventRaftSpawned, g.Name}
		topics[GameABI.Events["RaftBought"].ID] = classification{game.EventRaftBought, g.Name}
		topics[GameABI.Events["Upgraded"].ID] = classification{game.EventBoatUpgraded, g.Name}

		r.byTopic[v.GameAddr] = topics
	}

	if len(r.variants) == 0 {
		return nil, fmt.Errorf("no game variants configured")
	}
	return r, nil
}

// Normalize maps a (contract, topic0) pair to its canonical event type and
// source token tag. Returns false for logs from unknown contracts or with
// unknown topics.
func (r *Registry) Normalize(addr ethcommon.Address, topic0 ethcommon.Hash) (game.EventType, string, bool) {
	topics, ok := r.byTopic[addr]
	if !ok {
		return "", "", false
	}
	c, ok := topics[topic0]
	if !ok {
		return "", "", false
	}
	return c.eventType, c.sourceToken, true
}

// WatchAddresses returns every game contract address the watcher filters on.
func (r *Registry) WatchAddresses() []ethcommon.Address {
	out := make([]ethcommon.Address, 0, len(r.variants))
	for _, v := range r.variants {
		out = append(out, v.GameAddr)
	}
	return out
}

// Variants returns the configured contract sets.
func (r *Registry) Variants() []Variant {
	return r.variants
}

// Primary returns the first configured variant.
func (r *Registry) Primary() Variant {
	return r.variants[0]
}

// Variant returns the contract set for the named variant, or false.
func (r *Registry) Variant(name string) (Variant, bool) {
	for _, v := range r.variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}
