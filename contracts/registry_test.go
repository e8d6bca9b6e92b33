package contracts

import (
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowtide-labs/boatclient/config"
	"github.com/lowtide-labs/boatclient/game"
)

var testGames = []config.GameContracts{
	{Name: "BOAT", GameAddress: "0xab004722930Dd89C3698C73658FE803e8632fdF3"},
	{Name: "JOINT", GameAddress: "0x32aF310fA33520ffB91bF8DC73251F0244Efca2C"},
}

func TestNewRegistryValidation(t *testing.T) {
	_, err := NewRegistry(nil)
	require.Error(t, err)

	_, err = NewRegistry([]config.GameContracts{{Name: "BOAT", GameAddress: "not-an-address"}})
	require.Error(t, err)
}

func TestNormalizeCanonicalEvents(t *testing.T) {
	r, err := NewRegistry(testGames)
	require.NoError(t, err)

	boat := ethcommon.HexToAddress(testGames[0].GameAddress)

	et, token, ok := r.Normalize(boat, GameABI.Events["BoatBurned"].ID)
	require.True(t, ok)
	assert.Equal(t, game.EventBoatBurned, et)
	assert.Equal(t, "BOAT", token)

	et, _, ok = r.Normalize(boat, GameABI.Events["RaftBought"].ID)
	require.True(t, ok)
	assert.Equal(t, game.EventRaftBought, et)
}

// Run events carry a variant-specific name but normalize to the same type
// with the variant's token tag.
func TestNormalizeRunEventVariants(t *testing.T) {
	r, err := NewRegistry(testGames)
	require.NoError(t, err)

	boat := ethcommon.HexToAddress(testGames[0].GameAddress)
	joint := ethcommon.HexToAddress(testGames[1].GameAddress)

	et, token, ok := r.Normalize(boat, GameABI.Events["RunResult"].ID)
	require.True(t, ok)
	assert.Equal(t, game.EventRunResult, et)
	assert.Equal(t, "BOAT", token)

	jointTopic := crypto.Keccak256Hash([]byte("JointRun" + runEventParams))
	et, token, ok = r.Normalize(joint, jointTopic)
	require.True(t, ok)
	assert.Equal(t, game.EventRunResult, et)
	assert.Equal(t, "JOINT", token)

	// the BOAT topic on the JOINT contract is not registered
	_, _, ok = r.Normalize(joint, GameABI.Events["RunResult"].ID)
	assert.False(t, ok)
}

func TestNormalizeUnknown(t *testing.T) {
	r, err := NewRegistry(testGames)
	require.NoError(t, err)

	_, _, ok := r.Normalize(ethcommon.HexToAddress("0x01"), GameABI.Events["BoatBurned"].ID)
	assert.False(t, ok)

	boat := ethcommon.HexToAddress(testGames[0].GameAddress)
	_, _, ok = r.Normalize(boat, crypto.Keccak256Hash([]byte("Unrelated()")))
	assert.False(t, ok)
}

func TestWatchAddresses(t *testing.T) {
	r, err := NewRegistry(testGames)
	require.NoError(t, err)

	addrs := r.WatchAddresses()
	require.Len(t, addrs, 2)
	assert.Equal(t, ethcommon.HexToAddress(testGames[0].GameAddress), addrs[0])

	v, ok := r.Variant("JOINT")
	require.True(t, ok)
	assert.Equal(t, "JOINT", v.Name)
	_, ok = r.Variant("LSD")
	assert.False(t, ok)
}

func TestABIsParse(t *testing.T) {
	// methods exercised by the reader and submitter must exist
	for _, name := range []string{"buyRaft", "upgrade", "run", "buyRaftCost", "upgradeCost", "lastRunAt", "runCooldown", "poolBalance", "stats"} {
		_, ok := GameABI.Methods[name]
		assert.True(t, ok, "game method %s missing", name)
	}
	for _, name := range []string{"balanceOf", "levelOf", "walletOfOwner"} {
		_, ok := NFTABI.Methods[name]
		assert.True(t, ok, "nft method %s missing", name)
	}
	for _, name := range []string{"balanceOf", "allowance", "approve"} {
		_, ok := TokenABI.Methods[name]
		assert.True(t, ok, "token method %s missing", name)
	}
}
