// Package contracts holds the ABI surface of the game deployments and the
// registry that normalizes logs from near-duplicate contract variants onto
// canonical event types.
package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// GameABI covers the wagering contract: the three state-changing operations
// plus the read surface and the canonical event shapes. Variant deployments
// (JOINT, LIZARD, LSD) share this layout; only the run event name differs.
const gameABIJSON = `[
  {"type":"function","name":"buyRaft","stateMutability":"nonpayable","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"upgrade","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"run","stateMutability":"payable","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"buyRaftCost","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"upgradeCost","stateMutability":"view","inputs":[{"name":"fromLevel","type":"uint8"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"lastRunAt","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"runCooldown","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"poolBalance","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"stats","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"runs","type":"uint256"},{"name":"wins","type":"uint256"}]},
  {"type":"function","name":"BOAT","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"NFT","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"event","name":"RaftBought","inputs":[{"name":"user","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true},{"name":"cost","type":"uint256","indexed":false}]},
  {"type":"event","name":"Upgraded","inputs":[{"name":"user","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true},{"name":"fromLevel","type":"uint8","indexed":false},{"name":"toLevel","type":"uint8","indexed":false},{"name":"cost","type":"uint256","indexed":false}]},
  {"type":"event","name":"RunResult","inputs":[{"name":"user","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true},{"name":"level","type":"uint8","indexed":false},{"name":"stake","type":"uint256","indexed":false},{"name":"success","type":"bool","indexed":false},{"name":"rewardPaid","type":"uint256","indexed":false}]},
  {"type":"event","name":"BoatBurned","inputs":[{"name":"tokenId","type":"uint256","indexed":true},{"name":"level","type":"uint8","indexed":false}]},
  {"type":"event","name":"BoatDowngraded","inputs":[{"name":"tokenId","type":"uint256","indexed":true},{"name":"fromLevel","type":"uint8","indexed":false},{"name":"toLevel","type":"uint8","indexed":false}]},
  {"type":"event","name":"RaftSpawned","inputs":[{"name":"to","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true}]}
]`

// NFTABI covers the boat ERC-721 read surface.
const nftABIJSON = `[
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"ownerOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"levelOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"walletOfOwner","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]}
]`

// TokenABI covers the ERC-20 stake token.
const tokenABIJSON = `[
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

var (
	GameABI  abi.ABI
	NFTABI   abi.ABI
	TokenABI abi.ABI
)

func init() {
	var err error
	if GameABI, err = abi.JSON(strings.NewReader(gameABIJSON)); err != nil {
		panic("contracts: invalid game ABI: " + err.Error())
	}
	if NFTABI, err = abi.JSON(strings.NewReader(nftABIJSON)); err != nil {
		panic("contracts: invalid NFT ABI: " + err.Error())
	}
	if TokenABI, err = abi.JSON(strings.NewReader(tokenABIJSON)); err != nil {
		panic("contracts: invalid token ABI: " + err.Error())
	}
}
