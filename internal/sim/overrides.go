package sim

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
)

// StateOverrideSet maps a contract to the storage slots replaced for one simulated call.
// It is never written to chain.
type StateOverrideSet map[common.Address]map[common.Hash]common.Hash

// Set records value at slot of contract.
func (s StateOverrideSet) Set(contract common.Address, slot, value common.Hash) {
	slots, ok := s[contract]
	if !ok {
		slots = make(map[common.Hash]common.Hash)
		s[contract] = slots
	}
	slots[slot] = value
}

// Merge returns a new set holding s and then others; later sets win on the same slot.
func (s StateOverrideSet) Merge(others ...StateOverrideSet) StateOverrideSet {
	out := make(StateOverrideSet, len(s))
	for _, set := range append([]StateOverrideSet{s}, others...) {
		for contract, slots := range set {
			for slot, value := range slots {
				out.Set(contract, slot, value)
			}
		}
	}
	return out
}

// Len counts overridden slots across all contracts.
func (s StateOverrideSet) Len() int {
	n := 0
	for _, slots := range s {
		n += len(slots)
	}
	return n
}

// Geth converts the set to the eth_call override argument using stateDiff,
// so untouched slots keep their on-chain values.
func (s StateOverrideSet) Geth() map[common.Address]gethclient.OverrideAccount {
	if len(s) == 0 {
		return nil
	}
	out := make(map[common.Address]gethclient.OverrideAccount, len(s))
	for contract, slots := range s {
		diff := make(map[common.Hash]common.Hash, len(slots))
		for slot, value := range slots {
			diff[slot] = value
		}
		out[contract] = gethclient.OverrideAccount{StateDiff: diff}
	}
	return out
}

// Uint256Word encodes v as a 32-byte big-endian storage word.
func Uint256Word(v *big.Int) common.Hash {
	if v == nil {
		return common.Hash{}
	}
	return common.BigToHash(v)
}

var trueWord = common.BigToHash(big.NewInt(1))
