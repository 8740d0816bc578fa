package sim

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MappingSlot is the storage slot of mapping(address => T) at base for key:
// keccak256(pad32(key) ++ pad32(base)).
func MappingSlot(key common.Address, base uint64) common.Hash {
	baseWord := common.BigToHash(new(big.Int).SetUint64(base))
	return crypto.Keccak256Hash(common.LeftPadBytes(key.Bytes(), 32), baseWord.Bytes())
}

// NestedMappingSlot is the slot of mapping(address => mapping(address => T)) at base
// for [key][key2]: keccak256(pad32(key2) ++ keccak256(pad32(key) ++ pad32(base))).
func NestedMappingSlot(key, key2 common.Address, base uint64) common.Hash {
	inner := MappingSlot(key, base)
	return crypto.Keccak256Hash(common.LeftPadBytes(key2.Bytes(), 32), inner.Bytes())
}

// ApprovalOverride marks operator as approved for all of owner's tokens in an
// ERC721 style operator-approval mapping at baseSlot of contract.
func ApprovalOverride(contract, owner, operator common.Address, baseSlot uint64) StateOverrideSet {
	set := StateOverrideSet{}
	set.Set(contract, NestedMappingSlot(owner, operator, baseSlot), trueWord)
	return set
}

// FlagOverride sets mapping(address => bool)[account] = true at baseSlot of contract.
// The automation contract keeps its controllers and whitelisted routers this way.
func FlagOverride(contract, account common.Address, baseSlot uint64) StateOverrideSet {
	set := StateOverrideSet{}
	set.Set(contract, MappingSlot(account, baseSlot), trueWord)
	return set
}
