package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Position is a position-manager NFT snapshot.
type Position struct {
	TokenID     *big.Int       `json:"token_id"`
	Owner       common.Address `json:"owner"`
	Token0      common.Address `json:"token0"`
	Token1      common.Address `json:"token1"`
	Fee         uint32         `json:"fee"`
	TickLower   int32          `json:"tick_lower"`
	TickUpper   int32          `json:"tick_upper"`
	Liquidity   *big.Int       `json:"liquidity"`
	TokensOwed0 *big.Int       `json:"tokens_owed0"`
	TokensOwed1 *big.Int       `json:"tokens_owed1"`
}
