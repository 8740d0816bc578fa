package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Pool is a point-in-time snapshot of a V3 pool read from chain.
type Pool struct {
	ChainID      uint64         `json:"chain_id"`
	Address      common.Address `json:"address"`
	Token0       TokenMeta      `json:"token0"`
	Token1       TokenMeta      `json:"token1"`
	Fee          uint32         `json:"fee"`
	TickSpacing  int32          `json:"tick_spacing"`
	Tick         int32          `json:"tick"`
	SqrtPriceX96 *big.Int       `json:"sqrt_price_x96"`
	Liquidity    *big.Int       `json:"liquidity"`
	BlockNumber  uint64         `json:"block_number"`
}
