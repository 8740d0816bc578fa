package model

import "math/big"

// LiquidityEventKind tells a Mint from a Burn.
type LiquidityEventKind string

const (
	EventMint LiquidityEventKind = "Mint"
	EventBurn LiquidityEventKind = "Burn"
)

// LiquidityEvent is a decoded pool Mint or Burn.
type LiquidityEvent struct {
	Kind        LiquidityEventKind `json:"kind"`
	BlockNumber uint64             `json:"block_number"`
	TxHash      string             `json:"tx_hash"`
	LogIndex    uint64             `json:"log_index"`
	Pool        string             `json:"pool"`
	Owner       string             `json:"owner"`
	TickLower   int32              `json:"tick_lower"`
	TickUpper   int32              `json:"tick_upper"`
	Amount      *big.Int           `json:"amount"`
}

// TickLiquidityDelta is the net liquidity change when crossing a tick left to right.
type TickLiquidityDelta struct {
	Tick         int32    `json:"tick"`
	LiquidityNet *big.Int `json:"liquidity_net"`
}

// CurvePoint is one row of a reconstructed liquidity curve.
type CurvePoint struct {
	ChainID   uint64 `json:"chain_id"`
	Pool      string `json:"pool"`
	Tick      int32  `json:"tick"`
	Liquidity string `json:"liquidity"`
	Price     string `json:"price"`
}
