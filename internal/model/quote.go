package model

// QuoteRecord is the persisted form of a solved rebalance quote.
// Integer amounts are decimal strings so they survive JSON consumers without precision loss.
type QuoteRecord struct {
	ChainID     uint64   `json:"chain_id"`
	Operation   string   `json:"operation"`
	Pool        string   `json:"pool"`
	Owner       string   `json:"owner"`
	TokenID     string   `json:"token_id,omitempty"`
	TickLower   int32    `json:"tick_lower"`
	TickUpper   int32    `json:"tick_upper"`
	Source      string   `json:"source"`
	ZeroForOne  bool     `json:"zero_for_one"`
	AmountIn    string   `json:"amount_in"`
	AmountOut   string   `json:"amount_out"`
	Amount0     string   `json:"amount0"`
	Amount1     string   `json:"amount1"`
	Liquidity   string   `json:"liquidity,omitempty"`
	Amount0Min  string   `json:"amount0_min"`
	Amount1Min  string   `json:"amount1_min"`
	PriceImpact string   `json:"price_impact"`
	SwapData    string   `json:"swap_data"`
	Candidates  int      `json:"candidates"`
	Unavailable []string `json:"unavailable,omitempty"`
	CreatedAt   string   `json:"created_at"`
}
