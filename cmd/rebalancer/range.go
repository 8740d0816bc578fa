package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityRebalancer/internal/chain"
	"liquidityRebalancer/internal/config"
	"liquidityRebalancer/internal/dex"
	"liquidityRebalancer/internal/model"
	"liquidityRebalancer/internal/v3math"
)

type rangeOutput struct {
	Pool             string `json:"pool"`
	Kind             string `json:"kind"`
	BaseToken        string `json:"base_token"`
	QuoteToken       string `json:"quote_token"`
	Tick             int32  `json:"tick"`
	TickLower        int32  `json:"tick_lower"`
	TickUpper        int32  `json:"tick_upper"`
	Price            string `json:"price"`
	InversePrice     string `json:"inverse_price"`
	PriceAtLower     string `json:"price_at_tick_lower"`
	PriceAtUpper     string `json:"price_at_tick_upper"`
	Token0Proportion string `json:"token0_value_proportion"`
	Liquidity        string `json:"liquidity,omitempty"`
}

func newRangeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "range",
		Short: "Compute a spacing-aligned tick range for a pool",
		RunE:  runRange,
	}

	cmd.Flags().String("rpc", "", "RPC URL")
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().Uint64("block", 0, "block number, 0 means latest")
	cmd.Flags().String("kind", "tick-offset", "tick-offset, price-ratio, price-offset or width-ratio")
	cmd.Flags().Int32("lower-tick-offset", 0, "tick-offset: ticks below the current tick (negative)")
	cmd.Flags().Int32("upper-tick-offset", 0, "tick-offset: ticks above the current tick")
	cmd.Flags().String("lower", "", "price-ratio: ratio such as -0.1; price-offset: absolute price offset")
	cmd.Flags().String("upper", "", "price-ratio: ratio such as 0.1; price-offset: absolute price offset")
	cmd.Flags().Int32("width", 0, "width-ratio: range width in ticks")
	cmd.Flags().String("proportion", "0.5", "width-ratio: share of value held in token0")
	cmd.Flags().String("amount0", "", "token0 deposit in raw units, reports the liquidity it mints")
	cmd.Flags().String("amount1", "", "token1 deposit in raw units, reports the liquidity it mints")
	cmd.Flags().Bool("base-token1", false, "quote prices as token1 priced in token0")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

func runRange(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadRange(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	poolAddress, err := parseAddress("pool", cfg.Pool)
	if err != nil {
		return err
	}
	params, err := rangeParams(cfg)
	if err != nil {
		return err
	}
	amount0, err := parseAmount("amount0", cfg.Amount0)
	if err != nil {
		return err
	}
	amount1, err := parseAmount("amount1", cfg.Amount1)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	pool, err := dex.FetchPool(ctx, chainClient, 0, poolAddress, blockArg(cfg.Block), dex.NewTokenMetaCache(), logger)
	if err != nil {
		return err
	}

	out, err := rangeReport(pool, params, amount0, amount1)
	if err != nil {
		return err
	}

	logger.Info("range computed",
		zap.String("pool", pool.Address.Hex()),
		zap.String("kind", out.Kind),
		zap.Int32("tick_lower", out.TickLower),
		zap.Int32("tick_upper", out.TickUpper),
	)
	return writeJSON(cmd.OutOrStdout(), out)
}

// rangeReport computes the range for pool and describes it in human units.
// Liquidity is filled only when a deposit amount is given.
func rangeReport(pool model.Pool, params v3math.RangeParams, amount0, amount1 *big.Int) (rangeOutput, error) {
	state := v3math.PoolState{
		Tick:         pool.Tick,
		SqrtPriceX96: pool.SqrtPriceX96,
		TickSpacing:  pool.TickSpacing,
		Decimals0:    pool.Token0.Decimals,
		Decimals1:    pool.Token1.Decimals,
	}
	lower, upper, err := v3math.TickRangeForStrategy(state, params)
	if err != nil {
		return rangeOutput{}, err
	}

	d0, d1 := pool.Token0.Decimals, pool.Token1.Decimals
	raw := v3math.SqrtRatioX96ToRawPrice(pool.SqrtPriceX96)
	current := v3math.PriceFromRaw(raw, params.BaseIsToken0, d0, d1)
	atLower, err := v3math.TickToPrice(lower, params.BaseIsToken0, d0, d1)
	if err != nil {
		return rangeOutput{}, err
	}
	atUpper, err := v3math.TickToPrice(upper, params.BaseIsToken0, d0, d1)
	if err != nil {
		return rangeOutput{}, err
	}
	proportion, err := v3math.RawPriceToValueProportion(lower, upper, raw)
	if err != nil {
		return rangeOutput{}, err
	}

	base, quote := pool.Token0, pool.Token1
	if !params.BaseIsToken0 {
		base, quote = quote, base
	}
	out := rangeOutput{
		Pool:             pool.Address.Hex(),
		Kind:             params.Kind.String(),
		BaseToken:        base.Symbol,
		QuoteToken:       quote.Symbol,
		Tick:             pool.Tick,
		TickLower:        lower,
		TickUpper:        upper,
		Price:            current.Value.StringFixed(12),
		InversePrice:     current.Invert().Value.StringFixed(12),
		PriceAtLower:     atLower.Value.StringFixed(12),
		PriceAtUpper:     atUpper.Value.StringFixed(12),
		Token0Proportion: proportion.StringFixed(6),
	}

	if amount0 != nil || amount1 != nil {
		sqrtLower, err := v3math.GetSqrtRatioAtTick(lower)
		if err != nil {
			return rangeOutput{}, err
		}
		sqrtUpper, err := v3math.GetSqrtRatioAtTick(upper)
		if err != nil {
			return rangeOutput{}, err
		}
		liquidity := v3math.GetLiquidityForAmounts(pool.SqrtPriceX96, sqrtLower, sqrtUpper, orZero(amount0), orZero(amount1))
		out.Liquidity = liquidity.String()
	}
	return out, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func rangeParams(cfg config.RangeConfig) (v3math.RangeParams, error) {
	kind, err := v3math.ParseRangeKind(strings.TrimSpace(cfg.Kind))
	if err != nil {
		return v3math.RangeParams{}, err
	}
	params := v3math.RangeParams{
		Kind:            kind,
		LowerTickOffset: cfg.LowerTickOffset,
		UpperTickOffset: cfg.UpperTickOffset,
		Width:           cfg.Width,
		BaseIsToken0:    !cfg.BaseToken1,
	}

	switch kind {
	case v3math.RangePriceRatio, v3math.RangePriceOffset:
		lower, err := decimal.NewFromString(strings.TrimSpace(cfg.Lower))
		if err != nil {
			return v3math.RangeParams{}, fmt.Errorf("parse lower: %w", err)
		}
		upper, err := decimal.NewFromString(strings.TrimSpace(cfg.Upper))
		if err != nil {
			return v3math.RangeParams{}, fmt.Errorf("parse upper: %w", err)
		}
		if kind == v3math.RangePriceRatio {
			params.LowerRatio, params.UpperRatio = lower, upper
		} else {
			params.LowerPriceOffset, params.UpperPriceOffset = lower, upper
		}
	case v3math.RangeWidthRatio:
		proportion, err := decimal.NewFromString(strings.TrimSpace(cfg.Proportion))
		if err != nil {
			return v3math.RangeParams{}, fmt.Errorf("parse proportion: %w", err)
		}
		params.Token0ValueProportion = proportion
	}
	return params, nil
}
