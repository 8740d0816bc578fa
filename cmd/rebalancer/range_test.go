package main

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"liquidityRebalancer/internal/model"
	"liquidityRebalancer/internal/v3math"
)

func rangeTestPool() model.Pool {
	return model.Pool{
		Address:      common.HexToAddress("0x1000000000000000000000000000000000000001"),
		Token0:       model.TokenMeta{Symbol: "AAA", Decimals: 18},
		Token1:       model.TokenMeta{Symbol: "BBB", Decimals: 18},
		TickSpacing:  10,
		Tick:         0,
		SqrtPriceX96: v3math.Q96,
		Liquidity:    big.NewInt(1_000_000),
	}
}

func TestRangeReportTickOffset(t *testing.T) {
	params := v3math.RangeParams{
		Kind:            v3math.RangeTickOffset,
		LowerTickOffset: -100,
		UpperTickOffset: 100,
		BaseIsToken0:    true,
	}

	out, err := rangeReport(rangeTestPool(), params, nil, nil)
	if err != nil {
		t.Fatalf("range report: %v", err)
	}
	if out.TickLower != -100 || out.TickUpper != 100 || out.Kind != params.Kind.String() {
		t.Fatalf("range mismatch: %+v", out)
	}
	if out.BaseToken != "AAA" || out.QuoteToken != "BBB" {
		t.Fatalf("token labels mismatch: %+v", out)
	}
	if out.Price != "1.000000000000" || out.InversePrice != "1.000000000000" {
		t.Fatalf("price mismatch: %s / %s", out.Price, out.InversePrice)
	}
	if out.Token0Proportion != "0.500000" {
		t.Fatalf("symmetric range should hold half in token0, got %s", out.Token0Proportion)
	}
	lower := decimal.RequireFromString(out.PriceAtLower)
	upper := decimal.RequireFromString(out.PriceAtUpper)
	if !lower.LessThan(decimal.NewFromInt(1)) || !upper.GreaterThan(decimal.NewFromInt(1)) {
		t.Fatalf("bounds should bracket the price: %s %s", out.PriceAtLower, out.PriceAtUpper)
	}
	if out.Liquidity != "" {
		t.Fatalf("liquidity reported without amounts: %s", out.Liquidity)
	}
}

func TestRangeReportQuotedInToken1(t *testing.T) {
	pool := rangeTestPool()
	// raw price 4: one AAA is worth four BBB
	pool.SqrtPriceX96 = new(big.Int).Lsh(big.NewInt(2), 96)
	pool.Tick = 13862

	out, err := rangeReport(pool, v3math.RangeParams{
		Kind:            v3math.RangeTickOffset,
		LowerTickOffset: -100,
		UpperTickOffset: 100,
	}, nil, nil)
	if err != nil {
		t.Fatalf("range report: %v", err)
	}
	if out.BaseToken != "BBB" || out.QuoteToken != "AAA" {
		t.Fatalf("token labels mismatch: %+v", out)
	}
	if out.Price != "0.250000000000" || out.InversePrice != "4.000000000000" {
		t.Fatalf("price mismatch: %s / %s", out.Price, out.InversePrice)
	}
}

func TestRangeReportLiquidityForDeposit(t *testing.T) {
	params := v3math.RangeParams{
		Kind:            v3math.RangeTickOffset,
		LowerTickOffset: -100,
		UpperTickOffset: 100,
		BaseIsToken0:    true,
	}
	amount := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	out, err := rangeReport(rangeTestPool(), params, amount, nil)
	if err != nil {
		t.Fatalf("range report: %v", err)
	}

	sqrtLower, err := v3math.GetSqrtRatioAtTick(-100)
	if err != nil {
		t.Fatalf("sqrt lower: %v", err)
	}
	sqrtUpper, err := v3math.GetSqrtRatioAtTick(100)
	if err != nil {
		t.Fatalf("sqrt upper: %v", err)
	}
	want := v3math.GetLiquidityForAmounts(v3math.Q96, sqrtLower, sqrtUpper, amount, new(big.Int))
	if out.Liquidity != want.String() {
		t.Fatalf("liquidity mismatch: %s want %s", out.Liquidity, want)
	}
	// in range, a one-sided deposit is limited by the missing token
	if want.Sign() != 0 {
		t.Fatalf("one-sided in-range deposit should mint nothing, got %s", want)
	}

	out, err = rangeReport(rangeTestPool(), params, amount, amount)
	if err != nil {
		t.Fatalf("range report: %v", err)
	}
	liquidity, ok := new(big.Int).SetString(out.Liquidity, 10)
	if !ok || liquidity.Sign() <= 0 {
		t.Fatalf("expected positive liquidity, got %q", out.Liquidity)
	}
}
