package v3math

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

func sortSqrt(a, b *big.Int) (*big.Int, *big.Int) {
	if a.Cmp(b) > 0 {
		return b, a
	}
	return a, b
}

// GetAmount0ForLiquidity returns floor(L * 2^96 * (sb - sa) / sb / sa).
func GetAmount0ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	sa, sb := sortSqrt(sqrtA, sqrtB)
	if sa.Sign() == 0 {
		return new(big.Int)
	}
	num := new(big.Int).Lsh(liquidity, 96)
	num.Mul(num, new(big.Int).Sub(sb, sa))
	num.Quo(num, sb)
	return num.Quo(num, sa)
}

// GetAmount1ForLiquidity returns floor(L * (sb - sa) / 2^96).
func GetAmount1ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	sa, sb := sortSqrt(sqrtA, sqrtB)
	out := new(big.Int).Mul(liquidity, new(big.Int).Sub(sb, sa))
	return out.Quo(out, Q96)
}

// GetAmountsForLiquidity returns the token amounts held by liquidity on [sqrtA, sqrtB]
// when the pool sits at sqrtPrice.
func GetAmountsForLiquidity(sqrtPrice, sqrtA, sqrtB, liquidity *big.Int) (*big.Int, *big.Int) {
	sa, sb := sortSqrt(sqrtA, sqrtB)
	switch {
	case sqrtPrice.Cmp(sa) <= 0:
		return GetAmount0ForLiquidity(sa, sb, liquidity), new(big.Int)
	case sqrtPrice.Cmp(sb) < 0:
		return GetAmount0ForLiquidity(sqrtPrice, sb, liquidity), GetAmount1ForLiquidity(sa, sqrtPrice, liquidity)
	default:
		return new(big.Int), GetAmount1ForLiquidity(sa, sb, liquidity)
	}
}

// GetLiquidityForAmount0 returns amount0 * (sa * sb / 2^96) / (sb - sa).
func GetLiquidityForAmount0(sqrtA, sqrtB, amount0 *big.Int) *big.Int {
	sa, sb := sortSqrt(sqrtA, sqrtB)
	diff := new(big.Int).Sub(sb, sa)
	if diff.Sign() == 0 {
		return new(big.Int)
	}
	intermediate := new(big.Int).Mul(sa, sb)
	intermediate.Quo(intermediate, Q96)
	out := new(big.Int).Mul(amount0, intermediate)
	return out.Quo(out, diff)
}

// GetLiquidityForAmount1 returns amount1 * 2^96 / (sb - sa).
func GetLiquidityForAmount1(sqrtA, sqrtB, amount1 *big.Int) *big.Int {
	sa, sb := sortSqrt(sqrtA, sqrtB)
	diff := new(big.Int).Sub(sb, sa)
	if diff.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount1, Q96)
	return out.Quo(out, diff)
}

// GetLiquidityForAmounts returns the largest liquidity mintable from amount0 and
// amount1 at sqrtPrice.
func GetLiquidityForAmounts(sqrtPrice, sqrtA, sqrtB, amount0, amount1 *big.Int) *big.Int {
	sa, sb := sortSqrt(sqrtA, sqrtB)
	switch {
	case sqrtPrice.Cmp(sa) <= 0:
		return GetLiquidityForAmount0(sa, sb, amount0)
	case sqrtPrice.Cmp(sb) < 0:
		l0 := GetLiquidityForAmount0(sqrtPrice, sb, amount0)
		l1 := GetLiquidityForAmount1(sa, sqrtPrice, amount1)
		if l0.Cmp(l1) < 0 {
			return l0
		}
		return l1
	default:
		return GetLiquidityForAmount1(sa, sb, amount1)
	}
}

// PositionAmounts returns the token amounts of a position on [tickLower, tickUpper].
func PositionAmounts(sqrtPrice *big.Int, tickLower, tickUpper int32, liquidity *big.Int) (*big.Int, *big.Int, error) {
	sa, err := GetSqrtRatioAtTick(tickLower)
	if err != nil {
		return nil, nil, fmt.Errorf("tick lower: %w", err)
	}
	sb, err := GetSqrtRatioAtTick(tickUpper)
	if err != nil {
		return nil, nil, fmt.Errorf("tick upper: %w", err)
	}
	a0, a1 := GetAmountsForLiquidity(sqrtPrice, sa, sb, liquidity)
	return a0, a1, nil
}

// MintAmountsWithSlippage returns the minimum token amounts a mint of liquidity on
// [tickLower, tickUpper] must accept if the price moves by at most slippage (a
// fraction, 0.005 = 0.5%) in either direction.
func MintAmountsWithSlippage(sqrtPrice *big.Int, tickLower, tickUpper int32, liquidity *big.Int, slippage decimal.Decimal) (*big.Int, *big.Int, error) {
	if slippage.Sign() < 0 || slippage.Cmp(decOne) >= 0 {
		return nil, nil, fmt.Errorf("slippage %s outside [0, 1)", slippage)
	}
	sa, err := GetSqrtRatioAtTick(tickLower)
	if err != nil {
		return nil, nil, fmt.Errorf("tick lower: %w", err)
	}
	sb, err := GetSqrtRatioAtTick(tickUpper)
	if err != nil {
		return nil, nil, fmt.Errorf("tick upper: %w", err)
	}

	sqrtLow := scaleSqrtPrice(sqrtPrice, decOne.Sub(slippage))
	sqrtHigh := scaleSqrtPrice(sqrtPrice, decOne.Add(slippage))
	if sqrtLow.Cmp(MinSqrtRatio) <= 0 {
		sqrtLow = new(big.Int).Add(MinSqrtRatio, big.NewInt(1))
	}
	if sqrtHigh.Cmp(MaxSqrtRatio) >= 0 {
		sqrtHigh = new(big.Int).Sub(MaxSqrtRatio, big.NewInt(1))
	}

	// token0 shrinks as the price rises, token1 as it falls
	amount0Min, _ := GetAmountsForLiquidity(sqrtHigh, sa, sb, liquidity)
	_, amount1Min := GetAmountsForLiquidity(sqrtLow, sa, sb, liquidity)
	return amount0Min, amount1Min, nil
}

// MinAmountWithSlippage returns floor(amount * (1 - slippage)).
func MinAmountWithSlippage(amount *big.Int, slippage decimal.Decimal) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return new(big.Int)
	}
	if slippage.Sign() <= 0 {
		return new(big.Int).Set(amount)
	}
	if slippage.Cmp(decOne) >= 0 {
		return new(big.Int)
	}
	return decimal.NewFromBigInt(amount, 0).Mul(decOne.Sub(slippage)).BigInt()
}

// scaleSqrtPrice returns floor(sqrtPrice * sqrt(factor)).
func scaleSqrtPrice(sqrtPrice *big.Int, factor decimal.Decimal) *big.Int {
	f := decimalToFloat(factor)
	f.Sqrt(f)
	f.Mul(f, new(big.Float).SetPrec(floatPrec).SetInt(sqrtPrice))
	out, _ := f.Int(nil)
	return out
}
