package v3math

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// RangeKind selects how TickRangeForStrategy builds a range.
type RangeKind int

const (
	// RangeTickOffset offsets the current tick by a fixed number of ticks.
	RangeTickOffset RangeKind = iota
	// RangePriceRatio scales the current base-token price by (1 + ratio).
	RangePriceRatio
	// RangePriceOffset adds absolute offsets to the current base-token price.
	RangePriceOffset
	// RangeWidthRatio builds a range of fixed tick width in which the current price
	// holds a target share of value in token0.
	RangeWidthRatio
)

func (k RangeKind) String() string {
	switch k {
	case RangeTickOffset:
		return "tick-offset"
	case RangePriceRatio:
		return "price-ratio"
	case RangePriceOffset:
		return "price-offset"
	case RangeWidthRatio:
		return "width-ratio"
	default:
		return fmt.Sprintf("range-kind(%d)", int(k))
	}
}

// ParseRangeKind parses the String form of a RangeKind.
func ParseRangeKind(s string) (RangeKind, error) {
	for _, k := range []RangeKind{RangeTickOffset, RangePriceRatio, RangePriceOffset, RangeWidthRatio} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown range kind %q", s)
}

// PoolState is the subset of a pool snapshot the range builders need.
type PoolState struct {
	Tick         int32
	SqrtPriceX96 *big.Int
	TickSpacing  int32
	Decimals0    uint8
	Decimals1    uint8
}

// RangeParams parameterises TickRangeForStrategy. Only the fields of the selected
// Kind are read. Price-based kinds quote the base token (token0 when BaseIsToken0).
type RangeParams struct {
	Kind RangeKind

	LowerTickOffset int32
	UpperTickOffset int32

	LowerRatio decimal.Decimal
	UpperRatio decimal.Decimal

	LowerPriceOffset decimal.Decimal
	UpperPriceOffset decimal.Decimal

	Width                 int32
	Token0ValueProportion decimal.Decimal

	BaseIsToken0 bool
}

// TickRangeForStrategy returns a spacing-aligned [tickLower, tickUpper] with
// tickUpper > tickLower.
func TickRangeForStrategy(pool PoolState, params RangeParams) (int32, int32, error) {
	if pool.TickSpacing <= 0 {
		return 0, 0, fmt.Errorf("%w: tick spacing %d", ErrInvalidRange, pool.TickSpacing)
	}
	if pool.SqrtPriceX96 == nil || pool.SqrtPriceX96.Sign() <= 0 {
		return 0, 0, fmt.Errorf("pool sqrt price is required")
	}

	switch params.Kind {
	case RangeTickOffset:
		if params.LowerTickOffset >= params.UpperTickOffset {
			return 0, 0, fmt.Errorf("%w: lower offset %d >= upper offset %d", ErrInvalidRange, params.LowerTickOffset, params.UpperTickOffset)
		}
		return AlignRange(pool.Tick+params.LowerTickOffset, pool.Tick+params.UpperTickOffset, pool.TickSpacing)

	case RangePriceRatio:
		if params.LowerRatio.Cmp(decOne.Neg()) <= 0 {
			return 0, 0, fmt.Errorf("%w: lower ratio %s <= -1", ErrInvalidRange, params.LowerRatio)
		}
		if params.LowerRatio.Cmp(params.UpperRatio) >= 0 {
			return 0, 0, fmt.Errorf("%w: lower ratio %s >= upper ratio %s", ErrInvalidRange, params.LowerRatio, params.UpperRatio)
		}
		current := currentPrice(pool, params.BaseIsToken0)
		low := current
		low.Value = current.Value.Mul(decOne.Add(params.LowerRatio))
		high := current
		high.Value = current.Value.Mul(decOne.Add(params.UpperRatio))
		return priceBoundsToRange(low, high, pool.TickSpacing)

	case RangePriceOffset:
		if params.UpperPriceOffset.Sign() <= 0 {
			return 0, 0, fmt.Errorf("%w: upper price offset %s must be positive", ErrInvalidRange, params.UpperPriceOffset)
		}
		if params.LowerPriceOffset.Sign() >= 0 {
			return 0, 0, fmt.Errorf("%w: lower price offset %s must be negative", ErrInvalidRange, params.LowerPriceOffset)
		}
		current := currentPrice(pool, params.BaseIsToken0)
		low := current
		low.Value = current.Value.Add(params.LowerPriceOffset)
		high := current
		high.Value = current.Value.Add(params.UpperPriceOffset)
		return priceBoundsToRange(low, high, pool.TickSpacing)

	case RangeWidthRatio:
		return widthRatioRange(pool, params.Width, params.Token0ValueProportion)

	default:
		return 0, 0, fmt.Errorf("unsupported range kind %s", params.Kind)
	}
}

func currentPrice(pool PoolState, baseIsToken0 bool) Price {
	return PriceFromRaw(SqrtRatioX96ToRawPrice(pool.SqrtPriceX96), baseIsToken0, pool.Decimals0, pool.Decimals1)
}

// priceBoundsToRange converts two base-token prices into an ordered tick range. When
// the base is token1 a higher price maps to a lower tick, so the ticks are sorted.
func priceBoundsToRange(low, high Price, spacing int32) (int32, int32, error) {
	a := PriceToTick(low)
	b := PriceToTick(high)
	if a > b {
		a, b = b, a
	}
	return AlignRange(a, b, spacing)
}

func widthRatioRange(pool PoolState, width int32, token0Proportion decimal.Decimal) (int32, int32, error) {
	if width < pool.TickSpacing || width > MaxTick {
		return 0, 0, fmt.Errorf("%w: width %d", ErrInvalidRange, width)
	}
	if token0Proportion.Sign() < 0 || token0Proportion.Cmp(decOne) > 0 {
		return 0, 0, fmt.Errorf("token0 proportion %s outside [0, 1]", token0Proportion)
	}
	width = NearestUsableTick(width, pool.TickSpacing)
	if width < pool.TickSpacing {
		width = pool.TickSpacing
	}

	widthRatio, err := GetSqrtRatioAtTick(width)
	if err != nil {
		return 0, 0, err
	}

	// u = s / sa solves the proportion equation on a unit range [1, sqrt(1.0001^width)]
	var u decimal.Decimal
	switch {
	case token0Proportion.IsZero():
		u = SqrtRatioX96ToDecimal(widthRatio)
	case token0Proportion.Equal(decOne):
		u = decOne
	default:
		u = solveSqrtPrice(token0Proportion, decOne, SqrtRatioX96ToDecimal(widthRatio))
	}

	sqrtLower := decimal.NewFromBigInt(pool.SqrtPriceX96, 0).DivRound(u, 0).BigInt()
	var tickLower int32
	switch {
	case sqrtLower.Cmp(MinSqrtRatio) <= 0:
		tickLower = MinTick
	case sqrtLower.Cmp(MaxSqrtRatio) >= 0:
		tickLower = MaxTick
	default:
		tickLower, err = GetTickAtSqrtRatio(sqrtLower)
		if err != nil {
			return 0, 0, err
		}
	}

	tickLower = NearestUsableTick(tickLower, pool.TickSpacing)
	tickUpper := tickLower + width
	if tickUpper > MaxUsableTick(pool.TickSpacing) {
		tickUpper = MaxUsableTick(pool.TickSpacing)
		tickLower = tickUpper - width
	}
	if tickLower < MinUsableTick(pool.TickSpacing) {
		tickLower = MinUsableTick(pool.TickSpacing)
		tickUpper = tickLower + width
	}
	if err := ValidateRange(tickLower, tickUpper, pool.TickSpacing); err != nil {
		return 0, 0, err
	}
	return tickLower, tickUpper, nil
}
