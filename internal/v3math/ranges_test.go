package v3math

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func poolAtTickZero() PoolState {
	return PoolState{Tick: 0, SqrtPriceX96: Q96, TickSpacing: 10, Decimals0: 18, Decimals1: 18}
}

func TestTickRangeTickOffset(t *testing.T) {
	lower, upper, err := TickRangeForStrategy(poolAtTickZero(), RangeParams{
		Kind:            RangeTickOffset,
		LowerTickOffset: -100,
		UpperTickOffset: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(-100), lower)
	assert.Equal(t, int32(100), upper)

	_, _, err = TickRangeForStrategy(poolAtTickZero(), RangeParams{
		Kind:            RangeTickOffset,
		LowerTickOffset: 100,
		UpperTickOffset: -100,
	})
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestTickRangePriceRatio(t *testing.T) {
	params := RangeParams{
		Kind:         RangePriceRatio,
		LowerRatio:   decimal.RequireFromString("-0.1"),
		UpperRatio:   decimal.RequireFromString("0.1"),
		BaseIsToken0: true,
	}
	lower, upper, err := TickRangeForStrategy(poolAtTickZero(), params)
	require.NoError(t, err)
	assert.Equal(t, int32(-1050), lower)
	assert.Equal(t, int32(950), upper)

	params.BaseIsToken0 = false
	lower, upper, err = TickRangeForStrategy(poolAtTickZero(), params)
	require.NoError(t, err)
	assert.Equal(t, int32(-950), lower)
	assert.Equal(t, int32(1050), upper)
}

func TestTickRangePriceOffsetValidation(t *testing.T) {
	_, _, err := TickRangeForStrategy(poolAtTickZero(), RangeParams{
		Kind:             RangePriceOffset,
		LowerPriceOffset: decimal.RequireFromString("0.1"),
		UpperPriceOffset: decimal.RequireFromString("0.2"),
		BaseIsToken0:     true,
	})
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, _, err = TickRangeForStrategy(poolAtTickZero(), RangeParams{
		Kind:             RangePriceOffset,
		LowerPriceOffset: decimal.RequireFromString("-0.1"),
		UpperPriceOffset: decimal.RequireFromString("-0.05"),
		BaseIsToken0:     true,
	})
	assert.ErrorIs(t, err, ErrInvalidRange)

	lower, upper, err := TickRangeForStrategy(poolAtTickZero(), RangeParams{
		Kind:             RangePriceOffset,
		LowerPriceOffset: decimal.RequireFromString("-0.1"),
		UpperPriceOffset: decimal.RequireFromString("0.1"),
		BaseIsToken0:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(-1050), lower)
	assert.Equal(t, int32(950), upper)
}

func TestTickRangePriceOffsetClampsAtBounds(t *testing.T) {
	lower, upper, err := TickRangeForStrategy(poolAtTickZero(), RangeParams{
		Kind:             RangePriceOffset,
		LowerPriceOffset: decimal.RequireFromString("-5"),
		UpperPriceOffset: decimal.RequireFromString("0.1"),
		BaseIsToken0:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, MinUsableTick(10), lower)
	assert.Equal(t, int32(950), upper)
}

func TestTickRangeWidthRatio(t *testing.T) {
	lower, upper, err := TickRangeForStrategy(poolAtTickZero(), RangeParams{
		Kind:                  RangeWidthRatio,
		Width:                 200,
		Token0ValueProportion: decimal.RequireFromString("0.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, int32(-100), lower)
	assert.Equal(t, int32(100), upper)

	lower, upper, err = TickRangeForStrategy(poolAtTickZero(), RangeParams{
		Kind:                  RangeWidthRatio,
		Width:                 200,
		Token0ValueProportion: decimal.Zero,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(-200), lower)
	assert.Equal(t, int32(0), upper)

	lower, upper, err = TickRangeForStrategy(poolAtTickZero(), RangeParams{
		Kind:                  RangeWidthRatio,
		Width:                 200,
		Token0ValueProportion: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.Equal(t, int32(0), lower)
	assert.Equal(t, int32(200), upper)
}

func TestTickRangeWidthRatioProportionHolds(t *testing.T) {
	pool := poolAtTickZero()
	target := decimal.RequireFromString("0.3")
	lower, upper, err := TickRangeForStrategy(pool, RangeParams{
		Kind:                  RangeWidthRatio,
		Width:                 2000,
		Token0ValueProportion: target,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2000), upper-lower)

	x, err := RawPriceToValueProportion(lower, upper, decimal.NewFromInt(1))
	require.NoError(t, err)
	// alignment moves the range by at most half a spacing
	assert.True(t, x.Sub(target).Abs().LessThan(decimal.RequireFromString("0.01")), "proportion %s", x)
}
