package v3math

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSqrtRatioAtTick(t *testing.T) {
	t.Run("below min tick", func(t *testing.T) {
		_, err := GetSqrtRatioAtTick(MinTick - 1)
		assert.ErrorIs(t, err, ErrTickOutOfBounds)
	})

	t.Run("above max tick", func(t *testing.T) {
		_, err := GetSqrtRatioAtTick(MaxTick + 1)
		assert.ErrorIs(t, err, ErrTickOutOfBounds)
	})

	t.Run("min tick", func(t *testing.T) {
		ratio, err := GetSqrtRatioAtTick(MinTick)
		require.NoError(t, err)
		assert.Zero(t, ratio.Cmp(MinSqrtRatio))
	})

	t.Run("max tick", func(t *testing.T) {
		ratio, err := GetSqrtRatioAtTick(MaxTick)
		require.NoError(t, err)
		assert.Zero(t, ratio.Cmp(MaxSqrtRatio))
	})

	t.Run("tick zero is 2^96", func(t *testing.T) {
		ratio, err := GetSqrtRatioAtTick(0)
		require.NoError(t, err)
		assert.Zero(t, ratio.Cmp(Q96))
	})

	t.Run("monotonic", func(t *testing.T) {
		prev, err := GetSqrtRatioAtTick(-1000)
		require.NoError(t, err)
		for tick := int32(-999); tick <= 1000; tick += 37 {
			next, err := GetSqrtRatioAtTick(tick)
			require.NoError(t, err)
			assert.Equal(t, 1, next.Cmp(prev), "tick %d", tick)
			prev = next
		}
	})
}

func TestGetTickAtSqrtRatio(t *testing.T) {
	t.Run("below min", func(t *testing.T) {
		_, err := GetTickAtSqrtRatio(new(big.Int).Sub(MinSqrtRatio, big.NewInt(1)))
		assert.ErrorIs(t, err, ErrSqrtPriceOutOfBounds)
	})

	t.Run("max is exclusive", func(t *testing.T) {
		_, err := GetTickAtSqrtRatio(MaxSqrtRatio)
		assert.ErrorIs(t, err, ErrSqrtPriceOutOfBounds)
	})

	t.Run("min ratio", func(t *testing.T) {
		tick, err := GetTickAtSqrtRatio(MinSqrtRatio)
		require.NoError(t, err)
		assert.Equal(t, MinTick, tick)
	})

	t.Run("ratio closest to max", func(t *testing.T) {
		tick, err := GetTickAtSqrtRatio(new(big.Int).Sub(MaxSqrtRatio, big.NewInt(1)))
		require.NoError(t, err)
		assert.Equal(t, MaxTick-1, tick)
	})

	t.Run("inverse of GetSqrtRatioAtTick", func(t *testing.T) {
		for _, tick := range []int32{-887000, -200311, -60, -1, 0, 1, 59, 200311, 887000} {
			ratio, err := GetSqrtRatioAtTick(tick)
			require.NoError(t, err)
			got, err := GetTickAtSqrtRatio(ratio)
			require.NoError(t, err)
			assert.Equal(t, tick, got)

			below, err := GetTickAtSqrtRatio(new(big.Int).Sub(ratio, big.NewInt(1)))
			require.NoError(t, err)
			assert.Equal(t, tick-1, below)
		}
	})
}
