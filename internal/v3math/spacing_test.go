package v3math

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNearestUsableTick(t *testing.T) {
	cases := []struct {
		tick, spacing, want int32
	}{
		{5, 10, 10},
		{4, 10, 0},
		{-5, 10, 0},
		{-6, 10, -10},
		{-15, 10, -10},
		{-16, 10, -20},
		{29, 60, 0},
		{30, 60, 60},
		{MaxTick, 60, 887220},
		{MinTick, 60, -887220},
		{7, 1, 7},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NearestUsableTick(c.tick, c.spacing), "tick %d spacing %d", c.tick, c.spacing)
	}
}

func TestFloorToSpacing(t *testing.T) {
	assert.Equal(t, int32(-10), FloorToSpacing(-1, 10))
	assert.Equal(t, int32(-10), FloorToSpacing(-10, 10))
	assert.Equal(t, int32(0), FloorToSpacing(9, 10))
	assert.Equal(t, int32(120), FloorToSpacing(179, 60))
}

func TestValidateRange(t *testing.T) {
	require.NoError(t, ValidateRange(-10, 10, 10))
	assert.ErrorIs(t, ValidateRange(10, 10, 10), ErrInvalidRange)
	assert.ErrorIs(t, ValidateRange(20, 10, 10), ErrInvalidRange)
	assert.ErrorIs(t, ValidateRange(0, 5, 10), ErrInvalidRange)
	assert.ErrorIs(t, ValidateRange(-887280, 0, 60), ErrInvalidRange)
	assert.ErrorIs(t, ValidateRange(0, 10, 0), ErrInvalidRange)
}

func TestAlignRangeRejectsCollapsedRange(t *testing.T) {
	_, _, err := AlignRange(1, 4, 10)
	assert.ErrorIs(t, err, ErrInvalidRange)

	lower, upper, err := AlignRange(-96, 104, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(-100), lower)
	assert.Equal(t, int32(100), upper)
}
