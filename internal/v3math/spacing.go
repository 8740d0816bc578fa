package v3math

import (
	"errors"
	"fmt"
)

// ErrInvalidRange reports a tick range that violates ordering, spacing or bounds.
var ErrInvalidRange = errors.New("invalid range")

// FloorToSpacing rounds tick down to a multiple of spacing.
func FloorToSpacing(tick, spacing int32) int32 {
	if spacing <= 0 {
		return tick
	}
	return floorDiv(tick, spacing) * spacing
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// NearestUsableTick rounds tick to the nearest multiple of spacing (halves round up)
// and keeps the result inside [MinTick, MaxTick].
func NearestUsableTick(tick, spacing int32) int32 {
	if spacing <= 0 {
		return tick
	}
	rounded := floorDiv(2*tick+spacing, 2*spacing) * spacing
	if rounded < MinTick {
		rounded += spacing
	} else if rounded > MaxTick {
		rounded -= spacing
	}
	return rounded
}

// MinUsableTick returns the lowest tick usable with spacing.
func MinUsableTick(spacing int32) int32 {
	return -(-MinTick / spacing * spacing)
}

// MaxUsableTick returns the highest tick usable with spacing.
func MaxUsableTick(spacing int32) int32 {
	return MaxTick / spacing * spacing
}

// ValidateRange checks that [lower, upper] is an aligned, ordered range at least one
// spacing wide and inside the protocol bounds.
func ValidateRange(lower, upper, spacing int32) error {
	if spacing <= 0 {
		return fmt.Errorf("%w: tick spacing %d", ErrInvalidRange, spacing)
	}
	if lower < MinTick || upper > MaxTick {
		return fmt.Errorf("%w: [%d, %d] outside [%d, %d]", ErrInvalidRange, lower, upper, MinTick, MaxTick)
	}
	if lower%spacing != 0 || upper%spacing != 0 {
		return fmt.Errorf("%w: [%d, %d] not aligned to spacing %d", ErrInvalidRange, lower, upper, spacing)
	}
	if upper-lower < spacing {
		return fmt.Errorf("%w: [%d, %d] narrower than spacing %d", ErrInvalidRange, lower, upper, spacing)
	}
	return nil
}

// AlignRange rounds both ends to usable ticks and validates the result.
func AlignRange(lower, upper, spacing int32) (int32, int32, error) {
	if spacing <= 0 {
		return 0, 0, fmt.Errorf("%w: tick spacing %d", ErrInvalidRange, spacing)
	}
	lower = NearestUsableTick(lower, spacing)
	upper = NearestUsableTick(upper, spacing)
	if err := ValidateRange(lower, upper, spacing); err != nil {
		return 0, 0, err
	}
	return lower, upper, nil
}
