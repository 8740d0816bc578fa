package v3math

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// proportionPlaces bounds the fractional digits of a value proportion.
const proportionPlaces = 60

var (
	decOne  = decimal.NewFromInt(1)
	decTwo  = decimal.NewFromInt(2)
	decHalf = decimal.New(5, -1)
)

// ValueProportionToRawPrice returns the raw price at which a position on
// [tickLower, tickUpper] holds token0Proportion of its value in token0.
// A proportion of 0 maps to the price at tickUpper and 1 to the price at tickLower.
func ValueProportionToRawPrice(tickLower, tickUpper int32, token0Proportion decimal.Decimal) (decimal.Decimal, error) {
	if tickLower >= tickUpper {
		return decimal.Zero, fmt.Errorf("%w: lower %d >= upper %d", ErrInvalidRange, tickLower, tickUpper)
	}
	if token0Proportion.Sign() < 0 || token0Proportion.Cmp(decOne) > 0 {
		return decimal.Zero, fmt.Errorf("token0 proportion %s outside [0, 1]", token0Proportion)
	}
	if token0Proportion.IsZero() {
		return TickToRawPrice(tickUpper)
	}
	if token0Proportion.Equal(decOne) {
		return TickToRawPrice(tickLower)
	}

	sqrtLower, err := GetSqrtRatioAtTick(tickLower)
	if err != nil {
		return decimal.Zero, err
	}
	sqrtUpper, err := GetSqrtRatioAtTick(tickUpper)
	if err != nil {
		return decimal.Zero, err
	}

	s := solveSqrtPrice(token0Proportion, SqrtRatioX96ToDecimal(sqrtLower), SqrtRatioX96ToDecimal(sqrtUpper))
	return s.Mul(s).Round(pricePlaces), nil
}

// RawPriceToValueProportion is the inverse of ValueProportionToRawPrice. Prices at or
// below tickLower return exactly 1; prices at or above tickUpper return exactly 0.
func RawPriceToValueProportion(tickLower, tickUpper int32, raw decimal.Decimal) (decimal.Decimal, error) {
	if tickLower >= tickUpper {
		return decimal.Zero, fmt.Errorf("%w: lower %d >= upper %d", ErrInvalidRange, tickLower, tickUpper)
	}
	priceLower, err := TickToRawPrice(tickLower)
	if err != nil {
		return decimal.Zero, err
	}
	priceUpper, err := TickToRawPrice(tickUpper)
	if err != nil {
		return decimal.Zero, err
	}
	if raw.Cmp(priceLower) <= 0 {
		return decOne, nil
	}
	if raw.Cmp(priceUpper) >= 0 {
		return decimal.Zero, nil
	}

	sa := SqrtRatioX96ToDecimal(mustSqrtRatio(tickLower))
	sb := SqrtRatioX96ToDecimal(mustSqrtRatio(tickUpper))
	return valueProportionAt(sqrtDecimal(raw), sa, sb), nil
}

// valueProportionAt evaluates
//
//	x = (s*sb - s^2) / (2*s*sb - s^2 - sa*sb)
//
// which is value0 / (value0 + value1) for a unit of liquidity at sqrt price s.
func valueProportionAt(s, sa, sb decimal.Decimal) decimal.Decimal {
	ssb := s.Mul(sb)
	ss := s.Mul(s)
	num := ssb.Sub(ss)
	den := decTwo.Mul(ssb).Sub(ss).Sub(sa.Mul(sb))
	if den.Sign() == 0 {
		return decimal.Zero
	}
	x := num.DivRound(den, proportionPlaces)
	if x.Sign() < 0 {
		return decimal.Zero
	}
	if x.Cmp(decOne) > 0 {
		return decOne
	}
	return x
}

// solveSqrtPrice returns the positive root s of
//
//	(1-x)*s^2 + (2x-1)*sb*s - x*sa*sb = 0
//
// using the cancellation-free form of the quadratic formula.
func solveSqrtPrice(x, sa, sb decimal.Decimal) decimal.Decimal {
	a := decOne.Sub(x)
	b := decTwo.Mul(x).Sub(decOne).Mul(sb)
	c := x.Mul(sa).Mul(sb).Neg()

	disc := b.Mul(b).Sub(decimal.NewFromInt(4).Mul(a).Mul(c)).Round(2 * pricePlaces)
	root := sqrtDecimal(disc)

	if b.Sign() >= 0 {
		q := b.Add(root).Mul(decHalf).Neg()
		if q.IsZero() {
			return sa
		}
		return c.DivRound(q, pricePlaces)
	}
	q := root.Sub(b).Mul(decHalf)
	if a.IsZero() {
		return sa
	}
	return q.DivRound(a, pricePlaces)
}
