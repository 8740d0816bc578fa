package v3math

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// pricePlaces is the number of fractional digits kept for raw prices. The smallest
// representable raw price is ~2.9e-39, so this leaves ~40 significant digits.
const pricePlaces = 80

// floatPrec is the mantissa precision used for square roots.
const floatPrec = 512

var (
	Q96  = new(big.Int).Lsh(big.NewInt(1), 96)
	Q192 = new(big.Int).Lsh(big.NewInt(1), 192)

	q96Decimal  = decimal.NewFromBigInt(Q96, 0)
	q192Decimal = decimal.NewFromBigInt(Q192, 0)
)

// Price is a human-readable price of the base token denominated in the quote token.
// Raw prices (token1 per token0 in smallest units) are what the pool stores.
type Price struct {
	Value        decimal.Decimal
	BaseIsToken0 bool
	Decimals0    uint8
	Decimals1    uint8
}

// Raw converts the price to token1/token0 in raw units. ok is false when the raw
// price is unbounded (a zero price of token1).
func (p Price) Raw() (decimal.Decimal, bool) {
	shift := int32(p.Decimals1) - int32(p.Decimals0)
	if p.BaseIsToken0 {
		if p.Value.Sign() <= 0 {
			return decimal.Zero, true
		}
		return p.Value.Shift(shift), true
	}
	if p.Value.Sign() <= 0 {
		return decimal.Zero, false
	}
	return decimal.New(1, shift).DivRound(p.Value, pricePlaces), true
}

// Invert returns the same price quoted the other way round.
func (p Price) Invert() Price {
	out := Price{
		BaseIsToken0: !p.BaseIsToken0,
		Decimals0:    p.Decimals0,
		Decimals1:    p.Decimals1,
	}
	if p.Value.Sign() > 0 {
		out.Value = decimal.NewFromInt(1).DivRound(p.Value, pricePlaces)
	}
	return out
}

// PriceFromRaw builds a human price from a raw token1/token0 price.
func PriceFromRaw(raw decimal.Decimal, baseIsToken0 bool, decimals0, decimals1 uint8) Price {
	p := Price{BaseIsToken0: baseIsToken0, Decimals0: decimals0, Decimals1: decimals1}
	if raw.Sign() <= 0 {
		return p
	}
	if baseIsToken0 {
		p.Value = raw.Shift(int32(decimals0) - int32(decimals1))
		return p
	}
	p.Value = decimal.New(1, int32(decimals1)-int32(decimals0)).DivRound(raw, pricePlaces)
	return p
}

// SqrtRatioX96ToRawPrice returns (sqrtPriceX96 / 2^96)^2.
func SqrtRatioX96ToRawPrice(sqrtPriceX96 *big.Int) decimal.Decimal {
	num := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	return decimal.NewFromBigInt(num, 0).DivRound(q192Decimal, pricePlaces)
}

// SqrtRatioX96ToDecimal returns sqrtPriceX96 / 2^96.
func SqrtRatioX96ToDecimal(sqrtPriceX96 *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(sqrtPriceX96, 0).DivRound(q96Decimal, pricePlaces)
}

// TickToRawPrice returns 1.0001^tick computed from the exact sqrt ratio.
func TickToRawPrice(tick int32) (decimal.Decimal, error) {
	sqrt, err := GetSqrtRatioAtTick(tick)
	if err != nil {
		return decimal.Zero, err
	}
	return SqrtRatioX96ToRawPrice(sqrt), nil
}

// TickToPrice returns the human price at tick.
func TickToPrice(tick int32, baseIsToken0 bool, decimals0, decimals1 uint8) (Price, error) {
	raw, err := TickToRawPrice(tick)
	if err != nil {
		return Price{}, err
	}
	return PriceFromRaw(raw, baseIsToken0, decimals0, decimals1), nil
}

// RawPriceToSqrtRatioX96 returns floor(sqrt(raw) * 2^96). Out-of-range results are
// not clamped.
func RawPriceToSqrtRatioX96(raw decimal.Decimal) *big.Int {
	if raw.Sign() <= 0 {
		return new(big.Int)
	}
	f := decimalToFloat(raw)
	f.Sqrt(f)
	f.Mul(f, new(big.Float).SetPrec(floatPrec).SetInt(Q96))
	out, _ := f.Int(nil)
	return out
}

// RawPriceToTick returns the tick nearest (in log space) to raw. Prices outside the
// representable range clamp to MinTick or MaxTick instead of failing so ranges at
// the extremes stay constructible.
func RawPriceToTick(raw decimal.Decimal) int32 {
	if raw.Sign() <= 0 {
		return MinTick
	}
	sqrt := RawPriceToSqrtRatioX96(raw)
	if sqrt.Cmp(MinSqrtRatio) <= 0 {
		return MinTick
	}
	if sqrt.Cmp(MaxSqrtRatio) >= 0 {
		return MaxTick
	}
	tick, err := GetTickAtSqrtRatio(sqrt)
	if err != nil {
		return MinTick
	}
	if tick == MaxTick {
		return tick
	}

	// round up when the price is past the geometric midpoint of tick and tick+1
	lower := mustSqrtRatio(tick)
	upper := mustSqrtRatio(tick + 1)
	mid := new(big.Int).Mul(lower, upper)
	if new(big.Int).Mul(sqrt, sqrt).Cmp(mid) >= 0 {
		return tick + 1
	}
	return tick
}

// PriceToTick converts a human price to the nearest tick, clamping at the protocol
// bounds. A zero price clamps toward the side where the base token is worthless.
func PriceToTick(p Price) int32 {
	raw, ok := p.Raw()
	if !ok {
		return MaxTick
	}
	return RawPriceToTick(raw)
}

func decimalToFloat(d decimal.Decimal) *big.Float {
	f, _, err := big.ParseFloat(d.String(), 10, floatPrec, big.ToNearestEven)
	if err != nil {
		return new(big.Float).SetPrec(floatPrec)
	}
	return f
}

func floatToDecimal(f *big.Float) decimal.Decimal {
	d, err := decimal.NewFromString(f.Text('e', 90))
	if err != nil {
		return decimal.Zero
	}
	return d.Round(pricePlaces)
}

// sqrtDecimal returns the square root of a non-negative decimal.
func sqrtDecimal(d decimal.Decimal) decimal.Decimal {
	if d.Sign() <= 0 {
		return decimal.Zero
	}
	f := decimalToFloat(d)
	f.Sqrt(f)
	return floatToDecimal(f)
}
