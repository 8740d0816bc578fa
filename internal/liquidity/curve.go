// Package liquidity rebuilds a pool's active-liquidity curve from per-tick net deltas.
package liquidity

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"liquidityRebalancer/internal/model"
	"liquidityRebalancer/internal/v3math"
)

// ErrNegativeLiquidity signals inconsistent upstream deltas. The curve is still
// returned unclamped so the caller can inspect where it went wrong.
var ErrNegativeLiquidity = errors.New("negative liquidity")

// maxDensePoints bounds Dense output.
const maxDensePoints = 200_000

// Curve maps each initialized tick to the liquidity active from that tick up to the next one.
type Curve struct {
	Ticks     []int32
	Liquidity []*big.Int
	// Below is the liquidity active left of the first initialized tick.
	Below *big.Int
	// CurrentIndex is the entry holding the pool's in-range liquidity, -1 when
	// the current tick is left of every initialized tick.
	CurrentIndex int
}

// ReconstructCurve turns ascending (tick, netDelta) pairs into absolute liquidity.
// The entry at the last tick <= currentTickAligned equals currentLiquidity exactly.
// Moving right adds each tick's delta; moving left subtracts the delta of the tick
// being crossed. Negative values are kept and reported with ErrNegativeLiquidity.
func ReconstructCurve(deltas []model.TickLiquidityDelta, currentTickAligned int32, currentLiquidity *big.Int) (Curve, error) {
	if currentLiquidity == nil {
		currentLiquidity = new(big.Int)
	}
	for i := 1; i < len(deltas); i++ {
		if deltas[i].Tick <= deltas[i-1].Tick {
			return Curve{}, fmt.Errorf("deltas not strictly ascending at index %d (tick %d after %d)", i, deltas[i].Tick, deltas[i-1].Tick)
		}
	}

	n := len(deltas)
	curve := Curve{
		Ticks:     make([]int32, n),
		Liquidity: make([]*big.Int, n),
	}
	for i, d := range deltas {
		curve.Ticks[i] = d.Tick
	}

	idx := sort.Search(n, func(i int) bool { return deltas[i].Tick > currentTickAligned }) - 1
	curve.CurrentIndex = idx

	liquidity := new(big.Int).Set(currentLiquidity)
	if idx >= 0 {
		curve.Liquidity[idx] = new(big.Int).Set(liquidity)
	}
	for i := idx + 1; i < n; i++ {
		liquidity.Add(liquidity, netOf(deltas[i]))
		curve.Liquidity[i] = new(big.Int).Set(liquidity)
	}

	liquidity.Set(currentLiquidity)
	for i := idx - 1; i >= 0; i-- {
		liquidity.Sub(liquidity, netOf(deltas[i+1]))
		curve.Liquidity[i] = new(big.Int).Set(liquidity)
	}
	if n > 0 && idx >= 0 {
		curve.Below = new(big.Int).Sub(curve.Liquidity[0], netOf(deltas[0]))
	} else {
		curve.Below = new(big.Int).Set(currentLiquidity)
	}

	for i, l := range curve.Liquidity {
		if l.Sign() < 0 {
			return curve, fmt.Errorf("%w: tick %d: %s", ErrNegativeLiquidity, curve.Ticks[i], l)
		}
	}
	if curve.Below.Sign() < 0 {
		return curve, fmt.Errorf("%w: below first initialized tick: %s", ErrNegativeLiquidity, curve.Below)
	}
	return curve, nil
}

func netOf(d model.TickLiquidityDelta) *big.Int {
	if d.LiquidityNet == nil {
		return new(big.Int)
	}
	return d.LiquidityNet
}

// LiquidityAt returns the liquidity active at tick.
func (c Curve) LiquidityAt(tick int32) *big.Int {
	i := sort.Search(len(c.Ticks), func(i int) bool { return c.Ticks[i] > tick }) - 1
	if i < 0 {
		if c.Below == nil {
			return new(big.Int)
		}
		return new(big.Int).Set(c.Below)
	}
	return new(big.Int).Set(c.Liquidity[i])
}

// Point is liquidity sampled at one usable tick.
type Point struct {
	Tick      int32
	Liquidity *big.Int
}

// Dense samples the curve at every usable tick in [lower, upper].
func (c Curve) Dense(spacing, lower, upper int32) ([]Point, error) {
	if spacing <= 0 {
		return nil, fmt.Errorf("tick spacing must be positive: %d", spacing)
	}
	if upper < lower {
		return nil, fmt.Errorf("%w: upper %d below lower %d", v3math.ErrInvalidRange, upper, lower)
	}
	start := v3math.FloorToSpacing(lower, spacing)
	if start < lower {
		start += spacing
	}
	count := (int64(upper)-int64(start))/int64(spacing) + 1
	if count > maxDensePoints {
		return nil, fmt.Errorf("dense range too wide: %d points", count)
	}

	var points []Point
	for tick := int64(start); tick <= int64(upper); tick += int64(spacing) {
		points = append(points, Point{Tick: int32(tick), Liquidity: c.LiquidityAt(int32(tick))})
	}
	return points, nil
}

// AccumulateDeltas folds Mint and Burn events into ascending net deltas per tick.
// Ticks whose net delta cancels to zero are dropped.
func AccumulateDeltas(events []model.LiquidityEvent) []model.TickLiquidityDelta {
	net := make(map[int32]*big.Int)
	add := func(tick int32, v *big.Int) {
		cur, ok := net[tick]
		if !ok {
			cur = new(big.Int)
			net[tick] = cur
		}
		cur.Add(cur, v)
	}

	for _, ev := range events {
		if ev.Amount == nil || ev.Amount.Sign() == 0 {
			continue
		}
		amount := ev.Amount
		if ev.Kind == model.EventBurn {
			amount = new(big.Int).Neg(ev.Amount)
		}
		add(ev.TickLower, amount)
		add(ev.TickUpper, new(big.Int).Neg(amount))
	}

	out := make([]model.TickLiquidityDelta, 0, len(net))
	for tick, v := range net {
		if v.Sign() == 0 {
			continue
		}
		out = append(out, model.TickLiquidityDelta{Tick: tick, LiquidityNet: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tick < out[j].Tick })
	return out
}
