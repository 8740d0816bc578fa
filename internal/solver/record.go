package solver

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"liquidityRebalancer/internal/model"
)

// Record flattens the winning candidate into the persisted quote form.
func (r Result) Record(chainID uint64, createdAt time.Time) model.QuoteRecord {
	best := r.Best
	rec := model.QuoteRecord{
		ChainID:     chainID,
		Operation:   string(r.Operation),
		Pool:        r.Pool.Hex(),
		Owner:       r.Owner.Hex(),
		TokenID:     optionalString(best.TokenID),
		TickLower:   r.TickLower,
		TickUpper:   r.TickUpper,
		Source:      best.Name,
		ZeroForOne:  best.Path.ZeroForOne,
		AmountIn:    intString(best.Path.AmountIn),
		AmountOut:   intString(best.Path.AmountOut),
		Amount0:     intString(best.Amount0),
		Amount1:     intString(best.Amount1),
		Liquidity:   optionalString(best.Liquidity),
		Amount0Min:  intString(r.Amount0Min),
		Amount1Min:  intString(r.Amount1Min),
		PriceImpact: r.PriceImpact.String(),
		SwapData:    hexutil.Encode(best.SwapData),
		Candidates:  len(r.Candidates),
		CreatedAt:   createdAt.UTC().Format(time.RFC3339Nano),
	}
	if !r.Operation.deposits() {
		// a single-token withdrawal reports its output and minimum in the token bought
		if best.Path.ZeroForOne {
			rec.Amount1, rec.Amount1Min = intString(best.AmountOut), intString(r.AmountOutMin)
		} else {
			rec.Amount0, rec.Amount0Min = intString(best.AmountOut), intString(r.AmountOutMin)
		}
	}
	for _, u := range r.Unavailable {
		rec.Unavailable = append(rec.Unavailable, u.Name+": "+u.Err)
	}
	return rec
}

func intString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func optionalString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}
