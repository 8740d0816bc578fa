package liquidity

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"liquidityRebalancer/internal/model"
)

// Source supplies ascending net liquidity deltas for a pool.
type Source interface {
	Deltas(ctx context.Context, pool common.Address) ([]model.TickLiquidityDelta, error)
}
