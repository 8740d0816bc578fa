package solver

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"liquidityRebalancer/internal/aggregator"
	"liquidityRebalancer/internal/dex"
)

// SourceKind is the closed set of swap sources.
type SourceKind string

const (
	SourcePool       SourceKind = "pool"
	SourceAggregator SourceKind = "aggregator"
)

// Quoter is an aggregator back-end. aggregator.Client satisfies it.
type Quoter interface {
	Name() string
	Quote(ctx context.Context, req aggregator.QuoteRequest) (aggregator.Quote, error)
}

// SwapSource produces the swap payload a deposit or withdrawal embeds.
type SwapSource struct {
	Kind   SourceKind
	Name   string
	quoter Quoter
}

// PoolSource swaps through the pool itself with an empty payload.
func PoolSource() SwapSource {
	return SwapSource{Kind: SourcePool, Name: string(SourcePool)}
}

// AggregatorSource routes the swap through q.
func AggregatorSource(q Quoter) SwapSource {
	return SwapSource{Kind: SourceAggregator, Name: q.Name(), quoter: q}
}

type swapRequest struct {
	chainID    uint64
	tokenIn    common.Address
	tokenOut   common.Address
	amountIn   *big.Int
	zeroForOne bool
	// expectedOut is the pool's own estimate, when known.
	expectedOut *big.Int
	executor    common.Address
	// slippagePercent is in percent, as aggregator APIs expect.
	slippagePercent decimal.Decimal
}

type swapPlan struct {
	swapData []byte
	router   common.Address
	path     SwapPath
}

func (s SwapSource) plan(ctx context.Context, req swapRequest) (swapPlan, error) {
	path := SwapPath{
		TokenIn:    req.tokenIn,
		TokenOut:   req.tokenOut,
		ZeroForOne: req.zeroForOne,
		AmountIn:   req.amountIn,
		AmountOut:  req.expectedOut,
	}

	switch s.Kind {
	case SourcePool:
		path.Route = string(SourcePool)
		return swapPlan{path: path}, nil
	case SourceAggregator:
		if s.quoter == nil {
			return swapPlan{}, fmt.Errorf("%w: %s: no quoter configured", ErrExternalSolverUnavailable, s.Name)
		}
		quote, err := s.quoter.Quote(ctx, aggregator.QuoteRequest{
			ChainID:         req.chainID,
			TokenIn:         req.tokenIn,
			TokenOut:        req.tokenOut,
			AmountIn:        req.amountIn,
			From:            req.executor,
			SlippagePercent: req.slippagePercent,
		})
		if err != nil {
			return swapPlan{}, fmt.Errorf("%w: %s: %w", ErrExternalSolverUnavailable, s.Name, err)
		}
		path.AmountOut = quote.AmountOut
		path.Route = quote.Route
		if path.Route == "" {
			path.Route = s.Name
		}
		return swapPlan{
			swapData: dex.PackSwapData(quote.Router, quote.ApproveTarget, quote.Data),
			router:   quote.Router,
			path:     path,
		}, nil
	default:
		return swapPlan{}, fmt.Errorf("unsupported swap source: %q", s.Kind)
	}
}
