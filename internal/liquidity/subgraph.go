package liquidity

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"liquidityRebalancer/internal/model"
	"liquidityRebalancer/internal/v3math"
)

const ticksQuery = `query ticks($pool: String!, $first: Int!, $after: BigInt!) {
  ticks(
    first: $first
    where: {poolAddress: $pool, tickIdx_gt: $after, liquidityNet_not: "0"}
    orderBy: tickIdx
    orderDirection: asc
  ) {
    tickIdx
    liquidityNet
  }
}`

// DefaultPageSize is the subgraph page size; hosted graph nodes cap at 1000.
const DefaultPageSize = 1000

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type tickResponse struct {
	TickIdx      string `json:"tickIdx"`
	LiquidityNet string `json:"liquidityNet"`
}

type ticksResponse struct {
	Data struct {
		Ticks []tickResponse `json:"ticks"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// SubgraphSource pages initialized ticks out of a Uniswap V3 style subgraph,
// using tickIdx as the cursor so pagination never relies on skip.
type SubgraphSource struct {
	url      string
	http     *resty.Client
	pageSize int
	logger   *zap.Logger
}

// NewSubgraphSource builds a source for the GraphQL endpoint url.
func NewSubgraphSource(url string, pageSize int, logger *zap.Logger) (*SubgraphSource, error) {
	if url == "" {
		return nil, fmt.Errorf("subgraph url is required")
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := resty.New().
		SetTimeout(20 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &SubgraphSource{url: url, http: httpClient, pageSize: pageSize, logger: logger}, nil
}

// Deltas returns every initialized tick of pool in ascending order.
func (s *SubgraphSource) Deltas(ctx context.Context, pool common.Address) ([]model.TickLiquidityDelta, error) {
	after := int64(v3math.MinTick) - 1
	var out []model.TickLiquidityDelta

	for {
		page, err := s.page(ctx, pool, after)
		if err != nil {
			return nil, err
		}
		for _, tick := range page {
			if len(out) > 0 && tick.Tick <= out[len(out)-1].Tick {
				return nil, fmt.Errorf("subgraph returned tick %d out of order", tick.Tick)
			}
			out = append(out, tick)
		}

		s.logger.Debug("subgraph page", zap.String("pool", pool.Hex()), zap.Int("ticks", len(page)), zap.Int64("after", after))
		if len(page) < s.pageSize {
			return out, nil
		}
		after = int64(page[len(page)-1].Tick)
	}
}

func (s *SubgraphSource) page(ctx context.Context, pool common.Address, after int64) ([]model.TickLiquidityDelta, error) {
	body := graphQLRequest{
		Query: ticksQuery,
		Variables: map[string]interface{}{
			"pool":  strings.ToLower(pool.Hex()),
			"first": s.pageSize,
			"after": strconv.FormatInt(after, 10),
		},
	}

	var result ticksResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post(s.url)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("query ticks: status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("query ticks: %s", result.Errors[0].Message)
	}

	out := make([]model.TickLiquidityDelta, 0, len(result.Data.Ticks))
	for _, t := range result.Data.Ticks {
		tick, err := strconv.ParseInt(t.TickIdx, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse tickIdx %q: %w", t.TickIdx, err)
		}
		net, ok := new(big.Int).SetString(t.LiquidityNet, 10)
		if !ok {
			return nil, fmt.Errorf("parse liquidityNet %q", t.LiquidityNet)
		}
		out = append(out, model.TickLiquidityDelta{Tick: int32(tick), LiquidityNet: net})
	}
	return out, nil
}
