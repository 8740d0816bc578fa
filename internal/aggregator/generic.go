package aggregator

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

type genericQuoteRequest struct {
	ChainID         uint64 `json:"chainId,omitempty"`
	TokenIn         string `json:"tokenIn"`
	TokenOut        string `json:"tokenOut"`
	AmountIn        string `json:"amountIn"`
	FromAddress     string `json:"fromAddress"`
	SlippagePercent string `json:"slippagePercent"`
}

type genericQuoteResponse struct {
	OutputAmount  string    `json:"outputAmount"`
	Tx            txPayload `json:"tx"`
	ApproveTarget string    `json:"approveTarget"`
	Route         string    `json:"route"`
}

func (c *Client) quoteGeneric(ctx context.Context, req QuoteRequest) (Quote, error) {
	body := genericQuoteRequest{
		ChainID:         req.ChainID,
		TokenIn:         req.TokenIn.Hex(),
		TokenOut:        req.TokenOut.Hex(),
		AmountIn:        req.AmountIn.String(),
		FromAddress:     req.From.Hex(),
		SlippagePercent: req.SlippagePercent.String(),
	}

	var result genericQuoteResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&result).
		Post("/quote")
	if err != nil {
		return Quote{}, fmt.Errorf("post quote: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Quote{}, fmt.Errorf("post quote: status %d: %s", resp.StatusCode(), resp.String())
	}

	amountOut, err := parseAmount(result.OutputAmount)
	if err != nil {
		return Quote{}, fmt.Errorf("output amount: %w", err)
	}
	router, data, value, err := result.Tx.decode()
	if err != nil {
		return Quote{}, err
	}

	approveTarget := router
	if result.ApproveTarget != "" {
		if !common.IsHexAddress(result.ApproveTarget) {
			return Quote{}, fmt.Errorf("invalid approve target: %q", result.ApproveTarget)
		}
		approveTarget = common.HexToAddress(result.ApproveTarget)
	}

	return Quote{
		AmountOut:     amountOut,
		Router:        router,
		ApproveTarget: approveTarget,
		Data:          data,
		Value:         value,
		Route:         result.Route,
	}, nil
}
