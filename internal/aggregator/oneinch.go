package aggregator

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

type oneInchProtocol struct {
	Name string `json:"name"`
}

type oneInchSwapResponse struct {
	DstAmount string                `json:"dstAmount"`
	Tx        txPayload             `json:"tx"`
	Protocols [][][]oneInchProtocol `json:"protocols"`
}

func (c *Client) quoteOneInch(ctx context.Context, req QuoteRequest) (Quote, error) {
	var result oneInchSwapResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"src":             req.TokenIn.Hex(),
			"dst":             req.TokenOut.Hex(),
			"amount":          req.AmountIn.String(),
			"from":            req.From.Hex(),
			"slippage":        req.SlippagePercent.String(),
			"disableEstimate": "true",
		}).
		SetResult(&result).
		Get("/swap")
	if err != nil {
		return Quote{}, fmt.Errorf("get swap: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Quote{}, fmt.Errorf("get swap: status %d: %s", resp.StatusCode(), resp.String())
	}

	amountOut, err := parseAmount(result.DstAmount)
	if err != nil {
		return Quote{}, fmt.Errorf("dst amount: %w", err)
	}
	router, data, value, err := result.Tx.decode()
	if err != nil {
		return Quote{}, err
	}

	// the router pulls tokens itself, so it is also the approval target
	return Quote{
		AmountOut:     amountOut,
		Router:        router,
		ApproveTarget: router,
		Data:          data,
		Value:         value,
		Route:         protocolRoute(result.Protocols),
	}, nil
}

func protocolRoute(protocols [][][]oneInchProtocol) string {
	var names []string
	seen := make(map[string]struct{})
	for _, route := range protocols {
		for _, hop := range route {
			for _, part := range hop {
				if _, ok := seen[part.Name]; ok || part.Name == "" {
					continue
				}
				seen[part.Name] = struct{}{}
				names = append(names, part.Name)
			}
		}
	}
	return strings.Join(names, ",")
}
