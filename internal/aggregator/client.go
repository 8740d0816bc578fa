package aggregator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrNoRoute is returned when the aggregator answers without a usable output amount.
var ErrNoRoute = errors.New("no route")

// Kind selects the wire protocol of an aggregator back-end.
type Kind string

const (
	// KindGeneric is POST {base}/quote with a JSON body.
	KindGeneric Kind = "generic"
	// KindOneInch is the 1inch style GET {base}/swap API.
	KindOneInch Kind = "oneinch"
)

// ParseKind validates a configured kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindGeneric:
		return KindGeneric, nil
	case KindOneInch:
		return KindOneInch, nil
	default:
		return "", fmt.Errorf("unsupported aggregator kind: %q", s)
	}
}

// Config describes one aggregator back-end.
type Config struct {
	Name    string
	Kind    Kind
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// QuoteRequest asks for a swap of AmountIn of TokenIn executed by From.
type QuoteRequest struct {
	ChainID         uint64
	TokenIn         common.Address
	TokenOut        common.Address
	AmountIn        *big.Int
	From            common.Address
	SlippagePercent decimal.Decimal
}

// Quote is an executable swap: the router transaction and its expected output.
type Quote struct {
	AmountOut     *big.Int
	Router        common.Address
	ApproveTarget common.Address
	Data          []byte
	Value         *big.Int
	Route         string
}

// Client requests swap quotes from one aggregator back-end.
type Client struct {
	name    string
	kind    Kind
	http    *resty.Client
	limiter *Limiter
	logger  *zap.Logger
}

// New builds a client. Every client sharing limiter is serialized with the others.
func New(cfg Config, limiter *Limiter, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("aggregator %q: base url is required", cfg.Name)
	}
	kind, err := ParseKind(string(cfg.Kind))
	if err != nil {
		return nil, err
	}
	if limiter == nil {
		return nil, fmt.Errorf("aggregator %q: limiter is required", cfg.Name)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	name := cfg.Name
	if name == "" {
		name = string(kind)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetAuthToken(cfg.APIKey)
	}

	return &Client{
		name:    name,
		kind:    kind,
		http:    httpClient,
		limiter: limiter,
		logger:  logger.With(zap.String("aggregator", name)),
	}, nil
}

// Name identifies the back-end in candidates and logs.
func (c *Client) Name() string {
	return c.name
}

// Quote fetches an executable swap, waiting on the shared limiter first.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return Quote{}, fmt.Errorf("quote %s: amount in must be positive", c.name)
	}

	var quote Quote
	err := c.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		switch c.kind {
		case KindGeneric:
			quote, err = c.quoteGeneric(ctx, req)
		case KindOneInch:
			quote, err = c.quoteOneInch(ctx, req)
		default:
			err = fmt.Errorf("unsupported aggregator kind: %q", c.kind)
		}
		return err
	})
	if err != nil {
		return Quote{}, fmt.Errorf("quote %s: %w", c.name, err)
	}
	if quote.AmountOut == nil || quote.AmountOut.Sign() <= 0 {
		return Quote{}, fmt.Errorf("quote %s: %w", c.name, ErrNoRoute)
	}

	c.logger.Debug("quote received",
		zap.String("token_in", req.TokenIn.Hex()),
		zap.String("token_out", req.TokenOut.Hex()),
		zap.String("amount_in", req.AmountIn.String()),
		zap.String("amount_out", quote.AmountOut.String()),
	)
	return quote, nil
}

type txPayload struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

func (tx txPayload) decode() (common.Address, []byte, *big.Int, error) {
	if !common.IsHexAddress(tx.To) {
		return common.Address{}, nil, nil, fmt.Errorf("invalid tx.to: %q", tx.To)
	}
	data, err := hexutil.Decode(tx.Data)
	if err != nil {
		return common.Address{}, nil, nil, fmt.Errorf("invalid tx.data: %w", err)
	}
	value, err := parseAmount(tx.Value)
	if err != nil {
		return common.Address{}, nil, nil, fmt.Errorf("invalid tx.value: %w", err)
	}
	return common.HexToAddress(tx.To), data, value, nil
}

// parseAmount accepts decimal or 0x-prefixed integers; empty means zero.
func parseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return nil, fmt.Errorf("invalid hex amount %q", s)
		}
		return v, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}
