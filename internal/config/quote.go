package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AggregatorConfig describes one aggregator back-end.
type AggregatorConfig struct {
	Name    string
	Kind    string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// QuoteConfig holds configuration for the quote command.
type QuoteConfig struct {
	RPCURL          string
	ChainID         uint64
	Automation      string
	PositionManager string

	NPMApprovalSlot     uint64
	ControllerSlot      uint64
	RouterWhitelistSlot uint64

	Aggregators           []AggregatorConfig
	AggregatorMinInterval time.Duration
	AccessListTTL         time.Duration
	// SlippagePercent is a percentage, 0.5 for half a percent.
	SlippagePercent decimal.Decimal

	Operation  string
	Pool       string
	Owner      string
	TokenID    string
	TickLower  int32
	TickUpper  int32
	Amount0    string
	Amount1    string
	Liquidity  string
	ZeroForOne bool
	Block      uint64

	Out      string
	PGDSN    string
	LogLevel string
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"npm-approval-slot":       uint64(5),
		"controller-slot":         uint64(2),
		"router-whitelist-slot":   uint64(3),
		"aggregator-min-interval": time.Second,
		"access-list-ttl":         5 * time.Minute,
		"slippage":                "0.5",
		"operation":               "mint",
		"log-level":               "info",
	})
	if err != nil {
		return QuoteConfig{}, err
	}

	slippage, err := decimal.NewFromString(strings.TrimSpace(v.GetString("slippage")))
	if err != nil {
		return QuoteConfig{}, fmt.Errorf("parse slippage: %w", err)
	}
	if slippage.IsNegative() || slippage.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return QuoteConfig{}, fmt.Errorf("slippage must be in [0, 100): %s", slippage)
	}

	aggregators, err := getAggregators(v)
	if err != nil {
		return QuoteConfig{}, err
	}

	cfg := QuoteConfig{
		RPCURL:                v.GetString("rpc"),
		ChainID:               v.GetUint64("chain-id"),
		Automation:            v.GetString("automation"),
		PositionManager:       v.GetString("position-manager"),
		NPMApprovalSlot:       v.GetUint64("npm-approval-slot"),
		ControllerSlot:        v.GetUint64("controller-slot"),
		RouterWhitelistSlot:   v.GetUint64("router-whitelist-slot"),
		Aggregators:           aggregators,
		AggregatorMinInterval: v.GetDuration("aggregator-min-interval"),
		AccessListTTL:         v.GetDuration("access-list-ttl"),
		SlippagePercent:       slippage,
		Operation:             v.GetString("operation"),
		Pool:                  v.GetString("pool"),
		Owner:                 v.GetString("owner"),
		TokenID:               v.GetString("token-id"),
		TickLower:             v.GetInt32("tick-lower"),
		TickUpper:             v.GetInt32("tick-upper"),
		Amount0:               v.GetString("amount0"),
		Amount1:               v.GetString("amount1"),
		Liquidity:             v.GetString("liquidity"),
		ZeroForOne:            v.GetBool("zero-for-one"),
		Block:                 v.GetUint64("block"),
		Out:                   v.GetString("out"),
		PGDSN:                 v.GetString("pg-dsn"),
		LogLevel:              v.GetString("log-level"),
	}

	return cfg, nil
}

// getAggregators reads the aggregators list. A config file may give a list of
// maps with name, kind, base-url, api-key and timeout; flags and env give
// name:kind:url entries sharing aggregator-api-key.
func getAggregators(v *viper.Viper) ([]AggregatorConfig, error) {
	if !v.IsSet("aggregators") {
		return nil, nil
	}

	if items, ok := v.Get("aggregators").([]interface{}); ok && len(items) > 0 {
		if _, isMap := items[0].(map[string]interface{}); isMap {
			out := make([]AggregatorConfig, 0, len(items))
			for i, item := range items {
				m, ok := item.(map[string]interface{})
				if !ok {
					return nil, fmt.Errorf("aggregator %d: expected a map, got %T", i, item)
				}
				agg := AggregatorConfig{
					Name:    cast.ToString(m["name"]),
					Kind:    cast.ToString(m["kind"]),
					BaseURL: cast.ToString(m["base-url"]),
					APIKey:  cast.ToString(m["api-key"]),
					Timeout: cast.ToDuration(m["timeout"]),
				}
				if agg.Kind == "" || agg.BaseURL == "" {
					return nil, fmt.Errorf("aggregator %d: kind and base-url are required", i)
				}
				out = append(out, agg)
			}
			return out, nil
		}
	}

	apiKey := v.GetString("aggregator-api-key")
	var out []AggregatorConfig
	for _, entry := range getStringSlice(v, "aggregators") {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
			return nil, fmt.Errorf("invalid aggregator %q, want name:kind:url", entry)
		}
		out = append(out, AggregatorConfig{
			Name:    parts[0],
			Kind:    parts[1],
			BaseURL: parts[2],
			APIKey:  apiKey,
		})
	}
	return out, nil
}
