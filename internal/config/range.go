package config

import (
	"github.com/spf13/pflag"
)

// RangeConfig holds configuration for the range command.
type RangeConfig struct {
	RPCURL string
	Pool   string
	Block  uint64
	Kind   string

	LowerTickOffset int32
	UpperTickOffset int32
	// Lower and Upper are ratios for price-ratio and absolute offsets for price-offset.
	Lower string
	Upper string

	Width      int32
	Proportion string

	// Amount0 and Amount1 are optional raw deposit amounts; when set the
	// liquidity they would mint in the computed range is reported.
	Amount0 string
	Amount1 string

	BaseToken1 bool
	LogLevel   string
}

// LoadRange merges config file, environment variables, and flags into RangeConfig.
func LoadRange(cfgFile string, flags *pflag.FlagSet) (RangeConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"kind":       "tick-offset",
		"proportion": "0.5",
		"log-level":  "info",
	})
	if err != nil {
		return RangeConfig{}, err
	}

	cfg := RangeConfig{
		RPCURL:          v.GetString("rpc"),
		Pool:            v.GetString("pool"),
		Block:           v.GetUint64("block"),
		Kind:            v.GetString("kind"),
		LowerTickOffset: v.GetInt32("lower-tick-offset"),
		UpperTickOffset: v.GetInt32("upper-tick-offset"),
		Lower:           v.GetString("lower"),
		Upper:           v.GetString("upper"),
		Width:           v.GetInt32("width"),
		Proportion:      v.GetString("proportion"),
		Amount0:         v.GetString("amount0"),
		Amount1:         v.GetString("amount1"),
		BaseToken1:      v.GetBool("base-token1"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}
