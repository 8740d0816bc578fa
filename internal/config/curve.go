package config

import (
	"time"

	"github.com/spf13/pflag"
)

// CurveConfig holds configuration for the curve command.
type CurveConfig struct {
	RPCURL string
	Pool   string
	Block  uint64
	Source string

	SubgraphURL string
	PageSize    int

	FromBlock     uint64
	ToBlock       uint64
	BatchSize     uint64
	MaxRetries    int
	RetryBackoff  time.Duration
	MaxRetryDelay time.Duration
	Topic0Map     map[string]string
	EventsOut     string

	// Window is the number of usable ticks sampled on each side of the current tick.
	Window int32
	Out    string
	PGDSN  string

	LogLevel string
}

// LoadCurve merges config file, environment variables, and flags into CurveConfig.
func LoadCurve(cfgFile string, flags *pflag.FlagSet) (CurveConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"source":          "subgraph",
		"page-size":       1000,
		"batch-size":      uint64(2000),
		"max-retries":     5,
		"retry-backoff":   500 * time.Millisecond,
		"max-retry-delay": 10 * time.Second,
		"window":          int32(100),
		"out":             "./data/curve.jsonl",
		"log-level":       "info",
	})
	if err != nil {
		return CurveConfig{}, err
	}

	cfg := CurveConfig{
		RPCURL:        v.GetString("rpc"),
		Pool:          v.GetString("pool"),
		Block:         v.GetUint64("block"),
		Source:        v.GetString("source"),
		SubgraphURL:   v.GetString("subgraph-url"),
		PageSize:      v.GetInt("page-size"),
		FromBlock:     v.GetUint64("from"),
		ToBlock:       v.GetUint64("to"),
		BatchSize:     v.GetUint64("batch-size"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		MaxRetryDelay: v.GetDuration("max-retry-delay"),
		Topic0Map:     getStringMap(v, "topic0-map"),
		EventsOut:     v.GetString("events-out"),
		Window:        v.GetInt32("window"),
		Out:           v.GetString("out"),
		PGDSN:         v.GetString("pg-dsn"),
		LogLevel:      v.GetString("log-level"),
	}

	return cfg, nil
}
