package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityRebalancer/internal/chain"
	"liquidityRebalancer/internal/config"
	"liquidityRebalancer/internal/dex"
	"liquidityRebalancer/internal/indexer"
	"liquidityRebalancer/internal/liquidity"
	"liquidityRebalancer/internal/model"
	"liquidityRebalancer/internal/storage"
	"liquidityRebalancer/internal/storage/postgres"
	"liquidityRebalancer/internal/v3math"
)

func newCurveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "curve",
		Short: "Reconstruct a pool's liquidity curve around the current tick",
		RunE:  runCurve,
	}

	cmd.Flags().String("rpc", "", "RPC URL")
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().Uint64("block", 0, "block number for the pool snapshot, 0 means latest")
	cmd.Flags().String("source", "subgraph", "tick source: subgraph or logs")
	cmd.Flags().String("subgraph-url", "", "subgraph GraphQL endpoint (source=subgraph)")
	cmd.Flags().Int("page-size", liquidity.DefaultPageSize, "subgraph page size")
	cmd.Flags().Uint64("from", 0, "first block to scan (source=logs), usually the pool deployment block")
	cmd.Flags().Uint64("to", 0, "last block to scan (source=logs), 0 means latest")
	cmd.Flags().Uint64("batch-size", 2000, "blocks per log request")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts per log request")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().Duration("max-retry-delay", 10*time.Second, "retry backoff cap")
	cmd.Flags().String("topic0-map", "", "extra topic0->event mappings for forks (comma-separated key=value)")
	cmd.Flags().String("events-out", "", "also append decoded Mint/Burn events to this JSONL file (source=logs)")
	cmd.Flags().Int32("window", 100, "usable ticks sampled on each side of the current tick")
	cmd.Flags().String("out", "./data/curve.jsonl", "output JSONL path")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN to record the pool snapshot")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

func runCurve(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadCurve(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.Window <= 0 {
		return fmt.Errorf("window must be positive")
	}
	poolAddress, err := parseAddress("pool", cfg.Pool)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	pool, err := dex.FetchPool(ctx, chainClient, chainID.Uint64(), poolAddress, blockArg(cfg.Block), dex.NewTokenMetaCache(), logger)
	if err != nil {
		return err
	}

	source, err := curveSource(cfg, chainClient, logger)
	if err != nil {
		return err
	}

	logger.Info("curve start",
		zap.String("pool", pool.Address.Hex()),
		zap.String("source", cfg.Source),
		zap.Int32("tick", pool.Tick),
		zap.String("liquidity", pool.Liquidity.String()),
	)

	deltas, err := source.Deltas(ctx, pool.Address)
	if err != nil {
		return fmt.Errorf("load tick deltas: %w", err)
	}

	aligned := v3math.FloorToSpacing(pool.Tick, pool.TickSpacing)
	curve, reconstructErr := liquidity.ReconstructCurve(deltas, aligned, pool.Liquidity)
	if reconstructErr != nil && !errors.Is(reconstructErr, liquidity.ErrNegativeLiquidity) {
		return reconstructErr
	}

	lower := aligned - cfg.Window*pool.TickSpacing
	if lo := v3math.MinUsableTick(pool.TickSpacing); lower < lo {
		lower = lo
	}
	upper := aligned + cfg.Window*pool.TickSpacing
	if hi := v3math.MaxUsableTick(pool.TickSpacing); upper > hi {
		upper = hi
	}
	points, err := curve.Dense(pool.TickSpacing, lower, upper)
	if err != nil {
		return err
	}

	rows := make([]model.CurvePoint, 0, len(points))
	for _, p := range points {
		price, err := v3math.TickToPrice(p.Tick, true, pool.Token0.Decimals, pool.Token1.Decimals)
		if err != nil {
			return err
		}
		rows = append(rows, model.CurvePoint{
			ChainID:   pool.ChainID,
			Pool:      pool.Address.Hex(),
			Tick:      p.Tick,
			Liquidity: p.Liquidity.String(),
			Price:     price.Value.String(),
		})
	}
	if err := storage.NewJsonlStorage(cfg.Out).PutCurveBatch(rows); err != nil {
		return err
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := store.UpsertPools(ctx, []model.Pool{pool}); err != nil {
			return err
		}
	}

	logger.Info("curve written",
		zap.Int("initialized_ticks", len(deltas)),
		zap.Int("points", len(rows)),
		zap.String("out", cfg.Out),
	)
	if reconstructErr != nil {
		return reconstructErr
	}
	return nil
}

func curveSource(cfg config.CurveConfig, chainClient *chain.Client, logger *zap.Logger) (liquidity.Source, error) {
	switch cfg.Source {
	case "subgraph":
		return liquidity.NewSubgraphSource(cfg.SubgraphURL, cfg.PageSize, logger)
	case "logs":
		var sink indexer.EventSink
		if cfg.EventsOut != "" {
			sink = storage.NewJsonlStorage(cfg.EventsOut)
		}
		return indexer.NewRunner(indexer.RunConfig{
			FromBlock:     cfg.FromBlock,
			ToBlock:       cfg.ToBlock,
			BatchSize:     cfg.BatchSize,
			MaxRetries:    cfg.MaxRetries,
			RetryBackoff:  cfg.RetryBackoff,
			MaxRetryDelay: cfg.MaxRetryDelay,
			Topic0Map:     cfg.Topic0Map,
		}, chainClient, sink, logger)
	default:
		return nil, fmt.Errorf("unsupported curve source: %q", cfg.Source)
	}
}
