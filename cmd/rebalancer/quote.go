package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityRebalancer/internal/aggregator"
	"liquidityRebalancer/internal/chain"
	"liquidityRebalancer/internal/config"
	"liquidityRebalancer/internal/dex"
	"liquidityRebalancer/internal/model"
	"liquidityRebalancer/internal/sim"
	"liquidityRebalancer/internal/solver"
	"liquidityRebalancer/internal/storage"
	"liquidityRebalancer/internal/storage/postgres"
)

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Simulate a mint, increase, decrease or rebalance and rank swap sources",
		RunE:  runQuote,
	}

	cmd.Flags().String("rpc", "", "RPC URL (must serve eth_call and eth_createAccessList)")
	cmd.Flags().Uint64("chain-id", 0, "chain id, 0 asks the node")
	cmd.Flags().String("automation", "", "automation contract address")
	cmd.Flags().String("position-manager", "", "nonfungible position manager address")
	cmd.Flags().Uint64("npm-approval-slot", 5, "storage slot of the position manager operator approvals")
	cmd.Flags().Uint64("controller-slot", 2, "storage slot of the automation controller mapping")
	cmd.Flags().Uint64("router-whitelist-slot", 3, "storage slot of the automation router whitelist")
	cmd.Flags().StringSlice("aggregators", nil, "aggregators as name:kind:url (kind is generic or oneinch)")
	cmd.Flags().String("aggregator-api-key", "", "API key sent to flag-configured aggregators")
	cmd.Flags().Duration("aggregator-min-interval", time.Second, "minimum spacing between aggregator requests")
	cmd.Flags().Duration("access-list-ttl", 5*time.Minute, "how long discovered token storage slots are reused")
	cmd.Flags().String("slippage", "0.5", "slippage tolerance in percent")
	cmd.Flags().String("operation", "mint", "mint, increase, decrease or rebalance")
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().String("owner", "", "position owner, defaults to the owner of --token-id")
	cmd.Flags().String("token-id", "", "position token id (increase, decrease, rebalance)")
	cmd.Flags().Int32("tick-lower", 0, "lower tick of the new range (mint, rebalance)")
	cmd.Flags().Int32("tick-upper", 0, "upper tick of the new range (mint, rebalance)")
	cmd.Flags().String("amount0", "", "token0 amount in raw units (mint, increase)")
	cmd.Flags().String("amount1", "", "token1 amount in raw units (mint, increase)")
	cmd.Flags().String("liquidity", "", "liquidity to remove, empty removes all (decrease)")
	cmd.Flags().Bool("zero-for-one", false, "withdraw everything as token1 (decrease)")
	cmd.Flags().Uint64("block", 0, "block number, 0 means latest")
	cmd.Flags().String("out", "", "append the quote to this JSONL file")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN to store the quote")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
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
	op, err := solver.ParseOperation(cfg.Operation)
	if err != nil {
		return err
	}
	automation, err := parseAddress("automation", cfg.Automation)
	if err != nil {
		return err
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

	chainID := cfg.ChainID
	if chainID == 0 {
		id, err := chainClient.GetChainID(ctx)
		if err != nil {
			return fmt.Errorf("get chain id: %w", err)
		}
		chainID = id.Uint64()
	}
	block := blockArg(cfg.Block)

	pool, err := dex.FetchPool(ctx, chainClient, chainID, poolAddress, block, dex.NewTokenMetaCache(), logger)
	if err != nil {
		return err
	}

	req := solver.Request{
		Operation: op,
		Pool:      pool,
		TickLower: cfg.TickLower,
		TickUpper: cfg.TickUpper,
		Slippage:  cfg.SlippagePercent.Shift(-2),
		Block:     block,
	}
	if req.Amount0Desired, err = parseAmount("amount0", cfg.Amount0); err != nil {
		return err
	}
	if req.Amount1Desired, err = parseAmount("amount1", cfg.Amount1); err != nil {
		return err
	}
	if req.Liquidity, err = parseAmount("liquidity", cfg.Liquidity); err != nil {
		return err
	}
	req.ZeroForOne = cfg.ZeroForOne

	var positionManager common.Address
	if cfg.PositionManager != "" {
		if positionManager, err = parseAddress("position-manager", cfg.PositionManager); err != nil {
			return err
		}
	}
	if op != solver.OpMint {
		position, err := loadPosition(ctx, chainClient, positionManager, cfg.TokenID, pool, block)
		if err != nil {
			return err
		}
		req.Position = &position
		req.Owner = position.Owner
	}
	if cfg.Owner != "" {
		if req.Owner, err = parseAddress("owner", cfg.Owner); err != nil {
			return err
		}
	}
	if req.Owner == (common.Address{}) {
		return fmt.Errorf("owner is required")
	}

	engine := sim.NewEngine(chainClient, cfg.AccessListTTL, logger)
	limiter := aggregator.NewLimiter(cfg.AggregatorMinInterval)
	var sources []solver.SwapSource
	for _, agg := range cfg.Aggregators {
		client, err := aggregator.New(aggregator.Config{
			Name:    agg.Name,
			Kind:    aggregator.Kind(agg.Kind),
			BaseURL: agg.BaseURL,
			APIKey:  agg.APIKey,
			Timeout: agg.Timeout,
		}, limiter, logger)
		if err != nil {
			return err
		}
		sources = append(sources, solver.AggregatorSource(client))
	}

	orchestrator, err := solver.New(solver.Config{
		ChainID:             chainID,
		Automation:          automation,
		PositionManager:     positionManager,
		NPMApprovalSlot:     cfg.NPMApprovalSlot,
		ControllerSlot:      cfg.ControllerSlot,
		RouterWhitelistSlot: cfg.RouterWhitelistSlot,
	}, engine, sources, logger)
	if err != nil {
		return err
	}

	logger.Info("quote start",
		zap.Uint64("chain_id", chainID),
		zap.String("operation", string(op)),
		zap.String("pool", pool.Address.Hex()),
		zap.String("owner", req.Owner.Hex()),
		zap.Int("aggregators", len(sources)),
	)

	result, err := orchestrator.Solve(ctx, req)
	if err != nil {
		return err
	}
	record := result.Record(chainID, time.Now())

	if err := storeQuote(ctx, cfg, pool, record, logger); err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), quoteReport(result, record))
}

type quoteOutput struct {
	Quote       model.QuoteRecord   `json:"quote"`
	Candidates  []candidateOutput   `json:"candidates"`
	Unavailable []unavailableOutput `json:"unavailable,omitempty"`
}

type candidateOutput struct {
	Rank        int    `json:"rank"`
	Source      string `json:"source"`
	Name        string `json:"name"`
	Router      string `json:"router,omitempty"`
	TokenIn     string `json:"token_in"`
	TokenOut    string `json:"token_out"`
	AmountIn    string `json:"amount_in"`
	ExpectedOut string `json:"expected_out"`
	Route       string `json:"route,omitempty"`
	Liquidity   string `json:"liquidity,omitempty"`
	Amount0     string `json:"amount0,omitempty"`
	Amount1     string `json:"amount1,omitempty"`
	AmountOut   string `json:"amount_out,omitempty"`
}

type unavailableOutput struct {
	Source string `json:"source"`
	Name   string `json:"name"`
	Error  string `json:"error"`
}

// quoteReport lists every ranked candidate next to the stored record, best first.
func quoteReport(result solver.Result, record model.QuoteRecord) quoteOutput {
	out := quoteOutput{
		Quote:      record,
		Candidates: make([]candidateOutput, 0, len(result.Candidates)),
	}
	for i, c := range result.Candidates {
		row := candidateOutput{
			Rank:        i + 1,
			Source:      string(c.Source),
			Name:        c.Name,
			TokenIn:     c.Path.TokenIn.Hex(),
			TokenOut:    c.Path.TokenOut.Hex(),
			AmountIn:    bigString(c.Path.AmountIn),
			ExpectedOut: bigString(c.Path.AmountOut),
			Route:       c.Path.Route,
			Liquidity:   bigString(c.Liquidity),
			Amount0:     bigString(c.Amount0),
			Amount1:     bigString(c.Amount1),
			AmountOut:   bigString(c.AmountOut),
		}
		if len(c.SwapData) > 0 {
			if router, _, _, err := dex.UnpackSwapData(c.SwapData); err == nil {
				row.Router = router.Hex()
			}
		}
		out.Candidates = append(out.Candidates, row)
	}
	for _, u := range result.Unavailable {
		out.Unavailable = append(out.Unavailable, unavailableOutput{
			Source: string(u.Source),
			Name:   u.Name,
			Error:  u.Err,
		})
	}
	return out
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func loadPosition(ctx context.Context, chainClient *chain.Client, positionManager common.Address, tokenID string, pool model.Pool, block *big.Int) (model.Position, error) {
	if positionManager == (common.Address{}) {
		return model.Position{}, fmt.Errorf("position-manager is required for this operation")
	}
	id, err := parseAmount("token-id", tokenID)
	if err != nil {
		return model.Position{}, err
	}
	if id == nil {
		return model.Position{}, fmt.Errorf("token-id is required for this operation")
	}
	position, err := dex.FetchPosition(ctx, chainClient, positionManager, id, block)
	if err != nil {
		return model.Position{}, err
	}
	if position.Token0 != pool.Token0.Address || position.Token1 != pool.Token1.Address || position.Fee != pool.Fee {
		return model.Position{}, fmt.Errorf("position %s does not belong to pool %s", id, pool.Address.Hex())
	}
	return position, nil
}

func storeQuote(ctx context.Context, cfg config.QuoteConfig, pool model.Pool, record model.QuoteRecord, logger *zap.Logger) error {
	var sinks storage.MultiQuoteSink
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Out))
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
		sinks = append(sinks, store)
	}
	if len(sinks) == 0 {
		return nil
	}
	if err := sinks.PutQuoteBatch(ctx, []model.QuoteRecord{record}); err != nil {
		return fmt.Errorf("store quote: %w", err)
	}
	logger.Info("quote stored", zap.String("out", cfg.Out), zap.Bool("postgres", cfg.PGDSN != ""))
	return nil
}
