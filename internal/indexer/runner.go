package indexer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"liquidityRebalancer/internal/dex"
	"liquidityRebalancer/internal/liquidity"
	"liquidityRebalancer/internal/model"
)

// LogFetcher is the subset of the chain client the runner reads from.
type LogFetcher interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// EventSink receives decoded events after each batch.
type EventSink interface {
	PutEventBatch(events []model.LiquidityEvent) error
}

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	FromBlock     uint64
	ToBlock       uint64
	BatchSize     uint64
	MaxRetries    int
	RetryBackoff  time.Duration
	MaxRetryDelay time.Duration
	Topic0Map     map[string]string
}

// Runner scans pool Mint and Burn logs and folds them into tick deltas.
type Runner struct {
	cfg     RunConfig
	chain   LogFetcher
	decoder *dex.V3PoolDecoder
	sink    EventSink
	logger  *zap.Logger
}

var _ liquidity.Source = (*Runner)(nil)

// NewRunner builds a Runner. sink may be nil.
func NewRunner(cfg RunConfig, fetcher LogFetcher, sink EventSink, logger *zap.Logger) (*Runner, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if cfg.BatchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	decoder, err := dex.NewV3PoolDecoder(dex.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}
	return &Runner{
		cfg:     cfg,
		chain:   fetcher,
		decoder: decoder,
		sink:    sink,
		logger:  logger,
	}, nil
}

// Deltas collects the pool's liquidity events and accumulates them per tick.
func (r *Runner) Deltas(ctx context.Context, pool common.Address) ([]model.TickLiquidityDelta, error) {
	events, err := r.Collect(ctx, []common.Address{pool})
	if err != nil {
		return nil, err
	}
	return liquidity.AccumulateDeltas(events), nil
}

// Collect returns every Mint and Burn event emitted by pools in the configured block range.
func (r *Runner) Collect(ctx context.Context, pools []common.Address) ([]model.LiquidityEvent, error) {
	if len(pools) == 0 {
		return nil, fmt.Errorf("at least one address is required")
	}

	chainID, err := r.chain.GetChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return nil, fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.chain.LatestBlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}
	if from > to {
		r.logger.Info("nothing to scan", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil, nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	topics := r.decoder.Topics()
	seen := make(map[string]struct{})
	var events []model.LiquidityEvent

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		logs, err := r.filterLogsWithRetry(ctx, blockRange, pools, topics)
		if err != nil {
			return nil, fmt.Errorf("filter logs: %w", err)
		}

		batch := make([]model.LiquidityEvent, 0, len(logs))
		for _, log := range logs {
			if log.Removed || isDuplicate(seen, log) {
				continue
			}
			event, ok, err := r.decodeLog(chainIDValue, log)
			if err != nil {
				return nil, err
			}
			if ok {
				batch = append(batch, event)
			}
		}

		if r.sink != nil && len(batch) > 0 {
			if err := r.sink.PutEventBatch(batch); err != nil {
				return nil, fmt.Errorf("store events: %w", err)
			}
		}
		events = append(events, batch...)

		r.logger.Debug("batch complete",
			zap.Int("events", len(batch)),
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
			zap.Uint64("blocks", blockRange.Blocks()),
		)
	}

	r.logger.Info("log scan complete", zap.Int("events", len(events)), zap.Uint64("from", from), zap.Uint64("to", to))
	return events, nil
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, blockRange BlockRange, pools []common.Address, topics []common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, r.retryPolicy(), func(ctx context.Context) error {
		var err error
		logs, err = r.chain.FilterLogs(ctx, blockRange.From, blockRange.To, pools, topics)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
		}
		return err
	})
	return logs, err
}

// decodeLog turns a Mint or Burn log into an event. Logs with other topics are skipped.
func (r *Runner) decodeLog(chainID uint64, log types.Log) (model.LiquidityEvent, bool, error) {
	if len(log.Topics) == 0 || !r.decoder.CanDecode(log.Topics[0].Hex()) {
		return model.LiquidityEvent{}, false, nil
	}

	topics := make([]string, len(log.Topics))
	for i, topic := range log.Topics {
		topics[i] = topic.Hex()
	}
	event, err := r.decoder.Decode(model.LogRecord{
		ChainID:     chainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxHash:      log.TxHash.Hex(),
		TxIndex:     uint64(log.TxIndex),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(log.Data),
	})
	if err != nil {
		return model.LiquidityEvent{}, false, fmt.Errorf("decode log %s:%d: %w", log.TxHash.Hex(), log.Index, err)
	}
	return event, true, nil
}

func (r *Runner) retryPolicy() retryPolicy {
	return retryPolicy{
		maxRetries: r.cfg.MaxRetries,
		baseDelay:  r.cfg.RetryBackoff,
		maxDelay:   r.cfg.MaxRetryDelay,
	}
}

func isDuplicate(seen map[string]struct{}, log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := seen[id]; ok {
		return true
	}
	seen[id] = struct{}{}
	return false
}
