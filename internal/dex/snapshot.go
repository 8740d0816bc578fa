package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityRebalancer/internal/model"
)

// Caller is the read-only slice of the chain client used for snapshots.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TokenMetaCache caches token metadata by address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]model.TokenMeta)}
}

func (c *TokenMetaCache) Get(address common.Address) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// FetchPool reads token addresses, fee, spacing, slot0 and in-range liquidity of a pool.
// A nil block reads the latest state.
func FetchPool(ctx context.Context, caller Caller, chainID uint64, pool common.Address, block *big.Int, tokenCache *TokenMetaCache, logger *zap.Logger) (model.Pool, error) {
	if caller == nil {
		return model.Pool{}, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	poolABI, err := V3PoolABI()
	if err != nil {
		return model.Pool{}, fmt.Errorf("parse pool abi: %w", err)
	}

	values, err := callMethod(ctx, caller, pool, poolABI, "token0", block)
	if err != nil {
		return model.Pool{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return model.Pool{}, fmt.Errorf("token0: %w", err)
	}

	values, err = callMethod(ctx, caller, pool, poolABI, "token1", block)
	if err != nil {
		return model.Pool{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return model.Pool{}, fmt.Errorf("token1: %w", err)
	}

	values, err = callMethod(ctx, caller, pool, poolABI, "fee", block)
	if err != nil {
		return model.Pool{}, err
	}
	feeInt, err := asBigInt(values[0])
	if err != nil {
		return model.Pool{}, fmt.Errorf("fee: %w", err)
	}

	values, err = callMethod(ctx, caller, pool, poolABI, "tickSpacing", block)
	if err != nil {
		return model.Pool{}, err
	}
	tickSpacingInt, err := asBigInt(values[0])
	if err != nil {
		return model.Pool{}, fmt.Errorf("tick spacing: %w", err)
	}
	tickSpacing, err := int24FromBig(tickSpacingInt)
	if err != nil {
		return model.Pool{}, fmt.Errorf("tick spacing: %w", err)
	}
	if tickSpacing <= 0 {
		return model.Pool{}, fmt.Errorf("tick spacing must be positive: %d", tickSpacing)
	}

	values, err = callMethod(ctx, caller, pool, poolABI, "slot0", block)
	if err != nil {
		return model.Pool{}, err
	}
	if len(values) < 2 {
		return model.Pool{}, fmt.Errorf("unexpected slot0 values: %d", len(values))
	}
	sqrtPrice, err := asBigInt(values[0])
	if err != nil {
		return model.Pool{}, fmt.Errorf("slot0 sqrt price: %w", err)
	}
	tickInt, err := asBigInt(values[1])
	if err != nil {
		return model.Pool{}, fmt.Errorf("slot0 tick: %w", err)
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.Pool{}, fmt.Errorf("slot0 tick: %w", err)
	}

	values, err = callMethod(ctx, caller, pool, poolABI, "liquidity", block)
	if err != nil {
		return model.Pool{}, err
	}
	liquidity, err := asBigInt(values[0])
	if err != nil {
		return model.Pool{}, fmt.Errorf("liquidity: %w", err)
	}

	meta0, err := cachedTokenMeta(ctx, caller, token0, tokenCache, logger)
	if err != nil {
		return model.Pool{}, fmt.Errorf("token0 metadata: %w", err)
	}
	meta1, err := cachedTokenMeta(ctx, caller, token1, tokenCache, logger)
	if err != nil {
		return model.Pool{}, fmt.Errorf("token1 metadata: %w", err)
	}

	snapshot := model.Pool{
		ChainID:      chainID,
		Address:      pool,
		Token0:       meta0,
		Token1:       meta1,
		Fee:          uint32(feeInt.Uint64()),
		TickSpacing:  tickSpacing,
		Tick:         tick,
		SqrtPriceX96: sqrtPrice,
		Liquidity:    liquidity,
	}
	if block != nil && block.IsUint64() {
		snapshot.BlockNumber = block.Uint64()
	}
	return snapshot, nil
}

func cachedTokenMeta(ctx context.Context, caller Caller, token common.Address, cache *TokenMetaCache, logger *zap.Logger) (model.TokenMeta, error) {
	if cache != nil {
		if meta, ok := cache.Get(token); ok {
			return meta, nil
		}
	}
	meta, err := FetchTokenMeta(ctx, caller, token, logger)
	if err != nil {
		return meta, err
	}
	if cache != nil {
		cache.Set(token, meta)
	}
	return meta, nil
}

// FetchPosition reads a position-manager NFT and its owner.
func FetchPosition(ctx context.Context, caller Caller, positionManager common.Address, tokenID *big.Int, block *big.Int) (model.Position, error) {
	if caller == nil {
		return model.Position{}, fmt.Errorf("chain client is nil")
	}
	if tokenID == nil || tokenID.Sign() <= 0 {
		return model.Position{}, fmt.Errorf("token id must be positive")
	}

	npmABI, err := PositionManagerABI()
	if err != nil {
		return model.Position{}, fmt.Errorf("parse position manager abi: %w", err)
	}

	values, err := callMethod(ctx, caller, positionManager, npmABI, "positions", block, tokenID)
	if err != nil {
		return model.Position{}, err
	}
	if len(values) != 12 {
		return model.Position{}, fmt.Errorf("unexpected positions values: %d", len(values))
	}

	token0, err := asAddress(values[2])
	if err != nil {
		return model.Position{}, fmt.Errorf("token0: %w", err)
	}
	token1, err := asAddress(values[3])
	if err != nil {
		return model.Position{}, fmt.Errorf("token1: %w", err)
	}
	fee, err := asBigInt(values[4])
	if err != nil {
		return model.Position{}, fmt.Errorf("fee: %w", err)
	}
	lowerInt, err := asBigInt(values[5])
	if err != nil {
		return model.Position{}, fmt.Errorf("tick lower: %w", err)
	}
	tickLower, err := int24FromBig(lowerInt)
	if err != nil {
		return model.Position{}, fmt.Errorf("tick lower: %w", err)
	}
	upperInt, err := asBigInt(values[6])
	if err != nil {
		return model.Position{}, fmt.Errorf("tick upper: %w", err)
	}
	tickUpper, err := int24FromBig(upperInt)
	if err != nil {
		return model.Position{}, fmt.Errorf("tick upper: %w", err)
	}
	liquidity, err := asBigInt(values[7])
	if err != nil {
		return model.Position{}, fmt.Errorf("liquidity: %w", err)
	}
	owed0, err := asBigInt(values[10])
	if err != nil {
		return model.Position{}, fmt.Errorf("tokens owed0: %w", err)
	}
	owed1, err := asBigInt(values[11])
	if err != nil {
		return model.Position{}, fmt.Errorf("tokens owed1: %w", err)
	}

	values, err = callMethod(ctx, caller, positionManager, npmABI, "ownerOf", block, tokenID)
	if err != nil {
		return model.Position{}, err
	}
	owner, err := asAddress(values[0])
	if err != nil {
		return model.Position{}, fmt.Errorf("owner: %w", err)
	}

	return model.Position{
		TokenID:     new(big.Int).Set(tokenID),
		Owner:       owner,
		Token0:      token0,
		Token1:      token1,
		Fee:         uint32(fee.Uint64()),
		TickLower:   tickLower,
		TickUpper:   tickUpper,
		Liquidity:   liquidity,
		TokensOwed0: owed0,
		TokensOwed1: owed1,
	}, nil
}

func callMethod(ctx context.Context, caller Caller, to common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

// FetchTokenMeta loads token metadata via ERC20 calls.
// Decimals are required; symbol and name fall back to bytes32 getters and are optional.
func FetchTokenMeta(ctx context.Context, caller Caller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token}
	if caller == nil {
		return meta, fmt.Errorf("chain client is nil")
	}

	stringABI, err := ERC20ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := callMethod(ctx, caller, token, stringABI, "decimals", nil)
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	if values, err := callMethod(ctx, caller, token, stringABI, "symbol", nil); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if values, err := callMethod(ctx, caller, token, bytes32ABI, "symbol", nil); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.Symbol = symbol
		}
	} else if logger != nil {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	if values, err := callMethod(ctx, caller, token, stringABI, "name", nil); err == nil {
		if name, ok := values[0].(string); ok {
			meta.Name = name
		}
	} else if values, err := callMethod(ctx, caller, token, bytes32ABI, "name", nil); err == nil {
		if name, ok := bytes32ToString(values[0]); ok {
			meta.Name = name
		}
	} else if logger != nil {
		logger.Debug("name call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("uint8 overflow: %s", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
