package sim

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

var (
	// ErrInvalidAccessList means access-list discovery did not isolate exactly two storage keys.
	ErrInvalidAccessList = errors.New("invalid access list")
	// ErrSimulationFailed means both the override call and the plain fallback failed.
	ErrSimulationFailed = errors.New("simulation failed")
)

// DefaultAccessListTTL bounds how long discovered storage keys are reused.
const DefaultAccessListTTL = 5 * time.Minute

// Backend is the read-only RPC surface the engine needs.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CallContractWithOverrides(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int, overrides map[common.Address]gethclient.OverrideAccount) ([]byte, error)
	CreateAccessList(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) (types.AccessList, error)
}

// Engine simulates write-style calls through eth_call with state overrides.
// One engine is shared per process; its access-list cache is safe for concurrent use.
type Engine struct {
	backend Backend
	cache   *cache.Cache
	logger  *zap.Logger
}

// NewEngine builds an engine. A non-positive ttl selects DefaultAccessListTTL.
func NewEngine(backend Backend, ttl time.Duration, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultAccessListTTL
	}
	return &Engine{
		backend: backend,
		cache:   cache.New(ttl, 2*ttl),
		logger:  logger,
	}
}

// Call performs a plain eth_call.
func (e *Engine) Call(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	if e.backend == nil {
		return nil, fmt.Errorf("chain backend is nil")
	}
	return e.backend.CallContract(ctx, msg, block)
}

// Simulate runs msg with overrides attached. If the override call fails for any
// reason the identical call is retried without overrides; if that fails too the
// result wraps ErrSimulationFailed and both underlying errors.
func (e *Engine) Simulate(ctx context.Context, msg ethereum.CallMsg, overrides StateOverrideSet, block *big.Int) ([]byte, error) {
	if e.backend == nil {
		return nil, fmt.Errorf("chain backend is nil")
	}

	if overrides.Len() == 0 {
		out, err := e.backend.CallContract(ctx, msg, block)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSimulationFailed, err)
		}
		return out, nil
	}

	out, overrideErr := e.backend.CallContractWithOverrides(ctx, msg, block, overrides.Geth())
	if overrideErr == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrSimulationFailed, overrideErr)
	}

	e.logger.Warn("override call failed, retrying without overrides",
		zap.String("to", addressString(msg.To)),
		zap.Int("override_slots", overrides.Len()),
		zap.Error(overrideErr),
	)

	out, plainErr := e.backend.CallContract(ctx, msg, block)
	if plainErr != nil {
		return nil, fmt.Errorf("%w: override call: %v: plain call: %w", ErrSimulationFailed, overrideErr, plainErr)
	}
	return out, nil
}

// accessListKeys returns the storage keys msg touches on contract at block,
// cached by a hash of the request and the block.
func (e *Engine) accessListKeys(ctx context.Context, msg ethereum.CallMsg, contract common.Address, block *big.Int) ([]common.Hash, error) {
	key := requestKey(msg, block)
	if cached, ok := e.cache.Get(key); ok {
		return cached.([]common.Hash), nil
	}

	list, err := e.backend.CreateAccessList(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("create access list: %w", err)
	}

	var keys []common.Hash
	for _, tuple := range list {
		if tuple.Address != contract {
			continue
		}
		keys = append(keys, tuple.StorageKeys...)
	}
	e.cache.SetDefault(key, keys)
	return keys, nil
}

func requestKey(msg ethereum.CallMsg, block *big.Int) string {
	var to []byte
	if msg.To != nil {
		to = msg.To.Bytes()
	}
	tag := []byte("latest")
	if block != nil {
		tag = block.Bytes()
	}
	return crypto.Keccak256Hash(msg.From.Bytes(), to, msg.Data, tag).Hex()
}

func addressString(addr *common.Address) string {
	if addr == nil {
		return ""
	}
	return addr.Hex()
}
