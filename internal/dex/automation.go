package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// OptimalSwap is the getOptimalSwap result: the swap that balances a deposit using only the pool.
type OptimalSwap struct {
	AmountIn     *big.Int
	AmountOut    *big.Int
	ZeroForOne   bool
	SqrtPriceX96 *big.Int
}

// DepositResult is what mintOptimal, increaseLiquidityOptimal and rebalance report.
type DepositResult struct {
	TokenID   *big.Int
	Liquidity *big.Int
	Amount0   *big.Int
	Amount1   *big.Int
}

// MintParams mirrors INonfungiblePositionManager.MintParams.
type MintParams struct {
	Token0         common.Address
	Token1         common.Address
	Fee            uint32
	TickLower      int32
	TickUpper      int32
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Recipient      common.Address
	Deadline       *big.Int
}

// IncreaseParams mirrors INonfungiblePositionManager.IncreaseLiquidityParams.
type IncreaseParams struct {
	TokenID        *big.Int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Deadline       *big.Int
}

// DecreaseParams mirrors INonfungiblePositionManager.DecreaseLiquidityParams.
type DecreaseParams struct {
	TokenID    *big.Int
	Liquidity  *big.Int
	Amount0Min *big.Int
	Amount1Min *big.Int
	Deadline   *big.Int
}

type mintTuple struct {
	Token0         common.Address `abi:"token0"`
	Token1         common.Address `abi:"token1"`
	Fee            *big.Int       `abi:"fee"`
	TickLower      *big.Int       `abi:"tickLower"`
	TickUpper      *big.Int       `abi:"tickUpper"`
	Amount0Desired *big.Int       `abi:"amount0Desired"`
	Amount1Desired *big.Int       `abi:"amount1Desired"`
	Amount0Min     *big.Int       `abi:"amount0Min"`
	Amount1Min     *big.Int       `abi:"amount1Min"`
	Recipient      common.Address `abi:"recipient"`
	Deadline       *big.Int       `abi:"deadline"`
}

type increaseTuple struct {
	TokenID        *big.Int `abi:"tokenId"`
	Amount0Desired *big.Int `abi:"amount0Desired"`
	Amount1Desired *big.Int `abi:"amount1Desired"`
	Amount0Min     *big.Int `abi:"amount0Min"`
	Amount1Min     *big.Int `abi:"amount1Min"`
	Deadline       *big.Int `abi:"deadline"`
}

type decreaseTuple struct {
	TokenID    *big.Int `abi:"tokenId"`
	Liquidity  *big.Int `abi:"liquidity"`
	Amount0Min *big.Int `abi:"amount0Min"`
	Amount1Min *big.Int `abi:"amount1Min"`
	Deadline   *big.Int `abi:"deadline"`
}

func (p MintParams) tuple() mintTuple {
	return mintTuple{
		Token0:         p.Token0,
		Token1:         p.Token1,
		Fee:            new(big.Int).SetUint64(uint64(p.Fee)),
		TickLower:      big.NewInt(int64(p.TickLower)),
		TickUpper:      big.NewInt(int64(p.TickUpper)),
		Amount0Desired: orZero(p.Amount0Desired),
		Amount1Desired: orZero(p.Amount1Desired),
		Amount0Min:     orZero(p.Amount0Min),
		Amount1Min:     orZero(p.Amount1Min),
		Recipient:      p.Recipient,
		Deadline:       orZero(p.Deadline),
	}
}

// PackSwapData builds the swap payload the automation contract expects:
// router address, approve target, then the router calldata, tightly packed.
// An empty payload tells the contract to swap through the pool itself.
func PackSwapData(router, approveTarget common.Address, calldata []byte) []byte {
	out := make([]byte, 0, 2*common.AddressLength+len(calldata))
	out = append(out, router.Bytes()...)
	out = append(out, approveTarget.Bytes()...)
	return append(out, calldata...)
}

// UnpackSwapData splits a payload built by PackSwapData.
func UnpackSwapData(data []byte) (router, approveTarget common.Address, calldata []byte, err error) {
	if len(data) < 2*common.AddressLength {
		return common.Address{}, common.Address{}, nil, fmt.Errorf("swap data too short: %d bytes", len(data))
	}
	router = common.BytesToAddress(data[:common.AddressLength])
	approveTarget = common.BytesToAddress(data[common.AddressLength : 2*common.AddressLength])
	return router, approveTarget, data[2*common.AddressLength:], nil
}

// PackGetOptimalSwap encodes a getOptimalSwap call.
func PackGetOptimalSwap(pool common.Address, tickLower, tickUpper int32, amount0Desired, amount1Desired *big.Int) ([]byte, error) {
	parsed, err := AutomationABI()
	if err != nil {
		return nil, fmt.Errorf("parse automation abi: %w", err)
	}
	return parsed.Pack("getOptimalSwap", pool, big.NewInt(int64(tickLower)), big.NewInt(int64(tickUpper)), orZero(amount0Desired), orZero(amount1Desired))
}

// UnpackOptimalSwap decodes getOptimalSwap return data.
func UnpackOptimalSwap(data []byte) (OptimalSwap, error) {
	values, err := unpackAutomation("getOptimalSwap", data, 4)
	if err != nil {
		return OptimalSwap{}, err
	}
	amountIn, err := asBigInt(values[0])
	if err != nil {
		return OptimalSwap{}, fmt.Errorf("amountIn: %w", err)
	}
	amountOut, err := asBigInt(values[1])
	if err != nil {
		return OptimalSwap{}, fmt.Errorf("amountOut: %w", err)
	}
	zeroForOne, ok := values[2].(bool)
	if !ok {
		return OptimalSwap{}, fmt.Errorf("zeroForOne: unsupported type %T", values[2])
	}
	sqrtPrice, err := asBigInt(values[3])
	if err != nil {
		return OptimalSwap{}, fmt.Errorf("sqrtPriceX96: %w", err)
	}
	return OptimalSwap{AmountIn: amountIn, AmountOut: amountOut, ZeroForOne: zeroForOne, SqrtPriceX96: sqrtPrice}, nil
}

// PackMintOptimal encodes a mintOptimal call.
func PackMintOptimal(params MintParams, swapData []byte) ([]byte, error) {
	parsed, err := AutomationABI()
	if err != nil {
		return nil, fmt.Errorf("parse automation abi: %w", err)
	}
	return parsed.Pack("mintOptimal", params.tuple(), nonNilBytes(swapData))
}

// UnpackMintOptimal decodes mintOptimal return data.
func UnpackMintOptimal(data []byte) (DepositResult, error) {
	return unpackDeposit("mintOptimal", data)
}

// PackIncreaseLiquidityOptimal encodes an increaseLiquidityOptimal call.
func PackIncreaseLiquidityOptimal(params IncreaseParams, swapData []byte) ([]byte, error) {
	parsed, err := AutomationABI()
	if err != nil {
		return nil, fmt.Errorf("parse automation abi: %w", err)
	}
	tuple := increaseTuple{
		TokenID:        orZero(params.TokenID),
		Amount0Desired: orZero(params.Amount0Desired),
		Amount1Desired: orZero(params.Amount1Desired),
		Amount0Min:     orZero(params.Amount0Min),
		Amount1Min:     orZero(params.Amount1Min),
		Deadline:       orZero(params.Deadline),
	}
	return parsed.Pack("increaseLiquidityOptimal", tuple, nonNilBytes(swapData))
}

// UnpackIncreaseLiquidityOptimal decodes increaseLiquidityOptimal return data.
// TokenID is left nil since the position is unchanged.
func UnpackIncreaseLiquidityOptimal(data []byte) (DepositResult, error) {
	values, err := unpackAutomation("increaseLiquidityOptimal", data, 3)
	if err != nil {
		return DepositResult{}, err
	}
	ints, err := bigInts(values)
	if err != nil {
		return DepositResult{}, err
	}
	return DepositResult{Liquidity: ints[0], Amount0: ints[1], Amount1: ints[2]}, nil
}

// PackDecreaseLiquiditySingle encodes a decreaseLiquiditySingle call.
func PackDecreaseLiquiditySingle(params DecreaseParams, zeroForOne bool, swapData []byte) ([]byte, error) {
	parsed, err := AutomationABI()
	if err != nil {
		return nil, fmt.Errorf("parse automation abi: %w", err)
	}
	tuple := decreaseTuple{
		TokenID:    orZero(params.TokenID),
		Liquidity:  orZero(params.Liquidity),
		Amount0Min: orZero(params.Amount0Min),
		Amount1Min: orZero(params.Amount1Min),
		Deadline:   orZero(params.Deadline),
	}
	return parsed.Pack("decreaseLiquiditySingle", tuple, zeroForOne, nonNilBytes(swapData))
}

// UnpackDecreaseLiquiditySingle decodes the single-token output amount.
func UnpackDecreaseLiquiditySingle(data []byte) (*big.Int, error) {
	values, err := unpackAutomation("decreaseLiquiditySingle", data, 1)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// PackRebalance encodes a rebalance call that burns tokenID and mints params.
func PackRebalance(params MintParams, tokenID *big.Int, swapData []byte) ([]byte, error) {
	parsed, err := AutomationABI()
	if err != nil {
		return nil, fmt.Errorf("parse automation abi: %w", err)
	}
	return parsed.Pack("rebalance", params.tuple(), orZero(tokenID), nonNilBytes(swapData))
}

// UnpackRebalance decodes rebalance return data.
func UnpackRebalance(data []byte) (DepositResult, error) {
	return unpackDeposit("rebalance", data)
}

func unpackDeposit(method string, data []byte) (DepositResult, error) {
	values, err := unpackAutomation(method, data, 4)
	if err != nil {
		return DepositResult{}, err
	}
	ints, err := bigInts(values)
	if err != nil {
		return DepositResult{}, err
	}
	return DepositResult{TokenID: ints[0], Liquidity: ints[1], Amount0: ints[2], Amount1: ints[3]}, nil
}

func unpackAutomation(method string, data []byte, want int) ([]interface{}, error) {
	parsed, err := AutomationABI()
	if err != nil {
		return nil, fmt.Errorf("parse automation abi: %w", err)
	}
	values, err := parsed.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != want {
		return nil, fmt.Errorf("unexpected %s values: %d", method, len(values))
	}
	return values, nil
}

func bigInts(values []interface{}) ([]*big.Int, error) {
	out := make([]*big.Int, 0, len(values))
	for _, value := range values {
		v, err := asBigInt(value)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
