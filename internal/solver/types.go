// Package solver picks the best way to balance a concentrated-liquidity
// deposit or withdrawal: the pool's own swap or any configured aggregator route.
package solver

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"liquidityRebalancer/internal/dex"
	"liquidityRebalancer/internal/model"
)

var (
	// ErrNoCandidateAvailable means the pool branch failed, so nothing can be returned.
	ErrNoCandidateAvailable = errors.New("no candidate available")
	// ErrExternalSolverUnavailable marks an aggregator branch excluded from ranking.
	ErrExternalSolverUnavailable = errors.New("external solver unavailable")
)

// Operation is the automation entry point being quoted.
type Operation string

const (
	OpMint      Operation = "mint"
	OpIncrease  Operation = "increase"
	OpDecrease  Operation = "decrease"
	OpRebalance Operation = "rebalance"
)

// ParseOperation normalizes an operation name.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(strings.ToLower(strings.TrimSpace(s))); op {
	case OpMint, OpIncrease, OpDecrease, OpRebalance:
		return op, nil
	default:
		return "", fmt.Errorf("unsupported operation: %q", s)
	}
}

func (op Operation) deposits() bool {
	return op != OpDecrease
}

// Request describes one quote.
//
// Mint uses TickLower, TickUpper and the desired amounts. Increase uses the
// desired amounts and Position. Decrease uses Position, Liquidity and
// ZeroForOne. Rebalance uses Position and the new TickLower and TickUpper;
// its desired amounts come from the position itself.
type Request struct {
	Operation      Operation
	Pool           model.Pool
	Owner          common.Address
	TickLower      int32
	TickUpper      int32
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Position       *model.Position
	// Liquidity to remove on decrease; nil removes all of it.
	Liquidity *big.Int
	// ZeroForOne on decrease withdraws everything as token1.
	ZeroForOne bool
	// Slippage is a fraction, 0.005 for half a percent.
	Slippage decimal.Decimal
	Deadline *big.Int
	Block    *big.Int
}

// SwapPath describes the swap a candidate performs.
type SwapPath struct {
	TokenIn    common.Address
	TokenOut   common.Address
	ZeroForOne bool
	AmountIn   *big.Int
	AmountOut  *big.Int
	Route      string
}

// Candidate is one simulated way of executing the request.
type Candidate struct {
	Source   SourceKind
	Name     string
	SwapData []byte
	Path     SwapPath

	TokenID   *big.Int
	Liquidity *big.Int
	Amount0   *big.Int
	Amount1   *big.Int
	// AmountOut is the single-token output of a decrease.
	AmountOut *big.Int
}

// Unavailable records why an optional branch produced no candidate.
type Unavailable struct {
	Source SourceKind
	Name   string
	Err    string
}

// Result is the ranked outcome of a solve. Candidates is never empty and
// Candidates[0] is Best.
type Result struct {
	Operation   Operation
	Pool        common.Address
	Owner       common.Address
	TickLower   int32
	TickUpper   int32
	OptimalSwap dex.OptimalSwap
	Best        Candidate
	Candidates  []Candidate
	Unavailable []Unavailable

	Amount0Min   *big.Int
	Amount1Min   *big.Int
	AmountOutMin *big.Int
	PriceImpact  decimal.Decimal
}

// OutcomeKind tags how a branch ended.
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeUnavailable
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeUnavailable:
		return "unavailable"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// outcome is the result of one branch. Optional branches never yield OutcomeFatal.
type outcome struct {
	kind      OutcomeKind
	source    SwapSource
	candidate Candidate
	err       error
}
