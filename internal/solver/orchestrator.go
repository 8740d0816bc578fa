package solver

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"liquidityRebalancer/internal/dex"
	"liquidityRebalancer/internal/sim"
	"liquidityRebalancer/internal/v3math"
)

const defaultDeadline = 30 * time.Minute

var decHundred = decimal.NewFromInt(100)

// Config holds the per-chain contract addresses and storage layout.
type Config struct {
	ChainID         uint64
	Automation      common.Address
	PositionManager common.Address
	// NPMApprovalSlot is the base slot of the position manager's operator approvals.
	NPMApprovalSlot uint64
	// ControllerSlot is the base slot of the automation contract's controller flags.
	ControllerSlot uint64
	// RouterWhitelistSlot is the base slot of the automation contract's router whitelist.
	RouterWhitelistSlot uint64
}

// Orchestrator runs ComputeSwapAmount, then the pool branch and every aggregator
// branch concurrently, then ranks what came back.
type Orchestrator struct {
	cfg     Config
	engine  *sim.Engine
	sources []SwapSource
	logger  *zap.Logger
	now     func() time.Time
}

// New builds an orchestrator. The pool source is always added first; sources
// lists the optional aggregator branches.
func New(cfg Config, engine *sim.Engine, sources []SwapSource, logger *zap.Logger) (*Orchestrator, error) {
	if engine == nil {
		return nil, fmt.Errorf("simulation engine is nil")
	}
	if cfg.Automation == (common.Address{}) {
		return nil, fmt.Errorf("automation address is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	all := []SwapSource{PoolSource()}
	for _, src := range sources {
		if src.Kind == SourcePool {
			continue
		}
		all = append(all, src)
	}

	return &Orchestrator{
		cfg:     cfg,
		engine:  engine,
		sources: all,
		logger:  logger.With(zap.Uint64("chain_id", cfg.ChainID)),
		now:     time.Now,
	}, nil
}

// plan is everything the branches share once the swap amount is known.
type plan struct {
	req       Request
	tickLower int32
	tickUpper int32
	amount0   *big.Int
	amount1   *big.Int
	liquidity *big.Int
	swap      dex.OptimalSwap
	overrides sim.StateOverrideSet
	deadline  *big.Int
	slippage  decimal.Decimal
}

// Solve quotes req. Failures of the swap amount step or of the pool branch are
// returned as errors; aggregator failures only show up in Result.Unavailable.
func (o *Orchestrator) Solve(ctx context.Context, req Request) (Result, error) {
	p, err := o.computeSwapAmount(ctx, req)
	if err != nil {
		return Result{}, err
	}

	outcomes := make([]outcome, len(o.sources))
	var g errgroup.Group
	for i, src := range o.sources {
		i, src := i, src
		g.Go(func() error {
			outcomes[i] = o.solveBranch(ctx, p, src)
			return nil
		})
	}
	_ = g.Wait()

	result := Result{
		Operation:   req.Operation,
		Pool:        req.Pool.Address,
		Owner:       req.Owner,
		TickLower:   p.tickLower,
		TickUpper:   p.tickUpper,
		OptimalSwap: p.swap,
	}
	for _, out := range outcomes {
		switch out.kind {
		case OutcomeOK:
			result.Candidates = append(result.Candidates, out.candidate)
		case OutcomeFatal:
			return Result{}, fmt.Errorf("%w: %s: %w", ErrNoCandidateAvailable, out.source.Name, out.err)
		case OutcomeUnavailable:
			o.logger.Warn("swap source unavailable",
				zap.String("branch", out.source.Name),
				zap.String("operation", string(req.Operation)),
				zap.Error(out.err),
			)
			result.Unavailable = append(result.Unavailable, Unavailable{
				Source: out.source.Kind,
				Name:   out.source.Name,
				Err:    out.err.Error(),
			})
		}
	}
	if len(result.Candidates) == 0 {
		return Result{}, ErrNoCandidateAvailable
	}

	rank(req.Operation, result.Candidates)
	result.Best = result.Candidates[0]

	if err := o.deriveGuarantees(p, &result); err != nil {
		return Result{}, err
	}
	impact, err := priceImpact(p, result.Best)
	if err != nil {
		return Result{}, err
	}
	result.PriceImpact = impact

	o.logger.Info("solve complete",
		zap.String("operation", string(req.Operation)),
		zap.String("pool", req.Pool.Address.Hex()),
		zap.String("winner", result.Best.Name),
		zap.Int("candidates", len(result.Candidates)),
		zap.Int("unavailable", len(result.Unavailable)),
	)
	return result, nil
}

// computeSwapAmount validates req and resolves the swap every branch must perform.
func (o *Orchestrator) computeSwapAmount(ctx context.Context, req Request) (plan, error) {
	pool := req.Pool
	if pool.SqrtPriceX96 == nil || pool.SqrtPriceX96.Sign() <= 0 {
		return plan{}, fmt.Errorf("pool %s has no price", pool.Address.Hex())
	}
	if req.Slippage.IsNegative() || req.Slippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return plan{}, fmt.Errorf("slippage must be in [0, 1): %s", req.Slippage)
	}

	p := plan{
		req:      req,
		deadline: req.Deadline,
		slippage: req.Slippage,
	}
	if p.deadline == nil {
		p.deadline = big.NewInt(o.now().Add(defaultDeadline).Unix())
	}

	switch req.Operation {
	case OpMint:
		if err := v3math.ValidateRange(req.TickLower, req.TickUpper, pool.TickSpacing); err != nil {
			return plan{}, err
		}
		p.tickLower, p.tickUpper = req.TickLower, req.TickUpper
		p.amount0, p.amount1 = orZero(req.Amount0Desired), orZero(req.Amount1Desired)
	case OpIncrease:
		if req.Position == nil {
			return plan{}, fmt.Errorf("increase requires a position")
		}
		p.tickLower, p.tickUpper = req.Position.TickLower, req.Position.TickUpper
		p.amount0, p.amount1 = orZero(req.Amount0Desired), orZero(req.Amount1Desired)
	case OpRebalance:
		if req.Position == nil {
			return plan{}, fmt.Errorf("rebalance requires a position")
		}
		if err := v3math.ValidateRange(req.TickLower, req.TickUpper, pool.TickSpacing); err != nil {
			return plan{}, err
		}
		a0, a1, err := positionValue(pool.SqrtPriceX96, req.Position.TickLower, req.Position.TickUpper, req.Position.Liquidity, req.Position.TokensOwed0, req.Position.TokensOwed1)
		if err != nil {
			return plan{}, err
		}
		p.tickLower, p.tickUpper = req.TickLower, req.TickUpper
		p.amount0, p.amount1 = a0, a1
	case OpDecrease:
		return o.planDecrease(p)
	default:
		return plan{}, fmt.Errorf("unsupported operation: %q", req.Operation)
	}

	if p.amount0.Sign() == 0 && p.amount1.Sign() == 0 {
		return plan{}, fmt.Errorf("%s: nothing to deposit", req.Operation)
	}

	data, err := dex.PackGetOptimalSwap(pool.Address, p.tickLower, p.tickUpper, p.amount0, p.amount1)
	if err != nil {
		return plan{}, fmt.Errorf("pack getOptimalSwap: %w", err)
	}
	out, err := o.engine.Call(ctx, ethereum.CallMsg{To: &o.cfg.Automation, Data: data}, req.Block)
	if err != nil {
		return plan{}, fmt.Errorf("call getOptimalSwap: %w", err)
	}
	swap, err := dex.UnpackOptimalSwap(out)
	if err != nil {
		return plan{}, err
	}
	p.swap = swap

	switch req.Operation {
	case OpMint, OpIncrease:
		p.overrides = o.engine.TokenOverrides(ctx, req.Owner, o.cfg.Automation, []sim.TokenAmount{
			{Token: pool.Token0.Address, Amount: p.amount0},
			{Token: pool.Token1.Address, Amount: p.amount1},
		}, req.Block)
	case OpRebalance:
		p.overrides = sim.ApprovalOverride(o.cfg.PositionManager, req.Owner, o.cfg.Automation, o.cfg.NPMApprovalSlot).
			Merge(sim.FlagOverride(o.cfg.Automation, req.Owner, o.cfg.ControllerSlot))
	}

	o.logger.Debug("optimal swap",
		zap.String("operation", string(req.Operation)),
		zap.String("amount_in", swap.AmountIn.String()),
		zap.String("amount_out", swap.AmountOut.String()),
		zap.Bool("zero_for_one", swap.ZeroForOne),
	)
	return p, nil
}

// planDecrease derives the withdrawal swap locally: everything received in the
// token being sold is swapped.
func (o *Orchestrator) planDecrease(p plan) (plan, error) {
	pos := p.req.Position
	if pos == nil {
		return plan{}, fmt.Errorf("decrease requires a position")
	}
	liquidity := p.req.Liquidity
	if liquidity == nil {
		liquidity = pos.Liquidity
	}
	if liquidity == nil || liquidity.Sign() <= 0 {
		return plan{}, fmt.Errorf("decrease: liquidity must be positive")
	}
	if pos.Liquidity != nil && liquidity.Cmp(pos.Liquidity) > 0 {
		return plan{}, fmt.Errorf("decrease: liquidity %s exceeds position liquidity %s", liquidity, pos.Liquidity)
	}

	a0, a1, err := positionValue(p.req.Pool.SqrtPriceX96, pos.TickLower, pos.TickUpper, liquidity, pos.TokensOwed0, pos.TokensOwed1)
	if err != nil {
		return plan{}, err
	}
	p.tickLower, p.tickUpper = pos.TickLower, pos.TickUpper
	p.amount0, p.amount1 = a0, a1
	p.liquidity = liquidity

	amountIn := a1
	if p.req.ZeroForOne {
		amountIn = a0
	}
	p.swap = dex.OptimalSwap{
		AmountIn:     new(big.Int).Set(amountIn),
		AmountOut:    new(big.Int),
		ZeroForOne:   p.req.ZeroForOne,
		SqrtPriceX96: p.req.Pool.SqrtPriceX96,
	}
	p.overrides = sim.ApprovalOverride(o.cfg.PositionManager, p.req.Owner, o.cfg.Automation, o.cfg.NPMApprovalSlot)
	return p, nil
}

// solveBranch never returns OutcomeFatal for an optional source.
func (o *Orchestrator) solveBranch(ctx context.Context, p plan, src SwapSource) outcome {
	candidate, err := o.solve(ctx, p, src)
	if err == nil {
		return outcome{kind: OutcomeOK, source: src, candidate: candidate}
	}
	if src.Kind == SourcePool {
		return outcome{kind: OutcomeFatal, source: src, err: err}
	}
	if !errors.Is(err, ErrExternalSolverUnavailable) {
		err = fmt.Errorf("%w: %s: %w", ErrExternalSolverUnavailable, src.Name, err)
	}
	return outcome{kind: OutcomeUnavailable, source: src, err: err}
}

func (o *Orchestrator) solve(ctx context.Context, p plan, src SwapSource) (Candidate, error) {
	pool := p.req.Pool
	tokenIn, tokenOut := pool.Token1.Address, pool.Token0.Address
	if p.swap.ZeroForOne {
		tokenIn, tokenOut = tokenOut, tokenIn
	}

	var sp swapPlan
	if src.Kind == SourcePool || p.swap.AmountIn.Sign() == 0 {
		if src.Kind != SourcePool {
			return Candidate{}, fmt.Errorf("%w: %s: no swap required", ErrExternalSolverUnavailable, src.Name)
		}
		sp = swapPlan{path: SwapPath{
			TokenIn:    tokenIn,
			TokenOut:   tokenOut,
			ZeroForOne: p.swap.ZeroForOne,
			AmountIn:   p.swap.AmountIn,
			AmountOut:  p.swap.AmountOut,
			Route:      string(SourcePool),
		}}
	} else {
		var err error
		sp, err = src.plan(ctx, swapRequest{
			chainID:         o.cfg.ChainID,
			tokenIn:         tokenIn,
			tokenOut:        tokenOut,
			amountIn:        p.swap.AmountIn,
			zeroForOne:      p.swap.ZeroForOne,
			expectedOut:     p.swap.AmountOut,
			executor:        o.cfg.Automation,
			slippagePercent: p.slippage.Mul(decHundred),
		})
		if err != nil {
			return Candidate{}, err
		}
	}

	overrides := p.overrides
	if src.Kind == SourceAggregator {
		overrides = overrides.Merge(sim.FlagOverride(o.cfg.Automation, sp.router, o.cfg.RouterWhitelistSlot))
	}

	data, err := o.packCall(p, sp.swapData)
	if err != nil {
		return Candidate{}, err
	}
	msg := ethereum.CallMsg{From: p.req.Owner, To: &o.cfg.Automation, Data: data}
	out, err := o.engine.Simulate(ctx, msg, overrides, p.req.Block)
	if err != nil {
		return Candidate{}, fmt.Errorf("simulate %s via %s: %w", p.req.Operation, src.Name, err)
	}

	candidate := Candidate{Source: src.Kind, Name: src.Name, SwapData: sp.swapData, Path: sp.path}
	if err := unpackCall(p, out, &candidate); err != nil {
		return Candidate{}, err
	}
	if p.req.Operation == OpDecrease && src.Kind == SourcePool {
		candidate.Path.AmountOut = decreaseSwapOutput(p, candidate.AmountOut)
	}
	return candidate, nil
}

func (o *Orchestrator) packCall(p plan, swapData []byte) ([]byte, error) {
	req := p.req
	pool := req.Pool
	mint := dex.MintParams{
		Token0:         pool.Token0.Address,
		Token1:         pool.Token1.Address,
		Fee:            pool.Fee,
		TickLower:      p.tickLower,
		TickUpper:      p.tickUpper,
		Amount0Desired: p.amount0,
		Amount1Desired: p.amount1,
		Recipient:      req.Owner,
		Deadline:       p.deadline,
	}

	var data []byte
	var err error
	switch req.Operation {
	case OpMint:
		data, err = dex.PackMintOptimal(mint, swapData)
	case OpIncrease:
		data, err = dex.PackIncreaseLiquidityOptimal(dex.IncreaseParams{
			TokenID:        req.Position.TokenID,
			Amount0Desired: p.amount0,
			Amount1Desired: p.amount1,
			Deadline:       p.deadline,
		}, swapData)
	case OpDecrease:
		data, err = dex.PackDecreaseLiquiditySingle(dex.DecreaseParams{
			TokenID:   req.Position.TokenID,
			Liquidity: p.liquidity,
			Deadline:  p.deadline,
		}, p.swap.ZeroForOne, swapData)
	case OpRebalance:
		data, err = dex.PackRebalance(mint, req.Position.TokenID, swapData)
	default:
		err = fmt.Errorf("unsupported operation: %q", req.Operation)
	}
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", req.Operation, err)
	}
	return data, nil
}

func unpackCall(p plan, out []byte, c *Candidate) error {
	var res dex.DepositResult
	var err error
	switch p.req.Operation {
	case OpMint:
		res, err = dex.UnpackMintOptimal(out)
	case OpIncrease:
		res, err = dex.UnpackIncreaseLiquidityOptimal(out)
		res.TokenID = p.req.Position.TokenID
	case OpRebalance:
		res, err = dex.UnpackRebalance(out)
	case OpDecrease:
		amount, err := dex.UnpackDecreaseLiquiditySingle(out)
		if err != nil {
			return err
		}
		c.AmountOut = amount
		return nil
	}
	if err != nil {
		return err
	}
	c.TokenID = res.TokenID
	c.Liquidity = res.Liquidity
	c.Amount0 = res.Amount0
	c.Amount1 = res.Amount1
	return nil
}

// rank orders candidates best first. The sort is stable and the pool candidate
// comes first, so it wins every tie.
func rank(op Operation, candidates []Candidate) {
	metric := func(c Candidate) *big.Int {
		if op.deposits() {
			return orZero(c.Liquidity)
		}
		return orZero(c.AmountOut)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return metric(candidates[i]).Cmp(metric(candidates[j])) > 0
	})
}

// deriveGuarantees sets the minimum amounts the real transaction must enforce.
func (o *Orchestrator) deriveGuarantees(p plan, result *Result) error {
	best := result.Best
	if !p.req.Operation.deposits() {
		result.AmountOutMin = v3math.MinAmountWithSlippage(best.AmountOut, p.slippage)
		return nil
	}
	min0, min1, err := v3math.MintAmountsWithSlippage(p.req.Pool.SqrtPriceX96, p.tickLower, p.tickUpper, orZero(best.Liquidity), p.slippage)
	if err != nil {
		return fmt.Errorf("derive min amounts: %w", err)
	}
	result.Amount0Min = min0
	result.Amount1Min = min1
	return nil
}

// priceImpact compares the achieved exchange rate against the pool mid price:
// |((final1 - init1) / (init0 - final0)) / mid - 1|.
func priceImpact(p plan, best Candidate) (decimal.Decimal, error) {
	init0, init1 := p.amount0, p.amount1
	var final0, final1 *big.Int
	if p.req.Operation.deposits() {
		final0, final1 = orZero(best.Amount0), orZero(best.Amount1)
	} else if p.swap.ZeroForOne {
		final0, final1 = new(big.Int), orZero(best.AmountOut)
	} else {
		final0, final1 = orZero(best.AmountOut), new(big.Int)
	}

	delta0 := new(big.Int).Sub(init0, final0)
	if delta0.Sign() == 0 {
		return decimal.Zero, nil
	}
	delta1 := new(big.Int).Sub(final1, init1)

	mid := v3math.SqrtRatioX96ToRawPrice(p.req.Pool.SqrtPriceX96)
	if mid.IsZero() {
		return decimal.Zero, fmt.Errorf("pool mid price is zero")
	}
	rate := decimal.NewFromBigInt(delta1, 0).DivRound(decimal.NewFromBigInt(delta0, 0), 40)
	return rate.DivRound(mid, 40).Sub(decimal.NewFromInt(1)).Abs(), nil
}

// decreaseSwapOutput is the part of a single-token withdrawal produced by the swap.
func decreaseSwapOutput(p plan, total *big.Int) *big.Int {
	direct := p.amount0
	if p.swap.ZeroForOne {
		direct = p.amount1
	}
	out := new(big.Int).Sub(orZero(total), direct)
	if out.Sign() < 0 {
		return new(big.Int)
	}
	return out
}

// positionValue is what burning liquidity and collecting fees would return at sqrtPrice.
func positionValue(sqrtPrice *big.Int, tickLower, tickUpper int32, liquidity, owed0, owed1 *big.Int) (*big.Int, *big.Int, error) {
	a0, a1, err := v3math.PositionAmounts(sqrtPrice, tickLower, tickUpper, orZero(liquidity))
	if err != nil {
		return nil, nil, fmt.Errorf("position amounts: %w", err)
	}
	return a0.Add(a0, orZero(owed0)), a1.Add(a1, orZero(owed1)), nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
