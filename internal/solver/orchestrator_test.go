package solver

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/shopspring/decimal"

	"liquidityRebalancer/internal/aggregator"
	"liquidityRebalancer/internal/dex"
	"liquidityRebalancer/internal/model"
	"liquidityRebalancer/internal/sim"
	"liquidityRebalancer/internal/v3math"
)

var (
	poolAddr   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	token0     = common.HexToAddress("0x2000000000000000000000000000000000000002")
	token1     = common.HexToAddress("0x3000000000000000000000000000000000000003")
	automation = common.HexToAddress("0x4000000000000000000000000000000000000004")
	npm        = common.HexToAddress("0x5000000000000000000000000000000000000005")
	owner      = common.HexToAddress("0x6000000000000000000000000000000000000006")
	routerA    = common.HexToAddress("0x7000000000000000000000000000000000000007")
	routerB    = common.HexToAddress("0x8000000000000000000000000000000000000008")
)

const poolKey = "pool"

// fakeChain answers automation calls by method and by the router embedded in swapData.
type fakeChain struct {
	mu sync.Mutex

	optimal     dex.OptimalSwap
	deposits    map[string]dex.DepositResult
	withdrawals map[string]*big.Int
	failing     map[string]bool
	accessLists map[string]types.AccessList
	overrideErr error

	optimalCalls  int
	overrideCalls int
	plainCalls    int
	overrides     []map[common.Address]gethclient.OverrideAccount
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		optimal: dex.OptimalSwap{
			AmountIn:     big.NewInt(500_000),
			AmountOut:    big.NewInt(497_000),
			ZeroForOne:   true,
			SqrtPriceX96: q96(),
		},
		deposits:    make(map[string]dex.DepositResult),
		withdrawals: make(map[string]*big.Int),
		failing:     make(map[string]bool),
		accessLists: make(map[string]types.AccessList),
	}
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	f.plainCalls++
	f.mu.Unlock()
	return f.dispatch(msg)
}

func (f *fakeChain) CallContractWithOverrides(_ context.Context, msg ethereum.CallMsg, _ *big.Int, overrides map[common.Address]gethclient.OverrideAccount) ([]byte, error) {
	f.mu.Lock()
	f.overrideCalls++
	f.overrides = append(f.overrides, overrides)
	err := f.overrideErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.dispatch(msg)
}

func (f *fakeChain) CreateAccessList(_ context.Context, msg ethereum.CallMsg, _ *big.Int) (types.AccessList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list, ok := f.accessLists[accessListKey(*msg.To, msg.Data)]
	if !ok {
		return nil, errors.New("eth_createAccessList not available")
	}
	return list, nil
}

func accessListKey(to common.Address, data []byte) string {
	return fmt.Sprintf("%s:%x", to.Hex(), data[:4])
}

func (f *fakeChain) dispatch(msg ethereum.CallMsg) ([]byte, error) {
	parsed, err := dex.AutomationABI()
	if err != nil {
		return nil, err
	}
	method, err := parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch method.Name {
	case "getOptimalSwap":
		f.optimalCalls++
		return method.Outputs.Pack(f.optimal.AmountIn, f.optimal.AmountOut, f.optimal.ZeroForOne, f.optimal.SqrtPriceX96)
	case "mintOptimal", "increaseLiquidityOptimal", "rebalance":
		key := swapKey(args[len(args)-1].([]byte))
		res, ok := f.deposits[key]
		if !ok || f.failing[key] {
			return nil, fmt.Errorf("execution reverted: %s", key)
		}
		if method.Name == "increaseLiquidityOptimal" {
			return method.Outputs.Pack(res.Liquidity, res.Amount0, res.Amount1)
		}
		return method.Outputs.Pack(res.TokenID, res.Liquidity, res.Amount0, res.Amount1)
	case "decreaseLiquiditySingle":
		key := swapKey(args[2].([]byte))
		out, ok := f.withdrawals[key]
		if !ok || f.failing[key] {
			return nil, fmt.Errorf("execution reverted: %s", key)
		}
		return method.Outputs.Pack(out)
	default:
		return nil, fmt.Errorf("unexpected method %s", method.Name)
	}
}

func swapKey(swapData []byte) string {
	if len(swapData) == 0 {
		return poolKey
	}
	router, _, _, err := dex.UnpackSwapData(swapData)
	if err != nil {
		return "invalid"
	}
	return router.Hex()
}

type fakeQuoter struct {
	name  string
	quote aggregator.Quote
	err   error

	mu   sync.Mutex
	reqs []aggregator.QuoteRequest
}

func (q *fakeQuoter) Name() string { return q.name }

func (q *fakeQuoter) Quote(_ context.Context, req aggregator.QuoteRequest) (aggregator.Quote, error) {
	q.mu.Lock()
	q.reqs = append(q.reqs, req)
	q.mu.Unlock()
	if q.err != nil {
		return aggregator.Quote{}, q.err
	}
	return q.quote, nil
}

func q96() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), 96)
}

func testPool() model.Pool {
	return model.Pool{
		ChainID:      1,
		Address:      poolAddr,
		Token0:       model.TokenMeta{Address: token0, Decimals: 18},
		Token1:       model.TokenMeta{Address: token1, Decimals: 18},
		Fee:          3000,
		TickSpacing:  10,
		Tick:         0,
		SqrtPriceX96: q96(),
		Liquidity:    big.NewInt(1_000_000_000),
	}
}

func testConfig() Config {
	return Config{
		ChainID:             1,
		Automation:          automation,
		PositionManager:     npm,
		NPMApprovalSlot:     5,
		ControllerSlot:      2,
		RouterWhitelistSlot: 3,
	}
}

func mintRequest() Request {
	return Request{
		Operation:      OpMint,
		Pool:           testPool(),
		Owner:          owner,
		TickLower:      -100,
		TickUpper:      100,
		Amount0Desired: big.NewInt(1_000_000),
		Amount1Desired: big.NewInt(0),
		Slippage:       decimal.RequireFromString("0.005"),
	}
}

func poolDeposit(liquidity int64) dex.DepositResult {
	return dex.DepositResult{
		TokenID:   big.NewInt(42),
		Liquidity: big.NewInt(liquidity),
		Amount0:   big.NewInt(480_000),
		Amount1:   big.NewInt(495_000),
	}
}

func newOrchestrator(t *testing.T, chain *fakeChain, quoters ...Quoter) *Orchestrator {
	t.Helper()
	var sources []SwapSource
	for _, q := range quoters {
		sources = append(sources, AggregatorSource(q))
	}
	o, err := New(testConfig(), sim.NewEngine(chain, time.Minute, nil), sources, nil)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return o
}

func TestSolveMintPoolOnly(t *testing.T) {
	chain := newFakeChain()
	chain.deposits[poolKey] = poolDeposit(700_000)

	result, err := newOrchestrator(t, chain).Solve(context.Background(), mintRequest())
	if err != nil {
		t.Fatalf("solve: %v", err)
	}

	if len(result.Candidates) != 1 || result.Best.Source != SourcePool {
		t.Fatalf("expected only the pool candidate, got %+v", result.Candidates)
	}
	if result.Best.Liquidity.Int64() != 700_000 || len(result.Best.SwapData) != 0 {
		t.Fatalf("pool candidate mismatch: %+v", result.Best)
	}
	if result.Best.Path.TokenIn != token0 || result.Best.Path.TokenOut != token1 || result.Best.Path.AmountIn.Int64() != 500_000 {
		t.Fatalf("swap path mismatch: %+v", result.Best.Path)
	}

	// (495000 - 0) / (1000000 - 480000) against a mid price of 1.
	want := decimal.NewFromInt(1).Sub(decimal.RequireFromString("495000").DivRound(decimal.RequireFromString("520000"), 30))
	if result.PriceImpact.Sub(want).Abs().GreaterThan(decimal.RequireFromString("1e-12")) {
		t.Fatalf("price impact mismatch: %s want %s", result.PriceImpact, want)
	}

	min0, min1, err := v3math.MintAmountsWithSlippage(q96(), -100, 100, big.NewInt(700_000), decimal.RequireFromString("0.005"))
	if err != nil {
		t.Fatalf("mint amounts: %v", err)
	}
	if result.Amount0Min.Cmp(min0) != 0 || result.Amount1Min.Cmp(min1) != 0 {
		t.Fatalf("min amounts mismatch: %s/%s want %s/%s", result.Amount0Min, result.Amount1Min, min0, min1)
	}
	if result.Amount0Min.Sign() <= 0 || result.Amount1Min.Sign() <= 0 {
		t.Fatalf("min amounts should be positive: %s/%s", result.Amount0Min, result.Amount1Min)
	}
	if chain.optimalCalls != 1 {
		t.Fatalf("expected one optimal swap call, got %d", chain.optimalCalls)
	}
}

func TestSolveMintAggregatorWins(t *testing.T) {
	chain := newFakeChain()
	chain.deposits[poolKey] = poolDeposit(700_000)
	chain.deposits[routerA.Hex()] = poolDeposit(715_000)

	calldata := []byte{0xde, 0xad, 0xbe, 0xef}
	quoter := &fakeQuoter{name: "agg", quote: aggregator.Quote{
		AmountOut:     big.NewInt(500_500),
		Router:        routerA,
		ApproveTarget: routerA,
		Data:          calldata,
		Route:         "UNISWAP_V3",
	}}

	result, err := newOrchestrator(t, chain, quoter).Solve(context.Background(), mintRequest())
	if err != nil {
		t.Fatalf("solve: %v", err)
	}

	if result.Best.Source != SourceAggregator || result.Best.Name != "agg" {
		t.Fatalf("expected aggregator to win, got %+v", result.Best)
	}
	if string(result.Best.SwapData) != string(dex.PackSwapData(routerA, routerA, calldata)) {
		t.Fatalf("winner swap data mismatch: %x", result.Best.SwapData)
	}
	if result.Best.Path.AmountOut.Int64() != 500_500 || result.Best.Path.Route != "UNISWAP_V3" {
		t.Fatalf("winner path mismatch: %+v", result.Best.Path)
	}
	if len(result.Candidates) != 2 || result.Candidates[1].Source != SourcePool {
		t.Fatalf("pool candidate must stay in the result: %+v", result.Candidates)
	}

	if len(quoter.reqs) != 1 {
		t.Fatalf("expected one quote request, got %d", len(quoter.reqs))
	}
	req := quoter.reqs[0]
	if req.TokenIn != token0 || req.TokenOut != token1 || req.AmountIn.Int64() != 500_000 || req.From != automation {
		t.Fatalf("quote request mismatch: %+v", req)
	}
	if !req.SlippagePercent.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("slippage percent mismatch: %s", req.SlippagePercent)
	}

	whitelist := sim.MappingSlot(routerA, 3)
	found := false
	for _, set := range chain.overrides {
		if acct, ok := set[automation]; ok {
			if _, ok := acct.StateDiff[whitelist]; ok {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("router whitelist override not sent")
	}
}

// rendezvousChain holds every deposit simulation until want of them are in flight.
type rendezvousChain struct {
	*fakeChain

	want    int
	timeout time.Duration

	mu      sync.Mutex
	arrived int
	all     chan struct{}
}

func newRendezvousChain(inner *fakeChain, want int, timeout time.Duration) *rendezvousChain {
	return &rendezvousChain{fakeChain: inner, want: want, timeout: timeout, all: make(chan struct{})}
}

func (c *rendezvousChain) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	if err := c.wait(msg); err != nil {
		return nil, err
	}
	return c.fakeChain.CallContract(ctx, msg, block)
}

func (c *rendezvousChain) CallContractWithOverrides(ctx context.Context, msg ethereum.CallMsg, block *big.Int, overrides map[common.Address]gethclient.OverrideAccount) ([]byte, error) {
	if err := c.wait(msg); err != nil {
		return nil, err
	}
	return c.fakeChain.CallContractWithOverrides(ctx, msg, block, overrides)
}

func (c *rendezvousChain) wait(msg ethereum.CallMsg) error {
	parsed, err := dex.AutomationABI()
	if err != nil {
		return err
	}
	if len(msg.Data) < 4 || string(msg.Data[:4]) != string(parsed.Methods["mintOptimal"].ID) {
		return nil
	}

	c.mu.Lock()
	c.arrived++
	if c.arrived == c.want {
		close(c.all)
	}
	c.mu.Unlock()

	select {
	case <-c.all:
		return nil
	case <-time.After(c.timeout):
		return errors.New("branches did not run concurrently")
	}
}

func TestSolveRunsBranchesConcurrently(t *testing.T) {
	inner := newFakeChain()
	inner.deposits[poolKey] = poolDeposit(700_000)
	inner.deposits[routerA.Hex()] = poolDeposit(715_000)
	chain := newRendezvousChain(inner, 2, 2*time.Second)

	quoter := &fakeQuoter{name: "agg", quote: aggregator.Quote{
		AmountOut:     big.NewInt(500_500),
		Router:        routerA,
		ApproveTarget: routerA,
		Data:          []byte{0x01},
	}}
	o, err := New(testConfig(), sim.NewEngine(chain, time.Minute, nil), []SwapSource{AggregatorSource(quoter)}, nil)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}

	start := time.Now()
	result, err := o.Solve(context.Background(), mintRequest())
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if elapsed > time.Second {
		t.Fatalf("solve took %s, branches ran one after another", elapsed)
	}
	if len(result.Candidates) != 2 || result.Best.Name != "agg" {
		t.Fatalf("expected both branches to produce candidates: %+v", result.Candidates)
	}
}

func TestSolveExcludesFailedAggregators(t *testing.T) {
	chain := newFakeChain()
	chain.deposits[poolKey] = poolDeposit(700_000)
	chain.deposits[routerB.Hex()] = poolDeposit(700_000)

	broken := &fakeQuoter{name: "broken", err: aggregator.ErrNoRoute}
	tie := &fakeQuoter{name: "tie", quote: aggregator.Quote{AmountOut: big.NewInt(1), Router: routerB, ApproveTarget: routerB}}

	result, err := newOrchestrator(t, chain, broken, tie).Solve(context.Background(), mintRequest())
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if result.Best.Source != SourcePool {
		t.Fatalf("ties must favor the pool candidate, got %s", result.Best.Name)
	}
	if len(result.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(result.Candidates))
	}
	if len(result.Unavailable) != 1 || result.Unavailable[0].Name != "broken" || result.Unavailable[0].Source != SourceAggregator {
		t.Fatalf("unavailable mismatch: %+v", result.Unavailable)
	}
}

func TestSolveAggregatorSimulationFailureExcluded(t *testing.T) {
	chain := newFakeChain()
	chain.deposits[poolKey] = poolDeposit(700_000)
	chain.failing[routerA.Hex()] = true

	quoter := &fakeQuoter{name: "agg", quote: aggregator.Quote{AmountOut: big.NewInt(10), Router: routerA, ApproveTarget: routerA}}
	result, err := newOrchestrator(t, chain, quoter).Solve(context.Background(), mintRequest())
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if len(result.Candidates) != 1 || len(result.Unavailable) != 1 {
		t.Fatalf("expected pool candidate and one unavailable, got %+v / %+v", result.Candidates, result.Unavailable)
	}
}

func TestSolvePoolFailureIsFatal(t *testing.T) {
	chain := newFakeChain()
	chain.deposits[routerA.Hex()] = poolDeposit(715_000)

	quoter := &fakeQuoter{name: "agg", quote: aggregator.Quote{AmountOut: big.NewInt(10), Router: routerA, ApproveTarget: routerA}}
	_, err := newOrchestrator(t, chain, quoter).Solve(context.Background(), mintRequest())
	if !errors.Is(err, ErrNoCandidateAvailable) {
		t.Fatalf("expected ErrNoCandidateAvailable, got %v", err)
	}
	if !errors.Is(err, sim.ErrSimulationFailed) {
		t.Fatalf("expected the simulation error to be wrapped, got %v", err)
	}
}

func TestSolveRejectsInvalidRange(t *testing.T) {
	chain := newFakeChain()
	req := mintRequest()
	req.TickLower = -105

	_, err := newOrchestrator(t, chain).Solve(context.Background(), req)
	if !errors.Is(err, v3math.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if chain.optimalCalls != 0 {
		t.Fatalf("optimal swap must not be called for an invalid range")
	}
}

func TestSolveDecreaseToToken1(t *testing.T) {
	chain := newFakeChain()
	chain.withdrawals[poolKey] = big.NewInt(9_900)
	chain.withdrawals[routerA.Hex()] = big.NewInt(10_000)

	position := &model.Position{
		TokenID:     big.NewInt(7),
		Owner:       owner,
		Token0:      token0,
		Token1:      token1,
		Fee:         3000,
		TickLower:   -100,
		TickUpper:   100,
		Liquidity:   big.NewInt(1_000_000),
		TokensOwed0: big.NewInt(13),
		TokensOwed1: big.NewInt(0),
	}
	quoter := &fakeQuoter{name: "agg", quote: aggregator.Quote{AmountOut: big.NewInt(5_000), Router: routerA, ApproveTarget: routerA}}

	result, err := newOrchestrator(t, chain, quoter).Solve(context.Background(), Request{
		Operation:  OpDecrease,
		Pool:       testPool(),
		Owner:      owner,
		Position:   position,
		ZeroForOne: true,
		Slippage:   decimal.RequireFromString("0.005"),
	})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}

	if chain.optimalCalls != 0 {
		t.Fatalf("decrease must not call getOptimalSwap")
	}
	if result.Best.Source != SourceAggregator || result.Best.AmountOut.Int64() != 10_000 {
		t.Fatalf("expected aggregator withdrawal to win, got %+v", result.Best)
	}
	if result.AmountOutMin.Int64() != 9_950 {
		t.Fatalf("amount out min mismatch: %s", result.AmountOutMin)
	}

	a0, a1, err := v3math.PositionAmounts(q96(), -100, 100, big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("position amounts: %v", err)
	}
	wantIn := new(big.Int).Add(a0, big.NewInt(13))
	if quoter.reqs[0].AmountIn.Cmp(wantIn) != 0 || quoter.reqs[0].TokenIn != token0 {
		t.Fatalf("quote request mismatch: %+v", quoter.reqs[0])
	}

	pool := result.Candidates[1]
	if pool.Source != SourcePool {
		t.Fatalf("expected pool candidate second, got %+v", result.Candidates)
	}
	if want := new(big.Int).Sub(big.NewInt(9_900), a1); pool.Path.AmountOut.Cmp(want) != 0 {
		t.Fatalf("pool swap output mismatch: %s want %s", pool.Path.AmountOut, want)
	}

	approval := sim.NestedMappingSlot(owner, automation, 5)
	for _, set := range chain.overrides {
		if _, ok := set[npm].StateDiff[approval]; !ok {
			t.Fatalf("position manager approval override missing: %+v", set)
		}
	}
	if chain.overrideCalls != 2 {
		t.Fatalf("expected both branches to simulate with overrides, got %d", chain.overrideCalls)
	}
}

func TestSolveRebalanceUsesPositionValue(t *testing.T) {
	chain := newFakeChain()
	chain.deposits[poolKey] = dex.DepositResult{
		TokenID:   big.NewInt(43),
		Liquidity: big.NewInt(900_000),
		Amount0:   big.NewInt(4_000),
		Amount1:   big.NewInt(4_000),
	}

	position := &model.Position{
		TokenID:   big.NewInt(7),
		Owner:     owner,
		TickLower: 100,
		TickUpper: 200,
		Liquidity: big.NewInt(1_000_000),
	}
	result, err := newOrchestrator(t, chain).Solve(context.Background(), Request{
		Operation: OpRebalance,
		Pool:      testPool(),
		Owner:     owner,
		Position:  position,
		TickLower: -100,
		TickUpper: 100,
		Slippage:  decimal.RequireFromString("0.01"),
	})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if result.Best.TokenID.Int64() != 43 {
		t.Fatalf("new token id mismatch: %s", result.Best.TokenID)
	}

	controller := sim.MappingSlot(owner, 2)
	approval := sim.NestedMappingSlot(owner, automation, 5)
	if len(chain.overrides) != 1 {
		t.Fatalf("expected one override call, got %d", len(chain.overrides))
	}
	set := chain.overrides[0]
	if _, ok := set[automation].StateDiff[controller]; !ok {
		t.Fatalf("controller override missing")
	}
	if _, ok := set[npm].StateDiff[approval]; !ok {
		t.Fatalf("approval override missing")
	}
}

func TestSolveFallsBackWhenNodeRejectsOverrides(t *testing.T) {
	chain := newFakeChain()
	chain.deposits[poolKey] = poolDeposit(700_000)
	chain.overrideErr = errors.New("invalid argument 2: unsupported")

	erc20, err := dex.ERC20ABI()
	if err != nil {
		t.Fatalf("erc20 abi: %v", err)
	}
	balanceData, _ := erc20.Pack("balanceOf", owner)
	allowanceData, _ := erc20.Pack("allowance", owner, automation)
	impl := common.HexToHash("0x01")
	chain.accessLists[accessListKey(token0, balanceData)] = types.AccessList{
		{Address: token0, StorageKeys: []common.Hash{impl, common.HexToHash("0xb0")}},
	}
	chain.accessLists[accessListKey(token0, allowanceData)] = types.AccessList{
		{Address: token0, StorageKeys: []common.Hash{impl, common.HexToHash("0xa0")}},
	}

	result, err := newOrchestrator(t, chain).Solve(context.Background(), mintRequest())
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if result.Best.Liquidity.Int64() != 700_000 {
		t.Fatalf("unexpected result: %+v", result.Best)
	}
	if chain.overrideCalls != 1 {
		t.Fatalf("expected one override attempt, got %d", chain.overrideCalls)
	}
	if diff := chain.overrides[0][token0].StateDiff; len(diff) != 2 {
		t.Fatalf("expected balance and allowance overrides, got %+v", diff)
	}
}

func TestSolveSkipsOverrideForUnexpectedTokenLayout(t *testing.T) {
	chain := newFakeChain()
	chain.deposits[poolKey] = poolDeposit(700_000)

	erc20, err := dex.ERC20ABI()
	if err != nil {
		t.Fatalf("erc20 abi: %v", err)
	}
	balanceData, _ := erc20.Pack("balanceOf", owner)
	allowanceData, _ := erc20.Pack("allowance", owner, automation)
	chain.accessLists[accessListKey(token0, balanceData)] = types.AccessList{
		{Address: token0, StorageKeys: []common.Hash{common.HexToHash("0xb0"), common.HexToHash("0xb1")}},
	}
	chain.accessLists[accessListKey(token0, allowanceData)] = types.AccessList{
		{Address: token0, StorageKeys: []common.Hash{common.HexToHash("0xa0")}},
	}

	result, err := newOrchestrator(t, chain).Solve(context.Background(), mintRequest())
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if result.Best.Source != SourcePool {
		t.Fatalf("unexpected winner: %+v", result.Best)
	}
	if chain.overrideCalls != 0 {
		t.Fatalf("no override should be sent, got %d calls", chain.overrideCalls)
	}
}

func TestParseOperation(t *testing.T) {
	op, err := ParseOperation(" Rebalance ")
	if err != nil || op != OpRebalance {
		t.Fatalf("unexpected parse: %q %v", op, err)
	}
	if _, err := ParseOperation("swap"); err == nil {
		t.Fatalf("expected error for unknown operation")
	}
}
