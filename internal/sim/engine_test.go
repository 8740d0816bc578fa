package sim

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"

	"liquidityRebalancer/internal/dex"
)

type fakeBackend struct {
	mu sync.Mutex

	accessLists     map[string]types.AccessList
	accessListErr   error
	accessListCalls int
	accessListBlock *big.Int

	overrideErr   error
	plainErr      error
	overrideCalls int
	plainCalls    int
	lastOverrides map[common.Address]gethclient.OverrideAccount
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{accessLists: make(map[string]types.AccessList)}
}

func (f *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plainCalls++
	if f.plainErr != nil {
		return nil, f.plainErr
	}
	return []byte("plain"), nil
}

func (f *fakeBackend) CallContractWithOverrides(_ context.Context, _ ethereum.CallMsg, _ *big.Int, overrides map[common.Address]gethclient.OverrideAccount) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overrideCalls++
	f.lastOverrides = overrides
	if f.overrideErr != nil {
		return nil, f.overrideErr
	}
	return []byte("override"), nil
}

func (f *fakeBackend) CreateAccessList(_ context.Context, msg ethereum.CallMsg, block *big.Int) (types.AccessList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accessListCalls++
	f.accessListBlock = block
	if f.accessListErr != nil {
		return nil, f.accessListErr
	}
	return f.accessLists[string(msg.Data[:4])], nil
}

var (
	testToken   = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testProxy   = common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd")
	testOwner   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testSpender = common.HexToAddress("0x3333333333333333333333333333333333333333")

	balanceSlot   = common.HexToHash("0xb1")
	allowanceSlot = common.HexToHash("0xa1")
	implSlot      = common.HexToHash("0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc")
)

func selector(t *testing.T, method string) string {
	t.Helper()
	erc20, err := dex.ERC20ABI()
	if err != nil {
		t.Fatalf("erc20 abi: %v", err)
	}
	return string(erc20.Methods[method].ID)
}

// proxyTokenBackend models a proxied token: both reads touch the implementation
// slot, and the balance read also touches a key on an unrelated contract.
func proxyTokenBackend(t *testing.T) *fakeBackend {
	backend := newFakeBackend()
	backend.accessLists[selector(t, "balanceOf")] = types.AccessList{
		{Address: testToken, StorageKeys: []common.Hash{implSlot, balanceSlot}},
		{Address: testProxy, StorageKeys: []common.Hash{common.HexToHash("0x01")}},
	}
	backend.accessLists[selector(t, "allowance")] = types.AccessList{
		{Address: testToken, StorageKeys: []common.Hash{implSlot, allowanceSlot}},
	}
	return backend
}

func TestErc20OverridesIsolatesSlots(t *testing.T) {
	backend := proxyTokenBackend(t)
	engine := NewEngine(backend, 0, nil)

	amount := big.NewInt(1_000_000)
	set, err := engine.Erc20Overrides(context.Background(), testToken, testOwner, testSpender, amount, nil)
	if err != nil {
		t.Fatalf("erc20 overrides: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("expected 2 slots, got %d", set.Len())
	}
	for _, slot := range []common.Hash{balanceSlot, allowanceSlot} {
		if set[testToken][slot] != common.BigToHash(amount) {
			t.Fatalf("slot %s not set to amount", slot.Hex())
		}
	}
	if _, ok := set[testToken][implSlot]; ok {
		t.Fatalf("shared implementation slot must be dropped")
	}
	if _, ok := set[testProxy]; ok {
		t.Fatalf("keys of other contracts must be dropped")
	}
}

func TestErc20OverridesCacheHit(t *testing.T) {
	backend := proxyTokenBackend(t)
	engine := NewEngine(backend, 0, nil)
	ctx := context.Background()

	first, err := engine.Erc20Overrides(ctx, testToken, testOwner, testSpender, big.NewInt(5), nil)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if backend.accessListCalls != 2 {
		t.Fatalf("expected 2 access list calls, got %d", backend.accessListCalls)
	}

	second, err := engine.Erc20Overrides(ctx, testToken, testOwner, testSpender, big.NewInt(5), nil)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if backend.accessListCalls != 2 {
		t.Fatalf("second call should be served from cache, got %d calls", backend.accessListCalls)
	}
	for slot, value := range first[testToken] {
		if second[testToken][slot] != value {
			t.Fatalf("slot %s differs between calls", slot.Hex())
		}
	}
}

func TestErc20OverridesDiscoverAtBlock(t *testing.T) {
	backend := proxyTokenBackend(t)
	engine := NewEngine(backend, 0, nil)
	ctx := context.Background()

	if _, err := engine.Erc20Overrides(ctx, testToken, testOwner, testSpender, big.NewInt(5), big.NewInt(100)); err != nil {
		t.Fatalf("block 100: %v", err)
	}
	if backend.accessListBlock == nil || backend.accessListBlock.Int64() != 100 {
		t.Fatalf("access list not pinned to block 100: %v", backend.accessListBlock)
	}

	// another block is a different request and is not served from cache
	if _, err := engine.Erc20Overrides(ctx, testToken, testOwner, testSpender, big.NewInt(5), big.NewInt(101)); err != nil {
		t.Fatalf("block 101: %v", err)
	}
	if backend.accessListCalls != 4 {
		t.Fatalf("expected 4 access list calls, got %d", backend.accessListCalls)
	}
	if backend.accessListBlock.Int64() != 101 {
		t.Fatalf("access list not pinned to block 101: %v", backend.accessListBlock)
	}
}

func TestErc20OverridesRejectsUnexpectedLayout(t *testing.T) {
	backend := newFakeBackend()
	// rebasing token: the balance read touches two slots of its own
	backend.accessLists[selector(t, "balanceOf")] = types.AccessList{
		{Address: testToken, StorageKeys: []common.Hash{balanceSlot, common.HexToHash("0xb2")}},
	}
	backend.accessLists[selector(t, "allowance")] = types.AccessList{
		{Address: testToken, StorageKeys: []common.Hash{allowanceSlot}},
	}
	engine := NewEngine(backend, 0, nil)

	_, err := engine.Erc20Overrides(context.Background(), testToken, testOwner, testSpender, big.NewInt(1), nil)
	if !errors.Is(err, ErrInvalidAccessList) {
		t.Fatalf("expected ErrInvalidAccessList, got %v", err)
	}
}

func TestTokenOverridesSkipsFailingTokens(t *testing.T) {
	backend := newFakeBackend()
	backend.accessListErr = errors.New("method not found")
	engine := NewEngine(backend, 0, nil)

	set := engine.TokenOverrides(context.Background(), testOwner, testSpender, []TokenAmount{
		{Token: testToken, Amount: big.NewInt(10)},
		{Token: testProxy, Amount: big.NewInt(0)},
	}, nil)
	if set.Len() != 0 {
		t.Fatalf("expected empty set, got %d slots", set.Len())
	}
	// zero amounts never reach the node
	if backend.accessListCalls != 2 {
		t.Fatalf("expected 2 access list calls, got %d", backend.accessListCalls)
	}
}

func TestSimulateUsesOverrides(t *testing.T) {
	backend := newFakeBackend()
	engine := NewEngine(backend, 0, nil)

	out, err := engine.Simulate(context.Background(), ethereum.CallMsg{To: &testToken}, FlagOverride(testToken, testOwner, 2), nil)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if !bytes.Equal(out, []byte("override")) {
		t.Fatalf("unexpected output %q", out)
	}
	if backend.plainCalls != 0 {
		t.Fatalf("plain call should not run")
	}
	if _, ok := backend.lastOverrides[testToken]; !ok {
		t.Fatalf("override not forwarded")
	}
}

func TestSimulateFallsBackToPlainCall(t *testing.T) {
	backend := newFakeBackend()
	backend.overrideErr = errors.New("invalid argument 2: unsupported")
	engine := NewEngine(backend, 0, nil)

	out, err := engine.Simulate(context.Background(), ethereum.CallMsg{To: &testToken}, FlagOverride(testToken, testOwner, 2), nil)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if !bytes.Equal(out, []byte("plain")) {
		t.Fatalf("unexpected output %q", out)
	}
	if backend.overrideCalls != 1 || backend.plainCalls != 1 {
		t.Fatalf("expected one call of each kind, got %d/%d", backend.overrideCalls, backend.plainCalls)
	}
}

func TestSimulateFailsWhenBothCallsFail(t *testing.T) {
	backend := newFakeBackend()
	backend.overrideErr = errors.New("override rejected")
	backend.plainErr = errors.New("execution reverted: STF")
	engine := NewEngine(backend, 0, nil)

	_, err := engine.Simulate(context.Background(), ethereum.CallMsg{To: &testToken}, FlagOverride(testToken, testOwner, 2), nil)
	if !errors.Is(err, ErrSimulationFailed) {
		t.Fatalf("expected ErrSimulationFailed, got %v", err)
	}
	if !errors.Is(err, backend.plainErr) {
		t.Fatalf("plain call error should be wrapped: %v", err)
	}

	_, err = engine.Simulate(context.Background(), ethereum.CallMsg{To: &testToken}, nil, nil)
	if !errors.Is(err, ErrSimulationFailed) {
		t.Fatalf("expected ErrSimulationFailed without overrides, got %v", err)
	}
}
