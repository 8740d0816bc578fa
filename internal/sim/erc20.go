package sim

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"liquidityRebalancer/internal/dex"
)

// TokenAmount is a balance and allowance the simulated caller should appear to hold.
type TokenAmount struct {
	Token  common.Address
	Amount *big.Int
}

// Erc20Overrides discovers the balance and allowance slots of token without
// assuming a storage layout and sets both to amount. Discovery runs at block,
// nil meaning latest, so the slots match the state the simulation reads.
//
// Two access lists are generated from the zero address, one for balanceOf(owner)
// and one for allowance(owner, spender). Keys outside token are dropped and the
// symmetric difference removes shared bookkeeping such as proxy implementation
// slots. Anything other than two remaining keys yields ErrInvalidAccessList.
func (e *Engine) Erc20Overrides(ctx context.Context, token, owner, spender common.Address, amount, block *big.Int) (StateOverrideSet, error) {
	if e.backend == nil {
		return nil, fmt.Errorf("chain backend is nil")
	}
	erc20, err := dex.ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	balanceData, err := erc20.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}
	allowanceData, err := erc20.Pack("allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("pack allowance: %w", err)
	}

	var balanceKeys, allowanceKeys []common.Hash
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		keys, err := e.accessListKeys(gctx, ethereum.CallMsg{To: &token, Data: balanceData}, token, block)
		balanceKeys = keys
		return err
	})
	g.Go(func() error {
		keys, err := e.accessListKeys(gctx, ethereum.CallMsg{To: &token, Data: allowanceData}, token, block)
		allowanceKeys = keys
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	keys := symmetricDifference(balanceKeys, allowanceKeys)
	if len(keys) != 2 {
		return nil, fmt.Errorf("%w: token %s: %d keys after filtering", ErrInvalidAccessList, token.Hex(), len(keys))
	}

	value := Uint256Word(amount)
	set := StateOverrideSet{}
	for _, key := range keys {
		set.Set(token, key, value)
	}
	return set, nil
}

// TokenOverrides builds balance and allowance overrides for each token with a
// positive amount. A token whose slots cannot be discovered is logged and left
// without an override so the call can still go through the plain fallback.
func (e *Engine) TokenOverrides(ctx context.Context, owner, spender common.Address, amounts []TokenAmount, block *big.Int) StateOverrideSet {
	sets := make([]StateOverrideSet, len(amounts))
	g, gctx := errgroup.WithContext(ctx)
	for i, ta := range amounts {
		if ta.Amount == nil || ta.Amount.Sign() <= 0 {
			continue
		}
		i, ta := i, ta
		g.Go(func() error {
			set, err := e.Erc20Overrides(gctx, ta.Token, owner, spender, ta.Amount, block)
			if err != nil {
				e.logger.Warn("erc20 override skipped",
					zap.String("token", ta.Token.Hex()),
					zap.String("owner", owner.Hex()),
					zap.Error(err),
				)
				return nil
			}
			sets[i] = set
			return nil
		})
	}
	_ = g.Wait()
	return StateOverrideSet{}.Merge(sets...)
}

func symmetricDifference(a, b []common.Hash) []common.Hash {
	inA := make(map[common.Hash]struct{}, len(a))
	for _, k := range a {
		inA[k] = struct{}{}
	}
	inB := make(map[common.Hash]struct{}, len(b))
	for _, k := range b {
		inB[k] = struct{}{}
	}

	var out []common.Hash
	for k := range inA {
		if _, ok := inB[k]; !ok {
			out = append(out, k)
		}
	}
	for k := range inB {
		if _, ok := inA[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}
