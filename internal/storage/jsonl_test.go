package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"liquidityRebalancer/internal/model"
)

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var out []map[string]interface{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var row map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			t.Fatalf("decode line %q: %v", scanner.Text(), err)
		}
		out = append(out, row)
	}
	return out
}

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.jsonl")
	store := NewJsonlStorage(path)

	quotes := []model.QuoteRecord{{ChainID: 1, Operation: "mint", Liquidity: "700000", PriceImpact: "0.048"}}
	if err := store.PutQuoteBatch(context.Background(), quotes); err != nil {
		t.Fatalf("put quotes: %v", err)
	}
	if err := store.PutEventBatch([]model.LiquidityEvent{{Kind: model.EventMint, TickLower: -60, TickUpper: 60, Amount: big.NewInt(5)}}); err != nil {
		t.Fatalf("put events: %v", err)
	}
	if err := store.PutCurveBatch(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	rows := readLines(t, path)
	if len(rows) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(rows))
	}
	if rows[0]["operation"] != "mint" || rows[0]["liquidity"] != "700000" {
		t.Fatalf("quote line mismatch: %v", rows[0])
	}
	if rows[1]["kind"] != "Mint" || rows[1]["amount"] != float64(5) {
		t.Fatalf("event line mismatch: %v", rows[1])
	}
}

type failingSink struct{ err error }

func (f failingSink) PutQuoteBatch(context.Context, []model.QuoteRecord) error { return f.err }

func TestMultiQuoteSinkJoinsErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quotes.jsonl")
	boom := errors.New("boom")
	sink := MultiQuoteSink{NewJsonlStorage(path), nil, failingSink{err: boom}}

	err := sink.PutQuoteBatch(context.Background(), []model.QuoteRecord{{Operation: "decrease"}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if rows := readLines(t, path); len(rows) != 1 {
		t.Fatalf("healthy sink should still be written, got %d rows", len(rows))
	}
}
