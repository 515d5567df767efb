package memory

import (
	"context"
	"errors"
	"testing"

	"serum-swap/internal/domain"
	"serum-swap/internal/solana"
	"serum-swap/internal/storage"
)

var (
	mintA = solana.Pubkey{1}
	mintB = solana.Pubkey{2}
	usdc  = solana.Pubkey{3}
)

func outcome(sig string, idx int, ts int64, from, to solana.Pubkey) *storage.SwapOutcomeRecord {
	return &storage.SwapOutcomeRecord{
		TxSignature: sig,
		EventIndex:  idx,
		Slot:        ts / 400,
		Timestamp:   ts,
		Outcome: domain.DidSwap{
			GivenAmount: 100,
			FromAmount:  100,
			ToAmount:    250,
			FromMint:    from,
			ToMint:      to,
			QuoteMint:   usdc,
		},
		RealizedRate: "2.5",
	}
}

func TestSwapOutcomeStore_InsertAndGet(t *testing.T) {
	store := NewSwapOutcomeStore()
	ctx := context.Background()

	r := outcome("sig1", 0, 1000, mintA, usdc)
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Stored value is a copy.
	r.Outcome.ToAmount = 1

	result, err := store.GetBySignature(ctx, "sig1")
	if err != nil {
		t.Fatalf("GetBySignature failed: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("Expected 1 outcome, got %d", len(result))
	}
	if result[0].Outcome.ToAmount != 250 {
		t.Errorf("ToAmount mismatch: got %d, want 250", result[0].Outcome.ToAmount)
	}
}

func TestSwapOutcomeStore_DuplicateKey(t *testing.T) {
	store := NewSwapOutcomeStore()
	ctx := context.Background()

	if err := store.Insert(ctx, outcome("sig1", 0, 1000, mintA, usdc)); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	err := store.Insert(ctx, outcome("sig1", 0, 2000, mintB, usdc))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Same signature, next event index is a distinct key.
	if err := store.Insert(ctx, outcome("sig1", 1, 1000, mintB, usdc)); err != nil {
		t.Fatalf("Insert with new event index failed: %v", err)
	}
}

func TestSwapOutcomeStore_InvalidInput(t *testing.T) {
	store := NewSwapOutcomeStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}
	if err := store.Insert(ctx, outcome("", 0, 1, mintA, usdc)); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty signature, got %v", err)
	}
}

func TestSwapOutcomeStore_InsertBulkAtomic(t *testing.T) {
	store := NewSwapOutcomeStore()
	ctx := context.Background()

	if err := store.Insert(ctx, outcome("sig3", 0, 3000, mintA, usdc)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	batch := []*storage.SwapOutcomeRecord{
		outcome("sig1", 0, 1000, mintA, usdc),
		outcome("sig3", 0, 3000, mintA, usdc),
	}
	if err := store.InsertBulk(ctx, batch); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("Failed batch must not insert anything, have %d", store.Len())
	}

	intra := []*storage.SwapOutcomeRecord{
		outcome("sig4", 0, 1000, mintA, usdc),
		outcome("sig4", 0, 1000, mintA, usdc),
	}
	if err := store.InsertBulk(ctx, intra); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}

	ok := []*storage.SwapOutcomeRecord{
		outcome("sig1", 0, 1000, mintA, usdc),
		outcome("sig2", 0, 2000, mintB, mintA),
	}
	if err := store.InsertBulk(ctx, ok); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	if store.Len() != 3 {
		t.Errorf("Expected 3 outcomes, got %d", store.Len())
	}
}

func TestSwapOutcomeStore_GetByTimeRangeAndPair(t *testing.T) {
	store := NewSwapOutcomeStore()
	ctx := context.Background()

	batch := []*storage.SwapOutcomeRecord{
		outcome("sig3", 0, 3000, mintA, usdc),
		outcome("sig1", 0, 1000, mintA, usdc),
		outcome("sig2", 1, 2000, mintB, mintA),
		outcome("sig2", 0, 2000, mintA, usdc),
	}
	if err := store.InsertBulk(ctx, batch); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByTimeRange(ctx, 1000, 3000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("Expected 3 outcomes in [1000, 3000), got %d", len(result))
	}
	want := []string{"sig1|0", "sig2|0", "sig2|1"}
	for i, r := range result {
		if r.Key() != want[i] {
			t.Errorf("Order mismatch at %d: got %s, want %s", i, r.Key(), want[i])
		}
	}

	pair, err := store.GetByPair(ctx, mintA.String(), usdc.String(), 0, 10_000)
	if err != nil {
		t.Fatalf("GetByPair failed: %v", err)
	}
	if len(pair) != 3 {
		t.Errorf("Expected 3 mintA->usdc outcomes, got %d", len(pair))
	}
}

func TestObserverProgressStore(t *testing.T) {
	store := NewObserverProgressStore()
	ctx := context.Background()

	if _, err := store.GetLastProcessed(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if err := store.SetLastProcessed(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}

	if err := store.SetLastProcessed(ctx, &storage.ObserverProgress{Slot: 10, Signature: "sigA"}); err != nil {
		t.Fatalf("SetLastProcessed failed: %v", err)
	}
	if err := store.SetLastProcessed(ctx, &storage.ObserverProgress{Slot: 12, Signature: "sigB"}); err != nil {
		t.Fatalf("SetLastProcessed failed: %v", err)
	}

	got, err := store.GetLastProcessed(ctx)
	if err != nil {
		t.Fatalf("GetLastProcessed failed: %v", err)
	}
	if got.Slot != 12 || got.Signature != "sigB" {
		t.Errorf("Progress mismatch: got %+v", got)
	}
}
