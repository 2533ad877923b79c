package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"dex-price-engine/internal/domain"
)

func newTestPair(address string) *domain.Pair {
	return &domain.Pair{
		Address:          address,
		AssetAID:         1,
		AssetAAmount:     decimal.NewFromInt(1000),
		AssetBID:         2,
		AssetBAmount:     decimal.NewFromInt(2000),
		AssetShareID:     3,
		AssetShareAmount: decimal.NewFromInt(1414),
	}
}

func TestPairStore_GetOrCreate(t *testing.T) {
	store := NewPairStore()
	ctx := context.Background()

	created, err := store.GetOrCreate(ctx, newTestPair("POOL1"))
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	again, err := store.GetOrCreate(ctx, newTestPair("POOL1"))
	if err != nil {
		t.Fatalf("second GetOrCreate failed: %v", err)
	}

	if again.ID != created.ID {
		t.Errorf("id mismatch: got %d, want %d", again.ID, created.ID)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(all))
	}
}

func TestPairStore_GetOrCreate_Concurrent(t *testing.T) {
	store := NewPairStore()
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.GetOrCreate(ctx, newTestPair("POOL1")); err != nil {
				t.Errorf("GetOrCreate failed: %v", err)
			}
		}()
	}
	wg.Wait()

	all, _ := store.List(ctx)
	if len(all) != 1 {
		t.Fatalf("expected 1 pair after concurrent upserts, got %d", len(all))
	}
}

func TestPairStore_UpdateReserves(t *testing.T) {
	store := NewPairStore()
	ctx := context.Background()

	pair, err := store.GetOrCreate(ctx, newTestPair("POOL1"))
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	err = store.UpdateReserves(ctx, pair.ID, domain.Reserves{
		AssetA:     decimal.NewFromInt(5000),
		AssetB:     decimal.NewFromInt(9000),
		AssetShare: decimal.NewFromInt(6700),
	})
	if err != nil {
		t.Fatalf("UpdateReserves failed: %v", err)
	}

	got, err := store.GetByAddress(ctx, "POOL1")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}

	if !got.AssetAAmount.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("assetAAmount not updated: %s", got.AssetAAmount)
	}
	if !got.AssetBAmount.Equal(decimal.NewFromInt(9000)) {
		t.Errorf("assetBAmount not updated: %s", got.AssetBAmount)
	}
}
