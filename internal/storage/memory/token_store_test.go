package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"dex-price-engine/internal/domain"
	"dex-price-engine/internal/storage"
)

func TestTokenStore_GetOrCreate(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	tok := &domain.Token{
		Address:  "TOKA",
		Name:     "Token A",
		Symbol:   "TKA",
		Decimals: 7,
	}

	created, err := store.GetOrCreate(ctx, tok)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}

	// Second call with different metadata must return the original row.
	again, err := store.GetOrCreate(ctx, &domain.Token{
		Address:  "TOKA",
		Name:     "Renamed",
		Symbol:   "XXX",
		Decimals: 18,
	})
	if err != nil {
		t.Fatalf("second GetOrCreate failed: %v", err)
	}

	if again.ID != created.ID {
		t.Errorf("id mismatch: got %d, want %d", again.ID, created.ID)
	}
	if again.Name != "Token A" || again.Decimals != 7 {
		t.Errorf("metadata mutated: %+v", again)
	}
}

func TestTokenStore_GetOrCreate_Concurrent(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	const workers = 32
	ids := make([]int64, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := store.GetOrCreate(ctx, &domain.Token{Address: "TOKA", Symbol: "TKA", Decimals: 7})
			if err != nil {
				t.Errorf("GetOrCreate failed: %v", err)
				return
			}
			ids[i] = tok.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("concurrent GetOrCreate produced different ids: %d vs %d", ids[i], ids[0])
		}
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 token, got %d", len(all))
	}
}

func TestTokenStore_GetByAddress_NotFound(t *testing.T) {
	store := NewTokenStore()

	_, err := store.GetByAddress(context.Background(), "MISSING")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTokenStore_GetOrCreate_InvalidInput(t *testing.T) {
	store := NewTokenStore()

	_, err := store.GetOrCreate(context.Background(), &domain.Token{})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
