package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"dex-price-engine/internal/domain"
	"dex-price-engine/internal/storage"
)

func TestTokenHistoryStore_AppendAndGet(t *testing.T) {
	store := NewTokenHistoryStore()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	prices := []string{"6", "6.15", "5.98"}
	for i, p := range prices {
		point := &domain.TokenPricePoint{
			TokenID:   7,
			CreatedAt: base.Add(time.Duration(i) * 15 * time.Minute),
			Price:     decimal.RequireFromString(p),
		}
		if err := store.Append(ctx, point); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	rows, err := store.GetByToken(ctx, 7, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetByToken failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if !rows[1].Price.Equal(decimal.RequireFromString("6.15")) {
		t.Errorf("unexpected price: %s", rows[1].Price)
	}
}

func TestTokenHistoryStore_DuplicateBucket(t *testing.T) {
	store := NewTokenHistoryStore()
	ctx := context.Background()

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	point := &domain.TokenPricePoint{TokenID: 7, CreatedAt: at, Price: decimal.NewFromInt(6)}

	if err := store.Append(ctx, point); err != nil {
		t.Fatalf("first Append failed: %v", err)
	}
	err := store.Append(ctx, &domain.TokenPricePoint{TokenID: 7, CreatedAt: at, Price: decimal.NewFromInt(9)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestTokenHistoryStore_PruneOlderThan(t *testing.T) {
	store := NewTokenHistoryStore()
	ctx := context.Background()

	now := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	cutoff := now.Add(-7 * 24 * time.Hour)

	for _, at := range []time.Time{cutoff.Add(-time.Minute), cutoff, cutoff.Add(time.Minute)} {
		point := &domain.TokenPricePoint{TokenID: 7, CreatedAt: at, Price: decimal.NewFromInt(1)}
		if err := store.Append(ctx, point); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("PruneOlderThan failed: %v", err)
	}
	// Only the row strictly before the cutoff goes away.
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}

	rows, err := store.GetByToken(ctx, 7, time.Time{}, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 surviving rows, got %d", len(rows))
	}
}
