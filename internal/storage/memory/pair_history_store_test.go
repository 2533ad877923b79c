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

func snapshotAt(pairID int64, at time.Time) *domain.PairSnapshot {
	return &domain.PairSnapshot{
		PairID:           pairID,
		CreatedAt:        at,
		AssetAAmount:     decimal.NewFromInt(1000),
		AssetBAmount:     decimal.NewFromInt(2000),
		AssetShareAmount: decimal.NewFromInt(1414),
	}
}

func TestPairHistoryStore_AppendAndGet(t *testing.T) {
	store := NewPairHistoryStore()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		if err := store.Append(ctx, snapshotAt(1, base.Add(time.Duration(i)*15*time.Minute))); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}
	// Another pair's rows should not bleed into queries for pair 1.
	if err := store.Append(ctx, snapshotAt(2, base)); err != nil {
		t.Fatalf("Append pair 2 failed: %v", err)
	}

	rows, err := store.GetByPair(ctx, 1, base, base.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("GetByPair failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows in window, got %d", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].CreatedAt.Before(rows[i-1].CreatedAt) {
			t.Fatal("rows not ordered by created_at")
		}
	}
}

func TestPairHistoryStore_DuplicateBucket(t *testing.T) {
	store := NewPairHistoryStore()
	ctx := context.Background()

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := store.Append(ctx, snapshotAt(1, at)); err != nil {
		t.Fatalf("first Append failed: %v", err)
	}

	err := store.Append(ctx, snapshotAt(1, at))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestPairHistoryStore_PruneOlderThan(t *testing.T) {
	store := NewPairHistoryStore()
	ctx := context.Background()

	now := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	old := now.Add(-8 * 24 * time.Hour)
	recent := now.Add(-time.Hour)

	if err := store.Append(ctx, snapshotAt(1, old)); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, snapshotAt(1, recent)); err != nil {
		t.Fatal(err)
	}

	cutoff := now.Add(-7 * 24 * time.Hour)
	deleted, err := store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("PruneOlderThan failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}

	// Idempotent: a second run with the same cutoff deletes nothing.
	deleted, err = store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("second PruneOlderThan failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected 0 deleted on rerun, got %d", deleted)
	}

	rows, err := store.GetByPair(ctx, 1, time.Time{}, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || !rows[0].CreatedAt.Equal(recent) {
		t.Errorf("recent row should survive prune: %+v", rows)
	}

	// The pruned bucket can be filled again.
	if err := store.Append(ctx, snapshotAt(1, old)); err != nil {
		t.Errorf("re-append after prune failed: %v", err)
	}
}
