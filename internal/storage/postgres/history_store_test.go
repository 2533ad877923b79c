package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-price-engine/internal/domain"
	"dex-price-engine/internal/storage"
)

func TestPairHistoryStore_AppendGetPrune(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	tokA := createTestToken(t, ctx, pool, "TOKA", 18)
	tokB := createTestToken(t, ctx, pool, "TOKB", 6)
	tokShr := createTestToken(t, ctx, pool, "TOKSHARE", 7)

	pair, err := NewPairStore(pool).GetOrCreate(ctx, &domain.Pair{
		Address:          "POOL1",
		AssetAID:         tokA.ID,
		AssetBID:         tokB.ID,
		AssetShareID:     tokShr.ID,
		AssetAAmount:     decimal.NewFromInt(1000),
		AssetBAmount:     decimal.NewFromInt(2000),
		AssetShareAmount: decimal.NewFromInt(1414),
	})
	require.NoError(t, err)

	store := NewPairHistoryStore(pool)

	now := time.Now().UTC().Truncate(15 * time.Minute)
	buckets := []time.Time{
		now.Add(-8 * 24 * time.Hour), // beyond retention
		now.Add(-30 * time.Minute),
		now.Add(-15 * time.Minute),
		now,
	}
	for _, at := range buckets {
		err := store.Append(ctx, &domain.PairSnapshot{
			PairID:           pair.ID,
			CreatedAt:        at,
			AssetAAmount:     decimal.NewFromInt(1000),
			AssetBAmount:     decimal.NewFromInt(2000),
			AssetShareAmount: decimal.NewFromInt(1414),
		})
		require.NoError(t, err)
	}

	// Duplicate bucket insert is rejected.
	err = store.Append(ctx, &domain.PairSnapshot{
		PairID:           pair.ID,
		CreatedAt:        now,
		AssetAAmount:     decimal.NewFromInt(1),
		AssetBAmount:     decimal.NewFromInt(1),
		AssetShareAmount: decimal.NewFromInt(1),
	})
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey), "got %v", err)

	rows, err := store.GetByPair(ctx, pair.ID, now.Add(-time.Hour), now)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	for i := 1; i < len(rows); i++ {
		assert.False(t, rows[i].CreatedAt.Before(rows[i-1].CreatedAt))
	}

	cutoff := now.Add(-7 * 24 * time.Hour)
	deleted, err := store.PruneOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = store.PruneOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted, "prune must be idempotent")
}

func TestTokenHistoryStore_AppendGetPrune(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	tok := createTestToken(t, ctx, pool, "TOKA", 18)

	store := NewTokenHistoryStore(pool)

	now := time.Now().UTC().Truncate(15 * time.Minute)
	price := decimal.RequireFromString("6.000000000123456789")

	err := store.Append(ctx, &domain.TokenPricePoint{
		TokenID:   tok.ID,
		CreatedAt: now,
		Price:     price,
	})
	require.NoError(t, err)

	err = store.Append(ctx, &domain.TokenPricePoint{
		TokenID:   tok.ID,
		CreatedAt: now.Add(-8 * 24 * time.Hour),
		Price:     decimal.NewFromInt(5),
	})
	require.NoError(t, err)

	rows, err := store.GetByToken(ctx, tok.ID, now.Add(-time.Hour), now)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Price.Equal(price), "price precision lost: %s", rows[0].Price)

	deleted, err := store.PruneOlderThan(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
