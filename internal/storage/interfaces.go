package storage

import (
	"context"
	"time"

	"dex-price-engine/internal/domain"
)

// TokenStore provides access to tokens storage.
type TokenStore interface {
	// GetOrCreate returns the existing token for t.Address or inserts t.
	// Race-safe: concurrent calls for the same address all resolve to
	// the same row. Metadata is never updated after the first insert.
	GetOrCreate(ctx context.Context, t *domain.Token) (*domain.Token, error)

	// GetByAddress retrieves a token by address. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.Token, error)

	// List retrieves all tokens ordered by id.
	List(ctx context.Context) ([]*domain.Token, error)
}

// PairStore provides access to pairs storage.
type PairStore interface {
	// GetOrCreate returns the existing pair for p.Address or inserts p.
	// Same race-safe upsert discipline as TokenStore.GetOrCreate.
	GetOrCreate(ctx context.Context, p *domain.Pair) (*domain.Pair, error)

	// GetByAddress retrieves a pair by pool address. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.Pair, error)

	// List retrieves all pairs ordered by id.
	List(ctx context.Context) ([]*domain.Pair, error)

	// UpdateReserves refreshes the denormalized current-reserve view.
	UpdateReserves(ctx context.Context, pairID int64, reserves domain.Reserves) error
}

// PairHistoryStore provides access to pair_history storage.
type PairHistoryStore interface {
	// Append inserts one snapshot. Returns ErrDuplicateKey if a row for
	// (pair, bucket) already exists. Rows are never mutated.
	Append(ctx context.Context, s *domain.PairSnapshot) error

	// GetByPair retrieves snapshots for a pair within [from, to],
	// ordered by created_at ASC.
	GetByPair(ctx context.Context, pairID int64, from, to time.Time) ([]*domain.PairSnapshot, error)

	// PruneOlderThan bulk-deletes snapshots with created_at before
	// cutoff and returns the count deleted. Idempotent.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// TokenHistoryStore provides access to token_history storage.
type TokenHistoryStore interface {
	// Append inserts one price point. Returns ErrDuplicateKey if a row
	// for (token, bucket) already exists.
	Append(ctx context.Context, p *domain.TokenPricePoint) error

	// GetByToken retrieves price points for a token within [from, to],
	// ordered by created_at ASC.
	GetByToken(ctx context.Context, tokenID int64, from, to time.Time) ([]*domain.TokenPricePoint, error)

	// PruneOlderThan bulk-deletes price points with created_at before
	// cutoff and returns the count deleted. Idempotent.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
