package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"dex-price-engine/internal/domain"
	"dex-price-engine/internal/storage"
)

// PairStore implements storage.PairStore using PostgreSQL.
type PairStore struct {
	pool *Pool
}

// NewPairStore creates a new PairStore.
func NewPairStore(pool *Pool) *PairStore {
	return &PairStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PairStore = (*PairStore)(nil)

const pairColumns = `
	id, address, asset_a_id, asset_b_id, asset_share_id,
	asset_a_amount::text, asset_b_amount::text, asset_share_amount::text,
	created_at, updated_at
`

// GetOrCreate returns the existing pair for p.Address or inserts p.
func (s *PairStore) GetOrCreate(ctx context.Context, p *domain.Pair) (*domain.Pair, error) {
	if p == nil || p.Address == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pairs (
			address, asset_a_id, asset_b_id, asset_share_id,
			asset_a_amount, asset_b_amount, asset_share_amount
		) VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric)
		ON CONFLICT (address) DO NOTHING
		RETURNING ` + pairColumns

	row := s.pool.QueryRow(ctx, query,
		p.Address,
		p.AssetAID,
		p.AssetBID,
		p.AssetShareID,
		p.AssetAAmount.String(),
		p.AssetBAmount.String(),
		p.AssetShareAmount.String(),
	)
	created, err := scanPair(row)
	if err == nil {
		return created, nil
	}
	if !isNotFoundError(err) {
		return nil, fmt.Errorf("insert pair: %w", err)
	}

	return s.GetByAddress(ctx, p.Address)
}

// GetByAddress retrieves a pair by pool address. Returns ErrNotFound if not exists.
func (s *PairStore) GetByAddress(ctx context.Context, address string) (*domain.Pair, error) {
	query := `SELECT ` + pairColumns + ` FROM pairs WHERE address = $1`

	row := s.pool.QueryRow(ctx, query, address)
	p, err := scanPair(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pair by address: %w", err)
	}
	return p, nil
}

// List retrieves all pairs ordered by id.
func (s *PairStore) List(ctx context.Context) ([]*domain.Pair, error) {
	query := `SELECT ` + pairColumns + ` FROM pairs ORDER BY id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pairs: %w", err)
	}
	defer rows.Close()

	var pairs []*domain.Pair
	for rows.Next() {
		p, err := scanPair(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pairs: %w", err)
	}
	return pairs, nil
}

// UpdateReserves refreshes the denormalized current-reserve view.
func (s *PairStore) UpdateReserves(ctx context.Context, pairID int64, reserves domain.Reserves) error {
	query := `
		UPDATE pairs
		SET asset_a_amount = $2::numeric,
		    asset_b_amount = $3::numeric,
		    asset_share_amount = $4::numeric,
		    updated_at = now()
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		pairID,
		reserves.AssetA.String(),
		reserves.AssetB.String(),
		reserves.AssetShare.String(),
	)
	if err != nil {
		return fmt.Errorf("update pair reserves: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanPair scans a single row into a Pair.
func scanPair(row pgx.Row) (*domain.Pair, error) {
	var (
		p                           domain.Pair
		amountA, amountB, amountShr string
	)

	err := row.Scan(
		&p.ID,
		&p.Address,
		&p.AssetAID,
		&p.AssetBID,
		&p.AssetShareID,
		&amountA,
		&amountB,
		&amountShr,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if p.AssetAAmount, err = parseAmount(amountA); err != nil {
		return nil, err
	}
	if p.AssetBAmount, err = parseAmount(amountB); err != nil {
		return nil, err
	}
	if p.AssetShareAmount, err = parseAmount(amountShr); err != nil {
		return nil, err
	}

	return &p, nil
}
