package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"dex-price-engine/internal/domain"
	"dex-price-engine/internal/storage"
)

// PairHistoryStore implements storage.PairHistoryStore using PostgreSQL.
type PairHistoryStore struct {
	pool *Pool
}

// NewPairHistoryStore creates a new PairHistoryStore.
func NewPairHistoryStore(pool *Pool) *PairHistoryStore {
	return &PairHistoryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PairHistoryStore = (*PairHistoryStore)(nil)

// Append inserts one snapshot. Returns ErrDuplicateKey if a row for
// (pair, bucket) already exists.
func (s *PairHistoryStore) Append(ctx context.Context, snap *domain.PairSnapshot) error {
	if snap == nil || snap.PairID == 0 || snap.CreatedAt.IsZero() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pair_history (
			pair_id, created_at, asset_a_amount, asset_b_amount, asset_share_amount
		) VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric)
	`

	_, err := s.pool.Exec(ctx, query,
		snap.PairID,
		snap.CreatedAt,
		snap.AssetAAmount.String(),
		snap.AssetBAmount.String(),
		snap.AssetShareAmount.String(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert pair snapshot: %w", err)
	}
	return nil
}

// GetByPair retrieves snapshots for a pair within [from, to], ordered by created_at ASC.
func (s *PairHistoryStore) GetByPair(ctx context.Context, pairID int64, from, to time.Time) ([]*domain.PairSnapshot, error) {
	query := `
		SELECT id, pair_id, created_at,
		       asset_a_amount::text, asset_b_amount::text, asset_share_amount::text
		FROM pair_history
		WHERE pair_id = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at ASC
	`

	rows, err := s.pool.Query(ctx, query, pairID, from, to)
	if err != nil {
		return nil, fmt.Errorf("get pair history: %w", err)
	}
	defer rows.Close()

	var snaps []*domain.PairSnapshot
	for rows.Next() {
		snap, err := scanPairSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pair snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get pair history: %w", err)
	}
	return snaps, nil
}

// PruneOlderThan bulk-deletes snapshots with created_at before cutoff.
func (s *PairHistoryStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM pair_history WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune pair history: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanPairSnapshot scans a single row into a PairSnapshot.
func scanPairSnapshot(row pgx.Row) (*domain.PairSnapshot, error) {
	var (
		snap                        domain.PairSnapshot
		amountA, amountB, amountShr string
	)

	err := row.Scan(&snap.ID, &snap.PairID, &snap.CreatedAt, &amountA, &amountB, &amountShr)
	if err != nil {
		return nil, err
	}

	if snap.AssetAAmount, err = parseAmount(amountA); err != nil {
		return nil, err
	}
	if snap.AssetBAmount, err = parseAmount(amountB); err != nil {
		return nil, err
	}
	if snap.AssetShareAmount, err = parseAmount(amountShr); err != nil {
		return nil, err
	}

	return &snap, nil
}
