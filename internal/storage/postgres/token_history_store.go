package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"dex-price-engine/internal/domain"
	"dex-price-engine/internal/storage"
)

// TokenHistoryStore implements storage.TokenHistoryStore using PostgreSQL.
type TokenHistoryStore struct {
	pool *Pool
}

// NewTokenHistoryStore creates a new TokenHistoryStore.
func NewTokenHistoryStore(pool *Pool) *TokenHistoryStore {
	return &TokenHistoryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenHistoryStore = (*TokenHistoryStore)(nil)

// Append inserts one price point. Returns ErrDuplicateKey if a row for
// (token, bucket) already exists.
func (s *TokenHistoryStore) Append(ctx context.Context, p *domain.TokenPricePoint) error {
	if p == nil || p.TokenID == 0 || p.CreatedAt.IsZero() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_history (token_id, created_at, price)
		VALUES ($1, $2, $3::numeric)
	`

	_, err := s.pool.Exec(ctx, query, p.TokenID, p.CreatedAt, p.Price.String())
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token price point: %w", err)
	}
	return nil
}

// GetByToken retrieves price points for a token within [from, to], ordered by created_at ASC.
func (s *TokenHistoryStore) GetByToken(ctx context.Context, tokenID int64, from, to time.Time) ([]*domain.TokenPricePoint, error) {
	query := `
		SELECT id, token_id, created_at, price::text
		FROM token_history
		WHERE token_id = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at ASC
	`

	rows, err := s.pool.Query(ctx, query, tokenID, from, to)
	if err != nil {
		return nil, fmt.Errorf("get token history: %w", err)
	}
	defer rows.Close()

	var points []*domain.TokenPricePoint
	for rows.Next() {
		p, err := scanTokenPricePoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token price point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get token history: %w", err)
	}
	return points, nil
}

// PruneOlderThan bulk-deletes price points with created_at before cutoff.
func (s *TokenHistoryStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM token_history WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune token history: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanTokenPricePoint scans a single row into a TokenPricePoint.
func scanTokenPricePoint(row pgx.Row) (*domain.TokenPricePoint, error) {
	var (
		p     domain.TokenPricePoint
		price string
	)

	err := row.Scan(&p.ID, &p.TokenID, &p.CreatedAt, &price)
	if err != nil {
		return nil, err
	}

	if p.Price, err = parseAmount(price); err != nil {
		return nil, err
	}

	return &p, nil
}
