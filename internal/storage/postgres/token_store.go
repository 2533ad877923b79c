package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"dex-price-engine/internal/domain"
	"dex-price-engine/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// GetOrCreate returns the existing token for t.Address or inserts t.
// The unique constraint on address plus ON CONFLICT DO NOTHING makes
// the upsert race-safe: a concurrent first-sighting loses the insert
// and falls through to the select.
func (s *TokenStore) GetOrCreate(ctx context.Context, t *domain.Token) (*domain.Token, error) {
	if t == nil || t.Address == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO tokens (address, name, symbol, decimals)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address) DO NOTHING
		RETURNING id, address, name, symbol, decimals, created_at
	`

	row := s.pool.QueryRow(ctx, query, t.Address, t.Name, t.Symbol, t.Decimals)
	created, err := scanToken(row)
	if err == nil {
		return created, nil
	}
	if !isNotFoundError(err) {
		return nil, fmt.Errorf("insert token: %w", err)
	}

	// Conflict: the row already exists, fetch it.
	return s.GetByAddress(ctx, t.Address)
}

// GetByAddress retrieves a token by address. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByAddress(ctx context.Context, address string) (*domain.Token, error) {
	query := `
		SELECT id, address, name, symbol, decimals, created_at
		FROM tokens
		WHERE address = $1
	`

	row := s.pool.QueryRow(ctx, query, address)
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by address: %w", err)
	}
	return t, nil
}

// List retrieves all tokens ordered by id.
func (s *TokenStore) List(ctx context.Context) ([]*domain.Token, error) {
	query := `
		SELECT id, address, name, symbol, decimals, created_at
		FROM tokens
		ORDER BY id
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return tokens, nil
}

// scanToken scans a single row into a Token.
func scanToken(row pgx.Row) (*domain.Token, error) {
	var t domain.Token
	err := row.Scan(&t.ID, &t.Address, &t.Name, &t.Symbol, &t.Decimals, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
