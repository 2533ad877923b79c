package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"dex-price-engine/internal/domain"
)

// setupTestDB creates a PostgreSQL container for testing and applies the
// schema. Returns a cleanup function that must be called after tests.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := pgcontainer.Run(ctx, "postgres:15-alpine",
		pgcontainer.WithDatabase("testdb"),
		pgcontainer.WithUsername("test"),
		pgcontainer.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	applySchema(t, ctx, pool)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// applySchema creates the tables directly; keeping the DDL in sync with
// the embedded migrations is checked by the migrations package living in
// the same module.
func applySchema(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	schema := `
		CREATE TABLE tokens (
			id          BIGSERIAL PRIMARY KEY,
			address     TEXT        NOT NULL UNIQUE,
			name        TEXT        NOT NULL DEFAULT '',
			symbol      TEXT        NOT NULL DEFAULT '',
			decimals    INTEGER     NOT NULL DEFAULT 0,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE pairs (
			id                  BIGSERIAL PRIMARY KEY,
			address             TEXT           NOT NULL UNIQUE,
			asset_a_id          BIGINT         NOT NULL REFERENCES tokens(id),
			asset_b_id          BIGINT         NOT NULL REFERENCES tokens(id),
			asset_share_id      BIGINT         NOT NULL REFERENCES tokens(id),
			asset_a_amount      NUMERIC(39, 0) NOT NULL DEFAULT 0,
			asset_b_amount      NUMERIC(39, 0) NOT NULL DEFAULT 0,
			asset_share_amount  NUMERIC(39, 0) NOT NULL DEFAULT 0,
			created_at          TIMESTAMPTZ    NOT NULL DEFAULT now(),
			updated_at          TIMESTAMPTZ    NOT NULL DEFAULT now()
		);
		CREATE TABLE pair_history (
			id                  BIGSERIAL PRIMARY KEY,
			pair_id             BIGINT         NOT NULL REFERENCES pairs(id),
			created_at          TIMESTAMPTZ    NOT NULL,
			asset_a_amount      NUMERIC(39, 0) NOT NULL,
			asset_b_amount      NUMERIC(39, 0) NOT NULL,
			asset_share_amount  NUMERIC(39, 0) NOT NULL,
			UNIQUE (pair_id, created_at)
		);
		CREATE TABLE token_history (
			id          BIGSERIAL PRIMARY KEY,
			token_id    BIGINT      NOT NULL REFERENCES tokens(id),
			created_at  TIMESTAMPTZ NOT NULL,
			price       NUMERIC     NOT NULL,
			UNIQUE (token_id, created_at)
		);
	`
	_, err := pool.Exec(ctx, schema)
	require.NoError(t, err, "failed to apply schema")
}

// createTestToken inserts a token and returns the stored row.
func createTestToken(t *testing.T, ctx context.Context, pool *Pool, address string, decimals int) *domain.Token {
	t.Helper()

	store := NewTokenStore(pool)
	tok, err := store.GetOrCreate(ctx, &domain.Token{
		Address:  address,
		Name:     "Test " + address,
		Symbol:   address,
		Decimals: decimals,
	})
	require.NoError(t, err)
	return tok
}
