package chain

import "context"

// Reader defines the read-only blockchain accessor consumed by the
// ingestion scheduler. All calls are network RPC round trips and may
// fail independently; callers are expected to contain failures per pool.
type Reader interface {
	// ListPools returns the addresses of all pools registered with the
	// factory contract.
	ListPools(ctx context.Context) ([]string, error)

	// GetPoolConfig retrieves the constituent token addresses of a pool.
	GetPoolConfig(ctx context.Context, pool string) (*PoolConfig, error)

	// GetPoolReserves retrieves the current reserve balances of a pool.
	GetPoolReserves(ctx context.Context, pool string) (*PoolReserves, error)

	// GetTokenMetadata retrieves name, symbol and decimals for a token.
	GetTokenMetadata(ctx context.Context, token string) (*TokenMetadata, error)
}

// PoolConfig holds the token addresses that make up a pool.
type PoolConfig struct {
	AssetA     string // first tradable asset
	AssetB     string // second tradable asset
	AssetShare string // LP-share token, never a routing edge
}

// PoolReserves holds a pool's balances as decimal strings straight off
// the wire. Amounts are raw integer units; scaling by token decimals
// happens downstream.
type PoolReserves struct {
	AssetAAmount     string
	AssetBAmount     string
	AssetShareAmount string
}

// TokenMetadata holds on-chain token metadata.
type TokenMetadata struct {
	Name     string
	Symbol   string
	Decimals int
}

// PoolEvent announces a pool the factory just created.
type PoolEvent struct {
	Pool string
}

// EventFeed delivers live pool-created events. Implementations push
// events until the context is cancelled; the channel is closed on
// unrecoverable failure.
type EventFeed interface {
	Subscribe(ctx context.Context) (<-chan PoolEvent, error)
}
