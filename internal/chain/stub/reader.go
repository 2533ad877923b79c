// Package stub provides a fake chain reader for tests and local runs.
package stub

import (
	"context"
	"fmt"
	"sync"

	"dex-price-engine/internal/chain"
)

// Pool describes one fake pool served by the Reader.
type Pool struct {
	Address  string
	Config   chain.PoolConfig
	Reserves chain.PoolReserves
}

// Reader is an in-memory chain.Reader. Individual calls can be forced
// to fail per address to exercise failure-isolation paths.
type Reader struct {
	mu       sync.Mutex
	pools    []Pool
	tokens   map[string]chain.TokenMetadata
	failing  map[string]error // pool address -> forced error
	listErr  error
	metaErr  map[string]error // token address -> forced error
	Calls    map[string]int   // method -> invocation count
}

// NewReader creates an empty stub reader.
func NewReader() *Reader {
	return &Reader{
		tokens:  make(map[string]chain.TokenMetadata),
		failing: make(map[string]error),
		metaErr: make(map[string]error),
		Calls:   make(map[string]int),
	}
}

var _ chain.Reader = (*Reader)(nil)

// AddPool registers a pool with its config and reserves.
func (r *Reader) AddPool(p Pool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pools = append(r.pools, p)
}

// SetReserves replaces the reserves of an existing pool.
func (r *Reader) SetReserves(address string, reserves chain.PoolReserves) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.pools {
		if r.pools[i].Address == address {
			r.pools[i].Reserves = reserves
		}
	}
}

// AddToken registers token metadata.
func (r *Reader) AddToken(address string, meta chain.TokenMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[address] = meta
}

// FailPool forces config/reserve calls for a pool to return err.
func (r *Reader) FailPool(address string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failing[address] = err
}

// FailList forces ListPools to return err.
func (r *Reader) FailList(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listErr = err
}

// FailToken forces metadata calls for a token to return err.
func (r *Reader) FailToken(address string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metaErr[address] = err
}

// ListPools returns all registered pool addresses.
func (r *Reader) ListPools(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["ListPools"]++
	if r.listErr != nil {
		return nil, r.listErr
	}
	addrs := make([]string, 0, len(r.pools))
	for _, p := range r.pools {
		addrs = append(addrs, p.Address)
	}
	return addrs, nil
}

// GetPoolConfig returns the registered config for a pool.
func (r *Reader) GetPoolConfig(_ context.Context, pool string) (*chain.PoolConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["GetPoolConfig"]++
	if err := r.failing[pool]; err != nil {
		return nil, err
	}
	for _, p := range r.pools {
		if p.Address == pool {
			cfg := p.Config
			return &cfg, nil
		}
	}
	return nil, fmt.Errorf("pool not found: %s", pool)
}

// GetPoolReserves returns the registered reserves for a pool.
func (r *Reader) GetPoolReserves(_ context.Context, pool string) (*chain.PoolReserves, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["GetPoolReserves"]++
	if err := r.failing[pool]; err != nil {
		return nil, err
	}
	for _, p := range r.pools {
		if p.Address == pool {
			res := p.Reserves
			return &res, nil
		}
	}
	return nil, fmt.Errorf("pool not found: %s", pool)
}

// GetTokenMetadata returns the registered metadata for a token.
func (r *Reader) GetTokenMetadata(_ context.Context, token string) (*chain.TokenMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls["GetTokenMetadata"]++
	if err := r.metaErr[token]; err != nil {
		return nil, err
	}
	meta, ok := r.tokens[token]
	if !ok {
		return nil, fmt.Errorf("token not found: %s", token)
	}
	m := meta
	return &m, nil
}
