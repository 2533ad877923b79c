package memory

import (
	"context"
	"sync"
	"time"

	"dex-price-engine/internal/domain"
	"dex-price-engine/internal/storage"
)

// PairStore is an in-memory implementation of storage.PairStore.
type PairStore struct {
	mu        sync.RWMutex
	byAddress map[string]*domain.Pair
	byID      []*domain.Pair // index = id - 1
}

// NewPairStore creates a new in-memory pair store.
func NewPairStore() *PairStore {
	return &PairStore{byAddress: make(map[string]*domain.Pair)}
}

var _ storage.PairStore = (*PairStore)(nil)

// GetOrCreate returns the existing pair for p.Address or inserts p.
func (s *PairStore) GetOrCreate(_ context.Context, p *domain.Pair) (*domain.Pair, error) {
	if p == nil || p.Address == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byAddress[p.Address]; ok {
		cp := *existing
		return &cp, nil
	}

	cp := *p
	cp.ID = int64(len(s.byID) + 1)
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.byAddress[cp.Address] = &cp
	s.byID = append(s.byID, &cp)

	out := cp
	return &out, nil
}

// GetByAddress retrieves a pair by pool address.
func (s *PairStore) GetByAddress(_ context.Context, address string) (*domain.Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byAddress[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// List retrieves all pairs ordered by id.
func (s *PairStore) List(_ context.Context) ([]*domain.Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Pair, 0, len(s.byID))
	for _, p := range s.byID {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// UpdateReserves refreshes the denormalized current-reserve view.
func (s *PairStore) UpdateReserves(_ context.Context, pairID int64, reserves domain.Reserves) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pairID < 1 || pairID > int64(len(s.byID)) {
		return storage.ErrNotFound
	}
	p := s.byID[pairID-1]
	p.AssetAAmount = reserves.AssetA
	p.AssetBAmount = reserves.AssetB
	p.AssetShareAmount = reserves.AssetShare
	p.UpdatedAt = time.Now().UTC()
	return nil
}
