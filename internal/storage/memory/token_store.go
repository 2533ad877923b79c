package memory

import (
	"context"
	"sync"
	"time"

	"dex-price-engine/internal/domain"
	"dex-price-engine/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu        sync.RWMutex
	byAddress map[string]*domain.Token
	byID      []*domain.Token // index = id - 1
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{byAddress: make(map[string]*domain.Token)}
}

var _ storage.TokenStore = (*TokenStore)(nil)

// GetOrCreate returns the existing token for t.Address or inserts t.
func (s *TokenStore) GetOrCreate(_ context.Context, t *domain.Token) (*domain.Token, error) {
	if t == nil || t.Address == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byAddress[t.Address]; ok {
		cp := *existing
		return &cp, nil
	}

	cp := *t
	cp.ID = int64(len(s.byID) + 1)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.byAddress[cp.Address] = &cp
	s.byID = append(s.byID, &cp)

	out := cp
	return &out, nil
}

// GetByAddress retrieves a token by address.
func (s *TokenStore) GetByAddress(_ context.Context, address string) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byAddress[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// List retrieves all tokens ordered by id.
func (s *TokenStore) List(_ context.Context) ([]*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Token, 0, len(s.byID))
	for _, t := range s.byID {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}
