package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"dex-price-engine/internal/domain"
	"dex-price-engine/internal/storage"
)

// TokenHistoryStore is an in-memory implementation of storage.TokenHistoryStore.
type TokenHistoryStore struct {
	mu     sync.RWMutex
	rows   []*domain.TokenPricePoint
	nextID int64
	seen   map[bucketKey]struct{}
}

// NewTokenHistoryStore creates a new in-memory token history store.
func NewTokenHistoryStore() *TokenHistoryStore {
	return &TokenHistoryStore{nextID: 1, seen: make(map[bucketKey]struct{})}
}

var _ storage.TokenHistoryStore = (*TokenHistoryStore)(nil)

// Append inserts one price point. Returns ErrDuplicateKey for a
// repeated (token, bucket) combination.
func (s *TokenHistoryStore) Append(_ context.Context, p *domain.TokenPricePoint) error {
	if p == nil || p.TokenID == 0 || p.CreatedAt.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := bucketKey{id: p.TokenID, at: p.CreatedAt.Unix()}
	if _, exists := s.seen[key]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *p
	cp.ID = s.nextID
	s.nextID++
	s.rows = append(s.rows, &cp)
	s.seen[key] = struct{}{}
	return nil
}

// GetByToken retrieves price points for a token within [from, to], ordered by created_at ASC.
func (s *TokenHistoryStore) GetByToken(_ context.Context, tokenID int64, from, to time.Time) ([]*domain.TokenPricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.TokenPricePoint
	for _, r := range s.rows {
		if r.TokenID != tokenID {
			continue
		}
		if r.CreatedAt.Before(from) || r.CreatedAt.After(to) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// PruneOlderThan deletes price points older than cutoff and returns the count.
func (s *TokenHistoryStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.rows[:0]
	var deleted int64
	for _, r := range s.rows {
		if r.CreatedAt.Before(cutoff) {
			delete(s.seen, bucketKey{id: r.TokenID, at: r.CreatedAt.Unix()})
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.rows = kept
	return deleted, nil
}
