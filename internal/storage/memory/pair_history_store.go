package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"dex-price-engine/internal/domain"
	"dex-price-engine/internal/storage"
)

// PairHistoryStore is an in-memory implementation of storage.PairHistoryStore.
type PairHistoryStore struct {
	mu     sync.RWMutex
	rows   []*domain.PairSnapshot
	nextID int64
	seen   map[bucketKey]struct{}
}

type bucketKey struct {
	id int64
	at int64 // unix seconds of the bucket
}

// NewPairHistoryStore creates a new in-memory pair history store.
func NewPairHistoryStore() *PairHistoryStore {
	return &PairHistoryStore{nextID: 1, seen: make(map[bucketKey]struct{})}
}

var _ storage.PairHistoryStore = (*PairHistoryStore)(nil)

// Append inserts one snapshot. Returns ErrDuplicateKey for a repeated
// (pair, bucket) combination.
func (s *PairHistoryStore) Append(_ context.Context, snap *domain.PairSnapshot) error {
	if snap == nil || snap.PairID == 0 || snap.CreatedAt.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := bucketKey{id: snap.PairID, at: snap.CreatedAt.Unix()}
	if _, exists := s.seen[key]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *snap
	cp.ID = s.nextID
	s.nextID++
	s.rows = append(s.rows, &cp)
	s.seen[key] = struct{}{}
	return nil
}

// GetByPair retrieves snapshots for a pair within [from, to], ordered by created_at ASC.
func (s *PairHistoryStore) GetByPair(_ context.Context, pairID int64, from, to time.Time) ([]*domain.PairSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.PairSnapshot
	for _, r := range s.rows {
		if r.PairID != pairID {
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

// PruneOlderThan deletes snapshots older than cutoff and returns the count.
func (s *PairHistoryStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.rows[:0]
	var deleted int64
	for _, r := range s.rows {
		if r.CreatedAt.Before(cutoff) {
			delete(s.seen, bucketKey{id: r.PairID, at: r.CreatedAt.Unix()})
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.rows = kept
	return deleted, nil
}
