// Package memory holds in-memory implementations of the registry stores.
// They back tests and single-process deployments without Postgres.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/alanyoungcy/bondoracle/internal/domain"
)

// PairStore is an in-memory implementation of domain.PairStore.
type PairStore struct {
	mu   sync.RWMutex
	data map[domain.PairKey]domain.PairRecord
}

// NewPairStore creates a new in-memory pair store.
func NewPairStore() *PairStore {
	return &PairStore{data: make(map[domain.PairKey]domain.PairRecord)}
}

// GetPair returns ErrNotFound if the pair was never stored.
func (s *PairStore) GetPair(_ context.Context, key domain.PairKey) (domain.PairRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[key]
	if !ok {
		return domain.PairRecord{}, domain.ErrNotFound
	}
	return copyPair(rec), nil
}

// PutPair inserts or replaces a pair record.
func (s *PairStore) PutPair(_ context.Context, rec domain.PairRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[rec.Pair] = copyPair(rec)
	return nil
}

// ListPairs returns every stored pair ordered by (quote, payout).
func (s *PairStore) ListPairs(_ context.Context) ([]domain.PairRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PairRecord, 0, len(s.data))
	for _, rec := range s.data {
		out = append(out, copyPair(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].Pair.Quote[:], out[j].Pair.Quote[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(out[i].Pair.Payout[:], out[j].Pair.Payout[:]) < 0
	})
	return out, nil
}

func copyPair(rec domain.PairRecord) domain.PairRecord {
	if rec.Config != nil {
		rec.Config = append([]byte(nil), rec.Config...)
	}
	return rec
}

var _ domain.PairStore = (*PairStore)(nil)
