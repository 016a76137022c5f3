package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/alanyoungcy/bondoracle/internal/domain"
)

// MarketStore is an in-memory implementation of domain.MarketStore.
type MarketStore struct {
	mu   sync.RWMutex
	data map[uint64]domain.MarketRegistration
}

// NewMarketStore creates a new in-memory market store.
func NewMarketStore() *MarketStore {
	return &MarketStore{data: make(map[uint64]domain.MarketRegistration)}
}

// CreateMarket returns ErrAlreadyExists if the id is already bound.
func (s *MarketStore) CreateMarket(_ context.Context, m domain.MarketRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[m.MarketID]; exists {
		return domain.ErrAlreadyExists
	}
	s.data[m.MarketID] = m
	return nil
}

// GetMarket returns ErrNotFound for unknown ids.
func (s *MarketStore) GetMarket(_ context.Context, id uint64) (domain.MarketRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data[id]
	if !ok {
		return domain.MarketRegistration{}, domain.ErrNotFound
	}
	return m, nil
}

// ListMarkets returns registrations ordered by id, filtered by registration
// time and paginated per opts.
func (s *MarketStore) ListMarkets(_ context.Context, opts domain.ListOpts) ([]domain.MarketRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.MarketRegistration
	for _, m := range s.data {
		if opts.Since != nil && m.RegisteredAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && m.RegisteredAt.After(*opts.Until) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarketID < out[j].MarketID })
	return paginate(out, opts), nil
}

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

var _ domain.MarketStore = (*MarketStore)(nil)
