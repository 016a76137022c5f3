package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/bondoracle/internal/domain"
)

// AuctioneerStore is an in-memory implementation of domain.AuctioneerStore.
type AuctioneerStore struct {
	mu   sync.RWMutex
	data map[common.Address]domain.AuctioneerEntry
}

// NewAuctioneerStore creates a new in-memory auctioneer store.
func NewAuctioneerStore() *AuctioneerStore {
	return &AuctioneerStore{data: make(map[common.Address]domain.AuctioneerEntry)}
}

func (s *AuctioneerStore) IsAuctioneer(_ context.Context, addr common.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[addr].Enabled, nil
}

func (s *AuctioneerStore) SetAuctioneer(_ context.Context, addr common.Address, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[addr] = domain.AuctioneerEntry{Address: addr, Enabled: enabled, UpdatedAt: time.Now().UTC()}
	return nil
}

// ListAuctioneers returns every address ever configured, enabled or not.
func (s *AuctioneerStore) ListAuctioneers(_ context.Context) ([]domain.AuctioneerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuctioneerEntry, 0, len(s.data))
	for _, e := range s.data {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0 })
	return out, nil
}

// OwnerStore is an in-memory implementation of domain.OwnerStore.
type OwnerStore struct {
	mu    sync.RWMutex
	owner *common.Address
}

// NewOwnerStore creates an owner store with no owner recorded.
func NewOwnerStore() *OwnerStore { return &OwnerStore{} }

func (s *OwnerStore) Owner(_ context.Context) (common.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.owner == nil {
		return common.Address{}, domain.ErrNotFound
	}
	return *s.owner, nil
}

func (s *OwnerStore) SetOwner(_ context.Context, owner common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner = &owner
	return nil
}

var (
	_ domain.AuctioneerStore = (*AuctioneerStore)(nil)
	_ domain.OwnerStore      = (*OwnerStore)(nil)
)
