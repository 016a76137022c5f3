package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PairStore persists per-pair engine configuration.
type PairStore interface {
	// GetPair returns ErrNotFound when the pair was never configured.
	GetPair(ctx context.Context, key PairKey) (PairRecord, error)
	PutPair(ctx context.Context, rec PairRecord) error
	ListPairs(ctx context.Context) ([]PairRecord, error)
}

// MarketStore persists market registrations.
type MarketStore interface {
	// CreateMarket returns ErrAlreadyExists if the id is already bound.
	CreateMarket(ctx context.Context, m MarketRegistration) error
	// GetMarket returns ErrNotFound for unknown ids.
	GetMarket(ctx context.Context, id uint64) (MarketRegistration, error)
	ListMarkets(ctx context.Context, opts ListOpts) ([]MarketRegistration, error)
}

// AuctioneerStore persists the auctioneer allow-list.
type AuctioneerStore interface {
	IsAuctioneer(ctx context.Context, addr common.Address) (bool, error)
	SetAuctioneer(ctx context.Context, addr common.Address, enabled bool) error
	ListAuctioneers(ctx context.Context) ([]AuctioneerEntry, error)
}

// OwnerStore persists the single administrator identity.
type OwnerStore interface {
	// Owner returns ErrNotFound if no owner was ever recorded.
	Owner(ctx context.Context) (common.Address, error)
	SetOwner(ctx context.Context, owner common.Address) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// RegistryStore bundles everything the registry persists.
type RegistryStore struct {
	Pairs       PairStore
	Markets     MarketStore
	Auctioneers AuctioneerStore
	Owner       OwnerStore
	Audit       AuditStore
}
