package memory

import "github.com/alanyoungcy/bondoracle/internal/domain"

// NewRegistryStore wires a fresh set of in-memory stores.
func NewRegistryStore() domain.RegistryStore {
	return domain.RegistryStore{
		Pairs:       NewPairStore(),
		Markets:     NewMarketStore(),
		Auctioneers: NewAuctioneerStore(),
		Owner:       NewOwnerStore(),
		Audit:       NewAuditStore(),
	}
}
