package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MarketRegistration binds an auctioneer-issued market id to a pair. It is
// created once and never changes.
type MarketRegistration struct {
	MarketID     uint64         `json:"market_id"`
	Pair         PairKey        `json:"pair"`
	Auctioneer   common.Address `json:"auctioneer"`
	RegisteredAt time.Time      `json:"registered_at"`
}

// AuctioneerEntry is a source permitted to register markets.
type AuctioneerEntry struct {
	Address   common.Address `json:"address"`
	Enabled   bool           `json:"enabled"`
	UpdatedAt time.Time      `json:"updated_at"`
}
