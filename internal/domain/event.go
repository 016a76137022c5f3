package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventChannel is the signal-bus channel registry mutations are published on.
const EventChannel = "oracle:events"

// EventType enumerates registry mutations.
type EventType string

const (
	EventMarketRegistered  EventType = "market_registered"
	EventPairUpdated       EventType = "pair_updated"
	EventAuctioneerUpdated EventType = "auctioneer_updated"
	EventOwnerTransferred  EventType = "owner_transferred"
)

// OracleEvent describes a committed registry mutation.
type OracleEvent struct {
	Type       EventType       `json:"type"`
	MarketID   *uint64         `json:"market_id,omitempty"`
	Pair       *PairKey        `json:"pair,omitempty"`
	Address    *common.Address `json:"address,omitempty"`
	Enabled    *bool           `json:"enabled,omitempty"`
	Caller     common.Address  `json:"caller"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Detail flattens the event into the audit-log detail map. Keys match the
// JSON field names; addresses are checksummed hex.
func (e OracleEvent) Detail() map[string]any {
	d := map[string]any{
		"type":        string(e.Type),
		"caller":      e.Caller.Hex(),
		"occurred_at": e.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if e.MarketID != nil {
		d["market_id"] = *e.MarketID
	}
	if e.Pair != nil {
		d["pair"] = map[string]any{
			"quote":  e.Pair.Quote.Hex(),
			"payout": e.Pair.Payout.Hex(),
		}
	}
	if e.Address != nil {
		d["address"] = e.Address.Hex()
	}
	if e.Enabled != nil {
		d["enabled"] = *e.Enabled
	}
	return d
}
