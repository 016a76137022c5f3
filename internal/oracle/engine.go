// Package oracle implements the bond price oracle: a registry binding
// auctioneer-issued market ids to token pairs, and the price engines that
// turn a pair configuration into a live fixed-point price.
//
// Prices are quote tokens per payout token, scaled by 10^decimals of the
// pair configuration. Nothing is cached; every query reads upstream state.
package oracle

import (
	"context"
	"math/big"
	"time"

	"github.com/alanyoungcy/bondoracle/internal/domain"
)

const (
	MinDecimals uint8 = 6
	MaxDecimals uint8 = 18
)

// Engine is one pricing strategy. Config payloads are opaque to the registry
// and interpreted only by the engine that accepted them.
type Engine interface {
	Variant() domain.Variant
	// ValidatePair decodes data and checks it against upstream state. It is
	// called before a supported config is stored.
	ValidatePair(ctx context.Context, pair domain.PairKey, data []byte) error
	Price(ctx context.Context, pair domain.PairKey, data []byte) (*big.Int, error)
	Decimals(data []byte) (uint8, error)
}

// Clock returns the current time. Engines take one so staleness and history
// checks can be driven deterministically.
type Clock func() time.Time

func systemClock() time.Time { return time.Now() }

func unixNow(c Clock) uint64 {
	ts := c().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}
