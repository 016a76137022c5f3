package domain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FeedRound is the latest round reported by a price feed.
type FeedRound struct {
	RoundID         *big.Int
	Answer          *big.Int
	StartedAt       uint64
	UpdatedAt       uint64
	AnsweredInRound *big.Int
}

// PriceFeed is a Chainlink-style aggregator.
type PriceFeed interface {
	LatestRoundData(ctx context.Context) (FeedRound, error)
	Decimals(ctx context.Context) (uint8, error)
}

// SequencerFeed reports L2 sequencer liveness. Answer 0 means up, 1 down;
// StartedAt is the time of the last status change.
type SequencerFeed interface {
	LatestRoundData(ctx context.Context) (FeedRound, error)
}

// Pool is a concentrated-liquidity pool with a tick-cumulative oracle.
type Pool interface {
	Token0(ctx context.Context) (common.Address, error)
	Token1(ctx context.Context) (common.Address, error)
	// Observe returns tick cumulatives for each secondsAgo offset.
	Observe(ctx context.Context, secondsAgos []uint32) ([]int64, error)
	// OldestObservationTimestamp returns the block time of the earliest
	// observation still stored by the pool.
	OldestObservationTimestamp(ctx context.Context) (uint32, error)
}

// Token is an ERC-20 token.
type Token interface {
	Decimals(ctx context.Context) (uint8, error)
}

// Aggregator is the upstream auction aggregator that issues market ids.
type Aggregator interface {
	AuctioneerOf(ctx context.Context, marketID uint64) (common.Address, error)
}

// ChainReader resolves on-chain collaborators by address.
type ChainReader interface {
	PriceFeed(addr common.Address) PriceFeed
	Pool(addr common.Address) Pool
	Token(addr common.Address) Token
}
