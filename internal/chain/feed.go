package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/alanyoungcy/bondoracle/internal/domain"
)

// Feed is a Chainlink AggregatorV3 price or sequencer-uptime feed.
type Feed struct {
	contract
}

func (f *Feed) LatestRoundData(ctx context.Context) (domain.FeedRound, error) {
	vals, err := f.call(ctx, "latestRoundData")
	if err != nil {
		return domain.FeedRound{}, err
	}
	if len(vals) != 5 {
		return domain.FeedRound{}, fmt.Errorf("chain: latestRoundData returned %d values", len(vals))
	}
	startedAt := vals[2].(*big.Int)
	updatedAt := vals[3].(*big.Int)
	if !startedAt.IsUint64() || !updatedAt.IsUint64() {
		return domain.FeedRound{}, fmt.Errorf("chain: feed %s timestamps out of range", f.addr.Hex())
	}
	return domain.FeedRound{
		RoundID:         vals[0].(*big.Int),
		Answer:          vals[1].(*big.Int),
		StartedAt:       startedAt.Uint64(),
		UpdatedAt:       updatedAt.Uint64(),
		AnsweredInRound: vals[4].(*big.Int),
	}, nil
}

func (f *Feed) Decimals(ctx context.Context) (uint8, error) {
	vals, err := f.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	return vals[0].(uint8), nil
}

var (
	_ domain.PriceFeed     = (*Feed)(nil)
	_ domain.SequencerFeed = (*Feed)(nil)
)
