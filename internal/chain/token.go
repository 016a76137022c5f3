package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/bondoracle/internal/domain"
)

// Token is an ERC-20 token.
type Token struct {
	contract
}

func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	vals, err := t.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	return vals[0].(uint8), nil
}

// Aggregator is the bond aggregator that issues market ids to auctioneers.
type Aggregator struct {
	contract
}

// NewAggregator binds the aggregator at addr.
func NewAggregator(caller ContractCaller, addr common.Address) *Aggregator {
	return &Aggregator{contract: contract{caller: caller, addr: addr, abi: bondAgg}}
}

// AuctioneerOf returns the auctioneer recorded for marketID, or the zero
// address if the id was never issued.
func (a *Aggregator) AuctioneerOf(ctx context.Context, marketID uint64) (common.Address, error) {
	vals, err := a.call(ctx, "getAuctioneer", new(big.Int).SetUint64(marketID))
	if err != nil {
		return common.Address{}, err
	}
	return vals[0].(common.Address), nil
}

var (
	_ domain.Token      = (*Token)(nil)
	_ domain.Aggregator = (*Aggregator)(nil)
)
