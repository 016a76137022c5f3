package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/bondoracle/internal/domain"
)

// Pool is a Uniswap V3 pool.
type Pool struct {
	contract
}

func (p *Pool) Token0(ctx context.Context) (common.Address, error) {
	return p.address(ctx, "token0")
}

func (p *Pool) Token1(ctx context.Context) (common.Address, error) {
	return p.address(ctx, "token1")
}

func (p *Pool) address(ctx context.Context, method string) (common.Address, error) {
	vals, err := p.call(ctx, method)
	if err != nil {
		return common.Address{}, err
	}
	return vals[0].(common.Address), nil
}

func (p *Pool) Observe(ctx context.Context, secondsAgos []uint32) ([]int64, error) {
	vals, err := p.call(ctx, "observe", secondsAgos)
	if err != nil {
		return nil, err
	}
	raw := vals[0].([]*big.Int)
	out := make([]int64, len(raw))
	for i, v := range raw {
		if !v.IsInt64() {
			return nil, fmt.Errorf("chain: pool %s tick cumulative %s out of range", p.addr.Hex(), v)
		}
		out[i] = v.Int64()
	}
	return out, nil
}

// OldestObservationTimestamp reads the slot after the current observation
// index in the ring buffer. That slot is uninitialised until the buffer has
// wrapped once, in which case slot 0 is the oldest.
func (p *Pool) OldestObservationTimestamp(ctx context.Context) (uint32, error) {
	slot0, err := p.call(ctx, "slot0")
	if err != nil {
		return 0, err
	}
	index := slot0[2].(uint16)
	cardinality := slot0[3].(uint16)
	if cardinality == 0 {
		return 0, fmt.Errorf("chain: pool %s has no observations", p.addr.Hex())
	}

	next := (uint64(index) + 1) % uint64(cardinality)
	ts, initialized, err := p.observation(ctx, next)
	if err != nil {
		return 0, err
	}
	if initialized {
		return ts, nil
	}
	ts, _, err = p.observation(ctx, 0)
	return ts, err
}

func (p *Pool) observation(ctx context.Context, i uint64) (uint32, bool, error) {
	vals, err := p.call(ctx, "observations", new(big.Int).SetUint64(i))
	if err != nil {
		return 0, false, err
	}
	return vals[0].(uint32), vals[3].(bool), nil
}

var _ domain.Pool = (*Pool)(nil)
