package chain

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCaller answers eth_call by contract address and method name.
type fakeCaller struct {
	t        *testing.T
	handlers map[common.Address]map[string]func(args []any) []any
	abis     map[common.Address]abi.ABI
}

func newFakeCaller(t *testing.T) *fakeCaller {
	return &fakeCaller{
		t:        t,
		handlers: make(map[common.Address]map[string]func([]any) []any),
		abis:     make(map[common.Address]abi.ABI),
	}
}

func (f *fakeCaller) on(addr common.Address, def abi.ABI, method string, h func(args []any) []any) {
	if f.handlers[addr] == nil {
		f.handlers[addr] = make(map[string]func([]any) []any)
	}
	f.handlers[addr][method] = h
	f.abis[addr] = def
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	def, ok := f.abis[*msg.To]
	if !ok {
		return nil, nil
	}
	for name, m := range def.Methods {
		if !bytes.Equal(m.ID, msg.Data[:4]) {
			continue
		}
		h, ok := f.handlers[*msg.To][name]
		if !ok {
			return nil, errors.New("execution reverted")
		}
		args, err := m.Inputs.Unpack(msg.Data[4:])
		require.NoError(f.t, err)
		out, err := m.Outputs.Pack(h(args)...)
		require.NoError(f.t, err)
		return out, nil
	}
	return nil, errors.New("unknown selector")
}

var (
	feedAddr  = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	poolAddr  = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	tokenAddr = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	aggAddr   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

func TestFeed_LatestRoundData(t *testing.T) {
	caller := newFakeCaller(t)
	caller.on(feedAddr, aggregatorV3, "latestRoundData", func([]any) []any {
		return []any{big.NewInt(7), big.NewInt(2000_00000000), big.NewInt(100), big.NewInt(120), big.NewInt(7)}
	})
	caller.on(feedAddr, aggregatorV3, "decimals", func([]any) []any { return []any{uint8(8)} })

	feed := NewReader(caller).PriceFeed(feedAddr)
	round, err := feed.LatestRoundData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2000_00000000), round.Answer.Int64())
	assert.Equal(t, uint64(100), round.StartedAt)
	assert.Equal(t, uint64(120), round.UpdatedAt)
	assert.Equal(t, int64(7), round.AnsweredInRound.Int64())

	dec, err := feed.Decimals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(8), dec)
}

func TestFeed_NegativeAnswerSurvivesDecode(t *testing.T) {
	caller := newFakeCaller(t)
	caller.on(feedAddr, aggregatorV3, "latestRoundData", func([]any) []any {
		return []any{big.NewInt(1), big.NewInt(-5), big.NewInt(0), big.NewInt(0), big.NewInt(1)}
	})

	round, err := NewReader(caller).SequencerFeed(feedAddr).LatestRoundData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(-5), round.Answer.Int64())
}

func TestPool_TokensAndObserve(t *testing.T) {
	token0 := common.HexToAddress("0x0a")
	token1 := common.HexToAddress("0x0b")

	caller := newFakeCaller(t)
	caller.on(poolAddr, uniswapPool, "token0", func([]any) []any { return []any{token0} })
	caller.on(poolAddr, uniswapPool, "token1", func([]any) []any { return []any{token1} })
	caller.on(poolAddr, uniswapPool, "observe", func(args []any) []any {
		agos := args[0].([]uint32)
		cums := make([]*big.Int, len(agos))
		liq := make([]*big.Int, len(agos))
		for i, s := range agos {
			cums[i] = big.NewInt(-100 * int64(s))
			liq[i] = big.NewInt(0)
		}
		return []any{cums, liq}
	})

	pool := NewReader(caller).Pool(poolAddr)
	ctx := context.Background()

	got0, err := pool.Token0(ctx)
	require.NoError(t, err)
	assert.Equal(t, token0, got0)
	got1, err := pool.Token1(ctx)
	require.NoError(t, err)
	assert.Equal(t, token1, got1)

	cums, err := pool.Observe(ctx, []uint32{60, 0})
	require.NoError(t, err)
	assert.Equal(t, []int64{-6000, 0}, cums)
}

func slot0(index, cardinality uint16) func([]any) []any {
	return func([]any) []any {
		return []any{big.NewInt(1), big.NewInt(0), index, cardinality, cardinality, uint8(0), true}
	}
}

func observations(byIndex map[int64]uint32) func([]any) []any {
	return func(args []any) []any {
		i := args[0].(*big.Int).Int64()
		ts, ok := byIndex[i]
		return []any{ts, big.NewInt(0), big.NewInt(0), ok}
	}
}

func TestPool_OldestObservationTimestamp(t *testing.T) {
	tests := []struct {
		name        string
		index       uint16
		cardinality uint16
		stored      map[int64]uint32
		want        uint32
	}{
		{"wrapped buffer", 3, 10, map[int64]uint32{4: 1000, 0: 900}, 1000},
		{"buffer not yet wrapped", 3, 10, map[int64]uint32{0: 900}, 900},
		{"last slot wraps to zero", 9, 10, map[int64]uint32{0: 800}, 800},
		{"single slot", 0, 1, map[int64]uint32{0: 700}, 700},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := newFakeCaller(t)
			caller.on(poolAddr, uniswapPool, "slot0", slot0(tt.index, tt.cardinality))
			caller.on(poolAddr, uniswapPool, "observations", observations(tt.stored))

			got, err := NewReader(caller).Pool(poolAddr).OldestObservationTimestamp(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPool_NoObservations(t *testing.T) {
	caller := newFakeCaller(t)
	caller.on(poolAddr, uniswapPool, "slot0", slot0(0, 0))

	_, err := NewReader(caller).Pool(poolAddr).OldestObservationTimestamp(context.Background())
	assert.Error(t, err)
}

func TestToken_Decimals(t *testing.T) {
	caller := newFakeCaller(t)
	caller.on(tokenAddr, erc20, "decimals", func([]any) []any { return []any{uint8(6)} })

	dec, err := NewReader(caller).Token(tokenAddr).Decimals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(6), dec)
}

func TestAggregator_AuctioneerOf(t *testing.T) {
	auctioneer := common.HexToAddress("0x2000000000000000000000000000000000000002")
	caller := newFakeCaller(t)
	caller.on(aggAddr, bondAgg, "getAuctioneer", func(args []any) []any {
		if args[0].(*big.Int).Uint64() == 5 {
			return []any{auctioneer}
		}
		return []any{common.Address{}}
	})

	agg := NewAggregator(caller, aggAddr)
	got, err := agg.AuctioneerOf(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, auctioneer, got)

	got, err = agg.AuctioneerOf(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, got)
}

func TestCall_EmptyResultIsError(t *testing.T) {
	caller := newFakeCaller(t)

	_, err := NewReader(caller).Token(tokenAddr).Decimals(context.Background())
	assert.Error(t, err)
}

func TestCall_RevertPropagates(t *testing.T) {
	caller := newFakeCaller(t)
	caller.on(tokenAddr, erc20, "symbol", nil)

	_, err := NewReader(caller).Token(tokenAddr).Decimals(context.Background())
	assert.ErrorContains(t, err, "reverted")
}
