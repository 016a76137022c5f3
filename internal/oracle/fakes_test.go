package oracle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/bondoracle/internal/domain"
)

var errNoContract = errors.New("no contract at address")

var (
	tokenA = common.HexToAddress("0x000000000000000000000000000000000000000a")
	tokenB = common.HexToAddress("0x000000000000000000000000000000000000000b")
	tokenC = common.HexToAddress("0x000000000000000000000000000000000000000c")

	feedA = common.HexToAddress("0x00000000000000000000000000000000000000fa")
	feedB = common.HexToAddress("0x00000000000000000000000000000000000000fb")

	poolAB = common.HexToAddress("0x0000000000000000000000000000000000000ab0")
	poolBC = common.HexToAddress("0x0000000000000000000000000000000000000bc0")

	owner      = common.HexToAddress("0x1000000000000000000000000000000000000001")
	auctioneer = common.HexToAddress("0x2000000000000000000000000000000000000002")
	stranger   = common.HexToAddress("0x3000000000000000000000000000000000000003")
)

// testNow is the fixed wall clock every fake is positioned against.
var testNow = time.Unix(1_700_000_000, 0)

func fixedClock() time.Time { return testNow }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type fakeFeed struct {
	round    domain.FeedRound
	decimals uint8
	err      error
}

func (f *fakeFeed) LatestRoundData(context.Context) (domain.FeedRound, error) {
	if f.err != nil {
		return domain.FeedRound{}, f.err
	}
	return f.round, nil
}

func (f *fakeFeed) Decimals(context.Context) (uint8, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.decimals, nil
}

// freshFeed reports answer with the given precision, updated ageSeconds ago.
func freshFeed(answer int64, decimals uint8, ageSeconds uint64) *fakeFeed {
	return &fakeFeed{
		decimals: decimals,
		round: domain.FeedRound{
			RoundID:         big.NewInt(10),
			Answer:          big.NewInt(answer),
			StartedAt:       uint64(testNow.Unix()) - ageSeconds,
			UpdatedAt:       uint64(testNow.Unix()) - ageSeconds,
			AnsweredInRound: big.NewInt(10),
		},
	}
}

type fakePool struct {
	token0, token1 common.Address
	// tick is the constant average tick; Observe returns cumulatives that
	// advance by tick per second.
	tick int64
	// cumulatives overrides the tick-derived cumulatives when set.
	cumulatives []int64
	oldest      uint32
	err         error
}

func (p *fakePool) Token0(context.Context) (common.Address, error) { return p.token0, p.err }
func (p *fakePool) Token1(context.Context) (common.Address, error) { return p.token1, p.err }

func (p *fakePool) Observe(_ context.Context, secondsAgos []uint32) ([]int64, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.cumulatives != nil {
		return p.cumulatives, nil
	}
	out := make([]int64, len(secondsAgos))
	for i, s := range secondsAgos {
		out[i] = -p.tick * int64(s)
	}
	return out, nil
}

func (p *fakePool) OldestObservationTimestamp(context.Context) (uint32, error) {
	return p.oldest, p.err
}

// newPool builds a pool over (a, b) sorted into token0/token1, with an hour
// of observation history.
func newPool(a, b common.Address, tick int64) *fakePool {
	t0, t1 := a, b
	if t1.Cmp(t0) < 0 {
		t0, t1 = t1, t0
	}
	return &fakePool{
		token0: t0,
		token1: t1,
		tick:   tick,
		oldest: uint32(testNow.Add(-time.Hour).Unix()),
	}
}

type fakeToken struct{ decimals uint8 }

func (t fakeToken) Decimals(context.Context) (uint8, error) { return t.decimals, nil }

type missingToken struct{}

func (missingToken) Decimals(context.Context) (uint8, error) { return 0, errNoContract }

type fakeChain struct {
	feeds  map[common.Address]*fakeFeed
	pools  map[common.Address]*fakePool
	tokens map[common.Address]uint8
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		feeds: make(map[common.Address]*fakeFeed),
		pools: make(map[common.Address]*fakePool),
		tokens: map[common.Address]uint8{
			tokenA: 18,
			tokenB: 18,
			tokenC: 18,
		},
	}
}

func (c *fakeChain) PriceFeed(addr common.Address) domain.PriceFeed {
	if f, ok := c.feeds[addr]; ok {
		return f
	}
	return &fakeFeed{err: errNoContract}
}

func (c *fakeChain) Pool(addr common.Address) domain.Pool {
	if p, ok := c.pools[addr]; ok {
		return p
	}
	return &fakePool{err: errNoContract}
}

func (c *fakeChain) Token(addr common.Address) domain.Token {
	if d, ok := c.tokens[addr]; ok {
		return fakeToken{decimals: d}
	}
	return missingToken{}
}

type fakeAggregator struct {
	markets map[uint64]common.Address
}

func (a *fakeAggregator) AuctioneerOf(_ context.Context, id uint64) (common.Address, error) {
	return a.markets[id], nil
}

type fakeBus struct {
	mu       sync.Mutex
	messages [][]byte
	err      error
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	if b.err != nil {
		return b.err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if channel == domain.EventChannel {
		b.messages = append(b.messages, payload)
	}
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

type fakeLocks struct {
	mu       sync.Mutex
	acquired []string
	err      error
}

func (l *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	l.acquired = append(l.acquired, key)
	l.mu.Unlock()
	return func() {}, nil
}
