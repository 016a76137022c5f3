package oracle

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bondoracle/internal/domain"
)

func encodeFeed(t *testing.T, cfg FeedPairConfig) []byte {
	t.Helper()
	data, err := cfg.Encode()
	require.NoError(t, err)
	return data
}

func twoFeedConfig(decimals uint8, invert bool) FeedPairConfig {
	return FeedPairConfig{
		PayoutFeed:           feedA,
		PayoutStaleTolerance: 3600,
		QuoteFeed:            feedB,
		QuoteStaleTolerance:  3600,
		Decimals:             decimals,
		Invert:               invert,
	}
}

func pow10(n int64) *big.Int { return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil) }

func TestFeedPairConfig_Decode(t *testing.T) {
	cfg := twoFeedConfig(18, true)
	got, err := DecodeFeedPairConfig(encodeFeed(t, cfg))
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	_, err = DecodeFeedPairConfig([]byte{0x01, 0x02})
	assert.ErrorIs(t, err, domain.ErrInvalidParams)

	_, err = FeedPairConfig{PayoutStaleTolerance: 1 << 48}.Encode()
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestFeedEngine_TwoFeedPrice(t *testing.T) {
	tests := []struct {
		name     string
		payout   *fakeFeed
		quote    *fakeFeed
		decimals uint8
		invert   bool
		want     *big.Int
	}{
		{
			name:     "same precision",
			payout:   freshFeed(2000_00000000, 8, 60),
			quote:    freshFeed(1_00000000, 8, 60),
			decimals: 18,
			want:     new(big.Int).Mul(big.NewInt(2000), pow10(18)),
		},
		{
			name:     "mixed precision",
			payout:   freshFeed(2000_00000000, 8, 60),
			quote:    freshFeed(1_000000000_000000000, 18, 60),
			decimals: 18,
			want:     new(big.Int).Mul(big.NewInt(2000), pow10(18)),
		},
		{
			name:     "inverted",
			payout:   freshFeed(2000_00000000, 8, 60),
			quote:    freshFeed(1_00000000, 8, 60),
			decimals: 18,
			invert:   true,
			want:     new(big.Int).Mul(big.NewInt(5), pow10(14)),
		},
		{
			name:     "six decimals",
			payout:   freshFeed(3_00000000, 8, 0),
			quote:    freshFeed(2_00000000, 8, 0),
			decimals: 6,
			want:     big.NewInt(1_500000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newFakeChain()
			chain.feeds[feedA] = tt.payout
			chain.feeds[feedB] = tt.quote
			engine := NewFeedEngine(chain, WithFeedClock(fixedClock))

			data := encodeFeed(t, twoFeedConfig(tt.decimals, tt.invert))
			pair := domain.NewPairKey(tokenB, tokenA)
			require.NoError(t, engine.ValidatePair(context.Background(), pair, data))

			price, err := engine.Price(context.Background(), pair, data)
			require.NoError(t, err)
			assert.Equal(t, 0, tt.want.Cmp(price), "got %s want %s", price, tt.want)

			dec, err := engine.Decimals(data)
			require.NoError(t, err)
			assert.Equal(t, tt.decimals, dec)
		})
	}
}

func TestFeedEngine_SingleFeed(t *testing.T) {
	chain := newFakeChain()
	chain.feeds[feedA] = freshFeed(2_00000000, 8, 10)
	engine := NewFeedEngine(chain, WithFeedClock(fixedClock))
	pair := domain.NewPairKey(tokenB, tokenA)

	cfg := FeedPairConfig{PayoutFeed: feedA, PayoutStaleTolerance: 60, Decimals: 6}
	data := encodeFeed(t, cfg)
	require.NoError(t, engine.ValidatePair(context.Background(), pair, data))

	price, err := engine.Price(context.Background(), pair, data)
	require.NoError(t, err)
	assert.Equal(t, int64(2_000000), price.Int64())

	cfg.Invert = true
	price, err = engine.Price(context.Background(), pair, encodeFeed(t, cfg))
	require.NoError(t, err)
	assert.Equal(t, int64(500000), price.Int64())
}

func TestFeedEngine_RejectsBadRounds(t *testing.T) {
	stale := freshFeed(2000_00000000, 8, 3601)

	exactlyTolerance := freshFeed(2000_00000000, 8, 3600)

	zero := freshFeed(0, 8, 0)

	negative := freshFeed(-1, 8, 0)

	carried := freshFeed(2000_00000000, 8, 0)
	carried.round.AnsweredInRound = big.NewInt(9)

	tests := []struct {
		name    string
		payout  *fakeFeed
		wantErr bool
	}{
		{"stale beyond tolerance", stale, true},
		{"age equal to tolerance", exactlyTolerance, false},
		{"zero answer", zero, true},
		{"negative answer", negative, true},
		{"answered in earlier round", carried, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newFakeChain()
			chain.feeds[feedA] = tt.payout
			chain.feeds[feedB] = freshFeed(1_00000000, 8, 0)
			engine := NewFeedEngine(chain, WithFeedClock(fixedClock))

			price, err := engine.Price(context.Background(), domain.NewPairKey(tokenB, tokenA), encodeFeed(t, twoFeedConfig(18, false)))
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrInvalidParams)
				assert.Nil(t, price)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, price)
		})
	}
}

func TestFeedEngine_RejectsZeroPrice(t *testing.T) {
	tests := []struct {
		name   string
		payout *fakeFeed
		quote  *fakeFeed
		cfg    FeedPairConfig
	}{
		{
			name:   "two feeds",
			payout: freshFeed(1, 8, 0),
			quote:  freshFeed(1_000_000_00000000, 8, 0),
			cfg:    twoFeedConfig(6, false),
		},
		{
			name:   "two feeds inverted",
			payout: freshFeed(1_000_000_00000000, 8, 0),
			quote:  freshFeed(1, 8, 0),
			cfg:    twoFeedConfig(6, true),
		},
		{
			name:   "single feed",
			payout: freshFeed(1, 8, 0),
			cfg:    FeedPairConfig{PayoutFeed: feedA, PayoutStaleTolerance: 60, Decimals: 6},
		},
		{
			name:   "single feed inverted",
			payout: freshFeed(1_000_000_000_00000000, 8, 0),
			cfg:    FeedPairConfig{PayoutFeed: feedA, PayoutStaleTolerance: 60, Decimals: 6, Invert: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newFakeChain()
			chain.feeds[feedA] = tt.payout
			if tt.quote != nil {
				chain.feeds[feedB] = tt.quote
			}
			engine := NewFeedEngine(chain, WithFeedClock(fixedClock))

			price, err := engine.Price(context.Background(), domain.NewPairKey(tokenB, tokenA), encodeFeed(t, tt.cfg))
			require.ErrorIs(t, err, domain.ErrInvalidParams)
			assert.Nil(t, price)
		})
	}
}

func TestFeedEngine_FeedPrecisionCheckedAtQueryTime(t *testing.T) {
	chain := newFakeChain()
	chain.feeds[feedA] = freshFeed(2000_00000000, 8, 0)
	chain.feeds[feedB] = freshFeed(1_00000000, 8, 0)
	engine := NewFeedEngine(chain, WithFeedClock(fixedClock))
	data := encodeFeed(t, twoFeedConfig(18, false))
	require.NoError(t, engine.ValidatePair(context.Background(), domain.NewPairKey(tokenB, tokenA), data))

	chain.feeds[feedB].decimals = 78
	price, err := engine.Price(context.Background(), domain.NewPairKey(tokenB, tokenA), data)
	require.ErrorIs(t, err, domain.ErrInvalidParams)
	assert.Nil(t, price)
}

func TestFeedEngine_StaleQuoteFeed(t *testing.T) {
	chain := newFakeChain()
	chain.feeds[feedA] = freshFeed(2000_00000000, 8, 0)
	chain.feeds[feedB] = freshFeed(1_00000000, 8, 7200)
	engine := NewFeedEngine(chain, WithFeedClock(fixedClock))

	_, err := engine.Price(context.Background(), domain.NewPairKey(tokenB, tokenA), encodeFeed(t, twoFeedConfig(18, false)))
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestFeedEngine_ValidatePair(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*FeedPairConfig, *fakeChain)
	}{
		{"decimals below range", func(c *FeedPairConfig, _ *fakeChain) { c.Decimals = 5 }},
		{"decimals above range", func(c *FeedPairConfig, _ *fakeChain) { c.Decimals = 19 }},
		{"zero payout feed", func(c *FeedPairConfig, _ *fakeChain) { c.PayoutFeed = common.Address{} }},
		{"zero payout tolerance", func(c *FeedPairConfig, _ *fakeChain) { c.PayoutStaleTolerance = 0 }},
		{"zero quote tolerance", func(c *FeedPairConfig, _ *fakeChain) { c.QuoteStaleTolerance = 0 }},
		{"feed precision too high", func(_ *FeedPairConfig, ch *fakeChain) { ch.feeds[feedB].decimals = 19 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newFakeChain()
			chain.feeds[feedA] = freshFeed(2000_00000000, 8, 0)
			chain.feeds[feedB] = freshFeed(1_00000000, 8, 0)
			cfg := twoFeedConfig(18, false)
			tt.mutate(&cfg, chain)

			engine := NewFeedEngine(chain, WithFeedClock(fixedClock))
			err := engine.ValidatePair(context.Background(), domain.NewPairKey(tokenB, tokenA), encodeFeed(t, cfg))
			assert.ErrorIs(t, err, domain.ErrInvalidParams)
		})
	}

	t.Run("unreachable feed", func(t *testing.T) {
		chain := newFakeChain()
		chain.feeds[feedA] = freshFeed(2000_00000000, 8, 0)
		engine := NewFeedEngine(chain)
		err := engine.ValidatePair(context.Background(), domain.NewPairKey(tokenB, tokenA), encodeFeed(t, twoFeedConfig(18, false)))
		assert.ErrorIs(t, err, errNoContract)
	})
}

func TestL2FeedEngine_SequencerGate(t *testing.T) {
	sequencerRound := func(answer int64, startedAgo time.Duration) *fakeFeed {
		return &fakeFeed{round: domain.FeedRound{
			RoundID:         big.NewInt(1),
			Answer:          big.NewInt(answer),
			StartedAt:       uint64(testNow.Add(-startedAgo).Unix()),
			UpdatedAt:       uint64(testNow.Unix()),
			AnsweredInRound: big.NewInt(1),
		}}
	}

	tests := []struct {
		name      string
		sequencer *fakeFeed
		wantErr   bool
	}{
		{"up past grace period", sequencerRound(0, 2*time.Hour), false},
		{"down", sequencerRound(1, 2*time.Hour), true},
		{"inside grace period", sequencerRound(0, 30*time.Minute), true},
		{"one second short of grace period", sequencerRound(0, time.Hour-time.Second), true},
		{"exactly grace period", sequencerRound(0, time.Hour), false},
		{"round not started", &fakeFeed{round: domain.FeedRound{Answer: big.NewInt(0)}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newFakeChain()
			chain.feeds[feedA] = freshFeed(2000_00000000, 8, 0)
			chain.feeds[feedB] = freshFeed(1_00000000, 8, 0)
			engine := NewL2FeedEngine(chain, tt.sequencer, time.Hour, WithFeedClock(fixedClock))
			assert.Equal(t, domain.VariantL2Feed, engine.Variant())

			price, err := engine.Price(context.Background(), domain.NewPairKey(tokenB, tokenA), encodeFeed(t, twoFeedConfig(18, false)))
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrInvalidParams)
				assert.Nil(t, price)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0, new(big.Int).Mul(big.NewInt(2000), pow10(18)).Cmp(price))
		})
	}
}

func TestNewL2FeedEngine_DefaultGrace(t *testing.T) {
	engine := NewL2FeedEngine(newFakeChain(), &fakeFeed{}, 0)
	require.NotNil(t, engine.sequencer)
	assert.Equal(t, DefaultSequencerGracePeriod, engine.sequencer.grace)
}
