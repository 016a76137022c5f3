package oracle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/bondoracle/internal/domain"
	"github.com/alanyoungcy/bondoracle/internal/mathutil"
)

// maxFeedDecimals bounds the precision a feed may report.
const maxFeedDecimals uint8 = 18

// FeedEngine prices a pair from one or two external price feeds.
type FeedEngine struct {
	chain     domain.ChainReader
	now       Clock
	sequencer *sequencerGate
}

// FeedOption customises a FeedEngine.
type FeedOption func(*FeedEngine)

// WithFeedClock overrides the clock used for staleness checks.
func WithFeedClock(c Clock) FeedOption {
	return func(e *FeedEngine) { e.now = c }
}

// NewFeedEngine creates the composite feed engine.
func NewFeedEngine(chain domain.ChainReader, opts ...FeedOption) *FeedEngine {
	e := &FeedEngine{chain: chain, now: systemClock}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Variant implements Engine.
func (e *FeedEngine) Variant() domain.Variant {
	if e.sequencer != nil {
		return domain.VariantL2Feed
	}
	return domain.VariantFeed
}

// ValidatePair implements Engine.
func (e *FeedEngine) ValidatePair(ctx context.Context, pair domain.PairKey, data []byte) error {
	cfg, err := DecodeFeedPairConfig(data)
	if err != nil {
		return err
	}
	if err := checkDecimals(cfg.Decimals); err != nil {
		return err
	}
	if cfg.PayoutFeed == (common.Address{}) {
		return fmt.Errorf("oracle: payout feed is zero: %w", domain.ErrInvalidParams)
	}
	if cfg.PayoutStaleTolerance == 0 {
		return fmt.Errorf("oracle: payout stale tolerance is zero: %w", domain.ErrInvalidParams)
	}
	if err := e.checkFeed(ctx, cfg.PayoutFeed); err != nil {
		return err
	}
	if cfg.QuoteFeed == (common.Address{}) {
		return nil
	}
	if cfg.QuoteStaleTolerance == 0 {
		return fmt.Errorf("oracle: quote stale tolerance is zero: %w", domain.ErrInvalidParams)
	}
	return e.checkFeed(ctx, cfg.QuoteFeed)
}

func (e *FeedEngine) checkFeed(ctx context.Context, addr common.Address) error {
	dec, err := e.chain.PriceFeed(addr).Decimals(ctx)
	if err != nil {
		return fmt.Errorf("oracle: read decimals of feed %s: %w", addr.Hex(), err)
	}
	if dec > maxFeedDecimals {
		return fmt.Errorf("oracle: feed %s reports %d decimals: %w", addr.Hex(), dec, domain.ErrInvalidParams)
	}
	return nil
}

// Decimals implements Engine.
func (e *FeedEngine) Decimals(data []byte) (uint8, error) {
	cfg, err := DecodeFeedPairConfig(data)
	if err != nil {
		return 0, err
	}
	return cfg.Decimals, nil
}

// Price implements Engine.
func (e *FeedEngine) Price(ctx context.Context, pair domain.PairKey, data []byte) (*big.Int, error) {
	cfg, err := DecodeFeedPairConfig(data)
	if err != nil {
		return nil, err
	}
	if err := checkDecimals(cfg.Decimals); err != nil {
		return nil, err
	}
	if e.sequencer != nil {
		if err := e.sequencer.check(ctx, e.now); err != nil {
			return nil, err
		}
	}

	payout, payoutDec, err := e.latestAnswer(ctx, cfg.PayoutFeed, cfg.PayoutStaleTolerance)
	if err != nil {
		return nil, err
	}
	scale := mathutil.MustPow10(cfg.Decimals)

	var price *uint256.Int
	if cfg.QuoteFeed == (common.Address{}) {
		one := mathutil.MustPow10(payoutDec)
		if cfg.Invert {
			price, err = mathutil.MulDiv(one, scale, payout)
		} else {
			price, err = mathutil.MulDiv(payout, scale, one)
		}
	} else {
		quote, quoteDec, qerr := e.latestAnswer(ctx, cfg.QuoteFeed, cfg.QuoteStaleTolerance)
		if qerr != nil {
			return nil, qerr
		}
		price, err = twoFeedPrice(payout, payoutDec, quote, quoteDec, scale, cfg.Invert)
	}
	if err != nil {
		return nil, fmt.Errorf("oracle: price %s: %v: %w", pair, err, domain.ErrInvalidParams)
	}
	if price.IsZero() {
		return nil, fmt.Errorf("oracle: price %s rounds to zero at %d decimals: %w", pair, cfg.Decimals, domain.ErrInvalidParams)
	}
	return price.ToBig(), nil
}

// twoFeedPrice computes payout/quote (or quote/payout when inverted) scaled
// by scale, normalising each answer for its feed's own precision. Both feed
// precisions are at most maxFeedDecimals.
func twoFeedPrice(payout *uint256.Int, payoutDec uint8, quote *uint256.Int, quoteDec uint8, scale *uint256.Int, invert bool) (*uint256.Int, error) {
	one := uint256.NewInt(1)
	p, err := mathutil.MulDiv(payout, mathutil.MustPow10(quoteDec), one)
	if err != nil {
		return nil, err
	}
	q, err := mathutil.MulDiv(quote, mathutil.MustPow10(payoutDec), one)
	if err != nil {
		return nil, err
	}
	if invert {
		return mathutil.MulDiv(q, scale, p)
	}
	return mathutil.MulDiv(p, scale, q)
}

// latestAnswer reads a feed and rejects non-positive, stale or incomplete
// rounds.
func (e *FeedEngine) latestAnswer(ctx context.Context, addr common.Address, tolerance uint64) (*uint256.Int, uint8, error) {
	feed := e.chain.PriceFeed(addr)
	round, err := feed.LatestRoundData(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("oracle: read feed %s: %w", addr.Hex(), err)
	}
	if round.Answer == nil || round.Answer.Sign() <= 0 {
		return nil, 0, fmt.Errorf("oracle: feed %s answer %v not positive: %w", addr.Hex(), round.Answer, domain.ErrInvalidParams)
	}
	now := unixNow(e.now)
	if now > round.UpdatedAt && now-round.UpdatedAt > tolerance {
		return nil, 0, fmt.Errorf("oracle: feed %s stale: updated %s ago, tolerance %ds: %w",
			addr.Hex(), time.Duration(now-round.UpdatedAt)*time.Second, tolerance, domain.ErrInvalidParams)
	}
	if round.RoundID != nil && round.AnsweredInRound != nil && round.AnsweredInRound.Cmp(round.RoundID) < 0 {
		return nil, 0, fmt.Errorf("oracle: feed %s round %s answered in earlier round %s: %w",
			addr.Hex(), round.RoundID, round.AnsweredInRound, domain.ErrInvalidParams)
	}
	answer, err := mathutil.FromBig(round.Answer)
	if err != nil {
		return nil, 0, fmt.Errorf("oracle: feed %s answer: %v: %w", addr.Hex(), err, domain.ErrInvalidParams)
	}
	dec, err := feed.Decimals(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("oracle: read decimals of feed %s: %w", addr.Hex(), err)
	}
	if dec > maxFeedDecimals {
		return nil, 0, fmt.Errorf("oracle: feed %s reports %d decimals: %w", addr.Hex(), dec, domain.ErrInvalidParams)
	}
	return answer, dec, nil
}

var _ Engine = (*FeedEngine)(nil)
