package oracle

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/bondoracle/internal/domain"
	"github.com/alanyoungcy/bondoracle/internal/mathutil"
)

// MinObservationWindow is the shortest TWAP window accepted, in seconds.
const MinObservationWindow uint32 = 19

// maxTokenDecimals bounds the ERC-20 precision of any token a leg touches.
const maxTokenDecimals uint8 = 18

// TWAPEngine prices a pair from the tick-cumulative oracle of one pool, or of
// two pools that share a bridge token.
type TWAPEngine struct {
	chain domain.ChainReader
	now   Clock
}

// TWAPOption customises a TWAPEngine.
type TWAPOption func(*TWAPEngine)

// WithTWAPClock overrides the clock used for the observation-history check.
func WithTWAPClock(c Clock) TWAPOption {
	return func(e *TWAPEngine) { e.now = c }
}

// NewTWAPEngine creates the pool TWAP engine.
func NewTWAPEngine(chain domain.ChainReader, opts ...TWAPOption) *TWAPEngine {
	e := &TWAPEngine{chain: chain, now: systemClock}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Variant implements Engine.
func (e *TWAPEngine) Variant() domain.Variant { return domain.VariantTWAP }

// Decimals implements Engine.
func (e *TWAPEngine) Decimals(data []byte) (uint8, error) {
	cfg, err := DecodeTWAPPairConfig(data)
	if err != nil {
		return 0, err
	}
	return cfg.Decimals, nil
}

// ValidatePair implements Engine.
func (e *TWAPEngine) ValidatePair(ctx context.Context, pair domain.PairKey, data []byte) error {
	cfg, err := DecodeTWAPPairConfig(data)
	if err != nil {
		return err
	}
	if err := checkDecimals(cfg.Decimals); err != nil {
		return err
	}
	if cfg.ObservationWindowSeconds < MinObservationWindow {
		return fmt.Errorf("oracle: observation window %ds below %ds: %w",
			cfg.ObservationWindowSeconds, MinObservationWindow, domain.ErrInvalidParams)
	}
	if cfg.NumeratorPool == (common.Address{}) {
		return fmt.Errorf("oracle: numerator pool is zero: %w", domain.ErrInvalidParams)
	}

	if cfg.DenominatorPool == (common.Address{}) {
		other, err := e.counterpart(ctx, cfg.NumeratorPool, pair.Payout)
		if err != nil {
			return err
		}
		if other != pair.Quote {
			return fmt.Errorf("oracle: pool %s does not hold pair %s: %w", cfg.NumeratorPool.Hex(), pair, domain.ErrInvalidParams)
		}
		if err := e.checkTokens(ctx, pair.Quote, pair.Payout); err != nil {
			return err
		}
		return e.checkHistory(ctx, cfg.NumeratorPool, cfg.ObservationWindowSeconds)
	}

	bridge, err := e.bridge(ctx, cfg, pair)
	if err != nil {
		return err
	}
	if bridge == pair.Quote || bridge == pair.Payout {
		return fmt.Errorf("oracle: bridge token %s is a pair leg: %w", bridge.Hex(), domain.ErrInvalidParams)
	}
	if err := e.checkTokens(ctx, pair.Quote, pair.Payout, bridge); err != nil {
		return err
	}
	if err := e.checkHistory(ctx, cfg.NumeratorPool, cfg.ObservationWindowSeconds); err != nil {
		return err
	}
	return e.checkHistory(ctx, cfg.DenominatorPool, cfg.ObservationWindowSeconds)
}

// Price implements Engine.
func (e *TWAPEngine) Price(ctx context.Context, pair domain.PairKey, data []byte) (*big.Int, error) {
	cfg, err := DecodeTWAPPairConfig(data)
	if err != nil {
		return nil, err
	}
	if err := checkDecimals(cfg.Decimals); err != nil {
		return nil, err
	}

	if cfg.DenominatorPool == (common.Address{}) {
		price, err := e.legPrice(ctx, cfg.NumeratorPool, pair.Payout, pair.Quote, cfg.ObservationWindowSeconds, cfg.Decimals)
		if err != nil {
			return nil, err
		}
		return price.ToBig(), nil
	}

	bridge, err := e.bridge(ctx, cfg, pair)
	if err != nil {
		return nil, err
	}
	num, err := e.legPrice(ctx, cfg.NumeratorPool, pair.Payout, bridge, cfg.ObservationWindowSeconds, cfg.Decimals)
	if err != nil {
		return nil, err
	}
	den, err := e.legPrice(ctx, cfg.DenominatorPool, pair.Quote, bridge, cfg.ObservationWindowSeconds, cfg.Decimals)
	if err != nil {
		return nil, err
	}
	price, err := mathutil.MulDiv(num, mathutil.MustPow10(cfg.Decimals), den)
	if err != nil {
		return nil, fmt.Errorf("oracle: compose %s: %w", pair, err)
	}
	if price.IsZero() {
		return nil, fmt.Errorf("oracle: price %s rounds to zero at %d decimals: %w", pair, cfg.Decimals, domain.ErrInvalidParams)
	}
	return price.ToBig(), nil
}

// legPrice returns the TWAP price of one whole base token in quote tokens,
// scaled by 10^decimals. A leg that rounds to zero is an error.
func (e *TWAPEngine) legPrice(ctx context.Context, pool, base, quote common.Address, window uint32, decimals uint8) (*uint256.Int, error) {
	cumulatives, err := e.chain.Pool(pool).Observe(ctx, []uint32{window, 0})
	if err != nil {
		return nil, fmt.Errorf("oracle: observe pool %s: %w", pool.Hex(), err)
	}
	if len(cumulatives) != 2 {
		return nil, fmt.Errorf("oracle: pool %s returned %d observations", pool.Hex(), len(cumulatives))
	}
	tick, err := mathutil.AverageTick(cumulatives[1]-cumulatives[0], window)
	if err != nil {
		return nil, fmt.Errorf("oracle: pool %s: %w", pool.Hex(), err)
	}

	baseDec, err := e.tokenDecimals(ctx, base)
	if err != nil {
		return nil, err
	}
	quoteDec, err := e.tokenDecimals(ctx, quote)
	if err != nil {
		return nil, err
	}

	amount, err := mathutil.QuoteAtTick(tick, mathutil.MustPow10(baseDec), base, quote)
	if err != nil {
		return nil, fmt.Errorf("oracle: pool %s quote at tick %d: %w", pool.Hex(), tick, err)
	}
	price, err := mathutil.MulDiv(amount, mathutil.MustPow10(decimals), mathutil.MustPow10(quoteDec))
	if err != nil {
		return nil, fmt.Errorf("oracle: pool %s scale leg: %w", pool.Hex(), err)
	}
	if price.IsZero() {
		return nil, fmt.Errorf("oracle: pool %s leg %s/%s rounds to zero at %d decimals: %w",
			pool.Hex(), base.Hex(), quote.Hex(), decimals, domain.ErrInvalidParams)
	}
	return price, nil
}

// tokenDecimals reads an ERC-20 precision and rejects anything above
// maxTokenDecimals.
func (e *TWAPEngine) tokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	dec, err := e.chain.Token(token).Decimals(ctx)
	if err != nil {
		return 0, fmt.Errorf("oracle: read decimals of %s: %w", token.Hex(), err)
	}
	if dec > maxTokenDecimals {
		return 0, fmt.Errorf("oracle: token %s reports %d decimals: %w", token.Hex(), dec, domain.ErrInvalidParams)
	}
	return dec, nil
}

func (e *TWAPEngine) checkTokens(ctx context.Context, tokens ...common.Address) error {
	for _, t := range tokens {
		if _, err := e.tokenDecimals(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// bridge resolves the token shared by the numerator pool (paired with the
// payout token) and the denominator pool (paired with the quote token).
func (e *TWAPEngine) bridge(ctx context.Context, cfg TWAPPairConfig, pair domain.PairKey) (common.Address, error) {
	bridge, err := e.counterpart(ctx, cfg.NumeratorPool, pair.Payout)
	if err != nil {
		return common.Address{}, err
	}
	other, err := e.counterpart(ctx, cfg.DenominatorPool, pair.Quote)
	if err != nil {
		return common.Address{}, err
	}
	if other != bridge {
		return common.Address{}, fmt.Errorf("oracle: pools %s and %s share no bridge token: %w",
			cfg.NumeratorPool.Hex(), cfg.DenominatorPool.Hex(), domain.ErrInvalidParams)
	}
	return bridge, nil
}

// counterpart returns the pool token that is not token.
func (e *TWAPEngine) counterpart(ctx context.Context, pool, token common.Address) (common.Address, error) {
	p := e.chain.Pool(pool)
	t0, err := p.Token0(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("oracle: read token0 of pool %s: %w", pool.Hex(), err)
	}
	t1, err := p.Token1(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("oracle: read token1 of pool %s: %w", pool.Hex(), err)
	}
	switch token {
	case t0:
		return t1, nil
	case t1:
		return t0, nil
	}
	return common.Address{}, fmt.Errorf("oracle: pool %s does not hold %s: %w", pool.Hex(), token.Hex(), domain.ErrInvalidParams)
}

// checkHistory rejects windows longer than the pool's stored observations.
func (e *TWAPEngine) checkHistory(ctx context.Context, pool common.Address, window uint32) error {
	oldest, err := e.chain.Pool(pool).OldestObservationTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("oracle: read observations of pool %s: %w", pool.Hex(), err)
	}
	now := unixNow(e.now)
	if uint64(oldest) > now || now-uint64(oldest) < uint64(window) {
		return fmt.Errorf("oracle: pool %s history shorter than %ds: %w", pool.Hex(), window, domain.ErrInvalidParams)
	}
	return nil
}

var _ Engine = (*TWAPEngine)(nil)
