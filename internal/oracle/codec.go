package oracle

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/bondoracle/internal/domain"
)

var (
	feedConfigArgs = mustArguments("address", "uint48", "address", "uint48", "uint8", "bool")
	twapConfigArgs = mustArguments("address", "address", "uint32", "uint8")

	maxUint48 = uint64(1)<<48 - 1
)

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(fmt.Sprintf("oracle: abi type %s: %v", t, err))
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args
}

// FeedPairConfig configures the composite feed engine for one pair. A zero
// QuoteFeed selects single-feed mode, where PayoutFeed already quotes the
// payout token in the quote token.
type FeedPairConfig struct {
	PayoutFeed           common.Address `json:"payout_feed"`
	PayoutStaleTolerance uint64         `json:"payout_stale_tolerance"`
	QuoteFeed            common.Address `json:"quote_feed"`
	QuoteStaleTolerance  uint64         `json:"quote_stale_tolerance"`
	Decimals             uint8          `json:"decimals"`
	Invert               bool           `json:"invert"`
}

// Encode packs the config as abi.encode(address,uint48,address,uint48,uint8,bool).
func (c FeedPairConfig) Encode() ([]byte, error) {
	if c.PayoutStaleTolerance > maxUint48 || c.QuoteStaleTolerance > maxUint48 {
		return nil, fmt.Errorf("oracle: stale tolerance exceeds uint48: %w", domain.ErrInvalidParams)
	}
	return feedConfigArgs.Pack(
		c.PayoutFeed,
		new(big.Int).SetUint64(c.PayoutStaleTolerance),
		c.QuoteFeed,
		new(big.Int).SetUint64(c.QuoteStaleTolerance),
		c.Decimals,
		c.Invert,
	)
}

// DecodeFeedPairConfig is the inverse of FeedPairConfig.Encode.
func DecodeFeedPairConfig(data []byte) (FeedPairConfig, error) {
	vals, err := feedConfigArgs.Unpack(data)
	if err != nil {
		return FeedPairConfig{}, fmt.Errorf("oracle: decode feed config: %v: %w", err, domain.ErrInvalidParams)
	}
	return FeedPairConfig{
		PayoutFeed:           vals[0].(common.Address),
		PayoutStaleTolerance: vals[1].(*big.Int).Uint64(),
		QuoteFeed:            vals[2].(common.Address),
		QuoteStaleTolerance:  vals[3].(*big.Int).Uint64(),
		Decimals:             vals[4].(uint8),
		Invert:               vals[5].(bool),
	}, nil
}

// TWAPPairConfig configures the pool TWAP engine for one pair. A zero
// DenominatorPool selects single-pool mode.
type TWAPPairConfig struct {
	NumeratorPool            common.Address `json:"numerator_pool"`
	DenominatorPool          common.Address `json:"denominator_pool"`
	ObservationWindowSeconds uint32         `json:"observation_window_seconds"`
	Decimals                 uint8          `json:"decimals"`
}

// Encode packs the config as abi.encode(address,address,uint32,uint8).
func (c TWAPPairConfig) Encode() ([]byte, error) {
	return twapConfigArgs.Pack(c.NumeratorPool, c.DenominatorPool, c.ObservationWindowSeconds, c.Decimals)
}

// DecodeTWAPPairConfig is the inverse of TWAPPairConfig.Encode.
func DecodeTWAPPairConfig(data []byte) (TWAPPairConfig, error) {
	vals, err := twapConfigArgs.Unpack(data)
	if err != nil {
		return TWAPPairConfig{}, fmt.Errorf("oracle: decode twap config: %v: %w", err, domain.ErrInvalidParams)
	}
	return TWAPPairConfig{
		NumeratorPool:            vals[0].(common.Address),
		DenominatorPool:          vals[1].(common.Address),
		ObservationWindowSeconds: vals[2].(uint32),
		Decimals:                 vals[3].(uint8),
	}, nil
}

func checkDecimals(d uint8) error {
	if d < MinDecimals || d > MaxDecimals {
		return fmt.Errorf("oracle: decimals %d outside [%d, %d]: %w", d, MinDecimals, MaxDecimals, domain.ErrInvalidParams)
	}
	return nil
}
