package domain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Variant names the price engine a pair config belongs to.
type Variant string

const (
	VariantFeed   Variant = "feed"
	VariantL2Feed Variant = "l2feed"
	VariantTWAP   Variant = "twap"
)

// PairKey is an ordered (quote, payout) token pair. (A, B) and (B, A) are
// distinct keys.
type PairKey struct {
	Quote  common.Address `json:"quote"`
	Payout common.Address `json:"payout"`
}

// NewPairKey builds a PairKey from the two token addresses.
func NewPairKey(quote, payout common.Address) PairKey {
	return PairKey{Quote: quote, Payout: payout}
}

// Validate reports ErrPairNotSupported when either leg is the zero address.
func (k PairKey) Validate() error {
	if k.Quote == (common.Address{}) || k.Payout == (common.Address{}) {
		return fmt.Errorf("pair %s: zero address: %w", k, ErrPairNotSupported)
	}
	return nil
}

// String renders the key as "quote/payout".
func (k PairKey) String() string {
	return k.Quote.Hex() + "/" + k.Payout.Hex()
}

// PairRecord is the stored configuration of one pair. Config holds the exact
// payload accepted by SetPair so it reads back byte for byte.
type PairRecord struct {
	Pair      PairKey   `json:"pair"`
	Variant   Variant   `json:"variant"`
	Supported bool      `json:"supported"`
	Config    []byte    `json:"config"`
	UpdatedAt time.Time `json:"updated_at"`
}
