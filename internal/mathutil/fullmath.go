// Package mathutil holds the fixed-point helpers shared by the price engines:
// full-precision multiply-divide and base-1.0001 tick exponentiation.
package mathutil

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ErrDivisionByZero = errors.New("mathutil: division by zero")
	ErrOverflow       = errors.New("mathutil: result overflows uint256")
)

// MulDiv returns floor(a*b/d) computed with a 512-bit intermediate product.
func MulDiv(a, b, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, d)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// MaxPow10 is the largest n for which 10^n fits in 256 bits.
const MaxPow10 = 77

// Pow10 returns 10^n, or ErrOverflow when n exceeds MaxPow10.
func Pow10(n uint8) (*uint256.Int, error) {
	if n > MaxPow10 {
		return nil, ErrOverflow
	}
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(n))), nil
}

// MustPow10 is Pow10 for exponents already known to be in range.
func MustPow10(n uint8) *uint256.Int {
	z, err := Pow10(n)
	if err != nil {
		panic(err)
	}
	return z
}

// FromBig converts a non-negative big.Int that fits in 256 bits.
func FromBig(x *big.Int) (*uint256.Int, error) {
	if x == nil || x.Sign() < 0 {
		return nil, fmt.Errorf("mathutil: negative or nil value %v", x)
	}
	z, overflow := uint256.FromBig(x)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}
