package mathutil

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

// tickFactors[i] is 2^128 / sqrt(1.0001^(2^i)), the multiplier applied for
// bit i of the absolute tick.
var tickFactors = [...]*uint256.Int{
	uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001"),
	uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
	uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
	uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
	uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
	uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
	uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
	uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
	uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
	uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
	uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
	uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
	uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
	uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
	uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
	uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
	uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
	uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
	uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
	uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
}

var (
	q128 = new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	q192 = new(uint256.Int).Lsh(uint256.NewInt(1), 192)
	// maxUint128 bounds the sqrt price for which squaring cannot overflow.
	maxUint128 = new(uint256.Int).Sub(q128, uint256.NewInt(1))
	maxUint256 = new(uint256.Int).SetAllOne()
)

// SqrtRatioAtTick returns sqrt(1.0001^tick) as a Q64.96 fixed-point number,
// rounded up.
func SqrtRatioAtTick(tick int32) (*uint256.Int, error) {
	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}
	if absTick > MaxTick {
		return nil, fmt.Errorf("mathutil: tick %d out of range", tick)
	}

	ratio := new(uint256.Int).Set(q128)
	if absTick&1 != 0 {
		ratio.Set(tickFactors[0])
	}
	for i := 1; i < len(tickFactors); i++ {
		if absTick&(1<<i) != 0 {
			ratio.Mul(ratio, tickFactors[i])
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	// Q128.128 -> Q64.96, rounding up.
	rem := new(uint256.Int).Mod(ratio, uint256.NewInt(1<<32))
	sqrtPriceX96 := new(uint256.Int).Rsh(ratio, 32)
	if !rem.IsZero() {
		sqrtPriceX96.AddUint64(sqrtPriceX96, 1)
	}
	return sqrtPriceX96, nil
}

// AverageTick divides a tick-cumulative delta by the window, rounding toward
// negative infinity.
func AverageTick(delta int64, window uint32) (int32, error) {
	if window == 0 {
		return 0, ErrDivisionByZero
	}
	w := int64(window)
	q := delta / w
	if delta < 0 && delta%w != 0 {
		q--
	}
	if q < int64(MinTick) || q > int64(MaxTick) {
		return 0, fmt.Errorf("mathutil: average tick %d out of range", q)
	}
	return int32(q), nil
}

// QuoteAtTick converts baseAmount of base into quote at the given tick of a
// pool holding both tokens. The pool's token0 is the address that sorts first.
func QuoteAtTick(tick int32, baseAmount *uint256.Int, base, quote common.Address) (*uint256.Int, error) {
	sqrtRatioX96, err := SqrtRatioAtTick(tick)
	if err != nil {
		return nil, err
	}
	baseIsToken0 := bytes.Compare(base.Bytes(), quote.Bytes()) < 0

	if sqrtRatioX96.Cmp(maxUint128) <= 0 {
		ratioX192 := new(uint256.Int).Mul(sqrtRatioX96, sqrtRatioX96)
		if baseIsToken0 {
			return MulDiv(ratioX192, baseAmount, q192)
		}
		return MulDiv(q192, baseAmount, ratioX192)
	}

	ratioX128, err := MulDiv(sqrtRatioX96, sqrtRatioX96, new(uint256.Int).Lsh(uint256.NewInt(1), 64))
	if err != nil {
		return nil, err
	}
	if baseIsToken0 {
		return MulDiv(ratioX128, baseAmount, q128)
	}
	return MulDiv(q128, baseAmount, ratioX128)
}
