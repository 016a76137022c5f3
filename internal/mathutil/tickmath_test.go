package mathutil

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSqrtRatioAtTick_KnownValues(t *testing.T) {
	cases := []struct {
		tick int32
		want string
	}{
		{0, "79228162514264337593543950336"},
		{MinTick, "4295128739"},
		{MaxTick, "1461446703485210103287273052203988822378723970342"},
	}
	for _, tc := range cases {
		got, err := SqrtRatioAtTick(tc.tick)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.Dec(), "tick %d", tc.tick)
	}
}

func TestSqrtRatioAtTick_OutOfRange(t *testing.T) {
	_, err := SqrtRatioAtTick(MaxTick + 1)
	assert.Error(t, err)
	_, err = SqrtRatioAtTick(MinTick - 1)
	assert.Error(t, err)
}

func TestSqrtRatioAtTick_Monotonic(t *testing.T) {
	prev, err := SqrtRatioAtTick(-5000)
	require.NoError(t, err)
	for tick := int32(-4990); tick <= 5000; tick += 10 {
		cur, err := SqrtRatioAtTick(tick)
		require.NoError(t, err)
		assert.True(t, cur.Gt(prev), "tick %d", tick)
		prev = cur
	}
}

func TestAverageTick_FloorsNegativeDeltas(t *testing.T) {
	cases := []struct {
		delta  int64
		window uint32
		want   int32
	}{
		{600, 60, 10},
		{659, 60, 10},
		{-600, 60, -10},
		{-601, 60, -11},
		{-659, 60, -11},
		{-1, 60, -1},
		{0, 60, 0},
		{59, 60, 0},
	}
	for _, tc := range cases {
		got, err := AverageTick(tc.delta, tc.window)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "delta %d / %d", tc.delta, tc.window)
	}
}

func TestAverageTick_Errors(t *testing.T) {
	_, err := AverageTick(10, 0)
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = AverageTick(int64(MaxTick+1)*60, 60)
	assert.Error(t, err)
}

func TestQuoteAtTick_Direction(t *testing.T) {
	low := common.HexToAddress("0x1000000000000000000000000000000000000000")
	high := common.HexToAddress("0x2000000000000000000000000000000000000000")
	one := MustPow10(18)

	// tick 6932 ~ 1.0001^6932 ~ 2.0000364
	up, err := QuoteAtTick(6932, one, low, high)
	require.NoError(t, err)
	assertClose(t, "2000000000000000000", up, "1000000000000000")

	down, err := QuoteAtTick(6932, one, high, low)
	require.NoError(t, err)
	assertClose(t, "500000000000000000", down, "1000000000000000")
}

func TestQuoteAtTick_LargeTickUsesX128Path(t *testing.T) {
	low := common.HexToAddress("0x1000000000000000000000000000000000000000")
	high := common.HexToAddress("0x2000000000000000000000000000000000000000")

	sqrt, err := SqrtRatioAtTick(700000)
	require.NoError(t, err)
	require.True(t, sqrt.Gt(maxUint128))

	got, err := QuoteAtTick(700000, uint256.NewInt(1), high, low)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func assertClose(t *testing.T, want string, got *uint256.Int, tolerance string) {
	t.Helper()
	w, _ := new(big.Int).SetString(want, 10)
	tol, _ := new(big.Int).SetString(tolerance, 10)
	diff := new(big.Int).Sub(got.ToBig(), w)
	assert.True(t, diff.CmpAbs(tol) <= 0, "got %s want %s ± %s", got.Dec(), want, tolerance)
}
