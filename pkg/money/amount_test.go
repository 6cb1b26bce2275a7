package money

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountArithmetic(t *testing.T) {
	a := New(100)
	b := New(30)

	assert.Equal(t, "130", Add(a, b).String())
	assert.Equal(t, "70", Sub(a, b).String())
	assert.Equal(t, "3000", Mul(a, b).String())
	assert.Equal(t, "300", MulInt64(a, 3).String())
	assert.Equal(t, "33", DivInt64Floor(a, 3).String())
}

func TestAmountMulDivFloorRoundsDown(t *testing.T) {
	// 1000 * 250 / 10000 = 25 exactly; 1001 * 250 / 10000 floors to 25.
	assert.Equal(t, "25", MulDivFloor(New(1000), 250, 10000).String())
	assert.Equal(t, "25", MulDivFloor(New(1001), 250, 10000).String())
}

func TestAmountSubUnderflowPanics(t *testing.T) {
	assert.Panics(t, func() {
		Sub(New(5), New(10))
	})
}

func TestAmountNewNegativePanics(t *testing.T) {
	assert.Panics(t, func() {
		New(-1)
	})
}

func TestAmountZeroAndSign(t *testing.T) {
	z := Zero()
	assert.True(t, z.IsZero())
	assert.Equal(t, 0, z.Sign())
	assert.Equal(t, 1, New(1).Sign())
}

func TestAmountCmpAndLessThan(t *testing.T) {
	a, b := New(5), New(10)
	assert.True(t, a.LessThan(b))
	assert.False(t, b.LessThan(a))
	assert.Equal(t, 0, a.Cmp(New(5)))
}

func TestAmountFromBigIntIsIndependentCopy(t *testing.T) {
	b := big.NewInt(42)
	a := FromBigInt(b)
	b.SetInt64(0) // mutating the source must not affect the Amount
	assert.Equal(t, "42", a.String())
}

func TestAmountInt64PanicsWhenTooLarge(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 100)
	a := FromBigInt(huge)
	assert.Panics(t, func() {
		a.Int64()
	})
}

func TestAmountDivInt64FloorRejectsNonPositiveDivisor(t *testing.T) {
	assert.Panics(t, func() {
		DivInt64Floor(New(10), 0)
	})
}

func TestAmountInt64RoundTrip(t *testing.T) {
	a := New(12345)
	require.Equal(t, int64(12345), a.Int64())
}
