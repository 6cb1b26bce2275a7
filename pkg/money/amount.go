// Package money represents the unbounded non-negative integer amounts the
// marketplace engine settles in. Values are token-unit or native-currency
// amounts; *big.Int is used because int64/float64 overflow or lose
// precision computing gross*feeBP for large token economies (the pack's
// own NFT-marketplace domain code represents amounts the same way, see
// DESIGN.md).
package money

import "math/big"

// Amount is a non-negative integer amount. The zero value is zero.
type Amount struct {
	v big.Int
}

// New builds an Amount from an int64. Panics if n is negative: all
// marketplace amounts are non-negative by construction.
func New(n int64) Amount {
	if n < 0 {
		panic("money: negative amount")
	}
	var a Amount
	a.v.SetInt64(n)
	return a
}

// FromBigInt wraps an existing big.Int, taking ownership of a copy.
func FromBigInt(b *big.Int) Amount {
	var a Amount
	a.v.Set(b)
	return a
}

// Zero is the additive identity.
func Zero() Amount { return Amount{} }

// Int returns the underlying big.Int (read-only use expected; callers must
// not mutate the pointer's referent).
func (a Amount) Int() *big.Int { return &a.v }

// Sign returns -1, 0, or +1.
func (a Amount) Sign() int { return a.v.Sign() }

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a.v.Sign() == 0 }

// Cmp compares a to b the way big.Int.Cmp does.
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

// LessThan reports whether a < b.
func (a Amount) LessThan(b Amount) bool { return a.Cmp(b) < 0 }

// Add returns a+b.
func Add(a, b Amount) Amount {
	var r Amount
	r.v.Add(&a.v, &b.v)
	return r
}

// Sub returns a-b. Panics if the result would be negative — callers must
// check ordering first; this catches accounting bugs loudly instead of
// silently wrapping.
func Sub(a, b Amount) Amount {
	var r Amount
	r.v.Sub(&a.v, &b.v)
	if r.v.Sign() < 0 {
		panic("money: subtraction underflow")
	}
	return r
}

// Mul returns a*b.
func Mul(a, b Amount) Amount {
	var r Amount
	r.v.Mul(&a.v, &b.v)
	return r
}

// MulInt64 returns a*n.
func MulInt64(a Amount, n int64) Amount {
	var r Amount
	r.v.Mul(&a.v, big.NewInt(n))
	return r
}

// DivInt64Floor returns floor(a/n). n must be positive.
func DivInt64Floor(a Amount, n int64) Amount {
	if n <= 0 {
		panic("money: division by non-positive divisor")
	}
	var r Amount
	r.v.Div(&a.v, big.NewInt(n))
	return r
}

// MulDivFloor returns floor(a*num/den), the shape settlement arithmetic
// needs repeatedly (value*feeBP/10000). Uses a single big.Int to avoid
// intermediate overflow regardless of operand width.
func MulDivFloor(a Amount, num, den int64) Amount {
	if den <= 0 {
		panic("money: division by non-positive divisor")
	}
	var r Amount
	r.v.Mul(&a.v, big.NewInt(num))
	r.v.Div(&r.v, big.NewInt(den))
	return r
}

// String renders the amount in base 10.
func (a Amount) String() string { return a.v.String() }

// Int64 returns the amount as an int64, panicking if it does not fit. Used
// only at boundaries (e.g. raffle ticket counts) where the value is known
// to be small.
func (a Amount) Int64() int64 {
	if !a.v.IsInt64() {
		panic("money: amount does not fit in int64")
	}
	return a.v.Int64()
}
