// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package math

import (
	"math/big"

	"github.com/holiman/uint256"
)

var (
	// MaxI128 is 2^127 - 1.
	MaxI128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	// MinI128 is -2^127.
	MinI128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

func checkI128(z *big.Int) (*big.Int, error) {
	switch {
	case z.Cmp(MaxI128) > 0:
		return nil, ErrOverflow
	case z.Cmp(MinI128) < 0:
		return nil, ErrUnderflow
	default:
		return z, nil
	}
}

// I128 returns v as a new signed value.
func I128(v int64) *big.Int {
	return big.NewInt(v)
}

// AddI128 returns a + b bounded to the int128 range.
func AddI128(a, b *big.Int) (*big.Int, error) {
	return checkI128(new(big.Int).Add(a, b))
}

// SubI128 returns a - b bounded to the int128 range.
func SubI128(a, b *big.Int) (*big.Int, error) {
	return checkI128(new(big.Int).Sub(a, b))
}

// MulI128 returns a * b bounded to the int128 range.
func MulI128(a, b *big.Int) (*big.Int, error) {
	return checkI128(new(big.Int).Mul(a, b))
}

// DivI128 returns a / b truncated toward zero.
func DivI128(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, ErrDivideByZero
	}
	return checkI128(new(big.Int).Quo(a, b))
}

// ClampZero returns max(a, 0) as a new value.
func ClampZero(a *big.Int) *big.Int {
	if a.Sign() < 0 {
		return new(big.Int)
	}
	return new(big.Int).Set(a)
}

// ToI128 converts an unsigned value into the signed domain.
func ToI128(u *uint256.Int) (*big.Int, error) {
	return checkI128(u.ToBig())
}

// FromI128 converts a non-negative signed value back into the unsigned
// domain.
func FromI128(a *big.Int) (*uint256.Int, error) {
	if a.Sign() < 0 {
		return nil, ErrUnderflow
	}
	u, overflow := uint256.FromBig(a)
	if overflow {
		return nil, ErrOverflow
	}
	return u, nil
}
