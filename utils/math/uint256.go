// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package math

import (
	"fmt"

	"github.com/holiman/uint256"
)

// ParseU256 parses a base 10 string. Failures wrap ErrInvalidAmount.
func ParseU256(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidAmount, s, err)
	}
	return v, nil
}

// AddU256 returns a + b without modifying either operand.
func AddU256(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// SubU256 returns a - b without modifying either operand.
func SubU256(a, b *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, ErrUnderflow
	}
	return z, nil
}

// MulU256 returns a * b without modifying either operand.
func MulU256(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// DivU256 returns a / b, truncated.
func DivU256(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, ErrDivideByZero
	}
	return new(uint256.Int).Div(a, b), nil
}

// MulDivU256 returns a * b / d. The product must fit in 256 bits.
func MulDivU256(a, b, d *uint256.Int) (*uint256.Int, error) {
	p, err := MulU256(a, b)
	if err != nil {
		return nil, err
	}
	return DivU256(p, d)
}

// MinU256 returns the smaller operand.
func MinU256(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a
	}
	return b
}

// MaxU256 returns the larger operand.
func MaxU256(a, b *uint256.Int) *uint256.Int {
	if a.Gt(b) {
		return a
	}
	return b
}

// SatSubU256 returns max(a - b, 0). Only used where the arithmetic clamps
// at zero on purpose, never to hide an underflow.
func SatSubU256(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(a, b)
}
