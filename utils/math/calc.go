// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package math

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/luxfi/vegauge/utils/wrappers"
)

// Calc chains checked operations and keeps the first error. Once an error
// is recorded every further operation returns zero.
type Calc struct {
	wrappers.Errs
}

func (c *Calc) u256(z *uint256.Int, err error) *uint256.Int {
	if c.Errored() {
		return new(uint256.Int)
	}
	c.Add(err)
	if err != nil {
		return new(uint256.Int)
	}
	return z
}

func (c *Calc) i128(z *big.Int, err error) *big.Int {
	if c.Errored() {
		return new(big.Int)
	}
	c.Add(err)
	if err != nil {
		return new(big.Int)
	}
	return z
}

func (c *Calc) AddU(a, b *uint256.Int) *uint256.Int       { return c.u256(AddU256(a, b)) }
func (c *Calc) SubU(a, b *uint256.Int) *uint256.Int       { return c.u256(SubU256(a, b)) }
func (c *Calc) MulU(a, b *uint256.Int) *uint256.Int       { return c.u256(MulU256(a, b)) }
func (c *Calc) DivU(a, b *uint256.Int) *uint256.Int       { return c.u256(DivU256(a, b)) }
func (c *Calc) MulDivU(a, b, d *uint256.Int) *uint256.Int { return c.u256(MulDivU256(a, b, d)) }

func (c *Calc) AddI(a, b *big.Int) *big.Int { return c.i128(AddI128(a, b)) }
func (c *Calc) SubI(a, b *big.Int) *big.Int { return c.i128(SubI128(a, b)) }
func (c *Calc) MulI(a, b *big.Int) *big.Int { return c.i128(MulI128(a, b)) }
func (c *Calc) DivI(a, b *big.Int) *big.Int { return c.i128(DivI128(a, b)) }

// ToI converts an unsigned value into the signed domain.
func (c *Calc) ToI(u *uint256.Int) *big.Int { return c.i128(ToI128(u)) }

// FromI converts a non-negative signed value into the unsigned domain.
func (c *Calc) FromI(a *big.Int) *uint256.Int { return c.u256(FromI128(a)) }
