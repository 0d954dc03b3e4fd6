// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package math

import (
	"math"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

const maxUint64 uint64 = math.MaxUint64

func TestAdd(t *testing.T) {
	require := require.New(t)

	sum, err := Add(uint64(0), maxUint64)
	require.NoError(err)
	require.Equal(maxUint64, sum)

	_, err = Add(uint64(1), maxUint64)
	require.ErrorIs(err, ErrOverflow)

	_, err = Add(maxUint64/2+1, maxUint64/2+1)
	require.ErrorIs(err, ErrOverflow)
}

func TestSub(t *testing.T) {
	require := require.New(t)

	got, err := Sub(uint64(2), uint64(1))
	require.NoError(err)
	require.Equal(uint64(1), got)

	_, err = Sub(uint64(1), uint64(2))
	require.ErrorIs(err, ErrUnderflow)
}

func TestU256Checked(t *testing.T) {
	require := require.New(t)

	maxU256 := new(uint256.Int).SetAllOne()

	_, err := AddU256(maxU256, uint256.NewInt(1))
	require.ErrorIs(err, ErrOverflow)

	_, err = SubU256(uint256.NewInt(1), uint256.NewInt(2))
	require.ErrorIs(err, ErrUnderflow)

	_, err = MulU256(maxU256, uint256.NewInt(2))
	require.ErrorIs(err, ErrOverflow)

	_, err = DivU256(uint256.NewInt(1), new(uint256.Int))
	require.ErrorIs(err, ErrDivideByZero)

	a := uint256.NewInt(10)
	b := uint256.NewInt(3)
	got, err := MulDivU256(a, b, uint256.NewInt(4))
	require.NoError(err)
	require.Equal(uint64(7), got.Uint64())
	require.Equal(uint64(10), a.Uint64())
	require.Equal(uint64(3), b.Uint64())

	require.Equal(uint64(3), MinU256(a, b).Uint64())
	require.Equal(uint64(10), MaxU256(a, b).Uint64())
	require.True(SatSubU256(b, a).IsZero())
}

func TestParseU256(t *testing.T) {
	require := require.New(t)

	v, err := ParseU256("1000000000000000000")
	require.NoError(err)
	require.Equal("1000000000000000000", v.Dec())

	_, err = ParseU256("-1")
	require.ErrorIs(err, ErrInvalidAmount)

	_, err = ParseU256("")
	require.ErrorIs(err, ErrInvalidAmount)
}

func TestI128Bounds(t *testing.T) {
	require := require.New(t)

	_, err := AddI128(MaxI128, I128(1))
	require.ErrorIs(err, ErrOverflow)

	_, err = SubI128(MinI128, I128(1))
	require.ErrorIs(err, ErrUnderflow)

	_, err = MulI128(MaxI128, I128(2))
	require.ErrorIs(err, ErrOverflow)

	_, err = DivI128(I128(1), I128(0))
	require.ErrorIs(err, ErrDivideByZero)

	got, err := DivI128(I128(-7), I128(2))
	require.NoError(err)
	require.Equal(int64(-3), got.Int64())

	require.Zero(ClampZero(I128(-5)).Sign())
	require.Equal(int64(5), ClampZero(I128(5)).Int64())
}

func TestI128Conversion(t *testing.T) {
	require := require.New(t)

	s, err := ToI128(uint256.NewInt(42))
	require.NoError(err)
	require.Equal(int64(42), s.Int64())

	_, err = ToI128(new(uint256.Int).SetAllOne())
	require.ErrorIs(err, ErrOverflow)

	u, err := FromI128(big.NewInt(42))
	require.NoError(err)
	require.Equal(uint64(42), u.Uint64())

	_, err = FromI128(big.NewInt(-1))
	require.ErrorIs(err, ErrUnderflow)
}

func TestCalcKeepsFirstError(t *testing.T) {
	require := require.New(t)

	c := Calc{}
	sum := c.AddU(uint256.NewInt(1), uint256.NewInt(2))
	require.Equal(uint64(3), sum.Uint64())

	diff := c.SubU(uint256.NewInt(1), uint256.NewInt(2))
	require.True(diff.IsZero())
	require.ErrorIs(c.Err, ErrUnderflow)

	_ = c.DivU(uint256.NewInt(1), new(uint256.Int))
	require.ErrorIs(c.Err, ErrUnderflow)
	require.True(c.AddU(uint256.NewInt(1), uint256.NewInt(1)).IsZero())
}

func TestCalcSigned(t *testing.T) {
	require := require.New(t)

	c := Calc{}
	slope := c.DivI(I128(1000), I128(10))
	bias := c.MulI(slope, I128(-3))
	require.NoError(c.Err)
	require.Equal(int64(-300), bias.Int64())

	require.True(c.FromI(I128(-1)).IsZero())
	require.ErrorIs(c.Err, ErrUnderflow)
}
