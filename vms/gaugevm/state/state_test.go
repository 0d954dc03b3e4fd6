// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	safemath "github.com/luxfi/vegauge/utils/math"
	"github.com/luxfi/vegauge/utils/wrappers"
)

type pair struct {
	a uint64
	b *uint256.Int
}

func (r *pair) Pack(p *wrappers.Packer) {
	p.PackLong(r.a)
	p.PackU256(r.b)
}

func (r *pair) Unpack(p *wrappers.Packer) {
	r.a = p.UnpackLong()
	r.b = p.UnpackU256()
}

func TestKeysAreDistinct(t *testing.T) {
	require := require.New(t)

	addr := ids.GenerateTestShortID()
	base := NewKey("balance")
	k1 := base.Addr(addr)
	k2 := base.Uint(7)
	require.NotEqual(k1, k2)
	require.Equal(Key("balance:"), base)
	require.Equal(NewKey("balance").Addr(addr), k1)
	require.Len(k1.Uint(1), len("balance:")+wrappers.ShortIDLen+wrappers.LongLen)
}

func TestMissingKeysReadZero(t *testing.T) {
	require := require.New(t)

	s := New(memdb.New())
	key := NewKey("missing")

	u, err := s.U256(key)
	require.NoError(err)
	require.True(u.IsZero())

	i, err := s.I128(key)
	require.NoError(err)
	require.Zero(i.Sign())

	n, err := s.Uint64(key)
	require.NoError(err)
	require.Zero(n)

	addr, err := s.Addr(key)
	require.NoError(err)
	require.Equal(ids.ShortEmpty, addr)

	r := pair{a: 9}
	found, err := s.Record(key, &r)
	require.NoError(err)
	require.False(found)
	require.Equal(uint64(9), r.a)
}

func TestTypedValues(t *testing.T) {
	require := require.New(t)

	s := New(memdb.New())
	addr := ids.GenerateTestShortID()

	require.NoError(s.SetU256(NewKey("u"), uint256.NewInt(5)))
	require.NoError(s.SetI128(NewKey("i"), big.NewInt(-5)))
	require.NoError(s.SetBool(NewKey("b"), true))
	require.NoError(s.SetAddr(NewKey("a"), addr))
	require.NoError(s.SetString(NewKey("s"), "stable"))
	require.NoError(s.SetRecord(NewKey("r"), &pair{a: 1, b: uint256.NewInt(2)}))

	u, err := s.U256(NewKey("u"))
	require.NoError(err)
	require.Equal(uint64(5), u.Uint64())

	i, err := s.I128(NewKey("i"))
	require.NoError(err)
	require.Equal(int64(-5), i.Int64())

	b, err := s.Bool(NewKey("b"))
	require.NoError(err)
	require.True(b)

	a, err := s.Addr(NewKey("a"))
	require.NoError(err)
	require.Equal(addr, a)

	str, err := s.String(NewKey("s"))
	require.NoError(err)
	require.Equal("stable", str)

	var r pair
	found, err := s.Record(NewKey("r"), &r)
	require.NoError(err)
	require.True(found)
	require.Equal(uint64(1), r.a)
	require.Equal(uint64(2), r.b.Uint64())
}

func TestAddSubU256(t *testing.T) {
	require := require.New(t)

	s := New(memdb.New())
	key := NewKey("supply")

	v, err := s.AddU256(key, uint256.NewInt(10))
	require.NoError(err)
	require.Equal(uint64(10), v.Uint64())

	v, err = s.SubU256(key, uint256.NewInt(4))
	require.NoError(err)
	require.Equal(uint64(6), v.Uint64())

	_, err = s.SubU256(key, uint256.NewInt(7))
	require.ErrorIs(err, safemath.ErrUnderflow)

	v, err = s.U256(key)
	require.NoError(err)
	require.Equal(uint64(6), v.Uint64())
}

func TestCorruptedValue(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	require.NoError(db.Put(NewKey("u"), []byte{1, 2, 3}))

	_, err := New(db).U256(NewKey("u"))
	require.ErrorIs(err, ErrStateCorrupted)

	require.NoError(db.Put(NewKey("n"), make([]byte, 9)))
	_, err = New(db).Uint64(NewKey("n"))
	require.ErrorIs(err, ErrStateCorrupted)
}
