// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state provides typed access to component state kept in a
// key/value database.
package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/ids"

	safemath "github.com/luxfi/vegauge/utils/math"
	"github.com/luxfi/vegauge/utils/wrappers"
)

const maxRecordSize = 4 * 1024

var ErrStateCorrupted = errors.New("state corrupted")

// Record is a fixed layout value stored under a single key.
type Record interface {
	Pack(p *wrappers.Packer)
	Unpack(p *wrappers.Packer)
}

// Key is a database key built from a name followed by typed parts.
type Key []byte

// NewKey starts a key in the namespace name.
func NewKey(name string) Key {
	k := make(Key, 0, len(name)+1+wrappers.ShortIDLen+wrappers.LongLen)
	k = append(k, name...)
	return append(k, ':')
}

// Addr returns a copy of k extended by an address.
func (k Key) Addr(id ids.ShortID) Key {
	return append(k.clone(), id[:]...)
}

// Uint returns a copy of k extended by a big endian integer.
func (k Key) Uint(v uint64) Key {
	p := wrappers.NewWriter(wrappers.LongLen)
	p.PackLong(v)
	return append(k.clone(), p.Bytes...)
}

func (k Key) clone() Key {
	c := make(Key, len(k), len(k)+wrappers.ShortIDLen+wrappers.LongLen)
	copy(c, k)
	return c
}

// Store reads and writes typed values. Missing keys read as zero values.
type Store struct {
	db database.Database
}

// New returns a store over db.
func New(db database.Database) *Store {
	return &Store{db: db}
}

func (s *Store) read(key Key, unpack func(p *wrappers.Packer)) (bool, error) {
	b, err := s.db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	p := wrappers.NewReader(b)
	unpack(p)
	if p.Errored() {
		return false, fmt.Errorf("%w: key %x: %w", ErrStateCorrupted, []byte(key), p.Err)
	}
	if p.Offset != len(b) {
		return false, fmt.Errorf("%w: key %x has %d trailing bytes", ErrStateCorrupted, []byte(key), len(b)-p.Offset)
	}
	return true, nil
}

func (s *Store) write(key Key, pack func(p *wrappers.Packer)) error {
	p := wrappers.NewWriter(maxRecordSize)
	pack(p)
	if p.Errored() {
		return fmt.Errorf("couldn't pack key %x: %w", []byte(key), p.Err)
	}
	return s.db.Put(key, p.Bytes)
}

// Has reports whether key holds a value.
func (s *Store) Has(key Key) (bool, error) {
	return s.db.Has(key)
}

// Delete removes key.
func (s *Store) Delete(key Key) error {
	return s.db.Delete(key)
}

func (s *Store) U256(key Key) (*uint256.Int, error) {
	v := new(uint256.Int)
	_, err := s.read(key, func(p *wrappers.Packer) { v = p.UnpackU256() })
	return v, err
}

func (s *Store) SetU256(key Key, v *uint256.Int) error {
	return s.write(key, func(p *wrappers.Packer) { p.PackU256(v) })
}

func (s *Store) Uint64(key Key) (uint64, error) {
	var v uint64
	_, err := s.read(key, func(p *wrappers.Packer) { v = p.UnpackLong() })
	return v, err
}

func (s *Store) SetUint64(key Key, v uint64) error {
	return s.write(key, func(p *wrappers.Packer) { p.PackLong(v) })
}

func (s *Store) I128(key Key) (*big.Int, error) {
	v := new(big.Int)
	_, err := s.read(key, func(p *wrappers.Packer) { v = p.UnpackI128() })
	return v, err
}

func (s *Store) SetI128(key Key, v *big.Int) error {
	return s.write(key, func(p *wrappers.Packer) { p.PackI128(v) })
}

func (s *Store) Bool(key Key) (bool, error) {
	var v bool
	_, err := s.read(key, func(p *wrappers.Packer) { v = p.UnpackBool() })
	return v, err
}

func (s *Store) SetBool(key Key, v bool) error {
	return s.write(key, func(p *wrappers.Packer) { p.PackBool(v) })
}

func (s *Store) Addr(key Key) (ids.ShortID, error) {
	var v ids.ShortID
	_, err := s.read(key, func(p *wrappers.Packer) { v = p.UnpackShortID() })
	return v, err
}

func (s *Store) SetAddr(key Key, v ids.ShortID) error {
	return s.write(key, func(p *wrappers.Packer) { p.PackShortID(v) })
}

func (s *Store) String(key Key) (string, error) {
	var v string
	_, err := s.read(key, func(p *wrappers.Packer) { v = p.UnpackStr() })
	return v, err
}

func (s *Store) SetString(key Key, v string) error {
	return s.write(key, func(p *wrappers.Packer) { p.PackStr(v) })
}

// Record loads key into r. r is left untouched and false is returned when
// the key is missing.
func (s *Store) Record(key Key, r Record) (bool, error) {
	return s.read(key, r.Unpack)
}

func (s *Store) SetRecord(key Key, r Record) error {
	return s.write(key, r.Pack)
}

// AddU256 adds delta to the value under key and returns the new value.
func (s *Store) AddU256(key Key, delta *uint256.Int) (*uint256.Int, error) {
	v, err := s.U256(key)
	if err != nil {
		return nil, err
	}
	sum, err := safemath.AddU256(v, delta)
	if err != nil {
		return nil, fmt.Errorf("%w: key %x", err, []byte(key))
	}
	return sum, s.SetU256(key, sum)
}

// SubU256 subtracts delta from the value under key and returns the new
// value.
func (s *Store) SubU256(key Key, delta *uint256.Int) (*uint256.Int, error) {
	v, err := s.U256(key)
	if err != nil {
		return nil, err
	}
	diff, err := safemath.SubU256(v, delta)
	if err != nil {
		return nil, fmt.Errorf("%w: key %x", err, []byte(key))
	}
	return diff, s.SetU256(key, diff)
}
