// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wrappers

import (
	"encoding/binary"
	"errors"
	"math"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
)

const (
	MaxStringLen = math.MaxUint16
)

var (
	ErrInsufficientLength = errors.New("packer has insufficient length for input")
	errNegativeOffset     = errors.New("negative offset")
	errInvalidInput       = errors.New("input does not match expected format")
	errBadBool            = errors.New("unexpected value when unpacking bool")
	errI128Range          = errors.New("value outside of int128 range")
)

var (
	two128 = new(big.Int).Lsh(big.NewInt(1), 128)
	two127 = new(big.Int).Lsh(big.NewInt(1), 127)
)

// Packer packs and unpacks state records from/to a byte array. All values
// are big endian so packed keys sort in numeric order.
type Packer struct {
	Errs

	// The largest allowed size of expanding the byte array
	MaxSize int
	// The current byte array
	Bytes []byte
	// The offset that is being written to in the byte array
	Offset int
}

// NewWriter returns a packer that grows up to maxSize bytes.
func NewWriter(maxSize int) *Packer {
	return &Packer{MaxSize: maxSize}
}

// NewReader returns a packer that reads b.
func NewReader(b []byte) *Packer {
	return &Packer{Bytes: b}
}

// PackByte appends a byte to the byte array
func (p *Packer) PackByte(val byte) {
	p.expand(ByteLen)
	if p.Errored() {
		return
	}

	p.Bytes[p.Offset] = val
	p.Offset++
}

// UnpackByte unpacks a byte from the byte array
func (p *Packer) UnpackByte() byte {
	p.checkSpace(ByteLen)
	if p.Errored() {
		return 0
	}

	val := p.Bytes[p.Offset]
	p.Offset += ByteLen
	return val
}

// PackShort appends a short to the byte array
func (p *Packer) PackShort(val uint16) {
	p.expand(ShortLen)
	if p.Errored() {
		return
	}

	binary.BigEndian.PutUint16(p.Bytes[p.Offset:], val)
	p.Offset += ShortLen
}

// UnpackShort unpacks a short from the byte array
func (p *Packer) UnpackShort() uint16 {
	p.checkSpace(ShortLen)
	if p.Errored() {
		return 0
	}

	val := binary.BigEndian.Uint16(p.Bytes[p.Offset:])
	p.Offset += ShortLen
	return val
}

// PackLong appends a long to the byte array
func (p *Packer) PackLong(val uint64) {
	p.expand(LongLen)
	if p.Errored() {
		return
	}

	binary.BigEndian.PutUint64(p.Bytes[p.Offset:], val)
	p.Offset += LongLen
}

// UnpackLong unpacks a long from the byte array
func (p *Packer) UnpackLong() uint64 {
	p.checkSpace(LongLen)
	if p.Errored() {
		return 0
	}

	val := binary.BigEndian.Uint64(p.Bytes[p.Offset:])
	p.Offset += LongLen
	return val
}

// PackBool packs a bool into the byte array
func (p *Packer) PackBool(b bool) {
	if b {
		p.PackByte(1)
	} else {
		p.PackByte(0)
	}
}

// UnpackBool unpacks a bool from the byte array
func (p *Packer) UnpackBool() bool {
	b := p.UnpackByte()
	switch b {
	case 0:
		return false
	case 1:
		return true
	default:
		p.Add(errBadBool)
		return false
	}
}

// PackFixedBytes appends a byte slice with no length descriptor to the byte array
func (p *Packer) PackFixedBytes(bytes []byte) {
	p.expand(len(bytes))
	if p.Errored() {
		return
	}

	copy(p.Bytes[p.Offset:], bytes)
	p.Offset += len(bytes)
}

// UnpackFixedBytes unpacks a byte slice with no length descriptor from the byte array
func (p *Packer) UnpackFixedBytes(size int) []byte {
	p.checkSpace(size)
	if p.Errored() {
		return nil
	}

	bytes := p.Bytes[p.Offset : p.Offset+size]
	p.Offset += size
	return bytes
}

// PackStr appends a string to the byte array
func (p *Packer) PackStr(str string) {
	strSize := len(str)
	if strSize > MaxStringLen {
		p.Add(errInvalidInput)
		return
	}
	p.PackShort(uint16(strSize))
	p.PackFixedBytes([]byte(str))
}

// UnpackStr unpacks a string from the byte array
func (p *Packer) UnpackStr() string {
	strSize := p.UnpackShort()
	return string(p.UnpackFixedBytes(int(strSize)))
}

// PackShortID appends an address.
func (p *Packer) PackShortID(id ids.ShortID) {
	p.PackFixedBytes(id[:])
}

// UnpackShortID unpacks an address.
func (p *Packer) UnpackShortID() ids.ShortID {
	var id ids.ShortID
	copy(id[:], p.UnpackFixedBytes(ShortIDLen))
	return id
}

// PackU256 appends a 256-bit unsigned integer. nil packs as zero.
func (p *Packer) PackU256(val *uint256.Int) {
	var b [U256Len]byte
	if val != nil {
		b = val.Bytes32()
	}
	p.PackFixedBytes(b[:])
}

// UnpackU256 unpacks a 256-bit unsigned integer.
func (p *Packer) UnpackU256() *uint256.Int {
	b := p.UnpackFixedBytes(U256Len)
	if p.Errored() {
		return new(uint256.Int)
	}
	return new(uint256.Int).SetBytes32(b)
}

// PackI128 appends a signed integer as 16 bytes of two's complement.
func (p *Packer) PackI128(val *big.Int) {
	if val == nil {
		val = new(big.Int)
	}
	if val.Cmp(two127) >= 0 || val.Cmp(new(big.Int).Neg(two127)) < 0 {
		p.Add(errI128Range)
		return
	}
	u := new(big.Int).Set(val)
	if u.Sign() < 0 {
		u.Add(u, two128)
	}
	var b [I128Len]byte
	u.FillBytes(b[:])
	p.PackFixedBytes(b[:])
}

// UnpackI128 unpacks a signed integer written by PackI128.
func (p *Packer) UnpackI128() *big.Int {
	b := p.UnpackFixedBytes(I128Len)
	if p.Errored() {
		return new(big.Int)
	}
	v := new(big.Int).SetBytes(b)
	if v.Cmp(two127) >= 0 {
		v.Sub(v, two128)
	}
	return v
}

// checkSpace requires that there is at least bytes of write space left in the
// byte array. If this is not true, an error is added to the packer.
func (p *Packer) checkSpace(bytes int) {
	switch {
	case p.Offset < 0:
		p.Add(errNegativeOffset)
	case bytes < 0:
		p.Add(errInvalidInput)
	case len(p.Bytes)-p.Offset < bytes:
		p.Add(ErrInsufficientLength)
	}
}

// expand ensures that there is bytes bytes left of space in the byte slice.
// If this is not allowed due to the maximum size, an error is added to the packer.
func (p *Packer) expand(bytes int) {
	neededSize := bytes + p.Offset
	switch {
	case neededSize <= len(p.Bytes):
		return
	case neededSize > p.MaxSize:
		p.Err = ErrInsufficientLength
		return
	case neededSize <= cap(p.Bytes):
		p.Bytes = p.Bytes[:neededSize]
		return
	default:
		p.Bytes = append(p.Bytes[:cap(p.Bytes)], make([]byte, neededSize-cap(p.Bytes))...)
	}
}
