// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package escrow

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/luxfi/vegauge/utils/wrappers"
)

// Deposit kinds reported by the Deposit event.
const (
	DepositForType = iota
	CreateLockType
	IncreaseLockAmount
	IncreaseUnlockTime
)

// Point is the line bias - slope*(t - Ts) recorded at block Blk.
type Point struct {
	Bias  *big.Int `json:"bias"`
	Slope *big.Int `json:"slope"`
	Ts    uint64   `json:"ts"`
	Blk   uint64   `json:"blk"`
}

func newPoint() Point {
	return Point{Bias: new(big.Int), Slope: new(big.Int)}
}

func (p Point) clone() Point {
	return Point{
		Bias:  new(big.Int).Set(p.Bias),
		Slope: new(big.Int).Set(p.Slope),
		Ts:    p.Ts,
		Blk:   p.Blk,
	}
}

// BiasAt evaluates the line at t, clamped at zero.
func (p Point) BiasAt(t uint64) *big.Int {
	dt := new(big.Int).Sub(new(big.Int).SetUint64(t), new(big.Int).SetUint64(p.Ts))
	bias := new(big.Int).Sub(p.Bias, dt.Mul(dt, p.Slope))
	if bias.Sign() < 0 {
		return new(big.Int)
	}
	return bias
}

func (p *Point) Pack(pk *wrappers.Packer) {
	pk.PackI128(p.Bias)
	pk.PackI128(p.Slope)
	pk.PackLong(p.Ts)
	pk.PackLong(p.Blk)
}

func (p *Point) Unpack(pk *wrappers.Packer) {
	p.Bias = pk.UnpackI128()
	p.Slope = pk.UnpackI128()
	p.Ts = pk.UnpackLong()
	p.Blk = pk.UnpackLong()
}

// LockedBalance is the single lock an account may hold.
type LockedBalance struct {
	Amount *uint256.Int `json:"amount"`
	End    uint64       `json:"end"`
}

func (l LockedBalance) clone() LockedBalance {
	return LockedBalance{Amount: new(uint256.Int).Set(l.Amount), End: l.End}
}

func (l *LockedBalance) Pack(pk *wrappers.Packer) {
	pk.PackU256(l.Amount)
	pk.PackLong(l.End)
}

func (l *LockedBalance) Unpack(pk *wrappers.Packer) {
	l.Amount = pk.UnpackU256()
	l.End = pk.UnpackLong()
}
