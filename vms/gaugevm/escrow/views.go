// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package escrow

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/vegauge/vms/gaugevm/epoch"
)

// searchIterations bounds every binary search over a point history.
const searchIterations = 128

// Supply returns the total amount of locked tokens.
func (e *Escrow) Supply() (*uint256.Int, error) {
	return e.store.U256(keySupply)
}

// Epoch returns the index of the latest global point.
func (e *Escrow) Epoch() (uint64, error) {
	return e.store.Uint64(keyEpoch)
}

// PointHistory returns global point i. Point zero is always empty.
func (e *Escrow) PointHistory(i uint64) (Point, error) {
	p := newPoint()
	_, err := e.store.Record(keyPointHistory.Uint(i), &p)
	return p, err
}

func (e *Escrow) UserPointEpoch(addr ids.ShortID) (uint64, error) {
	return e.store.Uint64(keyUserPointEpoch.Addr(addr))
}

// UserPointHistory returns point i of addr. Point zero is always empty.
func (e *Escrow) UserPointHistory(addr ids.ShortID, i uint64) (Point, error) {
	p := newPoint()
	_, err := e.store.Record(keyUserPointHistory.Addr(addr).Uint(i), &p)
	return p, err
}

// UserPointHistoryTs returns the timestamp of point i of addr.
func (e *Escrow) UserPointHistoryTs(addr ids.ShortID, i uint64) (uint64, error) {
	p, err := e.UserPointHistory(addr, i)
	return p.Ts, err
}

// Locked returns the lock of addr.
func (e *Escrow) Locked(addr ids.ShortID) (LockedBalance, error) {
	l := LockedBalance{Amount: new(uint256.Int)}
	_, err := e.store.Record(keyLocked.Addr(addr), &l)
	return l, err
}

// LockedEnd returns the unlock time of addr's lock.
func (e *Escrow) LockedEnd(addr ids.ShortID) (uint64, error) {
	l, err := e.Locked(addr)
	return l.End, err
}

// SlopeChanges returns the slope delta scheduled at t.
func (e *Escrow) SlopeChanges(t uint64) (*big.Int, error) {
	return e.store.I128(keySlopeChanges.Uint(t))
}

// GetLastUserSlope returns the decay rate of addr's latest point.
func (e *Escrow) GetLastUserSlope(addr ids.ShortID) (*big.Int, error) {
	userEpoch, err := e.UserPointEpoch(addr)
	if err != nil {
		return nil, err
	}
	p, err := e.UserPointHistory(addr, userEpoch)
	return p.Slope, err
}

// BalanceOf returns the voting power of addr at the current time.
func (e *Escrow) BalanceOf(addr ids.ShortID) (*uint256.Int, error) {
	return e.BalanceOfAtTime(addr, e.rt.Now())
}

// BalanceOfAtTime returns the voting power of addr at t, evaluated on the
// latest point of addr recorded at or before t.
func (e *Escrow) BalanceOfAtTime(addr ids.ShortID, t uint64) (*uint256.Int, error) {
	maxEpoch, err := e.UserPointEpoch(addr)
	if err != nil || maxEpoch == 0 {
		return new(uint256.Int), err
	}
	userEpoch, err := e.findUserEpoch(addr, maxEpoch, func(p Point) bool { return p.Ts <= t })
	if err != nil || userEpoch == 0 {
		return new(uint256.Int), err
	}
	p, err := e.UserPointHistory(addr, userEpoch)
	if err != nil {
		return nil, err
	}
	return toUnsigned(p.BiasAt(t))
}

// TotalSupply returns the total voting power at the current time.
func (e *Escrow) TotalSupply() (*uint256.Int, error) {
	return e.TotalSupplyAtTime(e.rt.Now())
}

// TotalSupplyAtTime returns the total voting power at t.
func (e *Escrow) TotalSupplyAtTime(t uint64) (*uint256.Int, error) {
	maxEpoch, err := e.Epoch()
	if err != nil || maxEpoch == 0 {
		return new(uint256.Int), err
	}
	globalEpoch, err := e.findEpoch(maxEpoch, func(p Point) bool { return p.Ts <= t })
	if err != nil || globalEpoch == 0 {
		return new(uint256.Int), err
	}
	p, err := e.PointHistory(globalEpoch)
	if err != nil {
		return nil, err
	}
	return e.supplyAt(p, t)
}

// BalanceOfAt returns the voting power of addr at block height, estimating
// the block's time from the surrounding global points.
func (e *Escrow) BalanceOfAt(addr ids.ShortID, height uint64) (*uint256.Int, error) {
	if height > e.rt.Height() {
		return nil, fmt.Errorf("%w: %d > %d", ErrFutureBlock, height, e.rt.Height())
	}
	maxUserEpoch, err := e.UserPointEpoch(addr)
	if err != nil {
		return nil, err
	}
	userEpoch, err := e.findUserEpoch(addr, maxUserEpoch, func(p Point) bool { return p.Blk <= height })
	if err != nil || userEpoch == 0 {
		return new(uint256.Int), err
	}
	upoint, err := e.UserPointHistory(addr, userEpoch)
	if err != nil {
		return nil, err
	}

	blockTime, err := e.blockTime(height)
	if err != nil {
		return nil, err
	}
	return toUnsigned(upoint.BiasAt(blockTime))
}

// TotalSupplyAt returns the total voting power at block height.
func (e *Escrow) TotalSupplyAt(height uint64) (*uint256.Int, error) {
	if height > e.rt.Height() {
		return nil, fmt.Errorf("%w: %d > %d", ErrFutureBlock, height, e.rt.Height())
	}
	maxEpoch, err := e.Epoch()
	if err != nil {
		return nil, err
	}
	target, err := e.findEpoch(maxEpoch, func(p Point) bool { return p.Blk <= height })
	if err != nil || target == 0 {
		return new(uint256.Int), err
	}
	p, err := e.PointHistory(target)
	if err != nil {
		return nil, err
	}

	var dt uint64
	if target < maxEpoch {
		next, err := e.PointHistory(target + 1)
		if err != nil {
			return nil, err
		}
		if p.Blk != next.Blk {
			dt = (height - p.Blk) * (next.Ts - p.Ts) / (next.Blk - p.Blk)
		}
	} else if p.Blk != e.rt.Height() {
		dt = (height - p.Blk) * (e.rt.Now() - p.Ts) / (e.rt.Height() - p.Blk)
	}
	return e.supplyAt(p, p.Ts+dt)
}

// blockTime estimates the timestamp of height by interpolating between the
// global points around it.
func (e *Escrow) blockTime(height uint64) (uint64, error) {
	maxEpoch, err := e.Epoch()
	if err != nil {
		return 0, err
	}
	target, err := e.findEpoch(maxEpoch, func(p Point) bool { return p.Blk <= height })
	if err != nil {
		return 0, err
	}
	p0, err := e.PointHistory(target)
	if err != nil {
		return 0, err
	}

	var dBlock, dt uint64
	if target < maxEpoch {
		p1, err := e.PointHistory(target + 1)
		if err != nil {
			return 0, err
		}
		dBlock = p1.Blk - p0.Blk
		dt = p1.Ts - p0.Ts
	} else {
		dBlock = e.rt.Height() - p0.Blk
		dt = e.rt.Now() - p0.Ts
	}
	blockTime := p0.Ts
	if dBlock != 0 {
		blockTime += dt * (height - p0.Blk) / dBlock
	}
	return blockTime, nil
}

// supplyAt walks point forward to t applying scheduled slope changes. The
// walk covers at most MaxWeeks weeks, like a checkpoint.
func (e *Escrow) supplyAt(point Point, t uint64) (*uint256.Int, error) {
	last := point.clone()
	if t <= last.Ts {
		return toUnsigned(last.BiasAt(t))
	}
	ti := epoch.FloorWeek(last.Ts)
	for i := 0; i < e.cfg.MaxWeeks; i++ {
		ti += epoch.Week
		dSlope := new(big.Int)
		if ti > t {
			ti = t
		} else {
			var err error
			if dSlope, err = e.SlopeChanges(ti); err != nil {
				return nil, err
			}
		}
		dt := new(big.Int).SetUint64(ti - last.Ts)
		last.Bias.Sub(last.Bias, dt.Mul(dt, last.Slope))
		if ti == t {
			break
		}
		last.Slope.Add(last.Slope, dSlope)
		last.Ts = ti
	}
	if last.Bias.Sign() < 0 {
		return new(uint256.Int), nil
	}
	return toUnsigned(last.Bias)
}

// findEpoch returns the last global epoch in [0, maxEpoch] whose point
// satisfies ok. ok must be monotone over the history.
func (e *Escrow) findEpoch(maxEpoch uint64, ok func(Point) bool) (uint64, error) {
	return search(maxEpoch, func(i uint64) (bool, error) {
		p, err := e.PointHistory(i)
		return ok(p), err
	})
}

func (e *Escrow) findUserEpoch(addr ids.ShortID, maxEpoch uint64, ok func(Point) bool) (uint64, error) {
	return search(maxEpoch, func(i uint64) (bool, error) {
		p, err := e.UserPointHistory(addr, i)
		return ok(p), err
	})
}

func search(maxIndex uint64, ok func(uint64) (bool, error)) (uint64, error) {
	var low, high uint64 = 0, maxIndex
	for i := 0; i < searchIterations && low < high; i++ {
		mid := (low + high + 1) / 2
		found, err := ok(mid)
		if err != nil {
			return 0, err
		}
		if found {
			low = mid
		} else {
			high = mid - 1
		}
	}
	return low, nil
}

func toUnsigned(v *big.Int) (*uint256.Int, error) {
	if v.Sign() < 0 {
		return new(uint256.Int), nil
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("voting power %s overflows", v)
	}
	return u, nil
}
