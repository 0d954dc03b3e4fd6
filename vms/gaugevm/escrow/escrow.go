// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package escrow implements vote-escrowed locks: governance tokens locked
// until a chosen week yield voting power that decays linearly to zero at
// the unlock time.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/vegauge/vms/gaugevm/epoch"
	"github.com/luxfi/vegauge/vms/gaugevm/runtime"
	"github.com/luxfi/vegauge/vms/gaugevm/state"

	safemath "github.com/luxfi/vegauge/utils/math"
)

// DefaultMaxWeeks bounds the weeks a single checkpoint folds forward.
const DefaultMaxWeeks = 255

var (
	ErrLockExists           = errors.New("withdraw old tokens first")
	ErrNoLock               = errors.New("no existing lock found")
	ErrLockExpired          = errors.New("lock expired")
	ErrLockNotExpired       = errors.New("the lock didn't expire")
	ErrZeroValue            = errors.New("value must be positive")
	ErrInvalidUnlockTime    = errors.New("invalid unlock time")
	ErrFutureBlock          = errors.New("block is in the future")
	ErrCheckpointIncomplete = errors.New("checkpoint incomplete, call checkpoint again")

	// multiplier scales the blocks-per-second estimate.
	multiplier = big.NewInt(1_000_000_000_000_000_000)
	maxLock    = new(big.Int).SetUint64(epoch.MaxLockTime)

	keySupply           = state.NewKey("supply")
	keyEpoch            = state.NewKey("epoch")
	keyPointHistory     = state.NewKey("pointHistory")
	keyUserPointEpoch   = state.NewKey("userPointEpoch")
	keyUserPointHistory = state.NewKey("userPointHistory")
	keyLocked           = state.NewKey("locked")
	keySlopeChanges     = state.NewKey("slopeChanges")
)

// Token is the locked governance token.
type Token interface {
	Transfer(ctx context.Context, caller, to ids.ShortID, amount *uint256.Int) error
	TransferFrom(ctx context.Context, caller, from, to ids.ShortID, amount *uint256.Int) error
}

// Config describes an escrow.
type Config struct {
	Address ids.ShortID `json:"address"`
	// MaxWeeks bounds the weeks one checkpoint folds forward.
	MaxWeeks int `json:"maxWeeks"`
}

// Escrow holds locks and the global and per account point history.
type Escrow struct {
	rt    *runtime.Runtime
	store *state.Store
	cfg   Config
	token Token
}

// New opens the escrow at cfg.Address locking token.
func New(rt *runtime.Runtime, cfg Config, token Token) *Escrow {
	if cfg.MaxWeeks <= 0 {
		cfg.MaxWeeks = DefaultMaxWeeks
	}
	return &Escrow{
		rt:    rt,
		store: state.New(rt.DB("escrow/" + cfg.Address.String())),
		cfg:   cfg,
		token: token,
	}
}

func (e *Escrow) Address() ids.ShortID {
	return e.cfg.Address
}

// CreateLock locks amount of the caller's tokens until unlockTime, rounded
// down to a week.
func (e *Escrow) CreateLock(ctx context.Context, caller ids.ShortID, amount *uint256.Int, unlockTime uint64) error {
	return e.rt.Atomic(ctx, "escrow.createLock", func() error {
		unlockTime = epoch.FloorWeek(unlockTime)
		locked, err := e.Locked(caller)
		if err != nil {
			return err
		}
		now := e.rt.Now()
		switch {
		case amount.IsZero():
			return ErrZeroValue
		case !locked.Amount.IsZero():
			return ErrLockExists
		case unlockTime <= now:
			return fmt.Errorf("%w: can only lock until time in the future", ErrInvalidUnlockTime)
		case unlockTime > now+epoch.MaxLockTime:
			return fmt.Errorf("%w: voting lock can be %d seconds max", ErrInvalidUnlockTime, epoch.MaxLockTime)
		}
		return e.depositFor(ctx, caller, caller, amount, unlockTime, locked, CreateLockType)
	})
}

// IncreaseAmount adds amount of the caller's tokens to their active lock
// without changing its end.
func (e *Escrow) IncreaseAmount(ctx context.Context, caller ids.ShortID, amount *uint256.Int) error {
	return e.rt.Atomic(ctx, "escrow.increaseAmount", func() error {
		locked, err := e.activeLock(caller)
		if err != nil {
			return err
		}
		if amount.IsZero() {
			return ErrZeroValue
		}
		return e.depositFor(ctx, caller, caller, amount, 0, locked, IncreaseLockAmount)
	})
}

// IncreaseUnlockTime extends the caller's active lock to unlockTime,
// rounded down to a week.
func (e *Escrow) IncreaseUnlockTime(ctx context.Context, caller ids.ShortID, unlockTime uint64) error {
	return e.rt.Atomic(ctx, "escrow.increaseUnlockTime", func() error {
		locked, err := e.activeLock(caller)
		if err != nil {
			return err
		}
		unlockTime = epoch.FloorWeek(unlockTime)
		switch {
		case unlockTime <= locked.End:
			return fmt.Errorf("%w: can only increase lock duration", ErrInvalidUnlockTime)
		case unlockTime > e.rt.Now()+epoch.MaxLockTime:
			return fmt.Errorf("%w: voting lock can be %d seconds max", ErrInvalidUnlockTime, epoch.MaxLockTime)
		}
		return e.depositFor(ctx, caller, caller, new(uint256.Int), unlockTime, locked, IncreaseUnlockTime)
	})
}

// DepositFor adds amount of the caller's tokens to the active lock of addr.
func (e *Escrow) DepositFor(ctx context.Context, caller, addr ids.ShortID, amount *uint256.Int) error {
	return e.rt.Atomic(ctx, "escrow.depositFor", func() error {
		locked, err := e.activeLock(addr)
		if err != nil {
			return err
		}
		if amount.IsZero() {
			return ErrZeroValue
		}
		return e.depositFor(ctx, addr, caller, amount, 0, locked, DepositForType)
	})
}

// Withdraw returns the caller's tokens once their lock has expired.
func (e *Escrow) Withdraw(ctx context.Context, caller ids.ShortID) error {
	return e.rt.Atomic(ctx, "escrow.withdraw", func() error {
		locked, err := e.Locked(caller)
		if err != nil {
			return err
		}
		if locked.Amount.IsZero() {
			return ErrNoLock
		}
		if e.rt.Now() < locked.End {
			return ErrLockNotExpired
		}

		value := locked.Amount
		cleared := LockedBalance{Amount: new(uint256.Int)}
		if err := e.store.SetRecord(keyLocked.Addr(caller), &cleared); err != nil {
			return err
		}
		supplyBefore, err := e.Supply()
		if err != nil {
			return err
		}
		supply, err := e.store.SubU256(keySupply, value)
		if err != nil {
			return err
		}
		if err := e.userCheckpoint(caller, locked, cleared); err != nil {
			return err
		}
		if err := e.token.Transfer(ctx, e.cfg.Address, caller, value); err != nil {
			return err
		}
		e.rt.Emit(e.cfg.Address, "Withdraw", "provider", caller, "value", value.Dec(), "ts", e.rt.Now())
		e.rt.Emit(e.cfg.Address, "Supply", "prevSupply", supplyBefore.Dec(), "supply", supply.Dec())
		return nil
	})
}

// Checkpoint folds the global history forward to now. It reports false
// when more than MaxWeeks weeks were pending; call it again to continue.
func (e *Escrow) Checkpoint(ctx context.Context) (bool, error) {
	var caughtUp bool
	err := e.rt.Atomic(ctx, "escrow.checkpoint", func() error {
		var err error
		caughtUp, err = e.checkpoint(ids.ShortEmpty, LockedBalance{}, LockedBalance{})
		return err
	})
	return caughtUp, err
}

func (e *Escrow) activeLock(addr ids.ShortID) (LockedBalance, error) {
	locked, err := e.Locked(addr)
	if err != nil {
		return LockedBalance{}, err
	}
	if locked.Amount.IsZero() {
		return LockedBalance{}, ErrNoLock
	}
	if locked.End <= e.rt.Now() {
		return LockedBalance{}, fmt.Errorf("%w: cannot add to expired lock, withdraw", ErrLockExpired)
	}
	return locked, nil
}

func (e *Escrow) depositFor(
	ctx context.Context,
	addr ids.ShortID,
	funder ids.ShortID,
	value *uint256.Int,
	unlockTime uint64,
	locked LockedBalance,
	kind int,
) error {
	supplyBefore, err := e.Supply()
	if err != nil {
		return err
	}
	supply, err := e.store.AddU256(keySupply, value)
	if err != nil {
		return err
	}

	oldLocked := locked.clone()
	newLocked := locked.clone()
	if newLocked.Amount, err = safemath.AddU256(newLocked.Amount, value); err != nil {
		return err
	}
	if _, err := safemath.ToI128(newLocked.Amount); err != nil {
		return err
	}
	if unlockTime != 0 {
		newLocked.End = unlockTime
	}
	if err := e.store.SetRecord(keyLocked.Addr(addr), &newLocked); err != nil {
		return err
	}
	if err := e.userCheckpoint(addr, oldLocked, newLocked); err != nil {
		return err
	}

	if !value.IsZero() {
		if err := e.token.TransferFrom(ctx, e.cfg.Address, funder, e.cfg.Address, value); err != nil {
			return err
		}
	}
	e.rt.Emit(e.cfg.Address, "Deposit",
		"provider", addr,
		"value", value.Dec(),
		"locktime", newLocked.End,
		"type", kind,
		"ts", e.rt.Now(),
	)
	e.rt.Emit(e.cfg.Address, "Supply", "prevSupply", supplyBefore.Dec(), "supply", supply.Dec())
	return nil
}

func (e *Escrow) userCheckpoint(addr ids.ShortID, oldLocked, newLocked LockedBalance) error {
	caughtUp, err := e.checkpoint(addr, oldLocked, newLocked)
	if err != nil {
		return err
	}
	if !caughtUp {
		return ErrCheckpointIncomplete
	}
	return nil
}

// userLine returns the slope and the bias at now of a lock.
func userLine(c *safemath.Calc, locked LockedBalance, now uint64) Point {
	p := newPoint()
	if locked.End <= now || locked.Amount == nil || locked.Amount.IsZero() {
		return p
	}
	p.Slope = c.DivI(c.ToI(locked.Amount), maxLock)
	p.Bias = c.MulI(p.Slope, new(big.Int).SetUint64(locked.End-now))
	return p
}

// checkpoint records the global point for now, folding forward at most
// MaxWeeks weeks of scheduled slope changes. When addr is set the change
// from oldLocked to newLocked is applied on top and recorded in addr's
// history. It reports whether the history reached now; addr's change is
// only applied if it did.
func (e *Escrow) checkpoint(addr ids.ShortID, oldLocked, newLocked LockedBalance) (bool, error) {
	var (
		c      safemath.Calc
		now    = e.rt.Now()
		height = e.rt.Height()
		uOld   = newPoint()
		uNew   = newPoint()

		oldDSlope = new(big.Int)
		newDSlope = new(big.Int)
		err       error
	)

	if addr != ids.ShortEmpty {
		uOld = userLine(&c, oldLocked, now)
		uNew = userLine(&c, newLocked, now)
		if c.Errored() {
			return false, c.Err
		}
		if oldDSlope, err = e.SlopeChanges(oldLocked.End); err != nil {
			return false, err
		}
		if newLocked.End != 0 {
			if newLocked.End == oldLocked.End {
				newDSlope = new(big.Int).Set(oldDSlope)
			} else if newDSlope, err = e.SlopeChanges(newLocked.End); err != nil {
				return false, err
			}
		}
	}

	globalEpoch, err := e.Epoch()
	if err != nil {
		return false, err
	}
	lastPoint := Point{Bias: new(big.Int), Slope: new(big.Int), Ts: now, Blk: height}
	if globalEpoch > 0 {
		if lastPoint, err = e.PointHistory(globalEpoch); err != nil {
			return false, err
		}
	}
	if lastPoint.Ts > now || lastPoint.Blk > height {
		return false, fmt.Errorf("%w: clock went backwards", safemath.ErrUnderflow)
	}

	lastCheckpoint := lastPoint.Ts
	initialTs := lastPoint.Ts
	initialBlk := lastPoint.Blk
	blockSlope := new(big.Int)
	if now > lastPoint.Ts {
		blockSlope = c.MulI(multiplier, new(big.Int).SetUint64(height-lastPoint.Blk))
		blockSlope = c.DivI(blockSlope, new(big.Int).SetUint64(now-lastPoint.Ts))
	}

	caughtUp := false
	ti := epoch.FloorWeek(lastCheckpoint)
	for i := 0; i < e.cfg.MaxWeeks; i++ {
		ti += epoch.Week
		dSlope := new(big.Int)
		if ti > now {
			ti = now
		} else if dSlope, err = e.SlopeChanges(ti); err != nil {
			return false, err
		}
		lastPoint.Bias = c.SubI(lastPoint.Bias, c.MulI(lastPoint.Slope, new(big.Int).SetUint64(ti-lastCheckpoint)))
		lastPoint.Slope = c.AddI(lastPoint.Slope, dSlope)
		lastPoint.Bias = safemath.ClampZero(lastPoint.Bias)
		lastPoint.Slope = safemath.ClampZero(lastPoint.Slope)
		lastCheckpoint = ti
		lastPoint.Ts = ti
		blk := c.DivI(c.MulI(blockSlope, new(big.Int).SetUint64(ti-initialTs)), multiplier)
		lastPoint.Blk = initialBlk + blk.Uint64()
		globalEpoch++
		if c.Errored() {
			return false, c.Err
		}
		if ti == now {
			lastPoint.Blk = height
			caughtUp = true
			break
		}
		if err := e.store.SetRecord(keyPointHistory.Uint(globalEpoch), &lastPoint); err != nil {
			return false, err
		}
	}

	if err := e.store.SetUint64(keyEpoch, globalEpoch); err != nil {
		return false, err
	}
	if !caughtUp {
		return false, e.store.SetRecord(keyPointHistory.Uint(globalEpoch), &lastPoint)
	}

	if addr != ids.ShortEmpty {
		lastPoint.Slope = safemath.ClampZero(c.AddI(lastPoint.Slope, c.SubI(uNew.Slope, uOld.Slope)))
		lastPoint.Bias = safemath.ClampZero(c.AddI(lastPoint.Bias, c.SubI(uNew.Bias, uOld.Bias)))
	}
	if err := e.store.SetRecord(keyPointHistory.Uint(globalEpoch), &lastPoint); err != nil {
		return false, err
	}
	if addr == ids.ShortEmpty {
		return true, c.Err
	}

	if oldLocked.End > now {
		oldDSlope = c.AddI(oldDSlope, uOld.Slope)
		if newLocked.End == oldLocked.End {
			oldDSlope = c.SubI(oldDSlope, uNew.Slope)
		}
		if err := e.store.SetI128(keySlopeChanges.Uint(oldLocked.End), oldDSlope); err != nil {
			return false, err
		}
	}
	if newLocked.End > now && newLocked.End > oldLocked.End {
		newDSlope = c.SubI(newDSlope, uNew.Slope)
		if err := e.store.SetI128(keySlopeChanges.Uint(newLocked.End), newDSlope); err != nil {
			return false, err
		}
	}
	if c.Errored() {
		return false, c.Err
	}

	userEpoch, err := e.UserPointEpoch(addr)
	if err != nil {
		return false, err
	}
	userEpoch++
	if err := e.store.SetUint64(keyUserPointEpoch.Addr(addr), userEpoch); err != nil {
		return false, err
	}
	uNew.Ts = now
	uNew.Blk = height
	return true, e.store.SetRecord(keyUserPointHistory.Addr(addr).Uint(userEpoch), &uNew)
}
