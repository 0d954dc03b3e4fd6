// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vesting

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	safemath "github.com/luxfi/vegauge/utils/math"
)

func (e *Escrow) StartTime() (uint64, error) {
	return e.store.Uint64(keyStartTime)
}

func (e *Escrow) EndTime() (uint64, error) {
	return e.store.Uint64(keyEndTime)
}

func (e *Escrow) CanDisable() (bool, error) {
	return e.store.Bool(keyCanDisable)
}

func (e *Escrow) FundAdminsEnabled() (bool, error) {
	return e.store.Bool(keyFundAdminsEnabled)
}

func (e *Escrow) IsFundAdmin(addr ids.ShortID) (bool, error) {
	return e.store.Bool(keyFundAdmin.Addr(addr))
}

// InitialLocked is everything ever funded to addr.
func (e *Escrow) InitialLocked(addr ids.ShortID) (*uint256.Int, error) {
	return e.store.U256(keyInitialLocked.Addr(addr))
}

func (e *Escrow) TotalClaimed(addr ids.ShortID) (*uint256.Int, error) {
	return e.store.U256(keyTotalClaimed.Addr(addr))
}

// DisabledAt is when addr's vesting was paused, or zero.
func (e *Escrow) DisabledAt(addr ids.ShortID) (uint64, error) {
	return e.store.Uint64(keyDisabledAt.Addr(addr))
}

func (e *Escrow) InitialLockedSupply() (*uint256.Int, error) {
	return e.store.U256(keyInitialLockedSupply)
}

// UnallocatedSupply is held by the escrow but not funded to anyone.
func (e *Escrow) UnallocatedSupply() (*uint256.Int, error) {
	return e.store.U256(keyUnallocatedSupply)
}

// VestedSupply is the amount vested across every recipient.
func (e *Escrow) VestedSupply() (*uint256.Int, error) {
	supply, err := e.InitialLockedSupply()
	if err != nil {
		return nil, err
	}
	return e.vested(supply, e.rt.Now())
}

// LockedSupply is the amount still to vest across every recipient.
func (e *Escrow) LockedSupply() (*uint256.Int, error) {
	supply, err := e.InitialLockedSupply()
	if err != nil {
		return nil, err
	}
	vested, err := e.vested(supply, e.rt.Now())
	if err != nil {
		return nil, err
	}
	return safemath.SubU256(supply, vested)
}

// VestedOf is the amount vested to addr so far, ignoring any pause.
func (e *Escrow) VestedOf(addr ids.ShortID) (*uint256.Int, error) {
	return e.vestedOf(addr, e.rt.Now())
}

// BalanceOf is what addr could claim now, ignoring any pause.
func (e *Escrow) BalanceOf(addr ids.ShortID) (*uint256.Int, error) {
	vested, err := e.VestedOf(addr)
	if err != nil {
		return nil, err
	}
	claimed, err := e.TotalClaimed(addr)
	if err != nil {
		return nil, err
	}
	return safemath.SubU256(vested, claimed)
}

// LockedOf is the amount still to vest to addr.
func (e *Escrow) LockedOf(addr ids.ShortID) (*uint256.Int, error) {
	locked, err := e.InitialLocked(addr)
	if err != nil {
		return nil, err
	}
	vested, err := e.vested(locked, e.rt.Now())
	if err != nil {
		return nil, err
	}
	return safemath.SubU256(locked, vested)
}

func (e *Escrow) vestedOf(addr ids.ShortID, t uint64) (*uint256.Int, error) {
	locked, err := e.InitialLocked(addr)
	if err != nil {
		return nil, err
	}
	return e.vested(locked, t)
}

// vested is the part of locked released at t: nothing before the start,
// everything from the end, linear in between.
func (e *Escrow) vested(locked *uint256.Int, t uint64) (*uint256.Int, error) {
	start, err := e.StartTime()
	if err != nil {
		return nil, err
	}
	end, err := e.EndTime()
	if err != nil {
		return nil, err
	}
	switch {
	case t < start:
		return new(uint256.Int), nil
	case t >= end:
		return locked.Clone(), nil
	}
	return safemath.MulDivU256(locked, uint256.NewInt(t-start), uint256.NewInt(end-start))
}
