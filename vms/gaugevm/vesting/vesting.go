// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vesting releases a token linearly between a start and an end time
// to recipients funded by the admin.
package vesting

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	safemath "github.com/luxfi/vegauge/utils/math"
	"github.com/luxfi/vegauge/vms/gaugevm/runtime"
	"github.com/luxfi/vegauge/vms/gaugevm/state"
)

const (
	// MaxFundAdmins bounds the accounts besides the admin that may fund.
	MaxFundAdmins = 4
	// MaxRecipients bounds the recipients funded by one call.
	MaxRecipients = 100
)

var (
	ErrNotAdmin          = errors.New("caller is not the admin")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidSchedule   = errors.New("end time must be after start time")
	ErrTooManyFundAdmins = errors.New("too many fund admins")
	ErrTooManyRecipients = errors.New("too many recipients")
	ErrLengthMismatch    = errors.New("recipients and amounts differ in length")
	ErrCannotDisable     = errors.New("cannot disable")

	keyStartTime           = state.NewKey("startTime")
	keyEndTime             = state.NewKey("endTime")
	keyCanDisable          = state.NewKey("canDisable")
	keyFundAdminsEnabled   = state.NewKey("fundAdminsEnabled")
	keyFundAdmin           = state.NewKey("fundAdmin")
	keyInitialLocked       = state.NewKey("initialLocked")
	keyTotalClaimed        = state.NewKey("totalClaimed")
	keyDisabledAt          = state.NewKey("disabledAt")
	keyInitialLockedSupply = state.NewKey("initialLockedSupply")
	keyUnallocatedSupply   = state.NewKey("unallocatedSupply")
)

// Token is the vested token.
type Token interface {
	Transfer(ctx context.Context, caller, to ids.ShortID, amount *uint256.Int) error
	TransferFrom(ctx context.Context, caller, owner, to ids.ShortID, amount *uint256.Int) error
}

type Config struct {
	Address   ids.ShortID `json:"address"`
	Admin     ids.ShortID `json:"admin"`
	StartTime uint64      `json:"startTime"`
	EndTime   uint64      `json:"endTime"`
	// CanDisable lets the admin pause a recipient's vesting.
	CanDisable bool `json:"canDisable"`
	// FundAdmins may fund recipients until the admin disables them.
	FundAdmins []ids.ShortID `json:"fundAdmins"`
}

func (c *Config) Verify() error {
	switch {
	case c.EndTime <= c.StartTime:
		return fmt.Errorf("%w: %d <= %d", ErrInvalidSchedule, c.EndTime, c.StartTime)
	case len(c.FundAdmins) > MaxFundAdmins:
		return fmt.Errorf("%w: %d > %d", ErrTooManyFundAdmins, len(c.FundAdmins), MaxFundAdmins)
	default:
		return nil
	}
}

type Escrow struct {
	rt    *runtime.Runtime
	store *state.Store
	cfg   Config
	token Token
}

// New opens the vesting escrow at cfg.Address, recording its schedule and
// fund admins the first time.
func New(rt *runtime.Runtime, cfg Config, token Token) (*Escrow, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	e := &Escrow{
		rt:    rt,
		store: state.New(rt.DB("vesting/" + cfg.Address.String())),
		cfg:   cfg,
		token: token,
	}
	has, err := e.store.Has(keyStartTime)
	if err != nil || has {
		return e, err
	}
	return e, rt.Atomic(context.Background(), "vesting.init", func() error {
		if err := e.store.SetUint64(keyStartTime, cfg.StartTime); err != nil {
			return err
		}
		if err := e.store.SetUint64(keyEndTime, cfg.EndTime); err != nil {
			return err
		}
		if err := e.store.SetBool(keyCanDisable, cfg.CanDisable); err != nil {
			return err
		}
		if err := e.store.SetBool(keyFundAdminsEnabled, len(cfg.FundAdmins) > 0); err != nil {
			return err
		}
		for _, addr := range cfg.FundAdmins {
			if err := e.store.SetBool(keyFundAdmin.Addr(addr), true); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Escrow) Address() ids.ShortID {
	return e.cfg.Address
}

func (e *Escrow) Admin() ids.ShortID {
	return e.cfg.Admin
}

// AddTokens pulls amount from the admin into the unallocated supply.
func (e *Escrow) AddTokens(ctx context.Context, caller ids.ShortID, amount *uint256.Int) error {
	return e.rt.Atomic(ctx, "vesting.addTokens", func() error {
		if err := e.requireAdmin(caller); err != nil {
			return err
		}
		if err := e.token.TransferFrom(ctx, e.cfg.Address, caller, e.cfg.Address, amount); err != nil {
			return err
		}
		_, err := e.store.AddU256(keyUnallocatedSupply, amount)
		return err
	})
}

// Fund moves unallocated tokens onto the schedules of recipients. An empty
// recipient ends the list.
func (e *Escrow) Fund(ctx context.Context, caller ids.ShortID, recipients []ids.ShortID, amounts []*uint256.Int) error {
	switch {
	case len(recipients) > MaxRecipients:
		return fmt.Errorf("%w: %d > %d", ErrTooManyRecipients, len(recipients), MaxRecipients)
	case len(recipients) != len(amounts):
		return fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(recipients), len(amounts))
	}
	return e.rt.Atomic(ctx, "vesting.fund", func() error {
		if err := e.requireFunder(caller); err != nil {
			return err
		}
		total := new(uint256.Int)
		for i, addr := range recipients {
			if addr == ids.ShortEmpty {
				break
			}
			if _, err := e.store.AddU256(keyInitialLocked.Addr(addr), amounts[i]); err != nil {
				return err
			}
			var err error
			if total, err = safemath.AddU256(total, amounts[i]); err != nil {
				return err
			}
			e.rt.Emit(e.cfg.Address, "Fund", "recipient", addr, "amount", amounts[i].Dec())
		}
		if _, err := e.store.AddU256(keyInitialLockedSupply, total); err != nil {
			return err
		}
		_, err := e.store.SubU256(keyUnallocatedSupply, total)
		return err
	})
}

// ToggleDisable pauses or resumes vesting for recipient. A paused
// recipient may still claim what vested before the pause.
func (e *Escrow) ToggleDisable(ctx context.Context, caller, recipient ids.ShortID) error {
	return e.rt.Atomic(ctx, "vesting.toggleDisable", func() error {
		if err := e.requireAdmin(caller); err != nil {
			return err
		}
		canDisable, err := e.CanDisable()
		if err != nil {
			return err
		}
		if !canDisable {
			return ErrCannotDisable
		}
		disabledAt, err := e.DisabledAt(recipient)
		if err != nil {
			return err
		}
		disable := disabledAt == 0
		if disable {
			disabledAt = e.rt.Now()
		} else {
			disabledAt = 0
		}
		if err := e.store.SetUint64(keyDisabledAt.Addr(recipient), disabledAt); err != nil {
			return err
		}
		e.rt.Emit(e.cfg.Address, "ToggleDisable", "recipient", recipient, "disabled", disable)
		return nil
	})
}

// DisableCanDisable permanently removes the admin's ability to pause.
func (e *Escrow) DisableCanDisable(ctx context.Context, caller ids.ShortID) error {
	return e.rt.Atomic(ctx, "vesting.disableCanDisable", func() error {
		if err := e.requireAdmin(caller); err != nil {
			return err
		}
		return e.store.SetBool(keyCanDisable, false)
	})
}

// DisableFundAdmins permanently leaves funding to the admin alone.
func (e *Escrow) DisableFundAdmins(ctx context.Context, caller ids.ShortID) error {
	return e.rt.Atomic(ctx, "vesting.disableFundAdmins", func() error {
		if err := e.requireAdmin(caller); err != nil {
			return err
		}
		return e.store.SetBool(keyFundAdminsEnabled, false)
	})
}

// Claim transfers everything vested to addr and not claimed yet. Anyone
// may claim on behalf of addr.
func (e *Escrow) Claim(ctx context.Context, addr ids.ShortID) (*uint256.Int, error) {
	var claimable *uint256.Int
	err := e.rt.Atomic(ctx, "vesting.claim", func() error {
		t, err := e.DisabledAt(addr)
		if err != nil {
			return err
		}
		if t == 0 {
			t = e.rt.Now()
		}
		vested, err := e.vestedOf(addr, t)
		if err != nil {
			return err
		}
		claimed, err := e.TotalClaimed(addr)
		if err != nil {
			return err
		}
		if claimable, err = safemath.SubU256(vested, claimed); err != nil {
			return err
		}
		if claimable.IsZero() {
			return nil
		}
		if err := e.store.SetU256(keyTotalClaimed.Addr(addr), vested); err != nil {
			return err
		}
		if err := e.token.Transfer(ctx, e.cfg.Address, addr, claimable); err != nil {
			return err
		}
		e.rt.Emit(e.cfg.Address, "Claim", "recipient", addr, "claimed", claimable.Dec())
		return nil
	})
	return claimable, err
}

func (e *Escrow) requireAdmin(caller ids.ShortID) error {
	if caller != e.cfg.Admin {
		return fmt.Errorf("%w: %s", ErrNotAdmin, caller)
	}
	return nil
}

func (e *Escrow) requireFunder(caller ids.ShortID) error {
	if caller == e.cfg.Admin {
		return nil
	}
	enabled, err := e.FundAdminsEnabled()
	if err != nil {
		return err
	}
	isFundAdmin, err := e.IsFundAdmin(caller)
	if err != nil {
		return err
	}
	if !enabled || !isFundAdmin {
		return fmt.Errorf("%w: %s cannot fund", ErrUnauthorized, caller)
	}
	return nil
}
