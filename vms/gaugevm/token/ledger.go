// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token implements fungible balance ledgers and the inflationary
// governance token.
package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/vegauge/vms/gaugevm/runtime"
	"github.com/luxfi/vegauge/vms/gaugevm/state"

	safemath "github.com/luxfi/vegauge/utils/math"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrZeroAddress           = errors.New("zero address")
	ErrNotMinter             = errors.New("caller is not the minter")

	keyBalance     = state.NewKey("balance")
	keyAllowance   = state.NewKey("allowance")
	keyTotalSupply = state.NewKey("totalSupply")
	keyMinter      = state.NewKey("minter")
)

// Config describes a ledger.
type Config struct {
	Address  ids.ShortID `json:"address"`
	Name     string      `json:"name"`
	Symbol   string      `json:"symbol"`
	Decimals uint8       `json:"decimals"`
	// Minter may create new units. Empty disables minting.
	Minter ids.ShortID `json:"minter"`
}

// Ledger is a standard fungible token: balances, allowances and total
// supply.
type Ledger struct {
	rt    *runtime.Runtime
	store *state.Store
	cfg   Config
}

// NewLedger opens the ledger described by cfg. The minter is recorded the
// first time the ledger is opened.
func NewLedger(rt *runtime.Runtime, cfg Config) (*Ledger, error) {
	l := &Ledger{
		rt:    rt,
		store: state.New(rt.DB("token/" + cfg.Address.String())),
		cfg:   cfg,
	}
	has, err := l.store.Has(keyMinter)
	if err != nil {
		return nil, err
	}
	if !has {
		err := rt.Atomic(context.Background(), "token.init", func() error {
			return l.store.SetAddr(keyMinter, cfg.Minter)
		})
		if err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Ledger) Address() ids.ShortID { return l.cfg.Address }
func (l *Ledger) Name() string         { return l.cfg.Name }
func (l *Ledger) Symbol() string       { return l.cfg.Symbol }
func (l *Ledger) Decimals() uint8      { return l.cfg.Decimals }

func (l *Ledger) Minter() (ids.ShortID, error) {
	return l.store.Addr(keyMinter)
}

func (l *Ledger) BalanceOf(owner ids.ShortID) (*uint256.Int, error) {
	return l.store.U256(keyBalance.Addr(owner))
}

func (l *Ledger) TotalSupply() (*uint256.Int, error) {
	return l.store.U256(keyTotalSupply)
}

func (l *Ledger) Allowance(owner, spender ids.ShortID) (*uint256.Int, error) {
	return l.store.U256(keyAllowance.Addr(owner).Addr(spender))
}

// Transfer moves amount from caller to to.
func (l *Ledger) Transfer(ctx context.Context, caller, to ids.ShortID, amount *uint256.Int) error {
	return l.rt.Atomic(ctx, "token.transfer", func() error {
		return l.move(caller, to, amount)
	})
}

// TransferFrom moves amount from owner to to using caller's allowance.
// An allowance of 2^256-1 is never decreased.
func (l *Ledger) TransferFrom(ctx context.Context, caller, owner, to ids.ShortID, amount *uint256.Int) error {
	return l.rt.Atomic(ctx, "token.transferFrom", func() error {
		key := keyAllowance.Addr(owner).Addr(caller)
		allowance, err := l.store.U256(key)
		if err != nil {
			return err
		}
		if allowance.Lt(amount) {
			return fmt.Errorf("%w: %s allowed %s to spend %s, need %s",
				ErrInsufficientAllowance, owner, caller, allowance.Dec(), amount.Dec())
		}
		if !isUnlimited(allowance) {
			if err := l.store.SetU256(key, new(uint256.Int).Sub(allowance, amount)); err != nil {
				return err
			}
		}
		return l.move(owner, to, amount)
	})
}

// Approve sets the amount spender may move out of caller's balance.
func (l *Ledger) Approve(ctx context.Context, caller, spender ids.ShortID, amount *uint256.Int) error {
	return l.rt.Atomic(ctx, "token.approve", func() error {
		return l.approve(caller, spender, amount)
	})
}

func (l *Ledger) IncreaseAllowance(ctx context.Context, caller, spender ids.ShortID, amount *uint256.Int) error {
	return l.rt.Atomic(ctx, "token.increaseAllowance", func() error {
		current, err := l.Allowance(caller, spender)
		if err != nil {
			return err
		}
		next, err := safemath.AddU256(current, amount)
		if err != nil {
			return err
		}
		return l.approve(caller, spender, next)
	})
}

func (l *Ledger) DecreaseAllowance(ctx context.Context, caller, spender ids.ShortID, amount *uint256.Int) error {
	return l.rt.Atomic(ctx, "token.decreaseAllowance", func() error {
		current, err := l.Allowance(caller, spender)
		if err != nil {
			return err
		}
		next, err := safemath.SubU256(current, amount)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInsufficientAllowance, err)
		}
		return l.approve(caller, spender, next)
	})
}

// Mint creates amount new units for to. Only the minter may mint.
func (l *Ledger) Mint(ctx context.Context, caller, to ids.ShortID, amount *uint256.Int) error {
	return l.rt.Atomic(ctx, "token.mint", func() error {
		minter, err := l.Minter()
		if err != nil {
			return err
		}
		if minter == ids.ShortEmpty || caller != minter {
			return fmt.Errorf("%w: %s", ErrNotMinter, caller)
		}
		return l.mint(to, amount)
	})
}

// Burn destroys amount of caller's units.
func (l *Ledger) Burn(ctx context.Context, caller ids.ShortID, amount *uint256.Int) error {
	return l.rt.Atomic(ctx, "token.burn", func() error {
		if err := l.debit(caller, amount); err != nil {
			return err
		}
		if _, err := l.store.SubU256(keyTotalSupply, amount); err != nil {
			return err
		}
		l.rt.Emit(l.cfg.Address, "Transfer", "from", caller, "to", ids.ShortEmpty, "value", amount.Dec())
		return nil
	})
}

func (l *Ledger) setMinter(minter ids.ShortID) error {
	return l.store.SetAddr(keyMinter, minter)
}

func (l *Ledger) mint(to ids.ShortID, amount *uint256.Int) error {
	if to == ids.ShortEmpty {
		return ErrZeroAddress
	}
	if _, err := l.store.AddU256(keyTotalSupply, amount); err != nil {
		return err
	}
	if _, err := l.store.AddU256(keyBalance.Addr(to), amount); err != nil {
		return err
	}
	l.rt.Emit(l.cfg.Address, "Transfer", "from", ids.ShortEmpty, "to", to, "value", amount.Dec())
	return nil
}

func (l *Ledger) approve(owner, spender ids.ShortID, amount *uint256.Int) error {
	if err := l.store.SetU256(keyAllowance.Addr(owner).Addr(spender), amount); err != nil {
		return err
	}
	l.rt.Emit(l.cfg.Address, "Approval", "owner", owner, "spender", spender, "value", amount.Dec())
	return nil
}

func (l *Ledger) move(from, to ids.ShortID, amount *uint256.Int) error {
	if to == ids.ShortEmpty {
		return ErrZeroAddress
	}
	if err := l.debit(from, amount); err != nil {
		return err
	}
	if _, err := l.store.AddU256(keyBalance.Addr(to), amount); err != nil {
		return err
	}
	l.rt.Emit(l.cfg.Address, "Transfer", "from", from, "to", to, "value", amount.Dec())
	return nil
}

func (l *Ledger) debit(from ids.ShortID, amount *uint256.Int) error {
	key := keyBalance.Addr(from)
	balance, err := l.store.U256(key)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, need %s", ErrInsufficientBalance, from, balance.Dec(), amount.Dec())
	}
	return l.store.SetU256(key, new(uint256.Int).Sub(balance, amount))
}

func isUnlimited(v *uint256.Int) bool {
	return v.Eq(new(uint256.Int).SetAllOne())
}
