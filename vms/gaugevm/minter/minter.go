// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package minter issues governance tokens against the accrual recorded by
// registered gauges.
package minter

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/vegauge/vms/gaugevm/runtime"
	"github.com/luxfi/vegauge/vms/gaugevm/state"
)

// MaxMintMany bounds the gauges minted from in one call.
const MaxMintMany = 8

var (
	ErrGaugeNotAdded        = errors.New("gauge is not added")
	ErrNotApproved          = errors.New("caller is not approved to mint for user")
	ErrTooManyGauges        = errors.New("too many gauges")
	ErrCheckpointIncomplete = errors.New("gauge checkpoint incomplete")

	keyMinted           = state.NewKey("minted")
	keyAllowedToMintFor = state.NewKey("allowedToMintFor")
)

// Gauge records how much an account has accrued.
type Gauge interface {
	UserCheckpoint(ctx context.Context, caller, addr ids.ShortID) (bool, error)
	IntegrateFraction(addr ids.ShortID) (*uint256.Int, error)
}

// Gauges resolves gauge addresses.
type Gauges interface {
	Gauge(addr ids.ShortID) (Gauge, error)
}

// Controller tells which gauges may mint.
type Controller interface {
	IsGauge(addr ids.ShortID) (bool, error)
}

// Token is the governance token; the minter must be its minter.
type Token interface {
	Mint(ctx context.Context, caller, to ids.ShortID, amount *uint256.Int) error
}

type Config struct {
	Address ids.ShortID `json:"address"`
}

type Minter struct {
	rt         *runtime.Runtime
	store      *state.Store
	cfg        Config
	token      Token
	controller Controller
	gauges     Gauges
}

func New(rt *runtime.Runtime, cfg Config, token Token, controller Controller, gauges Gauges) *Minter {
	return &Minter{
		rt:         rt,
		store:      state.New(rt.DB("minter/" + cfg.Address.String())),
		cfg:        cfg,
		token:      token,
		controller: controller,
		gauges:     gauges,
	}
}

func (m *Minter) Address() ids.ShortID {
	return m.cfg.Address
}

// Minted returns the total issued to user from gauge.
func (m *Minter) Minted(user, gauge ids.ShortID) (*uint256.Int, error) {
	return m.store.U256(keyMinted.Addr(user).Addr(gauge))
}

// AllowedToMintFor reports whether minter may mint on behalf of user.
func (m *Minter) AllowedToMintFor(minter, user ids.ShortID) (bool, error) {
	return m.store.Bool(keyAllowedToMintFor.Addr(minter).Addr(user))
}

// Mint issues everything the caller has accrued in gauge.
func (m *Minter) Mint(ctx context.Context, caller, gauge ids.ShortID) error {
	return m.rt.Atomic(ctx, "minter.mint", func() error {
		return m.mintFor(ctx, gauge, caller)
	})
}

// MintMany mints from up to MaxMintMany gauges. Empty addresses end the
// list.
func (m *Minter) MintMany(ctx context.Context, caller ids.ShortID, gauges []ids.ShortID) error {
	if len(gauges) > MaxMintMany {
		return fmt.Errorf("%w: %d > %d", ErrTooManyGauges, len(gauges), MaxMintMany)
	}
	return m.rt.Atomic(ctx, "minter.mintMany", func() error {
		for _, gauge := range gauges {
			if gauge == ids.ShortEmpty {
				break
			}
			if err := m.mintFor(ctx, gauge, caller); err != nil {
				return err
			}
		}
		return nil
	})
}

// MintFor mints for user, who must have approved the caller.
func (m *Minter) MintFor(ctx context.Context, caller, gauge, user ids.ShortID) error {
	return m.rt.Atomic(ctx, "minter.mintFor", func() error {
		allowed, err := m.AllowedToMintFor(caller, user)
		if err != nil {
			return err
		}
		if !allowed {
			return fmt.Errorf("%w: %s for %s", ErrNotApproved, caller, user)
		}
		return m.mintFor(ctx, gauge, user)
	})
}

// ToggleApproveMint allows or disallows mintingUser to mint for the
// caller.
func (m *Minter) ToggleApproveMint(ctx context.Context, caller, mintingUser ids.ShortID) error {
	return m.rt.Atomic(ctx, "minter.toggleApproveMint", func() error {
		key := keyAllowedToMintFor.Addr(mintingUser).Addr(caller)
		allowed, err := m.store.Bool(key)
		if err != nil {
			return err
		}
		return m.store.SetBool(key, !allowed)
	})
}

func (m *Minter) mintFor(ctx context.Context, gaugeAddr, user ids.ShortID) error {
	registered, err := m.controller.IsGauge(gaugeAddr)
	if err != nil {
		return err
	}
	if !registered {
		return fmt.Errorf("%w: %s", ErrGaugeNotAdded, gaugeAddr)
	}
	gauge, err := m.gauges.Gauge(gaugeAddr)
	if err != nil {
		return err
	}
	caughtUp, err := gauge.UserCheckpoint(ctx, m.cfg.Address, user)
	if err != nil {
		return err
	}
	if !caughtUp {
		return ErrCheckpointIncomplete
	}

	total, err := gauge.IntegrateFraction(user)
	if err != nil {
		return err
	}
	minted, err := m.Minted(user, gaugeAddr)
	if err != nil {
		return err
	}
	if !total.Gt(minted) {
		return nil
	}
	toMint := new(uint256.Int).Sub(total, minted)
	if err := m.token.Mint(ctx, m.cfg.Address, user, toMint); err != nil {
		return err
	}
	if err := m.store.SetU256(keyMinted.Addr(user).Addr(gaugeAddr), total); err != nil {
		return err
	}
	m.rt.Emit(m.cfg.Address, "Minted", "recipient", user, "gauge", gaugeAddr, "minted", total.Dec())
	return nil
}
