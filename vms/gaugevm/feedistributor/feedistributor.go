// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package feedistributor pays protocol fees out to vote-escrow holders in
// proportion to their weekly voting power.
package feedistributor

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/vegauge/vms/gaugevm/epoch"
	"github.com/luxfi/vegauge/vms/gaugevm/escrow"
	"github.com/luxfi/vegauge/vms/gaugevm/runtime"
	"github.com/luxfi/vegauge/vms/gaugevm/state"
)

const (
	// TokenCheckpointDeadline is how long after the last token checkpoint
	// anyone may checkpoint again.
	TokenCheckpointDeadline = epoch.Day

	DefaultMaxWeeks      = 20
	DefaultMaxClaimWeeks = 50
	// MaxClaimMany bounds the accounts claimed for in one call.
	MaxClaimMany = 20

	searchIterations = 128
)

var (
	ErrNotAdmin             = errors.New("caller is not the admin")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrKilled               = errors.New("fee distributor is killed")
	ErrTooManyReceivers     = errors.New("too many receivers")
	ErrCheckpointIncomplete = errors.New("voting escrow checkpoint incomplete")

	keyStartTime          = state.NewKey("startTime")
	keyTimeCursor         = state.NewKey("timeCursor")
	keyTimeCursorOf       = state.NewKey("timeCursorOf")
	keyUserEpochOf        = state.NewKey("userEpochOf")
	keyLastTokenTime      = state.NewKey("lastTokenTime")
	keyTokensPerWeek      = state.NewKey("tokensPerWeek")
	keyTokenLastBalance   = state.NewKey("tokenLastBalance")
	keyVESupply           = state.NewKey("veSupply")
	keyCanCheckpointToken = state.NewKey("canCheckpointToken")
	keyIsKilled           = state.NewKey("isKilled")
)

// VotingEscrow is the history of voting power fees are shared by.
type VotingEscrow interface {
	Checkpoint(ctx context.Context) (bool, error)
	Epoch() (uint64, error)
	PointHistory(i uint64) (escrow.Point, error)
	UserPointEpoch(addr ids.ShortID) (uint64, error)
	UserPointHistory(addr ids.ShortID, i uint64) (escrow.Point, error)
}

// Token is the fee token.
type Token interface {
	BalanceOf(owner ids.ShortID) (*uint256.Int, error)
	Transfer(ctx context.Context, caller, to ids.ShortID, amount *uint256.Int) error
	TransferFrom(ctx context.Context, caller, owner, to ids.ShortID, amount *uint256.Int) error
}

type Config struct {
	Address         ids.ShortID `json:"address"`
	Admin           ids.ShortID `json:"admin"`
	EmergencyReturn ids.ShortID `json:"emergencyReturn"`
	// StartTime is floored to the week. Fees are shared from then on.
	StartTime uint64 `json:"startTime"`
	// MaxWeeks bounds the weeks filled by one token or supply checkpoint.
	MaxWeeks int `json:"maxWeeks"`
	// MaxClaimWeeks bounds the weeks one claim walks per account.
	MaxClaimWeeks int `json:"maxClaimWeeks"`
}

type FeeDistributor struct {
	rt     *runtime.Runtime
	store  *state.Store
	cfg    Config
	escrow VotingEscrow
	token  Token
}

// New opens the distributor at cfg.Address, setting its cursors to the
// start week the first time.
func New(rt *runtime.Runtime, cfg Config, ve VotingEscrow, token Token) (*FeeDistributor, error) {
	if cfg.MaxWeeks <= 0 {
		cfg.MaxWeeks = DefaultMaxWeeks
	}
	if cfg.MaxClaimWeeks <= 0 {
		cfg.MaxClaimWeeks = DefaultMaxClaimWeeks
	}
	f := &FeeDistributor{
		rt:     rt,
		store:  state.New(rt.DB("feedistributor/" + cfg.Address.String())),
		cfg:    cfg,
		escrow: ve,
		token:  token,
	}
	has, err := f.store.Has(keyStartTime)
	if err != nil || has {
		return f, err
	}
	return f, rt.Atomic(context.Background(), "feedistributor.init", func() error {
		t := epoch.FloorWeek(cfg.StartTime)
		for _, key := range []state.Key{keyStartTime, keyLastTokenTime, keyTimeCursor} {
			if err := f.store.SetUint64(key, t); err != nil {
				return err
			}
		}
		return nil
	})
}

func (f *FeeDistributor) Address() ids.ShortID {
	return f.cfg.Address
}

// CheckpointToken spreads fees received since the last call over the
// weeks they arrived in. The admin may always call it; anyone may once
// the deadline passed and checkpointing is open.
func (f *FeeDistributor) CheckpointToken(ctx context.Context, caller ids.ShortID) error {
	return f.rt.Atomic(ctx, "feedistributor.checkpointToken", func() error {
		if caller != f.cfg.Admin {
			due, err := f.tokenCheckpointDue()
			if err != nil {
				return err
			}
			if !due {
				return fmt.Errorf("%w: %s cannot checkpoint token yet", ErrUnauthorized, caller)
			}
		}
		return f.checkpointToken()
	})
}

// CheckpointTotalSupply records the total voting power at the start of
// each week up to now.
func (f *FeeDistributor) CheckpointTotalSupply(ctx context.Context) error {
	return f.rt.Atomic(ctx, "feedistributor.checkpointTotalSupply", func() error {
		return f.checkpointTotalSupply(ctx)
	})
}

// Claim pays addr its share of fees for every completed week, walking at
// most MaxClaimWeeks weeks.
func (f *FeeDistributor) Claim(ctx context.Context, addr ids.ShortID) (*uint256.Int, error) {
	var amount *uint256.Int
	err := f.rt.Atomic(ctx, "feedistributor.claim", func() error {
		lastTokenTime, err := f.prepareClaim(ctx)
		if err != nil {
			return err
		}
		amount, err = f.claimAndPay(ctx, addr, lastTokenTime)
		return err
	})
	return amount, err
}

// ClaimMany claims for up to MaxClaimMany accounts. Empty addresses end
// the list.
func (f *FeeDistributor) ClaimMany(ctx context.Context, receivers []ids.ShortID) (*uint256.Int, error) {
	if len(receivers) > MaxClaimMany {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyReceivers, len(receivers), MaxClaimMany)
	}
	total := new(uint256.Int)
	err := f.rt.Atomic(ctx, "feedistributor.claimMany", func() error {
		lastTokenTime, err := f.prepareClaim(ctx)
		if err != nil {
			return err
		}
		for _, addr := range receivers {
			if addr == ids.ShortEmpty {
				break
			}
			amount, err := f.claimAndPay(ctx, addr, lastTokenTime)
			if err != nil {
				return err
			}
			total.Add(total, amount)
		}
		return nil
	})
	return total, err
}

// Burn pulls amount of the fee token from the caller into the
// distributor.
func (f *FeeDistributor) Burn(ctx context.Context, caller ids.ShortID, amount *uint256.Int) error {
	return f.rt.Atomic(ctx, "feedistributor.burn", func() error {
		if err := f.requireAlive(); err != nil {
			return err
		}
		if amount.IsZero() {
			return nil
		}
		if err := f.token.TransferFrom(ctx, f.cfg.Address, caller, f.cfg.Address, amount); err != nil {
			return err
		}
		due, err := f.tokenCheckpointDue()
		if err != nil || !due {
			return err
		}
		return f.checkpointToken()
	})
}

// ToggleAllowCheckpointToken opens or closes token checkpoints to anyone.
func (f *FeeDistributor) ToggleAllowCheckpointToken(ctx context.Context, caller ids.ShortID) error {
	return f.rt.Atomic(ctx, "feedistributor.toggleAllowCheckpointToken", func() error {
		if err := f.requireAdmin(caller); err != nil {
			return err
		}
		allowed, err := f.CanCheckpointToken()
		if err != nil {
			return err
		}
		if err := f.store.SetBool(keyCanCheckpointToken, !allowed); err != nil {
			return err
		}
		f.rt.Emit(f.cfg.Address, "ToggleAllowCheckpointToken", "toggleFlag", !allowed)
		return nil
	})
}

// KillMe stops the distributor and sends every fee token it holds to the
// emergency return address.
func (f *FeeDistributor) KillMe(ctx context.Context, caller ids.ShortID) error {
	return f.rt.Atomic(ctx, "feedistributor.killMe", func() error {
		if err := f.requireAdmin(caller); err != nil {
			return err
		}
		if err := f.store.SetBool(keyIsKilled, true); err != nil {
			return err
		}
		balance, err := f.token.BalanceOf(f.cfg.Address)
		if err != nil || balance.IsZero() {
			return err
		}
		return f.token.Transfer(ctx, f.cfg.Address, f.cfg.EmergencyReturn, balance)
	})
}

// prepareClaim brings the supply history and, when due, the token
// distribution up to date and returns the week claims may run up to.
func (f *FeeDistributor) prepareClaim(ctx context.Context) (uint64, error) {
	if err := f.requireAlive(); err != nil {
		return 0, err
	}
	now := f.rt.Now()
	timeCursor, err := f.TimeCursor()
	if err != nil {
		return 0, err
	}
	if now >= timeCursor {
		if err := f.checkpointTotalSupply(ctx); err != nil {
			return 0, err
		}
	}
	lastTokenTime, err := f.LastTokenTime()
	if err != nil {
		return 0, err
	}
	due, err := f.tokenCheckpointDue()
	if err != nil {
		return 0, err
	}
	if due {
		if err := f.checkpointToken(); err != nil {
			return 0, err
		}
		lastTokenTime = now
	}
	return epoch.FloorWeek(lastTokenTime), nil
}

func (f *FeeDistributor) claimAndPay(ctx context.Context, addr ids.ShortID, lastTokenTime uint64) (*uint256.Int, error) {
	amount, err := f.claim(addr, lastTokenTime)
	if err != nil || amount.IsZero() {
		return amount, err
	}
	if err := f.token.Transfer(ctx, f.cfg.Address, addr, amount); err != nil {
		return nil, err
	}
	if _, err := f.store.SubU256(keyTokenLastBalance, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

func (f *FeeDistributor) tokenCheckpointDue() (bool, error) {
	allowed, err := f.CanCheckpointToken()
	if err != nil || !allowed {
		return false, err
	}
	last, err := f.LastTokenTime()
	if err != nil {
		return false, err
	}
	return f.rt.Now() > last+TokenCheckpointDeadline, nil
}

func (f *FeeDistributor) requireAdmin(caller ids.ShortID) error {
	if caller != f.cfg.Admin {
		return fmt.Errorf("%w: %s", ErrNotAdmin, caller)
	}
	return nil
}

func (f *FeeDistributor) requireAlive() error {
	killed, err := f.IsKilled()
	if err != nil {
		return err
	}
	if killed {
		return ErrKilled
	}
	return nil
}
