// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gauge implements the liquidity gauge: a staking ledger that
// accrues governance token emissions to boosted working balances and
// streams up to MaxRewards auxiliary reward tokens to stakers.
package gauge

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

const (
	// DefaultMaxWeeks bounds the weeks integrated per checkpoint.
	DefaultMaxWeeks = 500
	// MaxRewards bounds the number of reward tokens.
	MaxRewards = 8
	// TokenlessProduction is the percentage of a stake that counts without
	// any voting power.
	TokenlessProduction = 40
)

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotAdmin              = errors.New("caller is not the admin")
	ErrNotDistributor        = errors.New("caller is not the reward distributor")
	ErrReentrant             = errors.New("reentrant call")
	ErrMaxRewards            = errors.New("reward token slots exhausted")
	ErrRewardExists          = errors.New("reward token already added")
	ErrUnknownReward         = errors.New("unknown reward token")
	ErrZeroAddress           = errors.New("zero address")
	ErrCannotRedirect        = errors.New("cannot redirect when claiming for another user")
	ErrKickNotAllowed        = errors.New("kick not allowed")
	ErrKickNotNeeded         = errors.New("kick not needed")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrCheckpointIncomplete  = errors.New("checkpoint incomplete, call user checkpoint again")

	unit = uint256.NewInt(1_000_000_000_000_000_000)

	keyPeriod                = state.NewKey("period")
	keyPeriodTimestamp       = state.NewKey("periodTimestamp")
	keyIntegrateInvSupply    = state.NewKey("integrateInvSupply")
	keyIntegrateInvSupplyOf  = state.NewKey("integrateInvSupplyOf")
	keyIntegrateCheckpointOf = state.NewKey("integrateCheckpointOf")
	keyIntegrateFraction     = state.NewKey("integrateFraction")
	keyInflationRate         = state.NewKey("inflationRate")
	keyFutureEpochTime       = state.NewKey("futureEpochTime")
	keyWorkingBalances       = state.NewKey("workingBalances")
	keyWorkingSupply         = state.NewKey("workingSupply")
	keyBalanceOf             = state.NewKey("balanceOf")
	keyTotalSupply           = state.NewKey("totalSupply")
	keyAllowance             = state.NewKey("allowance")
	keyIsKilled              = state.NewKey("isKilled")
	keyRewardCount           = state.NewKey("rewardCount")
	keyRewardTokens          = state.NewKey("rewardTokens")
	keyRewardData            = state.NewKey("rewardData")
	keyRewardIntegralFor     = state.NewKey("rewardIntegralFor")
	keyClaimData             = state.NewKey("claimData")
	keyRewardsReceiver       = state.NewKey("rewardsReceiver")
)

// Token moves balances of a fungible token. caller is the account
// authorizing the move.
type Token interface {
	Transfer(ctx context.Context, caller, to ids.ShortID, amount *uint256.Int) error
	TransferFrom(ctx context.Context, caller, owner, to ids.ShortID, amount *uint256.Int) error
}

// Tokens resolves reward token addresses.
type Tokens interface {
	Token(addr ids.ShortID) (Token, error)
}

// Controller supplies the share of emissions allocated to a gauge.
type Controller interface {
	CheckpointGauge(ctx context.Context, addr ids.ShortID) (bool, error)
	GaugeRelativeWeight(addr ids.ShortID, t uint64) (*uint256.Int, error)
}

// VotingEscrow supplies the voting power used for boosts.
type VotingEscrow interface {
	BalanceOf(addr ids.ShortID) (*uint256.Int, error)
	TotalSupply() (*uint256.Int, error)
	UserPointEpoch(addr ids.ShortID) (uint64, error)
	UserPointHistoryTs(addr ids.ShortID, i uint64) (uint64, error)
}

// Emission is the inflation schedule of the governance token.
type Emission interface {
	Rate() (*uint256.Int, error)
	FutureEpochTimeWrite(ctx context.Context) (uint64, error)
}

// Minter reports how much of a gauge's accrual was already issued.
type Minter interface {
	Address() ids.ShortID
	Minted(user, gauge ids.ShortID) (*uint256.Int, error)
}

// Config describes a gauge.
type Config struct {
	Address ids.ShortID `json:"address"`
	Admin   ids.ShortID `json:"admin"`
	LPToken ids.ShortID `json:"lpToken"`
	// MaxWeeks bounds the weeks integrated per checkpoint.
	MaxWeeks int `json:"maxWeeks"`
}

// Deps are the components a gauge calls into.
type Deps struct {
	LPToken    Token
	Tokens     Tokens
	Controller Controller
	Escrow     VotingEscrow
	Emission   Emission
	Minter     Minter
}

type Gauge struct {
	rt    *runtime.Runtime
	store *state.Store
	cfg   Config
	deps  Deps
	guard guard
}

// New opens the gauge at cfg.Address. The first time, the integration
// period starts now at the current inflation rate.
func New(ctx context.Context, rt *runtime.Runtime, cfg Config, deps Deps) (*Gauge, error) {
	if cfg.MaxWeeks <= 0 {
		cfg.MaxWeeks = DefaultMaxWeeks
	}
	g := &Gauge{
		rt:    rt,
		store: state.New(rt.DB("gauge/" + cfg.Address.String())),
		cfg:   cfg,
		deps:  deps,
	}
	has, err := g.store.Has(keyPeriodTimestamp.Uint(0))
	if err != nil || has {
		return g, err
	}
	return g, rt.Atomic(ctx, "gauge.init", func() error {
		if err := g.store.SetUint64(keyPeriodTimestamp.Uint(0), rt.Now()); err != nil {
			return err
		}
		rate, err := deps.Emission.Rate()
		if err != nil {
			return err
		}
		if err := g.store.SetU256(keyInflationRate, rate); err != nil {
			return err
		}
		future, err := deps.Emission.FutureEpochTimeWrite(ctx)
		if err != nil {
			return err
		}
		return g.store.SetUint64(keyFutureEpochTime, future)
	})
}

func (g *Gauge) Address() ids.ShortID {
	return g.cfg.Address
}

func (g *Gauge) Admin() ids.ShortID {
	return g.cfg.Admin
}

func (g *Gauge) LPToken() ids.ShortID {
	return g.cfg.LPToken
}

// Deposit stakes value LP tokens of the caller for addr.
func (g *Gauge) Deposit(ctx context.Context, caller, addr ids.ShortID, value *uint256.Int, claimRewards bool) error {
	release, err := g.guard.acquire()
	if err != nil {
		return err
	}
	defer release()

	return g.rt.Atomic(ctx, "gauge.deposit", func() error {
		if err := g.requireCheckpoint(ctx, addr); err != nil {
			return err
		}
		if !value.IsZero() {
			totalSupply, err := g.TotalSupply()
			if err != nil {
				return err
			}
			if err := g.checkpointRewardsIfAny(ctx, addr, totalSupply, claimRewards, ids.ShortEmpty); err != nil {
				return err
			}
			if totalSupply, err = safemath.AddU256(totalSupply, value); err != nil {
				return err
			}
			balance, err := g.store.AddU256(keyBalanceOf.Addr(addr), value)
			if err != nil {
				return err
			}
			if err := g.store.SetU256(keyTotalSupply, totalSupply); err != nil {
				return err
			}
			if err := g.updateLiquidityLimit(addr, balance, totalSupply); err != nil {
				return err
			}
			if err := g.deps.LPToken.TransferFrom(ctx, g.cfg.Address, caller, g.cfg.Address, value); err != nil {
				return err
			}
		}
		g.rt.Emit(g.cfg.Address, "Deposit", "provider", addr, "value", value.Dec())
		g.rt.Emit(g.cfg.Address, "Transfer", "from", ids.ShortEmpty, "to", addr, "value", value.Dec())
		return nil
	})
}

// Withdraw unstakes value LP tokens of the caller.
func (g *Gauge) Withdraw(ctx context.Context, caller ids.ShortID, value *uint256.Int, claimRewards bool) error {
	release, err := g.guard.acquire()
	if err != nil {
		return err
	}
	defer release()

	return g.rt.Atomic(ctx, "gauge.withdraw", func() error {
		if err := g.requireCheckpoint(ctx, caller); err != nil {
			return err
		}
		if !value.IsZero() {
			totalSupply, err := g.TotalSupply()
			if err != nil {
				return err
			}
			if err := g.checkpointRewardsIfAny(ctx, caller, totalSupply, claimRewards, ids.ShortEmpty); err != nil {
				return err
			}
			balance, err := g.store.SubU256(keyBalanceOf.Addr(caller), value)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrInsufficientBalance, err)
			}
			if totalSupply, err = safemath.SubU256(totalSupply, value); err != nil {
				return err
			}
			if err := g.store.SetU256(keyTotalSupply, totalSupply); err != nil {
				return err
			}
			if err := g.updateLiquidityLimit(caller, balance, totalSupply); err != nil {
				return err
			}
			if err := g.deps.LPToken.Transfer(ctx, g.cfg.Address, caller, value); err != nil {
				return err
			}
		}
		g.rt.Emit(g.cfg.Address, "Withdraw", "provider", caller, "value", value.Dec())
		g.rt.Emit(g.cfg.Address, "Transfer", "from", caller, "to", ids.ShortEmpty, "value", value.Dec())
		return nil
	})
}

// Transfer moves value gauge shares from the caller to to.
func (g *Gauge) Transfer(ctx context.Context, caller, to ids.ShortID, value *uint256.Int) error {
	release, err := g.guard.acquire()
	if err != nil {
		return err
	}
	defer release()

	return g.rt.Atomic(ctx, "gauge.transfer", func() error {
		return g.transfer(ctx, caller, to, value)
	})
}

// TransferFrom moves value gauge shares from owner to to using the
// caller's allowance.
func (g *Gauge) TransferFrom(ctx context.Context, caller, owner, to ids.ShortID, value *uint256.Int) error {
	release, err := g.guard.acquire()
	if err != nil {
		return err
	}
	defer release()

	return g.rt.Atomic(ctx, "gauge.transferFrom", func() error {
		key := keyAllowance.Addr(owner).Addr(caller)
		allowance, err := g.store.U256(key)
		if err != nil {
			return err
		}
		if !isUnlimited(allowance) {
			if allowance.Lt(value) {
				return fmt.Errorf("%w: %s < %s", ErrInsufficientAllowance, allowance.Dec(), value.Dec())
			}
			if err := g.store.SetU256(key, new(uint256.Int).Sub(allowance, value)); err != nil {
				return err
			}
		}
		return g.transfer(ctx, owner, to, value)
	})
}

func (g *Gauge) Approve(ctx context.Context, caller, spender ids.ShortID, value *uint256.Int) error {
	return g.rt.Atomic(ctx, "gauge.approve", func() error {
		return g.approve(caller, spender, value)
	})
}

func (g *Gauge) IncreaseAllowance(ctx context.Context, caller, spender ids.ShortID, value *uint256.Int) error {
	return g.rt.Atomic(ctx, "gauge.increaseAllowance", func() error {
		allowance, err := g.Allowance(caller, spender)
		if err != nil {
			return err
		}
		if allowance, err = safemath.AddU256(allowance, value); err != nil {
			return err
		}
		return g.approve(caller, spender, allowance)
	})
}

func (g *Gauge) DecreaseAllowance(ctx context.Context, caller, spender ids.ShortID, value *uint256.Int) error {
	return g.rt.Atomic(ctx, "gauge.decreaseAllowance", func() error {
		allowance, err := g.Allowance(caller, spender)
		if err != nil {
			return err
		}
		if allowance, err = safemath.SubU256(allowance, value); err != nil {
			return fmt.Errorf("%w: %w", ErrInsufficientAllowance, err)
		}
		return g.approve(caller, spender, allowance)
	})
}

// UserCheckpoint records addr's accrual and recomputes its working
// balance. Only addr itself or the minter may call it. It reports false
// when the integration did not reach now, in which case the progress is
// kept and the working balance is left unchanged.
func (g *Gauge) UserCheckpoint(ctx context.Context, caller, addr ids.ShortID) (bool, error) {
	if caller != addr && caller != g.deps.Minter.Address() {
		return false, fmt.Errorf("%w: %s cannot checkpoint %s", ErrUnauthorized, caller, addr)
	}
	var caughtUp bool
	err := g.rt.Atomic(ctx, "gauge.userCheckpoint", func() error {
		var err error
		if caughtUp, err = g.checkpoint(ctx, addr); err != nil {
			return err
		}
		// The working balance must stay fixed over weeks not integrated yet.
		if !caughtUp {
			return nil
		}
		balance, err := g.BalanceOf(addr)
		if err != nil {
			return err
		}
		totalSupply, err := g.TotalSupply()
		if err != nil {
			return err
		}
		return g.updateLiquidityLimit(addr, balance, totalSupply)
	})
	return caughtUp, err
}

// ClaimableTokens returns the governance tokens addr could mint now. The
// checkpoint it needs is discarded.
func (g *Gauge) ClaimableTokens(ctx context.Context, addr ids.ShortID) (*uint256.Int, error) {
	var claimable *uint256.Int
	err := g.rt.Simulate(ctx, func() error {
		if _, err := g.checkpoint(ctx, addr); err != nil {
			return err
		}
		fraction, err := g.IntegrateFraction(addr)
		if err != nil {
			return err
		}
		minted, err := g.deps.Minter.Minted(addr, g.cfg.Address)
		if err != nil {
			return err
		}
		claimable, err = safemath.SubU256(fraction, minted)
		return err
	})
	return claimable, err
}

// Kick drops the boost of addr once its voting power has lapsed or
// changed since its last checkpoint.
func (g *Gauge) Kick(ctx context.Context, addr ids.ShortID) error {
	return g.rt.Atomic(ctx, "gauge.kick", func() error {
		tLast, err := g.IntegrateCheckpointOf(addr)
		if err != nil {
			return err
		}
		userEpoch, err := g.deps.Escrow.UserPointEpoch(addr)
		if err != nil {
			return err
		}
		tVE, err := g.deps.Escrow.UserPointHistoryTs(addr, userEpoch)
		if err != nil {
			return err
		}
		veBalance, err := g.deps.Escrow.BalanceOf(addr)
		if err != nil {
			return err
		}
		if !veBalance.IsZero() && tVE <= tLast {
			return fmt.Errorf("%w: %s", ErrKickNotAllowed, addr)
		}

		balance, err := g.BalanceOf(addr)
		if err != nil {
			return err
		}
		working, err := g.WorkingBalance(addr)
		if err != nil {
			return err
		}
		floor, err := tokenless(balance)
		if err != nil {
			return err
		}
		if !working.Gt(floor) {
			return fmt.Errorf("%w: %s", ErrKickNotNeeded, addr)
		}

		if err := g.requireCheckpoint(ctx, addr); err != nil {
			return err
		}
		totalSupply, err := g.TotalSupply()
		if err != nil {
			return err
		}
		return g.updateLiquidityLimit(addr, balance, totalSupply)
	})
}

// SetKilled stops or resumes emissions to the gauge.
func (g *Gauge) SetKilled(ctx context.Context, caller ids.ShortID, killed bool) error {
	return g.rt.Atomic(ctx, "gauge.setKilled", func() error {
		if err := g.requireAdmin(caller); err != nil {
			return err
		}
		return g.store.SetBool(keyIsKilled, killed)
	})
}

func (g *Gauge) transfer(ctx context.Context, from, to ids.ShortID, value *uint256.Int) error {
	if err := g.requireCheckpoint(ctx, from); err != nil {
		return err
	}
	if err := g.requireCheckpoint(ctx, to); err != nil {
		return err
	}
	if !value.IsZero() {
		totalSupply, err := g.TotalSupply()
		if err != nil {
			return err
		}
		if err := g.checkpointRewardsIfAny(ctx, from, totalSupply, false, ids.ShortEmpty); err != nil {
			return err
		}
		if err := g.checkpointRewardsIfAny(ctx, to, totalSupply, false, ids.ShortEmpty); err != nil {
			return err
		}

		balance, err := g.store.SubU256(keyBalanceOf.Addr(from), value)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInsufficientBalance, err)
		}
		if err := g.updateLiquidityLimit(from, balance, totalSupply); err != nil {
			return err
		}
		if balance, err = g.store.AddU256(keyBalanceOf.Addr(to), value); err != nil {
			return err
		}
		if err := g.updateLiquidityLimit(to, balance, totalSupply); err != nil {
			return err
		}
	}
	g.rt.Emit(g.cfg.Address, "Transfer", "from", from, "to", to, "value", value.Dec())
	return nil
}

func (g *Gauge) approve(owner, spender ids.ShortID, value *uint256.Int) error {
	if err := g.store.SetU256(keyAllowance.Addr(owner).Addr(spender), value); err != nil {
		return err
	}
	g.rt.Emit(g.cfg.Address, "Approval", "owner", owner, "spender", spender, "value", value.Dec())
	return nil
}

func (g *Gauge) requireAdmin(caller ids.ShortID) error {
	if caller != g.cfg.Admin {
		return fmt.Errorf("%w: %s", ErrNotAdmin, caller)
	}
	return nil
}

// requireCheckpoint runs the checkpoint of addr and fails unless it
// reached now.
func (g *Gauge) requireCheckpoint(ctx context.Context, addr ids.ShortID) error {
	caughtUp, err := g.checkpoint(ctx, addr)
	if err != nil {
		return err
	}
	if !caughtUp {
		return ErrCheckpointIncomplete
	}
	return nil
}

func isUnlimited(v *uint256.Int) bool {
	return v.Eq(new(uint256.Int).SetAllOne())
}

// tokenless returns the part of balance that counts without boost.
func tokenless(balance *uint256.Int) (*uint256.Int, error) {
	return safemath.MulDivU256(balance, uint256.NewInt(TokenlessProduction), uint256.NewInt(100))
}
