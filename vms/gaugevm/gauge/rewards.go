// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gauge

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/vegauge/vms/gaugevm/epoch"

	safemath "github.com/luxfi/vegauge/utils/math"
)

var week = uint256.NewInt(epoch.Week)

// AddReward registers a reward token streamed by distributor.
func (g *Gauge) AddReward(ctx context.Context, caller, token, distributor ids.ShortID) error {
	return g.rt.Atomic(ctx, "gauge.addReward", func() error {
		if err := g.requireAdmin(caller); err != nil {
			return err
		}
		if distributor == ids.ShortEmpty {
			return fmt.Errorf("%w: distributor", ErrZeroAddress)
		}
		count, err := g.RewardCount()
		if err != nil {
			return err
		}
		if count >= MaxRewards {
			return ErrMaxRewards
		}
		data, err := g.RewardData(token)
		if err != nil {
			return err
		}
		if data.Distributor != ids.ShortEmpty {
			return fmt.Errorf("%w: %s", ErrRewardExists, token)
		}
		if _, err := g.deps.Tokens.Token(token); err != nil {
			return err
		}

		data.Distributor = distributor
		if err := g.store.SetRecord(keyRewardData.Addr(token), &data); err != nil {
			return err
		}
		if err := g.store.SetAddr(keyRewardTokens.Uint(count), token); err != nil {
			return err
		}
		return g.store.SetUint64(keyRewardCount, count+1)
	})
}

// SetRewardDistributor hands the stream of token to a new distributor.
// The current distributor or the admin may call it.
func (g *Gauge) SetRewardDistributor(ctx context.Context, caller, token, distributor ids.ShortID) error {
	return g.rt.Atomic(ctx, "gauge.setRewardDistributor", func() error {
		data, err := g.RewardData(token)
		if err != nil {
			return err
		}
		if data.Distributor == ids.ShortEmpty {
			return fmt.Errorf("%w: %s", ErrUnknownReward, token)
		}
		if caller != data.Distributor && caller != g.cfg.Admin {
			return fmt.Errorf("%w: %s", ErrUnauthorized, caller)
		}
		if distributor == ids.ShortEmpty {
			return fmt.Errorf("%w: distributor", ErrZeroAddress)
		}
		data.Distributor = distributor
		return g.store.SetRecord(keyRewardData.Addr(token), &data)
	})
}

// DepositRewardToken streams amount of token over the next week, together
// with whatever is left of the current period.
func (g *Gauge) DepositRewardToken(ctx context.Context, caller, token ids.ShortID, amount *uint256.Int) error {
	release, err := g.guard.acquire()
	if err != nil {
		return err
	}
	defer release()

	return g.rt.Atomic(ctx, "gauge.depositRewardToken", func() error {
		data, err := g.RewardData(token)
		if err != nil {
			return err
		}
		if data.Distributor == ids.ShortEmpty {
			return fmt.Errorf("%w: %s", ErrUnknownReward, token)
		}
		if caller != data.Distributor {
			return fmt.Errorf("%w: %s", ErrNotDistributor, caller)
		}
		totalSupply, err := g.TotalSupply()
		if err != nil {
			return err
		}
		if err := g.checkpointRewards(ctx, ids.ShortEmpty, totalSupply, false, ids.ShortEmpty); err != nil {
			return err
		}
		if data, err = g.RewardData(token); err != nil {
			return err
		}

		var calc safemath.Calc
		now := g.rt.Now()
		if now >= data.PeriodFinish {
			data.Rate = calc.DivU(amount, week)
		} else {
			leftover := calc.MulU(uint256.NewInt(data.PeriodFinish-now), data.Rate)
			data.Rate = calc.DivU(calc.AddU(amount, leftover), week)
		}
		if calc.Errored() {
			return calc.Err
		}
		data.LastUpdate = now
		data.PeriodFinish = now + epoch.Week
		if err := g.store.SetRecord(keyRewardData.Addr(token), &data); err != nil {
			return err
		}

		t, err := g.deps.Tokens.Token(token)
		if err != nil {
			return err
		}
		return t.TransferFrom(ctx, g.cfg.Address, caller, g.cfg.Address, amount)
	})
}

// SetRewardsReceiver sets where the caller's rewards go when claimed
// without an explicit receiver. Empty resets it to the caller.
func (g *Gauge) SetRewardsReceiver(ctx context.Context, caller, receiver ids.ShortID) error {
	return g.rt.Atomic(ctx, "gauge.setRewardsReceiver", func() error {
		return g.store.SetAddr(keyRewardsReceiver.Addr(caller), receiver)
	})
}

// ClaimRewards pays out every pending reward of addr. Only addr itself may
// name a receiver.
func (g *Gauge) ClaimRewards(ctx context.Context, caller, addr, receiver ids.ShortID) error {
	if receiver != ids.ShortEmpty && addr != caller {
		return ErrCannotRedirect
	}
	release, err := g.guard.acquire()
	if err != nil {
		return err
	}
	defer release()

	return g.rt.Atomic(ctx, "gauge.claimRewards", func() error {
		totalSupply, err := g.TotalSupply()
		if err != nil {
			return err
		}
		return g.checkpointRewards(ctx, addr, totalSupply, true, receiver)
	})
}

// ClaimableReward returns what addr would receive of token if it claimed
// now.
func (g *Gauge) ClaimableReward(addr, token ids.ShortID) (*uint256.Int, error) {
	data, err := g.RewardData(token)
	if err != nil {
		return nil, err
	}
	totalSupply, err := g.TotalSupply()
	if err != nil {
		return nil, err
	}
	var calc safemath.Calc
	integral := data.Integral
	if !totalSupply.IsZero() {
		lastUpdate := min(g.rt.Now(), data.PeriodFinish)
		if lastUpdate > data.LastUpdate {
			duration := uint256.NewInt(lastUpdate - data.LastUpdate)
			integral = calc.AddU(integral, calc.MulDivU(calc.MulU(duration, data.Rate), unit, totalSupply))
		}
	}
	integralFor, err := g.RewardIntegralFor(token, addr)
	if err != nil {
		return nil, err
	}
	balance, err := g.BalanceOf(addr)
	if err != nil {
		return nil, err
	}
	claim, err := g.ClaimData(addr, token)
	if err != nil {
		return nil, err
	}
	newClaimable := calc.MulDivU(balance, safemath.SatSubU256(integral, integralFor), unit)
	total := calc.AddU(claim.Claimable, newClaimable)
	return total, calc.Err
}

// ClaimedReward returns how much of token addr has received.
func (g *Gauge) ClaimedReward(addr, token ids.ShortID) (*uint256.Int, error) {
	claim, err := g.ClaimData(addr, token)
	return claim.Claimed, err
}

func (g *Gauge) checkpointRewardsIfAny(ctx context.Context, user ids.ShortID, totalSupply *uint256.Int, claim bool, receiver ids.ShortID) error {
	count, err := g.RewardCount()
	if err != nil || count == 0 {
		return err
	}
	return g.checkpointRewards(ctx, user, totalSupply, claim, receiver)
}

// checkpointRewards advances the integral of every reward token to now
// and, for a non-empty user, books what the user earned since its last
// checkpoint. With claim set, the whole pending amount is paid out.
func (g *Gauge) checkpointRewards(ctx context.Context, user ids.ShortID, totalSupply *uint256.Int, claim bool, receiver ids.ShortID) error {
	userBalance := new(uint256.Int)
	if user != ids.ShortEmpty {
		var err error
		if userBalance, err = g.BalanceOf(user); err != nil {
			return err
		}
		if claim && receiver == ids.ShortEmpty {
			if receiver, err = g.RewardsReceiver(user); err != nil {
				return err
			}
			if receiver == ids.ShortEmpty {
				receiver = user
			}
		}
	}

	count, err := g.RewardCount()
	if err != nil {
		return err
	}
	now := g.rt.Now()
	for i := uint64(0); i < count && i < MaxRewards; i++ {
		token, err := g.RewardTokens(i)
		if err != nil {
			return err
		}
		data, err := g.RewardData(token)
		if err != nil {
			return err
		}

		var calc safemath.Calc
		lastUpdate := min(now, data.PeriodFinish)
		if lastUpdate > data.LastUpdate {
			duration := uint256.NewInt(lastUpdate - data.LastUpdate)
			data.LastUpdate = lastUpdate
			if !totalSupply.IsZero() {
				data.Integral = calc.AddU(data.Integral, calc.MulDivU(calc.MulU(duration, data.Rate), unit, totalSupply))
			}
			if calc.Errored() {
				return calc.Err
			}
			if err := g.store.SetRecord(keyRewardData.Addr(token), &data); err != nil {
				return err
			}
		}
		if user == ids.ShortEmpty {
			continue
		}

		integralKey := keyRewardIntegralFor.Addr(token).Addr(user)
		integralFor, err := g.store.U256(integralKey)
		if err != nil {
			return err
		}
		newClaimable := new(uint256.Int)
		if integralFor.Lt(data.Integral) {
			if err := g.store.SetU256(integralKey, data.Integral); err != nil {
				return err
			}
			newClaimable = calc.MulDivU(userBalance, calc.SubU(data.Integral, integralFor), unit)
		}
		claimData, err := g.ClaimData(user, token)
		if err != nil {
			return err
		}
		total := calc.AddU(claimData.Claimable, newClaimable)
		if calc.Errored() {
			return calc.Err
		}
		if total.IsZero() {
			continue
		}

		claimKey := keyClaimData.Addr(user).Addr(token)
		switch {
		case claim:
			t, err := g.deps.Tokens.Token(token)
			if err != nil {
				return err
			}
			if err := t.Transfer(ctx, g.cfg.Address, receiver, total); err != nil {
				return err
			}
			claimData.Claimed = calc.AddU(claimData.Claimed, total)
			claimData.Claimable = new(uint256.Int)
			if calc.Errored() {
				return calc.Err
			}
			if err := g.store.SetRecord(claimKey, &claimData); err != nil {
				return err
			}
		case !newClaimable.IsZero():
			claimData.Claimable = total
			if err := g.store.SetRecord(claimKey, &claimData); err != nil {
				return err
			}
		}
	}
	return nil
}
