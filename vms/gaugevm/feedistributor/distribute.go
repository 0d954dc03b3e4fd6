// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package feedistributor

import (
	"context"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/vegauge/vms/gaugevm/epoch"
	"github.com/luxfi/vegauge/vms/gaugevm/escrow"

	safemath "github.com/luxfi/vegauge/utils/math"
)

// checkpointToken attributes the fee tokens received since the last
// token checkpoint to the weeks between then and now, pro rata to time.
func (f *FeeDistributor) checkpointToken() error {
	balance, err := f.token.BalanceOf(f.cfg.Address)
	if err != nil {
		return err
	}
	lastBalance, err := f.TokenLastBalance()
	if err != nil {
		return err
	}
	toDistribute, err := safemath.SubU256(balance, lastBalance)
	if err != nil {
		return err
	}
	if err := f.store.SetU256(keyTokenLastBalance, balance); err != nil {
		return err
	}

	t, err := f.LastTokenTime()
	if err != nil {
		return err
	}
	now := f.rt.Now()
	sinceLast := now - t
	if err := f.store.SetUint64(keyLastTokenTime, now); err != nil {
		return err
	}

	var calc safemath.Calc
	share := func(until uint64) *uint256.Int {
		if sinceLast == 0 && until == t {
			return toDistribute
		}
		return calc.MulDivU(toDistribute, uint256.NewInt(until-t), uint256.NewInt(sinceLast))
	}
	thisWeek := epoch.FloorWeek(t)
	for i := 0; i < f.cfg.MaxWeeks; i++ {
		nextWeek := thisWeek + epoch.Week
		key := keyTokensPerWeek.Uint(thisWeek)
		if now < nextWeek {
			if _, err := f.store.AddU256(key, share(now)); err != nil {
				return err
			}
			break
		}
		if _, err := f.store.AddU256(key, share(nextWeek)); err != nil {
			return err
		}
		t = nextWeek
		thisWeek = nextWeek
	}
	if calc.Errored() {
		return calc.Err
	}
	f.rt.Emit(f.cfg.Address, "CheckpointToken", "time", now, "tokens", toDistribute.Dec())
	return nil
}

// checkpointTotalSupply records the total voting power at each week start
// from the cursor up to the current week.
func (f *FeeDistributor) checkpointTotalSupply(ctx context.Context) error {
	caughtUp, err := f.escrow.Checkpoint(ctx)
	if err != nil {
		return err
	}
	if !caughtUp {
		return ErrCheckpointIncomplete
	}
	t, err := f.TimeCursor()
	if err != nil {
		return err
	}
	maxEpoch, err := f.escrow.Epoch()
	if err != nil {
		return err
	}
	roundedNow := epoch.FloorWeek(f.rt.Now())
	for i := 0; i < f.cfg.MaxWeeks && t <= roundedNow; i++ {
		ep, err := f.findTimestampEpoch(maxEpoch, t)
		if err != nil {
			return err
		}
		pt, err := f.escrow.PointHistory(ep)
		if err != nil {
			return err
		}
		supply, err := biasAt(pt, t)
		if err != nil {
			return err
		}
		if err := f.store.SetU256(keyVESupply.Uint(t), supply); err != nil {
			return err
		}
		t += epoch.Week
	}
	return f.store.SetUint64(keyTimeCursor, t)
}

// claim walks addr's weeks from its cursor up to lastTokenTime, adding its
// share of each week's fees. It advances the cursors and returns the sum.
func (f *FeeDistributor) claim(addr ids.ShortID, lastTokenTime uint64) (*uint256.Int, error) {
	toDistribute := new(uint256.Int)
	maxUserEpoch, err := f.escrow.UserPointEpoch(addr)
	if err != nil || maxUserEpoch == 0 {
		return toDistribute, err
	}
	startTime, err := f.StartTime()
	if err != nil {
		return nil, err
	}
	// Weeks without a recorded supply are left for a later claim.
	timeCursor, err := f.TimeCursor()
	if err != nil {
		return nil, err
	}
	limit := min(lastTokenTime, timeCursor)

	weekCursor, err := f.TimeCursorOf(addr)
	if err != nil {
		return nil, err
	}
	var userEpoch uint64
	if weekCursor == 0 {
		userEpoch, err = f.findTimestampUserEpoch(addr, startTime, maxUserEpoch)
	} else {
		userEpoch, err = f.UserEpochOf(addr)
	}
	if err != nil {
		return nil, err
	}
	if userEpoch == 0 {
		userEpoch = 1
	}
	userPoint, err := f.escrow.UserPointHistory(addr, userEpoch)
	if err != nil {
		return nil, err
	}
	if weekCursor == 0 {
		weekCursor = epoch.FloorWeek(userPoint.Ts + epoch.Week - 1)
	}
	if weekCursor >= limit {
		return toDistribute, nil
	}
	weekCursor = max(weekCursor, startTime)

	var calc safemath.Calc
	oldUserPoint := escrow.Point{Bias: new(big.Int), Slope: new(big.Int)}
	for i := 0; i < f.cfg.MaxClaimWeeks && weekCursor < limit; i++ {
		if weekCursor >= userPoint.Ts && userEpoch <= maxUserEpoch {
			userEpoch++
			oldUserPoint = userPoint
			if userEpoch > maxUserEpoch {
				userPoint = escrow.Point{Bias: new(big.Int), Slope: new(big.Int)}
			} else if userPoint, err = f.escrow.UserPointHistory(addr, userEpoch); err != nil {
				return nil, err
			}
			continue
		}

		balance, err := biasAt(oldUserPoint, weekCursor)
		if err != nil {
			return nil, err
		}
		if balance.IsZero() && userEpoch > maxUserEpoch {
			break
		}
		if !balance.IsZero() {
			tokens, err := f.TokensPerWeek(weekCursor)
			if err != nil {
				return nil, err
			}
			supply, err := f.VESupply(weekCursor)
			if err != nil {
				return nil, err
			}
			if !supply.IsZero() {
				toDistribute = calc.AddU(toDistribute, calc.MulDivU(balance, tokens, supply))
			}
		}
		weekCursor += epoch.Week
	}
	if calc.Errored() {
		return nil, calc.Err
	}

	userEpoch = min(maxUserEpoch, userEpoch-1)
	if err := f.store.SetUint64(keyUserEpochOf.Addr(addr), userEpoch); err != nil {
		return nil, err
	}
	if err := f.store.SetUint64(keyTimeCursorOf.Addr(addr), weekCursor); err != nil {
		return nil, err
	}
	f.rt.Emit(f.cfg.Address, "Claimed",
		"recipient", addr,
		"amount", toDistribute.Dec(),
		"claimEpoch", userEpoch,
		"maxEpoch", maxUserEpoch,
	)
	return toDistribute, nil
}

// VEForAt returns the voting power of user at ts.
func (f *FeeDistributor) VEForAt(user ids.ShortID, ts uint64) (*uint256.Int, error) {
	maxUserEpoch, err := f.escrow.UserPointEpoch(user)
	if err != nil {
		return nil, err
	}
	userEpoch, err := f.findTimestampUserEpoch(user, ts, maxUserEpoch)
	if err != nil {
		return nil, err
	}
	pt, err := f.escrow.UserPointHistory(user, userEpoch)
	if err != nil {
		return nil, err
	}
	return biasAt(pt, ts)
}

func (f *FeeDistributor) findTimestampEpoch(maxEpoch, ts uint64) (uint64, error) {
	return search(maxEpoch, func(i uint64) (bool, error) {
		pt, err := f.escrow.PointHistory(i)
		return pt.Ts <= ts, err
	})
}

func (f *FeeDistributor) findTimestampUserEpoch(user ids.ShortID, ts, maxUserEpoch uint64) (uint64, error) {
	return search(maxUserEpoch, func(i uint64) (bool, error) {
		pt, err := f.escrow.UserPointHistory(user, i)
		return pt.Ts <= ts, err
	})
}

// search returns the largest index in [0, maxIndex] for which ok holds,
// assuming ok is monotone.
func search(maxIndex uint64, ok func(uint64) (bool, error)) (uint64, error) {
	var low, high uint64 = 0, maxIndex
	for i := 0; i < searchIterations && low < high; i++ {
		mid := (low + high + 2) / 2
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

// biasAt evaluates pt at t, never before the point itself.
func biasAt(pt escrow.Point, t uint64) (*uint256.Int, error) {
	if pt.Bias == nil || pt.Slope == nil {
		return new(uint256.Int), nil
	}
	return safemath.FromI128(pt.BiasAt(max(t, pt.Ts)))
}
