// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gauge

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/vegauge/vms/gaugevm/epoch"

	safemath "github.com/luxfi/vegauge/utils/math"
)

// checkpoint integrates emissions per unit of working supply from the last
// period up to now and credits addr with its share since its own last
// checkpoint. It reports false, without writing anything, when the
// controller is behind, and stops short of now after MaxWeeks weeks.
func (g *Gauge) checkpoint(ctx context.Context, addr ids.ShortID) (bool, error) {
	period, err := g.Period()
	if err != nil {
		return false, err
	}
	periodTime, err := g.PeriodTimestamp(period)
	if err != nil {
		return false, err
	}
	integrateInvSupply, err := g.IntegrateInvSupply(period)
	if err != nil {
		return false, err
	}
	rate, err := g.InflationRate()
	if err != nil {
		return false, err
	}
	newRate := rate
	prevFutureEpoch, err := g.FutureEpochTime()
	if err != nil {
		return false, err
	}
	futureEpoch := prevFutureEpoch
	if prevFutureEpoch >= periodTime {
		if futureEpoch, err = g.deps.Emission.FutureEpochTimeWrite(ctx); err != nil {
			return false, err
		}
		if newRate, err = g.deps.Emission.Rate(); err != nil {
			return false, err
		}
	}
	refreshedRate := newRate
	killed, err := g.IsKilled()
	if err != nil {
		return false, err
	}
	if killed {
		rate = new(uint256.Int)
		newRate = new(uint256.Int)
	}

	now := g.rt.Now()
	reached := periodTime
	if now > periodTime {
		workingSupply, err := g.WorkingSupply()
		if err != nil {
			return false, err
		}
		caughtUp, err := g.deps.Controller.CheckpointGauge(ctx, g.cfg.Address)
		if err != nil {
			return false, err
		}
		if !caughtUp {
			return false, nil
		}

		var calc safemath.Calc
		for i := 0; i < g.cfg.MaxWeeks && reached < now; i++ {
			weekTime := min(epoch.NextWeek(reached), now)
			w, err := g.deps.Controller.GaugeRelativeWeight(g.cfg.Address, epoch.FloorWeek(reached))
			if err != nil {
				return false, err
			}
			if !workingSupply.IsZero() {
				share := func(r *uint256.Int, from, to uint64) *uint256.Int {
					return calc.MulDivU(calc.MulU(r, w), uint256.NewInt(to-from), workingSupply)
				}
				if prevFutureEpoch >= reached && prevFutureEpoch < weekTime {
					integrateInvSupply = calc.AddU(integrateInvSupply, share(rate, reached, prevFutureEpoch))
					rate = newRate
					integrateInvSupply = calc.AddU(integrateInvSupply, share(rate, prevFutureEpoch, weekTime))
				} else {
					integrateInvSupply = calc.AddU(integrateInvSupply, share(rate, reached, weekTime))
				}
			}
			reached = weekTime
		}
		if calc.Errored() {
			return false, calc.Err
		}
	}

	// The refreshed rate replaces the stored one only once the old epoch
	// boundary has been integrated. Until then the next installment still
	// needs the old rate up to the boundary.
	if futureEpoch == prevFutureEpoch || reached >= prevFutureEpoch {
		if err := g.store.SetUint64(keyFutureEpochTime, futureEpoch); err != nil {
			return false, err
		}
		if err := g.store.SetU256(keyInflationRate, refreshedRate); err != nil {
			return false, err
		}
	}

	period++
	if err := g.store.SetUint64(keyPeriod, period); err != nil {
		return false, err
	}
	if err := g.store.SetUint64(keyPeriodTimestamp.Uint(period), reached); err != nil {
		return false, err
	}
	if err := g.store.SetU256(keyIntegrateInvSupply.Uint(period), integrateInvSupply); err != nil {
		return false, err
	}

	workingBalance, err := g.WorkingBalance(addr)
	if err != nil {
		return false, err
	}
	invSupplyOf, err := g.IntegrateInvSupplyOf(addr)
	if err != nil {
		return false, err
	}
	var calc safemath.Calc
	accrued := calc.MulDivU(workingBalance, calc.SubU(integrateInvSupply, invSupplyOf), unit)
	if calc.Errored() {
		return false, calc.Err
	}
	if _, err := g.store.AddU256(keyIntegrateFraction.Addr(addr), accrued); err != nil {
		return false, err
	}
	if err := g.store.SetU256(keyIntegrateInvSupplyOf.Addr(addr), integrateInvSupply); err != nil {
		return false, err
	}
	if err := g.store.SetUint64(keyIntegrateCheckpointOf.Addr(addr), reached); err != nil {
		return false, err
	}
	return reached >= now, nil
}

// updateLiquidityLimit sets the working balance of addr to its boosted
// stake: TokenlessProduction percent of balance plus the rest weighted by
// its share of voting power, capped at balance.
func (g *Gauge) updateLiquidityLimit(addr ids.ShortID, balance, totalSupply *uint256.Int) error {
	votingBalance, err := g.deps.Escrow.BalanceOf(addr)
	if err != nil {
		return err
	}
	votingTotal, err := g.deps.Escrow.TotalSupply()
	if err != nil {
		return err
	}

	var calc safemath.Calc
	limit := calc.MulDivU(balance, uint256.NewInt(TokenlessProduction), uint256.NewInt(100))
	if !votingTotal.IsZero() {
		boost := calc.MulDivU(totalSupply, votingBalance, votingTotal)
		boost = calc.MulDivU(boost, uint256.NewInt(100-TokenlessProduction), uint256.NewInt(100))
		limit = calc.AddU(limit, boost)
	}
	limit = safemath.MinU256(balance, limit)

	oldBalance, err := g.WorkingBalance(addr)
	if err != nil {
		return err
	}
	workingSupply, err := g.WorkingSupply()
	if err != nil {
		return err
	}
	workingSupply = calc.SubU(calc.AddU(workingSupply, limit), oldBalance)
	if calc.Errored() {
		return calc.Err
	}

	if err := g.store.SetU256(keyWorkingBalances.Addr(addr), limit); err != nil {
		return err
	}
	if err := g.store.SetU256(keyWorkingSupply, workingSupply); err != nil {
		return err
	}
	g.rt.Emit(g.cfg.Address, "UpdateLiquidityLimit",
		"user", addr,
		"originalBalance", balance.Dec(),
		"originalSupply", totalSupply.Dec(),
		"workingBalance", limit.Dec(),
		"workingSupply", workingSupply.Dec(),
	)
	return nil
}
