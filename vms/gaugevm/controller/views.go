// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package controller

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/vegauge/vms/gaugevm/epoch"
	"github.com/luxfi/vegauge/vms/gaugevm/state"

	safemath "github.com/luxfi/vegauge/utils/math"
)

var week = uint256.NewInt(epoch.Week)

func (c *Controller) NGaugeTypes() (uint64, error) {
	return c.store.Uint64(keyNGaugeTypes)
}

func (c *Controller) NGauges() (uint64, error) {
	return c.store.Uint64(keyNGauges)
}

func (c *Controller) GaugeTypeName(typeID uint64) (string, error) {
	return c.store.String(keyGaugeTypeNames.Uint(typeID))
}

// Gauge returns the i-th registered gauge.
func (c *Controller) Gauge(i uint64) (ids.ShortID, error) {
	return c.store.Addr(keyGauges.Uint(i))
}

// GaugeType returns the type of addr or ErrGaugeNotAdded.
func (c *Controller) GaugeType(addr ids.ShortID) (uint64, error) {
	stored, err := c.store.Uint64(keyGaugeTypes.Addr(addr))
	if err != nil {
		return 0, err
	}
	if stored == 0 {
		return 0, fmt.Errorf("%w: %s", ErrGaugeNotAdded, addr)
	}
	return stored - 1, nil
}

func (c *Controller) IsGauge(addr ids.ShortID) (bool, error) {
	stored, err := c.store.Uint64(keyGaugeTypes.Addr(addr))
	return stored != 0, err
}

func (c *Controller) VoteUserSlopes(user, addr ids.ShortID) (VotedSlope, error) {
	v := VotedSlope{Slope: new(uint256.Int)}
	_, err := c.store.Record(keyVoteUserSlopes.Addr(user).Addr(addr), &v)
	return v, err
}

// VoteUserPower returns the basis points of voting power user has
// allocated.
func (c *Controller) VoteUserPower(user ids.ShortID) (uint64, error) {
	return c.store.Uint64(keyVoteUserPower.Addr(user))
}

func (c *Controller) LastUserVote(user, addr ids.ShortID) (uint64, error) {
	return c.store.Uint64(keyLastUserVote.Addr(user).Addr(addr))
}

func (c *Controller) PointsWeight(addr ids.ShortID, t uint64) (Point, error) {
	return c.point(keyPointsWeight.Addr(addr).Uint(t))
}

func (c *Controller) PointsSum(typeID, t uint64) (Point, error) {
	return c.point(keyPointsSum.Uint(typeID).Uint(t))
}

func (c *Controller) PointsTotal(t uint64) (*uint256.Int, error) {
	return c.store.U256(keyPointsTotal.Uint(t))
}

func (c *Controller) PointsTypeWeight(typeID, t uint64) (*uint256.Int, error) {
	return c.store.U256(keyPointsTypeWeight.Uint(typeID).Uint(t))
}

func (c *Controller) ChangesWeight(addr ids.ShortID, t uint64) (*uint256.Int, error) {
	return c.store.U256(keyChangesWeight.Addr(addr).Uint(t))
}

func (c *Controller) TimeTotal() (uint64, error) {
	return c.store.Uint64(keyTimeTotal)
}

// GetGaugeWeight returns the weight of addr at its last checkpoint.
func (c *Controller) GetGaugeWeight(addr ids.ShortID) (*uint256.Int, error) {
	t, err := c.store.Uint64(keyTimeWeight.Addr(addr))
	if err != nil {
		return nil, err
	}
	p, err := c.PointsWeight(addr, t)
	return p.Bias, err
}

func (c *Controller) GetTypeWeight(typeID uint64) (*uint256.Int, error) {
	t, err := c.store.Uint64(keyTimeTypeWeight.Uint(typeID))
	if err != nil {
		return nil, err
	}
	return c.PointsTypeWeight(typeID, t)
}

func (c *Controller) GetTotalWeight() (*uint256.Int, error) {
	t, err := c.TimeTotal()
	if err != nil {
		return nil, err
	}
	return c.PointsTotal(t)
}

func (c *Controller) GetWeightsSumPerType(typeID uint64) (*uint256.Int, error) {
	t, err := c.store.Uint64(keyTimeSum.Uint(typeID))
	if err != nil {
		return nil, err
	}
	p, err := c.PointsSum(typeID, t)
	return p.Bias, err
}

// GaugeRelativeWeight returns the share of emissions addr receives in the
// week containing t, scaled by Multiplier. It reads recorded points only.
func (c *Controller) GaugeRelativeWeight(addr ids.ShortID, t uint64) (*uint256.Int, error) {
	t = epoch.FloorWeek(t)
	total, err := c.PointsTotal(t)
	if err != nil || total.IsZero() {
		return new(uint256.Int), err
	}
	stored, err := c.store.Uint64(keyGaugeTypes.Addr(addr))
	if err != nil || stored == 0 {
		return new(uint256.Int), err
	}
	typeWeight, err := c.PointsTypeWeight(stored-1, t)
	if err != nil {
		return nil, err
	}
	gaugeWeight, err := c.PointsWeight(addr, t)
	if err != nil {
		return nil, err
	}

	var calc safemath.Calc
	weight := calc.MulDivU(calc.MulU(Multiplier, typeWeight), gaugeWeight.Bias, total)
	return weight, calc.Err
}

// getTypeWeight carries the type weight forward week by week.
func (c *Controller) getTypeWeight(typeID uint64) (*uint256.Int, bool, error) {
	timeKey := keyTimeTypeWeight.Uint(typeID)
	t, err := c.store.Uint64(timeKey)
	if err != nil || t == 0 {
		return new(uint256.Int), true, err
	}
	w, err := c.PointsTypeWeight(typeID, t)
	if err != nil {
		return nil, false, err
	}
	now := c.rt.Now()
	for i := 0; i < c.cfg.MaxWeeks && t <= now; i++ {
		t += epoch.Week
		if err := c.store.SetU256(keyPointsTypeWeight.Uint(typeID).Uint(t), w); err != nil {
			return nil, false, err
		}
		if err := c.store.SetUint64(timeKey, t); err != nil {
			return nil, false, err
		}
	}
	return w, t > now, nil
}

// getSum folds the decaying sum of a type's gauge weights forward.
func (c *Controller) getSum(typeID uint64) (*uint256.Int, bool, error) {
	return c.fold(
		keyTimeSum.Uint(typeID),
		keyPointsSum.Uint(typeID),
		keyChangesSum.Uint(typeID),
	)
}

// getWeight folds the decaying weight of one gauge forward.
func (c *Controller) getWeight(addr ids.ShortID) (*uint256.Int, bool, error) {
	return c.fold(
		keyTimeWeight.Addr(addr),
		keyPointsWeight.Addr(addr),
		keyChangesWeight.Addr(addr),
	)
}

// fold advances a weekly decaying series stored under points, applying
// scheduled slope changes, and returns the bias at the last week written.
// The cursor under timeKey is persisted on every step so that bounded
// calls make progress.
func (c *Controller) fold(timeKey, points, changes state.Key) (*uint256.Int, bool, error) {
	t, err := c.store.Uint64(timeKey)
	if err != nil || t == 0 {
		return new(uint256.Int), true, err
	}
	pt, err := c.point(points.Uint(t))
	if err != nil {
		return nil, false, err
	}
	now := c.rt.Now()
	for i := 0; i < c.cfg.MaxWeeks && t <= now; i++ {
		t += epoch.Week
		dBias, err := safemath.MulU256(pt.Slope, week)
		if err != nil {
			return nil, false, err
		}
		if pt.Bias.Gt(dBias) {
			dSlope, err := c.store.U256(changes.Uint(t))
			if err != nil {
				return nil, false, err
			}
			pt.Bias = new(uint256.Int).Sub(pt.Bias, dBias)
			pt.Slope = safemath.SatSubU256(pt.Slope, dSlope)
		} else {
			pt = newPoint()
		}
		if err := c.store.SetRecord(points.Uint(t), &pt); err != nil {
			return nil, false, err
		}
		if err := c.store.SetUint64(timeKey, t); err != nil {
			return nil, false, err
		}
	}
	return pt.Bias, t > now, nil
}

// getTotal brings every type up to date and folds the grand total
// forward.
func (c *Controller) getTotal() (*uint256.Int, bool, error) {
	t, err := c.TimeTotal()
	if err != nil {
		return nil, false, err
	}
	nTypes, err := c.NGaugeTypes()
	if err != nil {
		return nil, false, err
	}
	now := c.rt.Now()
	if t > now {
		t -= epoch.Week
	}
	total, err := c.PointsTotal(t)
	if err != nil {
		return nil, false, err
	}

	caughtUp := true
	for typeID := uint64(0); typeID < nTypes; typeID++ {
		_, sumCaughtUp, err := c.getSum(typeID)
		if err != nil {
			return nil, false, err
		}
		_, weightCaughtUp, err := c.getTypeWeight(typeID)
		if err != nil {
			return nil, false, err
		}
		caughtUp = caughtUp && sumCaughtUp && weightCaughtUp
	}

	for i := 0; i < c.cfg.MaxWeeks && t <= now; i++ {
		t += epoch.Week
		var calc safemath.Calc
		total = new(uint256.Int)
		for typeID := uint64(0); typeID < nTypes; typeID++ {
			sum, err := c.PointsSum(typeID, t)
			if err != nil {
				return nil, false, err
			}
			typeWeight, err := c.PointsTypeWeight(typeID, t)
			if err != nil {
				return nil, false, err
			}
			total = calc.AddU(total, calc.MulU(sum.Bias, typeWeight))
		}
		if calc.Errored() {
			return nil, false, calc.Err
		}
		if err := c.store.SetU256(keyPointsTotal.Uint(t), total); err != nil {
			return nil, false, err
		}
		if err := c.store.SetUint64(keyTimeTotal, t); err != nil {
			return nil, false, err
		}
	}
	return total, caughtUp && t > now, nil
}
