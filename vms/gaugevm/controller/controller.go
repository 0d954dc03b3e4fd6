// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package controller implements the gauge controller: a registry of gauges
// grouped in weighted types whose weekly weights are set by vote-escrow
// holders.
package controller

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/vegauge/vms/gaugevm/epoch"
	"github.com/luxfi/vegauge/vms/gaugevm/runtime"
	"github.com/luxfi/vegauge/vms/gaugevm/state"

	safemath "github.com/luxfi/vegauge/utils/math"
)

const (
	// DefaultMaxWeeks bounds the weeks one series is folded forward per call.
	DefaultMaxWeeks = 500
	// MaxGaugeTypes bounds the number of gauge types.
	MaxGaugeTypes = 100
	// MaxPower is the whole voting power in basis points.
	MaxPower = 10_000
	// WeightVoteDelay is the cooldown between votes for the same gauge.
	WeightVoteDelay = 10 * epoch.Day
)

var (
	ErrNotAdmin             = errors.New("caller is not the admin")
	ErrInvalidType          = errors.New("invalid gauge type")
	ErrTooManyTypes         = errors.New("too many gauge types")
	ErrGaugeExists          = errors.New("cannot add the same gauge twice")
	ErrGaugeNotAdded        = errors.New("gauge not added")
	ErrLockExpiresTooSoon   = errors.New("your token lock expires too soon")
	ErrInvalidWeight        = errors.New("weight must be between 0 and 10000")
	ErrVoteTooOften         = errors.New("cannot vote so often")
	ErrTooMuchPower         = errors.New("used too much power")
	ErrCheckpointIncomplete = errors.New("checkpoint incomplete, call checkpoint again")

	// Multiplier scales relative weights: Multiplier is 100%.
	Multiplier = uint256.NewInt(1_000_000_000_000_000_000)

	keyNGaugeTypes      = state.NewKey("nGaugeTypes")
	keyNGauges          = state.NewKey("nGauges")
	keyGaugeTypeNames   = state.NewKey("gaugeTypeNames")
	keyGauges           = state.NewKey("gauges")
	keyGaugeTypes       = state.NewKey("gaugeTypes")
	keyVoteUserSlopes   = state.NewKey("voteUserSlopes")
	keyVoteUserPower    = state.NewKey("voteUserPower")
	keyLastUserVote     = state.NewKey("lastUserVote")
	keyPointsWeight     = state.NewKey("pointsWeight")
	keyChangesWeight    = state.NewKey("changesWeight")
	keyTimeWeight       = state.NewKey("timeWeight")
	keyPointsSum        = state.NewKey("pointsSum")
	keyChangesSum       = state.NewKey("changesSum")
	keyTimeSum          = state.NewKey("timeSum")
	keyPointsTotal      = state.NewKey("pointsTotal")
	keyTimeTotal        = state.NewKey("timeTotal")
	keyPointsTypeWeight = state.NewKey("pointsTypeWeight")
	keyTimeTypeWeight   = state.NewKey("timeTypeWeight")
)

// VotingEscrow is the source of voting power.
type VotingEscrow interface {
	GetLastUserSlope(addr ids.ShortID) (*big.Int, error)
	LockedEnd(addr ids.ShortID) (uint64, error)
}

// Config describes a controller.
type Config struct {
	Address ids.ShortID `json:"address"`
	Admin   ids.ShortID `json:"admin"`
	// MaxWeeks bounds the weeks one series is folded forward per call.
	MaxWeeks int `json:"maxWeeks"`
}

// Controller keeps, for every gauge, gauge type and the grand total, a
// weekly series of weights.
type Controller struct {
	rt     *runtime.Runtime
	store  *state.Store
	cfg    Config
	escrow VotingEscrow
}

// New opens the controller at cfg.Address. The total weight series starts
// at the current week the first time.
func New(rt *runtime.Runtime, cfg Config, escrow VotingEscrow) (*Controller, error) {
	if cfg.MaxWeeks <= 0 {
		cfg.MaxWeeks = DefaultMaxWeeks
	}
	c := &Controller{
		rt:     rt,
		store:  state.New(rt.DB("controller/" + cfg.Address.String())),
		cfg:    cfg,
		escrow: escrow,
	}
	has, err := c.store.Has(keyTimeTotal)
	if err != nil || has {
		return c, err
	}
	return c, rt.Atomic(context.Background(), "controller.init", func() error {
		return c.store.SetUint64(keyTimeTotal, epoch.FloorWeek(rt.Now()))
	})
}

func (c *Controller) Address() ids.ShortID {
	return c.cfg.Address
}

func (c *Controller) Admin() ids.ShortID {
	return c.cfg.Admin
}

// AddType registers a gauge type with an initial weight.
func (c *Controller) AddType(ctx context.Context, caller ids.ShortID, name string, weight *uint256.Int) (uint64, error) {
	var typeID uint64
	err := c.rt.Atomic(ctx, "controller.addType", func() error {
		if err := c.requireAdmin(caller); err != nil {
			return err
		}
		var err error
		if typeID, err = c.NGaugeTypes(); err != nil {
			return err
		}
		if typeID >= MaxGaugeTypes {
			return ErrTooManyTypes
		}
		if err := c.store.SetString(keyGaugeTypeNames.Uint(typeID), name); err != nil {
			return err
		}
		if err := c.store.SetUint64(keyNGaugeTypes, typeID+1); err != nil {
			return err
		}
		if weight != nil && !weight.IsZero() {
			if err := c.changeTypeWeight(typeID, weight); err != nil {
				return err
			}
		}
		c.rt.Emit(c.cfg.Address, "AddType", "name", name, "typeID", typeID)
		return nil
	})
	return typeID, err
}

// ChangeTypeWeight sets the weight of a gauge type from next week on.
func (c *Controller) ChangeTypeWeight(ctx context.Context, caller ids.ShortID, typeID uint64, weight *uint256.Int) error {
	return c.rt.Atomic(ctx, "controller.changeTypeWeight", func() error {
		if err := c.requireAdmin(caller); err != nil {
			return err
		}
		if err := c.requireType(typeID); err != nil {
			return err
		}
		return c.changeTypeWeight(typeID, weight)
	})
}

// AddGauge registers addr under typeID with an initial weight.
func (c *Controller) AddGauge(ctx context.Context, caller, addr ids.ShortID, typeID uint64, weight *uint256.Int) error {
	return c.rt.Atomic(ctx, "controller.addGauge", func() error {
		if err := c.requireAdmin(caller); err != nil {
			return err
		}
		if err := c.requireType(typeID); err != nil {
			return err
		}
		if stored, err := c.store.Uint64(keyGaugeTypes.Addr(addr)); err != nil {
			return err
		} else if stored != 0 {
			return fmt.Errorf("%w: %s", ErrGaugeExists, addr)
		}

		n, err := c.NGauges()
		if err != nil {
			return err
		}
		if err := c.store.SetUint64(keyNGauges, n+1); err != nil {
			return err
		}
		if err := c.store.SetAddr(keyGauges.Uint(n), addr); err != nil {
			return err
		}
		if err := c.store.SetUint64(keyGaugeTypes.Addr(addr), typeID+1); err != nil {
			return err
		}

		nextTime := epoch.NextWeek(c.rt.Now())
		if weight != nil && !weight.IsZero() {
			typeWeight, oldSum, oldTotal, err := c.typeState(typeID)
			if err != nil {
				return err
			}
			var calc safemath.Calc
			sum := calc.AddU(weight, oldSum)
			total := calc.AddU(oldTotal, calc.MulU(typeWeight, weight))
			if calc.Errored() {
				return calc.Err
			}
			if err := c.setPointBias(keyPointsSum.Uint(typeID).Uint(nextTime), sum); err != nil {
				return err
			}
			if err := c.store.SetUint64(keyTimeSum.Uint(typeID), nextTime); err != nil {
				return err
			}
			if err := c.store.SetU256(keyPointsTotal.Uint(nextTime), total); err != nil {
				return err
			}
			if err := c.store.SetUint64(keyTimeTotal, nextTime); err != nil {
				return err
			}
			if err := c.setPointBias(keyPointsWeight.Addr(addr).Uint(nextTime), weight); err != nil {
				return err
			}
		}
		if timeSum, err := c.store.Uint64(keyTimeSum.Uint(typeID)); err != nil {
			return err
		} else if timeSum == 0 {
			if err := c.store.SetUint64(keyTimeSum.Uint(typeID), nextTime); err != nil {
				return err
			}
		}
		if err := c.store.SetUint64(keyTimeWeight.Addr(addr), nextTime); err != nil {
			return err
		}

		if weight == nil {
			weight = new(uint256.Int)
		}
		c.rt.Emit(c.cfg.Address, "NewGauge", "addr", addr, "gaugeType", typeID, "weight", weight.Dec())
		return nil
	})
}

// ChangeGaugeWeight overrides the weight of a gauge from next week on.
func (c *Controller) ChangeGaugeWeight(ctx context.Context, caller, addr ids.ShortID, weight *uint256.Int) error {
	return c.rt.Atomic(ctx, "controller.changeGaugeWeight", func() error {
		if err := c.requireAdmin(caller); err != nil {
			return err
		}
		typeID, err := c.GaugeType(addr)
		if err != nil {
			return err
		}
		oldGaugeWeight, caughtUp, err := c.getWeight(addr)
		if err != nil {
			return err
		}
		if !caughtUp {
			return ErrCheckpointIncomplete
		}
		typeWeight, oldSum, total, err := c.typeState(typeID)
		if err != nil {
			return err
		}

		nextTime := epoch.NextWeek(c.rt.Now())
		var calc safemath.Calc
		newSum := calc.SubU(calc.AddU(oldSum, weight), oldGaugeWeight)
		total = calc.SubU(calc.AddU(total, calc.MulU(newSum, typeWeight)), calc.MulU(oldSum, typeWeight))
		if calc.Errored() {
			return calc.Err
		}

		if err := c.setPointBias(keyPointsWeight.Addr(addr).Uint(nextTime), weight); err != nil {
			return err
		}
		if err := c.store.SetUint64(keyTimeWeight.Addr(addr), nextTime); err != nil {
			return err
		}
		if err := c.setPointBias(keyPointsSum.Uint(typeID).Uint(nextTime), newSum); err != nil {
			return err
		}
		if err := c.store.SetUint64(keyTimeSum.Uint(typeID), nextTime); err != nil {
			return err
		}
		if err := c.store.SetU256(keyPointsTotal.Uint(nextTime), total); err != nil {
			return err
		}
		if err := c.store.SetUint64(keyTimeTotal, nextTime); err != nil {
			return err
		}
		c.rt.Emit(c.cfg.Address, "NewGaugeWeight", "addr", addr, "time", c.rt.Now(), "weight", weight.Dec(), "totalWeight", total.Dec())
		return nil
	})
}

// Checkpoint folds every type series and the total forward to now. It
// reports false when more weeks are pending.
func (c *Controller) Checkpoint(ctx context.Context) (bool, error) {
	var caughtUp bool
	err := c.rt.Atomic(ctx, "controller.checkpoint", func() error {
		var err error
		_, caughtUp, err = c.getTotal()
		return err
	})
	return caughtUp, err
}

// CheckpointGauge folds the series of addr and the total forward to now.
func (c *Controller) CheckpointGauge(ctx context.Context, addr ids.ShortID) (bool, error) {
	var caughtUp bool
	err := c.rt.Atomic(ctx, "controller.checkpointGauge", func() error {
		_, gaugeCaughtUp, err := c.getWeight(addr)
		if err != nil {
			return err
		}
		_, totalCaughtUp, err := c.getTotal()
		caughtUp = gaugeCaughtUp && totalCaughtUp
		return err
	})
	return caughtUp, err
}

// GaugeRelativeWeightWrite checkpoints addr and returns its relative weight
// at t.
func (c *Controller) GaugeRelativeWeightWrite(ctx context.Context, addr ids.ShortID, t uint64) (*uint256.Int, error) {
	var weight *uint256.Int
	err := c.rt.Atomic(ctx, "controller.gaugeRelativeWeightWrite", func() error {
		caughtUp, err := c.CheckpointGauge(ctx, addr)
		if err != nil {
			return err
		}
		if !caughtUp {
			return ErrCheckpointIncomplete
		}
		weight, err = c.GaugeRelativeWeight(addr, t)
		return err
	})
	return weight, err
}

// VoteForGaugeWeights allocates userWeight basis points of the caller's
// voting power to addr.
func (c *Controller) VoteForGaugeWeights(ctx context.Context, caller, addr ids.ShortID, userWeight uint64) error {
	return c.rt.Atomic(ctx, "controller.voteForGaugeWeights", func() error {
		return c.vote(caller, addr, userWeight)
	})
}

func (c *Controller) vote(caller, addr ids.ShortID, userWeight uint64) error {
	signedSlope, err := c.escrow.GetLastUserSlope(caller)
	if err != nil {
		return err
	}
	slope, err := safemath.FromI128(signedSlope)
	if err != nil {
		return err
	}
	lockEnd, err := c.escrow.LockedEnd(caller)
	if err != nil {
		return err
	}
	now := c.rt.Now()
	nextTime := epoch.NextWeek(now)
	if lockEnd <= nextTime {
		return ErrLockExpiresTooSoon
	}
	if userWeight > MaxPower {
		return fmt.Errorf("%w: %d", ErrInvalidWeight, userWeight)
	}
	lastVote, err := c.LastUserVote(caller, addr)
	if err != nil {
		return err
	}
	if now < lastVote+WeightVoteDelay {
		return ErrVoteTooOften
	}
	typeID, err := c.GaugeType(addr)
	if err != nil {
		return err
	}

	var calc safemath.Calc
	oldSlope, err := c.VoteUserSlopes(caller, addr)
	if err != nil {
		return err
	}
	var oldDt uint64
	if oldSlope.End > nextTime {
		oldDt = oldSlope.End - nextTime
	}
	oldBias := calc.MulU(oldSlope.Slope, uint256.NewInt(oldDt))
	newSlope := VotedSlope{
		Slope: calc.MulDivU(slope, uint256.NewInt(userWeight), uint256.NewInt(MaxPower)),
		Power: userWeight,
		End:   lockEnd,
	}
	newBias := calc.MulU(newSlope.Slope, uint256.NewInt(lockEnd-nextTime))
	if calc.Errored() {
		return calc.Err
	}

	powerUsed, err := c.VoteUserPower(caller)
	if err != nil {
		return err
	}
	powerUsed = powerUsed + newSlope.Power - oldSlope.Power
	if powerUsed > MaxPower {
		return fmt.Errorf("%w: %d", ErrTooMuchPower, powerUsed)
	}
	if err := c.store.SetUint64(keyVoteUserPower.Addr(caller), powerUsed); err != nil {
		return err
	}

	oldWeightBias, weightCaughtUp, err := c.getWeight(addr)
	if err != nil {
		return err
	}
	oldSumBias, sumCaughtUp, err := c.getSum(typeID)
	if err != nil {
		return err
	}
	if !weightCaughtUp || !sumCaughtUp {
		return ErrCheckpointIncomplete
	}

	weightKey := keyPointsWeight.Addr(addr).Uint(nextTime)
	sumKey := keyPointsSum.Uint(typeID).Uint(nextTime)
	pw, err := c.point(weightKey)
	if err != nil {
		return err
	}
	ps, err := c.point(sumKey)
	if err != nil {
		return err
	}

	pw.Bias = calc.SubU(safemath.MaxU256(calc.AddU(oldWeightBias, newBias), oldBias), oldBias)
	ps.Bias = calc.SubU(safemath.MaxU256(calc.AddU(oldSumBias, newBias), oldBias), oldBias)
	if oldSlope.End > nextTime {
		pw.Slope = calc.SubU(safemath.MaxU256(calc.AddU(pw.Slope, newSlope.Slope), oldSlope.Slope), oldSlope.Slope)
		ps.Slope = calc.SubU(safemath.MaxU256(calc.AddU(ps.Slope, newSlope.Slope), oldSlope.Slope), oldSlope.Slope)
	} else {
		pw.Slope = calc.AddU(pw.Slope, newSlope.Slope)
		ps.Slope = calc.AddU(ps.Slope, newSlope.Slope)
	}
	if calc.Errored() {
		return calc.Err
	}
	if err := c.store.SetRecord(weightKey, &pw); err != nil {
		return err
	}
	if err := c.store.SetRecord(sumKey, &ps); err != nil {
		return err
	}

	if oldSlope.End > now {
		if _, err := c.store.SubU256(keyChangesWeight.Addr(addr).Uint(oldSlope.End), oldSlope.Slope); err != nil {
			return err
		}
		if _, err := c.store.SubU256(keyChangesSum.Uint(typeID).Uint(oldSlope.End), oldSlope.Slope); err != nil {
			return err
		}
	}
	if _, err := c.store.AddU256(keyChangesWeight.Addr(addr).Uint(newSlope.End), newSlope.Slope); err != nil {
		return err
	}
	if _, err := c.store.AddU256(keyChangesSum.Uint(typeID).Uint(newSlope.End), newSlope.Slope); err != nil {
		return err
	}

	if _, caughtUp, err := c.getTotal(); err != nil {
		return err
	} else if !caughtUp {
		return ErrCheckpointIncomplete
	}

	if err := c.store.SetRecord(keyVoteUserSlopes.Addr(caller).Addr(addr), &newSlope); err != nil {
		return err
	}
	if err := c.store.SetUint64(keyLastUserVote.Addr(caller).Addr(addr), now); err != nil {
		return err
	}
	c.rt.Emit(c.cfg.Address, "VoteForGauge", "time", now, "user", caller, "gaugeAddr", addr, "weight", userWeight)
	return nil
}

func (c *Controller) changeTypeWeight(typeID uint64, weight *uint256.Int) error {
	oldWeight, oldSum, total, err := c.typeState(typeID)
	if err != nil {
		return err
	}
	nextTime := epoch.NextWeek(c.rt.Now())

	var calc safemath.Calc
	total = calc.SubU(calc.AddU(total, calc.MulU(oldSum, weight)), calc.MulU(oldSum, oldWeight))
	if calc.Errored() {
		return calc.Err
	}
	if err := c.store.SetU256(keyPointsTotal.Uint(nextTime), total); err != nil {
		return err
	}
	if err := c.store.SetU256(keyPointsTypeWeight.Uint(typeID).Uint(nextTime), weight); err != nil {
		return err
	}
	if err := c.store.SetUint64(keyTimeTotal, nextTime); err != nil {
		return err
	}
	if err := c.store.SetUint64(keyTimeTypeWeight.Uint(typeID), nextTime); err != nil {
		return err
	}
	c.rt.Emit(c.cfg.Address, "NewTypeWeight", "typeID", typeID, "time", nextTime, "weight", weight.Dec(), "totalWeight", total.Dec())
	return nil
}

// typeState folds the type weight, type sum and total forward and returns
// them. It fails unless all three reached now.
func (c *Controller) typeState(typeID uint64) (*uint256.Int, *uint256.Int, *uint256.Int, error) {
	typeWeight, weightCaughtUp, err := c.getTypeWeight(typeID)
	if err != nil {
		return nil, nil, nil, err
	}
	sum, sumCaughtUp, err := c.getSum(typeID)
	if err != nil {
		return nil, nil, nil, err
	}
	total, totalCaughtUp, err := c.getTotal()
	if err != nil {
		return nil, nil, nil, err
	}
	if !weightCaughtUp || !sumCaughtUp || !totalCaughtUp {
		return nil, nil, nil, ErrCheckpointIncomplete
	}
	return typeWeight, sum, total, nil
}

func (c *Controller) requireAdmin(caller ids.ShortID) error {
	if caller != c.cfg.Admin {
		return fmt.Errorf("%w: %s", ErrNotAdmin, caller)
	}
	return nil
}

func (c *Controller) requireType(typeID uint64) error {
	n, err := c.NGaugeTypes()
	if err != nil {
		return err
	}
	if typeID >= n {
		return fmt.Errorf("%w: %d", ErrInvalidType, typeID)
	}
	return nil
}

func (c *Controller) point(key state.Key) (Point, error) {
	p := newPoint()
	_, err := c.store.Record(key, &p)
	return p, err
}

func (c *Controller) setPointBias(key state.Key, bias *uint256.Int) error {
	p, err := c.point(key)
	if err != nil {
		return err
	}
	p.Bias = bias
	return c.store.SetRecord(key, &p)
}
