// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/vegauge/vms/gaugevm/epoch"
	"github.com/luxfi/vegauge/vms/gaugevm/runtime"
	"github.com/luxfi/vegauge/vms/gaugevm/state"

	safemath "github.com/luxfi/vegauge/utils/math"
)

const (
	RateReductionTime = epoch.Year
	InflationDelay    = epoch.Day

	// mintableEpochs bounds the walk back through past epochs.
	mintableEpochs = 999
)

var (
	// InitialSupply is minted to the admin at creation.
	InitialSupply = mustExp18(1_303_030_303)
	// InitialRate is the emission per second of the first epoch.
	InitialRate = new(uint256.Int).Div(mustExp18(274_815_283), uint256.NewInt(epoch.Year))
	// RateReductionCoefficient is 2^(1/4) scaled by RateDenominator.
	RateReductionCoefficient = uint256.MustFromDecimal("1189207115002721024")
	RateDenominator          = mustExp18(1)

	ErrNotAdmin               = errors.New("caller is not the admin")
	ErrMinterAlreadySet       = errors.New("minter already set")
	ErrTooSoon                = errors.New("too soon")
	ErrExceedsAvailableSupply = errors.New("exceeds available supply")
	ErrInvalidTimeframe       = errors.New("invalid timeframe")

	keyAdmin            = state.NewKey("admin")
	keyEpochsStarted    = state.NewKey("epochsStarted")
	keyStartEpochTime   = state.NewKey("startEpochTime")
	keyRate             = state.NewKey("rate")
	keyStartEpochSupply = state.NewKey("startEpochSupply")
)

func mustExp18(v uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(v), uint256.NewInt(1_000_000_000_000_000_000))
}

// InflationConfig describes the governance token.
type InflationConfig struct {
	Config
	Admin ids.ShortID `json:"admin"`
}

// Inflation is the governance token. Its supply grows at a rate that is
// reduced by RateReductionCoefficient every RateReductionTime; only the
// minter may issue against the accrued allowance.
type Inflation struct {
	*Ledger
}

// NewInflation opens the governance token, minting the initial supply to
// the admin the first time.
func NewInflation(rt *runtime.Runtime, cfg InflationConfig) (*Inflation, error) {
	cfg.Minter = ids.ShortEmpty
	ledger, err := NewLedger(rt, cfg.Config)
	if err != nil {
		return nil, err
	}
	t := &Inflation{Ledger: ledger}

	has, err := t.store.Has(keyAdmin)
	if err != nil || has {
		return t, err
	}
	err = rt.Atomic(context.Background(), "inflation.init", func() error {
		start, err := safemath.Sub(rt.Now()+InflationDelay, RateReductionTime)
		if err != nil {
			return fmt.Errorf("clock too early for emission schedule: %w", err)
		}
		if err := t.store.SetAddr(keyAdmin, cfg.Admin); err != nil {
			return err
		}
		if err := t.mint(cfg.Admin, InitialSupply); err != nil {
			return err
		}
		if err := t.store.SetUint64(keyStartEpochTime, start); err != nil {
			return err
		}
		if err := t.store.SetU256(keyRate, new(uint256.Int)); err != nil {
			return err
		}
		return t.store.SetU256(keyStartEpochSupply, InitialSupply)
	})
	return t, err
}

func (t *Inflation) Admin() (ids.ShortID, error) {
	return t.store.Addr(keyAdmin)
}

// Rate returns the current emission per second.
func (t *Inflation) Rate() (*uint256.Int, error) {
	return t.store.U256(keyRate)
}

// MiningEpoch returns the index of the current epoch, -1 before emission
// starts.
func (t *Inflation) MiningEpoch() (int64, error) {
	n, err := t.store.Uint64(keyEpochsStarted)
	return int64(n) - 1, err
}

func (t *Inflation) StartEpochTime() (uint64, error) {
	return t.store.Uint64(keyStartEpochTime)
}

// SetMinter installs the only address allowed to mint. It can be set once.
func (t *Inflation) SetMinter(ctx context.Context, caller, minter ids.ShortID) error {
	return t.rt.Atomic(ctx, "inflation.setMinter", func() error {
		if err := t.requireAdmin(caller); err != nil {
			return err
		}
		current, err := t.Minter()
		if err != nil {
			return err
		}
		if current != ids.ShortEmpty {
			return ErrMinterAlreadySet
		}
		if err := t.setMinter(minter); err != nil {
			return err
		}
		t.rt.Emit(t.cfg.Address, "SetMinter", "minter", minter)
		return nil
	})
}

// UpdateMiningParameters starts the next epoch. It fails if the current
// epoch has not ended.
func (t *Inflation) UpdateMiningParameters(ctx context.Context) error {
	return t.rt.Atomic(ctx, "inflation.updateMiningParameters", func() error {
		start, err := t.StartEpochTime()
		if err != nil {
			return err
		}
		if t.rt.Now() < start+RateReductionTime {
			return ErrTooSoon
		}
		return t.updateMiningParameters()
	})
}

// StartEpochTimeWrite rolls the epoch forward if due and returns its start.
func (t *Inflation) StartEpochTimeWrite(ctx context.Context) (uint64, error) {
	var start uint64
	err := t.rt.Atomic(ctx, "inflation.startEpochTimeWrite", func() error {
		var err error
		start, err = t.rollEpoch()
		return err
	})
	return start, err
}

// FutureEpochTimeWrite rolls the epoch forward if due and returns the start
// of the next one.
func (t *Inflation) FutureEpochTimeWrite(ctx context.Context) (uint64, error) {
	var start uint64
	err := t.rt.Atomic(ctx, "inflation.futureEpochTimeWrite", func() error {
		var err error
		start, err = t.rollEpoch()
		return err
	})
	return start + RateReductionTime, err
}

// AvailableSupply returns the supply that may exist right now.
func (t *Inflation) AvailableSupply() (*uint256.Int, error) {
	start, err := t.StartEpochTime()
	if err != nil {
		return nil, err
	}
	supply, err := t.store.U256(keyStartEpochSupply)
	if err != nil {
		return nil, err
	}
	rate, err := t.Rate()
	if err != nil {
		return nil, err
	}
	now := t.rt.Now()
	if now <= start {
		return supply, nil
	}
	emitted, err := safemath.MulU256(rate, uint256.NewInt(now-start))
	if err != nil {
		return nil, err
	}
	return safemath.AddU256(supply, emitted)
}

// MintableInTimeframe returns how much may be minted between start and end.
// end must lie at most one epoch after the current one. Time before the
// first epoch mints nothing.
func (t *Inflation) MintableInTimeframe(start, end uint64) (*uint256.Int, error) {
	if start > end {
		return nil, fmt.Errorf("%w: start %d after end %d", ErrInvalidTimeframe, start, end)
	}
	epochTime, err := t.StartEpochTime()
	if err != nil {
		return nil, err
	}
	rate, err := t.Rate()
	if err != nil {
		return nil, err
	}

	if end > epochTime+RateReductionTime {
		epochTime += RateReductionTime
		rate = new(uint256.Int).Div(new(uint256.Int).Mul(rate, RateDenominator), RateReductionCoefficient)
	}
	if end > epochTime+RateReductionTime {
		return nil, fmt.Errorf("%w: end %d too far in the future", ErrInvalidTimeframe, end)
	}

	toMint := new(uint256.Int)
	for i := 0; i < mintableEpochs; i++ {
		if end >= epochTime {
			currentEnd := min(end, epochTime+RateReductionTime)
			currentStart := start
			if currentStart >= epochTime+RateReductionTime {
				break
			}
			currentStart = max(currentStart, epochTime)
			part, err := safemath.MulU256(rate, uint256.NewInt(currentEnd-currentStart))
			if err != nil {
				return nil, err
			}
			if toMint, err = safemath.AddU256(toMint, part); err != nil {
				return nil, err
			}
			if start >= epochTime {
				break
			}
		}
		if epochTime < RateReductionTime {
			break
		}
		epochTime -= RateReductionTime
		rate = new(uint256.Int).Div(new(uint256.Int).Mul(rate, RateReductionCoefficient), RateDenominator)
		if rate.Gt(InitialRate) {
			break
		}
	}
	return toMint, nil
}

// Mint issues amount to to. Only the minter may mint and never beyond the
// available supply.
func (t *Inflation) Mint(ctx context.Context, caller, to ids.ShortID, amount *uint256.Int) error {
	return t.rt.Atomic(ctx, "inflation.mint", func() error {
		minter, err := t.Minter()
		if err != nil {
			return err
		}
		if minter == ids.ShortEmpty || caller != minter {
			return fmt.Errorf("%w: %s", ErrNotMinter, caller)
		}
		if _, err := t.rollEpoch(); err != nil {
			return err
		}
		supply, err := t.TotalSupply()
		if err != nil {
			return err
		}
		total, err := safemath.AddU256(supply, amount)
		if err != nil {
			return err
		}
		available, err := t.AvailableSupply()
		if err != nil {
			return err
		}
		if total.Gt(available) {
			return fmt.Errorf("%w: %s > %s", ErrExceedsAvailableSupply, total.Dec(), available.Dec())
		}
		return t.mint(to, amount)
	})
}

func (t *Inflation) rollEpoch() (uint64, error) {
	start, err := t.StartEpochTime()
	if err != nil {
		return 0, err
	}
	if t.rt.Now() >= start+RateReductionTime {
		if err := t.updateMiningParameters(); err != nil {
			return 0, err
		}
		return t.StartEpochTime()
	}
	return start, nil
}

func (t *Inflation) updateMiningParameters() error {
	rate, err := t.Rate()
	if err != nil {
		return err
	}
	supply, err := t.store.U256(keyStartEpochSupply)
	if err != nil {
		return err
	}
	start, err := t.StartEpochTime()
	if err != nil {
		return err
	}
	start += RateReductionTime
	if err := t.store.SetUint64(keyStartEpochTime, start); err != nil {
		return err
	}
	epochs, err := t.store.Uint64(keyEpochsStarted)
	if err != nil {
		return err
	}
	if err := t.store.SetUint64(keyEpochsStarted, epochs+1); err != nil {
		return err
	}

	if rate.IsZero() {
		rate = InitialRate
	} else {
		emitted, err := safemath.MulU256(rate, uint256.NewInt(RateReductionTime))
		if err != nil {
			return err
		}
		if supply, err = safemath.AddU256(supply, emitted); err != nil {
			return err
		}
		if err := t.store.SetU256(keyStartEpochSupply, supply); err != nil {
			return err
		}
		rate = new(uint256.Int).Div(new(uint256.Int).Mul(rate, RateDenominator), RateReductionCoefficient)
	}
	if err := t.store.SetU256(keyRate, rate); err != nil {
		return err
	}
	t.rt.Emit(t.cfg.Address, "UpdateMiningParameters", "time", t.rt.Now(), "rate", rate.Dec(), "supply", supply.Dec())
	return nil
}

func (t *Inflation) requireAdmin(caller ids.ShortID) error {
	admin, err := t.Admin()
	if err != nil {
		return err
	}
	if caller != admin {
		return fmt.Errorf("%w: %s", ErrNotAdmin, caller)
	}
	return nil
}
