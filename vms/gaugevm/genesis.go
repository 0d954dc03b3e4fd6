// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gaugevm

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	safemath "github.com/luxfi/vegauge/utils/math"
	"github.com/luxfi/vegauge/utils/wrappers"
	"github.com/luxfi/vegauge/vms/gaugevm/vesting"
)

var (
	errNoAdmin         = errors.New("genesis admin is empty")
	errEmptyAddress    = errors.New("empty address")
	errDuplicateAddr   = errors.New("duplicate address")
	errInvalidAmount   = safemath.ErrInvalidAmount
	errUnknownLPToken  = errors.New("unknown lp token")
	errUnknownFeeToken = errors.New("unknown fee token")

	errUnknownVestedToken = errors.New("unknown vested token")
)

// Genesis describes the initial deployment.
type Genesis struct {
	// Timestamp of the genesis block in Unix seconds. Zero uses the wall
	// clock at first start.
	Timestamp uint64      `json:"timestamp"`
	Admin     ids.ShortID `json:"admin"`

	// Governance is the inflationary token locked in the escrow. Its initial
	// supply is minted to Admin.
	Governance TokenGenesis `json:"governance"`

	Escrow         ids.ShortID           `json:"escrow"`
	Controller     ids.ShortID           `json:"controller"`
	Minter         ids.ShortID           `json:"minter"`
	FeeDistributor FeeDistributorGenesis `json:"feeDistributor"`

	// Tokens are plain ledgers minted by Admin: pool shares, reward and fee
	// tokens.
	Tokens []TokenGenesis `json:"tokens"`
	Types  []TypeGenesis  `json:"types"`
	Gauges []GaugeGenesis `json:"gauges"`

	// Vesting escrows are funded from Admin's balance of their token.
	Vesting []VestingGenesis `json:"vesting"`
}

type TokenGenesis struct {
	Address     ids.ShortID  `json:"address"`
	Name        string       `json:"name"`
	Symbol      string       `json:"symbol"`
	Decimals    uint8        `json:"decimals"`
	Allocations []Allocation `json:"allocations"`
}

type Allocation struct {
	Address ids.ShortID `json:"address"`
	Amount  string      `json:"amount"`
}

type TypeGenesis struct {
	Name   string `json:"name"`
	Weight string `json:"weight"`
}

type GaugeGenesis struct {
	Address ids.ShortID `json:"address"`
	LPToken ids.ShortID `json:"lpToken"`
	Type    uint64      `json:"type"`
	Weight  string      `json:"weight"`
}

type FeeDistributorGenesis struct {
	Address         ids.ShortID `json:"address"`
	Token           ids.ShortID `json:"token"`
	EmergencyReturn ids.ShortID `json:"emergencyReturn"`
	StartTime       uint64      `json:"startTime"`
}

type VestingGenesis struct {
	Address    ids.ShortID   `json:"address"`
	Token      ids.ShortID   `json:"token"`
	StartTime  uint64        `json:"startTime"`
	EndTime    uint64        `json:"endTime"`
	CanDisable bool          `json:"canDisable"`
	FundAdmins []ids.ShortID `json:"fundAdmins"`
	Recipients []Allocation  `json:"recipients"`
}

func (v *VestingGenesis) config(admin ids.ShortID) vesting.Config {
	return vesting.Config{
		Address:    v.Address,
		Admin:      admin,
		StartTime:  v.StartTime,
		EndTime:    v.EndTime,
		CanDisable: v.CanDisable,
		FundAdmins: v.FundAdmins,
	}
}

// ParseGenesis decodes and validates b.
func ParseGenesis(b []byte) (*Genesis, error) {
	g := &Genesis{}
	if err := json.Unmarshal(b, g); err != nil {
		return nil, fmt.Errorf("failed to unmarshal genesis: %w", err)
	}
	return g, g.Verify()
}

// Verify checks that every address is set and unique and every amount
// parses.
func (g *Genesis) Verify() error {
	if g.Admin == ids.ShortEmpty {
		return errNoAdmin
	}

	seen := make(map[ids.ShortID]struct{})
	unique := func(name string, addr ids.ShortID) error {
		if addr == ids.ShortEmpty {
			return fmt.Errorf("%w: %s", errEmptyAddress, name)
		}
		if _, ok := seen[addr]; ok {
			return fmt.Errorf("%w: %s %s", errDuplicateAddr, name, addr)
		}
		seen[addr] = struct{}{}
		return nil
	}

	errs := wrappers.Errs{}
	errs.Add(
		unique("governance", g.Governance.Address),
		unique("escrow", g.Escrow),
		unique("controller", g.Controller),
		unique("minter", g.Minter),
		unique("feeDistributor", g.FeeDistributor.Address),
	)
	tokens := make(map[ids.ShortID]struct{}, len(g.Tokens)+1)
	tokens[g.Governance.Address] = struct{}{}
	for _, t := range g.Tokens {
		errs.Add(unique("token "+t.Symbol, t.Address))
		tokens[t.Address] = struct{}{}
		for _, a := range t.Allocations {
			if a.Address == ids.ShortEmpty {
				errs.Add(fmt.Errorf("%w: allocation of %s", errEmptyAddress, t.Symbol))
			}
			_, err := parseAmount(a.Amount)
			errs.Add(err)
		}
	}
	for _, t := range g.Types {
		_, err := parseAmount(t.Weight)
		errs.Add(err)
	}
	for _, gauge := range g.Gauges {
		errs.Add(unique("gauge", gauge.Address))
		if _, ok := tokens[gauge.LPToken]; !ok {
			errs.Add(fmt.Errorf("%w: %s", errUnknownLPToken, gauge.LPToken))
		}
		_, err := parseAmount(gauge.Weight)
		errs.Add(err)
	}
	if _, ok := tokens[g.FeeDistributor.Token]; !ok {
		errs.Add(fmt.Errorf("%w: %s", errUnknownFeeToken, g.FeeDistributor.Token))
	}
	for _, v := range g.Vesting {
		errs.Add(unique("vesting", v.Address))
		if _, ok := tokens[v.Token]; !ok {
			errs.Add(fmt.Errorf("%w: %s", errUnknownVestedToken, v.Token))
		}
		cfg := v.config(g.Admin)
		errs.Add(cfg.Verify())
		for _, r := range v.Recipients {
			if r.Address == ids.ShortEmpty {
				errs.Add(fmt.Errorf("%w: vesting recipient", errEmptyAddress))
			}
			_, err := parseAmount(r.Amount)
			errs.Add(err)
		}
	}
	return errs.Err
}

// parseAmount reads an optional genesis amount. Empty means zero.
func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	return safemath.ParseU256(s)
}
