// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gaugevm

import (
	"errors"
	"fmt"

	"github.com/luxfi/ids"

	"github.com/luxfi/vegauge/vms/gaugevm/gauge"
	"github.com/luxfi/vegauge/vms/gaugevm/minter"
	"github.com/luxfi/vegauge/vms/gaugevm/token"
	"github.com/luxfi/vegauge/vms/gaugevm/vesting"
)

var (
	errUnknownToken   = errors.New("unknown token")
	errUnknownGauge   = errors.New("unknown gauge")
	errUnknownVesting = errors.New("unknown vesting escrow")

	_ gauge.Tokens  = (*registry)(nil)
	_ minter.Gauges = (*registry)(nil)
)

// registry resolves the addresses of live components.
type registry struct {
	tokens  map[ids.ShortID]*token.Ledger
	gauges  map[ids.ShortID]*gauge.Gauge
	vesting map[ids.ShortID]*vesting.Escrow
	// order lists gauges in the order they were added.
	order []ids.ShortID
}

func newRegistry() *registry {
	return &registry{
		tokens:  make(map[ids.ShortID]*token.Ledger),
		gauges:  make(map[ids.ShortID]*gauge.Gauge),
		vesting: make(map[ids.ShortID]*vesting.Escrow),
	}
}

func (r *registry) Token(addr ids.ShortID) (gauge.Token, error) {
	return r.ledger(addr)
}

func (r *registry) Gauge(addr ids.ShortID) (minter.Gauge, error) {
	return r.gauge(addr)
}

func (r *registry) ledger(addr ids.ShortID) (*token.Ledger, error) {
	l, ok := r.tokens[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownToken, addr)
	}
	return l, nil
}

func (r *registry) gauge(addr ids.ShortID) (*gauge.Gauge, error) {
	g, ok := r.gauges[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownGauge, addr)
	}
	return g, nil
}

func (r *registry) vestingEscrow(addr ids.ShortID) (*vesting.Escrow, error) {
	e, ok := r.vesting[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownVesting, addr)
	}
	return e, nil
}

func (r *registry) addGauge(g *gauge.Gauge) {
	r.gauges[g.Address()] = g
	r.order = append(r.order, g.Address())
}
