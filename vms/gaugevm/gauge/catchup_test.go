// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gauge

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/vegauge/vms/gaugevm/epoch"
	"github.com/luxfi/vegauge/vms/gaugevm/token"
)

// addGauge deploys a gauge integrating at most maxWeeks per checkpoint and
// registers it with the same weight as the default gauge.
func (env *testEnv) addGauge(t *testing.T, maxWeeks int) *Gauge {
	g := env.newBoundedGauge(t, env.lp, maxWeeks)
	require.NoError(t, env.controller.AddGauge(context.Background(), env.admin, g.Address(), 0, tokens(1)))
	return g
}

// stake deposits amount LP tokens for addr into every gauge.
func (env *testEnv) stake(t *testing.T, addr ids.ShortID, amount *uint256.Int, gauges ...*Gauge) {
	require := require.New(t)
	ctx := context.Background()
	for _, g := range gauges {
		require.NoError(env.lp.Mint(ctx, env.admin, addr, amount))
		require.NoError(env.lp.Approve(ctx, addr, g.Address(), amount))
		require.NoError(g.Deposit(ctx, addr, addr, amount, false))
	}
}

func (env *testEnv) advanceTo(ts uint64) {
	env.advance(ts - env.rt.Now())
}

// catchUp checkpoints addr until the integration reaches now and returns
// the number of calls it took.
func catchUp(t *testing.T, g *Gauge, addr ids.ShortID) int {
	for calls := 1; calls <= 1000; calls++ {
		caughtUp, err := g.UserCheckpoint(context.Background(), addr, addr)
		require.NoError(t, err)
		if caughtUp {
			return calls
		}
	}
	require.FailNow(t, "checkpoint never caught up")
	return 0
}

func TestPartialCheckpointKeepsWorkingBalance(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	whole := env.gauge
	bounded := env.addGauge(t, 1)

	alice := ids.GenerateTestShortID()
	bob := ids.GenerateTestShortID()
	env.stake(t, alice, tokens(100), whole, bounded)
	env.stake(t, bob, tokens(100), whole, bounded)

	env.advanceTo(start + 4*epoch.Week)
	require.NoError(env.gov.Transfer(ctx, env.admin, alice, tokens(1000)))
	require.NoError(env.gov.Approve(ctx, alice, env.escrow.Address(), tokens(1000)))
	require.NoError(env.escrow.CreateLock(ctx, alice, tokens(1000), env.rt.Now()+2*epoch.Year))

	caughtUp, err := bounded.UserCheckpoint(ctx, alice, alice)
	require.NoError(err)
	require.False(caughtUp)
	working, err := bounded.WorkingBalance(alice)
	require.NoError(err)
	require.Zero(working.Cmp(tokens(40)))

	require.Equal(1, catchUp(t, whole, alice))
	require.Equal(1, catchUp(t, whole, bob))
	require.Equal(3, catchUp(t, bounded, alice))
	require.Equal(1, catchUp(t, bounded, bob))

	// The boost only applies from now on.
	working, err = bounded.WorkingBalance(alice)
	require.NoError(err)
	require.True(working.Gt(tokens(40)))

	expected, err := whole.IntegrateFraction(alice)
	require.NoError(err)
	require.False(expected.IsZero())
	for _, g := range []*Gauge{whole, bounded} {
		for _, addr := range []ids.ShortID{alice, bob} {
			fraction, err := g.IntegrateFraction(addr)
			require.NoError(err)
			require.Zero(expected.Cmp(fraction))
		}
	}
}

func TestCheckpointSplitsAtEpochBoundary(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	whole := env.gauge
	bounded := env.addGauge(t, 1)

	alice := ids.GenerateTestShortID()
	env.stake(t, alice, tokens(100), whole, bounded)

	// The first emission epoch starts a day after genesis and the second a
	// year later, two days into week 52.
	boundary := start + epoch.Day + epoch.Year
	weekStart := start + 51*epoch.Week
	weekEnd := start + 53*epoch.Week
	require.Greater(boundary, start+52*epoch.Week)
	require.Less(boundary, weekEnd)

	env.advanceTo(weekStart)
	require.Equal(1, catchUp(t, whole, alice))
	require.Equal(51, catchUp(t, bounded, alice))

	before := make(map[*Gauge]*uint256.Int)
	for _, g := range []*Gauge{whole, bounded} {
		fraction, err := g.IntegrateFraction(alice)
		require.NoError(err)
		before[g] = fraction
	}
	require.Zero(before[whole].Cmp(before[bounded]))
	rate1, err := env.gov.Rate()
	require.NoError(err)
	require.Zero(rate1.Cmp(token.InitialRate))

	env.advanceTo(weekEnd)
	require.Equal(1, catchUp(t, whole, alice))
	future, err := whole.FutureEpochTime()
	require.NoError(err)
	require.Equal(boundary+epoch.Year, future)

	// The first installment stops before the boundary, so the old rate
	// must still be in force for the next one.
	caughtUp, err := bounded.UserCheckpoint(ctx, alice, alice)
	require.NoError(err)
	require.False(caughtUp)
	future, err = bounded.FutureEpochTime()
	require.NoError(err)
	require.Equal(boundary, future)
	rate, err := bounded.InflationRate()
	require.NoError(err)
	require.Zero(rate.Cmp(rate1))
	require.Equal(1, catchUp(t, bounded, alice))

	rate2, err := env.gov.Rate()
	require.NoError(err)
	require.True(rate2.Lt(rate1))

	w, err := env.controller.GaugeRelativeWeight(whole.Address(), weekStart)
	require.NoError(err)
	require.False(w.IsZero())
	workingSupply := tokens(40)
	share := func(rate *uint256.Int, dt uint64) *uint256.Int {
		v := new(uint256.Int).Mul(rate, w)
		v.Mul(v, uint256.NewInt(dt))
		return v.Div(v, workingSupply)
	}
	invSupply := share(rate1, epoch.Week)
	invSupply.Add(invSupply, share(rate1, boundary-(start+52*epoch.Week)))
	invSupply.Add(invSupply, share(rate2, weekEnd-boundary))
	expected := new(uint256.Int).Mul(tokens(40), invSupply)
	expected.Div(expected, unit)

	for _, g := range []*Gauge{whole, bounded} {
		fraction, err := g.IntegrateFraction(alice)
		require.NoError(err)
		require.Zero(expected.Cmp(new(uint256.Int).Sub(fraction, before[g])))
	}
}
