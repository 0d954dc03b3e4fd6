// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gauge

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/vegauge/utils/timer/mockable"
	"github.com/luxfi/vegauge/vms/gaugevm/controller"
	"github.com/luxfi/vegauge/vms/gaugevm/epoch"
	"github.com/luxfi/vegauge/vms/gaugevm/escrow"
	"github.com/luxfi/vegauge/vms/gaugevm/runtime"
	"github.com/luxfi/vegauge/vms/gaugevm/token"
)

var start = epoch.FloorWeek(1_700_000_000)

type fakeMinter struct {
	addr   ids.ShortID
	minted map[ids.ShortID]*uint256.Int
}

func (m *fakeMinter) Address() ids.ShortID {
	return m.addr
}

func (m *fakeMinter) Minted(user, _ ids.ShortID) (*uint256.Int, error) {
	if v, ok := m.minted[user]; ok {
		return v, nil
	}
	return new(uint256.Int), nil
}

type tokenSet map[ids.ShortID]Token

func (s tokenSet) Token(addr ids.ShortID) (Token, error) {
	if t, ok := s[addr]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownReward, addr)
}

// reentrantToken calls back into the gauge on its first pull.
type reentrantToken struct {
	*token.Ledger
	gauge *Gauge
	done  bool
}

func (r *reentrantToken) TransferFrom(ctx context.Context, caller, owner, to ids.ShortID, amount *uint256.Int) error {
	if !r.done {
		r.done = true
		return r.gauge.Deposit(ctx, owner, owner, amount, false)
	}
	return r.Ledger.TransferFrom(ctx, caller, owner, to, amount)
}

type testEnv struct {
	rt         *runtime.Runtime
	admin      ids.ShortID
	gov        *token.Inflation
	escrow     *escrow.Escrow
	controller *controller.Controller
	lp         *token.Ledger
	minter     *fakeMinter
	tokens     tokenSet
	gauge      *Gauge
}

func newTestEnv(t *testing.T) *testEnv {
	require := require.New(t)
	ctx := context.Background()

	clock := &mockable.Clock{}
	clock.Set(time.Unix(int64(start), 0))
	clock.SetHeight(1)
	rt := runtime.New(memdb.New(), clock, log.NoLog{})

	admin := ids.GenerateTestShortID()
	gov, err := token.NewInflation(rt, token.InflationConfig{
		Config: token.Config{
			Address:  ids.GenerateTestShortID(),
			Name:     "Governance",
			Symbol:   "GOV",
			Decimals: 18,
		},
		Admin: admin,
	})
	require.NoError(err)

	ve := escrow.New(rt, escrow.Config{Address: ids.GenerateTestShortID()}, gov)
	c, err := controller.New(rt, controller.Config{
		Address: ids.GenerateTestShortID(),
		Admin:   admin,
	}, ve)
	require.NoError(err)

	lp, err := token.NewLedger(rt, token.Config{
		Address:  ids.GenerateTestShortID(),
		Name:     "Pool share",
		Symbol:   "LP",
		Decimals: 18,
		Minter:   admin,
	})
	require.NoError(err)

	env := &testEnv{
		rt:         rt,
		admin:      admin,
		gov:        gov,
		escrow:     ve,
		controller: c,
		lp:         lp,
		minter: &fakeMinter{
			addr:   ids.GenerateTestShortID(),
			minted: make(map[ids.ShortID]*uint256.Int),
		},
		tokens: make(tokenSet),
	}
	env.gauge = env.newGauge(t, lp)

	typeID, err := c.AddType(ctx, admin, "liquidity", tokens(1))
	require.NoError(err)
	require.NoError(c.AddGauge(ctx, admin, env.gauge.Address(), typeID, tokens(1)))
	return env
}

func (env *testEnv) newGauge(t *testing.T, lp Token) *Gauge {
	return env.newBoundedGauge(t, lp, DefaultMaxWeeks)
}

func (env *testEnv) newBoundedGauge(t *testing.T, lp Token, maxWeeks int) *Gauge {
	g, err := New(context.Background(), env.rt, Config{
		Address:  ids.GenerateTestShortID(),
		Admin:    env.admin,
		LPToken:  env.lp.Address(),
		MaxWeeks: maxWeeks,
	}, Deps{
		LPToken:    lp,
		Tokens:     env.tokens,
		Controller: env.controller,
		Escrow:     env.escrow,
		Emission:   env.gov,
		Minter:     env.minter,
	})
	require.NoError(t, err)
	return g
}

// provider mints amount LP tokens to a new account that approved g.
func (env *testEnv) provider(t *testing.T, g *Gauge, amount *uint256.Int) ids.ShortID {
	ctx := context.Background()
	addr := ids.GenerateTestShortID()
	require.NoError(t, env.lp.Mint(ctx, env.admin, addr, amount))
	require.NoError(t, env.lp.Approve(ctx, addr, g.Address(), new(uint256.Int).SetAllOne()))
	return addr
}

func (env *testEnv) advance(seconds uint64) {
	env.rt.Clock().Advance(time.Duration(seconds)*time.Second, seconds/12+1)
}

func tokens(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), unit)
}

func percent(v *uint256.Int, p uint64) *uint256.Int {
	out := new(uint256.Int).Mul(v, uint256.NewInt(p))
	return out.Div(out, uint256.NewInt(100))
}

func TestEqualDepositorsAccrueEqually(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	g := env.gauge

	alice := env.provider(t, g, tokens(100))
	bob := env.provider(t, g, tokens(100))
	require.NoError(g.Deposit(ctx, alice, alice, tokens(100), false))
	require.NoError(g.Deposit(ctx, bob, bob, tokens(100), false))

	workingSupply, err := g.WorkingSupply()
	require.NoError(err)
	require.Zero(workingSupply.Cmp(tokens(80)))

	env.advance(2 * epoch.Week)
	for _, addr := range []ids.ShortID{alice, bob} {
		caughtUp, err := g.UserCheckpoint(ctx, addr, addr)
		require.NoError(err)
		require.True(caughtUp)
	}

	aliceFraction, err := g.IntegrateFraction(alice)
	require.NoError(err)
	bobFraction, err := g.IntegrateFraction(bob)
	require.NoError(err)
	require.False(aliceFraction.IsZero())
	require.Zero(aliceFraction.Cmp(bobFraction))

	// Only the second week carries weight; each side earns half of it.
	expected := new(uint256.Int).Mul(token.InitialRate, uint256.NewInt(epoch.Week/2))
	require.False(aliceFraction.Gt(expected))
	require.True(new(uint256.Int).Sub(expected, aliceFraction).LtUint64(100))

	claimable, err := g.ClaimableTokens(ctx, alice)
	require.NoError(err)
	require.Zero(claimable.Cmp(aliceFraction))

	env.minter.minted[alice] = aliceFraction
	claimable, err = g.ClaimableTokens(ctx, alice)
	require.NoError(err)
	require.True(claimable.IsZero())
}

func TestBoostAndKick(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	g := env.gauge

	alice := env.provider(t, g, tokens(100))
	bob := env.provider(t, g, tokens(100))
	require.NoError(env.gov.Transfer(ctx, env.admin, alice, tokens(1000)))
	require.NoError(env.gov.Approve(ctx, alice, env.escrow.Address(), tokens(1000)))
	require.NoError(env.escrow.CreateLock(ctx, alice, tokens(1000), start+2*epoch.Week))

	require.NoError(g.Deposit(ctx, alice, alice, tokens(100), false))
	require.NoError(g.Deposit(ctx, bob, bob, tokens(100), false))

	aliceWorking, err := g.WorkingBalance(alice)
	require.NoError(err)
	bobWorking, err := g.WorkingBalance(bob)
	require.NoError(err)
	require.True(aliceWorking.Gt(percent(tokens(100), TokenlessProduction)))
	require.False(aliceWorking.Gt(tokens(100)))
	require.Zero(bobWorking.Cmp(percent(tokens(100), TokenlessProduction)))

	require.ErrorIs(g.Kick(ctx, bob), ErrKickNotNeeded)
	require.ErrorIs(g.Kick(ctx, alice), ErrKickNotAllowed)

	env.advance(3 * epoch.Week)
	require.NoError(g.Kick(ctx, alice))

	aliceWorking, err = g.WorkingBalance(alice)
	require.NoError(err)
	require.Zero(aliceWorking.Cmp(tokens(40)))

	workingSupply, err := g.WorkingSupply()
	require.NoError(err)
	require.Zero(workingSupply.Cmp(tokens(80)))
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	g := env.gauge

	alice := env.provider(t, g, tokens(100))
	require.NoError(g.Deposit(ctx, alice, alice, tokens(100), false))

	lpBalance, err := env.lp.BalanceOf(alice)
	require.NoError(err)
	require.True(lpBalance.IsZero())

	require.ErrorIs(g.Withdraw(ctx, alice, tokens(101), false), ErrInsufficientBalance)
	require.NoError(g.Withdraw(ctx, alice, tokens(100), false))

	balance, err := g.BalanceOf(alice)
	require.NoError(err)
	require.True(balance.IsZero())
	working, err := g.WorkingBalance(alice)
	require.NoError(err)
	require.True(working.IsZero())
	workingSupply, err := g.WorkingSupply()
	require.NoError(err)
	require.True(workingSupply.IsZero())
	totalSupply, err := g.TotalSupply()
	require.NoError(err)
	require.True(totalSupply.IsZero())

	lpBalance, err = env.lp.BalanceOf(alice)
	require.NoError(err)
	require.Zero(lpBalance.Cmp(tokens(100)))
}

func TestShareTransfers(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	g := env.gauge

	alice := env.provider(t, g, tokens(100))
	bob := ids.GenerateTestShortID()
	carol := ids.GenerateTestShortID()
	require.NoError(g.Deposit(ctx, alice, alice, tokens(100), false))

	require.NoError(g.Transfer(ctx, alice, bob, tokens(30)))
	require.ErrorIs(g.TransferFrom(ctx, carol, alice, carol, tokens(10)), ErrInsufficientAllowance)

	require.NoError(g.Approve(ctx, alice, carol, tokens(5)))
	require.NoError(g.IncreaseAllowance(ctx, alice, carol, tokens(10)))
	require.NoError(g.DecreaseAllowance(ctx, alice, carol, tokens(5)))
	require.NoError(g.TransferFrom(ctx, carol, alice, carol, tokens(10)))

	allowance, err := g.Allowance(alice, carol)
	require.NoError(err)
	require.True(allowance.IsZero())

	for addr, want := range map[ids.ShortID]uint64{alice: 60, bob: 30, carol: 10} {
		balance, err := g.BalanceOf(addr)
		require.NoError(err)
		require.Zero(balance.Cmp(tokens(want)))

		working, err := g.WorkingBalance(addr)
		require.NoError(err)
		require.Zero(working.Cmp(percent(tokens(want), TokenlessProduction)))
	}
}

func TestCheckpointIsIdempotent(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	g := env.gauge

	alice := env.provider(t, g, tokens(100))
	require.NoError(g.Deposit(ctx, alice, alice, tokens(100), false))
	env.advance(3 * epoch.Week)

	_, err := g.UserCheckpoint(ctx, alice, alice)
	require.NoError(err)
	period, err := g.Period()
	require.NoError(err)
	integral, err := g.IntegrateInvSupply(period)
	require.NoError(err)
	fraction, err := g.IntegrateFraction(alice)
	require.NoError(err)

	_, err = g.UserCheckpoint(ctx, env.minter.Address(), alice)
	require.NoError(err)
	period, err = g.Period()
	require.NoError(err)
	again, err := g.IntegrateInvSupply(period)
	require.NoError(err)
	require.Zero(integral.Cmp(again))

	fractionAgain, err := g.IntegrateFraction(alice)
	require.NoError(err)
	require.Zero(fraction.Cmp(fractionAgain))

	_, err = g.UserCheckpoint(ctx, ids.GenerateTestShortID(), alice)
	require.ErrorIs(err, ErrUnauthorized)
}

func TestKilledGaugeAccruesNothing(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	g := env.gauge

	alice := env.provider(t, g, tokens(100))
	require.NoError(g.Deposit(ctx, alice, alice, tokens(100), false))

	require.ErrorIs(g.SetKilled(ctx, alice, true), ErrNotAdmin)
	require.NoError(g.SetKilled(ctx, env.admin, true))

	env.advance(2 * epoch.Week)
	_, err := g.UserCheckpoint(ctx, alice, alice)
	require.NoError(err)

	fraction, err := g.IntegrateFraction(alice)
	require.NoError(err)
	require.True(fraction.IsZero())
}

func TestReentrancyIsRejected(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)

	lp := &reentrantToken{Ledger: env.lp}
	g := env.newGauge(t, lp)
	lp.gauge = g

	alice := env.provider(t, g, tokens(100))
	require.ErrorIs(g.Deposit(ctx, alice, alice, tokens(50), false), ErrReentrant)

	balance, err := g.BalanceOf(alice)
	require.NoError(err)
	require.True(balance.IsZero())

	// The guard is released after the failed call.
	require.NoError(g.Deposit(ctx, alice, alice, tokens(50), false))
	balance, err = g.BalanceOf(alice)
	require.NoError(err)
	require.Zero(balance.Cmp(tokens(50)))
}

func TestRewardStreaming(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	g := env.gauge

	reward, err := token.NewLedger(env.rt, token.Config{
		Address:  ids.GenerateTestShortID(),
		Name:     "Reward",
		Symbol:   "RWD",
		Decimals: 18,
		Minter:   env.admin,
	})
	require.NoError(err)
	env.tokens[reward.Address()] = reward

	distributor := ids.GenerateTestShortID()
	require.NoError(reward.Mint(ctx, env.admin, distributor, tokens(1_400_000)))
	require.NoError(reward.Approve(ctx, distributor, g.Address(), tokens(1_400_000)))

	require.ErrorIs(g.AddReward(ctx, distributor, reward.Address(), distributor), ErrNotAdmin)
	require.NoError(g.AddReward(ctx, env.admin, reward.Address(), distributor))
	require.ErrorIs(g.AddReward(ctx, env.admin, reward.Address(), distributor), ErrRewardExists)

	alice := env.provider(t, g, tokens(100))
	require.NoError(g.Deposit(ctx, alice, alice, tokens(100), false))

	amount := tokens(700_000)
	require.ErrorIs(g.DepositRewardToken(ctx, alice, reward.Address(), amount), ErrNotDistributor)
	require.NoError(g.DepositRewardToken(ctx, distributor, reward.Address(), amount))

	week := uint256.NewInt(epoch.Week)
	firstRate := new(uint256.Int).Div(amount, week)
	data, err := g.RewardData(reward.Address())
	require.NoError(err)
	require.Zero(data.Rate.Cmp(firstRate))
	require.Equal(env.rt.Now()+epoch.Week, data.PeriodFinish)
	require.Equal(env.rt.Now(), data.LastUpdate)

	// Topping up halfway blends the leftover into the new rate.
	env.advance(epoch.Week / 2)
	require.NoError(g.DepositRewardToken(ctx, distributor, reward.Address(), amount))

	leftover := new(uint256.Int).Mul(uint256.NewInt(epoch.Week-epoch.Week/2), firstRate)
	secondRate := new(uint256.Int).Add(amount, leftover)
	secondRate.Div(secondRate, week)
	data, err = g.RewardData(reward.Address())
	require.NoError(err)
	require.Zero(data.Rate.Cmp(secondRate))

	env.advance(2 * epoch.Week)
	streamed := new(uint256.Int).Mul(firstRate, uint256.NewInt(epoch.Week/2))
	streamed.Add(streamed, new(uint256.Int).Mul(secondRate, week))

	claimable, err := g.ClaimableReward(alice, reward.Address())
	require.NoError(err)
	require.False(claimable.Gt(streamed))
	require.True(new(uint256.Int).Sub(streamed, claimable).LtUint64(1_000))

	carol := ids.GenerateTestShortID()
	require.ErrorIs(g.ClaimRewards(ctx, carol, alice, carol), ErrCannotRedirect)
	require.NoError(g.SetRewardsReceiver(ctx, alice, carol))
	require.NoError(g.ClaimRewards(ctx, carol, alice, ids.ShortEmpty))

	received, err := reward.BalanceOf(carol)
	require.NoError(err)
	require.Zero(received.Cmp(claimable))

	claimed, err := g.ClaimedReward(alice, reward.Address())
	require.NoError(err)
	require.Zero(claimed.Cmp(claimable))

	claimable, err = g.ClaimableReward(alice, reward.Address())
	require.NoError(err)
	require.True(claimable.IsZero())
}

func TestRewardSlotsAreBounded(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	g := env.gauge

	distributor := ids.GenerateTestShortID()
	for i := 0; i <= MaxRewards; i++ {
		addr := ids.GenerateTestShortID()
		env.tokens[addr] = env.lp
		err := g.AddReward(ctx, env.admin, addr, distributor)
		if i < MaxRewards {
			require.NoError(err)
			continue
		}
		require.ErrorIs(err, ErrMaxRewards)
	}

	first, err := g.RewardTokens(0)
	require.NoError(err)
	newDistributor := ids.GenerateTestShortID()
	require.ErrorIs(g.SetRewardDistributor(ctx, newDistributor, first, newDistributor), ErrUnauthorized)
	require.NoError(g.SetRewardDistributor(ctx, distributor, first, newDistributor))

	data, err := g.RewardData(first)
	require.NoError(err)
	require.Equal(newDistributor, data.Distributor)
}
