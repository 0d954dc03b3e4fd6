// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package escrow

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/vegauge/utils/timer/mockable"
	"github.com/luxfi/vegauge/vms/gaugevm/epoch"
	"github.com/luxfi/vegauge/vms/gaugevm/runtime"
	"github.com/luxfi/vegauge/vms/gaugevm/token"
)

// start is the beginning of a week.
var start = epoch.FloorWeek(1_700_000_000)

type testEnv struct {
	rt     *runtime.Runtime
	gov    *token.Ledger
	escrow *Escrow
	minter ids.ShortID
}

func newTestEnv(t *testing.T, maxWeeks int) *testEnv {
	clock := &mockable.Clock{}
	clock.Set(time.Unix(int64(start), 0))
	clock.SetHeight(100)
	rt := runtime.New(memdb.New(), clock, log.NoLog{})

	minter := ids.GenerateTestShortID()
	gov, err := token.NewLedger(rt, token.Config{
		Address:  ids.GenerateTestShortID(),
		Name:     "Governance",
		Symbol:   "GOV",
		Decimals: 18,
		Minter:   minter,
	})
	require.NoError(t, err)

	return &testEnv{
		rt:     rt,
		gov:    gov,
		escrow: New(rt, Config{Address: ids.GenerateTestShortID(), MaxWeeks: maxWeeks}, gov),
		minter: minter,
	}
}

// fund mints amount to a new account and approves the escrow.
func (env *testEnv) fund(t *testing.T, amount *uint256.Int) ids.ShortID {
	ctx := context.Background()
	addr := ids.GenerateTestShortID()
	require.NoError(t, env.gov.Mint(ctx, env.minter, addr, amount))
	require.NoError(t, env.gov.Approve(ctx, addr, env.escrow.Address(), new(uint256.Int).SetAllOne()))
	return addr
}

func (env *testEnv) advance(seconds uint64) {
	env.rt.Clock().Advance(time.Duration(seconds)*time.Second, seconds/12+1)
}

func tokens(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1_000_000_000_000_000_000))
}

func TestLockForOneWeek(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t, 0)
	amount := tokens(1000)
	alice := env.fund(t, amount)

	require.NoError(env.escrow.CreateLock(ctx, alice, amount, start+epoch.Week))

	slope := new(uint256.Int).Div(amount, uint256.NewInt(epoch.MaxLockTime))
	want := new(uint256.Int).Mul(slope, uint256.NewInt(epoch.Week))
	balance, err := env.escrow.BalanceOf(alice)
	require.NoError(err)
	require.Equal(want, balance)

	supply, err := env.escrow.TotalSupply()
	require.NoError(err)
	require.Equal(want, supply)

	locked, err := env.escrow.Supply()
	require.NoError(err)
	require.Equal(amount, locked)

	escrowBalance, err := env.gov.BalanceOf(env.escrow.Address())
	require.NoError(err)
	require.Equal(amount, escrowBalance)
}

func TestCreateLockValidation(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name       string
		amount     *uint256.Int
		unlockTime uint64
		wantErr    error
	}{
		{
			name:       "zero amount",
			amount:     new(uint256.Int),
			unlockTime: start + epoch.Week,
			wantErr:    ErrZeroValue,
		},
		{
			name:       "unlock in the past",
			amount:     tokens(1),
			unlockTime: start - epoch.Week,
			wantErr:    ErrInvalidUnlockTime,
		},
		{
			name:       "unlock rounds down to now",
			amount:     tokens(1),
			unlockTime: start + epoch.Week - 1,
			wantErr:    ErrInvalidUnlockTime,
		},
		{
			name:       "longer than four years",
			amount:     tokens(1),
			unlockTime: start + epoch.MaxLockTime + epoch.Week,
			wantErr:    ErrInvalidUnlockTime,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			env := newTestEnv(t, 0)
			alice := env.fund(t, tokens(10))
			err := env.escrow.CreateLock(ctx, alice, test.amount, test.unlockTime)
			require.ErrorIs(err, test.wantErr)

			globalEpoch, err := env.escrow.Epoch()
			require.NoError(err)
			require.Zero(globalEpoch)
		})
	}
}

func TestLockLifecycle(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t, 0)
	alice := env.fund(t, tokens(100))
	bob := env.fund(t, tokens(100))

	require.ErrorIs(env.escrow.IncreaseAmount(ctx, alice, tokens(1)), ErrNoLock)
	require.ErrorIs(env.escrow.DepositFor(ctx, bob, alice, tokens(1)), ErrNoLock)
	require.ErrorIs(env.escrow.Withdraw(ctx, alice), ErrNoLock)

	end := start + 4*epoch.Week
	require.NoError(env.escrow.CreateLock(ctx, alice, tokens(10), end))
	require.ErrorIs(env.escrow.CreateLock(ctx, alice, tokens(10), end), ErrLockExists)

	require.NoError(env.escrow.IncreaseAmount(ctx, alice, tokens(5)))
	require.NoError(env.escrow.DepositFor(ctx, bob, alice, tokens(5)))
	locked, err := env.escrow.Locked(alice)
	require.NoError(err)
	require.Equal(tokens(20), locked.Amount)
	require.Equal(end, locked.End)

	bobBalance, err := env.gov.BalanceOf(bob)
	require.NoError(err)
	require.Equal(tokens(95), bobBalance)

	require.ErrorIs(env.escrow.IncreaseUnlockTime(ctx, alice, end), ErrInvalidUnlockTime)
	require.ErrorIs(env.escrow.Withdraw(ctx, alice), ErrLockNotExpired)

	env.advance(4 * epoch.Week)
	require.ErrorIs(env.escrow.IncreaseAmount(ctx, alice, tokens(1)), ErrLockExpired)

	balance, err := env.escrow.BalanceOf(alice)
	require.NoError(err)
	require.True(balance.IsZero())

	// Alice put in 15 herself and Bob added 5 on her behalf.
	require.NoError(env.escrow.Withdraw(ctx, alice))
	aliceBalance, err := env.gov.BalanceOf(alice)
	require.NoError(err)
	require.Equal(tokens(105), aliceBalance)

	supply, err := env.escrow.Supply()
	require.NoError(err)
	require.True(supply.IsZero())

	// The lock can be created again after withdrawal.
	require.NoError(env.escrow.CreateLock(ctx, alice, tokens(10), start+8*epoch.Week))
}

func TestIncreaseUnlockTimeReschedulesSlope(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t, 0)
	alice := env.fund(t, tokens(100))

	oldEnd := start + 2*epoch.Week
	newEnd := start + 10*epoch.Week
	require.NoError(env.escrow.CreateLock(ctx, alice, tokens(100), oldEnd))

	slope, err := env.escrow.GetLastUserSlope(alice)
	require.NoError(err)
	scheduled, err := env.escrow.SlopeChanges(oldEnd)
	require.NoError(err)
	require.Zero(scheduled.Cmp(new(big.Int).Neg(slope)))

	require.NoError(env.escrow.IncreaseUnlockTime(ctx, alice, newEnd+epoch.Day))

	scheduled, err = env.escrow.SlopeChanges(oldEnd)
	require.NoError(err)
	require.Zero(scheduled.Sign())
	scheduled, err = env.escrow.SlopeChanges(newEnd)
	require.NoError(err)
	require.Zero(scheduled.Cmp(new(big.Int).Neg(slope)))

	end, err := env.escrow.LockedEnd(alice)
	require.NoError(err)
	require.Equal(newEnd, end)

	userEpoch, err := env.escrow.UserPointEpoch(alice)
	require.NoError(err)
	require.Equal(uint64(2), userEpoch)
	ts, err := env.escrow.UserPointHistoryTs(alice, userEpoch)
	require.NoError(err)
	require.Equal(start, ts)
}

func TestBalanceDecaysToZero(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t, 0)
	alice := env.fund(t, tokens(1000))
	end := start + 52*epoch.Week
	require.NoError(env.escrow.CreateLock(ctx, alice, tokens(1000), end))

	previous, err := env.escrow.BalanceOfAtTime(alice, start)
	require.NoError(err)
	require.False(previous.IsZero())
	for ts := start + epoch.Day; ts < end; ts += 3 * epoch.Day {
		balance, err := env.escrow.BalanceOfAtTime(alice, ts)
		require.NoError(err)
		require.False(balance.Gt(previous))
		previous = balance
	}
	for _, ts := range []uint64{end, end + 1, end + epoch.Year} {
		balance, err := env.escrow.BalanceOfAtTime(alice, ts)
		require.NoError(err)
		require.True(balance.IsZero())
	}

	balance, err := env.escrow.BalanceOfAtTime(alice, start-1)
	require.NoError(err)
	require.True(balance.IsZero())
}

func TestTotalSupplyIsSumOfBalances(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t, 0)
	alice := env.fund(t, tokens(1000))
	bob := env.fund(t, tokens(1000))
	carol := env.fund(t, tokens(1000))

	require.NoError(env.escrow.CreateLock(ctx, alice, tokens(1000), start+52*epoch.Week))
	env.advance(3*epoch.Day + 17)
	require.NoError(env.escrow.CreateLock(ctx, bob, tokens(500), start+104*epoch.Week))
	env.advance(2 * epoch.Week)
	require.NoError(env.escrow.CreateLock(ctx, carol, tokens(250), start+5*epoch.Week))
	require.NoError(env.escrow.IncreaseAmount(ctx, alice, tokens(100)))

	now := env.rt.Now()
	for _, ts := range []uint64{now, now + epoch.Day, start + 5*epoch.Week, start + 30*epoch.Week, start + 52*epoch.Week, start + 90*epoch.Week, start + 200*epoch.Week} {
		sum := new(uint256.Int)
		for _, addr := range []ids.ShortID{alice, bob, carol} {
			balance, err := env.escrow.BalanceOfAtTime(addr, ts)
			require.NoError(err)
			sum.Add(sum, balance)
		}
		supply, err := env.escrow.TotalSupplyAtTime(ts)
		require.NoError(err)
		require.Equal(sum, supply, "at %d", ts)
	}
}

func TestBlockQueries(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t, 0)
	alice := env.fund(t, tokens(1000))

	beforeLock := env.rt.Height()
	env.advance(epoch.Day)
	require.NoError(env.escrow.CreateLock(ctx, alice, tokens(1000), start+20*epoch.Week))
	lockHeight := env.rt.Height()

	env.advance(epoch.Week)
	_, err := env.escrow.Checkpoint(ctx)
	require.NoError(err)
	env.advance(epoch.Week)

	balance, err := env.escrow.BalanceOfAt(alice, beforeLock)
	require.NoError(err)
	require.True(balance.IsZero())

	balance, err = env.escrow.BalanceOfAt(alice, lockHeight)
	require.NoError(err)
	atLock, err := env.escrow.BalanceOfAtTime(alice, start+epoch.Day)
	require.NoError(err)
	require.Equal(atLock, balance)

	supply, err := env.escrow.TotalSupplyAt(lockHeight)
	require.NoError(err)
	require.Equal(atLock, supply)

	// Heights between points interpolate to a time inside the interval.
	mid := lockHeight + (env.rt.Height()-lockHeight)/2
	balance, err = env.escrow.BalanceOfAt(alice, mid)
	require.NoError(err)
	require.True(balance.Lt(atLock))
	now, err := env.escrow.BalanceOf(alice)
	require.NoError(err)
	require.True(balance.Gt(now))

	_, err = env.escrow.BalanceOfAt(alice, env.rt.Height()+1)
	require.ErrorIs(err, ErrFutureBlock)
	_, err = env.escrow.TotalSupplyAt(env.rt.Height()+1)
	require.ErrorIs(err, ErrFutureBlock)
}

func TestCheckpointCatchesUpInInstallments(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t, 3)
	alice := env.fund(t, tokens(100))
	bob := env.fund(t, tokens(100))
	require.NoError(env.escrow.CreateLock(ctx, alice, tokens(100), start+20*epoch.Week))

	env.advance(10 * epoch.Week)
	require.ErrorIs(env.escrow.CreateLock(ctx, bob, tokens(100), start+30*epoch.Week), ErrCheckpointIncomplete)
	locked, err := env.escrow.Locked(bob)
	require.NoError(err)
	require.True(locked.Amount.IsZero())

	calls := 0
	for {
		caughtUp, err := env.escrow.Checkpoint(ctx)
		require.NoError(err)
		calls++
		if caughtUp {
			break
		}
		require.Less(calls, 10)
	}
	require.Equal(4, calls)

	require.NoError(env.escrow.CreateLock(ctx, bob, tokens(100), start+30*epoch.Week))

	sum := new(uint256.Int)
	for _, addr := range []ids.ShortID{alice, bob} {
		balance, err := env.escrow.BalanceOf(addr)
		require.NoError(err)
		sum.Add(sum, balance)
	}
	supply, err := env.escrow.TotalSupply()
	require.NoError(err)
	require.Equal(sum, supply)
}

func TestSupplyWalkIsBoundedByMaxWeeks(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	supplies := func(maxWeeks int) (*uint256.Int, *uint256.Int) {
		env := newTestEnv(t, maxWeeks)
		alice := env.fund(t, tokens(100))
		require.NoError(env.escrow.CreateLock(ctx, alice, tokens(100), start+8*epoch.Week))

		at2, err := env.escrow.TotalSupplyAtTime(start + 2*epoch.Week)
		require.NoError(err)
		at4, err := env.escrow.TotalSupplyAtTime(start + 4*epoch.Week)
		require.NoError(err)
		return at2, at4
	}

	whole2, whole4 := supplies(0)
	bounded2, bounded4 := supplies(2)
	require.Equal(whole2, bounded2)
	require.Equal(-1, whole4.Cmp(whole2))

	// Two weeks of decay are folded in, the rest of the range is not.
	require.Equal(whole2, bounded4)
}

func TestFailedTransferRevertsLock(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t, 0)
	alice := ids.GenerateTestShortID()
	require.NoError(env.gov.Mint(ctx, env.minter, alice, tokens(10)))

	err := env.escrow.CreateLock(ctx, alice, tokens(10), start+epoch.Week)
	require.ErrorIs(err, token.ErrInsufficientAllowance)

	locked, err := env.escrow.Locked(alice)
	require.NoError(err)
	require.True(locked.Amount.IsZero())
	globalEpoch, err := env.escrow.Epoch()
	require.NoError(err)
	require.Zero(globalEpoch)
	supply, err := env.escrow.Supply()
	require.NoError(err)
	require.True(supply.IsZero())
}
