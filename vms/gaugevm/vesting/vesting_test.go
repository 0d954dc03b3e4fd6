// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vesting

import (
	"context"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	safemath "github.com/luxfi/vegauge/utils/math"
	"github.com/luxfi/vegauge/utils/timer/mockable"
	"github.com/luxfi/vegauge/vms/gaugevm/epoch"
	"github.com/luxfi/vegauge/vms/gaugevm/runtime"
	"github.com/luxfi/vegauge/vms/gaugevm/token"
)

var (
	now   = epoch.FloorWeek(1_700_000_000)
	start = now + epoch.Week
	end   = start + 4*epoch.Week
)

type testEnv struct {
	rt        *runtime.Runtime
	admin     ids.ShortID
	fundAdmin ids.ShortID
	token     *token.Ledger
	vesting   *Escrow
}

func newTestEnv(t *testing.T) *testEnv {
	require := require.New(t)

	clock := &mockable.Clock{}
	clock.Set(time.Unix(int64(now), 0))
	clock.SetHeight(1)
	rt := runtime.New(memdb.New(), clock, log.NoLog{})

	admin := ids.GenerateTestShortID()
	fundAdmin := ids.GenerateTestShortID()
	l, err := token.NewLedger(rt, token.Config{Address: ids.GenerateTestShortID(), Symbol: "GOV", Minter: admin})
	require.NoError(err)
	e, err := New(rt, Config{
		Address:    ids.GenerateTestShortID(),
		Admin:      admin,
		StartTime:  start,
		EndTime:    end,
		CanDisable: true,
		FundAdmins: []ids.ShortID{fundAdmin},
	}, l)
	require.NoError(err)

	return &testEnv{
		rt:        rt,
		admin:     admin,
		fundAdmin: fundAdmin,
		token:     l,
		vesting:   e,
	}
}

// deposit mints amount to the admin and adds it to the unallocated supply.
func (env *testEnv) deposit(t *testing.T, amount uint64) {
	require := require.New(t)
	ctx := context.Background()

	v := uint256.NewInt(amount)
	require.NoError(env.token.Mint(ctx, env.admin, env.admin, v))
	require.NoError(env.token.Approve(ctx, env.admin, env.vesting.Address(), v))
	require.NoError(env.vesting.AddTokens(ctx, env.admin, v))
}

func (env *testEnv) fund(caller ids.ShortID, amounts map[ids.ShortID]uint64) error {
	var (
		recipients []ids.ShortID
		values     []*uint256.Int
	)
	for addr, amount := range amounts {
		recipients = append(recipients, addr)
		values = append(values, uint256.NewInt(amount))
	}
	return env.vesting.Fund(context.Background(), caller, recipients, values)
}

func (env *testEnv) advanceTo(ts uint64) {
	env.rt.Clock().Advance(time.Duration(ts-env.rt.Now())*time.Second, 1)
}

func requireAmount(t *testing.T, expected uint64, got *uint256.Int, err error) {
	t.Helper()
	require.NoError(t, err)
	require.Equal(t, expected, got.Uint64())
}

func TestLinearVesting(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t)
	alice := ids.GenerateTestShortID()
	bob := ids.GenerateTestShortID()
	env.deposit(t, 1000)
	require.NoError(env.fund(env.admin, map[ids.ShortID]uint64{alice: 600, bob: 400}))

	unallocated, err := env.vesting.UnallocatedSupply()
	requireAmount(t, 0, unallocated, err)
	supply, err := env.vesting.InitialLockedSupply()
	requireAmount(t, 1000, supply, err)

	// Nothing vests before the start.
	claimed, err := env.vesting.Claim(ctx, alice)
	requireAmount(t, 0, claimed, err)
	locked, err := env.vesting.LockedOf(alice)
	requireAmount(t, 600, locked, err)

	env.advanceTo(start + 2*epoch.Week)
	vested, err := env.vesting.VestedOf(alice)
	requireAmount(t, 300, vested, err)
	locked, err = env.vesting.LockedOf(alice)
	requireAmount(t, 300, locked, err)
	vestedSupply, err := env.vesting.VestedSupply()
	requireAmount(t, 500, vestedSupply, err)
	lockedSupply, err := env.vesting.LockedSupply()
	requireAmount(t, 500, lockedSupply, err)

	claimed, err = env.vesting.Claim(ctx, alice)
	requireAmount(t, 300, claimed, err)
	balance, err := env.vesting.BalanceOf(alice)
	requireAmount(t, 0, balance, err)
	held, err := env.token.BalanceOf(alice)
	requireAmount(t, 300, held, err)

	env.advanceTo(end + epoch.Day)
	claimed, err = env.vesting.Claim(ctx, alice)
	requireAmount(t, 300, claimed, err)
	claimed, err = env.vesting.Claim(ctx, bob)
	requireAmount(t, 400, claimed, err)

	total, err := env.vesting.TotalClaimed(alice)
	requireAmount(t, 600, total, err)
	escrowed, err := env.token.BalanceOf(env.vesting.Address())
	requireAmount(t, 0, escrowed, err)

	events := env.rt.Events(0)
	require.Equal("Claim", events[len(events)-1].Name)
}

func TestFundAuthorization(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t)
	alice := ids.GenerateTestShortID()
	env.deposit(t, 100)

	require.NoError(env.fund(env.fundAdmin, map[ids.ShortID]uint64{alice: 10}))
	require.ErrorIs(env.fund(ids.GenerateTestShortID(), map[ids.ShortID]uint64{alice: 10}), ErrUnauthorized)

	require.ErrorIs(env.vesting.DisableFundAdmins(ctx, env.fundAdmin), ErrNotAdmin)
	require.NoError(env.vesting.DisableFundAdmins(ctx, env.admin))
	require.ErrorIs(env.fund(env.fundAdmin, map[ids.ShortID]uint64{alice: 10}), ErrUnauthorized)
	require.NoError(env.fund(env.admin, map[ids.ShortID]uint64{alice: 10}))

	// Funding more than is unallocated changes nothing.
	require.ErrorIs(env.fund(env.admin, map[ids.ShortID]uint64{alice: 81}), safemath.ErrUnderflow)
	locked, err := env.vesting.InitialLocked(alice)
	requireAmount(t, 20, locked, err)
	unallocated, err := env.vesting.UnallocatedSupply()
	requireAmount(t, 80, unallocated, err)

	err = env.vesting.Fund(ctx, env.admin, []ids.ShortID{alice}, nil)
	require.ErrorIs(err, ErrLengthMismatch)
	err = env.vesting.Fund(ctx, env.admin, make([]ids.ShortID, MaxRecipients+1), make([]*uint256.Int, MaxRecipients+1))
	require.ErrorIs(err, ErrTooManyRecipients)

	// An empty recipient ends the list.
	bob := ids.GenerateTestShortID()
	err = env.vesting.Fund(ctx, env.admin,
		[]ids.ShortID{ids.ShortEmpty, bob},
		[]*uint256.Int{uint256.NewInt(5), uint256.NewInt(5)},
	)
	require.NoError(err)
	locked, err = env.vesting.InitialLocked(bob)
	requireAmount(t, 0, locked, err)

	require.ErrorIs(env.vesting.AddTokens(ctx, env.fundAdmin, uint256.NewInt(1)), ErrNotAdmin)
}

func TestToggleDisablePausesVesting(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t)
	alice := ids.GenerateTestShortID()
	env.deposit(t, 400)
	require.NoError(env.fund(env.admin, map[ids.ShortID]uint64{alice: 400}))

	env.advanceTo(start + epoch.Week)
	require.ErrorIs(env.vesting.ToggleDisable(ctx, alice, alice), ErrNotAdmin)
	require.NoError(env.vesting.ToggleDisable(ctx, env.admin, alice))
	disabledAt, err := env.vesting.DisabledAt(alice)
	require.NoError(err)
	require.Equal(start+epoch.Week, disabledAt)

	// Claims stop at the pause.
	env.advanceTo(end)
	claimed, err := env.vesting.Claim(ctx, alice)
	requireAmount(t, 100, claimed, err)
	claimed, err = env.vesting.Claim(ctx, alice)
	requireAmount(t, 0, claimed, err)

	// Resuming releases the rest.
	require.NoError(env.vesting.ToggleDisable(ctx, env.admin, alice))
	claimed, err = env.vesting.Claim(ctx, alice)
	requireAmount(t, 300, claimed, err)

	require.NoError(env.vesting.DisableCanDisable(ctx, env.admin))
	require.ErrorIs(env.vesting.ToggleDisable(ctx, env.admin, alice), ErrCannotDisable)
}

func TestConfigVerify(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		expectedErr error
	}{
		{
			name: "valid",
			cfg:  Config{StartTime: start, EndTime: end},
		},
		{
			name:        "empty schedule",
			cfg:         Config{StartTime: start, EndTime: start},
			expectedErr: ErrInvalidSchedule,
		},
		{
			name: "too many fund admins",
			cfg: Config{
				StartTime:  start,
				EndTime:    end,
				FundAdmins: make([]ids.ShortID, MaxFundAdmins+1),
			},
			expectedErr: ErrTooManyFundAdmins,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.cfg.Verify(), tt.expectedErr)
		})
	}
}
