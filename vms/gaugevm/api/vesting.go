// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"context"
	"net/http"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	safemath "github.com/luxfi/vegauge/utils/math"
	"github.com/luxfi/vegauge/vms/gaugevm/vesting"
)

// ============================================
// Vesting APIs
// ============================================

type VestingArgs struct {
	Caller  ids.ShortID `json:"caller"`
	Vesting ids.ShortID `json:"vesting"`
	// Recipient is the account claimed for or paused.
	Recipient ids.ShortID `json:"recipient"`
	Amount    string      `json:"amount"`
}

// executeVesting runs fn against the vesting escrow in a new block.
func (s *Service) executeVesting(r *http.Request, addr ids.ShortID, fn func(context.Context, *vesting.Escrow) error) error {
	return s.vm.Execute(r.Context(), func(ctx context.Context) error {
		e, err := s.vm.Vesting(addr)
		if err != nil {
			return err
		}
		return fn(ctx, e)
	})
}

// VestingClaim pays Recipient everything vested and not claimed yet.
// Anyone may claim for anyone.
func (s *Service) VestingClaim(r *http.Request, args *VestingArgs, reply *AmountReply) error {
	s.called("vestingClaim", "vesting", args.Vesting, "recipient", args.Recipient)
	return s.executeVesting(r, args.Vesting, func(ctx context.Context, e *vesting.Escrow) error {
		v, err := e.Claim(ctx, args.Recipient)
		if err != nil {
			return err
		}
		reply.Amount = v.Dec()
		return nil
	})
}

// VestingAddTokens pulls Amount from the caller into the unallocated
// supply. Admin only.
func (s *Service) VestingAddTokens(r *http.Request, args *VestingArgs, _ *EmptyReply) error {
	s.called("vestingAddTokens", "caller", args.Caller, "vesting", args.Vesting, "amount", args.Amount)
	amount, err := safemath.ParseU256(args.Amount)
	if err != nil {
		return err
	}
	return s.executeVesting(r, args.Vesting, func(ctx context.Context, e *vesting.Escrow) error {
		return e.AddTokens(ctx, args.Caller, amount)
	})
}

type VestingFundArgs struct {
	Caller     ids.ShortID     `json:"caller"`
	Vesting    ids.ShortID     `json:"vesting"`
	Recipients []VestingAmount `json:"recipients"`
}

type VestingAmount struct {
	Address ids.ShortID `json:"address"`
	Amount  string      `json:"amount"`
}

// VestingFund puts unallocated tokens on the schedules of Recipients.
func (s *Service) VestingFund(r *http.Request, args *VestingFundArgs, _ *EmptyReply) error {
	s.called("vestingFund", "caller", args.Caller, "vesting", args.Vesting, "recipients", len(args.Recipients))
	recipients := make([]ids.ShortID, len(args.Recipients))
	amounts := make([]*uint256.Int, len(args.Recipients))
	for i, a := range args.Recipients {
		amount, err := safemath.ParseU256(a.Amount)
		if err != nil {
			return err
		}
		recipients[i] = a.Address
		amounts[i] = amount
	}
	return s.executeVesting(r, args.Vesting, func(ctx context.Context, e *vesting.Escrow) error {
		return e.Fund(ctx, args.Caller, recipients, amounts)
	})
}

// VestingToggleDisable pauses or resumes Recipient. Admin only.
func (s *Service) VestingToggleDisable(r *http.Request, args *VestingArgs, _ *EmptyReply) error {
	s.called("vestingToggleDisable", "caller", args.Caller, "vesting", args.Vesting, "recipient", args.Recipient)
	return s.executeVesting(r, args.Vesting, func(ctx context.Context, e *vesting.Escrow) error {
		return e.ToggleDisable(ctx, args.Caller, args.Recipient)
	})
}

// VestingDisableCanDisable removes the admin's ability to pause for good.
func (s *Service) VestingDisableCanDisable(r *http.Request, args *VestingArgs, _ *EmptyReply) error {
	s.called("vestingDisableCanDisable", "caller", args.Caller, "vesting", args.Vesting)
	return s.executeVesting(r, args.Vesting, func(ctx context.Context, e *vesting.Escrow) error {
		return e.DisableCanDisable(ctx, args.Caller)
	})
}

// VestingDisableFundAdmins leaves funding to the admin alone for good.
func (s *Service) VestingDisableFundAdmins(r *http.Request, args *VestingArgs, _ *EmptyReply) error {
	s.called("vestingDisableFundAdmins", "caller", args.Caller, "vesting", args.Vesting)
	return s.executeVesting(r, args.Vesting, func(ctx context.Context, e *vesting.Escrow) error {
		return e.DisableFundAdmins(ctx, args.Caller)
	})
}

type VestingReply struct {
	StartTime           uint64 `json:"startTime"`
	EndTime             uint64 `json:"endTime"`
	InitialLockedSupply string `json:"initialLockedSupply"`
	UnallocatedSupply   string `json:"unallocatedSupply"`
	VestedSupply        string `json:"vestedSupply"`
	LockedSupply        string `json:"lockedSupply"`
	CanDisable          bool   `json:"canDisable"`
	FundAdminsEnabled   bool   `json:"fundAdminsEnabled"`
}

// GetVesting returns the schedule and supplies of a vesting escrow.
func (s *Service) GetVesting(_ *http.Request, args *VestingArgs, reply *VestingReply) error {
	s.called("getVesting", "vesting", args.Vesting)
	return s.vm.View(func() error {
		e, err := s.vm.Vesting(args.Vesting)
		if err != nil {
			return err
		}
		if reply.StartTime, err = e.StartTime(); err != nil {
			return err
		}
		if reply.EndTime, err = e.EndTime(); err != nil {
			return err
		}
		if reply.CanDisable, err = e.CanDisable(); err != nil {
			return err
		}
		if reply.FundAdminsEnabled, err = e.FundAdminsEnabled(); err != nil {
			return err
		}
		amounts := []struct {
			dst *string
			get func() (*uint256.Int, error)
		}{
			{&reply.InitialLockedSupply, e.InitialLockedSupply},
			{&reply.UnallocatedSupply, e.UnallocatedSupply},
			{&reply.VestedSupply, e.VestedSupply},
			{&reply.LockedSupply, e.LockedSupply},
		}
		for _, a := range amounts {
			v, err := a.get()
			if err != nil {
				return err
			}
			*a.dst = v.Dec()
		}
		return nil
	})
}

type VestingAccountReply struct {
	InitialLocked string `json:"initialLocked"`
	Vested        string `json:"vested"`
	Locked        string `json:"locked"`
	Claimable     string `json:"claimable"`
	TotalClaimed  string `json:"totalClaimed"`
	DisabledAt    uint64 `json:"disabledAt"`
}

// GetVestingAccount returns Recipient's position in a vesting escrow.
// Claimable ignores a pause.
func (s *Service) GetVestingAccount(_ *http.Request, args *VestingArgs, reply *VestingAccountReply) error {
	s.called("getVestingAccount", "vesting", args.Vesting, "recipient", args.Recipient)
	return s.vm.View(func() error {
		e, err := s.vm.Vesting(args.Vesting)
		if err != nil {
			return err
		}
		addr := args.Recipient
		if reply.DisabledAt, err = e.DisabledAt(addr); err != nil {
			return err
		}
		amounts := []struct {
			dst *string
			get func(ids.ShortID) (*uint256.Int, error)
		}{
			{&reply.InitialLocked, e.InitialLocked},
			{&reply.Vested, e.VestedOf},
			{&reply.Locked, e.LockedOf},
			{&reply.Claimable, e.BalanceOf},
			{&reply.TotalClaimed, e.TotalClaimed},
		}
		for _, a := range amounts {
			v, err := a.get(addr)
			if err != nil {
				return err
			}
			*a.dst = v.Dec()
		}
		return nil
	})
}
