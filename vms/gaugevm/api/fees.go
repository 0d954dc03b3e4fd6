// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"context"
	"net/http"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
)

// ============================================
// Minter APIs
// ============================================

type MintArgs struct {
	Caller ids.ShortID   `json:"caller"`
	Gauge  ids.ShortID   `json:"gauge"`
	Gauges []ids.ShortID `json:"gauges"`
	// For is the account minted for by MintFor.
	For ids.ShortID `json:"for"`
}

// Mint issues the caller's accrued governance tokens from Gauge.
func (s *Service) Mint(r *http.Request, args *MintArgs, _ *EmptyReply) error {
	s.called("mint", "caller", args.Caller, "gauge", args.Gauge)
	return s.vm.Execute(r.Context(), func(ctx context.Context) error {
		return s.vm.Minter().Mint(ctx, args.Caller, args.Gauge)
	})
}

// MintMany mints from every gauge in Gauges.
func (s *Service) MintMany(r *http.Request, args *MintArgs, _ *EmptyReply) error {
	s.called("mintMany", "caller", args.Caller, "gauges", len(args.Gauges))
	return s.vm.Execute(r.Context(), func(ctx context.Context) error {
		return s.vm.Minter().MintMany(ctx, args.Caller, args.Gauges)
	})
}

// MintFor mints For's accrual from Gauge to For. For must have approved
// the caller.
func (s *Service) MintFor(r *http.Request, args *MintArgs, _ *EmptyReply) error {
	s.called("mintFor", "caller", args.Caller, "gauge", args.Gauge, "for", args.For)
	return s.vm.Execute(r.Context(), func(ctx context.Context) error {
		return s.vm.Minter().MintFor(ctx, args.Caller, args.Gauge, args.For)
	})
}

type ApproveMintArgs struct {
	Caller ids.ShortID `json:"caller"`
	Minter ids.ShortID `json:"minter"`
}

// ToggleApproveMint flips whether Minter may mint for the caller.
func (s *Service) ToggleApproveMint(r *http.Request, args *ApproveMintArgs, _ *EmptyReply) error {
	s.called("toggleApproveMint", "caller", args.Caller, "minter", args.Minter)
	return s.vm.Execute(r.Context(), func(ctx context.Context) error {
		return s.vm.Minter().ToggleApproveMint(ctx, args.Caller, args.Minter)
	})
}

type MintedArgs struct {
	User   ids.ShortID `json:"user"`
	Gauge  ids.ShortID `json:"gauge"`
	Minter ids.ShortID `json:"minter"`
}

type MintedReply struct {
	Minted  string `json:"minted"`
	Allowed bool   `json:"allowed"`
}

// GetMinted returns what User minted from Gauge and whether Minter may
// mint for User.
func (s *Service) GetMinted(_ *http.Request, args *MintedArgs, reply *MintedReply) error {
	s.called("getMinted", "user", args.User, "gauge", args.Gauge)
	return s.vm.View(func() error {
		m := s.vm.Minter()
		minted, err := m.Minted(args.User, args.Gauge)
		if err != nil {
			return err
		}
		allowed, err := m.AllowedToMintFor(args.Minter, args.User)
		if err != nil {
			return err
		}
		reply.Minted = minted.Dec()
		reply.Allowed = allowed
		return nil
	})
}

// ============================================
// Fee distribution APIs
// ============================================

// CheckpointToken spreads newly received fees over the weeks since the
// last token checkpoint.
func (s *Service) CheckpointToken(r *http.Request, args *CallerArgs, _ *EmptyReply) error {
	s.called("checkpointToken", "caller", args.Caller)
	return s.vm.Execute(r.Context(), func(ctx context.Context) error {
		return s.vm.FeeDistributor().CheckpointToken(ctx, args.Caller)
	})
}

// CheckpointTotalSupply records the weekly voting power supply.
func (s *Service) CheckpointTotalSupply(r *http.Request, _ *struct{}, _ *EmptyReply) error {
	s.called("checkpointTotalSupply")
	return s.vm.Execute(r.Context(), s.vm.FeeDistributor().CheckpointTotalSupply)
}

type ClaimFeesArgs struct {
	Address   ids.ShortID   `json:"address"`
	Addresses []ids.ShortID `json:"addresses"`
}

// ClaimFees pays Address's share of the distributed fees.
func (s *Service) ClaimFees(r *http.Request, args *ClaimFeesArgs, reply *AmountReply) error {
	s.called("claimFees", "address", args.Address)
	return s.vm.Execute(r.Context(), func(ctx context.Context) error {
		v, err := s.vm.FeeDistributor().Claim(ctx, args.Address)
		if err != nil {
			return err
		}
		reply.Amount = v.Dec()
		return nil
	})
}

// ClaimFeesMany claims for every account in Addresses.
func (s *Service) ClaimFeesMany(r *http.Request, args *ClaimFeesArgs, reply *AmountReply) error {
	s.called("claimFeesMany", "addresses", len(args.Addresses))
	return s.vm.Execute(r.Context(), func(ctx context.Context) error {
		v, err := s.vm.FeeDistributor().ClaimMany(ctx, args.Addresses)
		if err != nil {
			return err
		}
		reply.Amount = v.Dec()
		return nil
	})
}

type BurnFeesArgs struct {
	Caller ids.ShortID `json:"caller"`
	Amount string      `json:"amount"`
}

// BurnFees pulls Amount of the fee token from the caller into the
// distributor.
func (s *Service) BurnFees(r *http.Request, args *BurnFeesArgs, _ *EmptyReply) error {
	s.called("burnFees", "caller", args.Caller, "amount", args.Amount)
	return s.executeAmount(r, args.Amount, func(ctx context.Context, amount *uint256.Int) error {
		return s.vm.FeeDistributor().Burn(ctx, args.Caller, amount)
	})
}

// ToggleAllowCheckpointToken flips whether anyone may checkpoint fees.
// Admin only.
func (s *Service) ToggleAllowCheckpointToken(r *http.Request, args *CallerArgs, _ *EmptyReply) error {
	s.called("toggleAllowCheckpointToken", "caller", args.Caller)
	return s.vm.Execute(r.Context(), func(ctx context.Context) error {
		return s.vm.FeeDistributor().ToggleAllowCheckpointToken(ctx, args.Caller)
	})
}

// KillFeeDistributor sends every fee to the emergency return and stops
// claims. Admin only.
func (s *Service) KillFeeDistributor(r *http.Request, args *CallerArgs, _ *EmptyReply) error {
	s.called("killFeeDistributor", "caller", args.Caller)
	return s.vm.Execute(r.Context(), func(ctx context.Context) error {
		return s.vm.FeeDistributor().KillMe(ctx, args.Caller)
	})
}

type FeeDistributorReply struct {
	StartTime          uint64 `json:"startTime"`
	TimeCursor         uint64 `json:"timeCursor"`
	LastTokenTime      uint64 `json:"lastTokenTime"`
	TokenLastBalance   string `json:"tokenLastBalance"`
	CanCheckpointToken bool   `json:"canCheckpointToken"`
	IsKilled           bool   `json:"isKilled"`
}

// GetFeeDistributor returns the distributor's cursors.
func (s *Service) GetFeeDistributor(_ *http.Request, _ *struct{}, reply *FeeDistributorReply) error {
	s.called("getFeeDistributor")
	return s.vm.View(func() error {
		f := s.vm.FeeDistributor()
		start, err := f.StartTime()
		if err != nil {
			return err
		}
		cursor, err := f.TimeCursor()
		if err != nil {
			return err
		}
		lastTokenTime, err := f.LastTokenTime()
		if err != nil {
			return err
		}
		balance, err := f.TokenLastBalance()
		if err != nil {
			return err
		}
		canCheckpoint, err := f.CanCheckpointToken()
		if err != nil {
			return err
		}
		killed, err := f.IsKilled()
		if err != nil {
			return err
		}
		*reply = FeeDistributorReply{
			StartTime:          start,
			TimeCursor:         cursor,
			LastTokenTime:      lastTokenTime,
			TokenLastBalance:   balance.Dec(),
			CanCheckpointToken: canCheckpoint,
			IsKilled:           killed,
		}
		return nil
	})
}

type FeeWeekArgs struct {
	// Week is floored to a week boundary by the caller.
	Week uint64 `json:"week"`
}

type FeeWeekReply struct {
	Tokens   string `json:"tokens"`
	VESupply string `json:"veSupply"`
}

// GetFeeWeek returns the fees distributed in Week and the voting power
// they are shared by.
func (s *Service) GetFeeWeek(_ *http.Request, args *FeeWeekArgs, reply *FeeWeekReply) error {
	s.called("getFeeWeek", "week", args.Week)
	return s.vm.View(func() error {
		f := s.vm.FeeDistributor()
		tokens, err := f.TokensPerWeek(args.Week)
		if err != nil {
			return err
		}
		supply, err := f.VESupply(args.Week)
		if err != nil {
			return err
		}
		reply.Tokens = tokens.Dec()
		reply.VESupply = supply.Dec()
		return nil
	})
}

type FeeAccountArgs struct {
	Address ids.ShortID `json:"address"`
	// Time selects the timestamp VotingPower is evaluated at.
	Time uint64 `json:"time"`
}

type FeeAccountReply struct {
	TimeCursor  uint64 `json:"timeCursor"`
	UserEpoch   uint64 `json:"userEpoch"`
	VotingPower string `json:"votingPower"`
}

// GetFeeAccount returns Address's claim cursor and its voting power at
// Time as the distributor sees it.
func (s *Service) GetFeeAccount(_ *http.Request, args *FeeAccountArgs, reply *FeeAccountReply) error {
	s.called("getFeeAccount", "address", args.Address, "time", args.Time)
	return s.vm.View(func() error {
		f := s.vm.FeeDistributor()
		cursor, err := f.TimeCursorOf(args.Address)
		if err != nil {
			return err
		}
		userEpoch, err := f.UserEpochOf(args.Address)
		if err != nil {
			return err
		}
		power, err := f.VEForAt(args.Address, args.Time)
		if err != nil {
			return err
		}
		*reply = FeeAccountReply{
			TimeCursor:  cursor,
			UserEpoch:   userEpoch,
			VotingPower: power.Dec(),
		}
		return nil
	})
}
