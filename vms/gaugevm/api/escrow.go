// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"context"
	"net/http"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/vegauge/vms/gaugevm/escrow"
)

type LockArgs struct {
	Caller ids.ShortID `json:"caller"`
	// For is the account credited by DepositFor.
	For        ids.ShortID `json:"for"`
	Amount     string      `json:"amount"`
	UnlockTime uint64      `json:"unlockTime"`
}

// CreateLock locks the caller's tokens until UnlockTime, rounded down to a
// week.
func (s *Service) CreateLock(r *http.Request, args *LockArgs, _ *EmptyReply) error {
	s.called("createLock", "caller", args.Caller, "amount", args.Amount, "unlockTime", args.UnlockTime)
	return s.executeAmount(r, args.Amount, func(ctx context.Context, amount *uint256.Int) error {
		return s.vm.Escrow().CreateLock(ctx, args.Caller, amount, args.UnlockTime)
	})
}

// IncreaseAmount adds to the caller's lock without changing its end.
func (s *Service) IncreaseAmount(r *http.Request, args *LockArgs, _ *EmptyReply) error {
	s.called("increaseAmount", "caller", args.Caller, "amount", args.Amount)
	return s.executeAmount(r, args.Amount, func(ctx context.Context, amount *uint256.Int) error {
		return s.vm.Escrow().IncreaseAmount(ctx, args.Caller, amount)
	})
}

// IncreaseUnlockTime extends the caller's lock.
func (s *Service) IncreaseUnlockTime(r *http.Request, args *LockArgs, _ *EmptyReply) error {
	s.called("increaseUnlockTime", "caller", args.Caller, "unlockTime", args.UnlockTime)
	return s.vm.Execute(r.Context(), func(ctx context.Context) error {
		return s.vm.Escrow().IncreaseUnlockTime(ctx, args.Caller, args.UnlockTime)
	})
}

// DepositFor adds the caller's tokens to the lock of For.
func (s *Service) DepositFor(r *http.Request, args *LockArgs, _ *EmptyReply) error {
	s.called("depositFor", "caller", args.Caller, "for", args.For, "amount", args.Amount)
	return s.executeAmount(r, args.Amount, func(ctx context.Context, amount *uint256.Int) error {
		return s.vm.Escrow().DepositFor(ctx, args.Caller, args.For, amount)
	})
}

type CallerArgs struct {
	Caller ids.ShortID `json:"caller"`
}

// WithdrawLock returns the caller's expired lock.
func (s *Service) WithdrawLock(r *http.Request, args *CallerArgs, _ *EmptyReply) error {
	s.called("withdrawLock", "caller", args.Caller)
	return s.vm.Execute(r.Context(), func(ctx context.Context) error {
		return s.vm.Escrow().Withdraw(ctx, args.Caller)
	})
}

// CheckpointEscrow folds the global voting power history forward.
func (s *Service) CheckpointEscrow(r *http.Request, _ *struct{}, reply *CheckpointReply) error {
	s.called("checkpointEscrow")
	return s.vm.Execute(r.Context(), func(ctx context.Context) error {
		var err error
		reply.CaughtUp, err = s.vm.Escrow().Checkpoint(ctx)
		return err
	})
}

type AccountArgs struct {
	Address ids.ShortID `json:"address"`
}

type LockReply struct {
	Amount    string `json:"amount"`
	End       uint64 `json:"end"`
	Slope     string `json:"slope"`
	UserEpoch uint64 `json:"userEpoch"`
}

// GetLock returns the lock of Address and the decay rate of its voting
// power.
func (s *Service) GetLock(_ *http.Request, args *AccountArgs, reply *LockReply) error {
	s.called("getLock", "address", args.Address)
	return s.vm.View(func() error {
		e := s.vm.Escrow()
		locked, err := e.Locked(args.Address)
		if err != nil {
			return err
		}
		slope, err := e.GetLastUserSlope(args.Address)
		if err != nil {
			return err
		}
		userEpoch, err := e.UserPointEpoch(args.Address)
		if err != nil {
			return err
		}
		*reply = LockReply{
			Amount:    locked.Amount.Dec(),
			End:       locked.End,
			Slope:     slope.String(),
			UserEpoch: userEpoch,
		}
		return nil
	})
}

type VotingPowerArgs struct {
	// Address is ignored by GetTotalVotingPower.
	Address ids.ShortID `json:"address"`
	// Time selects a timestamp. Height selects a past block and takes
	// precedence. Neither selects now.
	Time   *uint64 `json:"time"`
	Height *uint64 `json:"height"`
}

// GetVotingPower returns the voting power of Address.
func (s *Service) GetVotingPower(_ *http.Request, args *VotingPowerArgs, reply *AmountReply) error {
	s.called("getVotingPower", "address", args.Address)
	return s.viewAmount(reply, func() (*uint256.Int, error) {
		e := s.vm.Escrow()
		switch {
		case args.Height != nil:
			return e.BalanceOfAt(args.Address, *args.Height)
		case args.Time != nil:
			return e.BalanceOfAtTime(args.Address, *args.Time)
		default:
			return e.BalanceOf(args.Address)
		}
	})
}

// GetTotalVotingPower returns the total voting power.
func (s *Service) GetTotalVotingPower(_ *http.Request, args *VotingPowerArgs, reply *AmountReply) error {
	s.called("getTotalVotingPower")
	return s.viewAmount(reply, func() (*uint256.Int, error) {
		e := s.vm.Escrow()
		switch {
		case args.Height != nil:
			return e.TotalSupplyAt(*args.Height)
		case args.Time != nil:
			return e.TotalSupplyAtTime(*args.Time)
		default:
			return e.TotalSupply()
		}
	})
}

type EscrowReply struct {
	Supply string `json:"supply"`
	Epoch  uint64 `json:"epoch"`
	Last   Point  `json:"last"`
}

type Point struct {
	Bias  string `json:"bias"`
	Slope string `json:"slope"`
	Ts    uint64 `json:"ts"`
	Blk   uint64 `json:"blk"`
}

func newPoint(p escrow.Point) Point {
	return Point{
		Bias:  p.Bias.String(),
		Slope: p.Slope.String(),
		Ts:    p.Ts,
		Blk:   p.Blk,
	}
}

// GetEscrow returns the locked supply and the latest global point.
func (s *Service) GetEscrow(_ *http.Request, _ *struct{}, reply *EscrowReply) error {
	s.called("getEscrow")
	return s.vm.View(func() error {
		e := s.vm.Escrow()
		supply, err := e.Supply()
		if err != nil {
			return err
		}
		epoch, err := e.Epoch()
		if err != nil {
			return err
		}
		last, err := e.PointHistory(epoch)
		if err != nil {
			return err
		}
		*reply = EscrowReply{
			Supply: supply.Dec(),
			Epoch:  epoch,
			Last:   newPoint(last),
		}
		return nil
	})
}

type PointArgs struct {
	// Address selects an account's history. Empty selects the global one.
	Address ids.ShortID `json:"address"`
	Epoch   uint64      `json:"epoch"`
}

// GetPoint returns one point of a voting power history.
func (s *Service) GetPoint(_ *http.Request, args *PointArgs, reply *Point) error {
	s.called("getPoint", "address", args.Address, "epoch", args.Epoch)
	return s.vm.View(func() error {
		var (
			p   escrow.Point
			err error
		)
		if args.Address == ids.ShortEmpty {
			p, err = s.vm.Escrow().PointHistory(args.Epoch)
		} else {
			p, err = s.vm.Escrow().UserPointHistory(args.Address, args.Epoch)
		}
		if err != nil {
			return err
		}
		*reply = newPoint(p)
		return nil
	})
}

type TimeArgs struct {
	Time uint64 `json:"time"`
}

// GetSlopeChange returns the slope delta scheduled at Time.
func (s *Service) GetSlopeChange(_ *http.Request, args *TimeArgs, reply *AmountReply) error {
	s.called("getSlopeChange", "time", args.Time)
	return s.vm.View(func() error {
		v, err := s.vm.Escrow().SlopeChanges(args.Time)
		if err != nil {
			return err
		}
		reply.Amount = v.String()
		return nil
	})
}
