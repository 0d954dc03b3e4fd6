// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"context"
	"net/http"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/vegauge/vms/gaugevm/gauge"
)

type StakeArgs struct {
	Gauge  ids.ShortID `json:"gauge"`
	Caller ids.ShortID `json:"caller"`
	// For is the account credited by Deposit. Empty credits the caller.
	For          ids.ShortID `json:"for"`
	Amount       string      `json:"amount"`
	ClaimRewards bool        `json:"claimRewards"`
}

func (s *Service) gauge(r *http.Request, addr ids.ShortID, amount string, fn func(context.Context, *gauge.Gauge, *uint256.Int) error) error {
	return s.executeAmount(r, amount, func(ctx context.Context, v *uint256.Int) error {
		g, err := s.vm.GetGauge(addr)
		if err != nil {
			return err
		}
		return fn(ctx, g, v)
	})
}

func (s *Service) gaugeCall(r *http.Request, addr ids.ShortID, fn func(context.Context, *gauge.Gauge) error) error {
	return s.vm.Execute(r.Context(), func(ctx context.Context) error {
		g, err := s.vm.GetGauge(addr)
		if err != nil {
			return err
		}
		return fn(ctx, g)
	})
}

// Deposit stakes the caller's pool shares in a gauge.
func (s *Service) Deposit(r *http.Request, args *StakeArgs, _ *EmptyReply) error {
	s.called("deposit", "gauge", args.Gauge, "caller", args.Caller, "for", args.For, "amount", args.Amount)
	addr := args.For
	if addr == ids.ShortEmpty {
		addr = args.Caller
	}
	return s.gauge(r, args.Gauge, args.Amount, func(ctx context.Context, g *gauge.Gauge, amount *uint256.Int) error {
		return g.Deposit(ctx, args.Caller, addr, amount, args.ClaimRewards)
	})
}

// Withdraw unstakes the caller's pool shares.
func (s *Service) Withdraw(r *http.Request, args *StakeArgs, _ *EmptyReply) error {
	s.called("withdraw", "gauge", args.Gauge, "caller", args.Caller, "amount", args.Amount)
	return s.gauge(r, args.Gauge, args.Amount, func(ctx context.Context, g *gauge.Gauge, amount *uint256.Int) error {
		return g.Withdraw(ctx, args.Caller, amount, args.ClaimRewards)
	})
}

type GaugeShareArgs struct {
	Gauge  ids.ShortID `json:"gauge"`
	Caller ids.ShortID `json:"caller"`
	From   ids.ShortID `json:"from"`
	To     ids.ShortID `json:"to"`
	Amount string      `json:"amount"`
}

// GaugeTransfer moves staked shares, checkpointing both accounts.
func (s *Service) GaugeTransfer(r *http.Request, args *GaugeShareArgs, _ *EmptyReply) error {
	s.called("gaugeTransfer", "gauge", args.Gauge, "caller", args.Caller, "to", args.To)
	return s.gauge(r, args.Gauge, args.Amount, func(ctx context.Context, g *gauge.Gauge, amount *uint256.Int) error {
		return g.Transfer(ctx, args.Caller, args.To, amount)
	})
}

func (s *Service) GaugeTransferFrom(r *http.Request, args *GaugeShareArgs, _ *EmptyReply) error {
	s.called("gaugeTransferFrom", "gauge", args.Gauge, "caller", args.Caller, "from", args.From, "to", args.To)
	return s.gauge(r, args.Gauge, args.Amount, func(ctx context.Context, g *gauge.Gauge, amount *uint256.Int) error {
		return g.TransferFrom(ctx, args.Caller, args.From, args.To, amount)
	})
}

func (s *Service) GaugeApprove(r *http.Request, args *GaugeShareArgs, _ *EmptyReply) error {
	s.called("gaugeApprove", "gauge", args.Gauge, "caller", args.Caller, "spender", args.To)
	return s.gauge(r, args.Gauge, args.Amount, func(ctx context.Context, g *gauge.Gauge, amount *uint256.Int) error {
		return g.Approve(ctx, args.Caller, args.To, amount)
	})
}

func (s *Service) GaugeIncreaseAllowance(r *http.Request, args *GaugeShareArgs, _ *EmptyReply) error {
	s.called("gaugeIncreaseAllowance", "gauge", args.Gauge, "caller", args.Caller, "spender", args.To)
	return s.gauge(r, args.Gauge, args.Amount, func(ctx context.Context, g *gauge.Gauge, amount *uint256.Int) error {
		return g.IncreaseAllowance(ctx, args.Caller, args.To, amount)
	})
}

func (s *Service) GaugeDecreaseAllowance(r *http.Request, args *GaugeShareArgs, _ *EmptyReply) error {
	s.called("gaugeDecreaseAllowance", "gauge", args.Gauge, "caller", args.Caller, "spender", args.To)
	return s.gauge(r, args.Gauge, args.Amount, func(ctx context.Context, g *gauge.Gauge, amount *uint256.Int) error {
		return g.DecreaseAllowance(ctx, args.Caller, args.To, amount)
	})
}

type GaugeAccountArgs struct {
	Gauge   ids.ShortID `json:"gauge"`
	Caller  ids.ShortID `json:"caller"`
	Address ids.ShortID `json:"address"`
}

// UserCheckpoint brings Address's accrual up to date. The caller must be
// Address or the minter.
func (s *Service) UserCheckpoint(r *http.Request, args *GaugeAccountArgs, reply *CheckpointReply) error {
	s.called("userCheckpoint", "gauge", args.Gauge, "caller", args.Caller, "address", args.Address)
	return s.gaugeCall(r, args.Gauge, func(ctx context.Context, g *gauge.Gauge) error {
		var err error
		reply.CaughtUp, err = g.UserCheckpoint(ctx, args.Caller, args.Address)
		return err
	})
}

// ClaimableTokens returns the governance tokens Address could mint now.
func (s *Service) ClaimableTokens(r *http.Request, args *GaugeAccountArgs, reply *AmountReply) error {
	s.called("claimableTokens", "gauge", args.Gauge, "address", args.Address)
	return s.vm.Query(r.Context(), func(ctx context.Context) error {
		g, err := s.vm.GetGauge(args.Gauge)
		if err != nil {
			return err
		}
		v, err := g.ClaimableTokens(ctx, args.Address)
		if err != nil {
			return err
		}
		reply.Amount = v.Dec()
		return nil
	})
}

// Kick resets the boost of Address once its voting power lapsed.
func (s *Service) Kick(r *http.Request, args *GaugeAccountArgs, _ *EmptyReply) error {
	s.called("kick", "gauge", args.Gauge, "address", args.Address)
	return s.gaugeCall(r, args.Gauge, func(ctx context.Context, g *gauge.Gauge) error {
		return g.Kick(ctx, args.Address)
	})
}

type SetKilledArgs struct {
	Gauge  ids.ShortID `json:"gauge"`
	Caller ids.ShortID `json:"caller"`
	Killed bool        `json:"killed"`
}

// SetKilled stops or resumes emissions to a gauge. Admin only.
func (s *Service) SetKilled(r *http.Request, args *SetKilledArgs, _ *EmptyReply) error {
	s.called("setKilled", "gauge", args.Gauge, "caller", args.Caller, "killed", args.Killed)
	return s.gaugeCall(r, args.Gauge, func(ctx context.Context, g *gauge.Gauge) error {
		return g.SetKilled(ctx, args.Caller, args.Killed)
	})
}

type GaugeInfoReply struct {
	LPToken         ids.ShortID   `json:"lpToken"`
	TotalSupply     string        `json:"totalSupply"`
	WorkingSupply   string        `json:"workingSupply"`
	Period          uint64        `json:"period"`
	PeriodTimestamp uint64        `json:"periodTimestamp"`
	InvSupply       string        `json:"integrateInvSupply"`
	InflationRate   string        `json:"inflationRate"`
	FutureEpochTime uint64        `json:"futureEpochTime"`
	IsKilled        bool          `json:"isKilled"`
	RewardTokens    []ids.ShortID `json:"rewardTokens"`
}

// GetGaugeInfo returns the gauge-wide accumulators.
func (s *Service) GetGaugeInfo(_ *http.Request, args *GaugeArgs, reply *GaugeInfoReply) error {
	s.called("getGaugeInfo", "gauge", args.Gauge)
	return s.vm.View(func() error {
		g, err := s.vm.GetGauge(args.Gauge)
		if err != nil {
			return err
		}
		reply.LPToken = g.LPToken()
		supply, err := g.TotalSupply()
		if err != nil {
			return err
		}
		working, err := g.WorkingSupply()
		if err != nil {
			return err
		}
		period, err := g.Period()
		if err != nil {
			return err
		}
		periodTs, err := g.PeriodTimestamp(period)
		if err != nil {
			return err
		}
		invSupply, err := g.IntegrateInvSupply(period)
		if err != nil {
			return err
		}
		rate, err := g.InflationRate()
		if err != nil {
			return err
		}
		future, err := g.FutureEpochTime()
		if err != nil {
			return err
		}
		killed, err := g.IsKilled()
		if err != nil {
			return err
		}
		n, err := g.RewardCount()
		if err != nil {
			return err
		}
		rewards := make([]ids.ShortID, 0, n)
		for i := uint64(0); i < n; i++ {
			t, err := g.RewardTokens(i)
			if err != nil {
				return err
			}
			rewards = append(rewards, t)
		}

		reply.TotalSupply = supply.Dec()
		reply.WorkingSupply = working.Dec()
		reply.Period = period
		reply.PeriodTimestamp = periodTs
		reply.InvSupply = invSupply.Dec()
		reply.InflationRate = rate.Dec()
		reply.FutureEpochTime = future
		reply.IsKilled = killed
		reply.RewardTokens = rewards
		return nil
	})
}

type GaugeAccountReply struct {
	Balance           string      `json:"balance"`
	WorkingBalance    string      `json:"workingBalance"`
	IntegrateFraction string      `json:"integrateFraction"`
	InvSupplyOf       string      `json:"integrateInvSupplyOf"`
	CheckpointOf      uint64      `json:"integrateCheckpointOf"`
	Minted            string      `json:"minted"`
	RewardsReceiver   ids.ShortID `json:"rewardsReceiver"`
}

// GetGaugeAccount returns Address's stake and accrual.
func (s *Service) GetGaugeAccount(_ *http.Request, args *GaugeAccountArgs, reply *GaugeAccountReply) error {
	s.called("getGaugeAccount", "gauge", args.Gauge, "address", args.Address)
	return s.vm.View(func() error {
		g, err := s.vm.GetGauge(args.Gauge)
		if err != nil {
			return err
		}
		balance, err := g.BalanceOf(args.Address)
		if err != nil {
			return err
		}
		working, err := g.WorkingBalance(args.Address)
		if err != nil {
			return err
		}
		fraction, err := g.IntegrateFraction(args.Address)
		if err != nil {
			return err
		}
		invSupplyOf, err := g.IntegrateInvSupplyOf(args.Address)
		if err != nil {
			return err
		}
		checkpointOf, err := g.IntegrateCheckpointOf(args.Address)
		if err != nil {
			return err
		}
		minted, err := s.vm.Minter().Minted(args.Address, args.Gauge)
		if err != nil {
			return err
		}
		receiver, err := g.RewardsReceiver(args.Address)
		if err != nil {
			return err
		}
		*reply = GaugeAccountReply{
			Balance:           balance.Dec(),
			WorkingBalance:    working.Dec(),
			IntegrateFraction: fraction.Dec(),
			InvSupplyOf:       invSupplyOf.Dec(),
			CheckpointOf:      checkpointOf,
			Minted:            minted.Dec(),
			RewardsReceiver:   receiver,
		}
		return nil
	})
}

// GetGaugeAllowance returns how many staked shares Address may move for
// Caller's account.
func (s *Service) GetGaugeAllowance(_ *http.Request, args *GaugeAccountArgs, reply *AmountReply) error {
	s.called("getGaugeAllowance", "gauge", args.Gauge, "owner", args.Caller, "spender", args.Address)
	return s.viewAmount(reply, func() (*uint256.Int, error) {
		g, err := s.vm.GetGauge(args.Gauge)
		if err != nil {
			return nil, err
		}
		return g.Allowance(args.Caller, args.Address)
	})
}

// ============================================
// Reward APIs
// ============================================

type RewardArgs struct {
	Gauge       ids.ShortID `json:"gauge"`
	Caller      ids.ShortID `json:"caller"`
	Token       ids.ShortID `json:"token"`
	Distributor ids.ShortID `json:"distributor"`
	Amount      string      `json:"amount"`
}

// AddReward adds a reward token streamed by Distributor. Admin only.
func (s *Service) AddReward(r *http.Request, args *RewardArgs, _ *EmptyReply) error {
	s.called("addReward", "gauge", args.Gauge, "caller", args.Caller, "token", args.Token, "distributor", args.Distributor)
	return s.gaugeCall(r, args.Gauge, func(ctx context.Context, g *gauge.Gauge) error {
		return g.AddReward(ctx, args.Caller, args.Token, args.Distributor)
	})
}

// SetRewardDistributor replaces the distributor of a reward token.
func (s *Service) SetRewardDistributor(r *http.Request, args *RewardArgs, _ *EmptyReply) error {
	s.called("setRewardDistributor", "gauge", args.Gauge, "caller", args.Caller, "token", args.Token, "distributor", args.Distributor)
	return s.gaugeCall(r, args.Gauge, func(ctx context.Context, g *gauge.Gauge) error {
		return g.SetRewardDistributor(ctx, args.Caller, args.Token, args.Distributor)
	})
}

// DepositRewardToken streams Amount of a reward token over the next week.
func (s *Service) DepositRewardToken(r *http.Request, args *RewardArgs, _ *EmptyReply) error {
	s.called("depositRewardToken", "gauge", args.Gauge, "caller", args.Caller, "token", args.Token, "amount", args.Amount)
	return s.gauge(r, args.Gauge, args.Amount, func(ctx context.Context, g *gauge.Gauge, amount *uint256.Int) error {
		return g.DepositRewardToken(ctx, args.Caller, args.Token, amount)
	})
}

type ReceiverArgs struct {
	Gauge    ids.ShortID `json:"gauge"`
	Caller   ids.ShortID `json:"caller"`
	Address  ids.ShortID `json:"address"`
	Receiver ids.ShortID `json:"receiver"`
}

// SetRewardsReceiver redirects the caller's future reward claims.
func (s *Service) SetRewardsReceiver(r *http.Request, args *ReceiverArgs, _ *EmptyReply) error {
	s.called("setRewardsReceiver", "gauge", args.Gauge, "caller", args.Caller, "receiver", args.Receiver)
	return s.gaugeCall(r, args.Gauge, func(ctx context.Context, g *gauge.Gauge) error {
		return g.SetRewardsReceiver(ctx, args.Caller, args.Receiver)
	})
}

// ClaimRewards pays Address's pending rewards. Empty Address claims for
// the caller.
func (s *Service) ClaimRewards(r *http.Request, args *ReceiverArgs, _ *EmptyReply) error {
	s.called("claimRewards", "gauge", args.Gauge, "caller", args.Caller, "address", args.Address, "receiver", args.Receiver)
	addr := args.Address
	if addr == ids.ShortEmpty {
		addr = args.Caller
	}
	return s.gaugeCall(r, args.Gauge, func(ctx context.Context, g *gauge.Gauge) error {
		return g.ClaimRewards(ctx, args.Caller, addr, args.Receiver)
	})
}

type RewardQueryArgs struct {
	Gauge   ids.ShortID `json:"gauge"`
	Token   ids.ShortID `json:"token"`
	Address ids.ShortID `json:"address"`
}

type RewardReply struct {
	Distributor  ids.ShortID `json:"distributor"`
	PeriodFinish uint64      `json:"periodFinish"`
	Rate         string      `json:"rate"`
	LastUpdate   uint64      `json:"lastUpdate"`
	Integral     string      `json:"integral"`
	// Per account, when Address is set.
	IntegralFor string `json:"integralFor"`
	Claimable   string `json:"claimable"`
	Claimed     string `json:"claimed"`
}

// GetReward returns the stream of a reward token and, when Address is set,
// Address's position in it.
func (s *Service) GetReward(_ *http.Request, args *RewardQueryArgs, reply *RewardReply) error {
	s.called("getReward", "gauge", args.Gauge, "token", args.Token, "address", args.Address)
	return s.vm.View(func() error {
		g, err := s.vm.GetGauge(args.Gauge)
		if err != nil {
			return err
		}
		data, err := g.RewardData(args.Token)
		if err != nil {
			return err
		}
		*reply = RewardReply{
			Distributor:  data.Distributor,
			PeriodFinish: data.PeriodFinish,
			Rate:         data.Rate.Dec(),
			LastUpdate:   data.LastUpdate,
			Integral:     data.Integral.Dec(),
			IntegralFor:  "0",
			Claimable:    "0",
			Claimed:      "0",
		}
		if args.Address == ids.ShortEmpty {
			return nil
		}
		integralFor, err := g.RewardIntegralFor(args.Token, args.Address)
		if err != nil {
			return err
		}
		claimable, err := g.ClaimableReward(args.Address, args.Token)
		if err != nil {
			return err
		}
		claimed, err := g.ClaimedReward(args.Address, args.Token)
		if err != nil {
			return err
		}
		reply.IntegralFor = integralFor.Dec()
		reply.Claimable = claimable.Dec()
		reply.Claimed = claimed.Dec()
		return nil
	})
}
