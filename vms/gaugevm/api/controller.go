// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"context"
	"net/http"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
)

type AddTypeArgs struct {
	Caller ids.ShortID `json:"caller"`
	Name   string      `json:"name"`
	Weight string      `json:"weight"`
}

type AddTypeReply struct {
	Type uint64 `json:"type"`
}

// AddType registers a gauge type. Admin only.
func (s *Service) AddType(r *http.Request, args *AddTypeArgs, reply *AddTypeReply) error {
	s.called("addType", "caller", args.Caller, "name", args.Name, "weight", args.Weight)
	return s.executeAmount(r, args.Weight, func(ctx context.Context, weight *uint256.Int) error {
		var err error
		reply.Type, err = s.vm.Controller().AddType(ctx, args.Caller, args.Name, weight)
		return err
	})
}

type TypeWeightArgs struct {
	Caller ids.ShortID `json:"caller"`
	Type   uint64      `json:"type"`
	Weight string      `json:"weight"`
}

// ChangeTypeWeight sets the weight of a gauge type from the next week.
// Admin only.
func (s *Service) ChangeTypeWeight(r *http.Request, args *TypeWeightArgs, _ *EmptyReply) error {
	s.called("changeTypeWeight", "caller", args.Caller, "type", args.Type, "weight", args.Weight)
	return s.executeAmount(r, args.Weight, func(ctx context.Context, weight *uint256.Int) error {
		return s.vm.Controller().ChangeTypeWeight(ctx, args.Caller, args.Type, weight)
	})
}

type AddGaugeArgs struct {
	Caller  ids.ShortID `json:"caller"`
	Gauge   ids.ShortID `json:"gauge"`
	LPToken ids.ShortID `json:"lpToken"`
	Type    uint64      `json:"type"`
	Weight  string      `json:"weight"`
}

// AddGauge deploys a gauge staking LPToken and registers it with the
// controller. Admin only.
func (s *Service) AddGauge(r *http.Request, args *AddGaugeArgs, _ *EmptyReply) error {
	s.called("addGauge", "caller", args.Caller, "gauge", args.Gauge, "lpToken", args.LPToken, "type", args.Type)
	return s.executeAmount(r, args.Weight, func(ctx context.Context, weight *uint256.Int) error {
		return s.vm.AddGauge(ctx, args.Caller, args.Gauge, args.LPToken, args.Type, weight)
	})
}

type GaugeWeightArgs struct {
	Caller ids.ShortID `json:"caller"`
	Gauge  ids.ShortID `json:"gauge"`
	Weight string      `json:"weight"`
}

// ChangeGaugeWeight sets the admin weight of a gauge from the next week.
// Admin only.
func (s *Service) ChangeGaugeWeight(r *http.Request, args *GaugeWeightArgs, _ *EmptyReply) error {
	s.called("changeGaugeWeight", "caller", args.Caller, "gauge", args.Gauge, "weight", args.Weight)
	return s.executeAmount(r, args.Weight, func(ctx context.Context, weight *uint256.Int) error {
		return s.vm.Controller().ChangeGaugeWeight(ctx, args.Caller, args.Gauge, weight)
	})
}

// CheckpointController folds the total and per type weights forward.
func (s *Service) CheckpointController(r *http.Request, _ *struct{}, reply *CheckpointReply) error {
	s.called("checkpointController")
	return s.vm.Execute(r.Context(), func(ctx context.Context) error {
		var err error
		reply.CaughtUp, err = s.vm.Controller().Checkpoint(ctx)
		return err
	})
}

type GaugeArgs struct {
	Gauge ids.ShortID `json:"gauge"`
}

// CheckpointGauge folds the weight of one gauge and the totals forward.
func (s *Service) CheckpointGauge(r *http.Request, args *GaugeArgs, reply *CheckpointReply) error {
	s.called("checkpointGauge", "gauge", args.Gauge)
	return s.vm.Execute(r.Context(), func(ctx context.Context) error {
		var err error
		reply.CaughtUp, err = s.vm.Controller().CheckpointGauge(ctx, args.Gauge)
		return err
	})
}

type VoteArgs struct {
	Caller ids.ShortID `json:"caller"`
	Gauge  ids.ShortID `json:"gauge"`
	// Weight is the share of the caller's voting power in bps.
	Weight uint64 `json:"weight"`
}

// VoteForGaugeWeights allocates a share of the caller's voting power to a
// gauge.
func (s *Service) VoteForGaugeWeights(r *http.Request, args *VoteArgs, _ *EmptyReply) error {
	s.called("voteForGaugeWeights", "caller", args.Caller, "gauge", args.Gauge, "weight", args.Weight)
	return s.vm.Execute(r.Context(), func(ctx context.Context) error {
		return s.vm.Controller().VoteForGaugeWeights(ctx, args.Caller, args.Gauge, args.Weight)
	})
}

type RelativeWeightArgs struct {
	Gauge ids.ShortID `json:"gauge"`
	// Time defaults to now.
	Time *uint64 `json:"time"`
	// Write checkpoints the gauge first.
	Write bool `json:"write"`
}

// GaugeRelativeWeight returns the share of emissions of a gauge, scaled by
// 1e18, in the week containing Time.
func (s *Service) GaugeRelativeWeight(r *http.Request, args *RelativeWeightArgs, reply *AmountReply) error {
	s.called("gaugeRelativeWeight", "gauge", args.Gauge, "write", args.Write)
	if !args.Write {
		return s.viewAmount(reply, func() (*uint256.Int, error) {
			c := s.vm.Controller()
			t := s.vm.Status().Timestamp
			if args.Time != nil {
				t = *args.Time
			}
			return c.GaugeRelativeWeight(args.Gauge, t)
		})
	}
	return s.vm.Execute(r.Context(), func(ctx context.Context) error {
		t := s.vm.Status().Timestamp
		if args.Time != nil {
			t = *args.Time
		}
		w, err := s.vm.Controller().GaugeRelativeWeightWrite(ctx, args.Gauge, t)
		if err != nil {
			return err
		}
		reply.Amount = w.Dec()
		return nil
	})
}

type WeightArgs struct {
	Gauge ids.ShortID `json:"gauge"`
	Type  uint64      `json:"type"`
}

// GetGaugeWeight returns the weight of Gauge at the last checkpoint.
func (s *Service) GetGaugeWeight(_ *http.Request, args *WeightArgs, reply *AmountReply) error {
	s.called("getGaugeWeight", "gauge", args.Gauge)
	return s.viewAmount(reply, func() (*uint256.Int, error) {
		return s.vm.Controller().GetGaugeWeight(args.Gauge)
	})
}

// GetTypeWeight returns the weight of Type.
func (s *Service) GetTypeWeight(_ *http.Request, args *WeightArgs, reply *AmountReply) error {
	s.called("getTypeWeight", "type", args.Type)
	return s.viewAmount(reply, func() (*uint256.Int, error) {
		return s.vm.Controller().GetTypeWeight(args.Type)
	})
}

// GetWeightsSumPerType returns the summed gauge weight of Type.
func (s *Service) GetWeightsSumPerType(_ *http.Request, args *WeightArgs, reply *AmountReply) error {
	s.called("getWeightsSumPerType", "type", args.Type)
	return s.viewAmount(reply, func() (*uint256.Int, error) {
		return s.vm.Controller().GetWeightsSumPerType(args.Type)
	})
}

// GetTotalWeight returns the total weight of all gauges.
func (s *Service) GetTotalWeight(_ *http.Request, _ *struct{}, reply *AmountReply) error {
	s.called("getTotalWeight")
	return s.viewAmount(reply, func() (*uint256.Int, error) {
		return s.vm.Controller().GetTotalWeight()
	})
}

type GaugeType struct {
	Type   uint64 `json:"type"`
	Name   string `json:"name"`
	Weight string `json:"weight"`
}

type GetTypesReply struct {
	Types []GaugeType `json:"types"`
}

// GetTypes lists the gauge types.
func (s *Service) GetTypes(_ *http.Request, _ *struct{}, reply *GetTypesReply) error {
	s.called("getTypes")
	return s.vm.View(func() error {
		c := s.vm.Controller()
		n, err := c.NGaugeTypes()
		if err != nil {
			return err
		}
		reply.Types = make([]GaugeType, 0, n)
		for i := uint64(0); i < n; i++ {
			name, err := c.GaugeTypeName(i)
			if err != nil {
				return err
			}
			weight, err := c.GetTypeWeight(i)
			if err != nil {
				return err
			}
			reply.Types = append(reply.Types, GaugeType{
				Type:   i,
				Name:   name,
				Weight: weight.Dec(),
			})
		}
		return nil
	})
}

type GaugeEntry struct {
	Gauge   ids.ShortID `json:"gauge"`
	LPToken ids.ShortID `json:"lpToken"`
	Type    uint64      `json:"type"`
	Weight  string      `json:"weight"`
}

type GetGaugesReply struct {
	Gauges []GaugeEntry `json:"gauges"`
}

// GetGauges lists the gauges in the order they were added.
func (s *Service) GetGauges(_ *http.Request, _ *struct{}, reply *GetGaugesReply) error {
	s.called("getGauges")
	return s.vm.View(func() error {
		c := s.vm.Controller()
		addrs := s.vm.Gauges()
		reply.Gauges = make([]GaugeEntry, 0, len(addrs))
		for _, addr := range addrs {
			g, err := s.vm.GetGauge(addr)
			if err != nil {
				return err
			}
			typeID, err := c.GaugeType(addr)
			if err != nil {
				return err
			}
			weight, err := c.GetGaugeWeight(addr)
			if err != nil {
				return err
			}
			reply.Gauges = append(reply.Gauges, GaugeEntry{
				Gauge:   addr,
				LPToken: g.LPToken(),
				Type:    typeID,
				Weight:  weight.Dec(),
			})
		}
		return nil
	})
}

type VoteQueryArgs struct {
	User  ids.ShortID `json:"user"`
	Gauge ids.ShortID `json:"gauge"`
}

type VoteReply struct {
	Slope    string `json:"slope"`
	Power    uint64 `json:"power"`
	End      uint64 `json:"end"`
	LastVote uint64 `json:"lastVote"`
	// UsedPower is the share of User's power allocated over all gauges.
	UsedPower uint64 `json:"usedPower"`
}

// GetVote returns User's vote for Gauge.
func (s *Service) GetVote(_ *http.Request, args *VoteQueryArgs, reply *VoteReply) error {
	s.called("getVote", "user", args.User, "gauge", args.Gauge)
	return s.vm.View(func() error {
		c := s.vm.Controller()
		slope, err := c.VoteUserSlopes(args.User, args.Gauge)
		if err != nil {
			return err
		}
		last, err := c.LastUserVote(args.User, args.Gauge)
		if err != nil {
			return err
		}
		used, err := c.VoteUserPower(args.User)
		if err != nil {
			return err
		}
		*reply = VoteReply{
			Slope:     slope.Slope.Dec(),
			Power:     slope.Power,
			End:       slope.End,
			LastVote:  last,
			UsedPower: used,
		}
		return nil
	})
}
