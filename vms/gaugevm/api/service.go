// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api provides the JSON-RPC service of the gauge VM. Amounts are
// decimal strings of base units. Callers are named explicitly in every
// mutating request.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	safemath "github.com/luxfi/vegauge/utils/math"
	"github.com/luxfi/vegauge/vms/gaugevm/controller"
	"github.com/luxfi/vegauge/vms/gaugevm/escrow"
	"github.com/luxfi/vegauge/vms/gaugevm/feedistributor"
	"github.com/luxfi/vegauge/vms/gaugevm/gauge"
	"github.com/luxfi/vegauge/vms/gaugevm/minter"
	"github.com/luxfi/vegauge/vms/gaugevm/runtime"
	"github.com/luxfi/vegauge/vms/gaugevm/token"
	"github.com/luxfi/vegauge/vms/gaugevm/vesting"
)

var (
	ErrInvalidAmount   = safemath.ErrInvalidAmount
	ErrInvalidDuration = errors.New("invalid duration")
)

// VM is the host the service executes against.
type VM interface {
	// Execute runs fn as the single call of a new block.
	Execute(ctx context.Context, fn func(context.Context) error) error
	// Query runs fn without producing a block.
	Query(ctx context.Context, fn func(context.Context) error) error
	// View runs fn under the read lock.
	View(fn func() error) error
	AdvanceTime(ctx context.Context, d time.Duration) error

	Governance() *token.Inflation
	Escrow() *escrow.Escrow
	Controller() *controller.Controller
	Minter() *minter.Minter
	FeeDistributor() *feedistributor.FeeDistributor
	Ledger(addr ids.ShortID) (*token.Ledger, error)
	GetGauge(addr ids.ShortID) (*gauge.Gauge, error)
	Vesting(addr ids.ShortID) (*vesting.Escrow, error)
	Gauges() []ids.ShortID
	AddGauge(ctx context.Context, caller, addr, lpToken ids.ShortID, typeID uint64, weight *uint256.Int) error

	Events(limit int) []runtime.Event
	Status() Status
}

// Status is the state of the block clock.
type Status struct {
	Height    uint64 `json:"height"`
	Timestamp uint64 `json:"timestamp"`
	DevMode   bool   `json:"devMode"`
}

// Service provides the RPC API for the gauge VM.
type Service struct {
	vm  VM
	log log.Logger
}

// NewService creates a new API service.
func NewService(vm VM, logger log.Logger) *Service {
	return &Service{vm: vm, log: logger}
}

// EmptyReply is the reply of calls that return nothing.
type EmptyReply struct{}

// AmountReply carries one decimal amount.
type AmountReply struct {
	Amount string `json:"amount"`
}

// CheckpointReply reports whether a bounded checkpoint caught up with the
// current week.
type CheckpointReply struct {
	CaughtUp bool `json:"caughtUp"`
}

func (s *Service) called(method string, fields ...any) {
	s.log.Debug("API called", append([]any{"service", "gauge", "method", method}, fields...)...)
}

// executeAmount parses amount and runs fn with it in a new block.
func (s *Service) executeAmount(r *http.Request, amount string, fn func(context.Context, *uint256.Int) error) error {
	v, err := safemath.ParseU256(amount)
	if err != nil {
		return err
	}
	return s.vm.Execute(r.Context(), func(ctx context.Context) error {
		return fn(ctx, v)
	})
}

// viewAmount runs fn under the read lock and stores the amount it returns.
func (s *Service) viewAmount(reply *AmountReply, fn func() (*uint256.Int, error)) error {
	return s.vm.View(func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		reply.Amount = v.Dec()
		return nil
	})
}

// ============================================
// Status APIs
// ============================================

// GetStatus returns the block clock.
func (s *Service) GetStatus(_ *http.Request, _ *struct{}, reply *Status) error {
	s.called("getStatus")
	return s.vm.View(func() error {
		*reply = s.vm.Status()
		return nil
	})
}

type GetEventsArgs struct {
	// Limit bounds the number of events returned. Zero returns every
	// buffered event.
	Limit int `json:"limit"`
}

type GetEventsReply struct {
	Events []runtime.Event `json:"events"`
}

// GetEvents returns the most recent committed events, oldest first.
func (s *Service) GetEvents(_ *http.Request, args *GetEventsArgs, reply *GetEventsReply) error {
	s.called("getEvents", "limit", args.Limit)
	reply.Events = s.vm.Events(args.Limit)
	return nil
}

type AdvanceTimeArgs struct {
	Seconds uint64 `json:"seconds"`
}

// AdvanceTime moves the block clock forward. Dev mode only.
func (s *Service) AdvanceTime(r *http.Request, args *AdvanceTimeArgs, reply *Status) error {
	s.called("advanceTime", "seconds", args.Seconds)
	if args.Seconds == 0 {
		return ErrInvalidDuration
	}
	if err := s.vm.AdvanceTime(r.Context(), time.Duration(args.Seconds)*time.Second); err != nil {
		return err
	}
	return s.GetStatus(r, nil, reply)
}

// ============================================
// Token APIs
// ============================================

type TokenArgs struct {
	Token ids.ShortID `json:"token"`
}

type TokenReply struct {
	Name        string      `json:"name"`
	Symbol      string      `json:"symbol"`
	Decimals    uint8       `json:"decimals"`
	TotalSupply string      `json:"totalSupply"`
	Minter      ids.ShortID `json:"minter"`
}

// GetToken describes a token.
func (s *Service) GetToken(_ *http.Request, args *TokenArgs, reply *TokenReply) error {
	s.called("getToken", "token", args.Token)
	return s.vm.View(func() error {
		l, err := s.vm.Ledger(args.Token)
		if err != nil {
			return err
		}
		supply, err := l.TotalSupply()
		if err != nil {
			return err
		}
		minter, err := l.Minter()
		if err != nil {
			return err
		}
		*reply = TokenReply{
			Name:        l.Name(),
			Symbol:      l.Symbol(),
			Decimals:    l.Decimals(),
			TotalSupply: supply.Dec(),
			Minter:      minter,
		}
		return nil
	})
}

type BalanceArgs struct {
	Token   ids.ShortID `json:"token"`
	Owner   ids.ShortID `json:"owner"`
	Spender ids.ShortID `json:"spender"`
}

// GetBalance returns the balance of owner.
func (s *Service) GetBalance(_ *http.Request, args *BalanceArgs, reply *AmountReply) error {
	s.called("getBalance", "token", args.Token, "owner", args.Owner)
	return s.viewAmount(reply, func() (*uint256.Int, error) {
		l, err := s.vm.Ledger(args.Token)
		if err != nil {
			return nil, err
		}
		return l.BalanceOf(args.Owner)
	})
}

// GetAllowance returns how much spender may move out of owner's balance.
func (s *Service) GetAllowance(_ *http.Request, args *BalanceArgs, reply *AmountReply) error {
	s.called("getAllowance", "token", args.Token, "owner", args.Owner, "spender", args.Spender)
	return s.viewAmount(reply, func() (*uint256.Int, error) {
		l, err := s.vm.Ledger(args.Token)
		if err != nil {
			return nil, err
		}
		return l.Allowance(args.Owner, args.Spender)
	})
}

type TokenCallArgs struct {
	Token  ids.ShortID `json:"token"`
	Caller ids.ShortID `json:"caller"`
	// From is the owner debited by TransferFrom.
	From   ids.ShortID `json:"from"`
	To     ids.ShortID `json:"to"`
	Amount string      `json:"amount"`
}

func (s *Service) token(r *http.Request, args *TokenCallArgs, fn func(context.Context, *token.Ledger, *uint256.Int) error) error {
	return s.executeAmount(r, args.Amount, func(ctx context.Context, amount *uint256.Int) error {
		l, err := s.vm.Ledger(args.Token)
		if err != nil {
			return err
		}
		return fn(ctx, l, amount)
	})
}

// Transfer moves tokens from the caller to To.
func (s *Service) Transfer(r *http.Request, args *TokenCallArgs, _ *EmptyReply) error {
	s.called("transfer", "token", args.Token, "caller", args.Caller, "to", args.To)
	return s.token(r, args, func(ctx context.Context, l *token.Ledger, amount *uint256.Int) error {
		return l.Transfer(ctx, args.Caller, args.To, amount)
	})
}

// TransferFrom moves tokens from From to To using the caller's allowance.
func (s *Service) TransferFrom(r *http.Request, args *TokenCallArgs, _ *EmptyReply) error {
	s.called("transferFrom", "token", args.Token, "caller", args.Caller, "from", args.From, "to", args.To)
	return s.token(r, args, func(ctx context.Context, l *token.Ledger, amount *uint256.Int) error {
		return l.TransferFrom(ctx, args.Caller, args.From, args.To, amount)
	})
}

// Approve lets To spend Amount of the caller's tokens.
func (s *Service) Approve(r *http.Request, args *TokenCallArgs, _ *EmptyReply) error {
	s.called("approve", "token", args.Token, "caller", args.Caller, "spender", args.To)
	return s.token(r, args, func(ctx context.Context, l *token.Ledger, amount *uint256.Int) error {
		return l.Approve(ctx, args.Caller, args.To, amount)
	})
}

func (s *Service) IncreaseAllowance(r *http.Request, args *TokenCallArgs, _ *EmptyReply) error {
	s.called("increaseAllowance", "token", args.Token, "caller", args.Caller, "spender", args.To)
	return s.token(r, args, func(ctx context.Context, l *token.Ledger, amount *uint256.Int) error {
		return l.IncreaseAllowance(ctx, args.Caller, args.To, amount)
	})
}

func (s *Service) DecreaseAllowance(r *http.Request, args *TokenCallArgs, _ *EmptyReply) error {
	s.called("decreaseAllowance", "token", args.Token, "caller", args.Caller, "spender", args.To)
	return s.token(r, args, func(ctx context.Context, l *token.Ledger, amount *uint256.Int) error {
		return l.DecreaseAllowance(ctx, args.Caller, args.To, amount)
	})
}

// MintToken issues new units of a plain token. The caller must be its
// minter.
func (s *Service) MintToken(r *http.Request, args *TokenCallArgs, _ *EmptyReply) error {
	s.called("mintToken", "token", args.Token, "caller", args.Caller, "to", args.To)
	return s.token(r, args, func(ctx context.Context, l *token.Ledger, amount *uint256.Int) error {
		return l.Mint(ctx, args.Caller, args.To, amount)
	})
}

// BurnToken destroys the caller's tokens.
func (s *Service) BurnToken(r *http.Request, args *TokenCallArgs, _ *EmptyReply) error {
	s.called("burnToken", "token", args.Token, "caller", args.Caller)
	return s.token(r, args, func(ctx context.Context, l *token.Ledger, amount *uint256.Int) error {
		return l.Burn(ctx, args.Caller, amount)
	})
}

// ============================================
// Emission APIs
// ============================================

type EmissionReply struct {
	Rate            string `json:"rate"`
	MiningEpoch     int64  `json:"miningEpoch"`
	StartEpochTime  uint64 `json:"startEpochTime"`
	AvailableSupply string `json:"availableSupply"`
	TotalSupply     string `json:"totalSupply"`
}

// GetEmission describes the governance token's inflation schedule.
func (s *Service) GetEmission(_ *http.Request, _ *struct{}, reply *EmissionReply) error {
	s.called("getEmission")
	return s.vm.View(func() error {
		gov := s.vm.Governance()
		rate, err := gov.Rate()
		if err != nil {
			return err
		}
		epoch, err := gov.MiningEpoch()
		if err != nil {
			return err
		}
		start, err := gov.StartEpochTime()
		if err != nil {
			return err
		}
		available, err := gov.AvailableSupply()
		if err != nil {
			return err
		}
		supply, err := gov.TotalSupply()
		if err != nil {
			return err
		}
		*reply = EmissionReply{
			Rate:            rate.Dec(),
			MiningEpoch:     epoch,
			StartEpochTime:  start,
			AvailableSupply: available.Dec(),
			TotalSupply:     supply.Dec(),
		}
		return nil
	})
}

// UpdateMiningParameters starts the next emission epoch.
func (s *Service) UpdateMiningParameters(r *http.Request, _ *struct{}, _ *EmptyReply) error {
	s.called("updateMiningParameters")
	return s.vm.Execute(r.Context(), s.vm.Governance().UpdateMiningParameters)
}

type TimeframeArgs struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// MintableInTimeframe returns how much may be minted between Start and End.
func (s *Service) MintableInTimeframe(_ *http.Request, args *TimeframeArgs, reply *AmountReply) error {
	s.called("mintableInTimeframe", "start", args.Start, "end", args.End)
	return s.viewAmount(reply, func() (*uint256.Int, error) {
		return s.vm.Governance().MintableInTimeframe(args.Start, args.End)
	})
}
