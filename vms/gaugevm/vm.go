// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gaugevm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	safemath "github.com/luxfi/vegauge/utils/math"
	"github.com/luxfi/vegauge/utils/timer/mockable"
	"github.com/luxfi/vegauge/vms/gaugevm/api"
	"github.com/luxfi/vegauge/vms/gaugevm/config"
	"github.com/luxfi/vegauge/vms/gaugevm/controller"
	"github.com/luxfi/vegauge/vms/gaugevm/escrow"
	"github.com/luxfi/vegauge/vms/gaugevm/feedistributor"
	"github.com/luxfi/vegauge/vms/gaugevm/gauge"
	"github.com/luxfi/vegauge/vms/gaugevm/metrics"
	"github.com/luxfi/vegauge/vms/gaugevm/minter"
	"github.com/luxfi/vegauge/vms/gaugevm/runtime"
	"github.com/luxfi/vegauge/vms/gaugevm/state"
	"github.com/luxfi/vegauge/vms/gaugevm/token"
	"github.com/luxfi/vegauge/vms/gaugevm/vesting"
)

const (
	// Name is the service name the JSON-RPC API is registered under.
	Name = "gauge"

	Version = "v0.3.0"
)

var (
	errNotInitialized = errors.New("VM not initialized")
	errShutdown       = errors.New("VM is shutting down")
	errDevModeOnly    = errors.New("only available in dev mode")
	errNoGenesis      = errors.New("no genesis")

	_ api.VM = (*VM)(nil)

	genesisKey = []byte("genesis")

	keyClockTime   = state.NewKey("clockTime")
	keyClockHeight = state.NewKey("clockHeight")
	keyGaugeLP     = state.NewKey("gaugeLPToken")
)

// VM hosts the voting escrow, the gauge controller, the gauges and their
// minter and fee distributor on one block clock. Every call is executed as
// its own block while holding the VM lock.
type VM struct {
	config.Config

	log        log.Logger
	registerer prometheus.Registerer
	metrics    metrics.Metrics

	// Lock serializes calls. Views take the read lock.
	lock sync.RWMutex

	clock   mockable.Clock
	rt      *runtime.Runtime
	baseDB  database.Database
	store   *state.Store
	genesis *Genesis

	gov            *token.Inflation
	escrow         *escrow.Escrow
	controller     *controller.Controller
	minter         *minter.Minter
	feeDistributor *feedistributor.FeeDistributor
	registry       *registry

	isInitialized bool
	shutdown      bool
}

// New returns an uninitialized VM. Metrics are registered with registerer
// when it is not nil.
func New(logger log.Logger, registerer prometheus.Registerer) *VM {
	return &VM{
		Config:     config.DefaultConfig(),
		log:        logger,
		registerer: registerer,
	}
}

// Initialize opens the VM on db. On first start genesisBytes deploys every
// component; afterwards the stored genesis is used and genesisBytes is
// ignored.
func (vm *VM) Initialize(
	ctx context.Context,
	db database.Database,
	genesisBytes []byte,
	configBytes []byte,
) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	cfg, err := config.Parse(configBytes)
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	vm.Config = cfg

	if vm.registerer != nil {
		if vm.metrics, err = metrics.New(vm.registerer); err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	vm.baseDB = db
	vm.rt = runtime.New(db, &vm.clock, vm.log)
	vm.rt.SetEventBufferSize(vm.EventBufferSize)
	if vm.metrics != nil {
		vm.rt.SetObserver(vm.metrics)
	}
	vm.store = state.New(vm.rt.DB("vm"))
	vm.registry = newRegistry()

	meta := vm.rt.DB("meta")
	stored, err := meta.Get(genesisKey)
	firstStart := errors.Is(err, database.ErrNotFound)
	switch {
	case firstStart:
		if len(genesisBytes) == 0 {
			return errNoGenesis
		}
	case err != nil:
		return err
	default:
		genesisBytes = stored
	}
	genesis, err := ParseGenesis(genesisBytes)
	if err != nil {
		return fmt.Errorf("failed to parse genesis: %w", err)
	}
	vm.genesis = genesis

	if firstStart {
		err = vm.rt.Atomic(ctx, "vm.genesis", func() error {
			if err := vm.startClock(); err != nil {
				return err
			}
			if err := meta.Put(genesisKey, genesisBytes); err != nil {
				return err
			}
			return vm.deploy(ctx)
		})
	} else {
		err = vm.restore(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to open components: %w", err)
	}

	vm.isInitialized = true
	vm.log.Info("gauge VM initialized",
		"height", vm.clock.Height(),
		"timestamp", vm.clock.Unix(),
		"gauges", len(vm.registry.order),
		"devMode", vm.DevMode,
	)
	return nil
}

// startClock freezes the block clock at the genesis timestamp.
func (vm *VM) startClock() error {
	ts := vm.genesis.Timestamp
	if ts == 0 {
		ts = uint64(time.Now().Unix())
	}
	vm.clock.Set(time.Unix(int64(ts), 0))
	vm.clock.SetHeight(0)
	return vm.saveClock()
}

func (vm *VM) saveClock() error {
	if err := vm.store.SetUint64(keyClockTime, vm.clock.Unix()); err != nil {
		return err
	}
	return vm.store.SetUint64(keyClockHeight, vm.clock.Height())
}

func (vm *VM) loadClock() error {
	ts, err := vm.store.Uint64(keyClockTime)
	if err != nil {
		return err
	}
	height, err := vm.store.Uint64(keyClockHeight)
	if err != nil {
		return err
	}
	vm.clock.Set(time.Unix(int64(ts), 0))
	vm.clock.SetHeight(height)
	return nil
}

// open constructs the components. Components initialize their own state
// the first time they are opened.
func (vm *VM) open(ctx context.Context) error {
	g := vm.genesis

	var err error
	vm.gov, err = token.NewInflation(vm.rt, token.InflationConfig{
		Config: token.Config{
			Address:  g.Governance.Address,
			Name:     g.Governance.Name,
			Symbol:   g.Governance.Symbol,
			Decimals: 18,
		},
		Admin: g.Admin,
	})
	if err != nil {
		return err
	}
	vm.registry.tokens[vm.gov.Address()] = vm.gov.Ledger

	for _, t := range g.Tokens {
		l, err := token.NewLedger(vm.rt, token.Config{
			Address:  t.Address,
			Name:     t.Name,
			Symbol:   t.Symbol,
			Decimals: t.Decimals,
			Minter:   g.Admin,
		})
		if err != nil {
			return err
		}
		vm.registry.tokens[t.Address] = l
	}

	vm.escrow = escrow.New(vm.rt, escrow.Config{
		Address:  g.Escrow,
		MaxWeeks: vm.MaxVECheckpointWeeks,
	}, vm.gov)

	vm.controller, err = controller.New(vm.rt, controller.Config{
		Address:  g.Controller,
		Admin:    g.Admin,
		MaxWeeks: vm.MaxControllerWeeks,
	}, vm.escrow)
	if err != nil {
		return err
	}

	vm.minter = minter.New(vm.rt, minter.Config{Address: g.Minter}, vm.gov, vm.controller, vm.registry)

	feeToken, err := vm.registry.ledger(g.FeeDistributor.Token)
	if err != nil {
		return err
	}
	vm.feeDistributor, err = feedistributor.New(vm.rt, feedistributor.Config{
		Address:         g.FeeDistributor.Address,
		Admin:           g.Admin,
		EmergencyReturn: g.FeeDistributor.EmergencyReturn,
		StartTime:       g.FeeDistributor.StartTime,
		MaxWeeks:        vm.MaxFeeWeeks,
		MaxClaimWeeks:   vm.MaxFeeClaimWeeks,
	}, vm.escrow, feeToken)
	if err != nil {
		return err
	}

	for _, v := range g.Vesting {
		vested, err := vm.registry.ledger(v.Token)
		if err != nil {
			return err
		}
		e, err := vesting.New(vm.rt, v.config(g.Admin), vested)
		if err != nil {
			return err
		}
		vm.registry.vesting[v.Address] = e
	}
	return nil
}

// deploy opens the components for the first time and applies the genesis
// allocations, types and gauges. It runs inside the genesis transaction.
func (vm *VM) deploy(ctx context.Context) error {
	if err := vm.open(ctx); err != nil {
		return err
	}
	g := vm.genesis

	if err := vm.gov.SetMinter(ctx, g.Admin, g.Minter); err != nil {
		return err
	}
	for _, t := range g.Tokens {
		l := vm.registry.tokens[t.Address]
		for _, a := range t.Allocations {
			amount, err := parseAmount(a.Amount)
			if err != nil {
				return err
			}
			if err := l.Mint(ctx, g.Admin, a.Address, amount); err != nil {
				return err
			}
		}
	}
	for _, v := range g.Vesting {
		if err := vm.fundVesting(ctx, v); err != nil {
			return err
		}
	}
	for _, t := range g.Types {
		weight, err := parseAmount(t.Weight)
		if err != nil {
			return err
		}
		if _, err := vm.controller.AddType(ctx, g.Admin, t.Name, weight); err != nil {
			return err
		}
	}
	for _, gg := range g.Gauges {
		weight, err := parseAmount(gg.Weight)
		if err != nil {
			return err
		}
		if err := vm.addGauge(ctx, g.Admin, gg.Address, gg.LPToken, gg.Type, weight); err != nil {
			return err
		}
	}
	return nil
}

// fundVesting moves the genesis recipients' tokens from the admin into the
// vesting escrow and funds them.
func (vm *VM) fundVesting(ctx context.Context, v VestingGenesis) error {
	admin := vm.genesis.Admin
	e := vm.registry.vesting[v.Address]
	vested, err := vm.registry.ledger(v.Token)
	if err != nil {
		return err
	}

	recipients := make([]ids.ShortID, 0, len(v.Recipients))
	amounts := make([]*uint256.Int, 0, len(v.Recipients))
	total := new(uint256.Int)
	for _, r := range v.Recipients {
		amount, err := parseAmount(r.Amount)
		if err != nil {
			return err
		}
		if total, err = safemath.AddU256(total, amount); err != nil {
			return err
		}
		recipients = append(recipients, r.Address)
		amounts = append(amounts, amount)
	}
	if err := vested.Approve(ctx, admin, v.Address, total); err != nil {
		return err
	}
	if err := e.AddTokens(ctx, admin, total); err != nil {
		return err
	}
	for i := 0; i < len(recipients); i += vesting.MaxRecipients {
		j := min(i+vesting.MaxRecipients, len(recipients))
		if err := e.Fund(ctx, admin, recipients[i:j], amounts[i:j]); err != nil {
			return err
		}
	}
	return nil
}

// restore reopens the components and every gauge added so far.
func (vm *VM) restore(ctx context.Context) error {
	if err := vm.loadClock(); err != nil {
		return err
	}
	if err := vm.open(ctx); err != nil {
		return err
	}
	n, err := vm.controller.NGauges()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		addr, err := vm.controller.Gauge(i)
		if err != nil {
			return err
		}
		lpToken, err := vm.store.Addr(keyGaugeLP.Addr(addr))
		if err != nil {
			return err
		}
		g, err := vm.openGauge(ctx, addr, lpToken)
		if err != nil {
			return err
		}
		vm.registry.addGauge(g)
	}
	return nil
}

func (vm *VM) openGauge(ctx context.Context, addr, lpToken ids.ShortID) (*gauge.Gauge, error) {
	lp, err := vm.registry.ledger(lpToken)
	if err != nil {
		return nil, err
	}
	return gauge.New(ctx, vm.rt, gauge.Config{
		Address:  addr,
		Admin:    vm.genesis.Admin,
		LPToken:  lpToken,
		MaxWeeks: vm.MaxGaugeWeeks,
	}, gauge.Deps{
		LPToken:    lp,
		Tokens:     vm.registry,
		Controller: vm.controller,
		Escrow:     vm.escrow,
		Emission:   vm.gov,
		Minter:     vm.minter,
	})
}

// addGauge deploys a gauge staking lpToken and registers it with the
// controller. Only the controller admin may add gauges.
func (vm *VM) addGauge(ctx context.Context, caller, addr, lpToken ids.ShortID, typeID uint64, weight *uint256.Int) error {
	if _, ok := vm.registry.gauges[addr]; ok {
		return fmt.Errorf("%w: %s", controller.ErrGaugeExists, addr)
	}
	var g *gauge.Gauge
	err := vm.rt.Atomic(ctx, "vm.addGauge", func() error {
		if err := vm.controller.AddGauge(ctx, caller, addr, typeID, weight); err != nil {
			return err
		}
		var err error
		if g, err = vm.openGauge(ctx, addr, lpToken); err != nil {
			return err
		}
		return vm.store.SetAddr(keyGaugeLP.Addr(addr), lpToken)
	})
	if err != nil {
		return err
	}
	vm.registry.addGauge(g)
	vm.log.Info("gauge added", "gauge", addr, "lpToken", lpToken, "type", typeID)
	return nil
}

// Shutdown persists the block clock and closes the database.
func (vm *VM) Shutdown(ctx context.Context) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.shutdown {
		return nil
	}
	vm.shutdown = true
	if !vm.isInitialized {
		return nil
	}
	if err := vm.rt.Atomic(ctx, "vm.shutdown", vm.saveClock); err != nil {
		return err
	}
	vm.log.Info("gauge VM shut down", "height", vm.clock.Height())
	return vm.baseDB.Close()
}

// CreateHandlers returns the JSON-RPC handler of the gauge service.
func (vm *VM) CreateHandlers(context.Context) (map[string]http.Handler, error) {
	server := rpc.NewServer()
	server.RegisterCodec(json2.NewCodec(), "application/json")
	server.RegisterCodec(json2.NewCodec(), "application/json;charset=UTF-8")
	if err := server.RegisterService(api.NewService(vm, vm.log), Name); err != nil {
		return nil, fmt.Errorf("failed to register %s service: %w", Name, err)
	}
	return map[string]http.Handler{
		"": server,
	}, nil
}

// Execute runs fn as the single call of a new block.
func (vm *VM) Execute(ctx context.Context, fn func(context.Context) error) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return err
	}
	prevTime, prevHeight := vm.clock.Time(), vm.clock.Height()
	vm.nextBlock()
	if err := fn(ctx); err != nil {
		// A failed call produces no block.
		vm.clock.Set(prevTime)
		vm.clock.SetHeight(prevHeight)
		return err
	}
	if err := vm.rt.Atomic(ctx, "vm.block", vm.saveClock); err != nil {
		return err
	}
	vm.updateMetrics()
	return nil
}

// Query runs fn under the write lock without producing a block. It serves
// reads that simulate a checkpoint first.
func (vm *VM) Query(ctx context.Context, fn func(context.Context) error) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return err
	}
	return fn(ctx)
}

// View runs fn under the read lock.
func (vm *VM) View(fn func() error) error {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if err := vm.ready(); err != nil {
		return err
	}
	return fn()
}

// AdvanceTime moves the block clock forward. It is only available in dev
// mode.
func (vm *VM) AdvanceTime(ctx context.Context, d time.Duration) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if err := vm.ready(); err != nil {
		return err
	}
	if !vm.DevMode {
		return errDevModeOnly
	}
	blocks := max(uint64(d/vm.BlockTime), 1)
	vm.clock.Advance(d, blocks)
	vm.log.Debug("time advanced", "by", d, "timestamp", vm.clock.Unix(), "height", vm.clock.Height())
	return vm.rt.Atomic(ctx, "vm.advanceTime", vm.saveClock)
}

// nextBlock moves the clock to the next block. In dev mode time advances
// by the configured block time, otherwise it follows the wall clock and
// never goes backwards.
func (vm *VM) nextBlock() {
	if vm.DevMode {
		vm.clock.Advance(vm.BlockTime, 1)
		return
	}
	now := time.Now()
	if now.After(vm.clock.Time()) {
		vm.clock.Set(now)
	}
	vm.clock.SetHeight(vm.clock.Height() + 1)
}

func (vm *VM) ready() error {
	switch {
	case vm.shutdown:
		return errShutdown
	case !vm.isInitialized:
		return errNotInitialized
	default:
		return nil
	}
}

func (vm *VM) updateMetrics() {
	if vm.metrics == nil {
		return
	}
	if supply, err := vm.escrow.TotalSupply(); err == nil {
		vm.metrics.SetVESupply(supply)
	} else {
		vm.log.Debug("couldn't read voting power", "error", err)
	}
	if weight, err := vm.controller.GetTotalWeight(); err == nil {
		vm.metrics.SetTotalWeight(weight)
	} else {
		vm.log.Debug("couldn't read total weight", "error", err)
	}
	for _, addr := range vm.registry.order {
		supply, err := vm.registry.gauges[addr].WorkingSupply()
		if err != nil {
			vm.log.Debug("couldn't read working supply", "gauge", addr, "error", err)
			continue
		}
		vm.metrics.SetWorkingSupply(addr, supply)
	}
}

func (vm *VM) Governance() *token.Inflation {
	return vm.gov
}

func (vm *VM) Escrow() *escrow.Escrow {
	return vm.escrow
}

func (vm *VM) Controller() *controller.Controller {
	return vm.controller
}

func (vm *VM) Minter() *minter.Minter {
	return vm.minter
}

func (vm *VM) FeeDistributor() *feedistributor.FeeDistributor {
	return vm.feeDistributor
}

// Ledger returns the token at addr, including the governance token.
func (vm *VM) Ledger(addr ids.ShortID) (*token.Ledger, error) {
	return vm.registry.ledger(addr)
}

// Vesting returns the vesting escrow at addr.
func (vm *VM) Vesting(addr ids.ShortID) (*vesting.Escrow, error) {
	return vm.registry.vestingEscrow(addr)
}

// GetGauge returns the gauge at addr.
func (vm *VM) GetGauge(addr ids.ShortID) (*gauge.Gauge, error) {
	return vm.registry.gauge(addr)
}

// Gauges lists gauge addresses in the order they were added.
func (vm *VM) Gauges() []ids.ShortID {
	return append([]ids.ShortID(nil), vm.registry.order...)
}

// AddGauge deploys and registers a gauge. It must be called from inside
// Execute.
func (vm *VM) AddGauge(ctx context.Context, caller, addr, lpToken ids.ShortID, typeID uint64, weight *uint256.Int) error {
	return vm.addGauge(ctx, caller, addr, lpToken, typeID, weight)
}

func (vm *VM) Events(limit int) []runtime.Event {
	return vm.rt.Events(limit)
}

// Status reports the block clock.
func (vm *VM) Status() api.Status {
	return api.Status{
		Height:    vm.clock.Height(),
		Timestamp: vm.clock.Unix(),
		DevMode:   vm.DevMode,
	}
}
