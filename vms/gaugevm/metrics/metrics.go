// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/vegauge/utils/wrappers"
	"github.com/luxfi/vegauge/vms/gaugevm/runtime"
)

const (
	opLabel       = "op"
	resultLabel   = "result"
	eventLabel    = "event"
	contractLabel = "contract"

	resultCommitted = "committed"
	resultReverted  = "reverted"
)

var (
	_ Metrics          = (*metricsImpl)(nil)
	_ runtime.Observer = (*metricsImpl)(nil)

	// unit scales 1e18 fixed point amounts down for float gauges.
	unit = 1e18
)

type Metrics interface {
	runtime.Observer

	// SetVESupply records the total voting power.
	SetVESupply(v *uint256.Int)
	// SetTotalWeight records the controller's total weight.
	SetTotalWeight(v *uint256.Int)
	// SetWorkingSupply records the boosted supply of one gauge.
	SetWorkingSupply(gauge ids.ShortID, v *uint256.Int)
}

type metricsImpl struct {
	calls  *prometheus.CounterVec
	events *prometheus.CounterVec

	veSupply      prometheus.Gauge
	totalWeight   prometheus.Gauge
	workingSupply *prometheus.GaugeVec
}

func New(registerer prometheus.Registerer) (Metrics, error) {
	m := &metricsImpl{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calls",
				Help: "number of executed calls by outcome",
			},
			[]string{opLabel, resultLabel},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "events",
				Help: "number of committed events",
			},
			[]string{eventLabel},
		),
		veSupply: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ve_supply",
			Help: "total voting power in whole tokens",
		}),
		totalWeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "total_weight",
			Help: "controller total weight in whole tokens",
		}),
		workingSupply: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "working_supply",
				Help: "boosted gauge supply in whole tokens",
			},
			[]string{contractLabel},
		),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(m.calls),
		registerer.Register(m.events),
		registerer.Register(m.veSupply),
		registerer.Register(m.totalWeight),
		registerer.Register(m.workingSupply),
	)
	return m, errs.Err
}

func (m *metricsImpl) Executed(op string, err error) {
	result := resultCommitted
	if err != nil {
		result = resultReverted
	}
	m.calls.With(prometheus.Labels{
		opLabel:     op,
		resultLabel: result,
	}).Inc()
}

func (m *metricsImpl) Emitted(_ ids.ShortID, name string) {
	m.events.With(prometheus.Labels{
		eventLabel: name,
	}).Inc()
}

func (m *metricsImpl) SetVESupply(v *uint256.Int) {
	m.veSupply.Set(whole(v))
}

func (m *metricsImpl) SetTotalWeight(v *uint256.Int) {
	m.totalWeight.Set(whole(v))
}

func (m *metricsImpl) SetWorkingSupply(gauge ids.ShortID, v *uint256.Int) {
	m.workingSupply.With(prometheus.Labels{
		contractLabel: gauge.String(),
	}).Set(whole(v))
}

func whole(v *uint256.Int) float64 {
	return v.Float64() / unit
}
