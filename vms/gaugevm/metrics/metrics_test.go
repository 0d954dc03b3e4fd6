// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCallsByOutcome(t *testing.T) {
	require := require.New(t)

	m, err := New(prometheus.NewRegistry())
	require.NoError(err)
	impl := m.(*metricsImpl)

	m.Executed("escrow.createLock", nil)
	m.Executed("escrow.createLock", nil)
	m.Executed("escrow.createLock", errors.New("boom"))

	require.Equal(2.0, testutil.ToFloat64(impl.calls.WithLabelValues("escrow.createLock", resultCommitted)))
	require.Equal(1.0, testutil.ToFloat64(impl.calls.WithLabelValues("escrow.createLock", resultReverted)))
}

func TestEventsAndGauges(t *testing.T) {
	require := require.New(t)

	m, err := New(prometheus.NewRegistry())
	require.NoError(err)
	impl := m.(*metricsImpl)

	m.Emitted(ids.GenerateTestShortID(), "Deposit")
	require.Equal(1.0, testutil.ToFloat64(impl.events.WithLabelValues("Deposit")))

	m.SetVESupply(new(uint256.Int).Mul(uint256.NewInt(3), uint256.NewInt(1e18)))
	require.Equal(3.0, testutil.ToFloat64(impl.veSupply))

	gauge := ids.GenerateTestShortID()
	m.SetWorkingSupply(gauge, uint256.NewInt(5e17))
	require.Equal(0.5, testutil.ToFloat64(impl.workingSupply.WithLabelValues(gauge.String())))
}

func TestDoubleRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := New(registry)
	require.NoError(t, err)
	_, err = New(registry)
	require.Error(t, err)
}
