// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mockable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClockSet(t *testing.T) {
	require := require.New(t)

	clock := Clock{}
	clock.Set(time.Unix(1_000_000, 0))
	require.Equal(uint64(1_000_000), clock.Unix())

	clock.Sync()
	require.Greater(clock.Unix(), uint64(1_000_000))
}

func TestClockAdvance(t *testing.T) {
	require := require.New(t)

	clock := Clock{}
	clock.Set(time.Unix(1_000_000, 0))
	clock.SetHeight(10)

	clock.Advance(7*24*time.Hour, 3)
	require.Equal(uint64(1_000_000+604800), clock.Unix())
	require.Equal(uint64(13), clock.Height())
}

func TestClockNegativeTime(t *testing.T) {
	clock := Clock{}
	clock.Set(time.Unix(-10, 0))
	require.Zero(t, clock.Unix())
}
