// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package epoch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFloorWeek(t *testing.T) {
	tests := []struct {
		name string
		t    uint64
		want uint64
		next uint64
	}{
		{name: "zero", t: 0, want: 0, next: Week},
		{name: "aligned", t: 10 * Week, want: 10 * Week, next: 11 * Week},
		{name: "mid week", t: 10*Week + 3*Day, want: 10 * Week, next: 11 * Week},
		{name: "last second", t: 11*Week - 1, want: 10 * Week, next: 11 * Week},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)
			require.Equal(test.want, FloorWeek(test.t))
			require.Equal(test.next, NextWeek(test.t))
		})
	}
}

func TestMaxLockTime(t *testing.T) {
	require.Equal(t, uint64(126144000), MaxLockTime)
}
