// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require := require.New(t)

	cfg := DefaultConfig()
	require.NoError(cfg.Validate())
	require.Equal(255, cfg.MaxVECheckpointWeeks)
	require.Equal(500, cfg.MaxControllerWeeks)
	require.Equal(500, cfg.MaxGaugeWeeks)
	require.Equal(20, cfg.MaxFeeWeeks)
	require.Equal(50, cfg.MaxFeeClaimWeeks)
	require.False(cfg.DevMode)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    func() Config
		expectedErr error
	}{
		{
			name:     "empty",
			input:    "",
			expected: DefaultConfig,
		},
		{
			name:  "overrides",
			input: `{"maxGaugeWeeks":3,"devMode":true,"blockTime":1000000000}`,
			expected: func() Config {
				cfg := DefaultConfig()
				cfg.MaxGaugeWeeks = 3
				cfg.DevMode = true
				cfg.BlockTime = time.Second
				return cfg
			},
		},
		{
			name:        "zero bound",
			input:       `{"maxFeeClaimWeeks":0}`,
			expectedErr: ErrInvalidBound,
		},
		{
			name:        "negative block time",
			input:       `{"blockTime":-1}`,
			expectedErr: ErrInvalidBlockTime,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			cfg, err := Parse([]byte(tt.input))
			require.ErrorIs(err, tt.expectedErr)
			if tt.expectedErr != nil {
				return
			}
			require.Equal(tt.expected(), cfg)
		})
	}
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	_, err := Parse([]byte("{"))
	require.Error(t, err)
}
