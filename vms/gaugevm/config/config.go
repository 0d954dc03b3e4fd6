// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config defines configuration types for the gauge VM.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/vegauge/utils/wrappers"
)

var (
	ErrInvalidBound     = errors.New("loop bound must be positive")
	ErrInvalidBlockTime = errors.New("block time must be positive")
)

// Config contains configuration parameters for the gauge VM.
type Config struct {
	// Catch-up bounds. A checkpoint folds at most this many weeks per call
	// and reports whether it caught up.

	// MaxVECheckpointWeeks bounds the voting escrow global checkpoint
	MaxVECheckpointWeeks int `json:"maxVECheckpointWeeks"`
	// MaxControllerWeeks bounds the controller weight folds
	MaxControllerWeeks int `json:"maxControllerWeeks"`
	// MaxGaugeWeeks bounds the weeks a gauge integrates per checkpoint
	MaxGaugeWeeks int `json:"maxGaugeWeeks"`
	// MaxFeeWeeks bounds the weeks filled by a fee token or supply checkpoint
	MaxFeeWeeks int `json:"maxFeeWeeks"`
	// MaxFeeClaimWeeks bounds the weeks one fee claim walks per account
	MaxFeeClaimWeeks int `json:"maxFeeClaimWeeks"`

	// EventBufferSize is the number of committed events kept for queries
	EventBufferSize int `json:"eventBufferSize"`

	// BlockTime is how far the dev server advances the clock per block
	BlockTime time.Duration `json:"blockTime"`

	// DevMode enables the time travel API
	DevMode bool `json:"devMode"`
}

// DefaultConfig returns the default configuration for the gauge VM.
func DefaultConfig() Config {
	return Config{
		MaxVECheckpointWeeks: 255,
		MaxControllerWeeks:   500,
		MaxGaugeWeeks:        500,
		MaxFeeWeeks:          20,
		MaxFeeClaimWeeks:     50,

		EventBufferSize: 1024,

		BlockTime: 2 * time.Second,

		DevMode: false,
	}
}

// Parse overlays the JSON in b on the defaults. Empty input yields the
// defaults.
func Parse(b []byte) (Config, error) {
	cfg := DefaultConfig()
	if len(b) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	errs := wrappers.Errs{}
	errs.Add(
		positive("maxVECheckpointWeeks", c.MaxVECheckpointWeeks),
		positive("maxControllerWeeks", c.MaxControllerWeeks),
		positive("maxGaugeWeeks", c.MaxGaugeWeeks),
		positive("maxFeeWeeks", c.MaxFeeWeeks),
		positive("maxFeeClaimWeeks", c.MaxFeeClaimWeeks),
	)
	if c.BlockTime <= 0 {
		errs.Add(fmt.Errorf("%w: %s", ErrInvalidBlockTime, c.BlockTime))
	}
	return errs.Err
}

func positive(name string, v int) error {
	if v <= 0 {
		return fmt.Errorf("%w: %s is %d", ErrInvalidBound, name, v)
	}
	return nil
}
