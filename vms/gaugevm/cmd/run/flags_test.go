// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/vegauge/vms/gaugevm/config"
)

func newFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	AddFlags(flags)
	return flags
}

func writeFile(t *testing.T, name, contents string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestParseFlagsDefaults(t *testing.T) {
	require := require.New(t)

	genesis := writeFile(t, "genesis.json", `{"timestamp":1}`)
	cfg, err := ParseFlags(newFlags(), []string{"--" + GenesisFileKey, genesis})
	require.NoError(err)
	require.Equal(config.DefaultConfig(), cfg.VM)
	require.Equal([]byte(`{"timestamp":1}`), cfg.Genesis)
	require.Equal("127.0.0.1", cfg.HTTPHost)
	require.Equal(uint16(9650), cfg.HTTPPort)
	require.Equal([]string{"*"}, cfg.AllowedOrigins)
	require.Equal(10*time.Second, cfg.ShutdownTimeout)
}

func TestParseFlagsRequiresGenesis(t *testing.T) {
	_, err := ParseFlags(newFlags(), nil)
	require.ErrorIs(t, err, errNoGenesisFile)
}

func TestParseFlagsConfigFile(t *testing.T) {
	require := require.New(t)

	genesis := writeFile(t, "genesis.json", `{}`)
	configFile := writeFile(t, "config.yaml", "maxGaugeWeeks: 10\nblockTime: 1m\ndevMode: true\n")
	cfg, err := ParseFlags(newFlags(), []string{
		"--" + GenesisFileKey, genesis,
		"--" + ConfigFileKey, configFile,
		"--" + HTTPPortKey, "9000",
	})
	require.NoError(err)

	expected := config.DefaultConfig()
	expected.MaxGaugeWeeks = 10
	expected.BlockTime = time.Minute
	expected.DevMode = true
	require.Equal(expected, cfg.VM)
	require.Equal(uint16(9000), cfg.HTTPPort)
}

func TestParseFlagsDevFlagOverridesFile(t *testing.T) {
	require := require.New(t)

	genesis := writeFile(t, "genesis.json", `{}`)
	configFile := writeFile(t, "config.json", `{"devMode": true}`)
	cfg, err := ParseFlags(newFlags(), []string{
		"--" + GenesisFileKey, genesis,
		"--" + ConfigFileKey, configFile,
		"--" + DevModeKey + "=false",
	})
	require.NoError(err)
	require.False(cfg.VM.DevMode)
}

func TestParseFlagsEnvironment(t *testing.T) {
	require := require.New(t)

	genesis := writeFile(t, "genesis.json", `{}`)
	t.Setenv("GAUGEVM_GENESIS_FILE", genesis)
	t.Setenv("GAUGEVM_HTTP_HOST", "0.0.0.0")

	cfg, err := ParseFlags(newFlags(), nil)
	require.NoError(err)
	require.Equal("0.0.0.0", cfg.HTTPHost)
}

func TestParseFlagsRejectsInvalidConfig(t *testing.T) {
	genesis := writeFile(t, "genesis.json", `{}`)
	configFile := writeFile(t, "config.json", `{"maxFeeWeeks": 0}`)
	_, err := ParseFlags(newFlags(), []string{
		"--" + GenesisFileKey, genesis,
		"--" + ConfigFileKey, configFile,
	})
	require.ErrorIs(t, err, config.ErrInvalidBound)
}
