// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/luxfi/vegauge/vms/gaugevm/config"
)

const (
	ConfigFileKey      = "config-file"
	GenesisFileKey     = "genesis-file"
	HTTPHostKey        = "http-host"
	HTTPPortKey        = "http-port"
	AllowedOriginsKey  = "http-allowed-origins"
	ShutdownTimeoutKey = "http-shutdown-timeout"
	DevModeKey         = "dev"

	envPrefix = "GAUGEVM"
)

var errNoGenesisFile = errors.New("genesis file is required")

func AddFlags(flags *pflag.FlagSet) {
	flags.String(ConfigFileKey, "", "Path to a VM config file (json, yaml or toml)")
	flags.String(GenesisFileKey, "", "Path to the genesis json file (required)")
	flags.String(HTTPHostKey, "127.0.0.1", "Address the API server listens on")
	flags.Uint16(HTTPPortKey, 9650, "Port the API server listens on")
	flags.StringSlice(AllowedOriginsKey, []string{"*"}, "Origins allowed to make cross-origin API calls")
	flags.Duration(ShutdownTimeoutKey, 10*time.Second, "Maximum time to wait for in-flight API calls on shutdown")
	flags.Bool(DevModeKey, false, "Enable the time travel API")
}

type Config struct {
	VM              config.Config
	Genesis         []byte
	HTTPHost        string
	HTTPPort        uint16
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// ParseFlags merges flags, GAUGEVM_* environment variables and the optional
// config file. Flags win over the environment, which wins over the file.
func ParseFlags(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, err
	}

	vmConfig := config.DefaultConfig()
	if path := v.GetString(ConfigFileKey); path != "" {
		fileConfig := viper.New()
		fileConfig.SetConfigFile(path)
		if err := fileConfig.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
		if err := fileConfig.Unmarshal(&vmConfig); err != nil {
			return nil, fmt.Errorf("failed to decode config file %q: %w", path, err)
		}
	}
	if v.IsSet(DevModeKey) {
		vmConfig.DevMode = v.GetBool(DevModeKey)
	}
	if err := vmConfig.Validate(); err != nil {
		return nil, err
	}

	genesisPath := v.GetString(GenesisFileKey)
	if genesisPath == "" {
		return nil, errNoGenesisFile
	}
	genesis, err := os.ReadFile(genesisPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read genesis file: %w", err)
	}

	return &Config{
		VM:              vmConfig,
		Genesis:         genesis,
		HTTPHost:        v.GetString(HTTPHostKey),
		HTTPPort:        uint16(v.GetUint(HTTPPortKey)),
		AllowedOrigins:  v.GetStringSlice(AllowedOriginsKey),
		ShutdownTimeout: v.GetDuration(ShutdownTimeoutKey),
	}, nil
}
