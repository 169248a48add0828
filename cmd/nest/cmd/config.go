package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	storeLocalFS = "localfs"
	storeBadger  = "badger"
	storePebble  = "pebble"

	defaultStorePath = ".nest/blocks"
	defaultStatePath = ".nest/state.yaml"
)

// StoreConfig selects the block storage backend
type StoreConfig struct {
	Kind   string `json:"kind" yaml:"kind" mapstructure:"kind"`
	Path   string `json:"path" yaml:"path" mapstructure:"path"`
	Mirror string `json:"mirror,omitempty" yaml:"mirror,omitempty" mapstructure:"mirror"` // optional local directory receiving a copy of every block
}

// CLIConfig describes the CLI configuration.
type CLIConfig struct {
	Store      StoreConfig   `json:"store" yaml:"store" mapstructure:"store"`
	State      string        `json:"state" yaml:"state" mapstructure:"state"`
	LogLevel   string        `json:"logLevel" yaml:"log-level" mapstructure:"log-level"`
	SettleTime time.Duration `json:"settleTime" yaml:"settle-time" mapstructure:"settle-time"` // quiet period before publishing, pending events are published on exit
}

func newConfig() (*CLIConfig, error) {
	var config CLIConfig
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	switch config.Store.Kind {
	case storeLocalFS, storeBadger, storePebble:
	default:
		return nil, fmt.Errorf("unsupported store kind %q, expected one of %s, %s or %s", config.Store.Kind, storeLocalFS, storeBadger, storePebble)
	}
	return &config, nil
}
