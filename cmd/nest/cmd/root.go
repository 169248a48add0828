// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nest",
	Short: "Nest is a versioned, content-addressed file system",
	Long: `Nest stores a public and a private tree of files in a content-addressed block store.

Every change produces a new data root: the CID of the whole file system.
Private files are encrypted, and only readable by holders of a capsule key.

The data root and the capsule keys of mounted private nodes are kept in a local state file.
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var config *CLIConfig

// used to patch over calls to os.Exit() during test
var osExit = os.Exit

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = color.New(color.FgRed).Fprintln(os.Stderr, err)
		osExit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	addLogLevelFlag(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetDefault("store.kind", storeLocalFS)
	viper.SetDefault("store.path", defaultStorePath)
	viper.SetDefault("state", defaultStatePath)
	viper.SetDefault("log-level", "error")
	viper.SetDefault("settle-time", "0s")

	if os.Getenv("NEST_CONFIG") != "" {
		viper.SetConfigFile(os.Getenv("NEST_CONFIG"))
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.nest")
		viper.AddConfigPath("/etc/nest")
		viper.SetConfigName("nest")
	}

	viper.SetEnvPrefix("nest")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		_, _ = fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	var err error
	config, err = newConfig()
	if err != nil {
		_, _ = color.New(color.FgRed).Fprintln(os.Stderr, err)
		osExit(1)
	}
}
