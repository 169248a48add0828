// Copyright © 2018 One Concern

package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type flagsT struct {
	root struct {
		logLevel string
	}
	init struct {
		force bool
	}
	write struct {
		create bool
	}
	read struct {
		offset string
		length string
	}
	mkdir struct {
		create bool
	}
	mount struct {
		capsuleKey string
	}
	dataRoot struct {
		verify bool
	}
}

var nestFlags = flagsT{}

func addLogLevelFlag(cmd *cobra.Command) string {
	logLevel := "log-level"
	cmd.PersistentFlags().StringVar(&nestFlags.root.logLevel, logLevel, "", "The logging level: debug, info, warn, error or none")
	_ = viper.BindPFlag(logLevel, cmd.PersistentFlags().Lookup(logLevel))
	return logLevel
}

func addForceFlag(cmd *cobra.Command) string {
	force := "force"
	cmd.Flags().BoolVar(&nestFlags.init.force, force, false, "Overwrite an existing state file")
	return force
}

func addCreateFileFlag(cmd *cobra.Command) string {
	create := "create"
	cmd.Flags().BoolVar(&nestFlags.write.create, create, false, `Never overwrite: add or increase a number suffix, e.g. "a (1).txt", when the file exists`)
	return create
}

func addCreateDirectoryFlag(cmd *cobra.Command) string {
	create := "create"
	cmd.Flags().BoolVar(&nestFlags.mkdir.create, create, false, `Always create a new directory, adding or increasing a number suffix when the name is taken`)
	return create
}

func addOffsetFlag(cmd *cobra.Command) string {
	offset := "offset"
	cmd.Flags().StringVar(&nestFlags.read.offset, offset, "", "Start reading at this byte offset, e.g. 512, 4k or 1MiB")
	return offset
}

func addLengthFlag(cmd *cobra.Command) string {
	length := "length"
	cmd.Flags().StringVar(&nestFlags.read.length, length, "", "Read at most this many bytes, e.g. 512, 4k or 1MiB")
	return length
}

func addCapsuleKeyFlag(cmd *cobra.Command) string {
	capsuleKey := "capsule-key"
	cmd.Flags().StringVar(&nestFlags.mount.capsuleKey, capsuleKey, "", "Mount an existing private node with this base64 capsule key. A new node is created otherwise")
	return capsuleKey
}

func addVerifyFlag(cmd *cobra.Command) string {
	verify := "verify"
	cmd.Flags().BoolVar(&nestFlags.dataRoot.verify, verify, false, "Recompute the data root from the block store")
	return verify
}
