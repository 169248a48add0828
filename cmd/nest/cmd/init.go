package cmd

import (
	"context"
	"fmt"

	"github.com/oneconcern/nest/pkg/core"
	"github.com/oneconcern/nest/pkg/fspath"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty file system",
	Long: `Create an empty file system in the configured block store, with a new private node mounted
at the root of the private partition.

The data root and the capsule key of the private root are written to the state file.`,
	Example: `% nest init
bafyreih...`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		exists, err := stateExists(config.State)
		if err != nil {
			return err
		}
		if exists && !nestFlags.init.force {
			return fmt.Errorf("a file system already exists at %q: use --force to replace it", config.State)
		}

		logger, err := newLogger(config)
		if err != nil {
			return err
		}
		store, closer, err := openBlockstore(config, logger)
		if err != nil {
			return err
		}
		fs, err := core.Create(store, sessionOptions(logger)...)
		if err != nil {
			_ = closer.Close()
			return err
		}

		s := &session{fs: fs, state: &State{}, closer: closer, logger: logger}
		defer s.close()

		mounted, err := fs.MountPrivateNode(ctx, core.MountRequest{Path: fspath.Root()})
		if err != nil {
			return err
		}
		s.state.setMount(mounted.Path, mounted.CapsuleKey)
		if err = s.save(ctx); err != nil {
			return err
		}

		_, err = fmt.Fprintln(cmd.OutOrStdout(), s.state.DataRoot)
		return err
	},
}

func init() {
	addForceFlag(initCmd)
	rootCmd.AddCommand(initCmd)
}
