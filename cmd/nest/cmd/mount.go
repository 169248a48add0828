package cmd

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/oneconcern/nest/pkg/core"
	"github.com/spf13/cobra"
)

var mountCmd = &cobra.Command{
	Use:   "mount <path>",
	Short: "Mount a private node",
	Long: `Mount a private node at a path of the private partition, given without the partition name.

Without --capsule-key, a new empty node is created: a directory when the path ends with a slash,
a file otherwise. The capsule key of the mounted node is printed and recorded in the state file.`,
	Example: `% nest mount /shared/
% nest mount --capsule-key o2FkWCA... /shared/`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		request := core.MountRequest{Path: parsePath(args[0])}
		if nestFlags.mount.capsuleKey != "" {
			key, err := base64.StdEncoding.DecodeString(nestFlags.mount.capsuleKey)
			if err != nil {
				return fmt.Errorf("invalid --capsule-key: %w", err)
			}
			request.CapsuleKey = key
		}

		return withSession(ctx, true, func(s *session) error {
			mounted, err := s.fs.MountPrivateNode(ctx, request)
			if err != nil {
				return err
			}
			s.state.setMount(mounted.Path, mounted.CapsuleKey)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), encodeCapsuleKey(mounted.CapsuleKey))
			return err
		})
	},
}

var unmountCmd = &cobra.Command{
	Use:   "unmount <path>",
	Short: "Forget a mounted private node",
	Long:  `Remove a mount from the state file. The private node remains in the block store.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := loadState(config.State)
		if err != nil {
			return err
		}
		p := parsePath(args[0])
		if !state.removeMount(p) {
			return fmt.Errorf("nothing mounted at %q", args[0])
		}
		return saveState(config.State, state)
	},
}

func init() {
	addCapsuleKeyFlag(mountCmd)
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(unmountCmd)
}
