package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var dataRootCmd = &cobra.Command{
	Use:   "root",
	Short: "Print the data root of the file system",
	Long: `Print the CID of the root of the file system, as recorded in the state file.

With --verify, the file system is loaded from the block store and its data root recomputed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !nestFlags.dataRoot.verify {
			state, err := loadState(config.State)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), state.DataRoot)
			return err
		}

		ctx := context.Background()
		return withSession(ctx, false, func(s *session) error {
			dataRoot, err := s.fs.CalculateDataRoot(ctx)
			if err != nil {
				return err
			}
			if dataRoot.String() != s.state.DataRoot {
				return fmt.Errorf("data root mismatch: recorded %s, computed %s", s.state.DataRoot, dataRoot)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), dataRoot)
			return err
		})
	},
}

func init() {
	addVerifyFlag(dataRootCmd)
	rootCmd.AddCommand(dataRootCmd)
}
