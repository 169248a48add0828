package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:     "rm <path>",
	Short:   "Remove a file or a directory",
	Long:    `Remove a file, or a directory with all its content. Directories are denoted by a trailing slash.`,
	Example: `% nest rm public/docs/`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		return withSession(ctx, true, func(s *session) error {
			dataRoot, err := s.fs.Remove(ctx, parsePath(args[0]))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), dataRoot)
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
