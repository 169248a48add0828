package cmd

import (
	"context"

	"github.com/oneconcern/nest/pkg/core"
	"github.com/spf13/cobra"
)

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <directory>",
	Short: "Create a directory",
	Long: `Create a directory, with its missing parents. Nothing happens when the directory exists,
unless --create is set: a number suffix is then added to the name.`,
	Example: `% nest mkdir private/projects/2024
% nest mkdir --create public/Untitled
public/Untitled (1)/	content bafybei...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		dir := parseDirectory(args[0])

		return withSession(ctx, true, func(s *session) error {
			var (
				result core.MutationResult
				err    error
			)
			if nestFlags.mkdir.create {
				result, err = s.fs.CreateDirectory(ctx, dir)
			} else {
				result, err = s.fs.EnsureDirectory(ctx, dir)
			}
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		})
	},
}

func init() {
	addCreateDirectoryFlag(mkdirCmd)
	rootCmd.AddCommand(mkdirCmd)
}
