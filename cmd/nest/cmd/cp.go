package cmd

import (
	"context"

	"github.com/oneconcern/nest/pkg/core"
	"github.com/oneconcern/nest/pkg/fspath"
	"github.com/spf13/cobra"
)

type transferFunc func(fs *core.FileSystem, ctx context.Context, from, to fspath.Path, opts ...core.MutationOption) (core.MutationResult, error)

func transfer(fn transferFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		from, to := parsePath(args[0]), parsePath(args[1])

		return withSession(ctx, true, func(s *session) error {
			result, err := fn(s.fs, ctx, from, to)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		})
	}
}

var cpCmd = &cobra.Command{
	Use:   "cp <from> <to>",
	Short: "Copy a file or a directory",
	Long: `Copy a file or a directory, possibly across partitions.

A file copied to a directory path (ending with a slash) is copied inside that directory.`,
	Example: `% nest cp public/docs/readme.md private/archive/`,
	Args:    cobra.ExactArgs(2),
	RunE:    transfer((*core.FileSystem).Copy),
}

var mvCmd = &cobra.Command{
	Use:   "mv <from> <to>",
	Short: "Move a file or a directory",
	Long: `Move a file or a directory, possibly across partitions.

A file moved to a directory path (ending with a slash) is moved inside that directory.`,
	Example: `% nest mv private/drafts/post.md public/posts/`,
	Args:    cobra.ExactArgs(2),
	RunE:    transfer((*core.FileSystem).Move),
}

var renameCmd = &cobra.Command{
	Use:     "rename <path> <name>",
	Short:   "Rename a file or a directory",
	Example: `% nest rename public/docs/readme.md README.md`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		return withSession(ctx, true, func(s *session) error {
			result, err := s.fs.Rename(ctx, parsePath(args[0]), args[1])
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		})
	},
}

func init() {
	rootCmd.AddCommand(cpCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(renameCmd)
}
