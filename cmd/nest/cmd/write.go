package cmd

import (
	"context"
	"io"

	"github.com/oneconcern/nest/pkg/core"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var writeCmd = &cobra.Command{
	Use:   "write <path> [local file|-]",
	Short: "Write a file",
	Long: `Write the content of a local file, or of the standard input, to a file of the file system.

Missing parent directories are created.`,
	Example: `% nest write public/docs/readme.md ./README.md
% echo secret | nest write private/notes.txt
% nest write --create public/docs/readme.md ./README.md
public/docs/readme (1).md	content bafkrei...`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		p := parsePath(args[0])

		var (
			data []byte
			err  error
		)
		if len(args) < 2 || args[1] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = afero.ReadFile(appFs, args[1])
		}
		if err != nil {
			return err
		}

		return withSession(ctx, true, func(s *session) error {
			var result core.MutationResult
			if nestFlags.write.create {
				result, err = s.fs.CreateFile(ctx, p, data)
			} else {
				result, err = s.fs.Write(ctx, p, data)
			}
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		})
	},
}

func init() {
	addCreateFileFlag(writeCmd)
	rootCmd.AddCommand(writeCmd)
}
