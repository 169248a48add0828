package cmd

import (
	"bytes"
	"context"
	"fmt"

	"github.com/docker/go-units"
	"github.com/oneconcern/nest/pkg/core"
	"github.com/oneconcern/nest/pkg/storage"
	"github.com/spf13/cobra"
)

func parseSize(flag, value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	size, err := units.RAMInBytes(value)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	return size, nil
}

var readCmd = &cobra.Command{
	Use:   "read <path>",
	Short: "Print the content of a file",
	Example: `% nest read public/docs/readme.md
% nest read --offset 1k --length 512 private/notes.txt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		offset, err := parseSize("offset", nestFlags.read.offset)
		if err != nil {
			return err
		}
		length, err := parseSize("length", nestFlags.read.length)
		if err != nil {
			return err
		}
		opts := []core.ReadOption{core.WithOffset(offset)}
		if length > 0 {
			opts = append(opts, core.WithLength(length))
		}

		return withSession(ctx, false, func(s *session) error {
			data, err := s.fs.Read(ctx, core.ByPath(parsePath(args[0])), opts...)
			if err != nil {
				return err
			}
			_, err = storage.PipeIO(cmd.OutOrStdout(), bytes.NewReader(data))
			return err
		})
	},
}

func init() {
	addOffsetFlag(readCmd)
	addLengthFlag(readCmd)
	rootCmd.AddCommand(readCmd)
}
