package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/fatih/color"
	"github.com/oneconcern/nest/pkg/fspath"
	"github.com/spf13/cobra"
)

var directoryColor = color.New(color.FgBlue, color.Bold).SprintFunc()

var lsCmd = &cobra.Command{
	Use:   "ls <directory>",
	Short: "List the content of a directory",
	Example: `% nest ls public/docs
file  1.2kB  2024-03-01T10:00:00Z  readme.md
dir   -      2024-03-01T10:00:00Z  images/`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		dir := parseDirectory(args[0])

		return withSession(ctx, false, func(s *session) error {
			items, err := s.fs.ListDirectoryWithKind(ctx, dir)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, item := range items {
				modified := time.Unix(item.Metadata.Modified, 0).UTC().Format(time.RFC3339)
				if item.Kind == fspath.KindDirectory {
					_, _ = fmt.Fprintf(w, "dir\t-\t%s\t%s\n", modified, directoryColor(item.Name+"/"))
					continue
				}

				size, err := s.fs.Size(ctx, item.Path)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(w, "file\t%s\t%s\t%s\n", units.HumanSize(float64(size)), modified, item.Name)
			}
			return w.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
}
