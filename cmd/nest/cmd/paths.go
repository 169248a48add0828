package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/oneconcern/nest/pkg/core"
	"github.com/oneconcern/nest/pkg/fspath"
)

// parsePath reads a partitioned path, e.g. "public/docs/" or "private/notes.txt". A
// trailing slash denotes a directory.
func parsePath(arg string) fspath.Path {
	return fspath.FromPosix(strings.TrimPrefix(arg, "/"))
}

func parseDirectory(arg string) fspath.Path {
	if !strings.HasSuffix(arg, "/") {
		arg += "/"
	}
	return parsePath(arg)
}

var highlight = color.New(color.FgCyan).SprintFunc()

func printResult(w io.Writer, result core.MutationResult) error {
	var ref string
	switch {
	case result.CapsuleKey != nil:
		ref = "capsule key " + encodeCapsuleKey(result.CapsuleKey)
	case result.ContentCID.Defined():
		ref = "content " + result.ContentCID.String()
	}
	_, err := fmt.Fprintf(w, "%s\t%s\n", highlight(fspath.ToPosix(result.Path, false)), ref)
	return err
}
