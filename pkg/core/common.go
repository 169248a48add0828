package core

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/ipfs/go-cid"
	"github.com/oneconcern/nest/pkg/core/status"
	"github.com/oneconcern/nest/pkg/fspath"
	"github.com/oneconcern/nest/pkg/roottree"
)

// Private lookups always resolve the latest revision of a node
const searchLatest = true

// Modification of a partitioned path
type Modification = roottree.Change

// Modification types
const (
	AddedOrUpdated = roottree.AddedOrUpdated
	Removed        = roottree.Removed
)

// Metadata of a file or directory, in unix seconds
type Metadata struct {
	Created  int64
	Modified int64
}

// DirectoryItem is an entry of a directory listing
type DirectoryItem struct {
	Metadata Metadata
	Name     string
}

// DirectoryItemWithKind is a directory entry with its kind and full path
type DirectoryItemWithKind struct {
	DirectoryItem
	Kind fspath.Kind
	Path fspath.Path
}

// Event is the payload of commit and publish events
type Event struct {
	DataRoot      cid.Cid
	Modifications []Modification
}

var (
	fileNumberRx      = regexp.MustCompile(`( \((\d+)\))?(\.[^$]+)?$`)
	directoryNumberRx = regexp.MustCompile(`( \((\d+)\))$`)
)

// AddOrIncreaseNameNumber appends " (1)" to the last segment of a path, or
// increments an existing number. File names keep their extension last:
// "File.7z" gives "File (1).7z", then "File (2).7z".
func AddOrIncreaseNameNumber(p fspath.Path) (fspath.Path, error) {
	name, ok := p.Terminus()
	if !ok {
		return fspath.Path{}, status.ErrInvalidPath.WrapMessage("cannot rename an empty path")
	}

	rx := directoryNumberRx
	if p.IsFile() {
		rx = fileNumberRx
	}

	loc := rx.FindStringSubmatchIndex(name)
	if loc == nil {
		return fspath.ReplaceTerminus(p, name+" (1)")
	}

	n := 0
	if loc[4] >= 0 {
		parsed, err := strconv.Atoi(name[loc[4]:loc[5]])
		if err != nil {
			return fspath.Path{}, err
		}
		n = parsed
	}
	var ext string
	if len(loc) > 6 && loc[6] >= 0 {
		ext = name[loc[6]:loc[7]]
	}

	return fspath.ReplaceTerminus(p, fmt.Sprintf("%s (%d)%s", name[:loc[0]], n+1, ext))
}

func changeKey(m Modification) string {
	return string(m.Type) + ":" + fspath.ToPosix(m.Path, true)
}
