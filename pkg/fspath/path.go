// Package fspath models partition-aware file system paths.
//
// A path is a pure value: a kind (file or directory) and an ordered list of
// segments. The first segment, when present, is the partition marker
// ("public" or "private").
package fspath

import (
	"strings"

	"github.com/oneconcern/nest/pkg/core/status"
)

// Kind tells a file path from a directory path
type Kind uint8

const (
	// KindFile denotes a file path
	KindFile Kind = iota

	// KindDirectory denotes a directory path
	KindDirectory
)

func (k Kind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// Partition is the first segment of a partitioned path
type Partition string

const (
	// Public partition: plain hash-linked data
	Public Partition = "public"

	// Private partition: encrypted data, reachable through mounted private nodes
	Private Partition = "private"
)

// RootBranch names the links of a persisted root tree
type RootBranch string

// Root tree branches
const (
	BranchExchange RootBranch = "exchange"
	BranchPrivate  RootBranch = "private"
	BranchPublic   RootBranch = "public"
	BranchUnix     RootBranch = "unix"
	BranchVersion  RootBranch = "version"
)

// Path is a file or directory path made of segments.
type Path struct {
	kind     Kind
	segments []string
}

// NewFile builds a file path
func NewFile(segments ...string) (Path, error) {
	return FromKind(KindFile, segments...)
}

// NewDirectory builds a directory path
func NewDirectory(segments ...string) (Path, error) {
	return FromKind(KindDirectory, segments...)
}

// FromKind builds a path of the given kind.
//
// A literal "/" segment is rejected.
func FromKind(kind Kind, segments ...string) (Path, error) {
	for _, s := range segments {
		if s == "/" {
			return Path{}, status.ErrInvalidPath.WrapMessage("forward slashes `/` are not allowed as a path segment")
		}
	}
	return Path{kind: kind, segments: append([]string(nil), segments...)}, nil
}

// MustFile builds a file path or panics
func MustFile(segments ...string) Path {
	p, err := NewFile(segments...)
	if err != nil {
		panic(err)
	}
	return p
}

// MustDirectory builds a directory path or panics
func MustDirectory(segments ...string) Path {
	p, err := NewDirectory(segments...)
	if err != nil {
		panic(err)
	}
	return p
}

// Root is the directory path without any segment
func Root() Path {
	return Path{kind: KindDirectory}
}

// Kind of path
func (p Path) Kind() Kind {
	return p.kind
}

// IsFile tells if this is a file path
func (p Path) IsFile() bool {
	return p.kind == KindFile
}

// IsDirectory tells if this is a directory path
func (p Path) IsDirectory() bool {
	return p.kind == KindDirectory
}

// Segments returns a copy of the path segments
func (p Path) Segments() []string {
	return append([]string(nil), p.segments...)
}

// Len is the number of segments
func (p Path) Len() int {
	return len(p.segments)
}

// Terminus returns the last segment, if any
func (p Path) Terminus() (string, bool) {
	if len(p.segments) == 0 {
		return "", false
	}
	return p.segments[len(p.segments)-1], true
}

// Equal compares kinds and segments
func (p Path) Equal(other Path) bool {
	if p.kind != other.kind || len(p.segments) != len(other.segments) {
		return false
	}
	for i := range p.segments {
		if p.segments[i] != other.segments[i] {
			return false
		}
	}
	return true
}

func (p Path) String() string {
	return ToPosix(p, false)
}

// IsPartitioned tells if the first segment is a known partition
func IsPartitioned(p Path) bool {
	if len(p.segments) == 0 {
		return false
	}
	switch Partition(p.segments[0]) {
	case Public, Private:
		return true
	default:
		return false
	}
}

// IsPartitionedNonEmpty tells if the path is partitioned and has at least one more segment
func IsPartitionedNonEmpty(p Path) bool {
	return IsPartitioned(p) && len(p.segments) > 1
}

// IsPartition tells if the path belongs to the given partition
func IsPartition(partition Partition, p Path) bool {
	return len(p.segments) > 0 && p.segments[0] == string(partition)
}

// IsSamePartition tells if both paths share the same first segment
func IsSamePartition(a, b Path) bool {
	if len(a.segments) == 0 || len(b.segments) == 0 {
		return false
	}
	return a.segments[0] == b.segments[0]
}

// IsOnRootBranch tells if the path starts with the given root branch
func IsOnRootBranch(branch RootBranch, p Path) bool {
	return len(p.segments) > 0 && p.segments[0] == string(branch)
}

// DiscoverPartition classifies the first segment of a path and returns
// the remaining segments
func DiscoverPartition(p Path) (Partition, []string, error) {
	if !IsPartitioned(p) {
		return "", nil, status.ErrInvalidPartition.WrapMessage("got '%s'", ToPosix(p, false))
	}
	return Partition(p.segments[0]), p.Segments()[1:], nil
}

// Combine appends the segments of other to the directory path dir.
// The result has the kind of other.
func Combine(dir Path, other Path) (Path, error) {
	if !dir.IsDirectory() {
		return Path{}, status.ErrInvalidPath.WrapMessage("cannot combine onto file path '%s'", ToPosix(dir, false))
	}
	segments := make([]string, 0, len(dir.segments)+len(other.segments))
	segments = append(segments, dir.segments...)
	segments = append(segments, other.segments...)
	return Path{kind: other.kind, segments: segments}, nil
}

// Parent yields the parent directory. The root has no parent.
func Parent(p Path) (Path, bool) {
	if len(p.segments) == 0 {
		return Path{}, false
	}
	return Path{kind: KindDirectory, segments: p.Segments()[:len(p.segments)-1]}, true
}

// ReplaceTerminus replaces the last segment
func ReplaceTerminus(p Path, name string) (Path, error) {
	if len(p.segments) == 0 {
		return Path{}, status.ErrInvalidPath.WrapMessage("cannot replace the terminus of an empty path")
	}
	segments := p.Segments()
	segments[len(segments)-1] = name
	return FromKind(p.kind, segments...)
}

// RemovePartition drops the first segment
func RemovePartition(p Path) Path {
	if len(p.segments) == 0 {
		return p
	}
	return Path{kind: p.kind, segments: p.Segments()[1:]}
}

// WithPartition prepends a partition segment
func WithPartition(partition Partition, p Path) Path {
	segments := make([]string, 0, len(p.segments)+1)
	segments = append(segments, string(partition))
	segments = append(segments, p.segments...)
	return Path{kind: p.kind, segments: segments}
}

// AppData builds the path to the data directory of an application, e.g.
// private/Apps/<creator>/<name>, optionally extended with a sub path.
func AppData(partition Partition, creator, name string, sub ...Path) (Path, error) {
	root, err := NewDirectory(string(partition), "Apps", creator, name)
	if err != nil {
		return Path{}, err
	}
	if len(sub) == 0 {
		return root, nil
	}
	return Combine(root, sub[0])
}

// ToPosix formats a path as a POSIX path: directories end with a slash,
// absolute paths start with one.
func ToPosix(p Path, absolute bool) string {
	var b strings.Builder
	if absolute {
		b.WriteString("/")
	}
	b.WriteString(strings.Join(p.segments, "/"))
	if p.IsDirectory() && len(p.segments) > 0 {
		b.WriteString("/")
	}
	return b.String()
}

// FromPosix parses a POSIX path. A trailing slash (or an empty path) denotes a directory.
func FromPosix(posix string) Path {
	isDir := posix == "" || strings.HasSuffix(posix, "/")
	trimmed := strings.Trim(posix, "/")

	var segments []string
	if trimmed != "" {
		segments = strings.Split(trimmed, "/")
	}
	if isDir {
		return Path{kind: KindDirectory, segments: segments}
	}
	return Path{kind: KindFile, segments: segments}
}
