package core

import (
	"context"
	"io"
	"time"

	"github.com/oneconcern/nest/pkg/blockstore"
	"github.com/oneconcern/nest/pkg/core/status"
	"github.com/oneconcern/nest/pkg/fspath"
	"github.com/oneconcern/nest/pkg/private"
)

// MountedPrivateNode is a decrypted private node attached to a path of the
// private partition. The path does not include the partition.
type MountedPrivateNode struct {
	Node *private.Node
	Path fspath.Path
}

// MountedPrivateNodes maps absolute POSIX paths to mounted nodes
type MountedPrivateNodes map[string]MountedPrivateNode

func (m MountedPrivateNodes) clone() MountedPrivateNodes {
	c := make(MountedPrivateNodes, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// MountRequest asks to mount a private node. Without a capsule key, a new
// empty node of the kind of the path is created.
type MountRequest struct {
	Path       fspath.Path
	CapsuleKey []byte
}

// MountResult holds the capsule key of a mounted node
type MountResult struct {
	Path       fspath.Path
	CapsuleKey []byte
}

// privateNodeQueryResult is the mounted node closest to a private path
type privateNodeQueryResult struct {
	MountedPrivateNode
	Remainder []string
}

func mountKey(p fspath.Path) string {
	return fspath.ToPosix(p, true)
}

// findPrivateNode resolves a private path to its closest mounted ancestor,
// itself included.
func findPrivateNode(p fspath.Path, mounts MountedPrivateNodes) (privateNodeQueryResult, error) {
	segments := fspath.RemovePartition(p).Segments()

	longest := len(segments)
	if p.IsFile() && longest > 0 {
		if m, ok := mounts[mountKey(fspath.MustFile(segments...))]; ok {
			return privateNodeQueryResult{MountedPrivateNode: m}, nil
		}
		longest--
	}

	for i := longest; i >= 0; i-- {
		if m, ok := mounts[mountKey(fspath.MustDirectory(segments[:i]...))]; ok {
			return privateNodeQueryResult{
				MountedPrivateNode: m,
				Remainder:          append([]string(nil), segments[i:]...),
			}, nil
		}
	}

	return privateNodeQueryResult{}, status.ErrNoAccess.WrapMessage("no mounted private node for %q", fspath.ToPosix(p, true))
}

// newPrivateNode creates an empty private node of the kind of a path
func newPrivateNode(ctx context.Context, p fspath.Path, now time.Time, rng io.Reader, store blockstore.Store) (*private.Node, error) {
	if p.IsFile() {
		f, err := private.NewFile(ctx, nil, now, rng, store)
		if err != nil {
			return nil, err
		}
		return private.NodeFromFile(f), nil
	}
	d, err := private.NewDirectory(now, rng)
	if err != nil {
		return nil, err
	}
	return private.NodeFromDirectory(d), nil
}
