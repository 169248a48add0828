package core

import (
	"context"

	"github.com/ipfs/go-cid"
	"github.com/oneconcern/nest/pkg/blockstore"
	"github.com/oneconcern/nest/pkg/core/status"
	"github.com/oneconcern/nest/pkg/fspath"
	"github.com/oneconcern/nest/pkg/roottree"
)

// contentCID is the root CID of the content of a public file
func contentCID(ctx context.Context, store blockstore.Store, tree *roottree.RootTree, p fspath.Path) (cid.Cid, bool, error) {
	node, err := tree.PublicRoot().GetNode(ctx, fspath.RemovePartition(p).Segments(), store)
	if err != nil || node == nil || node.IsDir() {
		return cid.Undef, false, err
	}
	return node.AsFile().ContentCID(), true, nil
}

// capsuleCID is the CID of a public file or directory node
func capsuleCID(ctx context.Context, store blockstore.Store, tree *roottree.RootTree, p fspath.Path) (cid.Cid, bool, error) {
	node, err := tree.PublicRoot().GetNode(ctx, fspath.RemovePartition(p).Segments(), store)
	if err != nil || node == nil {
		return cid.Undef, false, err
	}
	c, err := node.Store(ctx, store)
	if err != nil {
		return cid.Undef, false, err
	}
	return c, true, nil
}

// capsuleKey is the serialized access key of a private node. Paths outside
// of any mounted node have none. Nodes changed by a pending transaction have
// no stable key until committed.
func capsuleKey(ctx context.Context, store blockstore.Store, tree *roottree.RootTree, mounts MountedPrivateNodes, p fspath.Path) ([]byte, bool, error) {
	priv, err := findPrivateNode(p, mounts)
	if err != nil {
		return nil, false, nil
	}

	node := priv.Node
	if len(priv.Remainder) > 0 {
		if node.IsFile() {
			return nil, false, nil
		}
		node, err = node.AsDir().GetNode(ctx, priv.Remainder, searchLatest, tree.PrivateForest(), store)
		if err != nil || node == nil {
			return nil, false, err
		}
	}

	if !node.Stored() {
		return nil, false, status.ErrInvalidOperation.WrapMessage("'%s' has uncommitted changes", fspath.ToPosix(p, false))
	}
	key, _, _, err := node.Store(ctx, tree.PrivateForest(), store)
	if err != nil {
		return nil, false, err
	}
	return key.ToBytes(), true, nil
}

// Reference addresses content to read: a file path, the CID of some public
// content, the CID of a public file node, or the capsule key of a private file.
type Reference struct {
	path       *fspath.Path
	contentCID cid.Cid
	capsuleCID cid.Cid
	capsuleKey []byte
}

// ByPath addresses a file of either partition
func ByPath(p fspath.Path) Reference { return Reference{path: &p} }

// ByContentCID addresses public content by its root CID
func ByContentCID(c cid.Cid) Reference { return Reference{contentCID: c} }

// ByCapsuleCID addresses a public file by the CID of its node
func ByCapsuleCID(c cid.Cid) Reference { return Reference{capsuleCID: c} }

// ByCapsuleKey addresses a private file by its access key
func ByCapsuleKey(key []byte) Reference { return Reference{capsuleKey: key} }
