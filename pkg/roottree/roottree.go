// Package roottree composes the pieces of a file system snapshot into one
// persisted DAG-PB node.
//
// A root node has exactly five named links:
//
//	exchange  public directory shared with other devices
//	private   private forest
//	public    public directory
//	unix      UnixFS mirror of the public directory
//	version   raw UTF-8 semantic version of the format
package roottree

import (
	"context"

	"github.com/ipfs/go-cid"
	"github.com/oneconcern/nest/pkg/blockstore"
	"github.com/oneconcern/nest/pkg/core/status"
	"github.com/oneconcern/nest/pkg/dagpb"
	"github.com/oneconcern/nest/pkg/fspath"
	"github.com/oneconcern/nest/pkg/private"
	"github.com/oneconcern/nest/pkg/public"
	"github.com/oneconcern/nest/pkg/unixfs"
	"github.com/oneconcern/nest/pkg/version"
	"go.uber.org/zap"
)

// rootData marks the root node as a UnixFS directory
var rootData = []byte{8, 1}

// ChangeType tells how a path was modified
type ChangeType string

const (
	// AddedOrUpdated paths were created or written to
	AddedOrUpdated ChangeType = "added-or-updated"

	// Removed paths were deleted
	Removed ChangeType = "removed"
)

// Change records the modification of a partitioned path
type Change struct {
	Path fspath.Path
	Type ChangeType
}

// RootTree is an immutable snapshot of both partitions.
//
// Replace* methods return a new value. Pieces are shared between values.
type RootTree struct {
	options

	store    blockstore.Store
	exchange *public.Directory
	public   *public.Directory
	forest   *private.Forest
	unix     *dagpb.Node
	version  string
}

// Create an empty root tree
func Create(store blockstore.Store, opts ...Option) (*RootTree, error) {
	o := defaultOptions(opts)
	now := o.clock.Now()

	forest, err := private.NewForest(o.rng)
	if err != nil {
		return nil, err
	}

	return &RootTree{
		options:  o,
		store:    store,
		exchange: public.NewDirectory(now),
		public:   public.NewDirectory(now),
		forest:   forest,
		unix:     unixfs.CreateDirectory(now),
		version:  version.Latest,
	}, nil
}

// LinksFromCID loads the named links of a root node
func LinksFromCID(ctx context.Context, store blockstore.Store, c cid.Cid) (map[string]cid.Cid, error) {
	raw, err := store.GetBlock(ctx, c)
	if err != nil {
		return nil, err
	}
	node, err := dagpb.Decode(raw)
	if err != nil {
		return nil, err
	}
	links := make(map[string]cid.Cid, len(node.Links))
	for _, l := range node.Links {
		links[l.Name] = l.Hash
	}
	return links, nil
}

// FromCID loads a persisted root tree.
//
// A missing link is not an error: a fresh piece is used instead and a
// warning is logged. The version must be a supported semantic version.
func FromCID(ctx context.Context, store blockstore.Store, c cid.Cid, opts ...Option) (*RootTree, error) {
	o := defaultOptions(opts)
	now := o.clock.Now()

	links, err := LinksFromCID(ctx, store, c)
	if err != nil {
		return nil, err
	}

	lookup := func(branch fspath.RootBranch) (cid.Cid, bool) {
		l, ok := links[string(branch)]
		if !ok {
			o.logger.Warn("missing link in the root tree, creating a new one",
				zap.String("link", string(branch)),
				zap.Stringer("root", c),
			)
		}
		return l, ok
	}

	t := &RootTree{options: o, store: store, version: version.Latest}

	if l, ok := lookup(fspath.BranchExchange); ok {
		if t.exchange, err = public.LoadDirectory(ctx, l, store); err != nil {
			return nil, err
		}
	} else {
		t.exchange = public.NewDirectory(now)
	}

	if l, ok := lookup(fspath.BranchPublic); ok {
		if t.public, err = public.LoadDirectory(ctx, l, store); err != nil {
			return nil, err
		}
	} else {
		t.public = public.NewDirectory(now)
	}

	if l, ok := lookup(fspath.BranchPrivate); ok {
		if t.forest, err = private.LoadForest(ctx, l, store); err != nil {
			return nil, err
		}
	} else if t.forest, err = private.NewForest(o.rng); err != nil {
		return nil, err
	}

	if l, ok := lookup(fspath.BranchUnix); ok {
		if t.unix, err = unixfs.Load(ctx, store, l); err != nil {
			return nil, err
		}
	} else {
		t.unix = unixfs.CreateDirectory(now)
	}

	if l, ok := lookup(fspath.BranchVersion); ok {
		raw, err := store.GetBlock(ctx, l)
		if err != nil {
			return nil, err
		}
		v, err := version.Parse(string(raw))
		if err != nil {
			return nil, err
		}
		if support := version.IsSupported(v); support != version.Supported {
			return nil, status.ErrVersionMismatch.WrapMessage("version %s is %v", v, support)
		}
		t.version = string(raw)
	}

	return t, nil
}

// Exchange root directory
func (t *RootTree) Exchange() *public.Directory { return t.exchange }

// PublicRoot directory
func (t *RootTree) PublicRoot() *public.Directory { return t.public }

// PrivateForest of the tree
func (t *RootTree) PrivateForest() *private.Forest { return t.forest }

// Unix mirror of the public directory
func (t *RootTree) Unix() *dagpb.Node { return t.unix }

// Version of the format
func (t *RootTree) Version() string { return t.version }

// Clone returns a copy sharing all pieces
func (t *RootTree) Clone() *RootTree {
	c := *t
	return &c
}

// ReplacePrivateForest returns a tree with another forest
func (t *RootTree) ReplacePrivateForest(forest *private.Forest, _ []Change) *RootTree {
	c := t.Clone()
	c.forest = forest
	return c
}

// ReplacePublicRoot returns a tree with another public root. Changes on the
// public partition are replayed onto the unix mirror.
func (t *RootTree) ReplacePublicRoot(ctx context.Context, dir *public.Directory, changes []Change) (*RootTree, error) {
	unix := t.unix
	for _, change := range changes {
		if !fspath.IsPartition(fspath.Public, change.Path) {
			continue
		}
		p := fspath.RemovePartition(change.Path)

		var err error
		if change.Type == Removed {
			unix, err = unixfs.RemoveNode(ctx, t.store, unix, p)
			if err != nil {
				return nil, err
			}
			continue
		}

		contentCID := cid.Undef
		if p.IsFile() {
			if contentCID, err = dir.Read(ctx, p.Segments(), t.store); err != nil {
				return nil, err
			}
		}
		unix, err = unixfs.InsertNode(ctx, t.store, unix, p, contentCID, t.clock.Now())
		if err != nil {
			return nil, err
		}
	}

	c := t.Clone()
	c.public = dir
	c.unix = unix
	return c, nil
}

// Store persists every piece and the root node, and returns the data root
func (t *RootTree) Store(ctx context.Context) (cid.Cid, error) {
	exchange, err := t.exchange.Store(ctx, t.store)
	if err != nil {
		return cid.Undef, err
	}
	forest, err := t.forest.Store(ctx, t.store)
	if err != nil {
		return cid.Undef, err
	}
	publicRoot, err := t.public.Store(ctx, t.store)
	if err != nil {
		return cid.Undef, err
	}
	unix, err := unixfs.Store(ctx, t.store, t.unix)
	if err != nil {
		return cid.Undef, err
	}
	v, err := t.store.PutBlock(ctx, []byte(t.version), blockstore.Raw)
	if err != nil {
		return cid.Undef, err
	}

	links := []dagpb.Link{
		{Name: string(fspath.BranchExchange), Hash: exchange},
		{Name: string(fspath.BranchPrivate), Hash: forest},
		{Name: string(fspath.BranchPublic), Hash: publicRoot},
		{Name: string(fspath.BranchUnix), Hash: unix},
		{Name: string(fspath.BranchVersion), Hash: v},
	}
	return t.store.PutBlock(ctx, dagpb.Encode(&dagpb.Node{Data: rootData, Links: links}), blockstore.DagProtobuf)
}
