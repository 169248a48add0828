package core

import (
	"context"

	"github.com/ipfs/go-cid"
	"github.com/oneconcern/nest/pkg/blockstore"
	"github.com/oneconcern/nest/pkg/core/status"
	"github.com/oneconcern/nest/pkg/fspath"
	"github.com/oneconcern/nest/pkg/private"
	"github.com/oneconcern/nest/pkg/public"
	"github.com/oneconcern/nest/pkg/roottree"
	"github.com/oneconcern/nest/pkg/unixfs"
)

type (
	publicQuery[T any]  func(context.Context, publicParams) (T, error)
	privateQuery[T any] func(context.Context, privateParams) (T, error)
)

// PUBLIC

func publicExists() publicQuery[bool] {
	return func(ctx context.Context, params publicParams) (bool, error) {
		node, err := params.rootTree.PublicRoot().GetNode(ctx, params.segments, params.store)
		return node != nil, err
	}
}

func publicListDirectory() publicQuery[[]DirectoryItem] {
	return func(ctx context.Context, params publicParams) ([]DirectoryItem, error) {
		items, err := params.rootTree.PublicRoot().Ls(ctx, params.segments, params.store)
		if err != nil {
			return nil, err
		}
		out := make([]DirectoryItem, 0, len(items))
		for _, item := range items {
			out = append(out, DirectoryItem{
				Name:     item.Name,
				Metadata: Metadata{Created: item.Metadata.Created, Modified: item.Metadata.Modified},
			})
		}
		return out, nil
	}
}

func publicListDirectoryWithKind() publicQuery[[]DirectoryItemWithKind] {
	return func(ctx context.Context, params publicParams) ([]DirectoryItemWithKind, error) {
		node, err := params.rootTree.PublicRoot().GetNode(ctx, params.segments, params.store)
		if err != nil {
			return nil, err
		}
		if node == nil {
			return nil, status.ErrNotFound.WrapMessage("no directory at %q", params.segments)
		}
		if !node.IsDir() {
			return nil, status.ErrInvalidOperation.WrapMessage("cannot list a file")
		}

		parent, err := fspath.NewDirectory(append([]string{string(fspath.Public)}, params.segments...)...)
		if err != nil {
			return nil, err
		}

		dir := node.AsDir()
		names := dir.Names()
		out := make([]DirectoryItemWithKind, 0, len(names))
		for _, name := range names {
			child, err := dir.LookupNode(ctx, name, params.store)
			if err != nil {
				return nil, err
			}
			kind := fspath.KindFile
			if child.IsDir() {
				kind = fspath.KindDirectory
			}
			item, err := itemWithKind(parent, name, kind, child.Metadata().Created, child.Metadata().Modified)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	}
}

func publicRead(opts readOptions) publicQuery[[]byte] {
	return func(ctx context.Context, params publicParams) ([]byte, error) {
		content, err := params.rootTree.PublicRoot().Read(ctx, params.segments, params.store)
		if err != nil {
			return nil, err
		}
		return publicReadFromCID(ctx, params.store, content, opts)
	}
}

func publicReadFromCID(ctx context.Context, store blockstore.Store, content cid.Cid, opts readOptions) ([]byte, error) {
	return unixfs.ExportFile(ctx, store, content, opts.offset, opts.length)
}

func publicReadFromCapsuleCID(ctx context.Context, store blockstore.Store, capsule cid.Cid, opts readOptions) ([]byte, error) {
	file, err := public.LoadFile(ctx, capsule, store)
	if err != nil {
		return nil, err
	}
	return publicReadFromCID(ctx, store, file.ContentCID(), opts)
}

func publicSize() publicQuery[uint64] {
	return func(ctx context.Context, params publicParams) (uint64, error) {
		content, err := params.rootTree.PublicRoot().Read(ctx, params.segments, params.store)
		if err != nil {
			return 0, err
		}
		return unixfs.FileSize(ctx, params.store, content)
	}
}

// PRIVATE

func privateExists() privateQuery[bool] {
	return func(ctx context.Context, params privateParams) (bool, error) {
		if params.Node.IsFile() {
			return len(params.Remainder) == 0, nil
		}
		node, err := params.Node.AsDir().GetNode(ctx, params.Remainder, searchLatest, params.rootTree.PrivateForest(), params.store)
		return node != nil, err
	}
}

func privateListDirectory() privateQuery[[]DirectoryItem] {
	return func(ctx context.Context, params privateParams) ([]DirectoryItem, error) {
		if params.Node.IsFile() {
			return nil, status.ErrInvalidOperation.WrapMessage("cannot list a file")
		}
		items, err := params.Node.AsDir().Ls(ctx, params.Remainder, searchLatest, params.rootTree.PrivateForest(), params.store)
		if err != nil {
			return nil, err
		}
		out := make([]DirectoryItem, 0, len(items))
		for _, item := range items {
			out = append(out, DirectoryItem{
				Name:     item.Name,
				Metadata: Metadata{Created: item.Metadata.Created, Modified: item.Metadata.Modified},
			})
		}
		return out, nil
	}
}

func privateListDirectoryWithKind() privateQuery[[]DirectoryItemWithKind] {
	return func(ctx context.Context, params privateParams) ([]DirectoryItemWithKind, error) {
		if params.Node.IsFile() {
			return nil, status.ErrInvalidOperation.WrapMessage("cannot list a file")
		}
		forest := params.rootTree.PrivateForest()

		node, err := params.Node.AsDir().GetNode(ctx, params.Remainder, searchLatest, forest, params.store)
		if err != nil {
			return nil, err
		}
		if node == nil {
			return nil, status.ErrNotFound.WrapMessage("no directory at %q", params.Remainder)
		}
		if !node.IsDir() {
			return nil, status.ErrInvalidOperation.WrapMessage("cannot list a file")
		}

		segments := append([]string{string(fspath.Private)}, params.Path.Segments()...)
		parent, err := fspath.NewDirectory(append(segments, params.Remainder...)...)
		if err != nil {
			return nil, err
		}

		dir := node.AsDir()
		names := dir.Names()
		out := make([]DirectoryItemWithKind, 0, len(names))
		for _, name := range names {
			child, err := dir.LookupNode(ctx, name, searchLatest, forest, params.store)
			if err != nil {
				return nil, err
			}
			kind := fspath.KindFile
			if child.IsDir() {
				kind = fspath.KindDirectory
			}
			item, err := itemWithKind(parent, name, kind, child.Metadata().Created, child.Metadata().Modified)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	}
}

func privateRead(opts readOptions) privateQuery[[]byte] {
	return func(ctx context.Context, params privateParams) ([]byte, error) {
		if params.Node.IsFile() {
			if len(params.Remainder) > 0 {
				return nil, status.ErrNotFound.WrapMessage("no file at %q", params.Remainder)
			}
			return params.Node.AsFile().ReadAt(ctx, opts.offset, opts.length, params.store)
		}
		return params.Node.AsDir().ReadAt(ctx, params.Remainder, opts.offset, opts.length, searchLatest, params.rootTree.PrivateForest(), params.store)
	}
}

func privateReadFromAccessKey(ctx context.Context, store blockstore.Store, tree *roottree.RootTree, capsuleKey []byte, opts readOptions) ([]byte, error) {
	key, err := private.AccessKeyFromBytes(capsuleKey)
	if err != nil {
		return nil, err
	}
	node, err := private.Load(ctx, key, tree.PrivateForest(), store, searchLatest)
	if err != nil {
		return nil, err
	}
	if !node.IsFile() {
		return nil, status.ErrInvalidOperation.WrapMessage("expected a file, found a directory")
	}
	return node.AsFile().ReadAt(ctx, opts.offset, opts.length, store)
}

func privateSize() privateQuery[uint64] {
	return func(ctx context.Context, params privateParams) (uint64, error) {
		node := params.Node
		if node.IsDir() {
			var err error
			node, err = node.AsDir().GetNode(ctx, params.Remainder, searchLatest, params.rootTree.PrivateForest(), params.store)
			if err != nil {
				return 0, err
			}
		} else if len(params.Remainder) > 0 {
			node = nil
		}
		if node == nil {
			return 0, status.ErrNotFound.WrapMessage("no file at %q", params.Remainder)
		}
		if !node.IsFile() {
			return 0, status.ErrInvalidOperation.WrapMessage("expected a file, found a directory")
		}
		return node.AsFile().Size(), nil
	}
}

func itemWithKind(parent fspath.Path, name string, kind fspath.Kind, created, modified int64) (DirectoryItemWithKind, error) {
	child, err := fspath.FromKind(kind, name)
	if err != nil {
		return DirectoryItemWithKind{}, err
	}
	p, err := fspath.Combine(parent, child)
	if err != nil {
		return DirectoryItemWithKind{}, err
	}
	return DirectoryItemWithKind{
		DirectoryItem: DirectoryItem{
			Name:     name,
			Metadata: Metadata{Created: created, Modified: modified},
		},
		Kind: kind,
		Path: p,
	}, nil
}
